package reader

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/rimage"
)

func TestReadVideoDeduplicatesConcurrentSameTime(t *testing.T) {
	var calls atomic.Int64
	decode := func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return rimage.NewImage(1, 1, rimage.PixelTypeGray8), nil
	}
	h := NewHandle("test", MediaInfo{}, decode)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ReadVideo(context.Background(), rational.NewTime(5, 24))
			if err != nil {
				t.Errorf("ReadVideo: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("decode called %d times, want 1", got)
	}
}

func TestStopTransitionsAfterDrain(t *testing.T) {
	release := make(chan struct{})
	decode := func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		<-release
		return rimage.NewImage(1, 1, rimage.PixelTypeGray8), nil
	}
	h := NewHandle("test", MediaInfo{}, decode)

	done := make(chan struct{})
	go func() {
		h.ReadVideo(context.Background(), rational.NewTime(0, 24))
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	h.Stop()
	if h.State() != StateStopping {
		t.Fatalf("expected Stopping while request in flight, got %v", h.State())
	}

	close(release)
	<-done

	deadline := time.After(time.Second)
	for !h.HasStopped() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for Stopped")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCancelAllCancelsInFlightDecodeNotFutureCalls(t *testing.T) {
	decode := func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return rimage.NewImage(1, 1, rimage.PixelTypeGray8), nil
		}
	}
	h := NewHandle("test", MediaInfo{}, decode)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.ReadVideo(context.Background(), rational.NewTime(0, 24))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	h.CancelAll()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected the in-flight ReadVideo to return an error after CancelAll")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancelled ReadVideo to return")
	}

	if h.State() != StateRunning {
		t.Fatalf("CancelAll must not stop the handle, got state %v", h.State())
	}

	img, err := h.ReadVideo(context.Background(), rational.NewTime(1, 24))
	_ = img
	if err != nil {
		t.Errorf("ReadVideo after CancelAll should not be cancelled, got %v", err)
	}
}

func TestReadVideoRejectsAfterStop(t *testing.T) {
	h := NewHandle("test", MediaInfo{}, func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		return rimage.NewImage(1, 1, rimage.PixelTypeGray8), nil
	})
	h.Stop()
	if _, err := h.ReadVideo(context.Background(), rational.NewTime(0, 24)); err == nil {
		t.Fatal("expected error reading from stopped handle")
	}
}

package reader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/rimage"
	"github.com/visiona/tlplay/internal/tlerrors"
)

// drainPollInterval bounds how quickly Stop notices the last in-flight
// ReadVideo has finished. Real decode latency dwarfs this, so a short
// poll is simpler than threading a per-request done-channel through
// singleflight.
const drainPollInterval = 2 * time.Millisecond

// State is the Reader Handle's lifecycle state machine, exactly the
// Running -> Stopping -> Stopped progression spec's component design
// calls for.
type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// DecodeFunc decodes the single frame at readTime (already rescaled to
// the media's native rate and floored) from the underlying source. It is
// supplied by the Plugin that created this Handle and runs on the
// goroutine of a ReadVideo caller. Concurrent calls for the same read
// time share one decode, but calls for different read times decode
// concurrently, so it must be safe for concurrent use.
type DecodeFunc func(ctx context.Context, readTime rational.Time) (*rimage.Image, error)

// Handle is a single open media source: an async per-media frame
// producer with single-flight deduplication keyed by read time and a
// Running/Stopping/Stopped lifecycle, matching spec's Reader Handle
// contract. There is no worker goroutine or request queue: each
// ReadVideo decodes on its caller's goroutine, with concurrent callers
// for the same time fanned in via singleflight, because Handle callers
// request specific times rather than consuming a live stream.
type Handle struct {
	info   MediaInfo
	decode DecodeFunc
	name   string

	state atomic.Int32

	sf      singleflight.Group
	pending atomic.Int64 // count of in-flight ReadVideo calls

	genMu     sync.Mutex
	genCtx    context.Context
	genCancel context.CancelFunc

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewHandle constructs a Handle around decode, immediately in Running
// state. name identifies the handle in logs (typically the opened path).
func NewHandle(name string, info MediaInfo, decode DecodeFunc) *Handle {
	genCtx, genCancel := context.WithCancel(context.Background())
	h := &Handle{
		info:      info,
		decode:    decode,
		name:      name,
		genCtx:    genCtx,
		genCancel: genCancel,
		closeCh:   make(chan struct{}),
	}
	h.state.Store(int32(StateRunning))
	return h
}

// Info returns the probed MediaInfo from Open time.
func (h *Handle) Info() MediaInfo { return h.info }

// Name returns the identifying name passed to NewHandle.
func (h *Handle) Name() string { return h.name }

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// HasPending reports whether any ReadVideo call is currently in flight.
// The Compositor's reader-GC pass uses this, together with the active
// ranges check, to decide whether a Handle with no more overlapping
// clips can be stopped yet (spec's stopReaders rule: no intersection AND
// no pending work).
func (h *Handle) HasPending() bool {
	return h.pending.Load() > 0
}

// HasStopped reports whether the Handle has finished shutting down and
// can be removed from the Compositor's reader map.
func (h *Handle) HasStopped() bool {
	return h.State() == StateStopped
}

// Done returns a channel closed as soon as Stop is called, before
// in-flight decodes have necessarily finished draining. Useful for a
// caller that wants to stop issuing new requests without polling
// HasStopped.
func (h *Handle) Done() <-chan struct{} { return h.closeCh }

// ReadVideo requests the frame at readTime (already rescaled to this
// Handle's native rate). Concurrent calls for the same readTime fan in
// to a single decode via singleflight, satisfying spec's deduplication
// invariant.
func (h *Handle) ReadVideo(ctx context.Context, readTime rational.Time) (*rimage.Image, error) {
	if h.State() != StateRunning {
		return nil, tlerrors.ErrHandleStopped
	}

	h.pending.Add(1)
	defer h.pending.Add(-1)

	h.genMu.Lock()
	genCtx := h.genCtx
	h.genMu.Unlock()

	mergedCtx, stopMerge := mergeCancel(ctx, genCtx)
	defer stopMerge()

	key := fmt.Sprintf("%d/%d", readTime.Value, readTime.Rate)
	v, err, _ := h.sf.Do(key, func() (interface{}, error) {
		return h.decode(mergedCtx, readTime)
	})
	if err != nil {
		if ctx.Err() != nil || genCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", tlerrors.ErrCancelled, err)
		}
		return nil, fmt.Errorf("%w: %v", tlerrors.ErrDecodeFailed, err)
	}
	img, _ := v.(*rimage.Image)
	return img, nil
}

// CancelAll marks every currently outstanding ReadVideo call as
// cancelled by cancelling the generation context those calls' decodes
// were merged with, then installs a fresh generation context so calls
// made after CancelAll returns are unaffected. It does not stop the
// Handle: a decode already past the point its DecodeFunc checks ctx may
// still deliver its frame, and new callers are never blocked by it,
// matching the Playback Controller's seek contract (clear outstanding
// requests, keep the reader open).
func (h *Handle) CancelAll() {
	h.genMu.Lock()
	h.genCancel()
	h.genCtx, h.genCancel = context.WithCancel(context.Background())
	h.genMu.Unlock()
}

// mergeCancel returns a context cancelled when either a or b is done.
// Go's stdlib context has no built-in any-of merge; this is the common
// idiom for it (a watcher goroutine that cancels a derived context),
// scoped down by the returned stop func once the caller no longer needs
// it so the watcher goroutine doesn't outlive the request.
func mergeCancel(a, b context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(a)
	stop := make(chan struct{})
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}

// Stop begins shutdown: the Handle moves to Stopping immediately and to
// Stopped once no ReadVideo call is still in flight. Stop does not block;
// callers poll HasStopped (matching the original player's delReaders
// polling loop) before removing the Handle.
func (h *Handle) Stop() {
	if !h.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	h.closeOnce.Do(func() { close(h.closeCh) })
	go h.finishStop()
}

func (h *Handle) finishStop() {
	for h.pending.Load() > 0 {
		time.Sleep(drainPollInterval)
	}
	h.state.CompareAndSwap(int32(StateStopping), int32(StateStopped))
}

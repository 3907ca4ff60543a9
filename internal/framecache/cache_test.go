package framecache

import (
	"context"
	"testing"

	"github.com/visiona/tlplay/internal/compositor"
	"github.com/visiona/tlplay/internal/editmodel"
	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/reader/sequence"
	"github.com/visiona/tlplay/internal/rimage"
)

type stubPlugin struct{}

func (stubPlugin) Name() string         { return "stub" }
func (stubPlugin) Extensions() []string { return []string{".st"} }
func (stubPlugin) Sniff(string) bool    { return false }
func (stubPlugin) Open(ctx context.Context, path string, opts reader.Options) (*reader.Handle, error) {
	info := reader.MediaInfo{
		VideoRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(1000, 24)),
		VideoRate:  24,
	}
	return reader.NewHandle(path, info, func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		return rimage.NewImage(1, 1, rimage.PixelTypeGray8), nil
	}), nil
}

func newTestCache(readAhead, readBehind int64) *Cache {
	reg := reader.NewRegistry()
	reg.Register(stubPlugin{})
	tl := &editmodel.Timeline{
		GlobalRate:  24,
		GlobalRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(200, 24)),
		Tracks: []editmodel.Track{{
			Kind: editmodel.TrackKindVideo,
			Items: []editmodel.TrackItem{{
				Kind:        editmodel.ItemKindClip,
				SourceRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(200, 24)),
				Ref:         editmodel.MediaRef{Kind: editmodel.MediaRefKindSingleFile, URL: "x.st"},
				Warp:        editmodel.LinearWarp{TimeScale: 1},
			}},
		}},
	}
	comp := compositor.New(tl, reg, sequence.NewGenerator(), nil, nil)
	return New(comp, readAhead, readBehind)
}

func TestUpdatePopulatesWindow(t *testing.T) {
	c := newTestCache(3, 2)
	playRange := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(200, 24))

	c.Update(context.Background(), rational.NewTime(50, 24), playRange, Forward)
	c.Wait()

	times := c.CachedTimes()
	if len(times) != 5 { // read_ahead + read_behind
		t.Fatalf("cached %d frames, want 5: %v", len(times), times)
	}
	for _, want := range []int64{48, 49, 50, 51, 52} {
		if _, ok := c.Get(rational.NewTime(want, 24)); !ok {
			t.Errorf("expected frame %d cached", want)
		}
	}
}

func TestUpdateEvictsOutsideWindow(t *testing.T) {
	c := newTestCache(1, 1)
	playRange := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(200, 24))

	c.Update(context.Background(), rational.NewTime(50, 24), playRange, Forward)
	c.Wait()
	if len(c.CachedTimes()) != 2 {
		t.Fatalf("expected 2 cached after first update, got %d", len(c.CachedTimes()))
	}

	c.Update(context.Background(), rational.NewTime(150, 24), playRange, Forward)
	c.Wait()

	if _, ok := c.Get(rational.NewTime(50, 24)); ok {
		t.Error("expected frame 50 evicted after jumping to 150")
	}
	if _, ok := c.Get(rational.NewTime(150, 24)); !ok {
		t.Error("expected frame 150 cached after update")
	}
}

func TestCachedRangesCoalesce(t *testing.T) {
	c := newTestCache(2, 2)
	playRange := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(200, 24))
	c.Update(context.Background(), rational.NewTime(10, 24), playRange, Forward)
	c.Wait()

	ranges := c.CachedRanges()
	if len(ranges) != 1 {
		t.Fatalf("expected one contiguous range, got %d: %+v", len(ranges), ranges)
	}
	if ranges[0].Start.Value != 8 || ranges[0].EndTimeInclusive().Value != 11 {
		t.Errorf("range = %+v, want [8,11]", ranges[0])
	}
}

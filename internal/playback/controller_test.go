package playback

import (
	"context"
	"testing"

	"github.com/visiona/tlplay/internal/compositor"
	"github.com/visiona/tlplay/internal/editmodel"
	"github.com/visiona/tlplay/internal/framecache"
	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/reader/sequence"
	"github.com/visiona/tlplay/internal/rimage"
)

type noopPlugin struct{}

func (noopPlugin) Name() string         { return "noop" }
func (noopPlugin) Extensions() []string { return []string{".np"} }
func (noopPlugin) Sniff(string) bool    { return false }
func (noopPlugin) Open(ctx context.Context, path string, opts reader.Options) (*reader.Handle, error) {
	info := reader.MediaInfo{VideoRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(1000, 24)), VideoRate: 24}
	return reader.NewHandle(path, info, func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		return rimage.NewImage(1, 1, rimage.PixelTypeGray8), nil
	}), nil
}

func newTestController(t *testing.T, r rational.TimeRange) *Controller {
	reg := reader.NewRegistry()
	reg.Register(noopPlugin{})
	tl := &editmodel.Timeline{
		GlobalRate:  24,
		GlobalRange: r,
		Tracks: []editmodel.Track{{
			Kind: editmodel.TrackKindVideo,
			Items: []editmodel.TrackItem{{
				Kind:        editmodel.ItemKindClip,
				SourceRange: r,
				Ref:         editmodel.MediaRef{Kind: editmodel.MediaRefKindSingleFile, URL: "x.np"},
				Warp:        editmodel.LinearWarp{TimeScale: 1},
			}},
		}},
	}
	comp := compositor.New(tl, reg, sequence.NewGenerator(), nil, nil)
	cache := framecache.New(comp, 2, 2)
	return New(comp, cache, r, 24)
}

func TestLoopModeWrapsForward(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SetLoop(LoopMode)

	got, stopped := c.loopPlayback(rational.NewTime(24, 24), Forward)
	if stopped {
		t.Fatal("LoopMode should never stop")
	}
	if !got.Equal(rational.NewTime(0, 24)) {
		t.Errorf("wrapped time = %v, want 0", got)
	}
}

func TestOnceModeStopsAtEnd(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SetLoop(Once)

	got, stopped := c.loopPlayback(rational.NewTime(30, 24), Forward)
	if !stopped {
		t.Fatal("Once should stop past the end")
	}
	if !got.Equal(r.EndTimeInclusive()) {
		t.Errorf("clamped time = %v, want end inclusive %v", got, r.EndTimeInclusive())
	}
}

func TestOnceModeStopsAtStartReverse(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SetLoop(Once)

	got, stopped := c.loopPlayback(rational.NewTime(-5, 24), Reverse)
	if !stopped {
		t.Fatal("Once should stop before the start")
	}
	if !got.Equal(r.Start) {
		t.Errorf("clamped time = %v, want start", got)
	}
}

func TestPingPongReflectsAtEnd(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SetLoop(PingPong)

	got, stopped := c.loopPlayback(rational.NewTime(30, 24), Forward)
	if stopped {
		t.Fatal("PingPong should never stop")
	}
	if !got.Equal(r.EndTimeInclusive()) {
		t.Errorf("reflected time = %v, want end inclusive", got)
	}
	if c.Direction() != Reverse {
		t.Errorf("direction after reflecting at end = %v, want Reverse", c.Direction())
	}
}

func TestPingPongReflectsAtStart(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SetLoop(PingPong)
	c.direction = Reverse

	got, stopped := c.loopPlayback(rational.NewTime(-3, 24), Reverse)
	if stopped {
		t.Fatal("PingPong should never stop")
	}
	if !got.Equal(r.Start) {
		t.Errorf("reflected time = %v, want start", got)
	}
	if c.Direction() != Forward {
		t.Errorf("direction after reflecting at start = %v, want Forward", c.Direction())
	}
}

func TestSeekToWrapsIntoFullRange(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(10, 24), rational.NewTime(20, 24))
	c := newTestController(t, r)

	c.SeekTo(rational.NewTime(5, 24))
	if got := c.CurrentTime(); !got.Equal(r.EndTimeInclusive()) {
		t.Errorf("SeekTo before start = %v, want wrapped to end inclusive %v", got, r.EndTimeInclusive())
	}

	c.SeekTo(rational.NewTime(100, 24))
	if got := c.CurrentTime(); !got.Equal(r.Start) {
		t.Errorf("SeekTo past end = %v, want wrapped to start %v", got, r.Start)
	}

	c.SeekTo(rational.NewTime(15, 24))
	if got := c.CurrentTime(); !got.Equal(rational.NewTime(15, 24)) {
		t.Errorf("SeekTo inside range = %v, want unchanged 15", got)
	}
}

func TestTimeActionFrameNextAndPrev(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SeekTo(rational.NewTime(5, 24))

	c.TimeAction(ActionFrameNext)
	if got := c.CurrentTime(); !got.Equal(rational.NewTime(6, 24)) {
		t.Errorf("after FrameNext = %v, want 6", got)
	}

	c.TimeAction(ActionFramePrevX10)
	if got := c.CurrentTime(); !got.Equal(rational.LoopTime(rational.NewTime(-4, 24), r)) {
		t.Errorf("after FramePrevX10 = %v", got)
	}
}

func TestSetPlaybackOnceReversalAtBoundarySeeksToEnd(t *testing.T) {
	r := rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24))
	c := newTestController(t, r)
	c.SetLoop(Once)
	c.SeekTo(r.Start)

	c.SetPlayback(Reverse)
	if got := c.CurrentTime(); !got.Equal(r.EndTimeInclusive()) {
		t.Errorf("SetPlayback(Reverse) at start in Once mode should seek to end, got %v", got)
	}
}

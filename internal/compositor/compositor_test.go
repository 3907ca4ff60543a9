package compositor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/visiona/tlplay/internal/editmodel"
	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/reader/sequence"
	"github.com/visiona/tlplay/internal/rimage"
)

type countingPlugin struct {
	opens atomic.Int64
	decodes atomic.Int64
}

func (p *countingPlugin) Name() string          { return "counting" }
func (p *countingPlugin) Extensions() []string  { return []string{".ct"} }
func (p *countingPlugin) Sniff(string) bool     { return false }
func (p *countingPlugin) Open(ctx context.Context, path string, opts reader.Options) (*reader.Handle, error) {
	p.opens.Add(1)
	info := reader.MediaInfo{
		Video:      rimage.Info{Width: 4, Height: 4, PixelType: rimage.PixelTypeGray8},
		VideoRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(1000, 24)),
		VideoRate:  24,
	}
	decode := func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		p.decodes.Add(1)
		return rimage.NewImage(4, 4, rimage.PixelTypeGray8), nil
	}
	return reader.NewHandle(path, info, decode), nil
}

func singleClipTimeline(url string) *editmodel.Timeline {
	return &editmodel.Timeline{
		GlobalRate:  24,
		GlobalRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(48, 24)),
		Tracks: []editmodel.Track{
			{
				Kind: editmodel.TrackKindVideo,
				Items: []editmodel.TrackItem{
					{
						Kind:        editmodel.ItemKindClip,
						SourceRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(48, 24)),
						Ref:         editmodel.MediaRef{Kind: editmodel.MediaRefKindSingleFile, URL: url},
						Warp:        editmodel.LinearWarp{TimeScale: 1},
					},
				},
			},
		},
	}
}

func TestFrameReadsSingleClip(t *testing.T) {
	reg := reader.NewRegistry()
	p := &countingPlugin{}
	reg.Register(p)

	tl := singleClipTimeline("clip.ct")
	comp := New(tl, reg, sequence.NewGenerator(), nil, nil)

	f, err := comp.Frame(context.Background(), rational.NewTime(10, 24))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(f.Layers) != 1 || f.Layers[0].Image == nil {
		t.Fatalf("expected one populated layer, got %+v", f.Layers)
	}
	if got := p.opens.Load(); got != 1 {
		t.Errorf("plugin opened %d times, want 1", got)
	}
}

func TestFrameOutOfRangeErrors(t *testing.T) {
	reg := reader.NewRegistry()
	reg.Register(&countingPlugin{})
	tl := singleClipTimeline("clip.ct")
	comp := New(tl, reg, sequence.NewGenerator(), nil, nil)

	if _, err := comp.Frame(context.Background(), rational.NewTime(1000, 24)); err == nil {
		t.Fatal("expected error for out-of-range time")
	}
}

func TestReaderReusedAcrossFrames(t *testing.T) {
	reg := reader.NewRegistry()
	p := &countingPlugin{}
	reg.Register(p)
	tl := singleClipTimeline("clip.ct")
	comp := New(tl, reg, sequence.NewGenerator(), nil, nil)

	for i := int64(0); i < 5; i++ {
		if _, err := comp.Frame(context.Background(), rational.NewTime(i, 24)); err != nil {
			t.Fatalf("Frame(%d): %v", i, err)
		}
	}
	if got := p.opens.Load(); got != 1 {
		t.Errorf("plugin opened %d times across 5 frames, want 1", got)
	}
	if got := comp.OpenReaderCount(); got != 1 {
		t.Errorf("open reader count = %d, want 1", got)
	}
}

func TestGCStopsReaderOutsideActiveRange(t *testing.T) {
	reg := reader.NewRegistry()
	p := &countingPlugin{}
	reg.Register(p)
	tl := singleClipTimeline("clip.ct")
	comp := New(tl, reg, sequence.NewGenerator(), nil, nil)

	if _, err := comp.Frame(context.Background(), rational.NewTime(0, 24)); err != nil {
		t.Fatal(err)
	}
	if comp.OpenReaderCount() != 1 {
		t.Fatal("expected reader open after first frame")
	}

	comp.SetActiveRanges(nil)
	comp.GC()

	if comp.OpenReaderCount() != 0 {
		t.Errorf("expected reader stopped after GC with empty active ranges, count = %d", comp.OpenReaderCount())
	}
}

type recordingPlugin struct {
	lastReadTime rational.Time
}

func (p *recordingPlugin) Name() string         { return "recording" }
func (p *recordingPlugin) Extensions() []string { return []string{".rc"} }
func (p *recordingPlugin) Sniff(string) bool    { return false }
func (p *recordingPlugin) Open(ctx context.Context, path string, opts reader.Options) (*reader.Handle, error) {
	info := reader.MediaInfo{
		Video:      rimage.Info{Width: 4, Height: 4, PixelType: rimage.PixelTypeGray8},
		VideoRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(1000, 24)),
		VideoRate:  24,
	}
	decode := func(ctx context.Context, t rational.Time) (*rimage.Image, error) {
		p.lastReadTime = t
		return rimage.NewImage(4, 4, rimage.PixelTypeGray8), nil
	}
	return reader.NewHandle(path, info, decode), nil
}

func TestReadClipFrameAppliesSourceOffset(t *testing.T) {
	reg := reader.NewRegistry()
	p := &recordingPlugin{}
	reg.Register(p)

	tl := &editmodel.Timeline{
		GlobalRate:  24,
		GlobalRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(48, 24)),
		Tracks: []editmodel.Track{
			{
				Kind: editmodel.TrackKindVideo,
				Items: []editmodel.TrackItem{
					{
						Kind:         editmodel.ItemKindClip,
						SourceRange:  rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24)),
						Ref:          editmodel.MediaRef{Kind: editmodel.MediaRefKindSingleFile, URL: "offset.rc"},
						Warp:         editmodel.LinearWarp{TimeScale: 1},
						SourceOffset: rational.NewTime(100, 24),
					},
				},
			},
		},
	}
	comp := New(tl, reg, sequence.NewGenerator(), nil, nil)

	if _, err := comp.Frame(context.Background(), rational.NewTime(10, 24)); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	// clip-local time is 10 (pt - SourceRange.Start); media time is
	// SourceOffset(100) + 10 = 110.
	if want := rational.NewTime(110, 24); !p.lastReadTime.Equal(want) {
		t.Errorf("read time = %v, want %v", p.lastReadTime, want)
	}
}

func TestDissolveTransitionValue(t *testing.T) {
	reg := reader.NewRegistry()
	p := &countingPlugin{}
	reg.Register(p)

	// clip A [0,24), transition [24,28) in_offset=2 out_offset=2, clip B [28,48)
	tl := &editmodel.Timeline{
		GlobalRate:  24,
		GlobalRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(48, 24)),
		Tracks: []editmodel.Track{
			{
				Kind: editmodel.TrackKindVideo,
				Items: []editmodel.TrackItem{
					{
						Kind:        editmodel.ItemKindClip,
						SourceRange: rational.NewTimeRange(rational.NewTime(0, 24), rational.NewTime(24, 24)),
						Ref:         editmodel.MediaRef{Kind: editmodel.MediaRefKindSingleFile, URL: "a.ct"},
						Warp:        editmodel.LinearWarp{TimeScale: 1},
					},
					{
						Kind:           editmodel.ItemKindTransition,
						SourceRange:    rational.NewTimeRange(rational.NewTime(24, 24), rational.NewTime(4, 24)),
						TransitionKind: editmodel.TransitionKindDissolve,
						InOffset:       rational.NewTime(2, 24),
						OutOffset:      rational.NewTime(2, 24),
					},
					{
						Kind:        editmodel.ItemKindClip,
						SourceRange: rational.NewTimeRange(rational.NewTime(28, 24), rational.NewTime(20, 24)),
						Ref:         editmodel.MediaRef{Kind: editmodel.MediaRefKindSingleFile, URL: "b.ct"},
						Warp:        editmodel.LinearWarp{TimeScale: 1},
					},
				},
			},
		},
	}

	comp := New(tl, reg, sequence.NewGenerator(), nil, nil)

	// transitionStart = clipA.EndInclusive(23) - in_offset(2) = 21.
	// At pt=23 (still within clip A, just before the transition window
	// opens): pt(23) > transitionStart(21), so the dissolve should
	// already be blending; transition_value = (23-21)/(2+2+1) = 2/5 = 0.4.
	f, err := comp.Frame(context.Background(), rational.NewTime(23, 24))
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(f.Layers) != 1 {
		t.Fatalf("expected one layer, got %d", len(f.Layers))
	}
	layer := f.Layers[0]
	if layer.ImageB == nil {
		t.Fatal("expected ImageB set during transition overlap")
	}
	want := 0.4
	if diff := layer.TransitionValue - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TransitionValue = %v, want %v", layer.TransitionValue, want)
	}
}

// Package compositor implements the Timeline Compositor: given a
// presentation time, it walks every track of an editmodel.Timeline,
// resolves each track's active clip (applying LinearWarp time remapping
// and Dissolve transition blending), issues the necessary Reader Handle
// requests concurrently, and assembles the results into a Frame —
// omitting any layer whose read failed rather than failing the whole
// frame.
//
// The frame-assembly algorithm and the reader lifecycle management
// (stopReaders/delReaders) are ported line-for-line in spirit from the
// original compositor's Private::frameRequests, Private::readVideoFrame,
// Private::stopReaders, and Private::delReaders.
package compositor

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/visiona/tlplay/internal/editmodel"
	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/reader/sequence"
	"github.com/visiona/tlplay/internal/rimage"
	"github.com/visiona/tlplay/internal/tllog"
)

// Compositor owns the timeline being played and every Reader Handle
// opened to service it.
type Compositor struct {
	timeline  *editmodel.Timeline
	registry  *reader.Registry
	generator *sequence.GeneratorPlugin
	opts      reader.Options
	log       *tllog.Hub

	mu             sync.Mutex
	readers        map[string]*managedReader
	stoppedReaders []*managedReader
	activeRanges   []rational.TimeRange
}

type managedReader struct {
	handle      *reader.Handle
	clipRange   rational.TimeRange // the widest range (including adjacent transition overlap) this reader currently serves
}

// New constructs a Compositor for timeline, using registry to open
// SingleFile/ImageSequence media and generator for Generator media.
func New(timeline *editmodel.Timeline, registry *reader.Registry, generator *sequence.GeneratorPlugin, opts reader.Options, log *tllog.Hub) *Compositor {
	if log == nil {
		log = tllog.NewHub(nil)
	}
	return &Compositor{
		timeline:  timeline,
		registry:  registry,
		generator: generator,
		opts:      opts,
		log:       log,
		readers:   make(map[string]*managedReader),
	}
}

// Frame assembles and returns the composited Frame at presentationTime.
// Per-track layer failures are logged and omitted; Frame itself only
// returns an error if presentationTime is entirely outside the
// timeline's GlobalRange.
func (c *Compositor) Frame(ctx context.Context, presentationTime rational.Time) (*Frame, error) {
	if !c.timeline.GlobalRange.Contains(presentationTime) {
		return nil, fmt.Errorf("compositor: time %v outside global range %v", presentationTime, c.timeline.GlobalRange)
	}

	layers := make([]FrameLayer, len(c.timeline.Tracks))
	g, gctx := errgroup.WithContext(ctx)
	for i, track := range c.timeline.Tracks {
		if track.Kind != editmodel.TrackKindVideo {
			continue
		}
		i, track := i, track
		g.Go(func() error {
			if layer, ok := c.assembleTrackLayer(gctx, track, presentationTime); ok {
				layers[i] = layer
			}
			return nil
		})
	}
	// Every g.Go func above returns nil, so Wait does not return an error
	// here: assembleTrackLayer swallows and logs every per-layer error
	// itself (including cancellation), matching the original's empty
	// catch block around frame assembly.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]FrameLayer, 0, len(layers))
	for _, l := range layers {
		if l.Image == nil && l.ImageB == nil {
			continue
		}
		out = append(out, l)
	}
	return &Frame{Time: presentationTime, Layers: out}, nil
}

// assembleTrackLayer resolves one track's contribution at pt. Returns
// ok=false if the track has nothing at pt (empty/gap) or if the read
// failed — in both cases the caller omits the layer rather than failing
// the frame.
func (c *Compositor) assembleTrackLayer(ctx context.Context, track editmodel.Track, pt rational.Time) (FrameLayer, bool) {
	idx := track.ItemAt(pt)
	if idx < 0 {
		return FrameLayer{}, false
	}
	item := track.Items[idx]
	switch item.Kind {
	case editmodel.ItemKindGap:
		return FrameLayer{}, false
	case editmodel.ItemKindTransition:
		// A bare transition item itself never owns pixel data; its
		// effect is folded into the neighboring clips below.
		return FrameLayer{}, false
	case editmodel.ItemKindClip:
		return c.assembleClipLayer(ctx, track, idx, pt)
	default:
		return FrameLayer{}, false
	}
}

func (c *Compositor) assembleClipLayer(ctx context.Context, track editmodel.Track, idx int, pt rational.Time) (FrameLayer, bool) {
	item := track.Items[idx]
	prev, next := track.NeighborsOf(idx)

	img, err := c.readClipFrame(ctx, item, pt)
	if err != nil {
		c.log.Error("compositor", err)
		return FrameLayer{}, false
	}
	layer := FrameLayer{Image: img}

	clipRange := item.SourceRange

	// Right-adjacent transition: this clip is the "A" side fading out.
	if next != nil && next.Kind == editmodel.ItemKindTransition {
		transitionStart := clipRange.EndTimeInclusive().Sub(next.InOffset)
		if pt.Greater(transitionStart) {
			if bIdx := idx + 2; bIdx < len(track.Items) {
				clipB := track.Items[bIdx]
				imgB, err := c.readClipFrame(ctx, clipB, pt)
				if err == nil {
					denom := float64(next.InOffset.Value + next.OutOffset.Value + 1)
					value := float64(pt.Sub(transitionStart).Value) / denom
					layer.ImageB = imgB
					layer.Transition = next.TransitionKind
					layer.TransitionValue = value
				} else {
					c.log.Error("compositor", err)
				}
			}
		}
	}

	// Left-adjacent transition: this clip is the "B" side fading in.
	if prev != nil && prev.Kind == editmodel.ItemKindTransition {
		transitionEnd := clipRange.Start.Add(prev.OutOffset)
		if pt.Less(transitionEnd) {
			if aIdx := idx - 2; aIdx >= 0 {
				clipA := track.Items[aIdx]
				imgA, err := c.readClipFrame(ctx, clipA, pt)
				if err == nil {
					denom := float64(prev.InOffset.Value + prev.OutOffset.Value + 1)
					value := 1.0 - (float64(pt.Sub(clipRange.Start).Value+prev.InOffset.Value+1) / denom)
					// This clip (B side) is the primary image here; the
					// A-side clip becomes ImageB, mirroring the original's
					// convention that data.image is always "this" clip
					// and data.imageB is always the other side.
					layer.ImageB = imgA
					layer.Transition = prev.TransitionKind
					layer.TransitionValue = value
				} else {
					c.log.Error("compositor", err)
				}
			}
		}
	}

	return layer, true
}

// readClipFrame resolves item's MediaRef to a Handle (opening it lazily
// if needed), applies its LinearWarp, rescales to the reader's native
// rate with a floor, and issues the ReadVideo request.
func (c *Compositor) readClipFrame(ctx context.Context, item editmodel.TrackItem, pt rational.Time) (*rimage.Image, error) {
	clipTime := pt.Sub(item.SourceRange.Start)
	offset := item.SourceOffset
	if offset.Rate == 0 {
		// Zero value: no source_offset was set (hand-built TrackItem, or
		// an edit list that omits it), meaning the clip's media starts at
		// frame zero — give it the clip's own rate so Add below doesn't
		// try to rescale against a meaningless rate of zero.
		offset = rational.Time{Value: 0, Rate: item.SourceRange.Start.Rate}
	}
	mediaTime := offset.Add(clipTime)
	warped := mediaTime
	if !item.Warp.IsIdentity() {
		warped = item.Warp.Apply(mediaTime)
	}

	mr, err := c.getOrOpenReader(ctx, item.Ref)
	if err != nil {
		return nil, err
	}
	// pt itself is added too: during a transition this reader also serves
	// times in the neighbouring clip's overlap, outside item.SourceRange.
	c.extendReaderRange(mr, unionRange(item.SourceRange, rational.TimeRange{Start: pt, Duration: rational.Time{Value: 1, Rate: pt.Rate}}))

	readTime := warped.Rescaled(mr.handle.Info().VideoRate).Floor()
	img, err := mr.handle.ReadVideo(ctx, readTime)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (c *Compositor) getOrOpenReader(ctx context.Context, ref editmodel.MediaRef) (*managedReader, error) {
	key := readerKey(ref)

	c.mu.Lock()
	if mr, ok := c.readers[key]; ok {
		c.mu.Unlock()
		return mr, nil
	}
	c.mu.Unlock()

	handle, err := c.openReader(ctx, ref)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if mr, ok := c.readers[key]; ok {
		c.mu.Unlock()
		handle.Stop()
		return mr, nil
	}
	mr := &managedReader{handle: handle}
	c.readers[key] = mr
	c.mu.Unlock()

	return mr, nil
}

func (c *Compositor) openReader(ctx context.Context, ref editmodel.MediaRef) (*reader.Handle, error) {
	switch ref.Kind {
	case editmodel.MediaRefKindGenerator:
		rate := int64(24)
		if ref.Rate > 0 {
			rate = int64(ref.Rate)
		}
		return c.generator.OpenGenerator(ref.GeneratorKind, ref.GeneratorArgs, 1920, 1080, rate), nil
	}
	// The timeline's own rate wins over any configured DefaultSpeed
	// fallback; the fallback only applies when the timeline has no rate.
	opts := c.opts
	if c.timeline.GlobalRate > 0 {
		opts = reader.Options{reader.OptDefaultSpeed: fmt.Sprintf("%d", c.timeline.GlobalRate)}.WithDefault(c.opts)
	}
	switch ref.Kind {
	case editmodel.MediaRefKindImageSequence:
		return c.registry.Open(ctx, sequenceFirstFramePath(ref), opts)
	default:
		return c.registry.Open(ctx, ref.URL, opts)
	}
}

func sequenceFirstFramePath(ref editmodel.MediaRef) string {
	numStr := fmt.Sprintf("%0*d", ref.FrameZeroPadding, ref.StartFrame)
	return ref.TargetURLBase + ref.NamePrefix + numStr + ref.NameSuffix
}

func readerKey(ref editmodel.MediaRef) string {
	switch ref.Kind {
	case editmodel.MediaRefKindGenerator:
		return "generator:" + ref.GeneratorKind
	case editmodel.MediaRefKindImageSequence:
		return "seq:" + ref.TargetURLBase + ref.NamePrefix + ref.NameSuffix
	default:
		return "file:" + ref.URL
	}
}

func (c *Compositor) extendReaderRange(mr *managedReader, r rational.TimeRange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mr.clipRange.Duration.Value == 0 && mr.clipRange.Start.Value == 0 {
		mr.clipRange = r
		return
	}
	mr.clipRange = unionRange(mr.clipRange, r)
}

func unionRange(a, b rational.TimeRange) rational.TimeRange {
	start := a.Start
	if b.Start.Less(start) {
		start = b.Start
	}
	end := a.EndTimeExclusive()
	if b.EndTimeExclusive().Greater(end) {
		end = b.EndTimeExclusive()
	}
	return rational.TimeRange{Start: start, Duration: end.Sub(start)}
}

// Package editmodel implements the immutable edit-list tree the
// Timeline Compositor walks: Timeline -> Track -> TrackItem (Clip,
// Transition, Gap), with MediaRef variants and LinearWarp time
// remapping. Trees are flattened into slices with explicit parent
// indices rather than parent pointers, per the sibling/parent-navigation
// design note: walking "neighbors of a clip" is then a slice index
// lookup, not a pointer chase, and the whole tree stays trivially
// copyable and comparable in tests.
package editmodel

import "github.com/visiona/tlplay/internal/rational"

// TrackKind distinguishes video from audio tracks. Audio tracks are
// modeled (MediaInfo.HasAudio, TrackKindAudio) but never composed by the
// Timeline Compositor; audio composition is an explicit non-goal.
type TrackKind int

const (
	TrackKindVideo TrackKind = iota
	TrackKindAudio
)

// ItemKind distinguishes the three TrackItem variants.
type ItemKind int

const (
	ItemKindClip ItemKind = iota
	ItemKindTransition
	ItemKindGap
)

// TransitionKind distinguishes supported transition effects.
type TransitionKind int

const (
	TransitionKindNone TransitionKind = iota
	TransitionKindDissolve
)

// MediaRefKind distinguishes the three MediaRef variants.
type MediaRefKind int

const (
	MediaRefKindSingleFile MediaRefKind = iota
	MediaRefKindImageSequence
	MediaRefKindGenerator
)

// LinearWarp remaps a clip's presentation time to its source media time
// as time_scale*t + time_offset, the one time-warp effect this core
// supports (matching the original's TimeTransform-applied-to model).
type LinearWarp struct {
	TimeScale  float64
	TimeOffset rational.Time
}

// Apply remaps t (a clip-local presentation time) into source media time.
func (w LinearWarp) Apply(t rational.Time) rational.Time {
	if w.TimeScale == 0 {
		w.TimeScale = 1
	}
	scaled := rational.Time{
		Value: int64(float64(t.Value) * w.TimeScale),
		Rate:  t.Rate,
	}
	return scaled.Add(w.TimeOffset)
}

// IsIdentity reports whether w has no effect.
func (w LinearWarp) IsIdentity() bool {
	return (w.TimeScale == 0 || w.TimeScale == 1) && w.TimeOffset.Value == 0
}

// MediaRef identifies where a Clip's pixel data comes from.
type MediaRef struct {
	Kind MediaRefKind

	// SingleFile / ImageSequence / Generator fields. Only the fields
	// relevant to Kind are meaningful; this flat-struct-with-kind-tag
	// shape mirrors TrackItem below and keeps JSON decoding simple.
	URL string // SingleFile: path to the media file.

	TargetURLBase     string // ImageSequence
	NamePrefix        string
	NameSuffix        string
	StartFrame        int64
	FrameZeroPadding  int
	Rate              float64

	GeneratorKind string            // Generator: "solid", "checker", ...
	GeneratorArgs map[string]string // Generator: free-form parameters.

	AvailableRange rational.TimeRange
}

// TrackItem is one element of a Track's timeline: a Clip, a Transition,
// or a Gap. ParentTrack is the index of the owning Track in
// Timeline.Tracks; it is set by the loader, not by callers constructing
// trees by hand for tests (those may leave it at zero if there is only
// one track).
type TrackItem struct {
	Kind ItemKind

	// SourceRange is this item's range on the track's own timeline.
	SourceRange rational.TimeRange

	// Clip fields. SourceOffset is the clip's source_range.start: how far
	// into the referenced media this clip's first frame is drawn from.
	// Clip-local media time is SourceOffset + (pt - SourceRange.Start), so
	// a clip trimmed into the middle of its media (SourceOffset > 0) reads
	// from the right place instead of always starting the media at frame
	// zero.
	Ref          MediaRef
	Warp         LinearWarp
	SourceOffset rational.Time

	// Transition fields.
	TransitionKind TransitionKind
	InOffset       rational.Time // overlap consumed from the left clip
	OutOffset      rational.Time // overlap consumed from the right clip

	// Gap has no extra fields: it occupies SourceRange with nothing to
	// read, and the Compositor simply omits any layer for it.

	ParentTrack int
}

// Track is an ordered sequence of TrackItems of one Kind.
type Track struct {
	Kind  TrackKind
	Name  string
	Items []TrackItem
}

// Timeline is the root of the edit model: an ordered list of Tracks,
// composited bottom-to-top (Tracks[0] is the bottom layer), plus the
// global frame rate presentation time is expressed in.
type Timeline struct {
	Tracks       []Track
	GlobalRate   int64
	GlobalRange  rational.TimeRange
}

// TrimmedRangeInParent returns item's range on its track, identical to
// SourceRange since this model does not separately track a "parent"
// coordinate system distinct from the track's own — kept as a named
// accessor mirroring the original's trimmed_range_in_parent(). The
// Compositor itself reads SourceRange directly.
func (item TrackItem) TrimmedRangeInParent() rational.TimeRange {
	return item.SourceRange
}

// NeighborsOf returns the items immediately before and after item within
// track, or nil if item is first/last. Both may be nil.
func (t Track) NeighborsOf(index int) (prev, next *TrackItem) {
	if index > 0 {
		prev = &t.Items[index-1]
	}
	if index < len(t.Items)-1 {
		next = &t.Items[index+1]
	}
	return prev, next
}

// ItemAt returns the index of the TrackItem in track containing
// presentation time t, or -1 if none does.
func (t Track) ItemAt(pt rational.Time) int {
	for i, item := range t.Items {
		if item.SourceRange.Contains(pt) {
			return i
		}
	}
	return -1
}

// Duration returns the track's total extent: the exclusive end time of
// its last item, or a zero time at rate 1 if the track is empty.
func (t Track) Duration() rational.Time {
	if len(t.Items) == 0 {
		return rational.Time{Value: 0, Rate: 1}
	}
	last := t.Items[len(t.Items)-1]
	return last.SourceRange.EndTimeExclusive()
}

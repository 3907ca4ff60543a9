package editmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/tlerrors"
)

// wireTimeline/wireTrack/wireItem/wireRef mirror Timeline/Track/
// TrackItem/MediaRef but with JSON tags and a "kind"/"type" discriminator
// field, decoded here and converted into the public model types. Keeping
// the wire shape separate from the in-memory shape means the in-memory
// types stay free of json tags and of the wire format's versioning
// concerns.
type wireTime struct {
	Value int64 `json:"value"`
	Rate  int64 `json:"rate"`
}

func (w wireTime) toTime() rational.Time { return rational.NewTime(w.Value, w.Rate) }

type wireRange struct {
	Start    wireTime `json:"start"`
	Duration wireTime `json:"duration"`
}

func (w wireRange) toRange() rational.TimeRange {
	return rational.NewTimeRange(w.Start.toTime(), w.Duration.toTime())
}

type wireTimeline struct {
	GlobalRate  int64       `json:"global_rate"`
	GlobalRange wireRange   `json:"global_range"`
	Tracks      []wireTrack `json:"tracks"`
}

type wireTrack struct {
	Kind  string      `json:"kind"` // "video" | "audio"
	Name  string      `json:"name"`
	Items []wireItem  `json:"items"`
}

type wireItem struct {
	Kind string `json:"kind"` // "clip" | "transition" | "gap"

	SourceRange wireRange `json:"source_range"`

	// clip
	Ref          *wireRef  `json:"ref,omitempty"`
	Warp         *wireWarp `json:"warp,omitempty"`
	SourceOffset *wireTime `json:"source_offset,omitempty"`

	// transition
	TransitionKind string    `json:"transition_kind,omitempty"` // "dissolve"
	InOffset       *wireTime `json:"in_offset,omitempty"`
	OutOffset      *wireTime `json:"out_offset,omitempty"`
}

type wireWarp struct {
	TimeScale  float64  `json:"time_scale"`
	TimeOffset wireTime `json:"time_offset"`
}

type wireRef struct {
	Type string `json:"type"` // "single_file" | "image_sequence" | "generator"

	URL string `json:"url,omitempty"`

	TargetURLBase    string `json:"target_url_base,omitempty"`
	NamePrefix       string `json:"name_prefix,omitempty"`
	NameSuffix       string `json:"name_suffix,omitempty"`
	StartFrame       int64  `json:"start_frame,omitempty"`
	FrameZeroPadding int    `json:"frame_zero_padding,omitempty"`
	Rate             float64 `json:"rate,omitempty"`

	GeneratorKind string            `json:"generator_kind,omitempty"`
	GeneratorArgs map[string]string `json:"generator_args,omitempty"`

	AvailableRange *wireRange `json:"available_range,omitempty"`
}

// Load reads path as a JSON edit list and returns the decoded Timeline.
// Relative media URLs in SingleFile/ImageSequence refs are resolved
// against path's directory, matching the original compositor's fixPath
// behavior so edit lists remain portable across machines.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tlerrors.ErrFileOpenFailed, err)
	}

	var wt wireTimeline
	if err := json.Unmarshal(data, &wt); err != nil {
		return nil, fmt.Errorf("%w: %v", tlerrors.ErrInvalidEditList, err)
	}

	base := filepath.Dir(path)
	tl, err := fromWire(wt, base)
	if err != nil {
		return nil, err
	}
	return tl, nil
}

func fromWire(wt wireTimeline, base string) (*Timeline, error) {
	if wt.GlobalRate <= 0 {
		return nil, fmt.Errorf("%w: global_rate must be > 0", tlerrors.ErrInvalidEditList)
	}
	if wt.GlobalRange.Start.Rate <= 0 || wt.GlobalRange.Duration.Rate <= 0 {
		return nil, fmt.Errorf("%w: global_range rates must be > 0", tlerrors.ErrInvalidEditList)
	}
	tl := &Timeline{
		GlobalRate:  wt.GlobalRate,
		GlobalRange: wt.GlobalRange.toRange(),
	}

	for trackIdx, wtrack := range wt.Tracks {
		track := Track{Name: wtrack.Name}
		switch wtrack.Kind {
		case "video", "":
			track.Kind = TrackKindVideo
		case "audio":
			track.Kind = TrackKindAudio
		default:
			return nil, fmt.Errorf("%w: track %d: unknown kind %q", tlerrors.ErrInvalidEditList, trackIdx, wtrack.Kind)
		}

		for itemIdx, witem := range wtrack.Items {
			item, err := itemFromWire(witem, base)
			if err != nil {
				return nil, fmt.Errorf("%w: track %d item %d: %v", tlerrors.ErrInvalidEditList, trackIdx, itemIdx, err)
			}
			item.ParentTrack = trackIdx
			track.Items = append(track.Items, item)
		}
		tl.Tracks = append(tl.Tracks, track)
	}
	return tl, nil
}

func itemFromWire(w wireItem, base string) (TrackItem, error) {
	switch w.Kind {
	case "clip", "transition", "gap":
	default:
		return TrackItem{}, fmt.Errorf("unknown item kind %q", w.Kind)
	}
	if w.SourceRange.Start.Rate <= 0 || w.SourceRange.Duration.Rate <= 0 {
		return TrackItem{}, fmt.Errorf("%s: source_range rates must be > 0", w.Kind)
	}
	item := TrackItem{SourceRange: w.SourceRange.toRange()}

	switch w.Kind {
	case "clip":
		item.Kind = ItemKindClip
		if w.Ref == nil {
			return item, fmt.Errorf("clip missing ref")
		}
		ref, err := refFromWire(*w.Ref, base)
		if err != nil {
			return item, err
		}
		item.Ref = ref
		if w.Warp != nil {
			item.Warp = LinearWarp{TimeScale: w.Warp.TimeScale, TimeOffset: w.Warp.TimeOffset.toTime()}
		} else {
			item.Warp = LinearWarp{TimeScale: 1}
		}
		if w.SourceOffset != nil {
			item.SourceOffset = w.SourceOffset.toTime()
		} else {
			item.SourceOffset = rational.Time{Value: 0, Rate: item.SourceRange.Start.Rate}
		}

	case "transition":
		item.Kind = ItemKindTransition
		switch w.TransitionKind {
		case "dissolve", "":
			item.TransitionKind = TransitionKindDissolve
		default:
			return item, fmt.Errorf("unknown transition_kind %q", w.TransitionKind)
		}
		if w.InOffset != nil {
			item.InOffset = w.InOffset.toTime()
		}
		if w.OutOffset != nil {
			item.OutOffset = w.OutOffset.toTime()
		}

	case "gap":
		item.Kind = ItemKindGap

	default:
		return item, fmt.Errorf("unknown item kind %q", w.Kind)
	}

	return item, nil
}

func refFromWire(w wireRef, base string) (MediaRef, error) {
	ref := MediaRef{
		NamePrefix:       w.NamePrefix,
		NameSuffix:       w.NameSuffix,
		StartFrame:       w.StartFrame,
		FrameZeroPadding: w.FrameZeroPadding,
		Rate:             w.Rate,
		GeneratorKind:    w.GeneratorKind,
		GeneratorArgs:    w.GeneratorArgs,
	}
	if w.AvailableRange != nil {
		ref.AvailableRange = w.AvailableRange.toRange()
	}

	switch w.Type {
	case "single_file", "":
		ref.Kind = MediaRefKindSingleFile
		ref.URL = resolvePath(base, w.URL)
	case "image_sequence":
		ref.Kind = MediaRefKindImageSequence
		ref.TargetURLBase = resolvePath(base, w.TargetURLBase)
	case "generator":
		ref.Kind = MediaRefKindGenerator
	default:
		return ref, fmt.Errorf("unknown media ref type %q", w.Type)
	}
	return ref, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

package compositor

import (
	"github.com/visiona/tlplay/internal/editmodel"
	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/rimage"
)

// FrameLayer is one track's contribution to a composited Frame: a single
// decoded image, or a dissolve pair (Image, ImageB) plus the blend
// weight between them. A track with no item at the requested time (a
// Gap, or time outside every item) contributes no layer at all.
type FrameLayer struct {
	Image *rimage.Image

	// ImageB and TransitionValue are set only while inside a Dissolve
	// transition's overlap window; a Renderer blends Image and ImageB by
	// TransitionValue (0 = pure Image, 1 = pure ImageB).
	ImageB          *rimage.Image
	Transition      editmodel.TransitionKind
	TransitionValue float64
}

// Frame is the Timeline Compositor's output for one presentation time:
// every track's layer, bottom to top, with any track that had nothing to
// contribute simply absent from the slice — spec's "layer omission,
// frame still delivered" policy applies to decode failures the same way
// it applies to gaps.
type Frame struct {
	Time   rational.Time
	Layers []FrameLayer
}

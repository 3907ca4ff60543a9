package sequence

import (
	"context"
	"image/color"
	"math"
	"strconv"

	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/rimage"
)

// GeneratorPlugin synthesizes test-pattern frames with no backing file,
// the Go analogue of the original's Generator MediaReference — useful
// for gaps, color bars, and synthetic test timelines. It never matches
// by extension or Sniff: callers construct it directly for a Generator
// MediaRef rather than going through Registry.Open.
type GeneratorPlugin struct{}

// NewGenerator returns a GeneratorPlugin.
func NewGenerator() *GeneratorPlugin { return &GeneratorPlugin{} }

func (g *GeneratorPlugin) Name() string         { return "generator" }
func (g *GeneratorPlugin) Extensions() []string { return nil }
func (g *GeneratorPlugin) Sniff(string) bool    { return false }

// OpenGenerator opens a synthetic source of kind (currently "solid" or
// "checker") with the given args and rate, returning a Handle whose
// ReadVideo always succeeds with a generated frame.
func (g *GeneratorPlugin) OpenGenerator(kind string, args map[string]string, width, height int, rate int64) *reader.Handle {
	info := reader.MediaInfo{
		Video: rimage.Info{
			Width:     width,
			Height:    height,
			PixelType: rimage.PixelTypeRGBA8,
		},
		VideoRange: rational.NewTimeRange(rational.NewTime(0, rate), rational.NewTime(math.MaxInt32, rate)),
		VideoRate:  rate,
	}

	decode := func(ctx context.Context, readTime rational.Time) (*rimage.Image, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		switch kind {
		case "checker":
			return renderChecker(width, height, args), nil
		default:
			return renderSolid(width, height, args), nil
		}
	}

	return reader.NewHandle("generator:"+kind, info, decode)
}

func renderSolid(w, h int, args map[string]string) *rimage.Image {
	c := colorFromArgs(args)
	img := rimage.NewImage(w, h, rimage.PixelTypeRGBA8)
	for i := 0; i < len(img.Data); i += 4 {
		img.Data[i+0] = c.R
		img.Data[i+1] = c.G
		img.Data[i+2] = c.B
		img.Data[i+3] = c.A
	}
	return img
}

func renderChecker(w, h int, args map[string]string) *rimage.Image {
	cell, _ := strconv.Atoi(args["cell_size"])
	if cell <= 0 {
		cell = 16
	}
	a := color.RGBA{R: 32, G: 32, B: 32, A: 255}
	b := color.RGBA{R: 220, G: 220, B: 220, A: 255}

	img := rimage.NewImage(w, h, rimage.PixelTypeRGBA8)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := a
			if ((x/cell)+(y/cell))%2 == 0 {
				c = b
			}
			i := (y*w + x) * 4
			img.Data[i+0] = c.R
			img.Data[i+1] = c.G
			img.Data[i+2] = c.B
			img.Data[i+3] = c.A
		}
	}
	return img
}

func colorFromArgs(args map[string]string) color.RGBA {
	r, _ := strconv.Atoi(args["r"])
	g, _ := strconv.Atoi(args["g"])
	b, _ := strconv.Atoi(args["b"])
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}

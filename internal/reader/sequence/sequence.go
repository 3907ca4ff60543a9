// Package sequence implements the built-in image-sequence Reader Plugin:
// it decodes a numbered run of PNG/JPEG files on disk into Frames,
// resizing with golang.org/x/image/draw when a clip's declared
// MediaInfo disagrees with the file's native dimensions. Decode and
// resize shape are grounded on
// ideamans-go-loadshow/pkg/adapters/ggrenderer's DecodeImage/ResizeImage
// pair.
package sequence

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ximagedraw "golang.org/x/image/draw"

	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/reader"
	"github.com/visiona/tlplay/internal/rimage"
	"github.com/visiona/tlplay/internal/tlerrors"
)

// Plugin implements reader.Plugin for zero-padded numbered image
// sequences named "<prefix><NNN...><suffix>" inside a single directory.
type Plugin struct{}

// New returns a Plugin ready to register with a Registry.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "sequence" }

func (p *Plugin) Extensions() []string { return []string{".png", ".jpg", ".jpeg"} }

func (p *Plugin) Sniff(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".png" || ext == ".jpg" || ext == ".jpeg"
}

// seqLayout describes the naming convention needed to address frame N
// of a sequence. Plugin.Open receives the first frame's path
// (target_url_base + name_prefix + zero_pad(start_frame) + name_suffix);
// it infers prefix/suffix/padding/directory from that single path, the
// same fixPath-style inference the original ImageSequenceReference
// getPath builder assumes a caller performs in reverse.
type seqLayout struct {
	dir        string
	prefix     string
	suffix     string
	padding    int
	startFrame int64
}

// Open opens the sequence whose first file is path, probing its
// dimensions and establishing the frame-number naming convention used by
// subsequent ReadVideo calls.
func (p *Plugin) Open(ctx context.Context, path string, opts reader.Options) (*reader.Handle, error) {
	layout, err := inferLayout(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tlerrors.ErrFileOpenFailed, err)
	}

	rate := int64(24)
	if v, ok := opts.Get(reader.OptDefaultSpeed); ok {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil && f > 0 {
			rate = int64(f)
		}
	}

	count, err := countFrames(layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tlerrors.ErrFileOpenFailed, err)
	}

	firstImg, err := decodeFile(framePath(layout, layout.startFrame))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tlerrors.ErrFileOpenFailed, err)
	}
	bounds := firstImg.Bounds()

	info := reader.MediaInfo{
		Video: rimage.Info{
			Width:     bounds.Dx(),
			Height:    bounds.Dy(),
			PixelType: rimage.PixelTypeRGBA8,
		},
		VideoRange: rational.NewTimeRange(rational.NewTime(0, rate), rational.NewTime(count, rate)),
		VideoRate:  rate,
	}

	decode := func(ctx context.Context, readTime rational.Time) (*rimage.Image, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		frameNum := layout.startFrame + readTime.Value
		img, err := decodeFile(framePath(layout, frameNum))
		if err != nil {
			return nil, err
		}
		return toRImage(img, info.Video.Width, info.Video.Height)
	}

	return reader.NewHandle(path, info, decode), nil
}

func inferLayout(path string) (seqLayout, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	digitsEnd := len(stem)
	digitsStart := digitsEnd
	for digitsStart > 0 && stem[digitsStart-1] >= '0' && stem[digitsStart-1] <= '9' {
		digitsStart--
	}
	if digitsStart == digitsEnd {
		return seqLayout{}, fmt.Errorf("sequence: %q has no trailing frame number", base)
	}

	frameNum, err := strconv.ParseInt(stem[digitsStart:digitsEnd], 10, 64)
	if err != nil {
		return seqLayout{}, fmt.Errorf("sequence: %q: %w", base, err)
	}

	return seqLayout{
		dir:        dir,
		prefix:     stem[:digitsStart],
		suffix:     ext,
		padding:    digitsEnd - digitsStart,
		startFrame: frameNum,
	}, nil
}

// framePath builds the path for frameNum per getPath's
// target_url_base + name_prefix + zero_pad(frame, padding) + name_suffix
// convention.
func framePath(layout seqLayout, frameNum int64) string {
	numStr := strconv.FormatInt(frameNum, 10)
	if pad := layout.padding - len(numStr); pad > 0 {
		numStr = strings.Repeat("0", pad) + numStr
	}
	return filepath.Join(layout.dir, layout.prefix+numStr+layout.suffix)
}

func countFrames(layout seqLayout) (int64, error) {
	var n int64
	for {
		if _, err := os.Stat(framePath(layout, layout.startFrame+n)); err != nil {
			break
		}
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("sequence: no frames found starting at %d", layout.startFrame)
	}
	return n, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(f)
	case ".jpg", ".jpeg":
		return jpeg.Decode(f)
	default:
		img, _, err := image.Decode(f)
		return img, err
	}
}

// toRImage converts a decoded image.Image into a tightly packed RGBA8
// rimage.Image, resizing with golang.org/x/image/draw if its bounds
// don't already match wantW/wantH.
func toRImage(img image.Image, wantW, wantH int) (*rimage.Image, error) {
	src := img
	if img.Bounds().Dx() != wantW || img.Bounds().Dy() != wantH {
		dst := image.NewRGBA(image.Rect(0, 0, wantW, wantH))
		ximagedraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), ximagedraw.Over, nil)
		src = dst
	}

	rgba := image.NewRGBA(image.Rect(0, 0, wantW, wantH))
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)

	out := &rimage.Image{
		Info: rimage.Info{Width: wantW, Height: wantH, PixelType: rimage.PixelTypeRGBA8},
		Data: rgba.Pix,
	}
	return out, nil
}

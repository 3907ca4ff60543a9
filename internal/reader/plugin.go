// Package reader implements the Reader Plugin Registry and the Reader
// Handle: the two collaborators the Timeline Compositor uses to turn a
// MediaRef into decoded pixel data, asynchronously and with in-flight
// request deduplication.
//
// Concurrency in this package is grounded on
// modules/framesupplier/internal's mailbox/worker-slot shape (a
// sync.Cond-guarded single inbox feeding one distribution goroutine) and
// on modules/stream-capture's Start/Stop/context lifecycle contract.
package reader

import (
	"context"

	"github.com/visiona/tlplay/internal/rational"
	"github.com/visiona/tlplay/internal/rimage"
)

// MediaInfo describes a media source's shape, probed once at Open time.
type MediaInfo struct {
	Video rimage.Info
	// VideoRange is the available range of frames this source can
	// produce, at VideoRate.
	VideoRange rational.TimeRange
	VideoRate  int64

	// Audio is modeled for completeness (the original's avio::Info
	// carries an audio description too) even though this core never
	// composes it; audio composition is an explicit non-goal.
	HasAudio bool
}

// Plugin is the interface a concrete media reader implements. A Plugin
// is stateless and safe for concurrent use: Open is called once per
// MediaRef and returns a *Handle that owns all subsequent per-media
// state.
//
// Extensions and Sniff together let the Registry find a plugin for a
// given path without every plugin having to open the file itself:
// Extensions is a fast path keyed on the file's suffix, Sniff is a
// slower fallback that may read the file's header.
type Plugin interface {
	// Name identifies the plugin in logs and error messages.
	Name() string

	// Extensions returns the lowercase, dot-prefixed extensions this
	// plugin claims to handle unconditionally, e.g. []string{".png"}.
	Extensions() []string

	// Sniff reports whether this plugin can open path, for paths whose
	// extension didn't match any registered plugin. Sniff may perform a
	// cheap read (e.g. a magic-number check) but must not leave any
	// handle open.
	Sniff(path string) bool

	// Open opens path for reading, probing its MediaInfo synchronously
	// and returning a Handle that decodes frames asynchronously. Open
	// itself should be fast: expensive decode work happens lazily in
	// the Handle's ReadVideo calls, not here.
	Open(ctx context.Context, path string, opts Options) (*Handle, error)
}

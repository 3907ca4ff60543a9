package reader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/visiona/tlplay/internal/tlerrors"
)

// Registry looks up and opens the Plugin responsible for a given path.
// A Registry is safe for concurrent use; Register is typically called
// only at program start by the code that built the Registry (cmd/tlplay
// registers sequence.New() explicitly). No plugin package registers
// itself from init().
type Registry struct {
	mu         sync.RWMutex
	byExt      map[string][]Plugin
	all        []Plugin
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]Plugin)}
}

// Register adds p to the registry. Plugins registered later are tried
// after earlier ones when more than one matches by extension, giving
// callers predictable override behavior if they register a custom
// plugin after the built-ins.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, p)
	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		r.byExt[ext] = append(r.byExt[ext], p)
	}
}

// Extensions returns the set of extensions any registered plugin claims.
func (r *Registry) Extensions() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.byExt))
	for ext := range r.byExt {
		out[ext] = struct{}{}
	}
	return out
}

// Open finds a Plugin for path (by extension first, then by Sniff over
// every registered plugin) and opens it. Returns ErrNoPluginMatches if
// none can handle path.
func (r *Registry) Open(ctx context.Context, path string, opts Options) (*Handle, error) {
	r.mu.RLock()
	if len(r.all) == 0 {
		r.mu.RUnlock()
		return nil, tlerrors.ErrRegistryNoPlugins
	}
	ext := strings.ToLower(filepath.Ext(path))
	candidates := append([]Plugin(nil), r.byExt[ext]...)
	all := append([]Plugin(nil), r.all...)
	r.mu.RUnlock()

	for _, p := range candidates {
		h, err := p.Open(ctx, path, opts)
		if err == nil {
			return h, nil
		}
	}
	for _, p := range all {
		if containsPlugin(candidates, p) {
			continue
		}
		if !p.Sniff(path) {
			continue
		}
		h, err := p.Open(ctx, path, opts)
		if err == nil {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tlerrors.ErrNoPluginMatches, path)
}

func containsPlugin(list []Plugin, p Plugin) bool {
	for _, c := range list {
		if c == p {
			return true
		}
	}
	return false
}

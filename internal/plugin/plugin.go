package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/buildgrid/internal/builderr"
	"github.com/specialistvlad/buildgrid/internal/config"
)

// Plugin contributes declarations to a build script.
type Plugin interface {
	ID() string
	// Apply adds the plugin's declarations to script. They are registered
	// before the script's own declarations.
	Apply(script *config.BuildScript)
}

// Registry maps plugin ids to plugins.
type Registry struct {
	mu  sync.RWMutex
	all map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{all: make(map[string]Plugin)}
}

// Default returns a registry holding the built-in plugins.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Base{})
	return r
}

// Register adds a plugin. It panics if the id is already taken.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.all[p.ID()]; exists {
		panic(fmt.Sprintf("plugin with id '%s' already registered", p.ID()))
	}
	slog.Debug("Registering plugin.", "id", p.ID())
	r.all[p.ID()] = p
}

// Lookup returns the plugin with the given id.
func (r *Registry) Lookup(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.all[id]
	if !ok {
		return nil, builderr.Configf(fmt.Sprintf("plugin '%s'", id), "plugin not found, available: %v", r.idsLocked())
	}
	return p, nil
}

// IDs returns the registered plugin ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idsLocked()
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.all))
	for id := range r.all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ApplyAll applies the plugins listed in script, in order. A plugin listed
// twice is applied once.
func (r *Registry) ApplyAll(script *config.BuildScript) error {
	seen := make(map[string]bool, len(script.Plugins))
	var toApply []Plugin
	for _, id := range script.Plugins {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, err := r.Lookup(id)
		if err != nil {
			return fmt.Errorf("applying plugins of %s: %w", script.File, err)
		}
		toApply = append(toApply, p)
	}
	// Later plugins prepend in front of earlier ones, so apply in reverse to
	// keep declaration order.
	for i := len(toApply) - 1; i >= 0; i-- {
		toApply[i].Apply(script)
	}
	return nil
}

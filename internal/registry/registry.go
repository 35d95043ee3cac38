// Package registry maps plugin identifiers to factories.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/scrape/internal/engine"
)

// Factory builds a plugin for one run.
type Factory func(env engine.Env) (engine.Plugin, error)

var (
	ErrEmptyID        = errors.New("plugin id cannot be empty")
	ErrNilFactory     = errors.New("plugin factory cannot be nil")
	ErrDuplicateID    = errors.New("plugin id already registered")
	ErrUnknownPlugin  = errors.New("unknown plugin")
	ErrInvalidPlugin  = errors.New("plugin has no identity")
	ErrFactoryPanic   = errors.New("plugin factory panicked")
	ErrNilPlugin      = errors.New("plugin factory returned nil")
)

// Registry holds exactly one factory per id. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Default is populated by plugin packages from their init functions.
var Default = New()

// New creates an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under id.
func (r *Registry) Register(id string, f Factory) error {
	if id == "" {
		return ErrEmptyID
	}
	if f == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.factories[id] = f
	return nil
}

// MustRegister is Register for init functions; it panics on error.
func (r *Registry) MustRegister(id string, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

// Names returns the registered ids in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for id := range r.factories {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the plugin registered under id and reports why it could not.
func (r *Registry) Lookup(id string, env engine.Env) (p engine.Plugin, err error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			p, err = nil, fmt.Errorf("%w: %s: %v", ErrFactoryPanic, id, rec)
		}
	}()

	p, err = f(env)
	if err != nil {
		return nil, fmt.Errorf("failed to build plugin %s: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilPlugin, id)
	}
	if p.Identify().Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlugin, id)
	}
	return p, nil
}

// Resolve builds the plugin registered under id, or returns nil when it
// cannot. The cause is logged.
func (r *Registry) Resolve(id string, env engine.Env) engine.Plugin {
	p, err := r.Lookup(id, env)
	if err != nil {
		log.Error().
			Err(err).
			Str("plugin", id).
			Msg("Failed to resolve plugin")
		return nil
	}
	log.Debug().
		Str("plugin", id).
		Str("identity", p.Identify().Name).
		Msg("Plugin resolved")
	return p
}

// Register adds a factory to the Default registry.
func Register(id string, f Factory) error { return Default.Register(id, f) }

// MustRegister adds a factory to the Default registry or panics.
func MustRegister(id string, f Factory) { Default.MustRegister(id, f) }

// Resolve builds a plugin from the Default registry.
func Resolve(id string, env engine.Env) engine.Plugin { return Default.Resolve(id, env) }

// Names lists the Default registry.
func Names() []string { return Default.Names() }

// Package plugin implements the broker's plugin lifecycle: registration,
// lazy/eager initialization, config (re)load and start/stop, following the
// Registered -> Inited -> Active state machine used by the rmqtt-derived
// plugin system this kernel generalizes.
package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound       = errors.New("plugin: not found")
	ErrAlreadyExists  = errors.New("plugin: already registered")
	ErrImmutable      = errors.New("plugin: immutable, cannot be modified")
	ErrNotInited      = errors.New("plugin: not initialized")
	ErrCannotBeStopped = errors.New("plugin: cannot be stopped")
)

// Plugin is implemented by every plugin (auth backends, the retainer, the
// session-storage engine, ...). Every method has a meaningful zero
// behavior so a minimal plugin only needs to implement Init and Start.
type Plugin interface {
	// Init runs once, the first time the plugin transitions out of
	// Registered. It takes no config argument; a plugin reads its own
	// configuration (typically through a *Config it was built with).
	Init(ctx context.Context) error

	// Start activates the plugin (installs it into the broker's active
	// extension points). Called after Init.
	Start(ctx context.Context) error

	// Stop deactivates the plugin. Returning ErrCannotBeStopped marks
	// the plugin as permanently active, matching the rmqtt-session-
	// storage and rmqtt-retainer default plugins which refuse to stop.
	Stop(ctx context.Context) error

	// LoadConfig is called to hot-reload configuration into an already
	// inited plugin.
	LoadConfig(ctx context.Context) error

	// Attrs returns a JSON-serializable introspection snapshot (cache
	// sizes, counts, ...) surfaced by admin/status tooling.
	Attrs(ctx context.Context) (json.RawMessage, error)
}

// Base provides no-op defaults for Plugin, mirroring hook.Base's pattern of
// embeddable zero-behavior methods so concrete plugins only override what
// they need.
type Base struct{}

func (Base) Init(ctx context.Context) error                        { return nil }
func (Base) Stop(ctx context.Context) error                        { return nil }
func (Base) LoadConfig(ctx context.Context) error                   { return nil }
func (Base) Attrs(ctx context.Context) (json.RawMessage, error)     { return json.RawMessage("{}"), nil }

// State is a plugin's lifecycle position.
type State byte

const (
	StateRegistered State = iota
	StateInited
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInited:
		return "inited"
	case StateActive:
		return "active"
	default:
		return "registered"
	}
}

// Factory lazily constructs a Plugin, used when a plugin is registered
// with deferred construction (default_startup=false in the source
// system's terms) so it is only built the first time Start is requested.
type Factory func(ctx context.Context) (Plugin, error)

// entry is the manager's bookkeeping for one registered plugin.
type entry struct {
	mu        sync.Mutex
	name      string
	state     State
	immutable bool
	plugin    Plugin
	factory   Factory
}

func (e *entry) resolve(ctx context.Context) (Plugin, error) {
	if e.plugin != nil {
		return e.plugin, nil
	}
	if e.factory == nil {
		return nil, fmt.Errorf("plugin %q: %w", e.name, ErrNotFound)
	}
	p, err := e.factory(ctx)
	if err != nil {
		return nil, err
	}
	e.plugin = p
	return p, nil
}

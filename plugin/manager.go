package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Manager owns every registered plugin and drives its lifecycle. It
// mirrors the concurrency shape of hook.Manager (a mutex-guarded registry)
// since plugin registration/start/stop is rare and does not need a
// lock-free hot path the way hook dispatch does.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     *Config
	logger  *slog.Logger
}

// NewManager builds a Manager. cfg is the TOML/env config source held by
// the Manager; it may be nil. Manager.LoadConfig calls each plugin's own
// LoadConfig and does not pass cfg to it.
func NewManager(cfg *Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries: make(map[string]*entry),
		cfg:     cfg,
		logger:  logger,
	}
}

// Register adds a plugin under name. If eager is true the plugin is
// constructed, Init'd and Started immediately (the default_startup=true
// behavior); otherwise factory is invoked lazily on first Start call.
func (m *Manager) Register(ctx context.Context, name string, immutable, eager bool, factory Factory) error {
	m.mu.Lock()
	if _, exists := m.entries[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrAlreadyExists)
	}
	e := &entry{name: name, immutable: immutable, factory: factory}
	m.entries[name] = e
	m.mu.Unlock()

	if !eager {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return m.activate(ctx, name, e)
}

func (m *Manager) get(name string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrNotFound)
	}
	return e, nil
}

// activate runs the Registered -> Inited -> Active transition. The caller
// must already hold e.mu. It is shared by the eager-registration path
// (which bypasses the immutable guard, since it is the plugin's own
// initial bring-up rather than an external mutation) and the public Start.
func (m *Manager) activate(ctx context.Context, name string, e *entry) error {
	p, err := e.resolve(ctx)
	if err != nil {
		return err
	}

	if e.state == StateRegistered {
		if err := p.Init(ctx); err != nil {
			return fmt.Errorf("plugin %q init: %w", name, err)
		}
		e.state = StateInited
	}

	if e.state == StateInited {
		if err := p.Start(ctx); err != nil {
			// Registered -> start reverts to Registered on any error.
			e.state = StateRegistered
			return fmt.Errorf("plugin %q start: %w", name, err)
		}
		e.state = StateActive
	}

	m.logger.Info("plugin started", "plugin", name)
	return nil
}

// Start transitions a plugin through Registered -> Inited -> Active,
// calling Init (once) and then Start. Immutable plugins always fail this
// call from outside their own eager registration.
func (m *Manager) Start(ctx context.Context, name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	if e.immutable {
		return fmt.Errorf("plugin %q: %w", name, ErrImmutable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return m.activate(ctx, name, e)
}

// Stop deactivates a plugin. A plugin whose Stop returns ErrCannotBeStopped
// stays Active; the error is swallowed (logged) rather than propagated,
// matching the default storage/retainer plugins which refuse to stop.
// Immutable plugins always fail this call.
func (m *Manager) Stop(ctx context.Context, name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	if e.immutable {
		return fmt.Errorf("plugin %q: %w", name, ErrImmutable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive || e.plugin == nil {
		return nil
	}

	if err := e.plugin.Stop(ctx); err != nil {
		m.logger.Warn("plugin refused to stop", "plugin", name, "error", err)
		return nil
	}

	e.state = StateInited
	return nil
}

// LoadConfig hot-reloads an already-inited plugin's configuration.
// Immutable plugins always fail this call.
func (m *Manager) LoadConfig(ctx context.Context, name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	if e.immutable {
		return fmt.Errorf("plugin %q: %w", name, ErrImmutable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRegistered {
		return fmt.Errorf("plugin %q: %w", name, ErrNotInited)
	}
	return e.plugin.LoadConfig(ctx)
}

// Get returns the resolved Plugin for name, or an error if it has never
// been started (so no instance exists yet). Mutating operations on an
// immutable plugin's returned value are the caller's responsibility to
// avoid; the Manager itself only blocks Start/Stop/LoadConfig on
// immutable entries (see IsImmutable).
func (m *Manager) Get(name string) (Plugin, error) {
	e, err := m.get(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.plugin == nil {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrNotFound)
	}
	return e.plugin, nil
}

// IsImmutable reports whether name was registered as immutable (core
// plugins shipped by the broker itself, as opposed to operator-loaded
// extensions).
func (m *Manager) IsImmutable(name string) bool {
	e, err := m.get(name)
	if err != nil {
		return false
	}
	return e.immutable
}

// State returns a plugin's current lifecycle state.
func (m *Manager) State(name string) (State, error) {
	e, err := m.get(name)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// Names returns every registered plugin name, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.entries))
	for n := range m.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/plugin"
)

// Name is the registration name used with plugin.Manager and as the
// config file/env-prefix key ("session-storage" ->
// BROKERD_PLUGIN_SESSION_STORAGE_*).
const Name = "session-storage"

// Plugin adapts the storage/rebuild engine to the plugin.Plugin
// lifecycle. Like its rmqtt-session-storage counterpart it refuses to be
// stopped once started, since doing so would silently disable offline
// persistence out from under connected clients.
type Plugin struct {
	plugin.Base

	bus       *hook.Bus
	cfgSource *plugin.Config
	restarter Restarter
	fitter    Fitter
	logger    *slog.Logger

	backend   Backend
	rebuilder *Rebuilder
	handler   *Handler
}

func New(bus *hook.Bus, cfgSource *plugin.Config, restarter Restarter, fitter Fitter, logger *slog.Logger) *Plugin {
	return &Plugin{bus: bus, cfgSource: cfgSource, restarter: restarter, fitter: fitter, logger: logger}
}

func (p *Plugin) Init(ctx context.Context) error {
	cfg := DefaultConfig()
	if p.cfgSource != nil {
		if err := p.cfgSource.Read(Name, cfg); err != nil {
			return fmt.Errorf("%s: %w", Name, err)
		}
	}

	backend, err := cfg.buildBackend()
	if err != nil {
		return fmt.Errorf("%s: build backend: %w", Name, err)
	}

	p.backend = backend
	p.rebuilder = NewRebuilder(p.restarter, p.logger)
	p.handler = NewHandler(backend, p.rebuilder, p.fitter, cfg.MaxQueueLen, p.logger)
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	return p.handler.Register(p.bus, Name)
}

// Stop always refuses: offline session persistence cannot be disabled
// once the broker depends on it, matching the original plugin's stop().
func (p *Plugin) Stop(ctx context.Context) error {
	return plugin.ErrCannotBeStopped
}

func (p *Plugin) Attrs(ctx context.Context) (json.RawMessage, error) {
	sessionCount := 0
	offlineCount := 0
	if p.backend != nil {
		if keys, err := p.backend.Sessions().List(ctx); err == nil {
			sessionCount = len(keys)
		}
		if keys, err := p.backend.Offline().List(ctx); err == nil {
			offlineCount = len(keys)
		}
	}
	return json.Marshal(map[string]any{
		"session_count":         sessionCount,
		"offline_message_count": offlineCount,
	})
}

package retainer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/plugin"
)

// Name is the registration name used with plugin.Manager and as the
// config file/env-prefix key ("retainer" ->
// BROKERD_PLUGIN_RETAINER_*).
const Name = "retainer"

// Plugin adapts Storage to the plugin.Plugin lifecycle. Like its
// rmqtt-retainer counterpart it refuses to be stopped once started: the
// broker core reads Plugin.Storage() directly rather than dispatching
// retained-message reads/writes through the hook bus, so stopping it
// would leave that accessor dangling.
type Plugin struct {
	plugin.Base

	bus            *hook.Bus
	cfgSource      *plugin.Config
	clusterEnabled bool
	logger         *slog.Logger

	storage Storage

	// retainEnabled is what Enabled() reports (Storage() returns the
	// engine whether or not it is set): when the broker is clustered and
	// the configured engine isn't cluster-capable, it is cleared at
	// BeforeStartup, matching RetainHandler's BeforeStartup check.
	retainEnabled atomic.Bool
}

func New(bus *hook.Bus, cfgSource *plugin.Config, clusterEnabled bool, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{bus: bus, cfgSource: cfgSource, clusterEnabled: clusterEnabled, logger: logger}
}

func (p *Plugin) Init(ctx context.Context) error {
	cfg := DefaultConfig()
	if p.cfgSource != nil {
		if err := p.cfgSource.Read(Name, cfg); err != nil {
			return fmt.Errorf("%s: %w", Name, err)
		}
	}

	storage, err := cfg.buildStorage()
	if err != nil {
		return fmt.Errorf("%s: build storage: %w", Name, err)
	}
	p.storage = storage
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	_, err := p.bus.Register(hook.BeforeStartup, 0, Name+":startup", p.handleBeforeStartup)
	return err
}

func (p *Plugin) handleBeforeStartup(ctx context.Context, param hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
	if p.clusterEnabled && !p.storage.SupportsCluster() {
		p.logger.Warn(ErrNotSupported.Error())
		p.retainEnabled.Store(false)
	} else {
		p.retainEnabled.Store(true)
	}
	return true, acc
}

// Enabled reports whether retained-message handling is live. False only
// when the broker is clustered and the configured engine can't safely
// serve a cluster-wide view.
func (p *Plugin) Enabled() bool { return p.retainEnabled.Load() }

// Storage returns the underlying engine for the broker's publish/subscribe
// path to read and write retained messages directly, mirroring
// scx.extends.retain_mut() in the system this plugin generalizes.
func (p *Plugin) Storage() Storage { return p.storage }

// Stop always refuses: the broker core holds a direct reference to
// Storage(), so deactivating it out from under live traffic would panic
// on next use rather than degrade gracefully.
func (p *Plugin) Stop(ctx context.Context) error {
	return plugin.ErrCannotBeStopped
}

func (p *Plugin) Attrs(ctx context.Context) (json.RawMessage, error) {
	count, _ := p.storage.Count(ctx)
	info := map[string]any{
		"enabled": p.retainEnabled.Load(),
		"max":     p.storage.Max(),
		"count":   count,
	}
	switch s := p.storage.(type) {
	case *Ram:
		info["storage_engine"] = "Ram"
		_ = s
	case *Backend:
		info["storage_engine"] = "Backend"
		info["supports_cluster"] = s.SupportsCluster()
	}
	return json.Marshal(info)
}

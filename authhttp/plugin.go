package authhttp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/plugin"
)

// Name is the registration name used with plugin.Manager and as the config
// file/env-prefix key ("auth-http" -> BROKERD_PLUGIN_AUTH_HTTP_*).
const Name = "auth-http"

// Plugin adapts Handler to the plugin.Plugin lifecycle.
type Plugin struct {
	plugin.Base

	bus       *hook.Bus
	cfgSource *plugin.Config
	priority  int

	handler *Handler
}

func New(bus *hook.Bus, cfgSource *plugin.Config, priority int) *Plugin {
	return &Plugin{bus: bus, cfgSource: cfgSource, priority: priority}
}

func (p *Plugin) Init(ctx context.Context) error {
	cfg := DefaultConfig()
	if p.cfgSource != nil {
		if err := p.cfgSource.Read(Name, cfg); err != nil {
			return fmt.Errorf("%s: %w", Name, err)
		}
	}
	p.handler = NewHandler(cfg, p.priority)
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	return p.handler.Register(p.bus, Name)
}

func (p *Plugin) LoadConfig(ctx context.Context) error {
	if p.cfgSource == nil {
		return nil
	}
	cfg := DefaultConfig()
	if err := p.cfgSource.Read(Name, cfg); err != nil {
		return err
	}
	p.handler.SetConfig(cfg)
	return nil
}

func (p *Plugin) Attrs(ctx context.Context) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"cached_sessions": p.handler.Cache().Len(),
	})
}

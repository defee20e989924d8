package authjwt

import (
	"context"
	"sync/atomic"

	"github.com/brokerd/brokerd/acl"
	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/types"
)

type Handler struct {
	priority int
	cfg      atomic.Pointer[Config]
}

func NewHandler(cfg *Config, priority int) *Handler {
	h := &Handler{priority: priority}
	h.cfg.Store(cfg)
	return h
}

func (h *Handler) SetConfig(cfg *Config) { h.cfg.Store(cfg) }

func (h *Handler) Register(bus *hook.Bus, id string) error {
	if _, err := bus.Register(hook.ClientAuthenticate, h.priority, id+":authn", h.handleAuthenticate); err != nil {
		return err
	}
	if _, err := bus.Register(hook.ClientSubscribeCheckAcl, h.priority, id+":sub-acl", h.handleAcl(types.ACLTypeSubscribe)); err != nil {
		return err
	}
	if _, err := bus.Register(hook.MessagePublishCheckAcl, h.priority, id+":pub-acl", h.handleAcl(types.ACLTypePublish)); err != nil {
		return err
	}
	if _, err := bus.Register(hook.ClientKeepalive, 0, id+":keepalive", h.handleKeepalive); err != nil {
		return err
	}
	return nil
}

func (h *Handler) placeholders(p hook.Parameter) acl.Placeholders {
	return acl.Placeholders{
		Username:   p.Id.Username,
		ClientId:   p.Id.ClientId,
		RemoteAddr: p.Id.RemoteAddr,
	}
}

func (h *Handler) handleAuthenticate(ctx context.Context, p hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
	if acc.Verdict == types.VerdictDeny {
		return false, acc
	}
	cfg := h.cfg.Load()

	tok, err := extractToken(cfg, p.Id.Username, p.Password)
	if err != nil {
		acc.Verdict = types.VerdictDeny
		acc.Err = err
		return false, acc
	}

	ph := h.placeholders(p)
	claims, err := standardAuth(cfg, tok, ph)
	if err != nil {
		acc.Verdict = types.VerdictDeny
		acc.Err = err
		return false, acc
	}
	if err := extendedAuth(cfg, claims, ph); err != nil {
		acc.Verdict = types.VerdictDeny
		acc.Err = err
		return false, acc
	}

	info := authInfoFromClaims(claims)
	acc.Verdict = types.VerdictAllow
	acc.Superuser = info.Superuser
	acc.AuthInfo = info
	return false, acc
}

// handleAcl only ever consults the rules embedded on the session's
// AuthInfo (populated by handleAuthenticate); it never calls out, so a
// miss simply lets the chain continue to the next handler (e.g. a
// different backend, or a default-deny terminator).
func (h *Handler) handleAcl(access types.ACLType) hook.Handler {
	return func(ctx context.Context, p hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
		if acc.Verdict == types.VerdictDeny {
			return false, acc
		}
		if p.AuthInfo == nil {
			return true, acc
		}
		rule, ok := p.AuthInfo.MatchRule(p.Topic, access)
		if !ok {
			return true, acc
		}
		if rule.Allow {
			acc.Verdict = types.VerdictAllow
		} else {
			acc.Verdict = types.VerdictDeny
		}
		return false, acc
	}
}

func (h *Handler) handleKeepalive(ctx context.Context, p hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
	cfg := h.cfg.Load()
	if cfg.DisconnectIfExpiry && p.AuthInfo.IsExpired() {
		acc.Disconnect = true
	}
	return true, acc
}

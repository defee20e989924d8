package persist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brokerd/brokerd/hook"
	"github.com/brokerd/brokerd/session"
	"github.com/brokerd/brokerd/store"
)

// Handler wires persist's storage/rebuild engine into the hook bus: it
// captures offline publishes and in-flight tables as they're produced
// (OfflineMessage, OfflineInflightMessages) and, once per startup, loads
// and rebuilds whatever offline sessions survived the restart
// (BeforeStartup).
type Handler struct {
	backend     Backend
	rebuilder   *Rebuilder
	fitter      Fitter
	logger      *slog.Logger
	maxQueueLen int
}

func NewHandler(backend Backend, rebuilder *Rebuilder, fitter Fitter, maxQueueLen int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if fitter == nil {
		fitter = FixedFitter(0)
	}
	if maxQueueLen <= 0 {
		maxQueueLen = session.DefaultMaxQueueLen
	}
	return &Handler{backend: backend, rebuilder: rebuilder, fitter: fitter, maxQueueLen: maxQueueLen, logger: logger}
}

// Register installs the handler against every hook type it answers.
func (h *Handler) Register(bus *hook.Bus, id string) error {
	if _, err := bus.Register(hook.BeforeStartup, 0, id+":startup", h.handleBeforeStartup); err != nil {
		return err
	}
	if _, err := bus.Register(hook.OfflineMessage, 0, id+":offline-message", h.handleOfflineMessage); err != nil {
		return err
	}
	if _, err := bus.Register(hook.OfflineInflightMessages, 0, id+":offline-inflight", h.handleOfflineInflight); err != nil {
		return err
	}
	return nil
}

func (h *Handler) handleOfflineMessage(ctx context.Context, p hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
	if p.Publish == nil {
		return true, acc
	}
	clientID := p.Id.ClientId
	existing, err := h.backend.Offline().Load(ctx, clientID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("persist: load offline messages failed", "client_id", clientID, "error", err)
	}
	existing = append(existing, OfflineMessage{From: p.Id, Publish: *p.Publish})
	if dropped := len(existing) - h.maxQueueLen; dropped > 0 {
		existing = existing[dropped:]
	}
	if err := h.backend.Offline().Save(ctx, clientID, existing); err != nil {
		h.logger.Warn("persist: save offline message failed", "client_id", clientID, "error", err)
	}
	return true, acc
}

func (h *Handler) handleOfflineInflight(ctx context.Context, p hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
	inflight, ok := p.Extra.([]session.InflightMessage)
	if !ok {
		return true, acc
	}
	clientID := p.Id.ClientId
	rec, err := h.backend.Sessions().Load(ctx, clientID)
	if err != nil {
		rec = SessionRecord{ClientId: clientID}
	}
	rec.InflightOut = inflight
	if err := h.backend.Sessions().Save(ctx, clientID, rec); err != nil {
		h.logger.Warn("persist: save offline inflight failed", "client_id", clientID, "error", err)
	}
	return true, acc
}

func (h *Handler) handleBeforeStartup(ctx context.Context, p hook.Parameter, acc hook.HookResult) (bool, hook.HookResult) {
	h.rebuildOfflineSessions(ctx)
	return true, acc
}

// Persist saves the current state of an about-to-go-offline session:
// subscriptions, auth info, disconnect reason and any already-queued
// deliver-queue items. Called by whatever detects client disconnection,
// not dispatched through the hook bus itself.
func (h *Handler) Persist(ctx context.Context, s *session.Session) error {
	subs := make(map[string]byte)
	for filter, sub := range s.GetAllSubscriptions() {
		subs[filter] = sub.QoS
	}

	rec := SessionRecord{
		ClientId:        s.ClientID,
		NodeId:          s.NodeId,
		CreatedAt:       s.CreatedAt.UnixMilli(),
		LastUpdate:      nowMillis(),
		Subscriptions:   subs,
		AuthInfo:        s.GetAuthInfo(),
		Disconnect:      s.GetDisconnectInfo(),
		InflightOut:     s.OutInflight(),
		ExpiryInterval:  s.ExpiryInterval,
		ProtocolVersion: s.ProtocolVersion,
	}
	if err := h.backend.Sessions().Save(ctx, s.ClientID, rec); err != nil {
		return err
	}

	items := s.DeliverQueue().Drain()
	if len(items) == 0 {
		return nil
	}
	msgs := make([]OfflineMessage, 0, len(items))
	for _, item := range items {
		msgs = append(msgs, OfflineMessage{From: item.From, Publish: item.Publish})
	}
	return h.backend.Offline().Save(ctx, s.ClientID, msgs)
}

func (h *Handler) rebuildOfflineSessions(ctx context.Context) {
	keys, err := h.backend.Sessions().List(ctx)
	if err != nil {
		h.logger.Error("persist: list offline sessions failed", "error", err)
		return
	}

	h.logger.Info("persist: rebuilding offline sessions", "count", len(keys))
	now := nowMillis()
	rebuilt := 0

	for _, clientID := range keys {
		rec, err := h.backend.Sessions().Load(ctx, clientID)
		if err != nil {
			h.logger.Warn("persist: load session record failed", "client_id", clientID, "error", err)
			continue
		}

		if remainingExpiryMillis(h.fitter, rec, now) <= 0 {
			h.logger.Debug("persist: offline session expired, dropping", "client_id", clientID)
			_ = h.backend.Sessions().Delete(ctx, clientID)
			_ = h.backend.Offline().Delete(ctx, clientID)
			continue
		}

		s := sessionFromRecord(rec)

		if offline, err := h.backend.Offline().Load(ctx, clientID); err == nil {
			for _, m := range offline {
				s.DeliverQueue().Push(session.DeliverItem{From: m.From, Publish: m.Publish})
			}
			_ = h.backend.Offline().Delete(ctx, clientID)
		}

		if h.rebuilder != nil {
			h.rebuilder.Submit(s)
		}
		_ = h.backend.Sessions().Delete(ctx, clientID)
		rebuilt++
	}

	if h.rebuilder != nil {
		h.rebuilder.Flush()
	}
	h.logger.Info("persist: offline session rebuild complete", "rebuilt", rebuilt)
}

func sessionFromRecord(rec SessionRecord) *session.Session {
	maxQueueLen := session.DefaultMaxQueueLen
	s := session.NewWithQueueLen(rec.ClientId, false, rec.ExpiryInterval, rec.ProtocolVersion, maxQueueLen)
	s.NodeId = rec.NodeId
	s.SetAuthInfo(rec.AuthInfo)
	s.SetDisconnectInfo(rec.Disconnect)
	s.SetOutInflight(rec.InflightOut)
	for filter, qos := range rec.Subscriptions {
		s.AddSubscription(&session.Subscription{TopicFilter: filter, QoS: qos})
	}
	return s
}

func nowMillis() int64 { return time.Now().UnixMilli() }

package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brokerd/brokerd/types"
)

// Type enumerates the cluster/session/auth lifecycle events dispatched
// through Bus. These are distinct from the packet-level Event taxonomy
// dispatched through Manager above: Manager handles per-packet wire hooks,
// Bus handles the priority-chained auth/session/cluster hooks plugins
// register against.
type Type byte

const (
	ClientAuthenticate Type = iota
	ClientSubscribeCheckAcl
	MessagePublishCheckAcl
	ClientKeepalive
	ClientDisconnected
	SessionTerminated
	BeforeStartup
	GrpcMessageReceived
	OfflineMessage
	OfflineInflightMessages
)

func (t Type) String() string {
	switch t {
	case ClientAuthenticate:
		return "ClientAuthenticate"
	case ClientSubscribeCheckAcl:
		return "ClientSubscribeCheckAcl"
	case MessagePublishCheckAcl:
		return "MessagePublishCheckAcl"
	case ClientKeepalive:
		return "ClientKeepalive"
	case ClientDisconnected:
		return "ClientDisconnected"
	case SessionTerminated:
		return "SessionTerminated"
	case BeforeStartup:
		return "BeforeStartup"
	case GrpcMessageReceived:
		return "GrpcMessageReceived"
	case OfflineMessage:
		return "OfflineMessage"
	case OfflineInflightMessages:
		return "OfflineInflightMessages"
	default:
		return "Unknown"
	}
}

// Parameter is the payload passed alongside a Type to every handler in the
// chain. It is intentionally a loosely-typed bag (mirroring the sum-typed
// Parameter enum of the system this bus is modeled on) since each Type
// carries a different concrete shape; handlers type-assert the fields they
// care about.
type Parameter struct {
	Id          types.Id
	Password    string
	Topic       string
	Access      types.ACLType
	Publish     *types.Publish
	AuthInfo    *types.AuthInfo
	Disconnect  *types.DisconnectInfo
	GrpcType    uint64
	GrpcMessage []byte

	// Extra carries event-specific payloads that don't warrant a dedicated
	// field (e.g. the in-flight message list for OfflineInflightMessages).
	// Handlers type-assert it against the concrete type their event
	// produces.
	Extra any
}

// HookResult threads through a chain of handlers for a single dispatch. A
// handler reads the accumulator left by earlier (higher-priority) handlers
// and returns its own contribution plus whether the chain should continue.
type HookResult struct {
	Verdict       types.Verdict
	Superuser     bool
	AuthInfo      *types.AuthInfo
	Err           error
	Exit          bool
	Disconnect    bool
	MessageExpiry bool
	Reply         any
}

// Handler is registered against a Type at a priority. It receives the
// accumulator from the previous handler in the chain (zero value for the
// first handler) and returns the next accumulator plus whether dispatch
// should proceed to the next-lower-priority handler.
type Handler func(ctx context.Context, p Parameter, acc HookResult) (proceed bool, next HookResult)

// Token identifies a single registration, returned by Bus.Register so
// callers can Remove it later (e.g. on plugin Stop).
type Token struct {
	typ Type
	id  string
}

type entry struct {
	id       string
	priority int
	seq      uint64
	handler  Handler
}

// Bus is the priority-ordered hook dispatcher for the auth/session/cluster
// lifecycle events. It follows the same copy-on-write concurrency pattern
// as Manager: registrations are rare and dispatch is hot, so each chain is
// an atomic.Pointer to an immutable, priority-sorted slice.
type Bus struct {
	mu     sync.Mutex
	chains map[Type]*atomic.Pointer[[]entry]
	seq    uint64
	logger *slog.Logger

	dispatchTotal   *prometheus.CounterVec
	dispatchSeconds *prometheus.HistogramVec
}

// NewBus creates an empty Bus. logger may be nil, in which case
// slog.Default() is used.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		chains: make(map[Type]*atomic.Pointer[[]entry]),
		logger: logger,
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brokerd_hook_dispatch_total",
			Help: "Number of hook bus dispatches per event type.",
		}, []string{"type"}),
		dispatchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "brokerd_hook_dispatch_duration_seconds",
			Help: "Hook bus dispatch latency per event type.",
		}, []string{"type"}),
	}
}

// Collectors returns the prometheus collectors so callers can register
// them against their own registry (the Bus never registers itself, to
// avoid import-time global registry side effects).
func (b *Bus) Collectors() []prometheus.Collector {
	return []prometheus.Collector{b.dispatchTotal, b.dispatchSeconds}
}

func (b *Bus) chainPtr(t Type) *atomic.Pointer[[]entry] {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.chains[t]
	if !ok {
		p = &atomic.Pointer[[]entry]{}
		empty := make([]entry, 0)
		p.Store(&empty)
		b.chains[t] = p
	}
	return p
}

// Register adds handler to the chain for t at priority. Higher priority
// runs first; handlers registered at equal priority run in registration
// order (stable). id must be non-empty and unique within t.
func (b *Bus) Register(t Type, priority int, id string, handler Handler) (Token, error) {
	if id == "" {
		return Token{}, ErrEmptyHookID
	}
	if handler == nil {
		return Token{}, fmt.Errorf("hook: nil handler for %s/%s", t, id)
	}

	ptr := b.chainPtr(t)

	b.mu.Lock()
	defer b.mu.Unlock()

	old := *ptr.Load()
	for _, e := range old {
		if e.id == id {
			return Token{}, ErrHookAlreadyExists
		}
	}

	b.seq++
	next := make([]entry, len(old)+1)
	copy(next, old)
	next[len(old)] = entry{id: id, priority: priority, seq: b.seq, handler: handler}

	sort.SliceStable(next, func(i, j int) bool {
		if next[i].priority != next[j].priority {
			return next[i].priority > next[j].priority
		}
		return next[i].seq < next[j].seq
	})

	ptr.Store(&next)
	return Token{typ: t, id: id}, nil
}

// Remove drops a previously registered handler.
func (b *Bus) Remove(tok Token) error {
	ptr := b.chainPtr(tok.typ)

	b.mu.Lock()
	defer b.mu.Unlock()

	old := *ptr.Load()
	idx := -1
	for i, e := range old {
		if e.id == tok.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrHookNotFound
	}
	next := make([]entry, 0, len(old)-1)
	next = append(next, old[:idx]...)
	next = append(next, old[idx+1:]...)
	ptr.Store(&next)
	return nil
}

// Dispatch runs the chain registered for t, starting from the zero
// HookResult, in priority order. A handler whose proceed is false halts
// the chain; per the broker's fail-open policy a panicking handler is
// logged and treated as a no-op contribution, and dispatch continues with
// the remaining handlers.
func (b *Bus) Dispatch(ctx context.Context, t Type, p Parameter) HookResult {
	return b.DispatchFrom(ctx, t, p, HookResult{})
}

// DispatchFrom is Dispatch with a caller-supplied initial accumulator, used
// when a dispatch needs to seed state (e.g. re-dispatching with a prior
// result after a retry).
func (b *Bus) DispatchFrom(ctx context.Context, t Type, p Parameter, acc HookResult) HookResult {
	start := nowFunc()
	chain := *b.chainPtr(t).Load()

	for _, e := range chain {
		proceed, next := b.invoke(ctx, t, e, p, acc)
		acc = next
		if !proceed {
			break
		}
	}

	b.dispatchTotal.WithLabelValues(t.String()).Inc()
	b.dispatchSeconds.WithLabelValues(t.String()).Observe(sinceSeconds(start))
	return acc
}

// invoke calls a single handler, recovering a panic as a logged no-op
// continuation (the accumulator is left unchanged and the chain proceeds).
func (b *Bus) invoke(ctx context.Context, t Type, e entry, p Parameter, acc HookResult) (proceed bool, result HookResult) {
	proceed, result = true, acc
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("hook handler panicked, continuing chain",
				"type", t.String(), "handler", e.id, "panic", r)
			proceed, result = true, acc
		}
	}()

	proceed, result = e.handler(ctx, p, acc)
	return proceed, result
}

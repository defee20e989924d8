// Package persist rebuilds broker session state across restarts: while a
// client is offline its subscriptions, queued messages and in-flight
// tables are written to a backend store, and on BeforeStartup they are
// read back and turned into live (but disconnected) sessions again.
package persist

import (
	"github.com/brokerd/brokerd/session"
	"github.com/brokerd/brokerd/types"
)

// SessionRecord is the persisted shape of an offline session: everything
// needed to rebuild it without touching the broker's live session table.
// It folds together what the original keeps as five separate map fields
// (basic, last_time, subs, disconnect_info, inflight_messages) into one
// CBOR-encoded value, since store.Store[T] persists a single value per
// key rather than a field-addressable hash.
type SessionRecord struct {
	ClientId        string
	NodeId          uint64
	CreatedAt       int64
	LastUpdate      int64
	Subscriptions   map[string]byte
	AuthInfo        *types.AuthInfo
	Disconnect      *types.DisconnectInfo
	InflightOut     []session.InflightMessage
	ExpiryInterval  uint32
	ProtocolVersion byte
}

// OfflineMessage is one message queued for a client while it was
// disconnected, stored under the list- namespace.
type OfflineMessage struct {
	From    types.Id
	Publish types.Publish
}

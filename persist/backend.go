package persist

import (
	"github.com/brokerd/brokerd/store"
)

// Backend is the storage dependency persist needs: a typed store for
// session records plus a typed store for queued offline messages. The
// three implementations below (memory, Pebble, Redis) each wire up a pair
// of store.Store instances from the existing store package rather than
// inventing a new storage layer.
type Backend interface {
	Sessions() store.Store[SessionRecord]
	Offline() store.Store[[]OfflineMessage]
	Close() error
}

type backend struct {
	sessions store.Store[SessionRecord]
	offline  store.Store[[]OfflineMessage]
}

func (b *backend) Sessions() store.Store[SessionRecord]  { return b.sessions }
func (b *backend) Offline() store.Store[[]OfflineMessage] { return b.offline }

func (b *backend) Close() error {
	err1 := b.sessions.Close()
	err2 := b.offline.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NewMemoryBackend builds an in-process backend, useful for tests and for
// single-node deployments that don't need restart-survival.
func NewMemoryBackend() Backend {
	return &backend{
		sessions: store.NewMemoryStore[SessionRecord](),
		offline:  store.NewMemoryStore[[]OfflineMessage](),
	}
}

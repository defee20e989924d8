package persist

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brokerd/brokerd/store"
)

// RedisConfig configures a Redis-backed persist.Backend. Cluster mode
// deployments point every node at the same Addr/DB; the key prefixes keep
// the two record families and every node's own session- and list-namespace
// apart (callers wanting per-node isolation should set Prefix to include
// the node id, e.g. "node-3:").
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Options  *redis.Options
}

func NewRedisBackend(cfg RedisConfig) (Backend, error) {
	sessions, err := store.NewRedisStore[SessionRecord](store.RedisStoreConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix + sessionPrefix,
		TTL:      cfg.TTL,
		Options:  cfg.Options,
	})
	if err != nil {
		return nil, err
	}

	offline, err := store.NewRedisStore[[]OfflineMessage](store.RedisStoreConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix + offlinePrefix,
		TTL:      cfg.TTL,
		Options:  cfg.Options,
	})
	if err != nil {
		_ = sessions.Close()
		return nil, err
	}

	return &backend{sessions: sessions, offline: offline}, nil
}

package retainer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/redis/go-redis/v9"

	"github.com/brokerd/brokerd/store"
	"github.com/brokerd/brokerd/topic"
	"github.com/brokerd/brokerd/types/message"
)

// Backend is the disk/Redis-backed Storage variant. Matching is done by
// listing every stored topic and running it through matcher, the same
// scan-and-filter approach persist.Handler uses for rebuild: neither
// store.PebbleStore nor store.RedisStore indexes by topic trie, but the
// original's sled/redis backends don't either (retained-message counts
// are expected to be orders of magnitude smaller than live subscriptions).
type Backend struct {
	store          store.Store[message.Message]
	matcher        *topic.TopicMatcher
	max            int
	clusterCapable bool
}

func (b *Backend) Set(ctx context.Context, t string, msg *message.Message) error {
	if len(msg.Payload) == 0 {
		return b.Delete(ctx, t)
	}
	if b.max > 0 {
		if _, err := b.store.Load(ctx, t); err != nil {
			n, cerr := b.store.Count(ctx)
			if cerr == nil && n >= int64(b.max) {
				return fmt.Errorf("%w: %d", ErrMaxReached, b.max)
			}
		}
	}
	return b.store.Save(ctx, t, *msg)
}

func (b *Backend) Get(ctx context.Context, t string) (*message.Message, error) {
	msg, err := b.store.Load(ctx, t)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (b *Backend) Delete(ctx context.Context, t string) error {
	return b.store.Delete(ctx, t)
}

func (b *Backend) Match(ctx context.Context, topicFilter string) ([]*message.Message, error) {
	keys, err := b.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var matched []*message.Message
	for _, key := range keys {
		if !b.matcher.Match(topicFilter, key) {
			continue
		}
		msg, err := b.store.Load(ctx, key)
		if err != nil {
			continue
		}
		if msg.IsExpired() {
			_ = b.store.Delete(ctx, key)
			continue
		}
		m := msg
		matched = append(matched, &m)
	}
	return matched, nil
}

func (b *Backend) Count(ctx context.Context) (int64, error) { return b.store.Count(ctx) }

func (b *Backend) Max() int { return b.max }

func (b *Backend) SupportsCluster() bool { return b.clusterCapable }

func (b *Backend) Close() error { return b.store.Close() }

// PebbleConfig configures an on-disk retained-message store. Pebble has no
// cluster-wide view of other nodes' writes, so SupportsCluster is always
// false here, matching rmqtt-retainer's Sled variant.
type PebbleConfig struct {
	Dir  string
	Opts *pebble.Options
	Max  int
}

func NewPebbleBackend(cfg PebbleConfig) (*Backend, error) {
	s, err := store.NewPebbleStore[message.Message](store.PebbleStoreConfig{
		Path: filepath.Join(cfg.Dir, "retained"),
		Opts: cfg.Opts,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{store: s, matcher: topic.NewTopicMatcher(), max: cfg.Max, clusterCapable: false}, nil
}

// RedisConfig configures a Redis-backed retained-message store. Redis is
// the only storage engine the original marks support_cluster = true for,
// since every node reads the same shared keyspace.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Options  *redis.Options
	Max      int
}

func NewRedisBackend(cfg RedisConfig) (*Backend, error) {
	s, err := store.NewRedisStore[message.Message](store.RedisStoreConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
		TTL:      cfg.TTL,
		Options:  cfg.Options,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{store: s, matcher: topic.NewTopicMatcher(), max: cfg.Max, clusterCapable: true}, nil
}

package retainer

import (
	"context"
	"fmt"
	"time"

	"github.com/brokerd/brokerd/topic"
	"github.com/brokerd/brokerd/types/message"
)

// sweepInterval matches the original's "I run every 10 seconds" expired-
// message sweep.
const sweepInterval = 10 * time.Second

// Ram is the in-process trie-backed Storage, grounded on the teacher's
// topic.RetainedManager/store.RetainedStore. It never survives a restart
// and, like the original RamRetainer, never reports cluster support.
type Ram struct {
	mgr     *topic.RetainedManager
	matcher *topic.TopicMatcher
	max     int
}

// RamConfig configures the Ram engine.
type RamConfig struct {
	// Max caps the number of distinct retained topics; 0 means unlimited.
	Max int
}

func NewRam(cfg RamConfig) *Ram {
	return &Ram{
		mgr:     topic.NewRetainedManager(&topic.RetainedConfig{CleanupInterval: sweepInterval}),
		matcher: topic.NewTopicMatcher(),
		max:     cfg.Max,
	}
}

func (r *Ram) Set(ctx context.Context, t string, msg *message.Message) error {
	if r.max > 0 && len(msg.Payload) > 0 {
		if _, err := r.mgr.Get(ctx, t); err != nil {
			// topic isn't already retained; enforce the cap on new entries
			n, cerr := r.mgr.Count(ctx)
			if cerr == nil && n >= int64(r.max) {
				return fmt.Errorf("%w: %d", ErrMaxReached, r.max)
			}
		}
	}
	return r.mgr.Set(ctx, t, msg)
}

func (r *Ram) Get(ctx context.Context, t string) (*message.Message, error) {
	return r.mgr.Get(ctx, t)
}

func (r *Ram) Delete(ctx context.Context, t string) error {
	return r.mgr.Delete(ctx, t)
}

func (r *Ram) Match(ctx context.Context, topicFilter string) ([]*message.Message, error) {
	return r.mgr.Match(ctx, topicFilter, r.matcher)
}

func (r *Ram) Count(ctx context.Context) (int64, error) {
	return r.mgr.Count(ctx)
}

func (r *Ram) Max() int { return r.max }

func (r *Ram) SupportsCluster() bool { return false }

func (r *Ram) Close() error { return r.mgr.Close() }

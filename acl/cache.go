// Package acl implements the per-session ACL result cache and placeholder
// substitution shared by the HTTP and JWT auth backends, grounded on the
// Caches type and replaces() helper of the original auth plugins.
package acl

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brokerd/brokerd/types"
)

// Entry is one cached ACL decision. ExpireAtMillis < 0 means the decision
// never expires; 0 is a valid "expire immediately" sentinel reserved for
// tests, matching the source system's TimestampMillis convention.
type Entry struct {
	Verdict        types.Verdict
	ExpireAtMillis int64
}

func (e Entry) expired(nowMillis int64) bool {
	if e.ExpireAtMillis < 0 {
		return false
	}
	return nowMillis >= e.ExpireAtMillis
}

// Cache is a concurrent map of Id -> (topic -> Entry), matching
// Arc<DashMap<Id, BTreeMap<TopicName, (Permission, TimestampMillis)>>>
// from the HTTP auth backend. Only publish-ACL results are cached in
// practice (see authhttp), but the type itself is generic over any
// topic-keyed verdict.
type Cache struct {
	sessions sync.Map // types.Id -> *sessionCache

	hits   prometheus.Counter
	misses prometheus.Counter
}

type sessionCache struct {
	mu    sync.Mutex
	rules map[string]Entry
}

func NewCache() *Cache {
	return &Cache{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brokerd_acl_cache_hits_total",
			Help: "ACL cache hits.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brokerd_acl_cache_misses_total",
			Help: "ACL cache misses.",
		}),
	}
}

func (c *Cache) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.hits, c.misses}
}

func (c *Cache) sessionFor(id types.Id, create bool) *sessionCache {
	if v, ok := c.sessions.Load(id); ok {
		return v.(*sessionCache)
	}
	if !create {
		return nil
	}
	sc := &sessionCache{rules: make(map[string]Entry)}
	actual, _ := c.sessions.LoadOrStore(id, sc)
	return actual.(*sessionCache)
}

// Get returns a cached, still-valid verdict for (id, topic).
func (c *Cache) Get(id types.Id, topic string) (Entry, bool) {
	sc := c.sessionFor(id, false)
	if sc == nil {
		c.misses.Inc()
		return Entry{}, false
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	e, ok := sc.rules[topic]
	if !ok || e.expired(time.Now().UnixMilli()) {
		c.misses.Inc()
		return Entry{}, false
	}
	c.hits.Inc()
	return e, true
}

// Set stores a verdict for (id, topic). ttlMillis<0 never expires;
// ttlMillis==0 expires immediately (not cached in effect);
// ttlMillis>0 is an offset from now.
func (c *Cache) Set(id types.Id, topic string, verdict types.Verdict, ttlMillis int64) {
	sc := c.sessionFor(id, true)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	expireAt := ttlMillis
	if ttlMillis >= 0 {
		expireAt = time.Now().UnixMilli() + ttlMillis
	}
	sc.rules[topic] = Entry{Verdict: verdict, ExpireAtMillis: expireAt}
}

// Remove drops every cached entry for id, called on ClientDisconnected.
func (c *Cache) Remove(id types.Id) {
	c.sessions.Delete(id)
}

// Len reports the number of sessions currently holding cache entries, used
// by Plugin.Attrs introspection.
func (c *Cache) Len() int {
	n := 0
	c.sessions.Range(func(_, _ any) bool { n++; return true })
	return n
}

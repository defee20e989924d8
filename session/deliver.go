package session

import (
	"sync"

	"github.com/brokerd/brokerd/types"
)

// DeliverQueue is a bounded FIFO of messages waiting to be delivered to a
// client. When full, new publishes are dropped (DropOldest=false) or the
// oldest entry is evicted to make room (DropOldest=true) - the broker
// decides which policy applies per listener.
type DeliverQueue struct {
	mu         sync.Mutex
	items      []DeliverItem
	max        int
	dropOldest bool
	dropped    int64
}

// DeliverItem pairs a publish with the session that produced it, mirroring
// the (From, Publish) tuple carried through the original's offline
// message path.
type DeliverItem struct {
	From    types.Id
	Publish types.Publish
}

// InflightMessage is an outbound QoS 1/2 publish awaiting acknowledgment,
// captured verbatim across a disconnect/rebuild cycle.
type InflightMessage struct {
	PacketID uint16
	Publish  types.Publish
	Dup      bool
}

// NewDeliverQueue creates a deliver queue bounded at max entries. max<=0
// means unbounded.
func NewDeliverQueue(max int) *DeliverQueue {
	return &DeliverQueue{max: max}
}

// SetDropOldest controls the full-queue eviction policy.
func (q *DeliverQueue) SetDropOldest(dropOldest bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropOldest = dropOldest
}

// Push appends an item to the queue. It reports false if the item was
// dropped because the queue was full and drop-oldest is disabled.
func (q *DeliverQueue) Push(item DeliverItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.max > 0 && len(q.items) >= q.max {
		if !q.dropOldest {
			q.dropped++
			return false
		}
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, item)
	return true
}

// Drain removes and returns every queued item, oldest first.
func (q *DeliverQueue) Drain() []DeliverItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued items.
func (q *DeliverQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items were discarded because the queue was
// full.
func (q *DeliverQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

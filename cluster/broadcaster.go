package cluster

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// PeerReply pairs one peer's node id with the outcome of a broadcast
// round trip, matching (NodeId, Result<MessageReply>) from the original
// MessageBroadcaster.
type PeerReply struct {
	NodeId uint64
	Reply  MessageReply
	Err    error
}

// Broadcaster fans a single Message out to every configured peer.
type Broadcaster struct {
	peers map[uint64]*Client
}

func NewBroadcaster(peers map[uint64]*Client) *Broadcaster {
	return &Broadcaster{peers: peers}
}

// JoinAll sends m to every peer concurrently and waits for all of them,
// collecting every reply (and error) rather than stopping early -
// equivalent to futures::future::join_all.
func (b *Broadcaster) JoinAll(ctx context.Context, m Message, timeout time.Duration) []PeerReply {
	results := make([]PeerReply, len(b.peers))
	var g errgroup.Group

	i := 0
	idx := make(map[int]uint64, len(b.peers))
	for nodeID, client := range b.peers {
		i, nodeID, client := i, nodeID, client
		idx[i] = nodeID
		g.Go(func() error {
			reply, err := client.SendMessage(ctx, m, timeout)
			results[i] = PeerReply{NodeId: nodeID, Reply: reply, Err: err}
			return nil
		})
		i++
	}
	_ = g.Wait()
	return results
}

// SelectOK races every peer and returns the first reply for which check
// returns true, canceling the rest. If no peer satisfies check, it waits
// for every peer and returns the last reply received (with its error, if
// any) and false - equivalent to futures::future::select_ok paired with a
// result predicate.
func (b *Broadcaster) SelectOK(ctx context.Context, m Message, timeout time.Duration, check func(MessageReply) bool) (PeerReply, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		reply PeerReply
		ok    bool
	}
	ch := make(chan result, len(b.peers))

	for nodeID, client := range b.peers {
		nodeID, client := nodeID, client
		go func() {
			reply, err := client.SendMessage(ctx, m, timeout)
			pr := PeerReply{NodeId: nodeID, Reply: reply, Err: err}
			ch <- result{reply: pr, ok: err == nil && check(reply)}
		}()
	}

	var last PeerReply
	for range b.peers {
		r := <-ch
		if r.ok {
			return r.reply, true
		}
		last = r.reply
	}
	return last, false
}

// Package retainer keeps the last retained message for every topic a
// publisher has retained, and answers trie-matched lookups when a client
// subscribes. It mirrors rmqtt-retainer: a Ram variant for standalone
// brokers and a Backend variant (Pebble or Redis) for persistence across
// restarts, only the latter of which is safe to run when the broker is
// clustered.
package retainer

import (
	"context"
	"errors"

	"github.com/brokerd/brokerd/types/message"
)

// ErrNotSupported is returned when a non-cluster-capable storage engine is
// asked to run in a clustered deployment, matching rmqtt-retainer's
// ERR_NOT_SUPPORTED constant.
var ErrNotSupported = errors.New("retainer: storage engine does not support cluster mode")

// ErrMaxReached is returned by Set when the configured cap on distinct
// retained topics has been reached and topic is not already retained.
var ErrMaxReached = errors.New("retainer: max retained messages reached")

// Storage is implemented by every retained-message backend. Set with an
// empty payload deletes the topic's retained message, matching the MQTT
// wire convention carried through from store.RetainedStore.
type Storage interface {
	Set(ctx context.Context, topic string, msg *message.Message) error
	Get(ctx context.Context, topic string) (*message.Message, error)
	Delete(ctx context.Context, topic string) error
	Match(ctx context.Context, topicFilter string) ([]*message.Message, error)
	Count(ctx context.Context) (int64, error)

	// Max reports the configured cap on distinct retained topics, 0 for
	// unlimited.
	Max() int

	// SupportsCluster reports whether this engine may be used when the
	// broker is running with cluster/gRPC peers enabled.
	SupportsCluster() bool

	Close() error
}

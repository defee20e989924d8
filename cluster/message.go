// Package cluster implements the gRPC message layer that lets broker
// nodes forward publishes, query remote session state and broadcast
// administrative queries, grounded in full on rmqtt's grpc.rs.
package cluster

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/brokerd/brokerd/types"
)

// MessageType tags the payload carried in an envelope. Values below 1000
// are reserved for the broker kernel itself (mirroring the original's
// MESSAGE_TYPE_MESSAGE_GET=22 convention); plugins and extensions should
// use values >= 1000.
type MessageType uint64

const (
	MessageTypeForwards MessageType = iota + 1
	MessageTypeForwardsTo
	MessageTypeKick
	MessageTypeGetRetains
	MessageTypeSubscriptionsSearch
	MessageTypeSubscriptionsGet
	MessageTypeRoutesGet
	MessageTypeRoutesGetBy
	MessageTypeNumberOfClients
	MessageTypeNumberOfSessions
	MessageTypeOnline
	MessageTypeSessionStatus
	// MessageTypeMessageGet is routed directly to the session/message
	// manager by the server rather than through the hook bus.
	MessageTypeMessageGet MessageType = 22
	MessageTypeData       MessageType = 23
)

// Message is the tagged union of every request payload the cluster layer
// can carry, preserving the shape (and therefore the wire order) of the
// original Message enum: Forwards, ForwardsTo, Kick, GetRetains,
// SubscriptionsSearch, SubscriptionsGet, RoutesGet, RoutesGetBy,
// NumberOfClients, NumberOfSessions, Online, SessionStatus, MessageGet,
// Data.
type Message struct {
	Type MessageType `cbor:"1,keyasint"`

	Forwards          *ForwardsPayload          `cbor:"2,keyasint,omitempty"`
	ForwardsTo        *ForwardsToPayload        `cbor:"3,keyasint,omitempty"`
	Kick              *KickPayload              `cbor:"4,keyasint,omitempty"`
	TopicFilter       string                    `cbor:"5,keyasint,omitempty"`
	SubsSearch        *types.SubsSearchParams   `cbor:"6,keyasint,omitempty"`
	ClientId          string                    `cbor:"7,keyasint,omitempty"`
	RoutesLimit       int                       `cbor:"8,keyasint,omitempty"`
	MessageGet        *MessageGetPayload        `cbor:"9,keyasint,omitempty"`
	Data              []byte                    `cbor:"10,keyasint,omitempty"`
}

type ForwardsPayload struct {
	From    types.Id
	Publish types.Publish
}

type ForwardsToPayload struct {
	From         types.Id
	Publish      types.Publish
	SubRelations []types.SubRelations
}

type KickPayload struct {
	ClientId             string
	CleanStart           bool
	ClearSubscriptions   bool
	IsAdmin              bool
}

type MessageGetPayload struct {
	ClientId    string
	TopicFilter string
	SharedGroup string
}

// ReplyKind tags MessageReply, mirroring the original's MessageReply enum.
type ReplyKind byte

const (
	ReplySuccess ReplyKind = iota
	ReplyForwards
	ReplyError
	ReplyKick
	ReplyGetRetains
	ReplySubscriptionsSearch
	ReplySubscriptionsGet
	ReplyRoutesGet
	ReplyRoutesGetBy
	ReplyNumberOfClients
	ReplyNumberOfSessions
	ReplyOnline
	ReplySessionStatus
	ReplyMessageGet
	ReplyData
)

type MessageReply struct {
	Kind ReplyKind `cbor:"1,keyasint"`

	ErrorText      string                     `cbor:"2,keyasint,omitempty"`
	Count          int64                      `cbor:"3,keyasint,omitempty"`
	Online         bool                       `cbor:"4,keyasint,omitempty"`
	SessionStatus  *types.SessionStatus       `cbor:"5,keyasint,omitempty"`
	SubsResult     []types.SubsSearchResult   `cbor:"6,keyasint,omitempty"`
	Data           []byte                     `cbor:"7,keyasint,omitempty"`
}

// Envelope is the (MessageType, Message) tuple placed on the wire,
// matching bincode::serialize(&(typ, self)) in the original: the type tag
// travels alongside the payload so routing (e.g. MessageGet fast-path) does
// not require decoding the full payload first.
type Envelope struct {
	Type    MessageType
	Payload []byte // CBOR-encoded Message or MessageReply
}

func EncodeMessage(m Message) ([]byte, error) {
	payload, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("cluster: encode message: %w", err)
	}
	return cbor.Marshal(Envelope{Type: m.Type, Payload: payload})
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("cluster: decode envelope: %w", err)
	}
	return env, nil
}

func DecodeMessage(env Envelope) (Message, error) {
	var m Message
	if err := cbor.Unmarshal(env.Payload, &m); err != nil {
		return Message{}, fmt.Errorf("cluster: decode message: %w", err)
	}
	return m, nil
}

func EncodeReply(r MessageReply) ([]byte, error) {
	return cbor.Marshal(r)
}

func DecodeReply(raw []byte) (MessageReply, error) {
	var r MessageReply
	if err := cbor.Unmarshal(raw, &r); err != nil {
		return MessageReply{}, fmt.Errorf("cluster: decode reply: %w", err)
	}
	return r, nil
}

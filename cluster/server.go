package cluster

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/brokerd/brokerd/hook"
)

const (
	maxFrameBytes    = 4 << 20 // 4MiB, matches max_decoding/encoding_message_size
	priorityChanSize = 300_000
	bindRetryDelay   = 3 * time.Second
)

// MessageGetter handles MessageTypeMessageGet directly, bypassing the hook
// bus, matching the original server's "route MESSAGE_TYPE_MESSAGE_GET
// straight to the message manager" behavior.
type MessageGetter interface {
	MessageGet(ctx context.Context, p MessageGetPayload) (MessageReply, error)
}

// Server is the cluster-facing gRPC endpoint a broker node listens on. It
// implements clusterServer and dispatches everything except MessageGet
// through the hook bus's GrpcMessageReceived event, so plugins (e.g. the
// session-storage or retainer plugin) can answer cluster queries without
// the server package knowing about their internals.
type Server struct {
	bus     *hook.Bus
	getter  MessageGetter
	logger  *slog.Logger
	grpcSrv *grpc.Server
}

func NewServer(bus *hook.Bus, getter MessageGetter, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	allOpts := append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxFrameBytes),
		grpc.MaxSendMsgSize(maxFrameBytes),
	}, opts...)

	s := &Server{bus: bus, getter: getter, logger: logger}
	g := grpc.NewServer(allOpts...)
	g.RegisterService(&ServiceDesc, clusterServer(s))
	s.grpcSrv = g
	return s
}

// ListenAndServe binds addr and serves until ctx is canceled, retrying
// every 3s on bind failure, matching the original GrpcServer's retry loop.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	for {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			s.logger.Error("cluster: bind failed, retrying", "addr", addr, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(bindRetryDelay):
				continue
			}
		}

		serveErrCh := make(chan error, 1)
		go func() { serveErrCh <- s.grpcSrv.Serve(lis) }()

		select {
		case <-ctx.Done():
			s.grpcSrv.GracefulStop()
			return ctx.Err()
		case err := <-serveErrCh:
			if err != nil {
				s.logger.Error("cluster: serve failed, retrying", "addr", addr, "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(bindRetryDelay):
					continue
				}
			}
			return nil
		}
	}
}

// Send implements clusterServer: decode the envelope, route MessageGet
// directly, otherwise dispatch to the hook bus.
func (s *Server) Send(ctx context.Context, req []byte) ([]byte, error) {
	env, err := DecodeEnvelope(req)
	if err != nil {
		return EncodeReply(MessageReply{Kind: ReplyError, ErrorText: err.Error()})
	}

	if env.Type == MessageTypeMessageGet {
		return s.handleMessageGet(ctx, env)
	}

	result := s.bus.Dispatch(ctx, hook.GrpcMessageReceived, hook.Parameter{
		GrpcType:    uint64(env.Type),
		GrpcMessage: env.Payload,
	})
	if result.Err != nil {
		return EncodeReply(MessageReply{Kind: ReplyError, ErrorText: result.Err.Error()})
	}
	if reply, ok := result.Reply.(MessageReply); ok {
		return EncodeReply(reply)
	}
	return EncodeReply(MessageReply{Kind: ReplySuccess})
}

func (s *Server) handleMessageGet(ctx context.Context, env Envelope) ([]byte, error) {
	if s.getter == nil {
		return EncodeReply(MessageReply{Kind: ReplyError, ErrorText: "cluster: no message getter installed"})
	}
	msg, err := DecodeMessage(env)
	if err != nil {
		return EncodeReply(MessageReply{Kind: ReplyError, ErrorText: err.Error()})
	}
	if msg.MessageGet == nil {
		return EncodeReply(MessageReply{Kind: ReplyError, ErrorText: "cluster: missing MessageGet payload"})
	}
	reply, err := s.getter.MessageGet(ctx, *msg.MessageGet)
	if err != nil {
		return EncodeReply(MessageReply{Kind: ReplyError, ErrorText: err.Error()})
	}
	return EncodeReply(reply)
}

// Transfer implements the duplex mailbox stream: frames received from the
// peer are forwarded onto the hook bus as GrpcMessageReceived events, with
// no reply written back onto the stream (fire-and-forget, matching the
// original's notify() semantics as opposed to send_message()'s req/reply).
func (s *Server) Transfer(stream grpc.ServerStream) error {
	for {
		var frame []byte
		if err := stream.RecvMsg(&frame); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		env, err := DecodeEnvelope(frame)
		if err != nil {
			s.logger.Warn("cluster: dropping malformed duplex frame", "error", err)
			continue
		}

		s.bus.Dispatch(stream.Context(), hook.GrpcMessageReceived, hook.Parameter{
			GrpcType:    uint64(env.Type),
			GrpcMessage: env.Payload,
		})
	}
}

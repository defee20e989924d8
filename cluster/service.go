package cluster

import (
	"context"

	"google.golang.org/grpc"
)

// clusterServer is implemented by Server (below) and is the HandlerType
// target of ServiceDesc. It is intentionally minimal: Send handles one
// request/reply round trip, Transfer is a bidirectional stream of raw
// frames used for the duplex mailbox a peer keeps open for unsolicited
// Forwards/ForwardsTo traffic.
type clusterServer interface {
	Send(ctx context.Context, req []byte) ([]byte, error)
	Transfer(stream grpc.ServerStream) error
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req []byte
	if err := dec(&req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(clusterServer).Send(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceDesc.ServiceName + "/Send"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(clusterServer).Send(ctx, req.([]byte))
	}
	return interceptor(ctx, req, info, handler)
}

func transferHandler(srv any, stream grpc.ServerStream) error {
	return srv.(clusterServer).Transfer(stream)
}

// ServiceDesc is the hand-authored equivalent of a protoc-generated
// grpc.ServiceDesc: one unary RPC (Send) for request/reply traffic and one
// bidi-streaming RPC (Transfer) for the duplex mailbox, exactly the two
// transport shapes rmqtt's grpc.rs needs (send_message/notify, and the
// duplex_mailbox forwarding stream).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "brokerd.cluster.Cluster",
	HandlerType: (*clusterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Transfer",
			Handler:       transferHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "brokerd/cluster.proto",
}

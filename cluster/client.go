package cluster

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var activeTasksGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "brokerd_cluster_active_tasks",
	Help: "In-flight SendMessage/Notify calls per cluster peer.",
}, []string{"peer"})

// Collectors exposes the package-level cluster metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{activeTasksGauge}
}

// Client is a gRPC connection to one cluster peer: a unary channel for
// request/reply traffic (SendMessage) and a long-lived duplex stream for
// fire-and-forget notifications (Notify), mirroring GrpcClient's
// mailbox/duplex_mailbox split.
type Client struct {
	peerAddr   string
	conn       *grpc.ClientConn
	activeTask atomic.Int64

	duplex     grpc.ClientStream
	duplexSend chan []byte
}

// DialOptions are the defaults applied to every peer connection: insecure
// transport (cluster traffic is assumed to run over a private network, as
// the source system does by default), lazy connect, and the raw codec.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rawCodecName)),
		grpc.WithConnectParams(grpc.ConnectParams{MinConnectTimeout: 10 * time.Second}),
	}
}

// Dial connects to a peer lazily: the TCP/HTTP2 handshake happens on first
// RPC rather than inside Dial, matching connect_lazy() in the original.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	allOpts := append(DialOptions(), opts...)
	conn, err := grpc.NewClient(addr, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("cluster: dial %s: %w", addr, err)
	}
	return &Client{
		peerAddr:   addr,
		conn:       conn,
		duplexSend: make(chan []byte, priorityChanSize/3), // 100_000, matching duplex_transfer_start
	}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// ActiveTasks returns the number of in-flight SendMessage/Notify calls,
// the Go equivalent of active_tasks: Arc<Counter>.
func (c *Client) ActiveTasks() int64 { return c.activeTask.Load() }

// SendMessage performs a request/reply round trip against the peer's
// unary Send RPC, with an optional deadline.
func (c *Client) SendMessage(ctx context.Context, m Message, timeout time.Duration) (MessageReply, error) {
	c.activeTask.Add(1)
	activeTasksGauge.WithLabelValues(c.peerAddr).Inc()
	defer func() {
		c.activeTask.Add(-1)
		activeTasksGauge.WithLabelValues(c.peerAddr).Dec()
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := EncodeMessage(m)
	if err != nil {
		return MessageReply{}, err
	}

	var resp []byte
	err = c.conn.Invoke(ctx, "/"+ServiceDesc.ServiceName+"/Send", req, &resp,
		grpc.CallContentSubtype(rawCodecName))
	if err != nil {
		return MessageReply{}, fmt.Errorf("cluster: send to %s: %w", c.peerAddr, err)
	}
	return DecodeReply(resp)
}

// Notify fire-and-forgets m onto the duplex mailbox, establishing the
// stream lazily on first use. Unlike SendMessage it never waits for a
// reply.
func (c *Client) Notify(ctx context.Context, m Message) error {
	c.activeTask.Add(1)
	activeTasksGauge.WithLabelValues(c.peerAddr).Inc()
	defer func() {
		c.activeTask.Add(-1)
		activeTasksGauge.WithLabelValues(c.peerAddr).Dec()
	}()

	stream, err := c.duplexStream(ctx)
	if err != nil {
		return err
	}

	frame, err := EncodeMessage(m)
	if err != nil {
		return err
	}
	return stream.SendMsg(&frame)
}

func (c *Client) duplexStream(ctx context.Context) (grpc.ClientStream, error) {
	if c.duplex != nil {
		return c.duplex, nil
	}
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceDesc.ServiceName+"/Transfer",
		grpc.CallContentSubtype(rawCodecName))
	if err != nil {
		return nil, fmt.Errorf("cluster: open duplex stream to %s: %w", c.peerAddr, err)
	}
	c.duplex = stream
	return stream, nil
}

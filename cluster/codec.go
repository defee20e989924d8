package cluster

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// rawCodecName is registered with grpc-go's codec registry so both client
// and server treat every message as an opaque byte slice. The cluster
// service has no .proto file: its ServiceDesc (service.go) is authored by
// hand and every method's wire payload is already a CBOR-encoded Envelope
// (message.go), so there is nothing left for a protobuf codec to do.
const rawCodecName = "brokerd-raw"

type rawCodec struct{}

func (rawCodec) Name() string { return rawCodecName }

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if ok {
		return *b, nil
	}
	if raw, ok := v.([]byte); ok {
		return raw, nil
	}
	return nil, fmt.Errorf("cluster: rawCodec.Marshal: unsupported type %T", v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	dst, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("cluster: rawCodec.Unmarshal: unsupported type %T", v)
	}
	*dst = append((*dst)[:0], data...)
	return nil
}

func init() {
	encoding.RegisterCodec(rawCodec{})
}

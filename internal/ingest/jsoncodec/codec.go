// Package jsoncodec registers a JSON encoding.Codec with grpc so that the
// hand-written pb messages (plain Go structs, no protoc) can travel over a
// real *grpc.Server/*grpc.ClientConn. This is the substitution documented in
// SPEC_FULL.md for internal/ingest: protobuf wire framing and codegen are
// replaced, but the transport, deadlines, interceptors, and status codes are
// the genuine google.golang.org/grpc ones.
package jsoncodec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype grpc uses to select this codec, registered
// via encoding.RegisterCodec at package init.
const Name = "json"

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsoncodec: marshal: %w", err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("jsoncodec: unmarshal: %w", err)
	}
	return nil
}

func (codec) Name() string {
	return Name
}

// protoCodec registers the same JSON implementation under grpc's default
// content-subtype name ("proto"), so callers that dial without an explicit
// grpc.CallContentSubtype still round-trip through JSON rather than hitting
// grpc-go's built-in protobuf codec, which cannot marshal these plain
// structs.
type protoCodec struct{ codec }

func (protoCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(codec{})
	encoding.RegisterCodec(protoCodec{})
}

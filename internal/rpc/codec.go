// Package rpc implements the optional gRPC front end: a UI process
// attaches over a local Unix socket and drives the same
// Search/Sort/ModifySelection/GetItemInfo operations the Work
// Scheduler exposes in-process (§4.5, §4.6).
//
// Requests and replies are plain Go structs rather than
// protoc-generated messages — the front end registers a JSON
// encoding.Codec (a documented grpc-go extension point, see
// google.golang.org/grpc/encoding) instead of depending on generated
// .pb.go stubs, so the real grpc.Server/transport is exercised without
// a code-generation step.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

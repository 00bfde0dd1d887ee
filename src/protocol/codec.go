package protocol

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const (
	// CodecName is the content-subtype of the protobuf binary codec, the one
	// the AgentService server speaks.
	CodecName = "proto"
	// JSONCodecName is the content-subtype of the JSON codec.
	JSONCodecName = "json"
)

var (
	// Codec encodes AgentService messages in the protobuf binary format. It
	// is forced per call rather than registered so grpc's own proto codec
	// stays in place for generated messages elsewhere in the process.
	Codec encoding.Codec = wireCodec{}
	// JSONCodec encodes messages as JSON with proto field names.
	JSONCodec encoding.Codec = jsonCodec{}
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	data, err := MarshalWire(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %T: %w", v, err)
	}
	return data, nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	if err := UnmarshalWire(data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal %T: %w", v, err)
	}
	return nil
}

func (wireCodec) Name() string { return CodecName }

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return JSONCodecName }

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/kmntree/onos/types"
)

// JSONCodec serializes leadership events as JSON.
type JSONCodec struct{}

// Compile-time assertion that JSONCodec implements EventCodec.
var _ types.EventCodec = (*JSONCodec)(nil)

// JSON returns the default JSON event codec.
func JSON() *JSONCodec {
	return &JSONCodec{}
}

// Encode serializes the event to JSON bytes.
func (c *JSONCodec) Encode(event types.LeadershipEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode leadership event: %w", err)
	}

	return data, nil
}

// Decode deserializes an event previously produced by Encode.
func (c *JSONCodec) Decode(data []byte) (types.LeadershipEvent, error) {
	var event types.LeadershipEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return types.LeadershipEvent{}, fmt.Errorf("failed to decode leadership event: %w", err)
	}

	return event, nil
}

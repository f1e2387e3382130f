package serializer

import "github.com/taskfire/taskfire-go/rpc/common"

// IRPCSerializer is the interface for all wire format implementations
type IRPCSerializer interface {
	// SerializeRequest encodes a tagged request for the wire.
	// It fails for values the format cannot represent (cycles, channels, functions, ...)
	SerializeRequest(req common.Request) ([]byte, error)
	// DeserializeRequest decodes a request read from the wire (used by the server side)
	DeserializeRequest(b []byte) (common.Request, error)
	// SerializeEnvelope encodes an envelope for the wire (used by the server side)
	SerializeEnvelope(env common.Envelope) ([]byte, error)
	// DeserializeEnvelope parses an incoming message into its tagged variant in one step
	DeserializeEnvelope(b []byte) (common.Inbound, error)
	// GetName returns the name of the format (e.g. "json")
	GetName() string
}

// Package serializer provides the wire format of the task-queue protocol.
// It defines a common interface so that the client core, the transports and the
// development server never depend on a concrete encoding.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//     Incoming envelopes are parsed in a single step into the common.Inbound tagged
//     variant (Response, Work or Unknown).
//
//   - jsonSerializerImpl: The structured text format spoken by the service. Outgoing
//     requests that cannot be represented (self-referential maps, channels, functions)
//     fail with an error instead of producing partial output.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.SerializeRequest(req.WithRequestID(1))
//	// ... send data ...
//	msg, err := s.DeserializeEnvelope(received)
//	switch m := msg.(type) {
//	case common.Response:
//	case common.Work:
//	case common.Unknown:
//	}
package serializer

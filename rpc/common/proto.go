package common

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// --------------------------------------------------------------------------
// Message Kind
// --------------------------------------------------------------------------

// MessageKind is the discriminator of an envelope on the wire
type MessageKind string

const (
	// KindResponse marks a reply to a request issued by the client
	KindResponse MessageKind = "RESPONSE"
	// KindWork marks an unsolicited work assignment pushed by the server
	KindWork MessageKind = "WORK"
)

// Close codes used by the transports for the close handshake (same values as RFC 6455)
const (
	CloseNormal    = 1000 // Normal closure, the purpose of the connection has been fulfilled
	CloseGoingAway = 1001
	CloseProtocol  = 1002
	CloseAbnormal  = 1006 // Connection dropped without a close handshake
	ClosePolicy    = 1008 // Rejected by the server, e.g. wrong token
)

// Status range that marks an application error. Both bounds are inclusive.
const (
	StatusErrorMin = 400
	StatusErrorMax = 599
)

// IsErrorStatus reports whether a RESPONSE status settles its request as a failure.
// Everything outside [400, 599] counts as success, including undefined codes like 600.
func IsErrorStatus(status int) bool {
	return status >= StatusErrorMin && status <= StatusErrorMax
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// Envelope is one complete message exchanged over the connection.
// Which fields are used depends on the kind:
//
//	{ kind: "RESPONSE", requestId: <uint>, status: <int>, payload: <any> }
//	{ kind: "WORK", payload: <any> }
type Envelope struct {
	Kind      MessageKind     `json:"kind"`
	RequestID uint64          `json:"requestId,omitempty"` // Used for: RESPONSE
	Status    int             `json:"status,omitempty"`    // Used for: RESPONSE
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unmarshals the raw payload into v
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope has no payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// String returns a short human-readable description (used in logs and errors)
func (e Envelope) String() string {
	switch e.Kind {
	case KindResponse:
		return fmt.Sprintf("%s #%d (%d) %s", e.Kind, e.RequestID, e.Status, string(e.Payload))
	default:
		return fmt.Sprintf("%s %s", e.Kind, string(e.Payload))
	}
}

// NewResponseEnvelope builds a RESPONSE envelope for the given request id
func NewResponseEnvelope(requestID uint64, status int, payload json.RawMessage) Envelope {
	return Envelope{
		Kind:      KindResponse,
		RequestID: requestID,
		Status:    status,
		Payload:   payload,
	}
}

// NewWorkEnvelope builds a WORK envelope
func NewWorkEnvelope(payload json.RawMessage) Envelope {
	return Envelope{
		Kind:    KindWork,
		Payload: payload,
	}
}

// --------------------------------------------------------------------------
// Inbound (tagged variant produced by a single parse step)
// --------------------------------------------------------------------------

// Inbound is the parsed form of an incoming envelope.
// It is one of Response, Work or Unknown; the set is closed.
type Inbound interface {
	// Raw returns the envelope as it was read from the wire
	Raw() Envelope
	inbound()
}

// Response is a reply correlated to a pending request by its id
type Response struct{ Envelope }

// Work is an unsolicited server push
type Work struct{ Envelope }

// Unknown is any envelope whose kind is neither RESPONSE nor WORK
type Unknown struct{ Envelope }

func (r Response) Raw() Envelope { return r.Envelope }
func (w Work) Raw() Envelope     { return w.Envelope }
func (u Unknown) Raw() Envelope  { return u.Envelope }

func (Response) inbound() {}
func (Work) inbound()     {}
func (Unknown) inbound()  {}

// Classify turns a decoded envelope into its tagged variant
func Classify(env Envelope) Inbound {
	switch env.Kind {
	case KindResponse:
		return Response{env}
	case KindWork:
		return Work{env}
	default:
		return Unknown{env}
	}
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Field names injected into outgoing requests
const (
	FieldRequestID = "requestId"
	FieldProjectID = "projectId"
)

// Request is a logical request as supplied by the caller.
// The client injects the requestId field before the request is sent.
type Request map[string]any

// NewRequest converts any JSON-encodable value with object shape into a Request
func NewRequest(v any) (Request, error) {
	if r, ok := v.(Request); ok {
		return r, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("request is not encodable: %w", err)
	}
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("request must be an object: %w", err)
	}
	return r, nil
}

// With returns a shallow copy of the request with the field set.
// The receiver is never modified.
func (r Request) With(key string, value any) Request {
	c := make(Request, len(r)+1)
	for k, v := range r {
		c[k] = v
	}
	c[key] = value
	return c
}

// WithRequestID returns a copy of the request tagged with the given id
func (r Request) WithRequestID(id uint64) Request {
	return r.With(FieldRequestID, id)
}

// RequestID returns the id the request was tagged with
func (r Request) RequestID() (uint64, bool) {
	switch v := r[FieldRequestID].(type) {
	case uint64:
		return v, true
	case float64:
		if v < 1 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint64(v), true
	case json.Number:
		id, err := strconv.ParseUint(v.String(), 10, 64)
		return id, err == nil && id > 0
	default:
		return 0, false
	}
}

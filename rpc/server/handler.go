package server

import (
	"encoding/json"
	"github.com/taskfire/taskfire-go/rpc/common"
	"time"
)

// RequestHandler answers one request with a status code and a JSON-encodable payload.
// It may be called concurrently for requests of the same session.
type RequestHandler func(req common.Request) (status int, payload any)

// Request fields understood by EchoHandler
const (
	FieldStatus  = "status"  // status code of the reply (default 200)
	FieldDelayMs = "delayMs" // delay before replying, allows reordering replies
)

// EchoHandler replies with the request as payload. The status is taken from the
// status field of the request and defaults to 200.
func EchoHandler(req common.Request) (int, any) {
	if d, ok := number(req[FieldDelayMs]); ok && d > 0 {
		time.Sleep(time.Duration(d) * time.Millisecond)
	}

	status := 200
	if s, ok := number(req[FieldStatus]); ok {
		status = int(s)
	}
	return status, req
}

// number reads a numeric request field as decoded by the JSON serializer
func number(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

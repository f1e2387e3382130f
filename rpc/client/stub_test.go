package client

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/serializer"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"sync"
	"testing"
)

// stubTransport is an in-memory transport. Tests drive the events directly,
// which matches the single event goroutine of the real transports.
type stubTransport struct {
	mu         sync.Mutex
	events     transport.IEventHandler
	config     common.ClientConfig
	sent       [][]byte
	sendErr    error
	connectErr error
	closeCalls []int
	autoClose  bool // confirm Close immediately with OnClose
}

func (s *stubTransport) Connect(config common.ClientConfig, events transport.IEventHandler) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
	s.events = events
	return nil
}

func (s *stubTransport) Send(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

func (s *stubTransport) Close(code int, reason string) error {
	s.mu.Lock()
	s.closeCalls = append(s.closeCalls, code)
	auto := s.autoClose
	s.mu.Unlock()

	if auto {
		s.events.OnClose(code, reason)
	}
	return nil
}

func (s *stubTransport) GetName() string { return "stub" }

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

func (s *stubTransport) open()                          { s.events.OnOpen() }
func (s *stubTransport) fail(err error)                 { s.events.OnError(err) }
func (s *stubTransport) closed(code int, reason string) { s.events.OnClose(code, reason) }
func (s *stubTransport) deliver(raw string)             { s.events.OnMessage([]byte(raw)) }
func (s *stubTransport) reply(id uint64, status int, payload string) {
	s.deliver(fmt.Sprintf(`{"kind":"RESPONSE","requestId":%d,"status":%d,"payload":%s}`, id, status, payload))
}

func (s *stubTransport) setSendErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

func (s *stubTransport) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closeCalls)
}

// sentRequests decodes every message written so far
func (s *stubTransport) sentRequests(t *testing.T) []common.Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := make([]common.Request, 0, len(s.sent))
	for _, data := range s.sent {
		var r common.Request
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatalf("sent message is not valid JSON: %v", err)
		}
		reqs = append(reqs, r)
	}
	return reqs
}

// errorRecorder collects connection level errors
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) handle(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// newTestClient creates a client on a stub transport
func newTestClient(t *testing.T, mutate func(*common.ClientConfig), opts ...Option) (*Client, *stubTransport, *errorRecorder) {
	t.Helper()

	config := common.ClientConfig{
		URL:   "ws://stub",
		Token: "test-token",
	}
	if mutate != nil {
		mutate(&config)
	}

	stub := &stubTransport{autoClose: true}
	rec := &errorRecorder{}
	opts = append([]Option{WithErrorHandler(rec.handle)}, opts...)

	c, err := NewClient(config, stub, serializer.NewJSONSerializer(), opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() {
		if !c.State().Terminal() {
			stub.closed(common.CloseNormal, "test cleanup")
		}
	})
	return c, stub, rec
}

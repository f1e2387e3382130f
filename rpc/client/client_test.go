package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/serializer"
	"github.com/taskfire/taskfire-go/rpc/sink"
	"sync"
	"testing"
	"time"
)

// TestMissingToken tests that a client cannot be created without a token
func TestMissingToken(t *testing.T) {
	c, err := NewClient(common.ClientConfig{URL: "ws://stub"}, &stubTransport{}, serializer.NewJSONSerializer())
	assert.Nil(t, c)
	assert.ErrorIs(t, err, common.ErrMissingToken)
}

// TestConnectFailure tests that a transport rejecting the configuration fails construction
func TestConnectFailure(t *testing.T) {
	stub := &stubTransport{connectErr: errors.New("bad url")}
	c, err := NewClient(common.ClientConfig{Token: "t"}, stub, serializer.NewJSONSerializer())
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "bad url")
}

// TestDefaultURL tests that an empty url falls back to the hosted service
func TestDefaultURL(t *testing.T) {
	_, stub, _ := newTestClient(t, func(c *common.ClientConfig) { c.URL = "" })
	assert.Equal(t, common.DefaultURL, stub.config.URL)
}

// TestRequestIDsIncrease tests that ids start at 1 and increase in issuance order
func TestRequestIDsIncrease(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	for i := 0; i < 5; i++ {
		out, err := c.Request(context.Background(), common.Request{"action": "task.fetch", "n": i}, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), out.RequestID())
	}

	reqs := stub.sentRequests(t)
	require.Len(t, reqs, 5)
	for i, r := range reqs {
		id, ok := r.RequestID()
		require.True(t, ok)
		assert.Equal(t, uint64(i+1), id)
		assert.EqualValues(t, i, r["n"])
	}
	assert.Equal(t, 5, c.Pending())
}

// TestRequestDoesNotModifyCaller tests that tagging works on a copy
func TestRequestDoesNotModifyCaller(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	req := common.Request{"action": "queue.create"}
	_, err := c.Request(context.Background(), req, nil)
	require.NoError(t, err)

	_, tagged := req[common.FieldRequestID]
	assert.False(t, tagged, "caller's request must not be tagged")
}

// TestDeferredUntilOpen tests that requests issued before open are flushed in order
func TestDeferredUntilOpen(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)

	var outs []*Outcome
	for i := 0; i < 3; i++ {
		out, err := c.Request(context.Background(), common.Request{"n": i}, nil)
		require.NoError(t, err)
		outs = append(outs, out)
	}

	assert.Empty(t, stub.sentRequests(t), "nothing may be written before open")
	assert.Equal(t, 3, c.Pending())
	assert.Equal(t, StatePending, c.State())

	stub.open()
	assert.Equal(t, StateOpen, c.State())

	reqs := stub.sentRequests(t)
	require.Len(t, reqs, 3)
	for i, r := range reqs {
		id, _ := r.RequestID()
		assert.Equal(t, uint64(i+1), id)
	}

	stub.reply(2, 200, `{"ok":true}`)
	env, err := outs[1].Result()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), env.RequestID)
}

// TestWaitOpen tests the readiness gate
func TestWaitOpen(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitOpen(ctx), context.DeadlineExceeded)

	stub.open()
	assert.NoError(t, c.WaitOpen(context.Background()))
}

// TestResponseResolves tests that a reply settles its request and leaves the table
func TestResponseResolves(t *testing.T) {
	c, stub, rec := newTestClient(t, nil)
	stub.open()

	out, err := c.Request(context.Background(), common.Request{"action": "queue.get"}, nil)
	require.NoError(t, err)
	assert.False(t, out.Settled())

	_, err = out.Result()
	assert.ErrorIs(t, err, common.ErrNotSettled)

	stub.reply(1, 200, `{"name":"emails"}`)

	env, err := out.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, env.Status)

	var payload struct{ Name string }
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "emails", payload.Name)

	assert.Equal(t, 0, c.Pending())
	assert.Empty(t, rec.all())
}

// TestOutOfOrderReplies tests that replies are matched by id, not by order
func TestOutOfOrderReplies(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	outs := make([]*Outcome, 3)
	for i := range outs {
		out, err := c.Request(context.Background(), common.Request{"n": i}, nil)
		require.NoError(t, err)
		outs[i] = out
	}

	stub.reply(3, 200, `"third"`)
	stub.reply(1, 200, `"first"`)
	stub.reply(2, 200, `"second"`)

	for i, want := range []string{`"first"`, `"second"`, `"third"`} {
		env, err := outs[i].Result()
		require.NoError(t, err)
		assert.JSONEq(t, want, string(env.Payload))
	}
}

// TestStatusPolicy tests which status codes reject a request
func TestStatusPolicy(t *testing.T) {
	testCases := []struct {
		status int
		failed bool
	}{
		{200, false},
		{201, false},
		{399, false},
		{400, true},
		{404, true},
		{500, true},
		{599, true},
		{600, false},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("Status%d", tc.status), func(t *testing.T) {
			c, stub, _ := newTestClient(t, nil)
			stub.open()

			out, err := c.Request(context.Background(), common.Request{"action": "x"}, nil)
			require.NoError(t, err)
			stub.reply(1, tc.status, `{"detail":"d"}`)

			env, err := out.Result()
			if !tc.failed {
				require.NoError(t, err)
				assert.Equal(t, tc.status, env.Status)
				return
			}

			var statusErr *common.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tc.status, statusErr.Envelope.Status)
			assert.JSONEq(t, `{"detail":"d"}`, string(statusErr.Envelope.Payload))
			assert.Nil(t, env)
		})
	}
}

// TestUnknownRequestID tests that a reply without pending request is a protocol error
func TestUnknownRequestID(t *testing.T) {
	c, stub, rec := newTestClient(t, nil)
	stub.open()

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.reply(99, 200, `null`)

	errs := rec.all()
	require.Len(t, errs, 1)
	var protoErr *common.ProtocolError
	require.ErrorAs(t, errs[0], &protoErr)
	assert.Equal(t, common.ProtocolUnknownRequestID, protoErr.Kind)
	assert.Equal(t, uint64(99), protoErr.RequestID)

	// the real request is untouched
	assert.False(t, out.Settled())
	assert.Equal(t, 1, c.Pending())

	// a second reply to an already settled id is unknown as well
	stub.reply(1, 200, `null`)
	stub.reply(1, 200, `null`)
	assert.Len(t, rec.all(), 2)
}

// TestWorkRoutedToSink tests that WORK goes to the sink and never touches the table
func TestWorkRoutedToSink(t *testing.T) {
	var mu sync.Mutex
	var work []common.Envelope
	s := sink.Func(func(env common.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		work = append(work, env)
	})

	c, stub, rec := newTestClient(t, nil, WithSink(s))
	stub.open()

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.deliver(`{"kind":"WORK","payload":{"task":"t-1"}}`)
	// a WORK envelope carrying the id of a pending request must not settle it
	stub.deliver(`{"kind":"WORK","requestId":1,"payload":{"task":"t-2"}}`)

	mu.Lock()
	require.Len(t, work, 2)
	assert.JSONEq(t, `{"task":"t-1"}`, string(work[0].Payload))
	assert.JSONEq(t, `{"task":"t-2"}`, string(work[1].Payload))
	mu.Unlock()

	assert.False(t, out.Settled())
	assert.Equal(t, 1, c.Pending())
	assert.Empty(t, rec.all())
	assert.Equal(t, int64(2), c.Latency().WorkCount)
}

// TestMalformedMessage tests that broken input is reported and dispatch continues
func TestMalformedMessage(t *testing.T) {
	c, stub, rec := newTestClient(t, nil)
	stub.open()

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.deliver(`{not json`)

	errs := rec.all()
	require.Len(t, errs, 1)
	var protoErr *common.ProtocolError
	require.ErrorAs(t, errs[0], &protoErr)
	assert.Equal(t, common.ProtocolMalformed, protoErr.Kind)

	stub.reply(1, 200, `"still works"`)
	env, err := out.Result()
	require.NoError(t, err)
	assert.JSONEq(t, `"still works"`, string(env.Payload))
}

// TestUnknownKind tests that unclassifiable messages are reported
func TestUnknownKind(t *testing.T) {
	_, stub, rec := newTestClient(t, nil)
	stub.open()

	stub.deliver(`{"kind":"PING","payload":1}`)

	errs := rec.all()
	require.Len(t, errs, 1)
	var protoErr *common.ProtocolError
	require.ErrorAs(t, errs[0], &protoErr)
	assert.Equal(t, common.ProtocolUnexpectedKind, protoErr.Kind)
	require.NotNil(t, protoErr.Envelope)
	assert.Equal(t, common.MessageKind("PING"), protoErr.Envelope.Kind)
}

// TestSerializationFailure tests that an unencodable request leaves no entry behind
func TestSerializationFailure(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	_, err := c.Request(context.Background(), common.Request{"ok": 1}, nil)
	require.NoError(t, err)
	before := c.Pending()

	selfRef := common.Request{"action": "loop"}
	selfRef["self"] = selfRef

	var cbErr error
	out, err := c.Request(context.Background(), selfRef, func(_ *common.Envelope, err error) { cbErr = err })
	assert.Nil(t, out)

	var serErr *common.SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.Equal(t, err, cbErr, "callback must see the same error")
	assert.Equal(t, before, c.Pending(), "no pending entry may leak")
	assert.Len(t, stub.sentRequests(t), 1)

	// the connection stays usable
	out, err = c.Request(context.Background(), common.Request{"ok": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, c.State())
	assert.Greater(t, out.RequestID(), uint64(1))

	_, err = c.Request(context.Background(), nil, nil)
	assert.ErrorAs(t, err, &serErr)
}

// TestCallbackAgreesWithOutcome tests that the callback subscribes to the same handle
func TestCallbackAgreesWithOutcome(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	type result struct {
		env *common.Envelope
		err error
	}
	results := make(chan result, 2)
	cb := func(env *common.Envelope, err error) { results <- result{env, err} }

	ok, err := c.Request(context.Background(), common.Request{}, cb)
	require.NoError(t, err)
	failed, err := c.Request(context.Background(), common.Request{}, cb)
	require.NoError(t, err)

	stub.reply(1, 200, `"yes"`)
	stub.reply(2, 500, `"no"`)

	first := <-results
	env, err := ok.Result()
	assert.Equal(t, env, first.env)
	assert.Equal(t, err, first.err)
	assert.NoError(t, first.err)

	second := <-results
	env, err = failed.Result()
	assert.Equal(t, env, second.env)
	assert.Equal(t, err, second.err)
	assert.Error(t, second.err)

	// late subscribers get the settled result immediately
	var late error
	failed.Then(func(_ *common.Envelope, err error) { late = err })
	assert.Equal(t, second.err, late)
}

// TestFailureBeforeOpen tests that a transport error before open rejects deferred requests
func TestFailureBeforeOpen(t *testing.T) {
	c, stub, rec := newTestClient(t, nil)

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	cause := errors.New("connection refused")
	stub.fail(cause)
	stub.closed(common.CloseAbnormal, "connection refused")

	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 0, c.Pending())

	_, err = out.Result()
	var connErr *common.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, common.ErrConnectionFailed)
	assert.ErrorIs(t, err, cause)

	// later requests fail right away
	_, err = c.Request(context.Background(), common.Request{}, nil)
	assert.ErrorIs(t, err, common.ErrConnectionFailed)

	assert.ErrorIs(t, c.WaitOpen(context.Background()), common.ErrConnectionFailed)
	assert.Len(t, rec.all(), 1)
	assert.Empty(t, stub.sentRequests(t))
}

// TestErrorAfterOpen tests that a transport error on an open connection is only reported
func TestErrorAfterOpen(t *testing.T) {
	c, stub, rec := newTestClient(t, nil)
	stub.open()

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.fail(errors.New("write: broken pipe"))

	assert.Equal(t, StateOpen, c.State())
	assert.False(t, out.Settled())
	assert.Len(t, rec.all(), 1)
}

// TestCloseWaitsForTransport tests the close handshake and what happens to requests
func TestCloseWaitsForTransport(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.autoClose = false
	stub.open()

	inFlight, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Close(context.Background(), nil) }()

	require.Eventually(t, func() bool { return stub.closeCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateClosing, c.State())

	// requests on the wire are not rejected by Close itself
	assert.False(t, inFlight.Settled())
	stub.reply(1, 200, `"made it"`)
	_, err = inFlight.Result()
	assert.NoError(t, err)

	// new requests are refused while closing
	_, err = c.Request(context.Background(), common.Request{}, nil)
	assert.ErrorIs(t, err, common.ErrConnectionClosed)

	select {
	case <-done:
		t.Fatal("Close returned before the transport confirmed")
	case <-time.After(20 * time.Millisecond):
	}

	stub.closed(common.CloseNormal, "client closed")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the transport confirmed")
	}
	assert.Equal(t, StateClosed, c.State())

	code, reason := c.CloseStatus()
	assert.Equal(t, common.CloseNormal, code)
	assert.Equal(t, "client closed", reason)

	// a second close returns at once
	assert.NoError(t, c.Close(context.Background(), nil))
	assert.Equal(t, 1, stub.closeCount())
}

// TestCloseRejectsUnsent tests that requests deferred before open are rejected by Close
func TestCloseRejectsUnsent(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	var cbErr error
	called := false
	err = c.Close(context.Background(), func(err error) { called, cbErr = true, err })
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, cbErr)

	_, err = out.Result()
	assert.ErrorIs(t, err, common.ErrConnectionClosed)
	assert.Equal(t, 0, c.Pending())
	assert.Empty(t, stub.sentRequests(t))
}

// TestCloseContext tests that Close gives up waiting when the context ends
func TestCloseContext(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.autoClose = false
	stub.open()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Close(ctx, nil), context.DeadlineExceeded)
	assert.Equal(t, StateClosing, c.State())
}

// TestPeerClose tests that a connection closed by the service rejects pending requests
func TestPeerClose(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.closed(common.CloseGoingAway, "server shutting down")

	assert.Equal(t, StateClosed, c.State())
	_, err = out.Result()
	assert.ErrorIs(t, err, common.ErrConnectionClosed)
	assert.Equal(t, 0, c.Pending())
}

// TestCancellation tests that cancelling the context settles and removes the request
func TestCancellation(t *testing.T) {
	c, stub, rec := newTestClient(t, nil)
	stub.open()

	ctx, cancel := context.WithCancel(context.Background())
	out, err := c.Request(ctx, common.Request{}, nil)
	require.NoError(t, err)

	cancel()

	select {
	case <-out.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelled request did not settle")
	}

	_, err = out.Result()
	assert.ErrorIs(t, err, common.ErrRequestCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Pending())

	// the late reply is dropped silently
	stub.reply(1, 200, `null`)
	assert.Empty(t, rec.all())

	// an already cancelled context fails synchronously
	_, err = c.Request(ctx, common.Request{}, nil)
	assert.ErrorIs(t, err, common.ErrRequestCancelled)
	assert.Equal(t, 0, c.Pending())
}

// TestRequestTimeout tests request expiry
func TestRequestTimeout(t *testing.T) {
	c, stub, rec := newTestClient(t, func(c *common.ClientConfig) { c.TimeoutSecond = 1 })
	stub.open()

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)
	answered, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.reply(2, 200, `null`)
	assert.Equal(t, 1, c.deadlines.len(), "answered requests must drop their deadline")

	select {
	case <-out.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("request did not expire")
	}

	_, err = out.Result()
	assert.ErrorIs(t, err, common.ErrRequestTimeout)
	_, err = answered.Result()
	assert.NoError(t, err)
	assert.Equal(t, 0, c.Pending())

	stub.reply(1, 200, `null`)
	assert.Empty(t, rec.all())
}

// TestMaxPending tests the backpressure cap
func TestMaxPending(t *testing.T) {
	c, stub, _ := newTestClient(t, func(c *common.ClientConfig) { c.MaxPending = 2 })
	stub.open()

	for i := 0; i < 2; i++ {
		_, err := c.Request(context.Background(), common.Request{}, nil)
		require.NoError(t, err)
	}

	_, err := c.Request(context.Background(), common.Request{}, nil)
	assert.ErrorIs(t, err, common.ErrTooManyPending)

	stub.reply(1, 200, `null`)
	_, err = c.Request(context.Background(), common.Request{}, nil)
	assert.NoError(t, err)
}

// TestProjectID tests that the configured project id is attached unless set
func TestProjectID(t *testing.T) {
	c, stub, _ := newTestClient(t, func(c *common.ClientConfig) { c.ProjectID = "p-1" })
	stub.open()

	_, err := c.Request(context.Background(), common.Request{"action": "run.list"}, nil)
	require.NoError(t, err)
	_, err = c.Request(context.Background(), common.Request{"projectId": "p-2"}, nil)
	require.NoError(t, err)

	reqs := stub.sentRequests(t)
	require.Len(t, reqs, 2)
	assert.Equal(t, "p-1", reqs[0][common.FieldProjectID])
	assert.Equal(t, "p-2", reqs[1][common.FieldProjectID])
}

// TestTransportSendFailure tests that a failed write removes the entry
func TestTransportSendFailure(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()
	stub.setSendErr(errors.New("broken pipe"))

	out, err := c.Request(context.Background(), common.Request{}, nil)
	assert.Nil(t, out)

	var transportErr *common.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "send", transportErr.Op)
	assert.Equal(t, 0, c.Pending())
}

// TestFlushFailure tests that a deferred request whose write fails is rejected
func TestFlushFailure(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)

	out, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)

	stub.setSendErr(errors.New("broken pipe"))
	stub.open()

	_, err = out.Result()
	var transportErr *common.TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 0, c.Pending())
}

// TestDo tests the blocking form
func TestDo(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	go func() {
		assert.Eventually(t, func() bool { return c.Pending() == 1 }, time.Second, time.Millisecond)
		stub.reply(1, 201, `{"id":"q-1"}`)
	}()

	env, err := c.Do(context.Background(), common.Request{"action": "queue.create"})
	require.NoError(t, err)
	assert.Equal(t, 201, env.Status)
}

// TestConcurrentRequests tests many goroutines sharing one connection
func TestConcurrentRequests(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	const n = 200
	var wg sync.WaitGroup
	outs := make(chan *Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Request(context.Background(), common.Request{}, nil)
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			outs <- out
		}()
	}
	wg.Wait()
	close(outs)

	// ids on the wire must be strictly increasing even with concurrent callers
	reqs := stub.sentRequests(t)
	require.Len(t, reqs, n)
	var last uint64
	for _, r := range reqs {
		id, _ := r.RequestID()
		assert.Greater(t, id, last)
		last = id
	}

	for id := uint64(n); id >= 1; id-- {
		stub.reply(id, 200, `null`)
	}
	for out := range outs {
		assert.True(t, out.Settled())
	}
	assert.Equal(t, 0, c.Pending())
}

// TestMetrics tests the Prometheus output
func TestMetrics(t *testing.T) {
	c, stub, _ := newTestClient(t, nil)
	stub.open()

	_, err := c.Request(context.Background(), common.Request{}, nil)
	require.NoError(t, err)
	stub.reply(1, 200, `null`)
	stub.deliver(`garbage`)

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, fmt.Sprintf(`taskfire_client_requests_sent_total{conn=%q} 1`, c.ID()))
	assert.Contains(t, out, fmt.Sprintf(`taskfire_client_responses_ok_total{conn=%q} 1`, c.ID()))
	assert.Contains(t, out, fmt.Sprintf(`taskfire_client_protocol_errors_total{conn=%q} 1`, c.ID()))
	assert.Contains(t, out, fmt.Sprintf(`taskfire_client_pending_requests{conn=%q} 0`, c.ID()))

	assert.Equal(t, int64(1), c.Latency().Count)
}

// TestStringify tests the debug rendering of trace parameters
func TestStringify(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stringify(map[string]int{"a": 1}))
	assert.Equal(t, "raw", stringify([]byte("raw")))
	assert.Equal(t, "boom", stringify(errors.New("boom")))
	assert.Equal(t, "42", stringify(42))

	ch := make(chan int)
	assert.Equal(t, fmt.Sprintf("%v", ch), stringify(ch))
}

// TestDebugClient tests that debug tracing does not change behavior
func TestDebugClient(t *testing.T) {
	c, stub, _ := newTestClient(t, func(c *common.ClientConfig) { c.Debug = true })
	stub.open()

	out, err := c.Request(context.Background(), common.Request{"action": "x"}, nil)
	require.NoError(t, err)
	stub.reply(1, 200, `null`)
	assert.True(t, out.Settled())
}

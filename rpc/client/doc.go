// Package client implements the request/response correlation layer of the
// task-queue client. One Client owns one connection; many requests may be in
// flight over it at the same time and the service may push WORK envelopes at
// any moment.
//
// The package focuses on:
//   - Assigning strictly increasing request ids and tagging outgoing requests
//   - Matching every RESPONSE to the request with the same id
//   - Separating replies from WORK pushes (see the sink package)
//   - Guarding the connection lifecycle (pending, open, closing, closed, failed)
//
// Key Components:
//
//   - Client: Facade created with NewClient. Request returns an Outcome handle,
//     Do blocks for the reply, Close runs the close handshake.
//
//   - Outcome: Future settled exactly once with the reply envelope or an error.
//     Callbacks passed to Request or Then subscribe to the same handle, so they
//     always observe the same result.
//
//   - lifecycle: Explicit state machine. Requests issued while the connection is
//     pending are queued and flushed in order once the transport reports open.
//     If the transport fails before that, they are rejected with a
//     common.ConnectionError.
//
//   - pendingTable: Request id to pending request map. Entries are inserted
//     before the request is written and removed before the outcome settles.
//
//   - deadlineQueue: Optional request expiry (ClientConfig.TimeoutSecond).
//
// Replies with a status in [400, 599] settle the request with a
// common.StatusError; every other status counts as success. Protocol errors
// (malformed messages, unknown request ids, unknown kinds) are reported to the
// ErrorHandler and never settle a request. Replies to requests that were
// cancelled or expired locally are dropped.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		URL:   "wss://api.taskfire.io",
//		Token: os.Getenv("TASKFIRE_TOKEN"),
//	}
//
//	work := sink.NewQueue()
//	c, err := client.NewClient(config, ws.NewWSClientTransport(), serializer.NewJSONSerializer(), client.WithSink(work))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close(context.Background(), nil)
//
//	env, err := c.Do(ctx, common.Request{"action": "queue.create", "name": "emails"})
//
// Thread Safety:
//
//	All methods of Client and Outcome are safe for concurrent use. Callbacks run
//	on the goroutine that settles the outcome, usually the transport's event
//	goroutine, and must not block.
package client

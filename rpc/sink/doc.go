// Package sink provides the consumers of WORK envelopes, the unsolicited pushes
// of the task-queue service. The client hands every WORK envelope to exactly one
// IWorkSink; reply traffic never reaches a sink.
//
// Implementations:
//
//   - Func: adapts a plain function, it runs on the dispatching goroutine.
//
//   - Discard: drops every envelope (default when no sink is configured).
//
//   - Queue: unbounded lock-free multi-producer single-consumer queue. Envelopes
//     are read from the Recv() channel, which also works in select statements.
//     Ingest never blocks.
//
//   - BoundedQueue: fixed capacity queue on top of xsync.MPMCQueueOf. When full,
//     envelopes are dropped and counted (see Dropped).
package sink

// Package cmd implements the command-line interface for the taskfire
// task-queue service. It provides commands to talk to the service as a client
// and to run a local development server.
//
// The package is organized into several subpackages:
//
//   - request: Send one JSON request and print the reply
//   - listen: Print work pushed by the service until interrupted
//   - perf: Concurrent request load with throughput and latency tables
//   - serve: Commands for starting and configuring the development server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set through TASKFIRE_<FLAG> environment variables or a
// .env file, e.g. TASKFIRE_TOKEN=... and TASKFIRE_URL=tcp://localhost:7070.
//
// See taskfire -help for a list of all commands.
package cmd

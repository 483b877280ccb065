// Package server exposes the workflow over HTTP and runs the optional
// background inbox poll.
//
// Endpoints:
//
//	GET  /healthz          liveness probe
//	GET  /readyz           readiness probe
//	GET  /metrics          Prometheus metrics
//	GET  /api/last-result  most recent workflow result
//	POST /api/run-workflow manual run, 409 while another manual run is active
//	POST /api/sync         fetch the inbox and run; concurrent calls share one run
//
// The workflow itself is sequential. The sync path is guarded by a
// singleflight group so the poll loop and HTTP callers never stack
// duplicate runs; the manual path rejects overlap with 409 instead of
// queueing, since the caller asked for a run right now.
package server

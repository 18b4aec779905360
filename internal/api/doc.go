// Package api serves the admin HTTP interface of a running pool.
//
// Routes:
//
//   - GET  /api/status   pool state, sizes, counters and process resources
//   - GET  /api/workers  per-worker liveness and counters
//   - GET  /api/presets  available benchmark scenarios
//   - POST /api/bench    run a benchmark preset on a separate pool
//   - GET  /metrics      Prometheus exposition
//   - GET  /ws           websocket stream of pool events
package api

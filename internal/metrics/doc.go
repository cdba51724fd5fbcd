// Package metrics exposes sync counters to Prometheus and serves the
// /health and /metrics endpoints.
//
// Key metrics:
//   - tradesync_cycles_total and cycle duration
//   - per-account outcomes by state
//   - trades fetched, duplicate, created and failed per account
//   - failures by error kind
//   - writes in flight against the journal
package metrics

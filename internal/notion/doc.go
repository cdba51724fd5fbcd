// Package notion provides the Notion REST client used as the trade journal store.
//
// Endpoints:
//   - GET  /users/me
//   - GET  /databases/{id}
//   - POST /databases/{id}/query
//   - POST /pages
//
// Reads retry with jittered exponential backoff. Page creation does not retry;
// the writer owns write pacing and retries.
package notion

// Package writer creates journal pages under a shared request budget.
//
// A single Writer serves every account. It caps requests in flight with a
// weighted semaphore, retries throttled (429) and transient (5xx, network)
// failures on an exponential schedule, and honours the server's Retry-After
// when it asks for a longer wait.
//
// Entries are written in input order. Once the caller's context is canceled,
// entries that have not started are reported as skipped; a request already
// sent is allowed DrainTimeout to finish.
package writer

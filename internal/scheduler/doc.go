// Package scheduler drives account syncs once or on a fixed interval.
//
// Each cycle describes the journal schema once, validates it, then syncs every
// account with bounded concurrency. A schema that cannot hold trades stops
// the scheduler; any other failure is confined to the accounts it affects and
// the next cycle tries again.
package scheduler

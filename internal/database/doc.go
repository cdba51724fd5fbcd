// Package database opens the PostgreSQL pool backing the sync ledger.
//
// Only the postgres ledger driver uses it; the sqlite driver talks to
// database/sql directly.
package database

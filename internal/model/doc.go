// Package model defines shared data types used across the trade sync service.
//
// Conventions:
//   - Money and quantities: decimal.Decimal, in the account currency / lots
//   - Timestamps: time.Time in UTC (the terminal reports epoch seconds)
//   - Ticket IDs: int64, unique per account + broker
//
// Components exchange structured values (Trade, PropertyWriteSet, AccountResult)
// and typed errors (*Error carrying an ErrorKind). Nothing in this package calls out
// to a terminal or to the document store.
package model

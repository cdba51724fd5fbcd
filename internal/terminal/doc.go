// Package terminal talks to MetaTrader 5 terminals through a bridge expert
// advisor that exposes a JSON request/response protocol over WebSocket.
//
// Protocol:
//   - request:  {"id": 1, "method": "login", "params": {...}}
//   - response: {"id": 1, "result": {...}} or {"id": 1, "error": {"code": "...", "message": "..."}}
//
// Methods: login, history_deals, ping.
//
// The bridge returns raw deal history (entry and exit deals separately);
// PairDeals folds it into one closed-deal record per exit deal.
package terminal

package terminal

import (
	"github.com/rickgao/tradesync/internal/model"
)

// PairDeals folds raw deal history into closed-deal records. Each exit deal
// (out or out-by) becomes one record keyed by its own ticket; the matching
// entry deal (same position ID) supplies the side, open price, open time,
// magic number and comment. Exits whose entry is not in the history are
// skipped, since their open side and price are unknown. The entry commission
// is charged to the first exit of a position only, so partial closes do not
// count it twice.
func PairDeals(history []HistoryDeal) []model.RawDeal {
	entries := make(map[int64]HistoryDeal)
	for _, d := range history {
		if d.Entry != EntryIn || d.PositionID == 0 {
			continue
		}
		if _, ok := entries[d.PositionID]; !ok {
			entries[d.PositionID] = d
		}
	}

	charged := make(map[int64]bool)

	var out []model.RawDeal
	for _, exit := range history {
		if exit.Entry != EntryOut && exit.Entry != EntryOutBy {
			continue
		}
		entry, ok := entries[exit.PositionID]
		if !ok {
			continue
		}

		sl, tp := exit.SL, exit.TP
		if sl == 0 {
			sl = entry.SL
		}
		if tp == 0 {
			tp = entry.TP
		}

		commission := exit.Commission
		if !charged[exit.PositionID] {
			commission += entry.Commission
			charged[exit.PositionID] = true
		}

		comment := entry.Comment
		if comment == "" {
			comment = exit.Comment
		}

		out = append(out, model.RawDeal{
			Ticket:     model.Ptr(exit.Ticket),
			PositionID: model.Ptr(exit.PositionID),
			OrderID:    model.Ptr(exit.Order),
			Magic:      model.Ptr(entry.Magic),
			Symbol:     exit.Symbol,
			Type:       model.Ptr(entry.Type),
			Reason:     model.Ptr(exit.Reason),
			OpenTime:   model.Ptr(entry.Time),
			CloseTime:  model.Ptr(exit.Time),
			Volume:     model.Ptr(exit.Volume),
			OpenPrice:  model.Ptr(entry.Price),
			ClosePrice: model.Ptr(exit.Price),
			Profit:     model.Ptr(exit.Profit),
			Commission: model.Ptr(commission),
			Swap:       model.Ptr(exit.Swap),
			StopLoss:   model.Ptr(sl),
			TakeProfit: model.Ptr(tp),
			Comment:    comment,
		})
	}

	return out
}

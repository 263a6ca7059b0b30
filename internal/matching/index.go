package matching

import "reconciler/internal/models"

// index is the per-run multi-key lookup built from one side's trades. It
// is owned by a single Match invocation and never shared across runs or
// goroutines.
type index struct {
	byKey map[string][]*models.Trade
}

// keysFor returns the three lookup keys a trade is filed/searched under:
// instrument_id, instrument_id+"/"+counterparty, and trade_id.
func keysFor(t *models.Trade) [3]string {
	return [3]string{
		t.InstrumentID,
		t.InstrumentID + "/" + t.Counterparty,
		t.TradeID,
	}
}

// buildIndex files every trade in trades under each of its three keys.
func buildIndex(trades []*models.Trade) *index {
	idx := &index{byKey: make(map[string][]*models.Trade)}
	for _, t := range trades {
		for _, key := range keysFor(t) {
			idx.byKey[key] = append(idx.byKey[key], t)
		}
	}
	return idx
}

// candidates returns every trade filed under any of t's three keys,
// deduplicated by pointer identity and excluding anything already in
// matched.
func (idx *index) candidates(t *models.Trade, matched map[*models.Trade]bool) []*models.Trade {
	seen := make(map[*models.Trade]bool)
	var out []*models.Trade
	for _, key := range keysFor(t) {
		for _, candidate := range idx.byKey[key] {
			if matched[candidate] || seen[candidate] {
				continue
			}
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out
}

// Package journal holds the append-only log of executed transactions.
package journal

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"copytrader/internal/models"
)

// Log is an insertion-ordered record of transactions. The zero value is an
// empty log. Append returns a new Log; existing entries are never changed.
type Log struct {
	entries []models.Transaction
}

// FromEntries builds a log from previously persisted transactions.
func FromEntries(entries []models.Transaction) Log {
	out := make([]models.Transaction, len(entries))
	copy(out, entries)
	return Log{entries: out}
}

// Append returns a log with txn added at the end.
func (l Log) Append(txn models.Transaction) Log {
	out := make([]models.Transaction, len(l.entries), len(l.entries)+1)
	copy(out, l.entries)
	return Log{entries: append(out, txn)}
}

// Len returns the number of transactions.
func (l Log) Len() int {
	return len(l.entries)
}

// All returns a copy of the transactions in insertion order.
func (l Log) All() []models.Transaction {
	out := make([]models.Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

// Filter selects transactions from a log.
type Filter struct {
	Symbol   string
	Type     models.TradeAction
	CopyOnly bool
	Limit    int
}

// Query returns matching transactions newest first, up to f.Limit when set.
func (l Log) Query(f Filter) []models.Transaction {
	var out []models.Transaction
	for i := len(l.entries) - 1; i >= 0; i-- {
		t := l.entries[i]
		if f.Symbol != "" && t.Symbol != f.Symbol {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.CopyOnly && !t.CopyTrade {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Totals sums transaction totals per side.
func (l Log) Totals() (bought, sold decimal.Decimal) {
	for _, t := range l.entries {
		switch t.Type {
		case models.ActionBuy:
			bought = bought.Add(t.Total)
		case models.ActionSell:
			sold = sold.Add(t.Total)
		}
	}
	return bought, sold
}

// MarshalJSON encodes the log as a JSON array.
func (l Log) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

// UnmarshalJSON decodes a JSON array of transactions.
func (l *Log) UnmarshalJSON(data []byte) error {
	var entries []models.Transaction
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.entries = entries
	return nil
}

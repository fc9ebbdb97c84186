// Package pending holds copied trades awaiting a manual decision.
package pending

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/models"
)

// Queue is an ordered set of pending trades. Queue values are immutable.
type Queue struct {
	trades []models.PendingTrade
}

// FromTrades builds a queue from persisted trades.
func FromTrades(trades []models.PendingTrade) Queue {
	out := make([]models.PendingTrade, len(trades))
	copy(out, trades)
	return Queue{trades: out}
}

// Enqueue returns a queue with t appended.
func (q Queue) Enqueue(t models.PendingTrade) Queue {
	out := make([]models.PendingTrade, len(q.trades), len(q.trades)+1)
	copy(out, q.trades)
	return Queue{trades: append(out, t)}
}

// Get looks up a pending trade by id.
func (q Queue) Get(id string) (models.PendingTrade, bool) {
	if i := q.index(id); i >= 0 {
		return q.trades[i], true
	}
	return models.PendingTrade{}, false
}

// Remove returns a queue without the trade id, and the removed trade.
func (q Queue) Remove(id string) (Queue, models.PendingTrade, error) {
	i := q.index(id)
	if i < 0 {
		return q, models.PendingTrade{}, apperrors.Wrapf(apperrors.ErrPendingTradeNotFound, "id %s", id)
	}
	out := make([]models.PendingTrade, 0, len(q.trades)-1)
	out = append(out, q.trades[:i]...)
	out = append(out, q.trades[i+1:]...)
	return Queue{trades: out}, q.trades[i], nil
}

// Clear returns an empty queue and the number of trades dropped.
func (q Queue) Clear() (Queue, int) {
	return Queue{}, len(q.trades)
}

// All returns the pending trades oldest first.
func (q Queue) All() []models.PendingTrade {
	out := make([]models.PendingTrade, len(q.trades))
	copy(out, q.trades)
	return out
}

// Len returns the number of pending trades.
func (q Queue) Len() int {
	return len(q.trades)
}

func (q Queue) index(id string) int {
	for i, t := range q.trades {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes the queue as a JSON array.
func (q Queue) MarshalJSON() ([]byte, error) {
	if q.trades == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q.trades)
}

// UnmarshalJSON decodes a JSON array of pending trades.
func (q *Queue) UnmarshalJSON(data []byte) error {
	var trades []models.PendingTrade
	if err := json.Unmarshal(data, &trades); err != nil {
		return err
	}
	q.trades = trades
	return nil
}

// Review holds the adjustments a user makes before approving a trade.
// StopLoss and TakeProfit are recorded on the transaction for display only.
type Review struct {
	Shares     *decimal.Decimal `json:"shares,omitempty"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
}

// SharesFor returns the reviewed quantity, falling back to the trade's own.
func (r Review) SharesFor(t models.PendingTrade) decimal.Decimal {
	if r.Shares != nil {
		return *r.Shares
	}
	return t.Shares
}

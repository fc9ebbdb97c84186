package copytrade

import (
	"time"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/ledger"
	"copytrader/internal/models"
	"copytrader/internal/pending"
)

// Approve executes a pending trade with the reviewed quantity and removes it
// from the queue. If the ledger refuses the trade it stays queued.
func (b Book) Approve(pendingID string, review pending.Review, at time.Time) (Book, models.Transaction, error) {
	pt, ok := b.Pending.Get(pendingID)
	if !ok {
		return b, models.Transaction{}, apperrors.Wrapf(apperrors.ErrPendingTradeNotFound, "id %s", pendingID)
	}

	p, txn, err := ledger.Apply(b.Portfolio, pt.Action, pt.Symbol, review.SharesFor(pt), pt.Price, ledger.Meta{
		CopyTrade:  true,
		ExpertID:   pt.ExpertID,
		ExpertName: pt.ExpertName,
		StopLoss:   review.StopLoss,
		TakeProfit: review.TakeProfit,
		Timestamp:  at,
	})
	if err != nil {
		return b, models.Transaction{}, err
	}

	q, _, err := b.Pending.Remove(pendingID)
	if err != nil {
		return b, models.Transaction{}, err
	}
	b.Portfolio = p
	b.Pending = q
	b.Journal = b.Journal.Append(txn)
	return b, txn, nil
}

// Reject discards a pending trade without touching the portfolio.
func (b Book) Reject(pendingID string) (Book, models.PendingTrade, error) {
	q, pt, err := b.Pending.Remove(pendingID)
	if err != nil {
		return b, models.PendingTrade{}, err
	}
	b.Pending = q
	return b, pt, nil
}

// RejectAll clears the pending queue and reports how many trades were dropped.
func (b Book) RejectAll() (Book, int) {
	q, n := b.Pending.Clear()
	b.Pending = q
	return b, n
}

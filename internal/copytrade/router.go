package copytrade

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/ledger"
	"copytrader/internal/models"
	"copytrader/pkg/id"
)

// MaxAllocationFraction caps a single auto-copied trade at 10% of the
// subscription's allocation.
var MaxAllocationFraction = decimal.New(1, -1)

// Status is the terminal state of a routed signal.
type Status string

const (
	StatusDropped  Status = "dropped"
	StatusExecuted Status = "executed"
	StatusPending  Status = "pending"
)

// Reason explains why a signal was dropped.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInvalidSignal        Reason = "invalid_signal"
	ReasonNoActiveSubscription Reason = "no_active_subscription"
	ReasonZeroAdjustedQuantity Reason = "zero_adjusted_quantity"
	ReasonInsufficientFunds    Reason = "insufficient_funds"
	ReasonPositionNotFound     Reason = "position_not_found"
)

// Outcome reports what happened to a signal.
type Outcome struct {
	Status      Status               `json:"status"`
	Reason      Reason               `json:"reason,omitempty"`
	Quantity    decimal.Decimal      `json:"quantity"`
	Transaction *models.Transaction  `json:"transaction,omitempty"`
	Pending     *models.PendingTrade `json:"pending,omitempty"`
	Err         error                `json:"-"`
}

func dropped(reason Reason, err error) Outcome {
	return Outcome{Status: StatusDropped, Reason: reason, Err: err}
}

// Route applies one expert signal to the book. Signals for experts without
// an active subscription are dropped. Auto-copy subscriptions execute a
// scaled trade immediately; manual subscriptions queue the unscaled trade.
func (b Book) Route(sig models.CopySignal, at time.Time) (Book, Outcome) {
	if !sig.Action.Valid() {
		return b, dropped(ReasonInvalidSignal, apperrors.ErrInvalidAction)
	}
	if !sig.Price.IsPositive() {
		return b, dropped(ReasonInvalidSignal, apperrors.ErrInvalidPrice)
	}
	if !sig.Quantity.IsPositive() {
		return b, dropped(ReasonInvalidSignal, apperrors.ErrInvalidQuantity)
	}
	symbol := NormalizeSymbol(sig.Symbol)
	if symbol == "" {
		return b, dropped(ReasonInvalidSignal, apperrors.ErrInvalidSymbol)
	}

	sub, ok := b.Subscriptions.Get(sig.ExpertID)
	if !ok || !sub.IsActive() {
		return b, dropped(ReasonNoActiveSubscription, apperrors.ErrNoActiveSubscription)
	}

	if !sub.AutoCopy {
		ts := sig.Timestamp
		if ts.IsZero() {
			ts = at
		}
		pt := models.PendingTrade{
			ID:         id.New(id.KindPending),
			ExpertID:   sig.ExpertID,
			ExpertName: sig.ExpertName,
			Symbol:     symbol,
			Action:     sig.Action,
			Shares:     sig.Quantity,
			Price:      sig.Price,
			Timestamp:  ts,
			Reason:     sig.Reason,
		}
		b.Pending = b.Pending.Enqueue(pt)
		return b, Outcome{Status: StatusPending, Quantity: pt.Shares, Pending: &pt}
	}

	qty := AdjustedQuantity(sig.Price, sig.Quantity, sub.Amount)
	if !qty.IsPositive() {
		return b, dropped(ReasonZeroAdjustedQuantity, apperrors.ErrZeroAdjustedQuantity)
	}

	p, txn, err := ledger.Apply(b.Portfolio, sig.Action, symbol, qty, sig.Price, ledger.Meta{
		CopyTrade:  true,
		ExpertID:   sig.ExpertID,
		ExpertName: sig.ExpertName,
		Timestamp:  at,
	})
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrInsufficientFunds):
		return b, dropped(ReasonInsufficientFunds, err)
	case apperrors.Is(err, apperrors.ErrPositionNotFound):
		return b, dropped(ReasonPositionNotFound, err)
	default:
		return b, dropped(ReasonInvalidSignal, err)
	}

	b.Portfolio = p
	b.Journal = b.Journal.Append(txn)
	return b, Outcome{Status: StatusExecuted, Quantity: txn.Shares, Transaction: &txn}
}

// AdjustedQuantity scales an expert's trade to a follower's allocation:
// floor(min(price*quantity, amount*MaxAllocationFraction) / price).
// Non-positive results mean the signal cannot be copied.
func AdjustedQuantity(price, quantity, amount decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	copyAmount := decimal.Min(price.Mul(quantity), amount.Mul(MaxAllocationFraction))
	if !copyAmount.IsPositive() {
		return decimal.Zero
	}
	return copyAmount.Div(price).Floor()
}

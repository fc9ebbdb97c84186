// Package ledger applies trades to a portfolio.
//
// Every function here is pure: the input portfolio is never modified and the
// updated snapshot is returned alongside the transaction that produced it.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/models"
	"copytrader/pkg/id"
)

var now = time.Now

// Meta carries the descriptive fields stamped onto a transaction.
type Meta struct {
	CopyTrade  bool
	ExpertID   string
	ExpertName string
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Timestamp  time.Time
}

// Apply dispatches to ApplyBuy or ApplySell.
func Apply(p models.Portfolio, action models.TradeAction, symbol string, shares, price decimal.Decimal, meta Meta) (models.Portfolio, models.Transaction, error) {
	switch action {
	case models.ActionBuy:
		return ApplyBuy(p, symbol, shares, price, meta)
	case models.ActionSell:
		return ApplySell(p, symbol, shares, price, meta)
	default:
		return p, models.Transaction{}, apperrors.NewTradeError(symbol, string(action), "unknown action", apperrors.ErrInvalidAction)
	}
}

// ApplyBuy adds shares of symbol at price, folding them into the weighted
// average cost of an existing holding. A buy costing more than the available
// cash is rejected with a *apperrors.FundsError and p is returned unchanged.
func ApplyBuy(p models.Portfolio, symbol string, shares, price decimal.Decimal, meta Meta) (models.Portfolio, models.Transaction, error) {
	if err := validate(symbol, "buy", shares, price); err != nil {
		return p, models.Transaction{}, err
	}

	cost := shares.Mul(price)
	if cost.GreaterThan(p.CashBalance) {
		return p, models.Transaction{}, apperrors.NewFundsError(symbol, cost, p.CashBalance)
	}

	next := p.Clone()
	if i := indexOf(next.Holdings, symbol); i >= 0 {
		old := next.Holdings[i]
		newShares := old.Shares.Add(shares)
		newAvg := old.Shares.Mul(old.AveragePrice).Add(cost).Div(newShares)
		next.Holdings[i] = models.Holding{
			Symbol:       symbol,
			Shares:       newShares,
			AveragePrice: newAvg,
			CurrentPrice: price,
		}
	} else {
		next.Holdings = append(next.Holdings, models.Holding{
			Symbol:       symbol,
			Shares:       shares,
			AveragePrice: price,
			CurrentPrice: price,
		})
	}
	next.CashBalance = next.CashBalance.Sub(cost)

	return next, newTransaction(models.ActionBuy, symbol, shares, price, meta), nil
}

// ApplySell removes up to shares of symbol at price. Requests larger than the
// held quantity are filled partially; the transaction records the filled
// quantity. Selling a symbol that is not held returns ErrPositionNotFound.
func ApplySell(p models.Portfolio, symbol string, shares, price decimal.Decimal, meta Meta) (models.Portfolio, models.Transaction, error) {
	if err := validate(symbol, "sell", shares, price); err != nil {
		return p, models.Transaction{}, err
	}

	i := indexOf(p.Holdings, symbol)
	if i < 0 {
		return p, models.Transaction{}, apperrors.NewTradeError(symbol, "sell", "no holding", apperrors.ErrPositionNotFound)
	}

	next := p.Clone()
	held := next.Holdings[i]
	filled := decimal.Min(shares, held.Shares)

	if filled.Equal(held.Shares) {
		next.Holdings = append(next.Holdings[:i], next.Holdings[i+1:]...)
	} else {
		held.Shares = held.Shares.Sub(filled)
		held.CurrentPrice = price
		next.Holdings[i] = held
	}
	next.CashBalance = next.CashBalance.Add(filled.Mul(price))

	return next, newTransaction(models.ActionSell, symbol, filled, price, meta), nil
}

// Mark sets the current price of symbol. Portfolios without the symbol are
// returned as-is.
func Mark(p models.Portfolio, symbol string, price decimal.Decimal) models.Portfolio {
	i := indexOf(p.Holdings, symbol)
	if i < 0 || price.IsNegative() {
		return p
	}
	next := p.Clone()
	next.Holdings[i].CurrentPrice = price
	return next
}

func validate(symbol, action string, shares, price decimal.Decimal) error {
	if strings.TrimSpace(symbol) == "" {
		return apperrors.NewTradeError(symbol, action, "symbol is required", apperrors.ErrInvalidSymbol)
	}
	if !shares.IsPositive() {
		return apperrors.NewTradeError(symbol, action, "shares must be positive", apperrors.ErrInvalidQuantity)
	}
	if price.IsNegative() {
		return apperrors.NewTradeError(symbol, action, "price must not be negative", apperrors.ErrInvalidPrice)
	}
	return nil
}

func indexOf(holdings []models.Holding, symbol string) int {
	for i, h := range holdings {
		if h.Symbol == symbol {
			return i
		}
	}
	return -1
}

func newTransaction(action models.TradeAction, symbol string, shares, price decimal.Decimal, meta Meta) models.Transaction {
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = now().UTC()
	}
	return models.Transaction{
		ID:         id.New(id.KindTransaction),
		Type:       action,
		Symbol:     symbol,
		Shares:     shares,
		Price:      price,
		Total:      shares.Mul(price),
		Timestamp:  ts,
		CopyTrade:  meta.CopyTrade,
		ExpertID:   meta.ExpertID,
		ExpertName: meta.ExpertName,
		StopLoss:   meta.StopLoss,
		TakeProfit: meta.TakeProfit,
	}
}

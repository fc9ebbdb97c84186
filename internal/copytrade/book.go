// Package copytrade routes expert signals into a follower's portfolio.
//
// A Book is the complete state of one user: portfolio, subscriptions,
// pending trades and transaction log. Books are values; every operation
// returns the next Book and leaves the receiver untouched, so the caller
// decides when (and whether) to persist the new snapshot.
package copytrade

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"copytrader/internal/journal"
	"copytrader/internal/ledger"
	"copytrader/internal/models"
	"copytrader/internal/pending"
	"copytrader/internal/subscription"
)

// Book is one user's copy-trading state.
type Book struct {
	UserID        string                `json:"user_id"`
	Portfolio     models.Portfolio      `json:"portfolio"`
	Subscriptions subscription.Registry `json:"subscriptions"`
	Pending       pending.Queue         `json:"pending"`
	Journal       journal.Log           `json:"transactions"`
}

// NewBook returns an empty book funded with cash.
func NewBook(userID string, cash decimal.Decimal) Book {
	return Book{
		UserID:        userID,
		Portfolio:     models.NewPortfolio(cash),
		Subscriptions: subscription.New(),
	}
}

// Trade executes a user-initiated buy or sell.
func (b Book) Trade(action models.TradeAction, symbol string, shares, price decimal.Decimal, at time.Time) (Book, models.Transaction, error) {
	p, txn, err := ledger.Apply(b.Portfolio, action, NormalizeSymbol(symbol), shares, price, ledger.Meta{Timestamp: at})
	if err != nil {
		return b, models.Transaction{}, err
	}
	b.Portfolio = p
	b.Journal = b.Journal.Append(txn)
	return b, txn, nil
}

// Mark updates the current price of a held symbol.
func (b Book) Mark(symbol string, price decimal.Decimal) Book {
	b.Portfolio = ledger.Mark(b.Portfolio, NormalizeSymbol(symbol), price)
	return b
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

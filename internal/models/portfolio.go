package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one symbol's position within a portfolio.
type Holding struct {
	Symbol       string          `json:"symbol"`
	Shares       decimal.Decimal `json:"shares"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// CostBasis returns shares * averagePrice.
func (h Holding) CostBasis() decimal.Decimal {
	return h.Shares.Mul(h.AveragePrice)
}

// MarketValue returns shares * currentPrice.
func (h Holding) MarketValue() decimal.Decimal {
	return h.Shares.Mul(h.CurrentPrice)
}

// Portfolio is a user's holdings plus cash. It is treated as a value:
// functions that change it return a new Portfolio.
type Portfolio struct {
	Holdings    []Holding       `json:"holdings"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

// NewPortfolio returns an empty portfolio funded with cash.
func NewPortfolio(cash decimal.Decimal) Portfolio {
	return Portfolio{
		Holdings:    []Holding{},
		CashBalance: cash,
	}
}

// Holding looks up the position for symbol.
func (p Portfolio) Holding(symbol string) (Holding, bool) {
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

// Clone returns a copy that shares no backing array with p.
func (p Portfolio) Clone() Portfolio {
	holdings := make([]Holding, len(p.Holdings))
	copy(holdings, p.Holdings)
	return Portfolio{
		Holdings:    holdings,
		CashBalance: p.CashBalance,
	}
}

// Transaction is an immutable record of an executed trade.
type Transaction struct {
	ID         string           `json:"id"`
	Type       TradeAction      `json:"type"`
	Symbol     string           `json:"symbol"`
	Shares     decimal.Decimal  `json:"shares"`
	Price      decimal.Decimal  `json:"price"`
	Total      decimal.Decimal  `json:"total"`
	Timestamp  time.Time        `json:"timestamp"`
	CopyTrade  bool             `json:"copy_trade"`
	ExpertID   string           `json:"expert_id,omitempty"`
	ExpertName string           `json:"expert_name,omitempty"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
}

package ledger

import (
	"github.com/shopspring/decimal"

	"copytrader/internal/models"
)

var hundred = decimal.NewFromInt(100)

// UnrealizedPnL returns (currentPrice - averagePrice) * shares.
func UnrealizedPnL(h models.Holding) decimal.Decimal {
	return h.CurrentPrice.Sub(h.AveragePrice).Mul(h.Shares)
}

// UnrealizedPnLPercent returns the unrealized P&L relative to cost basis, in
// percent. A zero cost basis yields zero.
func UnrealizedPnLPercent(h models.Holding) decimal.Decimal {
	basis := h.CostBasis()
	if basis.IsZero() {
		return decimal.Zero
	}
	return UnrealizedPnL(h).Div(basis).Mul(hundred)
}

// Summary aggregates a portfolio for display.
type Summary struct {
	Cash                 decimal.Decimal `json:"cash"`
	MarketValue          decimal.Decimal `json:"market_value"`
	CostBasis            decimal.Decimal `json:"cost_basis"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	Equity               decimal.Decimal `json:"equity"`
	Positions            int             `json:"positions"`
}

// Summarize totals the holdings of p.
func Summarize(p models.Portfolio) Summary {
	s := Summary{
		Cash:      p.CashBalance,
		Positions: len(p.Holdings),
	}
	for _, h := range p.Holdings {
		s.MarketValue = s.MarketValue.Add(h.MarketValue())
		s.CostBasis = s.CostBasis.Add(h.CostBasis())
	}
	s.UnrealizedPnL = s.MarketValue.Sub(s.CostBasis)
	if !s.CostBasis.IsZero() {
		s.UnrealizedPnLPercent = s.UnrealizedPnL.Div(s.CostBasis).Mul(hundred)
	}
	s.Equity = s.Cash.Add(s.MarketValue)
	return s
}

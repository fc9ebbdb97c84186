// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"sync/atomic"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var displayCurrency atomic.Value

func init() {
	displayCurrency.Store(money.USD)
}

// SetCurrency changes the ISO code used by FormatMoney. Unknown codes are
// ignored.
func SetCurrency(code string) {
	if money.GetCurrency(code) != nil {
		displayCurrency.Store(code)
	}
}

// Currency returns the ISO code used by FormatMoney.
func Currency() string {
	return displayCurrency.Load().(string)
}

// FormatMoney formats an amount in the display currency, e.g. "$8,245.70".
func FormatMoney(amount decimal.Decimal) string {
	return FormatMoneyIn(amount, Currency())
}

// FormatMoneyIn formats an amount in the given currency, rounding to the
// currency's minor unit.
func FormatMoneyIn(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl decimal.Decimal) string {
	formatted := FormatMoney(pnl)
	if pnl.IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("%s%s%%", sign, value.StringFixed(2))
}

// FormatShares formats a share quantity without trailing zeros.
func FormatShares(qty decimal.Decimal) string {
	return qty.String()
}

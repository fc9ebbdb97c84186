// Package models holds the value types shared by the ledger, the copy-trade
// router and the outer surfaces. Types here carry data and small helpers
// only; state transitions live in ledger, journal, subscription, pending and
// copytrade.
package models

import (
	"fmt"
	"strings"
)

// TradeAction represents the side of a trade.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// Valid reports whether a is a known action.
func (a TradeAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseTradeAction parses "buy"/"sell" case-insensitively.
func ParseTradeAction(s string) (TradeAction, error) {
	a := TradeAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown trade action %q", s)
	}
	return a, nil
}

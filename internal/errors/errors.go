// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Standard sentinel errors
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrPositionNotFound     = errors.New("position not found")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInvalidAction        = errors.New("invalid trade action")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrZeroAdjustedQuantity = errors.New("allocation too small for one share")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPendingTradeNotFound = errors.New("pending trade not found")
	ErrExpertNotFound       = errors.New("expert not found")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrDatabaseError        = errors.New("database error")
	ErrInputValidation      = errors.New("input validation failed")
)

// FundsError reports a buy whose cost exceeds the available cash.
type FundsError struct {
	Symbol    string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: need %s, have %s",
		e.Symbol, e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *FundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// NewFundsError creates a new FundsError.
func NewFundsError(symbol string, required, available decimal.Decimal) *FundsError {
	return &FundsError{
		Symbol:    symbol,
		Required:  required,
		Available: available,
	}
}

// TradeError represents an error related to a single trade request.
type TradeError struct {
	Symbol string
	Action string
	Reason string
	Err    error
}

func (e *TradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trade error %s %s: %s: %v", e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("trade error %s %s: %s", e.Action, e.Symbol, e.Reason)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// NewTradeError creates a new TradeError.
func NewTradeError(symbol, action, reason string, err error) *TradeError {
	return &TradeError{
		Symbol: symbol,
		Action: action,
		Reason: reason,
		Err:    err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a persistence failure for a key.
type StoreError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, op, key string, err error) *StoreError {
	return &StoreError{
		Backend: backend,
		Op:      op,
		Key:     key,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

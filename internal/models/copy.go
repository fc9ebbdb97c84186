package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel describes an expert's trading style.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Expert is a descriptive trader profile. It carries no behavior.
type Expert struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	RiskLevel   RiskLevel       `json:"risk_level"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	Bio         string          `json:"bio,omitempty"`
	WinRate     float64         `json:"win_rate"`
	TotalReturn float64         `json:"total_return"`
	Followers   int             `json:"followers"`
	Symbols     []string        `json:"symbols,omitempty"`
}

// SubscriptionStatus represents the state of a follow relationship.
type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "active"
	SubscriptionPaused SubscriptionStatus = "paused"
)

// CopySettings tunes how an expert's trades are copied.
type CopySettings struct {
	TradePercentage      float64 `json:"trade_percentage"`
	AllowBuyOnly         bool    `json:"allow_buy_only"`
	AllowSellOnly        bool    `json:"allow_sell_only"`
	StopLossPercentage   float64 `json:"stop_loss_percentage"`
	TakeProfitPercentage float64 `json:"take_profit_percentage"`
	TradingHoursOnly     bool    `json:"trading_hours_only"`
}

// DefaultCopySettings returns the settings a new follow starts with.
func DefaultCopySettings() CopySettings {
	return CopySettings{
		TradePercentage:      100,
		StopLossPercentage:   10,
		TakeProfitPercentage: 20,
	}
}

// Subscription is a user's follow of one expert.
type Subscription struct {
	ExpertID  string             `json:"expert_id"`
	Status    SubscriptionStatus `json:"status"`
	AutoCopy  bool               `json:"auto_copy"`
	Amount    decimal.Decimal    `json:"amount"`
	Settings  CopySettings       `json:"settings"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsActive reports whether the subscription receives signals.
func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// CopySignal is an expert trade offered to followers. It is not persisted.
type CopySignal struct {
	ExpertID   string          `json:"expert_id"`
	ExpertName string          `json:"expert_name,omitempty"`
	Symbol     string          `json:"symbol"`
	Action     TradeAction     `json:"action"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Timestamp  time.Time       `json:"timestamp"`
	Reason     string          `json:"reason,omitempty"`
}

// PendingTrade is a copied trade waiting for manual approval.
type PendingTrade struct {
	ID         string          `json:"id"`
	ExpertID   string          `json:"expert_id"`
	ExpertName string          `json:"expert_name,omitempty"`
	Symbol     string          `json:"symbol"`
	Action     TradeAction     `json:"action"`
	Shares     decimal.Decimal `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
	Reason     string          `json:"reason,omitempty"`
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTrade   NotificationType = "trade"
	NotificationPending NotificationType = "pending"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is a persisted message in a user's inbox.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Timestamp time.Time        `json:"timestamp"`
}

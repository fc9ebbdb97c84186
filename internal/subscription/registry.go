// Package subscription tracks which experts a user follows and how their
// trades are copied.
package subscription

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/models"
)

// Registry maps expert ids to the user's subscription. Registry values are
// immutable; every change returns a new Registry.
type Registry struct {
	subs map[string]models.Subscription
}

// New returns an empty registry.
func New() Registry {
	return Registry{subs: map[string]models.Subscription{}}
}

// FromSubscriptions builds a registry from persisted subscriptions.
func FromSubscriptions(subs []models.Subscription) Registry {
	r := New()
	for _, s := range subs {
		r.subs[s.ExpertID] = s
	}
	return r
}

func (r Registry) clone() Registry {
	out := make(map[string]models.Subscription, len(r.subs)+1)
	for k, v := range r.subs {
		out[k] = v
	}
	return Registry{subs: out}
}

// Follow creates or overwrites an active subscription to expertID. amount is
// the allocation ceiling and is not validated here.
func (r Registry) Follow(expertID string, amount decimal.Decimal, autoCopy bool, settings models.CopySettings, at time.Time) Registry {
	next := r.clone()
	sub := models.Subscription{
		ExpertID:  expertID,
		Status:    models.SubscriptionActive,
		AutoCopy:  autoCopy,
		Amount:    amount,
		Settings:  NormalizeSettings(models.CopySettings{}, settings),
		CreatedAt: at,
		UpdatedAt: at,
	}
	if prev, ok := r.subs[expertID]; ok {
		sub.CreatedAt = prev.CreatedAt
	}
	next.subs[expertID] = sub
	return next
}

// Unfollow pauses the subscription. History is kept.
func (r Registry) Unfollow(expertID string, at time.Time) (Registry, error) {
	return r.update(expertID, at, func(s *models.Subscription) {
		s.Status = models.SubscriptionPaused
	})
}

// UpdateSettings replaces the copy settings of a subscription.
func (r Registry) UpdateSettings(expertID string, settings models.CopySettings, at time.Time) (Registry, error) {
	return r.update(expertID, at, func(s *models.Subscription) {
		s.Settings = NormalizeSettings(s.Settings, settings)
	})
}

// SetAutoCopy switches a subscription between automatic and manual copying.
func (r Registry) SetAutoCopy(expertID string, autoCopy bool, at time.Time) (Registry, error) {
	return r.update(expertID, at, func(s *models.Subscription) {
		s.AutoCopy = autoCopy
	})
}

func (r Registry) update(expertID string, at time.Time, fn func(*models.Subscription)) (Registry, error) {
	sub, ok := r.subs[expertID]
	if !ok {
		return r, apperrors.Wrapf(apperrors.ErrSubscriptionNotFound, "expert %s", expertID)
	}
	fn(&sub)
	sub.UpdatedAt = at
	next := r.clone()
	next.subs[expertID] = sub
	return next, nil
}

// IsActive reports whether the user actively follows expertID.
func (r Registry) IsActive(expertID string) bool {
	sub, ok := r.subs[expertID]
	return ok && sub.IsActive()
}

// Get returns the subscription for expertID.
func (r Registry) Get(expertID string) (models.Subscription, bool) {
	sub, ok := r.subs[expertID]
	return sub, ok
}

// All returns every subscription ordered by expert id.
func (r Registry) All() []models.Subscription {
	out := make([]models.Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpertID < out[j].ExpertID })
	return out
}

// Active returns the active subscriptions ordered by expert id.
func (r Registry) Active() []models.Subscription {
	var out []models.Subscription
	for _, s := range r.All() {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of subscriptions, active or paused.
func (r Registry) Len() int {
	return len(r.subs)
}

// MarshalJSON encodes the registry as an array ordered by expert id.
func (r Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.All())
}

// UnmarshalJSON decodes an array of subscriptions.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var subs []models.Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		return err
	}
	*r = FromSubscriptions(subs)
	return nil
}

// NormalizeSettings clamps percentages into range and keeps the buy-only and
// sell-only flags exclusive. When next sets both, the flag that was not set
// in prev wins; with no history buy-only wins.
func NormalizeSettings(prev, next models.CopySettings) models.CopySettings {
	next.TradePercentage = clamp(next.TradePercentage, 0, 100)
	next.StopLossPercentage = clamp(next.StopLossPercentage, 0, 100)
	if next.TakeProfitPercentage < 0 {
		next.TakeProfitPercentage = 0
	}
	if next.AllowBuyOnly && next.AllowSellOnly {
		if prev.AllowBuyOnly && !prev.AllowSellOnly {
			next.AllowBuyOnly = false
		} else {
			next.AllowSellOnly = false
		}
	}
	return next
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

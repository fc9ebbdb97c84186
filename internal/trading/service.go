// Package trading is the per-user session layer around the copy-trading
// core. Every mutation of a user's book runs under that user's lock:
// load, apply a pure copytrade operation, save, unlock, then notify and
// publish.
package trading

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"copytrader/internal/copytrade"
	apperrors "copytrader/internal/errors"
	"copytrader/internal/feed"
	"copytrader/internal/logging"
	"copytrader/internal/models"
	"copytrader/internal/notify"
	"copytrader/internal/pending"
	"copytrader/internal/store"
)

// Notifier receives user-facing events. notify.MultiNotifier implements it.
type Notifier interface {
	TradeExecuted(ctx context.Context, userID string, txn models.Transaction) error
	TradeQueued(ctx context.Context, userID string, pt models.PendingTrade) error
	Warning(ctx context.Context, userID, title, message string) error
}

// Publisher forwards executed transactions to other systems.
type Publisher interface {
	PublishTransaction(ctx context.Context, userID string, txn models.Transaction) error
}

// Options configures a Service. Zero values disable optional collaborators.
type Options struct {
	InitialCash decimal.Decimal
	Catalog     *feed.Catalog
	Notifier    Notifier
	Inbox       *notify.InboxChannel
	Publisher   Publisher
	Logger      zerolog.Logger
	// FanOut bounds concurrent users routed per signal.
	FanOut int
	Now    func() time.Time
}

// Service serializes access to user books stored in a store.KV.
type Service struct {
	kv   store.KV
	opts Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	usersMu sync.Mutex
}

// UserOutcome pairs a routing outcome with the user it applied to.
type UserOutcome struct {
	UserID string            `json:"user_id"`
	Result copytrade.Outcome `json:"result"`
}

// NewService creates a Service.
func NewService(kv store.KV, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FanOut <= 0 {
		opts.FanOut = 8
	}
	if opts.Catalog == nil {
		opts.Catalog = feed.DefaultCatalog()
	}
	opts.Logger = logging.WithComponent(opts.Logger, "trading")
	return &Service{
		kv:    kv,
		opts:  opts,
		locks: make(map[string]*sync.Mutex),
	}
}

// Catalog returns the expert catalog.
func (s *Service) Catalog() *feed.Catalog {
	return s.opts.Catalog
}

func (s *Service) lock(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func validUser(userID string) error {
	if userID == "" {
		return apperrors.NewValidationError("user", userID, "user id is required")
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID string) (copytrade.Book, bool, error) {
	b, err := store.Load(ctx, s.kv, store.UserStateKey(userID), copytrade.Book{})
	if err != nil {
		return copytrade.Book{}, false, err
	}
	if b.UserID == "" {
		return copytrade.NewBook(userID, s.opts.InitialCash), false, nil
	}
	return b, true, nil
}

// mutate runs fn against the user's book under the user's lock and saves
// the result when fn succeeds.
func (s *Service) mutate(ctx context.Context, userID string, fn func(copytrade.Book) (copytrade.Book, error)) (copytrade.Book, error) {
	if err := validUser(userID); err != nil {
		return copytrade.Book{}, err
	}
	unlock := s.lock(userID)
	defer unlock()

	b, existed, err := s.load(ctx, userID)
	if err != nil {
		return copytrade.Book{}, err
	}
	next, err := fn(b)
	if err != nil {
		return b, err
	}
	if err := store.Save(ctx, s.kv, store.UserStateKey(userID), next); err != nil {
		return b, err
	}
	if !existed {
		if err := s.addUser(ctx, userID); err != nil {
			return next, err
		}
	}
	return next, nil
}

// State returns the user's current book. Unknown users get a fresh book
// that is not persisted.
func (s *Service) State(ctx context.Context, userID string) (copytrade.Book, error) {
	if err := validUser(userID); err != nil {
		return copytrade.Book{}, err
	}
	b, _, err := s.load(ctx, userID)
	return b, err
}

// Users lists every user with persisted state.
func (s *Service) Users(ctx context.Context) ([]string, error) {
	return store.Load(ctx, s.kv, store.UsersKey, []string{})
}

func (s *Service) addUser(ctx context.Context, userID string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.Users(ctx)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(users, userID)
	if i < len(users) && users[i] == userID {
		return nil
	}
	users = append(users, "")
	copy(users[i+1:], users[i:])
	users[i] = userID
	return store.Save(ctx, s.kv, store.UsersKey, users)
}

// Buy executes a manual buy.
func (s *Service) Buy(ctx context.Context, userID, symbol string, shares, price decimal.Decimal) (models.Transaction, error) {
	return s.trade(ctx, userID, models.ActionBuy, symbol, shares, price)
}

// Sell executes a manual sell. Overselling fills the held quantity.
func (s *Service) Sell(ctx context.Context, userID, symbol string, shares, price decimal.Decimal) (models.Transaction, error) {
	return s.trade(ctx, userID, models.ActionSell, symbol, shares, price)
}

// Trade executes a manual buy or sell.
func (s *Service) Trade(ctx context.Context, userID string, action models.TradeAction, symbol string, shares, price decimal.Decimal) (models.Transaction, error) {
	return s.trade(ctx, userID, action, symbol, shares, price)
}

func (s *Service) trade(ctx context.Context, userID string, action models.TradeAction, symbol string, shares, price decimal.Decimal) (models.Transaction, error) {
	var txn models.Transaction
	_, err := s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		next, t, err := b.Trade(action, symbol, shares, price, s.opts.Now())
		txn = t
		return next, err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	logging.LogTrade(logging.WithUser(s.opts.Logger, userID), txn.ID, txn.Symbol, string(txn.Type), txn.Shares, txn.Price, false)
	s.publish(ctx, userID, txn)
	return txn, nil
}

// Follow subscribes the user to an expert, replacing any previous
// subscription to the same expert.
func (s *Service) Follow(ctx context.Context, userID, expertID string, amount decimal.Decimal, autoCopy bool, settings *models.CopySettings) (models.Subscription, error) {
	if _, err := s.opts.Catalog.Get(expertID); err != nil {
		return models.Subscription{}, err
	}
	cs := models.DefaultCopySettings()
	if settings != nil {
		cs = *settings
	}
	b, err := s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		b.Subscriptions = b.Subscriptions.Follow(expertID, amount, autoCopy, cs, s.opts.Now())
		return b, nil
	})
	if err != nil {
		return models.Subscription{}, err
	}
	sub, _ := b.Subscriptions.Get(expertID)
	return sub, nil
}

// Unfollow pauses the user's subscription to an expert.
func (s *Service) Unfollow(ctx context.Context, userID, expertID string) (models.Subscription, error) {
	return s.updateSubscription(ctx, userID, expertID, func(b copytrade.Book) (copytrade.Book, error) {
		r, err := b.Subscriptions.Unfollow(expertID, s.opts.Now())
		b.Subscriptions = r
		return b, err
	})
}

// UpdateSettings replaces the copy settings of a subscription.
func (s *Service) UpdateSettings(ctx context.Context, userID, expertID string, settings models.CopySettings) (models.Subscription, error) {
	return s.updateSubscription(ctx, userID, expertID, func(b copytrade.Book) (copytrade.Book, error) {
		r, err := b.Subscriptions.UpdateSettings(expertID, settings, s.opts.Now())
		b.Subscriptions = r
		return b, err
	})
}

// SetAutoCopy switches a subscription between auto and manual copying.
func (s *Service) SetAutoCopy(ctx context.Context, userID, expertID string, autoCopy bool) (models.Subscription, error) {
	return s.updateSubscription(ctx, userID, expertID, func(b copytrade.Book) (copytrade.Book, error) {
		r, err := b.Subscriptions.SetAutoCopy(expertID, autoCopy, s.opts.Now())
		b.Subscriptions = r
		return b, err
	})
}

func (s *Service) updateSubscription(ctx context.Context, userID, expertID string, fn func(copytrade.Book) (copytrade.Book, error)) (models.Subscription, error) {
	b, err := s.mutate(ctx, userID, fn)
	if err != nil {
		return models.Subscription{}, err
	}
	sub, _ := b.Subscriptions.Get(expertID)
	return sub, nil
}

// RouteForUser routes one signal into one user's book.
func (s *Service) RouteForUser(ctx context.Context, userID string, sig models.CopySignal) (copytrade.Outcome, error) {
	if sig.ExpertName == "" {
		sig.ExpertName = s.opts.Catalog.Name(sig.ExpertID)
	}

	var out copytrade.Outcome
	_, err := s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		next, o := b.Route(sig, s.opts.Now())
		out = o
		return next, nil
	})
	if err != nil {
		return copytrade.Outcome{}, err
	}

	logger := logging.WithUser(s.opts.Logger, userID)
	logging.LogRoute(logger, sig.ExpertID, sig.Symbol, string(out.Status), string(out.Reason), out.Err)
	s.afterRoute(ctx, userID, sig, out)
	return out, nil
}

func (s *Service) afterRoute(ctx context.Context, userID string, sig models.CopySignal, out copytrade.Outcome) {
	switch out.Status {
	case copytrade.StatusExecuted:
		txn := *out.Transaction
		logging.LogTrade(logging.WithUser(s.opts.Logger, userID), txn.ID, txn.Symbol, string(txn.Type), txn.Shares, txn.Price, true)
		s.notify(userID, func(n Notifier) error { return n.TradeExecuted(ctx, userID, txn) })
		s.publish(ctx, userID, txn)
	case copytrade.StatusPending:
		pt := *out.Pending
		s.notify(userID, func(n Notifier) error { return n.TradeQueued(ctx, userID, pt) })
	case copytrade.StatusDropped:
		if out.Reason == copytrade.ReasonInsufficientFunds {
			s.notify(userID, func(n Notifier) error {
				return n.Warning(ctx, userID, "Copy trade skipped",
					"Not enough cash to copy "+sig.ExpertName+": "+out.Err.Error())
			})
		}
	}
}

// HandleSignal routes a signal for every known user. Users without an
// active subscription to the expert get a Dropped outcome and no write.
func (s *Service) HandleSignal(ctx context.Context, sig models.CopySignal) ([]UserOutcome, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UserOutcome, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FanOut)
	for i, userID := range users {
		i, userID := i, userID
		g.Go(func() error {
			b, err := s.State(gctx, userID)
			if err != nil {
				return err
			}
			if !b.Subscriptions.IsActive(sig.ExpertID) {
				results[i] = UserOutcome{UserID: userID, Result: copytrade.Outcome{
					Status: copytrade.StatusDropped,
					Reason: copytrade.ReasonNoActiveSubscription,
				}}
				return nil
			}
			out, err := s.RouteForUser(gctx, userID, sig)
			if err != nil {
				return err
			}
			results[i] = UserOutcome{UserID: userID, Result: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Consume handles signals from ch until it closes or ctx is done.
func (s *Service) Consume(ctx context.Context, ch <-chan models.CopySignal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := s.HandleSignal(ctx, sig); err != nil {
				s.opts.Logger.Error().Err(err).Str("expert", sig.ExpertID).Msg("Failed to handle signal")
			}
		}
	}
}

// Approve executes a pending trade, optionally with a reviewed quantity.
func (s *Service) Approve(ctx context.Context, userID, pendingID string, review pending.Review) (models.Transaction, error) {
	var txn models.Transaction
	_, err := s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		next, t, err := b.Approve(pendingID, review, s.opts.Now())
		txn = t
		return next, err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	logging.LogTrade(logging.WithUser(s.opts.Logger, userID), txn.ID, txn.Symbol, string(txn.Type), txn.Shares, txn.Price, true)
	s.notify(userID, func(n Notifier) error { return n.TradeExecuted(ctx, userID, txn) })
	s.publish(ctx, userID, txn)
	return txn, nil
}

// Reject discards one pending trade.
func (s *Service) Reject(ctx context.Context, userID, pendingID string) (models.PendingTrade, error) {
	var pt models.PendingTrade
	_, err := s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		next, p, err := b.Reject(pendingID)
		pt = p
		return next, err
	})
	return pt, err
}

// RejectAll discards every pending trade and returns how many there were.
func (s *Service) RejectAll(ctx context.Context, userID string) (int, error) {
	var n int
	_, err := s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		next, count := b.RejectAll()
		n = count
		return next, nil
	})
	return n, err
}

// MarkPrice updates the display price of a held symbol.
func (s *Service) MarkPrice(ctx context.Context, userID, symbol string, price decimal.Decimal) (copytrade.Book, error) {
	if !price.IsPositive() {
		return copytrade.Book{}, apperrors.ErrInvalidPrice
	}
	return s.mutate(ctx, userID, func(b copytrade.Book) (copytrade.Book, error) {
		if _, ok := b.Portfolio.Holding(copytrade.NormalizeSymbol(symbol)); !ok {
			return b, apperrors.Wrapf(apperrors.ErrPositionNotFound, "symbol %s", symbol)
		}
		return b.Mark(symbol, price), nil
	})
}

// Notifications returns the user's inbox, newest first.
func (s *Service) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if s.opts.Inbox == nil {
		return []models.Notification{}, nil
	}
	return s.opts.Inbox.List(ctx, userID)
}

// MarkNotificationsRead marks the given (or all) notifications read.
func (s *Service) MarkNotificationsRead(ctx context.Context, userID string, ids ...string) (int, error) {
	if err := validUser(userID); err != nil {
		return 0, err
	}
	if s.opts.Inbox == nil {
		return 0, nil
	}
	return s.opts.Inbox.MarkRead(ctx, userID, ids...)
}

// Reset replaces the user's book with a fresh one and clears the inbox.
func (s *Service) Reset(ctx context.Context, userID string) (copytrade.Book, error) {
	b, err := s.mutate(ctx, userID, func(copytrade.Book) (copytrade.Book, error) {
		return copytrade.NewBook(userID, s.opts.InitialCash), nil
	})
	if err != nil {
		return b, err
	}
	if s.opts.Inbox != nil {
		if err := s.opts.Inbox.Clear(ctx, userID); err != nil {
			return b, err
		}
	}
	s.opts.Logger.Info().Str("user", userID).Msg("Account reset")
	return b, nil
}

func (s *Service) notify(userID string, fn func(Notifier) error) {
	if s.opts.Notifier == nil {
		return
	}
	if err := fn(s.opts.Notifier); err != nil {
		s.opts.Logger.Warn().Err(err).Str("user", userID).Msg("Notification failed")
	}
}

func (s *Service) publish(ctx context.Context, userID string, txn models.Transaction) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.PublishTransaction(ctx, userID, txn); err != nil {
		s.opts.Logger.Warn().Err(err).Str("user", userID).Str("txn_id", txn.ID).Msg("Failed to publish transaction")
	}
}

package trading

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytrader/internal/copytrade"
	apperrors "copytrader/internal/errors"
	"copytrader/internal/feed"
	"copytrader/internal/models"
	"copytrader/internal/notify"
	"copytrader/internal/pending"
	"copytrader/internal/store"
)

var at = time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu   sync.Mutex
	txns []models.Transaction
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, _ string, txn models.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txns = append(p.txns, txn)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txns)
}

type fixture struct {
	svc   *Service
	kv    store.KV
	inbox *notify.InboxChannel
	pub   *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	kv := store.NewMemoryStore()
	inbox := notify.NewInboxChannel(kv, 100)
	pub := &recordingPublisher{}
	catalog := feed.NewCatalog(
		models.Expert{ID: "sarah", Name: "Sarah Chen", Symbols: []string{"AAPL"}},
		models.Expert{ID: "mike", Name: "Mike Ross", Symbols: []string{"TSLA"}},
	)
	svc := NewService(kv, Options{
		InitialCash: d("10000"),
		Catalog:     catalog,
		Notifier:    notify.NewMultiNotifier(inbox),
		Inbox:       inbox,
		Publisher:   pub,
		Logger:      zerolog.Nop(),
		Now:         func() time.Time { return at },
	})
	return fixture{svc: svc, kv: kv, inbox: inbox, pub: pub}
}

func sig(expert, symbol string, action models.TradeAction, price, qty string) models.CopySignal {
	return models.CopySignal{
		ExpertID: expert,
		Symbol:   symbol,
		Action:   action,
		Price:    d(price),
		Quantity: d(qty),
	}
}

func TestService_StateDefaultsWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", b.UserID)
	assert.True(t, b.Portfolio.CashBalance.Equal(d("10000")))

	users, err := f.svc.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = f.svc.State(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInputValidation))
}

func TestService_ManualTrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.Buy(ctx, "alice", "aapl", d("10"), d("175.43"))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", txn.Symbol)
	assert.False(t, txn.CopyTrade)

	b, err := f.svc.State(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, b.Portfolio.CashBalance.Equal(d("8245.70")))
	assert.Equal(t, 1, b.Journal.Len())

	_, err = f.svc.Buy(ctx, "alice", "TSLA", d("1000"), d("200"))
	var fe *apperrors.FundsError
	require.True(t, apperrors.As(err, &fe))
	assert.True(t, fe.Available.Equal(d("8245.70")))

	sold, err := f.svc.Sell(ctx, "alice", "AAPL", d("25"), d("180"))
	require.NoError(t, err)
	assert.True(t, sold.Shares.Equal(d("10")), "oversell fills the held quantity")

	_, err = f.svc.Sell(ctx, "alice", "MSFT", d("1"), d("1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrPositionNotFound))

	assert.Equal(t, 2, f.pub.count())

	users, err := f.svc.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)
}

func TestService_FollowLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Follow(ctx, "alice", "ghost", d("1000"), true, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrExpertNotFound))

	sub, err := f.svc.Follow(ctx, "alice", "sarah", d("3000"), true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, models.DefaultCopySettings(), sub.Settings)

	sub, err = f.svc.SetAutoCopy(ctx, "alice", "sarah", false)
	require.NoError(t, err)
	assert.False(t, sub.AutoCopy)

	sub, err = f.svc.UpdateSettings(ctx, "alice", "sarah", models.CopySettings{TradePercentage: 50, AllowSellOnly: true})
	require.NoError(t, err)
	assert.True(t, sub.Settings.AllowSellOnly)
	assert.Equal(t, 50.0, sub.Settings.TradePercentage)

	sub, err = f.svc.Unfollow(ctx, "alice", "sarah")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPaused, sub.Status)

	_, err = f.svc.Unfollow(ctx, "alice", "mike")
	assert.True(t, apperrors.Is(err, apperrors.ErrSubscriptionNotFound))
}

func TestService_HandleSignalFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Follow(ctx, "auto", "sarah", d("3000"), true, nil)
	require.NoError(t, err)
	_, err = f.svc.Follow(ctx, "manual", "sarah", d("3000"), false, nil)
	require.NoError(t, err)
	_, err = f.svc.Follow(ctx, "other", "mike", d("3000"), true, nil)
	require.NoError(t, err)

	results, err := f.svc.HandleSignal(ctx, sig("sarah", "AAPL", models.ActionBuy, "100", "50"))
	require.NoError(t, err)
	require.Len(t, results, 3)

	byUser := map[string]copytrade.Outcome{}
	for _, r := range results {
		byUser[r.UserID] = r.Result
	}
	assert.Equal(t, copytrade.StatusExecuted, byUser["auto"].Status)
	assert.True(t, byUser["auto"].Quantity.Equal(d("3")))
	assert.Equal(t, "Sarah Chen", byUser["auto"].Transaction.ExpertName)
	assert.Equal(t, copytrade.StatusPending, byUser["manual"].Status)
	assert.Equal(t, copytrade.StatusDropped, byUser["other"].Status)
	assert.Equal(t, copytrade.ReasonNoActiveSubscription, byUser["other"].Reason)

	auto, _ := f.svc.State(ctx, "auto")
	assert.True(t, auto.Portfolio.CashBalance.Equal(d("9700")))
	manual, _ := f.svc.State(ctx, "manual")
	assert.Equal(t, 1, manual.Pending.Len())
	assert.Empty(t, manual.Portfolio.Holdings)

	autoInbox, _ := f.svc.Notifications(ctx, "auto")
	require.Len(t, autoInbox, 1)
	assert.Equal(t, models.NotificationTrade, autoInbox[0].Type)
	manualInbox, _ := f.svc.Notifications(ctx, "manual")
	require.Len(t, manualInbox, 1)
	assert.Equal(t, models.NotificationPending, manualInbox[0].Type)
	otherInbox, _ := f.svc.Notifications(ctx, "other")
	assert.Empty(t, otherInbox)

	assert.Equal(t, 1, f.pub.count())
}

func TestService_InsufficientFundsWarns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Follow(ctx, "alice", "sarah", d("1000000"), true, nil)
	require.NoError(t, err)

	out, err := f.svc.RouteForUser(ctx, "alice", sig("sarah", "AAPL", models.ActionBuy, "500", "100"))
	require.NoError(t, err)
	assert.Equal(t, copytrade.StatusDropped, out.Status)
	assert.Equal(t, copytrade.ReasonInsufficientFunds, out.Reason)

	b, _ := f.svc.State(ctx, "alice")
	assert.True(t, b.Portfolio.CashBalance.Equal(d("10000")))
	assert.Equal(t, 0, b.Journal.Len())

	inbox, _ := f.svc.Notifications(ctx, "alice")
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationWarning, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "Sarah Chen")
}

func TestService_PendingApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Follow(ctx, "alice", "sarah", d("3000"), false, nil)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		out, err := f.svc.RouteForUser(ctx, "alice", sig("sarah", "AAPL", models.ActionBuy, "100", "5"))
		require.NoError(t, err)
		require.Equal(t, copytrade.StatusPending, out.Status)
		ids = append(ids, out.Pending.ID)
	}

	reviewed := d("2")
	sl := d("90")
	txn, err := f.svc.Approve(ctx, "alice", ids[0], pending.Review{Shares: &reviewed, StopLoss: &sl})
	require.NoError(t, err)
	assert.True(t, txn.Shares.Equal(d("2")))
	assert.True(t, txn.CopyTrade)
	require.NotNil(t, txn.StopLoss)
	assert.True(t, txn.StopLoss.Equal(sl))

	pt, err := f.svc.Reject(ctx, "alice", ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids[1], pt.ID)

	_, err = f.svc.Approve(ctx, "alice", ids[1], pending.Review{})
	assert.True(t, apperrors.Is(err, apperrors.ErrPendingTradeNotFound))

	n, err := f.svc.RejectAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b, _ := f.svc.State(ctx, "alice")
	assert.Equal(t, 0, b.Pending.Len())
	assert.True(t, b.Portfolio.CashBalance.Equal(d("9800")))
}

func TestService_ApproveFailureKeepsTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Follow(ctx, "alice", "sarah", d("3000"), false, nil)
	require.NoError(t, err)
	out, err := f.svc.RouteForUser(ctx, "alice", sig("sarah", "AAPL", models.ActionBuy, "1000", "50"))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "alice", out.Pending.ID, pending.Review{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientFunds))

	b, _ := f.svc.State(ctx, "alice")
	assert.Equal(t, 1, b.Pending.Len())
}

func TestService_MarkPriceAndNotificationsAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Buy(ctx, "alice", "AAPL", d("10"), d("100"))
	require.NoError(t, err)

	b, err := f.svc.MarkPrice(ctx, "alice", "aapl", d("110"))
	require.NoError(t, err)
	h, _ := b.Portfolio.Holding("AAPL")
	assert.True(t, h.CurrentPrice.Equal(d("110")))

	_, err = f.svc.MarkPrice(ctx, "alice", "MSFT", d("1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrPositionNotFound))
	_, err = f.svc.MarkPrice(ctx, "alice", "AAPL", d("0"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPrice))

	_, err = f.svc.Follow(ctx, "alice", "sarah", d("3000"), false, nil)
	require.NoError(t, err)
	_, err = f.svc.RouteForUser(ctx, "alice", sig("sarah", "AAPL", models.ActionBuy, "100", "1"))
	require.NoError(t, err)

	changed, err := f.svc.MarkNotificationsRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	b, err = f.svc.Reset(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, b.Portfolio.CashBalance.Equal(d("10000")))
	assert.Equal(t, 0, b.Journal.Len())
	assert.Equal(t, 0, b.Subscriptions.Len())

	inbox, err := f.svc.Notifications(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestService_ConcurrentSignalsSerializePerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Follow(ctx, "alice", "sarah", d("100000"), true, nil)
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.HandleSignal(ctx, sig("sarah", "AAPL", models.ActionBuy, "10", "1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	b, err := f.svc.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, n, b.Journal.Len())
	h, _ := b.Portfolio.Holding("AAPL")
	assert.True(t, h.Shares.Equal(decimal.NewFromInt(n)))
	assert.True(t, b.Portfolio.CashBalance.Equal(d("10000").Sub(d(fmt.Sprint(10*n)))))
}

func TestService_Consume(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.svc.Follow(ctx, "alice", "sarah", d("3000"), true, nil)
	require.NoError(t, err)

	ch := make(chan models.CopySignal, 2)
	ch <- sig("sarah", "AAPL", models.ActionBuy, "100", "1")
	ch <- sig("sarah", "AAPL", models.ActionSell, "110", "1")
	close(ch)

	require.NoError(t, f.svc.Consume(ctx, ch))

	b, _ := f.svc.State(ctx, "alice")
	assert.Equal(t, 2, b.Journal.Len())
	assert.True(t, b.Portfolio.CashBalance.Equal(d("10010")))
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"copytrader/internal/config"
	"copytrader/internal/copytrade"
	"copytrader/internal/models"
	"copytrader/internal/store"
)

func newTestApp() *App {
	cfg := config.Default()
	cfg.Notifications.Terminal = false
	return &App{
		Config: cfg,
		KV:     store.NewMemoryStore(),
		Logger: zerolog.Nop(),
	}
}

func run(t *testing.T, app *App, args ...string) string {
	t.Helper()
	out, err := runErr(app, args...)
	require.NoError(t, err, "copytrader %s", strings.Join(args, " "))
	return out
}

func runErr(app *App, args ...string) (string, error) {
	cmd := newRootCmd(app)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

// fakePrompter replays scripted answers.
type fakePrompter struct {
	confirms []bool
	choices  []string
	decimals []*decimal.Decimal
}

func (f *fakePrompter) Confirm(string) (bool, error) {
	ok := f.confirms[0]
	f.confirms = f.confirms[1:]
	return ok, nil
}

func (f *fakePrompter) Choose(_ string, options []string) (string, error) {
	c := f.choices[0]
	f.choices = f.choices[1:]
	return c, nil
}

func (f *fakePrompter) Decimal(string, decimal.Decimal, bool) (*decimal.Decimal, error) {
	d := f.decimals[0]
	f.decimals = f.decimals[1:]
	return d, nil
}

func usePrompter(t *testing.T, p prompter) {
	prev := prompts
	prompts = p
	t.Cleanup(func() { prompts = prev })
}

func dp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestVersion(t *testing.T) {
	out := run(t, newTestApp(), "version", "--json")
	v := decodeJSON[map[string]string](t, out)
	assert.Equal(t, Version, v["version"])
}

func TestBuySellAndPortfolio(t *testing.T) {
	app := newTestApp()

	txn := decodeJSON[models.Transaction](t, run(t, app, "buy", "aapl", "10", "150", "--json"))
	assert.Equal(t, "AAPL", txn.Symbol)
	assert.True(t, txn.Total.Equal(decimal.NewFromInt(1500)))
	assert.False(t, txn.CopyTrade)

	run(t, app, "sell", "AAPL", "4", "160")

	pf := decodeJSON[struct {
		User    string `json:"user"`
		Summary struct {
			Cash decimal.Decimal `json:"cash"`
		} `json:"summary"`
		Holdings []models.Holding `json:"holdings"`
	}](t, run(t, app, "portfolio", "--json"))
	assert.Equal(t, "demo", pf.User)
	assert.True(t, pf.Summary.Cash.Equal(decimal.NewFromInt(9140)), pf.Summary.Cash.String())
	require.Len(t, pf.Holdings, 1)
	assert.True(t, pf.Holdings[0].Shares.Equal(decimal.NewFromInt(6)))

	text := run(t, app, "portfolio")
	assert.Contains(t, text, "AAPL")

	history := decodeJSON[[]models.Transaction](t, run(t, app, "history", "--side", "sell", "--json"))
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionSell, history[0].Type)
}

func TestTradeErrors(t *testing.T) {
	app := newTestApp()

	_, err := runErr(app, "buy", "AAPL", "1000", "150")
	assert.Error(t, err)

	_, err = runErr(app, "sell", "MSFT", "1", "100")
	assert.Error(t, err)

	_, err = runErr(app, "buy", "AAPL", "ten", "150")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestUsersAreIsolated(t *testing.T) {
	app := newTestApp()
	run(t, app, "buy", "AAPL", "1", "100", "-u", "alice")

	pf := decodeJSON[struct {
		Holdings []models.Holding `json:"holdings"`
	}](t, run(t, app, "portfolio", "--json", "-u", "bob"))
	assert.Empty(t, pf.Holdings)
}

func TestFollowAndAutoCopySignal(t *testing.T) {
	app := newTestApp()

	sub := decodeJSON[models.Subscription](t, run(t, app, "follow", "warren-value", "5000", "--json"))
	assert.True(t, sub.AutoCopy)
	assert.Equal(t, models.SubscriptionActive, sub.Status)

	rows := decodeJSON[[]outcomeRow](t, run(t, app, "signal", "warren-value", "buy", "AAPL", "100", "100", "--json"))
	require.Len(t, rows, 1)
	assert.Equal(t, copytrade.StatusExecuted, rows[0].Outcome.Status)
	assert.True(t, rows[0].Outcome.Quantity.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, rows[0].Outcome.Transaction)
	assert.True(t, rows[0].Outcome.Transaction.CopyTrade)

	rows = decodeJSON[[]outcomeRow](t, run(t, app, "signal", "tech-momentum", "buy", "NVDA", "1", "800", "--json"))
	require.Len(t, rows, 1)
	assert.Equal(t, copytrade.StatusDropped, rows[0].Outcome.Status)
	assert.Equal(t, copytrade.ReasonNoActiveSubscription, rows[0].Outcome.Reason)

	subs := decodeJSON[models.Subscription](t, run(t, app, "autocopy", "warren-value", "off", "--json"))
	assert.False(t, subs.AutoCopy)

	rows = decodeJSON[[]outcomeRow](t, run(t, app, "signal", "warren-value", "sell", "AAPL", "2", "110", "--json"))
	assert.Equal(t, copytrade.StatusPending, rows[0].Outcome.Status)

	run(t, app, "unfollow", "warren-value")
	rows = decodeJSON[[]outcomeRow](t, run(t, app, "signal", "warren-value", "buy", "AAPL", "1", "100", "--json"))
	assert.Equal(t, copytrade.ReasonNoActiveSubscription, rows[0].Outcome.Reason)
}

func TestSignalAllRoutesEveryKnownUser(t *testing.T) {
	app := newTestApp()
	run(t, app, "follow", "warren-value", "5000", "-u", "alice")
	run(t, app, "follow", "warren-value", "5000", "--manual", "-u", "bob")

	rows := decodeJSON[[]outcomeRow](t, run(t, app, "signal", "warren-value", "buy", "KO", "10", "60", "--all", "--json"))
	require.Len(t, rows, 2)
	byUser := map[string]copytrade.Status{}
	for _, r := range rows {
		byUser[r.User] = r.Outcome.Status
	}
	assert.Equal(t, copytrade.StatusExecuted, byUser["alice"])
	assert.Equal(t, copytrade.StatusPending, byUser["bob"])
}

func TestPendingApproveAndReject(t *testing.T) {
	app := newTestApp()
	run(t, app, "follow", "swing-sara", "5000", "--manual")
	run(t, app, "signal", "swing-sara", "buy", "AMZN", "10", "100")
	run(t, app, "signal", "swing-sara", "buy", "GOOGL", "5", "100")

	list := decodeJSON[[]models.PendingTrade](t, run(t, app, "pending", "list", "--json"))
	require.Len(t, list, 2)
	assert.Equal(t, "AMZN", list[0].Symbol)

	txn := decodeJSON[models.Transaction](t, run(t, app,
		"pending", "approve", list[0].ID, "--shares", "3", "--stop-loss", "90", "--json"))
	assert.True(t, txn.Shares.Equal(decimal.NewFromInt(3)))
	require.NotNil(t, txn.StopLoss)
	assert.True(t, txn.StopLoss.Equal(decimal.NewFromInt(90)))
	assert.Nil(t, txn.TakeProfit)

	rejected := decodeJSON[models.PendingTrade](t, run(t, app, "pending", "reject", list[1].ID, "--json"))
	assert.Equal(t, "GOOGL", rejected.Symbol)

	assert.Contains(t, run(t, app, "pending", "list"), "No pending trades")

	_, err := runErr(app, "pending", "approve", list[1].ID)
	assert.Error(t, err)

	_, err = runErr(app, "pending", "approve", "x", "--shares", "abc")
	assert.Error(t, err)
}

func TestPendingRejectAllConfirms(t *testing.T) {
	app := newTestApp()
	run(t, app, "follow", "swing-sara", "5000", "--manual")
	run(t, app, "signal", "swing-sara", "buy", "AMZN", "1", "100")
	run(t, app, "signal", "swing-sara", "buy", "NFLX", "1", "600")

	usePrompter(t, &fakePrompter{confirms: []bool{false}})
	run(t, app, "pending", "reject-all")
	list := decodeJSON[[]models.PendingTrade](t, run(t, app, "pending", "list", "--json"))
	assert.Len(t, list, 2)

	res := decodeJSON[map[string]int](t, run(t, app, "pending", "reject-all", "--yes", "--json"))
	assert.Equal(t, 2, res["rejected"])
}

func TestPendingReview(t *testing.T) {
	app := newTestApp()
	run(t, app, "follow", "dividend-dan", "5000", "--manual")
	run(t, app, "signal", "dividend-dan", "buy", "PG", "10", "100")
	run(t, app, "signal", "dividend-dan", "buy", "KO", "10", "50")
	run(t, app, "signal", "dividend-dan", "buy", "PEP", "10", "100")
	run(t, app, "signal", "dividend-dan", "buy", "JNJ", "10", "100")

	usePrompter(t, &fakePrompter{
		choices:  []string{choiceAdjust, choiceReject, choiceSkip, choiceStop},
		decimals: []*decimal.Decimal{dp("4"), nil, dp("120")},
	})
	out := run(t, app, "pending", "review")
	assert.Contains(t, out, "Approved 1, rejected 1, skipped 2, failed 0")

	list := decodeJSON[[]models.PendingTrade](t, run(t, app, "pending", "list", "--json"))
	require.Len(t, list, 2)
	assert.Equal(t, "PEP", list[0].Symbol)
	assert.Equal(t, "JNJ", list[1].Symbol)

	history := decodeJSON[[]models.Transaction](t, run(t, app, "history", "--json"))
	require.Len(t, history, 1)
	assert.Equal(t, "PG", history[0].Symbol)
	assert.True(t, history[0].Shares.Equal(decimal.NewFromInt(4)))
	require.NotNil(t, history[0].TakeProfit)
	assert.Nil(t, history[0].StopLoss)
}

func TestSettingsCommand(t *testing.T) {
	app := newTestApp()
	run(t, app, "follow", "warren-value", "1000")

	sub := decodeJSON[models.Subscription](t, run(t, app,
		"settings", "warren-value", "--trade-pct", "50", "--buy-only", "--json"))
	assert.Equal(t, 50.0, sub.Settings.TradePercentage)
	assert.True(t, sub.Settings.AllowBuyOnly)
	assert.Equal(t, models.DefaultCopySettings().StopLossPercentage, sub.Settings.StopLossPercentage)

	_, err := runErr(app, "settings", "nobody", "--trade-pct", "10")
	assert.Error(t, err)
}

func TestExportYAML(t *testing.T) {
	app := newTestApp()
	run(t, app, "buy", "MSFT", "2", "400")

	out := run(t, app, "export", "--format", "yaml")
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "demo", doc["user"])
	summary, ok := doc["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "9200", summary["cash"])

	_, err := runErr(app, "export", "--format", "xml")
	assert.Error(t, err)
}

func TestResetAsksFirst(t *testing.T) {
	app := newTestApp()
	run(t, app, "buy", "KO", "10", "60")

	usePrompter(t, &fakePrompter{confirms: []bool{false}})
	assert.Contains(t, run(t, app, "reset"), "cancelled")

	res := decodeJSON[map[string]any](t, run(t, app, "reset", "--yes", "--json"))
	assert.Equal(t, "10000", res["cash"])
}

func TestNotificationsCommand(t *testing.T) {
	app := newTestApp()
	run(t, app, "follow", "warren-value", "5000", "--manual")
	run(t, app, "signal", "warren-value", "buy", "AAPL", "1", "100")

	list := decodeJSON[[]models.Notification](t, run(t, app, "notifications", "--unread", "--json"))
	require.NotEmpty(t, list)
	assert.Equal(t, models.NotificationPending, list[0].Type)

	run(t, app, "notifications", "--mark-read")
	list = decodeJSON[[]models.Notification](t, run(t, app, "notifications", "--unread", "--json"))
	assert.Empty(t, list)
}

func TestConfigShowMasksPassword(t *testing.T) {
	app := newTestApp()
	app.Config.Store.RedisPassword = "hunter2"
	out := run(t, app, "config", "show", "--json")
	assert.NotContains(t, out, "hunter2")
	assert.Equal(t, "hunter2", app.Config.Store.RedisPassword)
}

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{writer: &buf}
	tbl := NewTable(out, "SYMBOL", "SHARES")
	tbl.AddRow("AAPL", "10")
	tbl.AddRow("GOOGL", "1250")
	tbl.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "SYMBOL  SHARES", lines[0])
	assert.Equal(t, "------  ------", lines[1])
	assert.Equal(t, "AAPL    10", lines[2])
	assert.Equal(t, "GOOGL   1250", lines[3])
}

func TestParseDecimalProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("integers round trip through parseDecimal", prop.ForAll(
		func(n int64) bool {
			d, err := parseDecimal("n", " "+decimal.NewFromInt(n).String()+" ")
			return err == nil && d.Equal(decimal.NewFromInt(n))
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

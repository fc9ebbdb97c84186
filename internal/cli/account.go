package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"copytrader/internal/copytrade"
	"copytrader/internal/journal"
	"copytrader/internal/ledger"
	"copytrader/internal/models"
)

func addAccountCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newTradeCmd(app, models.ActionBuy))
	rootCmd.AddCommand(newTradeCmd(app, models.ActionSell))
	rootCmd.AddCommand(newMarkCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newResetCmd(app))
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, s)
	}
	return d, nil
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "portfolio",
		Aliases: []string{"pf"},
		Short:   "Show holdings, cash and unrealized P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.State(cmd.Context(), app.user(cmd))
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			summary := ledger.Summarize(b.Portfolio)
			if out.IsJSON() {
				return out.JSON(map[string]any{
					"user":     b.UserID,
					"holdings": b.Portfolio.Holdings,
					"summary":  summary,
				})
			}
			printPortfolio(out, b, summary)
			return nil
		},
	}
}

func printPortfolio(out *Output, b copytrade.Book, s ledger.Summary) {
	out.Heading(fmt.Sprintf("Portfolio: %s", b.UserID))
	if len(b.Portfolio.Holdings) == 0 {
		out.Dim("No holdings")
	} else {
		t := NewTable(out, "SYMBOL", "SHARES", "AVG", "PRICE", "VALUE", "P&L", "P&L %")
		for _, h := range b.Portfolio.Holdings {
			t.AddRow(
				h.Symbol,
				h.Shares.String(),
				out.Money(h.AveragePrice),
				out.Money(h.CurrentPrice),
				out.Money(h.MarketValue()),
				out.PnL(ledger.UnrealizedPnL(h)),
				out.Percent(ledger.UnrealizedPnLPercent(h)),
			)
		}
		t.Render()
	}
	out.Println()
	out.Box("Summary", []string{
		fmt.Sprintf("Cash:          %s", out.Money(s.Cash)),
		fmt.Sprintf("Market value:  %s", out.Money(s.MarketValue)),
		fmt.Sprintf("Equity:        %s", out.Money(s.Equity)),
		fmt.Sprintf("Unrealized:    %s (%s)", out.PnL(s.UnrealizedPnL), out.Percent(s.UnrealizedPnLPercent)),
	})
}

func newTradeCmd(app *App, action models.TradeAction) *cobra.Command {
	verb := string(action)
	return &cobra.Command{
		Use:   verb + " SYMBOL SHARES PRICE",
		Short: fmt.Sprintf("Manually %s shares at a price", verb),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := parseDecimal("shares", args[1])
			if err != nil {
				return err
			}
			price, err := parseDecimal("price", args[2])
			if err != nil {
				return err
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			txn, err := svc.Trade(cmd.Context(), app.user(cmd), action, args[0], shares, price)
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(txn)
			}
			printTransaction(out, txn)
			return nil
		},
	}
}

func printTransaction(out *Output, txn models.Transaction) {
	past := "Bought"
	if txn.Type == models.ActionSell {
		past = "Sold"
	}
	out.Success("%s %s %s @ %s (total %s)", past, txn.Shares, txn.Symbol, out.Money(txn.Price), out.Money(txn.Total))
	out.Dim("Transaction %s", txn.ID)
}

func newMarkCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mark SYMBOL PRICE",
		Short: "Set the display price of a holding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseDecimal("price", args[1])
			if err != nil {
				return err
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.MarkPrice(cmd.Context(), app.user(cmd), args[0], price)
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(ledger.Summarize(b.Portfolio))
			}
			out.Success("Marked %s at %s", strings.ToUpper(args[0]), out.Money(price))
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		symbol   string
		side     string
		copyOnly bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"transactions"},
		Short:   "Show executed transactions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.State(cmd.Context(), app.user(cmd))
			if err != nil {
				return err
			}
			f := journal.Filter{
				Symbol:   strings.ToUpper(symbol),
				CopyOnly: copyOnly,
				Limit:    limit,
			}
			if side != "" {
				a, err := models.ParseTradeAction(side)
				if err != nil {
					return err
				}
				f.Type = a
			}
			txns := b.Journal.Query(f)

			out := NewOutput(cmd)
			if out.IsJSON() {
				if txns == nil {
					txns = []models.Transaction{}
				}
				return out.JSON(txns)
			}
			if len(txns) == 0 {
				out.Dim("No transactions")
				return nil
			}
			t := NewTable(out, "TIME", "SIDE", "SYMBOL", "SHARES", "PRICE", "TOTAL", "SOURCE")
			for _, txn := range txns {
				source := "manual"
				if txn.CopyTrade {
					source = "copy: " + firstNonEmpty(txn.ExpertName, txn.ExpertID)
				}
				t.AddRow(
					txn.Timestamp.Local().Format("2006-01-02 15:04"),
					strings.ToUpper(string(txn.Type)),
					txn.Symbol,
					txn.Shares.String(),
					out.Money(txn.Price),
					out.Money(txn.Total),
					source,
				)
			}
			t.Render()
			bought, sold := b.Journal.Totals()
			out.Println()
			out.Dim("All time: bought %s, sold %s", out.Money(bought), out.Money(sold))
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "only this symbol")
	cmd.Flags().StringVar(&side, "side", "", "only buy or sell")
	cmd.Flags().BoolVar(&copyOnly, "copy", false, "only copied trades")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows (0 for all)")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// exportDoc is the document written by export.
type exportDoc struct {
	ExportedAt    time.Time             `json:"exported_at" yaml:"exported_at"`
	User          string                `json:"user" yaml:"user"`
	Summary       exportSummary         `json:"summary" yaml:"summary"`
	Holdings      []exportHolding       `json:"holdings" yaml:"holdings"`
	Subscriptions []models.Subscription `json:"subscriptions" yaml:"subscriptions"`
	Pending       []models.PendingTrade `json:"pending" yaml:"pending"`
	Transactions  []models.Transaction  `json:"transactions" yaml:"transactions"`
}

type exportSummary struct {
	Cash        string `json:"cash" yaml:"cash"`
	MarketValue string `json:"market_value" yaml:"market_value"`
	Equity      string `json:"equity" yaml:"equity"`
}

type exportHolding struct {
	Symbol       string `json:"symbol" yaml:"symbol"`
	Shares       string `json:"shares" yaml:"shares"`
	AveragePrice string `json:"average_price" yaml:"average_price"`
	CurrentPrice string `json:"current_price" yaml:"current_price"`
}

func buildExport(b copytrade.Book, at time.Time) exportDoc {
	s := ledger.Summarize(b.Portfolio)
	doc := exportDoc{
		ExportedAt: at,
		User:       b.UserID,
		Summary: exportSummary{
			Cash:        s.Cash.String(),
			MarketValue: s.MarketValue.String(),
			Equity:      s.Equity.String(),
		},
		Holdings:      make([]exportHolding, 0, len(b.Portfolio.Holdings)),
		Subscriptions: b.Subscriptions.All(),
		Pending:       b.Pending.All(),
		Transactions:  b.Journal.All(),
	}
	for _, h := range b.Portfolio.Holdings {
		doc.Holdings = append(doc.Holdings, exportHolding{
			Symbol:       h.Symbol,
			Shares:       h.Shares.String(),
			AveragePrice: h.AveragePrice.String(),
			CurrentPrice: h.CurrentPrice.String(),
		})
	}
	return doc
}

func newExportCmd(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full account state as JSON or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.State(cmd.Context(), app.user(cmd))
			if err != nil {
				return err
			}
			doc := buildExport(b, time.Now().UTC())
			out := NewOutput(cmd)
			switch strings.ToLower(format) {
			case "json":
				return out.JSON(doc)
			case "yaml", "yml":
				return out.YAML(doc)
			default:
				return fmt.Errorf("unknown export format %q (use json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	return cmd
}

func newResetCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the account to its initial cash",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cmd)
			user := app.user(cmd)
			if !yes {
				ok, err := confirm(fmt.Sprintf("Reset account %s? Holdings, follows and history will be lost.", user))
				if err != nil {
					return err
				}
				if !ok {
					out.Warning("Reset cancelled")
					return nil
				}
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.Reset(cmd.Context(), user)
			if err != nil {
				return err
			}
			if out.IsJSON() {
				return out.JSON(map[string]any{"user": user, "cash": b.Portfolio.CashBalance})
			}
			out.Success("Account %s reset to %s", user, out.Money(b.Portfolio.CashBalance))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

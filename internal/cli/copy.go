package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"copytrader/internal/copytrade"
	"copytrader/internal/models"
	"copytrader/internal/notify"
)

func addCopyCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newExpertsCmd(app))
	rootCmd.AddCommand(newFollowCmd(app))
	rootCmd.AddCommand(newUnfollowCmd(app))
	rootCmd.AddCommand(newSettingsCmd(app))
	rootCmd.AddCommand(newAutoCopyCmd(app))
	rootCmd.AddCommand(newSignalCmd(app))
	rootCmd.AddCommand(newNotificationsCmd(app))
}

func newExpertsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "experts",
		Short: "List experts and whether you follow them",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.State(cmd.Context(), app.user(cmd))
			if err != nil {
				return err
			}
			experts := svc.Catalog().All()

			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(experts)
			}
			t := NewTable(out, "ID", "NAME", "RISK", "FEE", "WIN RATE", "RETURN", "FOLLOWING")
			for _, e := range experts {
				following := "-"
				if sub, ok := b.Subscriptions.Get(e.ID); ok {
					following = string(sub.Status)
					if sub.IsActive() {
						mode := "manual"
						if sub.AutoCopy {
							mode = "auto"
						}
						following = fmt.Sprintf("%s (%s, %s)", sub.Status, mode, out.Money(sub.Amount))
					}
				}
				t.AddRow(
					e.ID,
					e.Name,
					string(e.RiskLevel),
					out.Money(e.MonthlyFee)+"/mo",
					fmt.Sprintf("%.0f%%", e.WinRate),
					fmt.Sprintf("%+.1f%%", e.TotalReturn),
					following,
				)
			}
			t.Render()
			return nil
		},
	}
}

func newFollowCmd(app *App) *cobra.Command {
	var manual bool
	cmd := &cobra.Command{
		Use:   "follow EXPERT AMOUNT",
		Short: "Follow an expert with an allocation",
		Long: `Follow an expert. Auto-copied trades are sized to at most 10% of AMOUNT.
With --manual every signal is queued for approval instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseDecimal("amount", args[1])
			if err != nil {
				return err
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			sub, err := svc.Follow(cmd.Context(), app.user(cmd), args[0], amount, !manual, nil)
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(sub)
			}
			mode := "auto-copy"
			if !sub.AutoCopy {
				mode = "manual approval"
			}
			out.Success("Following %s with %s (%s)", svc.Catalog().Name(sub.ExpertID), out.Money(sub.Amount), mode)
			return nil
		},
	}
	cmd.Flags().BoolVar(&manual, "manual", false, "queue signals for approval instead of copying")
	return cmd
}

func newUnfollowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow EXPERT",
		Short: "Pause following an expert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			sub, err := svc.Unfollow(cmd.Context(), app.user(cmd), args[0])
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(sub)
			}
			out.Success("Stopped following %s", svc.Catalog().Name(sub.ExpertID))
			return nil
		},
	}
}

func newSettingsCmd(app *App) *cobra.Command {
	var (
		tradePct   float64
		stopLoss   float64
		takeProfit float64
		buyOnly    bool
		sellOnly   bool
		hoursOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "settings EXPERT",
		Short: "Show or change copy settings for a followed expert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			user := app.user(cmd)
			b, err := svc.State(cmd.Context(), user)
			if err != nil {
				return err
			}
			sub, ok := b.Subscriptions.Get(args[0])
			if !ok {
				return fmt.Errorf("not following %s", args[0])
			}

			flags := cmd.Flags()
			if anyChanged(cmd, "trade-pct", "stop-loss", "take-profit", "buy-only", "sell-only", "hours-only") {
				s := sub.Settings
				if flags.Changed("trade-pct") {
					s.TradePercentage = tradePct
				}
				if flags.Changed("stop-loss") {
					s.StopLossPercentage = stopLoss
				}
				if flags.Changed("take-profit") {
					s.TakeProfitPercentage = takeProfit
				}
				if flags.Changed("buy-only") {
					s.AllowBuyOnly = buyOnly
				}
				if flags.Changed("sell-only") {
					s.AllowSellOnly = sellOnly
				}
				if flags.Changed("hours-only") {
					s.TradingHoursOnly = hoursOnly
				}
				sub, err = svc.UpdateSettings(cmd.Context(), user, args[0], s)
				if err != nil {
					return err
				}
			}

			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(sub)
			}
			s := sub.Settings
			out.Heading("Copy settings: " + svc.Catalog().Name(sub.ExpertID))
			out.Printf("  Trade size:      %.0f%%\n", s.TradePercentage)
			out.Printf("  Stop loss:       %.1f%%\n", s.StopLossPercentage)
			out.Printf("  Take profit:     %.1f%%\n", s.TakeProfitPercentage)
			out.Printf("  Buy only:        %v\n", s.AllowBuyOnly)
			out.Printf("  Sell only:       %v\n", s.AllowSellOnly)
			out.Printf("  Trading hours:   %v\n", s.TradingHoursOnly)
			return nil
		},
	}
	cmd.Flags().Float64Var(&tradePct, "trade-pct", 100, "percentage of each signal to copy (0-100)")
	cmd.Flags().Float64Var(&stopLoss, "stop-loss", 10, "stop loss percentage")
	cmd.Flags().Float64Var(&takeProfit, "take-profit", 20, "take profit percentage")
	cmd.Flags().BoolVar(&buyOnly, "buy-only", false, "copy only buys")
	cmd.Flags().BoolVar(&sellOnly, "sell-only", false, "copy only sells")
	cmd.Flags().BoolVar(&hoursOnly, "hours-only", false, "copy only during trading hours")
	return cmd
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func newAutoCopyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "autocopy EXPERT on|off",
		Short:     "Switch between auto-copy and manual approval",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch strings.ToLower(args[1]) {
			case "on", "true", "auto":
				on = true
			case "off", "false", "manual":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			sub, err := svc.SetAutoCopy(cmd.Context(), app.user(cmd), args[0], on)
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(sub)
			}
			if sub.AutoCopy {
				out.Success("Auto-copy enabled for %s", svc.Catalog().Name(sub.ExpertID))
			} else {
				out.Success("Signals from %s will wait for approval", svc.Catalog().Name(sub.ExpertID))
			}
			return nil
		},
	}
}

func newSignalCmd(app *App) *cobra.Command {
	var (
		reason string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "signal EXPERT buy|sell SYMBOL QUANTITY PRICE",
		Short: "Inject an expert signal",
		Long: `Inject one expert signal. By default it is routed for the current user only;
with --all it is routed for every user that has state in the store.`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := models.ParseTradeAction(args[1])
			if err != nil {
				return err
			}
			qty, err := parseDecimal("quantity", args[3])
			if err != nil {
				return err
			}
			price, err := parseDecimal("price", args[4])
			if err != nil {
				return err
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			sig := models.CopySignal{
				ExpertID:  args[0],
				Symbol:    args[2],
				Action:    action,
				Price:     price,
				Quantity:  qty,
				Timestamp: time.Now().UTC(),
				Reason:    reason,
			}

			var results []outcomeRow
			if all {
				outcomes, err := svc.HandleSignal(cmd.Context(), sig)
				if err != nil {
					return err
				}
				for _, o := range outcomes {
					results = append(results, outcomeRow{User: o.UserID, Outcome: o.Result})
				}
			} else {
				user := app.user(cmd)
				o, err := svc.RouteForUser(cmd.Context(), user, sig)
				if err != nil {
					return err
				}
				results = append(results, outcomeRow{User: user, Outcome: o})
			}

			out := NewOutput(cmd)
			if out.IsJSON() {
				if results == nil {
					results = []outcomeRow{}
				}
				return out.JSON(results)
			}
			for _, r := range results {
				printOutcome(out, r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "expert's rationale")
	cmd.Flags().BoolVar(&all, "all", false, "route for every known user")
	return cmd
}

type outcomeRow struct {
	User    string            `json:"user"`
	Outcome copytrade.Outcome `json:"outcome"`
}

func printOutcome(out *Output, r outcomeRow) {
	o := r.Outcome
	switch o.Status {
	case copytrade.StatusExecuted:
		t := o.Transaction
		out.Success("%s: copied %s %s %s @ %s", r.User, strings.ToUpper(string(t.Type)), t.Shares, t.Symbol, out.Money(t.Price))
	case copytrade.StatusPending:
		out.Info("%s: queued %s for approval (%s)", r.User, o.Pending.Symbol, o.Pending.ID)
	default:
		msg := string(o.Reason)
		if o.Err != nil {
			msg = o.Err.Error()
		}
		out.Warning("%s: dropped: %s", r.User, msg)
	}
}

func newNotificationsCmd(app *App) *cobra.Command {
	var (
		unread   bool
		markRead bool
	)
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "Show your notification inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			user := app.user(cmd)
			list, err := svc.Notifications(cmd.Context(), user)
			if err != nil {
				return err
			}
			if unread {
				filtered := make([]models.Notification, 0, len(list))
				for _, n := range list {
					if !n.Read {
						filtered = append(filtered, n)
					}
				}
				list = filtered
			}

			out := NewOutput(cmd)
			if out.IsJSON() {
				if err := out.JSON(list); err != nil {
					return err
				}
			} else if len(list) == 0 {
				out.Dim("No notifications")
			} else {
				out.Heading(fmt.Sprintf("Notifications (%d unread)", notify.Unread(list)))
				for _, n := range list {
					marker := " "
					if !n.Read {
						marker = "*"
					}
					out.Printf("%s %s  %s\n", marker, n.Timestamp.Local().Format("Jan 02 15:04"), n.Title)
					out.Dim("    %s", n.Message)
				}
			}

			if markRead {
				if _, err := svc.MarkNotificationsRead(cmd.Context(), user); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark all as read after listing")
	return cmd
}

package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"copytrader/internal/models"
	"copytrader/internal/pending"
)

func addPendingCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Manage trades waiting for approval",
	}
	cmd.AddCommand(newPendingListCmd(app))
	cmd.AddCommand(newPendingApproveCmd(app))
	cmd.AddCommand(newPendingRejectCmd(app))
	cmd.AddCommand(newPendingRejectAllCmd(app))
	cmd.AddCommand(newPendingReviewCmd(app))
	rootCmd.AddCommand(cmd)
}

func newPendingListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending trades, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			b, err := svc.State(cmd.Context(), app.user(cmd))
			if err != nil {
				return err
			}
			trades := b.Pending.All()
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(trades)
			}
			if len(trades) == 0 {
				out.Dim("No pending trades")
				return nil
			}
			t := NewTable(out, "ID", "EXPERT", "SIDE", "SYMBOL", "SHARES", "PRICE", "COST", "REASON")
			for _, pt := range trades {
				t.AddRow(
					pt.ID,
					firstNonEmpty(pt.ExpertName, pt.ExpertID),
					strings.ToUpper(string(pt.Action)),
					pt.Symbol,
					pt.Shares.String(),
					out.Money(pt.Price),
					out.Money(pt.Shares.Mul(pt.Price)),
					pt.Reason,
				)
			}
			t.Render()
			return nil
		},
	}
}

func optionalDecimal(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := parseDecimal(name, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func newPendingApproveCmd(app *App) *cobra.Command {
	var shares, stopLoss, takeProfit string
	cmd := &cobra.Command{
		Use:   "approve ID",
		Short: "Execute a pending trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				review pending.Review
				err    error
			)
			if review.Shares, err = optionalDecimal("shares", shares); err != nil {
				return err
			}
			if review.StopLoss, err = optionalDecimal("stop-loss", stopLoss); err != nil {
				return err
			}
			if review.TakeProfit, err = optionalDecimal("take-profit", takeProfit); err != nil {
				return err
			}
			txn, err := approve(cmd, app, args[0], review)
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
	cmd.Flags().StringVar(&shares, "shares", "", "override the quantity")
	cmd.Flags().StringVar(&stopLoss, "stop-loss", "", "stop loss price to record")
	cmd.Flags().StringVar(&takeProfit, "take-profit", "", "take profit price to record")
	return cmd
}

func approve(cmd *cobra.Command, app *App, id string, review pending.Review) (models.Transaction, error) {
	svc, err := app.Service()
	if err != nil {
		return models.Transaction{}, err
	}
	return svc.Approve(cmd.Context(), app.user(cmd), id, review)
}

func newPendingRejectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reject ID",
		Short: "Discard a pending trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service()
			if err != nil {
				return err
			}
			pt, err := svc.Reject(cmd.Context(), app.user(cmd), args[0])
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(pt)
			}
			out.Success("Rejected %s %s %s", strings.ToUpper(string(pt.Action)), pt.Shares, pt.Symbol)
			return nil
		},
	}
}

func newPendingRejectAllCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reject-all",
		Short: "Discard every pending trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm("Reject every pending trade?")
				if err != nil || !ok {
					return err
				}
			}
			svc, err := app.Service()
			if err != nil {
				return err
			}
			n, err := svc.RejectAll(cmd.Context(), app.user(cmd))
			if err != nil {
				return err
			}
			out := NewOutput(cmd)
			if out.IsJSON() {
				return out.JSON(map[string]int{"rejected": n})
			}
			out.Success("Rejected %d pending trade(s)", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

// reviewTally counts the decisions made in one review session.
type reviewTally struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func newPendingReviewCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Step through pending trades interactively",
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
			out := NewOutput(cmd)
			trades := b.Pending.All()
			if len(trades) == 0 {
				out.Dim("No pending trades")
				return nil
			}

			var tally reviewTally
		review:
			for i, pt := range trades {
				out.Box(fmt.Sprintf("Pending %d of %d", i+1, len(trades)), []string{
					fmt.Sprintf("%s wants to %s %s %s @ %s",
						firstNonEmpty(pt.ExpertName, pt.ExpertID), pt.Action, pt.Shares, pt.Symbol, out.Money(pt.Price)),
					fmt.Sprintf("Cost: %s", out.Money(pt.Shares.Mul(pt.Price))),
					pt.Reason,
				})
				choice, err := prompts.Choose("Decision", []string{choiceApprove, choiceAdjust, choiceReject, choiceSkip, choiceStop})
				if err != nil {
					return err
				}

				switch choice {
				case choiceApprove, choiceAdjust:
					var r pending.Review
					if choice == choiceAdjust {
						if r, err = askReview(pt); err != nil {
							return err
						}
					}
					txn, err := svc.Approve(cmd.Context(), user, pt.ID, r)
					if err != nil {
						tally.Failed++
						out.Error("Could not approve: %v", err)
						continue
					}
					tally.Approved++
					printTransaction(out, txn)
				case choiceReject:
					if _, err := svc.Reject(cmd.Context(), user, pt.ID); err != nil {
						return err
					}
					tally.Rejected++
					out.Warning("Rejected %s", pt.Symbol)
				case choiceSkip:
					tally.Skipped++
				default:
					tally.Skipped += len(trades) - i
					break review
				}
			}

			if out.IsJSON() {
				return out.JSON(tally)
			}
			out.Println()
			out.Info("Approved %d, rejected %d, skipped %d, failed %d",
				tally.Approved, tally.Rejected, tally.Skipped, tally.Failed)
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shopspring/decimal"

	"copytrader/internal/models"
	"copytrader/internal/pending"
)

// Review choices offered for each pending trade.
const (
	choiceApprove = "Approve"
	choiceAdjust  = "Approve with changes"
	choiceReject  = "Reject"
	choiceSkip    = "Skip"
	choiceStop    = "Stop reviewing"
)

// prompter asks the questions behind interactive commands. Tests replace it.
type prompter interface {
	Confirm(message string) (bool, error)
	Choose(message string, options []string) (string, error)
	Decimal(message string, def decimal.Decimal, allowEmpty bool) (*decimal.Decimal, error)
}

type surveyPrompter struct{}

var prompts prompter = surveyPrompter{}

func confirm(message string) (bool, error) {
	return prompts.Confirm(message)
}

func (surveyPrompter) Confirm(message string) (bool, error) {
	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

func (surveyPrompter) Choose(message string, options []string) (string, error) {
	var choice string
	err := survey.AskOne(&survey.Select{
		Message: message,
		Options: options,
		Default: options[0],
	}, &choice)
	return choice, err
}

func (surveyPrompter) Decimal(message string, def decimal.Decimal, allowEmpty bool) (*decimal.Decimal, error) {
	var raw string
	p := &survey.Input{Message: message}
	if !def.IsZero() {
		p.Default = def.String()
	}
	err := survey.AskOne(p, &raw, survey.WithValidator(func(val interface{}) error {
		s, _ := val.(string)
		if s == "" && allowEmpty {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("enter a number")
		}
		if !d.IsPositive() {
			return fmt.Errorf("must be positive")
		}
		return nil
	}))
	if err != nil || raw == "" {
		return nil, err
	}
	d := decimal.RequireFromString(raw)
	return &d, nil
}

// askReview walks the user through adjusting a pending trade before approval.
func askReview(pt models.PendingTrade) (pending.Review, error) {
	var r pending.Review
	shares, err := prompts.Decimal("Shares", pt.Shares, false)
	if err != nil {
		return r, err
	}
	r.Shares = shares
	if r.StopLoss, err = prompts.Decimal("Stop loss price (optional)", decimal.Zero, true); err != nil {
		return r, err
	}
	if r.TakeProfit, err = prompts.Decimal("Take profit price (optional)", decimal.Zero, true); err != nil {
		return r, err
	}
	return r, nil
}

package notify

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"copytrader/internal/models"
)

// TerminalChannel prints notifications to a terminal.
type TerminalChannel struct {
	out  io.Writer
	mu   sync.Mutex
	bell bool
}

// NewTerminalChannel writes to out, or stdout when out is nil.
func NewTerminalChannel(out io.Writer) *TerminalChannel {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalChannel{out: out}
}

// SetBellEnabled enables the terminal bell for pending trades.
func (tc *TerminalChannel) SetBellEnabled(enabled bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.bell = enabled
}

// Name returns the name of the channel.
func (tc *TerminalChannel) Name() string { return "terminal" }

// IsEnabled always reports true.
func (tc *TerminalChannel) IsEnabled() bool { return true }

// Send prints one line per notification.
func (tc *TerminalChannel) Send(_ context.Context, userID string, n models.Notification) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var c *color.Color
	icon := "ℹ️"
	switch n.Type {
	case models.NotificationTrade:
		c, icon = color.New(color.FgGreen, color.Bold), "✓"
	case models.NotificationPending:
		c, icon = color.New(color.FgYellow, color.Bold), "⏳"
	case models.NotificationWarning:
		c, icon = color.New(color.FgRed, color.Bold), "⚠️"
	default:
		c = color.New(color.FgCyan)
	}

	if tc.bell && n.Type == models.NotificationPending {
		io.WriteString(tc.out, "\a")
	}
	ts := n.Timestamp.Format("15:04:05")
	if _, err := c.Fprintf(tc.out, "%s [%s] %s %s", icon, ts, userID, n.Title); err != nil {
		return err
	}
	_, err := color.New(color.Faint).Fprintf(tc.out, "  %s\n", n.Message)
	return err
}

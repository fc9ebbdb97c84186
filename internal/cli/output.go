package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"copytrader/pkg/utils"
)

var (
	headingStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates an Output for cmd, honoring the --json flag.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(cmd.OutOrStdout()),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// IsJSON reports whether JSON output was requested.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes data as indented JSON.
func (o *Output) JSON(data any) error {
	enc := json.NewEncoder(o.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// YAML writes data as YAML.
func (o *Output) YAML(data any) error {
	enc := yaml.NewEncoder(o.writer)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// Println prints a line.
func (o *Output) Println(args ...any) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a green line.
func (o *Output) Success(format string, args ...any) {
	o.line(color.FgGreen, format, args...)
}

// Error prints a red line.
func (o *Output) Error(format string, args ...any) {
	o.line(color.FgRed, format, args...)
}

// Warning prints a yellow line.
func (o *Output) Warning(format string, args ...any) {
	o.line(color.FgYellow, format, args...)
}

// Info prints a cyan line.
func (o *Output) Info(format string, args ...any) {
	o.line(color.FgCyan, format, args...)
}

// Dim prints a faint line.
func (o *Output) Dim(format string, args ...any) {
	o.line(color.Faint, format, args...)
}

func (o *Output) line(attr color.Attribute, format string, args ...any) {
	fmt.Fprintln(o.writer, o.paint(attr, fmt.Sprintf(format, args...)))
}

func (o *Output) paint(attr color.Attribute, s string) string {
	if !o.colorEnabled {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

// Heading prints a section title.
func (o *Output) Heading(title string) {
	if o.colorEnabled {
		fmt.Fprintln(o.writer, headingStyle.Render(title))
		return
	}
	fmt.Fprintln(o.writer, title)
}

// Box prints lines inside a rounded border.
func (o *Output) Box(title string, lines []string) {
	body := strings.Join(append([]string{title, ""}, lines...), "\n")
	if o.colorEnabled {
		fmt.Fprintln(o.writer, boxStyle.Render(body))
		return
	}
	fmt.Fprintln(o.writer, body)
}

// Money formats an amount in the display currency.
func (o *Output) Money(d decimal.Decimal) string {
	return utils.FormatMoney(d)
}

// PnL formats a signed amount, green when positive and red when negative.
func (o *Output) PnL(d decimal.Decimal) string {
	return o.signed(d, utils.FormatPnL(d))
}

// Percent formats a signed percentage with the same coloring as PnL.
func (o *Output) Percent(d decimal.Decimal) string {
	return o.signed(d, utils.FormatPercent(d))
}

func (o *Output) signed(d decimal.Decimal, s string) string {
	switch d.Sign() {
	case 1:
		return o.paint(color.FgGreen, s)
	case -1:
		return o.paint(color.FgRed, s)
	default:
		return s
	}
}

// Table is a simple aligned table.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a table with the given headers.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	t.output.Println(t.output.paint(color.Faint, strings.Join(seps, "  ")))
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, header bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		pad := widths[i] - lipgloss.Width(cell)
		if pad < 0 {
			pad = 0
		}
		padded := cell + strings.Repeat(" ", pad)
		if header {
			padded = t.output.paint(color.Bold, padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

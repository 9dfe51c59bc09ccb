package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vaultbot/internal/core"
)

// Direction of a change between two periods.
type Direction int

const (
	Unchanged Direction = iota
	Up
	Down
)

// Glyph is the emoji shown in front of a compared amount.
func (d Direction) Glyph() string {
	switch d {
	case Up:
		return "🔼"
	case Down:
		return "🔽"
	default:
		return "⏹"
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unchanged"
	}
}

// Mode selects how a delta is rendered.
type Mode string

const (
	ModeAbsolute Mode = "absolute"
	ModePercent  Mode = "percent"
)

var ErrUnknownMode = errors.New("unknown diff mode")

// ParseMode parses a DIFF_MODE value. Empty means absolute.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAbsolute:
		return ModeAbsolute, nil
	case ModePercent:
		return ModePercent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Change compares one amount against the previous period.
type Change struct {
	Currency    string
	Current     float64
	Previous    float64
	HasPrevious bool
	Delta       float64
	Percent     float64
	Direction   Direction
}

// Comparison is the diffed view of two summaries.
type Comparison struct {
	ByCurrency  []Change
	Equivalence Change
}

// Compare diffs current against previous. previous may be nil. A currency
// whose previous total is missing or zero is not compared; the equivalence
// is compared whenever there is a previous summary, even from zero.
func Compare(current core.Summary, previous *core.Summary) Comparison {
	var cmp Comparison
	for _, e := range current.ByCurrency.Entries() {
		var old float64
		if previous != nil {
			old, _ = previous.ByCurrency.Get(e.Currency)
		}
		cmp.ByCurrency = append(cmp.ByCurrency, newChange(e.Currency, e.Amount, old, old != 0))
	}

	eq := current.Equivalence
	if previous == nil {
		cmp.Equivalence = newChange(eq.Currency, eq.Amount, 0, false)
	} else {
		cmp.Equivalence = newChange(eq.Currency, eq.Amount, previous.Equivalence.Amount, true)
	}
	return cmp
}

// newChange compares amount with old when comparable is set. Percent stays
// zero when old is zero.
func newChange(cur string, amount, old float64, comparable bool) Change {
	c := Change{Currency: cur, Current: amount}
	if !comparable {
		return c
	}
	c.HasPrevious = true
	c.Previous = old
	c.Delta = amount - old
	if old != 0 {
		c.Percent = c.Delta / old * 100
	}
	switch {
	case amount > old:
		c.Direction = Up
	case amount < old:
		c.Direction = Down
	default:
		c.Direction = Unchanged
	}
	return c
}

// Labels hold the user facing templates. Each receives the currency code
// through a single %s verb.
type Labels struct {
	Currency    string
	Equivalence string
}

// DefaultLabels are the English templates used by the bot.
var DefaultLabels = Labels{
	Currency:    "Total in %s",
	Equivalence: "Equivalent in %s",
}

// FormatDiff renders one line per currency of current followed by a blank
// line and the equivalence line. Amounts with a previous value read
// "glyph label: amount (old, delta)", the others "label: amount".
func FormatDiff(current core.Summary, previous *core.Summary, mode Mode, labels Labels) string {
	cmp := Compare(current, previous)

	var b strings.Builder
	for _, c := range cmp.ByCurrency {
		b.WriteString(formatChange(c, fmt.Sprintf(labels.Currency, c.Currency), mode))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(formatChange(cmp.Equivalence, fmt.Sprintf(labels.Equivalence, cmp.Equivalence.Currency), mode))
	return b.String()
}

func formatChange(c Change, label string, mode Mode) string {
	if !c.HasPrevious {
		return fmt.Sprintf("%s: %s", label, FormatAmount(c.Current))
	}
	return fmt.Sprintf("%s %s: %s (%s, %s)",
		c.Direction.Glyph(), label, FormatAmount(c.Current), FormatAmount(c.Previous), formatDelta(c, mode))
}

// FormatAmount renders amount with two decimals.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// formatDelta falls back to the absolute delta in percent mode when the
// previous amount is zero.
func formatDelta(c Change, mode Mode) string {
	v, suffix := c.Delta, ""
	if mode == ModePercent && c.Previous != 0 {
		v, suffix = c.Percent, "%"
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsZero() {
		return "0.00" + suffix
	}
	s := d.StringFixed(2) + suffix
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}

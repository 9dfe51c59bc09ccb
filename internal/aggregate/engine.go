// Package aggregate turns per-vault submissions into currency grouped
// summaries, normalizes them into one equivalence currency and compares
// consecutive periods.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"vaultbot/internal/core"
)

// PeriodSource lists the reporting periods with their submissions.
type PeriodSource interface {
	// ListPeriods returns every period ordered by creation time ascending.
	ListPeriods(ctx context.Context) ([]core.Period, error)
	Period(ctx context.Context, id string) (core.Period, error)
}

// VaultCounter reports how many vaults are active across all owners.
type VaultCounter interface {
	ActiveVaultCount(ctx context.Context) (int, error)
}

// Converter converts amount from one currency into another.
type Converter interface {
	Convert(ctx context.Context, from string, amount float64, to string) (float64, error)
}

// Summarize groups the submissions of p by currency and converts every
// non-equivalence currency exactly once. It returns nil for a period with
// no submissions. Any conversion failure fails the whole summary.
func Summarize(ctx context.Context, p core.Period, equivalence string, conv Converter, parallel bool) (*core.Summary, error) {
	if p.IsEmpty() {
		return nil, nil
	}

	var totals core.Totals
	for _, s := range p.Submissions {
		totals.Add(s.Currency, s.Amount)
	}

	currencies := totals.Currencies()
	converted := make([]float64, len(currencies))

	convertOne := func(ctx context.Context, i int) error {
		cur := currencies[i]
		amount, _ := totals.Get(cur)
		if cur == equivalence {
			converted[i] = amount
			return nil
		}
		v, err := conv.Convert(ctx, cur, amount, equivalence)
		if err != nil {
			return fmt.Errorf("convert %s to %s: %w", cur, equivalence, err)
		}
		converted[i] = v
		return nil
	}

	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range currencies {
			i := i
			g.Go(func() error { return convertOne(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range currencies {
			if err := convertOne(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	// Sum in first-seen order so both modes produce identical floats.
	var eq float64
	for _, v := range converted {
		eq += v
	}

	return &core.Summary{
		PeriodID:    p.ID,
		Date:        p.CreatedAt,
		ByCurrency:  totals,
		Equivalence: core.CurrencyAmount{Currency: equivalence, Amount: eq},
	}, nil
}

// Engine computes summaries over the periods of a PeriodSource.
type Engine struct {
	periods  PeriodSource
	vaults   VaultCounter
	conv     Converter
	parallel bool
}

// NewEngine wires the engine to its collaborators. With parallel set the
// conversions of one summary run concurrently; conv must then be safe for
// concurrent use.
func NewEngine(periods PeriodSource, vaults VaultCounter, conv Converter, parallel bool) *Engine {
	return &Engine{periods: periods, vaults: vaults, conv: conv, parallel: parallel}
}

// SummarizePeriod summarizes the period with the given id.
func (e *Engine) SummarizePeriod(ctx context.Context, periodID, equivalence string) (*core.Summary, error) {
	p, err := e.periods.Period(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("load period %s: %w", periodID, err)
	}
	return Summarize(ctx, p, equivalence, e.conv, e.parallel)
}

// LatestSummary summarizes the most recent period, nil if there is none.
func (e *Engine) LatestSummary(ctx context.Context, equivalence string) (*core.Summary, error) {
	return e.summaryFromEnd(ctx, equivalence, 0)
}

// PreviousSummary summarizes the second most recent period. It returns nil
// when fewer than two periods exist.
func (e *Engine) PreviousSummary(ctx context.Context, equivalence string) (*core.Summary, error) {
	return e.summaryFromEnd(ctx, equivalence, 1)
}

func (e *Engine) summaryFromEnd(ctx context.Context, equivalence string, offset int) (*core.Summary, error) {
	periods, err := e.sortedPeriods(ctx)
	if err != nil {
		return nil, err
	}
	if len(periods) <= offset {
		return nil, nil
	}
	return Summarize(ctx, periods[len(periods)-1-offset], equivalence, e.conv, e.parallel)
}

// IsPeriodComplete reports whether every active vault submitted a value
// for the period.
func (e *Engine) IsPeriodComplete(ctx context.Context, periodID string) (bool, error) {
	p, err := e.periods.Period(ctx, periodID)
	if err != nil {
		return false, fmt.Errorf("load period %s: %w", periodID, err)
	}
	active, err := e.vaults.ActiveVaultCount(ctx)
	if err != nil {
		return false, fmt.Errorf("count active vaults: %w", err)
	}
	submitted := len(p.VaultIDs())
	slog.DebugContext(ctx, "Period completeness checked",
		"period", p.Key, "submitted", submitted, "active", active)
	return submitted == active, nil
}

// TimeSeries builds the chart data over every period in ascending order.
// The EQUIVALENCE series comes first, followed by each currency in the
// order it was first observed; a currency missing from a period counts 0.
// Periods without submissions contribute no data point.
func (e *Engine) TimeSeries(ctx context.Context, equivalence string) (core.TimeSeries, error) {
	periods, err := e.sortedPeriods(ctx)
	if err != nil {
		return core.TimeSeries{}, err
	}

	var (
		summaries []*core.Summary
		keys      []string
		seen      = make(map[string]bool)
	)
	for _, p := range periods {
		s, err := Summarize(ctx, p, equivalence, e.conv, e.parallel)
		if err != nil {
			return core.TimeSeries{}, fmt.Errorf("summarize period %s: %w", p.Key, err)
		}
		if s == nil {
			continue
		}
		summaries = append(summaries, s)
		for _, cur := range s.ByCurrency.Currencies() {
			if !seen[cur] {
				seen[cur] = true
				keys = append(keys, cur)
			}
		}
	}

	ts := core.TimeSeries{
		Dates:  make([]time.Time, len(summaries)),
		Series: make([]core.Series, 0, len(keys)+1),
	}
	eq := core.Series{Key: core.EquivalenceSeries, Amounts: make([]float64, len(summaries))}
	for i, s := range summaries {
		ts.Dates[i] = s.Date
		eq.Amounts[i] = s.Equivalence.Amount
	}
	ts.Series = append(ts.Series, eq)

	for _, cur := range keys {
		series := core.Series{Key: cur, Amounts: make([]float64, len(summaries))}
		for i, s := range summaries {
			series.Amounts[i], _ = s.ByCurrency.Get(cur)
		}
		ts.Series = append(ts.Series, series)
	}
	return ts, nil
}

func (e *Engine) sortedPeriods(ctx context.Context) ([]core.Period, error) {
	periods, err := e.periods.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].CreatedAt.Before(periods[j].CreatedAt)
	})
	return periods, nil
}

package aggregate

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"vaultbot/internal/core"
)

type fakeSource struct {
	periods []core.Period
}

func (f *fakeSource) ListPeriods(context.Context) ([]core.Period, error) {
	return append([]core.Period(nil), f.periods...), nil
}

func (f *fakeSource) Period(_ context.Context, id string) (core.Period, error) {
	for _, p := range f.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Period{}, core.ErrPeriodNotFound
}

type fakeCounter int

func (c fakeCounter) ActiveVaultCount(context.Context) (int, error) { return int(c), nil }

type rateConverter struct {
	mu    sync.Mutex
	rates map[string]float64
	calls map[string]int
}

var errNoRate = errors.New("no rate")

func newRates(rates map[string]float64) *rateConverter {
	return &rateConverter{rates: rates, calls: make(map[string]int)}
}

func (r *rateConverter) Convert(_ context.Context, from string, amount float64, to string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[from]++
	rate, ok := r.rates[from+":"+to]
	if !ok {
		return 0, errNoRate
	}
	return amount * rate, nil
}

func day(n int) time.Time {
	return time.Date(2025, time.January, n, 0, 0, 0, 0, time.UTC)
}

func period(id string, created time.Time, subs ...core.Submission) core.Period {
	return core.Period{ID: id, Key: id, CreatedAt: created, Submissions: subs}
}

func sub(vault, cur string, amount float64) core.Submission {
	return core.Submission{VaultID: vault, Currency: cur, Amount: amount}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarize(t *testing.T) {
	p := period("p1", day(1), sub("A", "USD", 100), sub("B", "USD", 50), sub("C", "EUR", 20))

	for _, parallel := range []bool{false, true} {
		conv := newRates(map[string]float64{"EUR:USD": 1.1})
		s, err := Summarize(context.Background(), p, "USD", conv, parallel)
		if err != nil {
			t.Fatalf("parallel=%v: %v", parallel, err)
		}
		if got := s.ByCurrency.Currencies(); !reflect.DeepEqual(got, []string{"USD", "EUR"}) {
			t.Errorf("currencies=%v", got)
		}
		if v, _ := s.ByCurrency.Get("USD"); v != 150 {
			t.Errorf("USD=%v want 150", v)
		}
		if v, _ := s.ByCurrency.Get("EUR"); v != 20 {
			t.Errorf("EUR=%v want 20", v)
		}
		if s.Equivalence.Currency != "USD" || !almostEqual(s.Equivalence.Amount, 172) {
			t.Errorf("equivalence=%+v want USD 172", s.Equivalence)
		}
		if conv.calls["EUR"] != 1 || conv.calls["USD"] != 0 {
			t.Errorf("conversion calls=%v", conv.calls)
		}
		if !s.Date.Equal(day(1)) || s.PeriodID != "p1" {
			t.Errorf("summary metadata=%v %v", s.PeriodID, s.Date)
		}
	}
}

func TestSummarizeEmptyPeriod(t *testing.T) {
	s, err := Summarize(context.Background(), period("p", day(1)), "USD", newRates(nil), false)
	if err != nil || s != nil {
		t.Fatalf("expected nil summary, got %v err=%v", s, err)
	}
}

func TestSummarizeConversionFailureFailsWhole(t *testing.T) {
	p := period("p", day(1), sub("A", "EUR", 10), sub("B", "GBP", 5))
	conv := newRates(map[string]float64{"EUR:USD": 1.1})

	for _, parallel := range []bool{false, true} {
		s, err := Summarize(context.Background(), p, "USD", conv, parallel)
		if !errors.Is(err, errNoRate) {
			t.Fatalf("parallel=%v: expected errNoRate, got %v", parallel, err)
		}
		if s != nil {
			t.Fatalf("parallel=%v: partial summary returned", parallel)
		}
	}
}

func TestEngineLatestAndPrevious(t *testing.T) {
	src := &fakeSource{periods: []core.Period{
		period("p2", day(2), sub("A", "USD", 150)),
		period("p1", day(1), sub("A", "USD", 100)),
	}}
	e := NewEngine(src, fakeCounter(1), newRates(nil), false)
	ctx := context.Background()

	latest, err := e.LatestSummary(ctx, "USD")
	if err != nil || latest.PeriodID != "p2" {
		t.Fatalf("latest=%+v err=%v", latest, err)
	}
	prev, err := e.PreviousSummary(ctx, "USD")
	if err != nil || prev.PeriodID != "p1" {
		t.Fatalf("previous=%+v err=%v", prev, err)
	}
}

func TestEnginePreviousNeedsTwoPeriods(t *testing.T) {
	ctx := context.Background()
	for _, periods := range [][]core.Period{nil, {period("p1", day(1), sub("A", "USD", 1))}} {
		e := NewEngine(&fakeSource{periods: periods}, fakeCounter(1), newRates(nil), false)
		prev, err := e.PreviousSummary(ctx, "USD")
		if err != nil || prev != nil {
			t.Fatalf("periods=%d: previous=%v err=%v", len(periods), prev, err)
		}
	}
}

func TestEngineSummarizePeriodNotFound(t *testing.T) {
	e := NewEngine(&fakeSource{}, fakeCounter(0), newRates(nil), false)
	if _, err := e.SummarizePeriod(context.Background(), "missing", "USD"); !errors.Is(err, core.ErrPeriodNotFound) {
		t.Fatalf("expected ErrPeriodNotFound, got %v", err)
	}
}

func TestIsPeriodComplete(t *testing.T) {
	p := period("p", day(1),
		sub("A", "USD", 1), sub("B", "USD", 2), sub("C", "EUR", 3), sub("C", "EUR", 3))
	src := &fakeSource{periods: []core.Period{p}}
	ctx := context.Background()

	tests := []struct {
		active int
		want   bool
	}{
		{active: 4, want: false},
		{active: 3, want: true},
	}
	for _, tt := range tests {
		e := NewEngine(src, fakeCounter(tt.active), newRates(nil), false)
		got, err := e.IsPeriodComplete(ctx, "p")
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("active=%d: complete=%v want %v", tt.active, got, tt.want)
		}
	}
}

func TestTimeSeries(t *testing.T) {
	src := &fakeSource{periods: []core.Period{
		period("p1", day(1), sub("A", "USD", 100)),
		period("p2", day(2), sub("A", "USD", 110), sub("B", "GBP", 10)),
		period("p3", day(3), sub("A", "USD", 120)),
	}}
	e := NewEngine(src, fakeCounter(2), newRates(map[string]float64{"GBP:USD": 1.25}), false)

	ts, err := e.TimeSeries(context.Background(), "USD")
	if err != nil {
		t.Fatal(err)
	}
	if len(ts.Dates) != 3 || !ts.Dates[0].Equal(day(1)) || !ts.Dates[2].Equal(day(3)) {
		t.Fatalf("dates=%v", ts.Dates)
	}
	if got := ts.Keys(); !reflect.DeepEqual(got, []string{core.EquivalenceSeries, "USD", "GBP"}) {
		t.Fatalf("keys=%v", got)
	}
	gbp, _ := ts.Amounts("GBP")
	if !reflect.DeepEqual(gbp, []float64{0, 10, 0}) {
		t.Errorf("GBP=%v", gbp)
	}
	eq, _ := ts.Amounts(core.EquivalenceSeries)
	if !reflect.DeepEqual(eq, []float64{100, 122.5, 120}) {
		t.Errorf("EQUIVALENCE=%v", eq)
	}
	for _, s := range ts.Series {
		if len(s.Amounts) != len(ts.Dates) {
			t.Errorf("series %s has %d points for %d dates", s.Key, len(s.Amounts), len(ts.Dates))
		}
	}
}

func TestTimeSeriesSkipsEmptyPeriods(t *testing.T) {
	src := &fakeSource{periods: []core.Period{
		period("p1", day(1), sub("A", "USD", 100)),
		period("p2", day(2)),
	}}
	e := NewEngine(src, fakeCounter(1), newRates(nil), false)
	ts, err := e.TimeSeries(context.Background(), "USD")
	if err != nil {
		t.Fatal(err)
	}
	if len(ts.Dates) != 1 {
		t.Fatalf("dates=%v", ts.Dates)
	}
}

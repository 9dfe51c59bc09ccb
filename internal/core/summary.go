package core

import "time"

// Totals is an insertion-ordered mapping from currency code to amount.
// The zero value is ready to use.
type Totals struct {
	order  []string
	values map[string]float64
}

// Add accumulates amount under currency.
func (t *Totals) Add(currency string, amount float64) {
	if t.values == nil {
		t.values = make(map[string]float64)
	}
	if _, ok := t.values[currency]; !ok {
		t.order = append(t.order, currency)
	}
	t.values[currency] += amount
}

// Get returns the amount for currency and whether it is present.
func (t Totals) Get(currency string) (float64, bool) {
	v, ok := t.values[currency]
	return v, ok
}

// Currencies returns the currency codes in first-seen order.
func (t Totals) Currencies() []string {
	return append([]string(nil), t.order...)
}

func (t Totals) Len() int {
	return len(t.order)
}

// Entries returns the totals as a slice in first-seen order.
func (t Totals) Entries() []CurrencyAmount {
	out := make([]CurrencyAmount, 0, len(t.order))
	for _, c := range t.order {
		out = append(out, CurrencyAmount{Currency: c, Amount: t.values[c]})
	}
	return out
}

// Summary is the aggregate of one period.
type Summary struct {
	PeriodID    string
	Date        time.Time
	ByCurrency  Totals
	Equivalence CurrencyAmount
}

// Series is one line of the historical chart.
type Series struct {
	Key     string
	Amounts []float64
}

// TimeSeries holds parallel arrays for charting: Dates[i] matches
// Series[k].Amounts[i] for every k.
type TimeSeries struct {
	Dates  []time.Time
	Series []Series
}

// Amounts returns the series stored under key.
func (ts TimeSeries) Amounts(key string) ([]float64, bool) {
	for _, s := range ts.Series {
		if s.Key == key {
			return s.Amounts, true
		}
	}
	return nil, false
}

// Keys lists the series keys in display order.
func (ts TimeSeries) Keys() []string {
	keys := make([]string, len(ts.Series))
	for i, s := range ts.Series {
		keys[i] = s.Key
	}
	return keys
}

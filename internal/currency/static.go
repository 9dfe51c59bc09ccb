package currency

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vaultbot/internal/core"
)

// Static converts with a fixed table of pair rates. Inverse pairs are
// derived when only one direction is configured.
type Static struct {
	rates map[string]float64 // "FROM:TO" -> rate
}

// ParseStatic reads a table written as "EUR:USD=1.1,GBP:USD=1.25".
func ParseStatic(pairs string) (*Static, error) {
	s := &Static{rates: make(map[string]float64)}
	for _, item := range strings.Split(pairs, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		pair, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: missing '='", item)
		}
		from, to, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("rate %q: pair must read FROM:TO", item)
		}
		from, err := core.NormalizeCurrency(from)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", item, err)
		}
		to, err = core.NormalizeCurrency(to)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", item, err)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("rate %q: invalid value", item)
		}
		s.Set(from, to, rate)
	}
	return s, nil
}

// Set stores the rate of from into to.
func (s *Static) Set(from, to string, rate float64) {
	if s.rates == nil {
		s.rates = make(map[string]float64)
	}
	s.rates[from+":"+to] = rate
}

// Convert never blocks; ctx is accepted to satisfy the converter contract.
func (s *Static) Convert(_ context.Context, from string, amount float64, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	if rate, ok := s.rates[from+":"+to]; ok {
		return amount * rate, nil
	}
	if rate, ok := s.rates[to+":"+from]; ok {
		return amount / rate, nil
	}
	return 0, fmt.Errorf("%w: %s to %s", ErrRateUnavailable, from, to)
}

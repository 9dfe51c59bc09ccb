package core

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// EquivalenceSeries is the pseudo-currency key under which the normalized
// equivalence totals are exposed in a TimeSeries.
const EquivalenceSeries = "EQUIVALENCE"

type (
	Vault struct {
		ID         string
		OwnerID    int64 // Telegram chat of the owner
		Title      string
		Currency   string
		Active     bool
		LastAmount *float64 // nil when the vault was never reported
	}

	User struct {
		TelegramID int64
		Name       string
	}

	Submission struct {
		VaultID  string
		Currency string
		Amount   float64
	}

	Period struct {
		ID          string
		Key         string // e.g. "2025-07"
		CreatedAt   time.Time
		Submissions []Submission
	}

	CurrencyAmount struct {
		Currency string
		Amount   float64
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrEmptyTitle      = errors.New("empty vault title")
	ErrVaultNotFound   = errors.New("vault not found")
	ErrPeriodNotFound  = errors.New("period not found")
	ErrNoSubmissions   = errors.New("no submissions for vault")
)

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", ErrInvalidCurrency
	}
	return unit.String(), nil
}

func (v Vault) Validate() error {
	if strings.TrimSpace(v.Title) == "" {
		return ErrEmptyTitle
	}
	if len(v.Title) > 100 {
		return errors.New("vault title too long (max 100 characters)")
	}
	if _, err := NormalizeCurrency(v.Currency); err != nil {
		return err
	}
	return nil
}

// VaultIDs returns the distinct vault ids that submitted a value.
func (p Period) VaultIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(p.Submissions))
	for _, s := range p.Submissions {
		ids[s.VaultID] = struct{}{}
	}
	return ids
}

// IsEmpty reports whether nobody submitted anything for the period yet.
func (p Period) IsEmpty() bool {
	return len(p.Submissions) == 0
}

// Package services provides business logic and orchestration services.
//
// This file implements the strategy pattern used by the reminder to decide
// whether the period report prompt is due. Each frequency has its own
// checker.
package services

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is how often recipients are prompted to report their vaults.
type Frequency string

const (
	FrequencyOff     Frequency = "off"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency accepts the REMINDER_FREQUENCY values; empty means off.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FrequencyOff, nil
	}
	if f == FrequencyOff {
		return f, nil
	}
	if _, ok := duenessStrategies[f]; !ok {
		return "", fmt.Errorf("unknown reminder frequency: %s", s)
	}
	return f, nil
}

// DuenessChecker decides whether a reminder is due.
type DuenessChecker interface {
	// IsDue reports whether the reminder should fire at now, given when it
	// last fired and the configured day (weekday for weekly, day of month
	// for monthly).
	IsDue(lastExecution, now time.Time, day int) bool
}

// DailyChecker fires once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, now time.Time, _ int) bool {
	if lastExecution.IsZero() {
		return true
	}
	return !sameDay(lastExecution, now)
}

// WeeklyChecker fires on the configured weekday (0 = Sunday), once.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastExecution, now time.Time, day int) bool {
	if int(now.Weekday()) != ((day%7)+7)%7 {
		return false
	}
	return lastExecution.IsZero() || !sameDay(lastExecution, now)
}

// MonthlyChecker fires once a month, on or after the configured day. Days
// past the end of a short month fall on its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, now time.Time, day int) bool {
	if !lastExecution.IsZero() && lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}

	targetDay := day
	if targetDay < 1 {
		targetDay = 1
	}
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

var duenessStrategies = map[Frequency]DuenessChecker{
	FrequencyDaily:   DailyChecker{},
	FrequencyWeekly:  WeeklyChecker{},
	FrequencyMonthly: MonthlyChecker{},
}

// GetDuenessChecker returns the checker for frequency.
func GetDuenessChecker(frequency Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown reminder frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker of a frequency.
func RegisterDuenessChecker(frequency Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}

package services

import (
	"testing"
	"time"
)

func TestDailyChecker_IsDue(t *testing.T) {
	checker := DailyChecker{}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastExecution time.Time
		want          bool
	}{
		{"never executed - is due", time.Time{}, true},
		{"executed today - not due", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), false},
		{"executed yesterday - is due", time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastExecution, now, 0); got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyChecker_IsDue(t *testing.T) {
	checker := WeeklyChecker{}
	monday := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastExecution time.Time
		now           time.Time
		day           int
		want          bool
	}{
		{"never executed on target weekday - is due", time.Time{}, monday, 1, true},
		{"never executed on other weekday - not due", time.Time{}, monday, 5, false},
		{"already fired today - not due", monday.Add(-2 * time.Hour), monday, 1, false},
		{"fired last week - is due", monday.AddDate(0, 0, -7), monday, 1, true},
		{"day wraps modulo 7", monday.AddDate(0, 0, -7), monday, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastExecution, tt.now, tt.day); got != tt.want {
				t.Errorf("WeeklyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name          string
		lastExecution time.Time
		now           time.Time
		day           int
		want          bool
	}{
		{
			name: "never executed past target day - is due",
			now:  time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			day:  10,
			want: true,
		},
		{
			name: "never executed before target day - not due",
			now:  time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
			day:  10,
			want: false,
		},
		{
			name:          "executed this month - not due",
			lastExecution: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			day:           10,
			want:          false,
		},
		{
			name:          "new month but before target day - not due",
			lastExecution: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC),
			day:           15,
			want:          false,
		},
		{
			name:          "new month and on target day - is due",
			lastExecution: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC),
			day:           15,
			want:          true,
		},
		{
			name:          "target day 31 in February - adjusts to 29",
			lastExecution: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
			now:           time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
			day:           31,
			want:          true,
		},
		{
			name: "day zero means the first",
			now:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			day:  0,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastExecution, tt.now, tt.day); got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDuenessChecker(t *testing.T) {
	tests := []struct {
		frequency Frequency
		wantErr   bool
	}{
		{FrequencyDaily, false},
		{FrequencyWeekly, false},
		{FrequencyMonthly, false},
		{FrequencyOff, true},
		{Frequency("biweekly"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			checker, err := GetDuenessChecker(tt.frequency)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetDuenessChecker() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && checker == nil {
				t.Error("GetDuenessChecker() returned nil checker")
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{"", FrequencyOff, false},
		{"off", FrequencyOff, false},
		{" Monthly ", FrequencyMonthly, false},
		{"weekly", FrequencyWeekly, false},
		{"hourly", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFrequency(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFrequency(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestRegisterDuenessChecker(t *testing.T) {
	custom := Frequency("biweekly")
	RegisterDuenessChecker(custom, WeeklyChecker{})
	defer delete(duenessStrategies, custom)

	checker, err := GetDuenessChecker(custom)
	if err != nil || checker == nil {
		t.Fatalf("GetDuenessChecker() after register = %v, %v", checker, err)
	}
}

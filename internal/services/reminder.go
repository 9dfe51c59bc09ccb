package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vaultbot/internal/sheets"
)

// Notifier sends the "time to report" prompt to one chat.
type Notifier interface {
	NotifyStart(ctx context.Context, chatID int64) error
}

// Reminder prompts every recipient to start the period report when its
// dueness strategy says so.
type Reminder struct {
	recipients sheets.RecipientLister
	notifier   Notifier
	checker    DuenessChecker
	day        int

	mu            sync.Mutex
	lastExecution time.Time
}

func NewReminder(recipients sheets.RecipientLister, notifier Notifier, frequency Frequency, day int) (*Reminder, error) {
	checker, err := GetDuenessChecker(frequency)
	if err != nil {
		return nil, err
	}
	return &Reminder{
		recipients: recipients,
		notifier:   notifier,
		checker:    checker,
		day:        day,
	}, nil
}

// CheckAndNotify prompts all recipients if the reminder is due at now and
// returns how many were reached. A reminder counts as executed once at
// least one chat has been notified, so a transient failure is retried on
// the next check.
func (r *Reminder) CheckAndNotify(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.checker.IsDue(r.lastExecution, now, r.day) {
		return 0, nil
	}

	chats, err := r.recipients.Recipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}

	sent := 0
	for _, chatID := range chats {
		if err := r.notifier.NotifyStart(ctx, chatID); err != nil {
			slog.ErrorContext(ctx, "Failed to send reminder", "chat_id", chatID, "error", err)
			continue
		}
		sent++
	}
	if sent > 0 || len(chats) == 0 {
		r.lastExecution = now
	}

	slog.InfoContext(ctx, "Reminder processed",
		"sent", sent,
		"recipients", len(chats),
		"processing_date", now.Format("2006-01-02"))
	return sent, nil
}

// Run checks the reminder every interval until ctx ends.
func (r *Reminder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := r.CheckAndNotify(ctx, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Initial reminder check failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := r.CheckAndNotify(ctx, now); err != nil {
				slog.ErrorContext(ctx, "Reminder check failed", "error", err)
			}
		}
	}
}

package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"vaultbot/internal/amqp"
	"vaultbot/internal/storage"
)

type (
	// SubmissionStore is the SQLite side of a submission write.
	SubmissionStore interface {
		SaveSubmission(ctx context.Context, periodID, vaultID string, amount float64) (storage.SubmissionRecord, error)
		UpdateLatestAmount(ctx context.Context, vaultID string, amount float64) (storage.SubmissionRecord, error)
	}

	// Publisher announces stored submissions to the sync worker.
	Publisher interface {
		PublishSubmissionSync(ctx context.Context, msg *amqp.SubmissionSyncMessage) error
	}
)

// SubmissionService orchestrates submission writes across SQLite and AMQP.
// SQLite is the source of truth; a failed publish leaves the row pending
// and the worker's periodic sweep picks it up.
type SubmissionService struct {
	storage   SubmissionStore
	publisher Publisher
}

// NewSubmissionService wires storage and an optional publisher. Pass a nil
// interface, not a nil *amqp.Client, to run without sync.
func NewSubmissionService(storage SubmissionStore, publisher Publisher) *SubmissionService {
	return &SubmissionService{storage: storage, publisher: publisher}
}

// RecordSubmission saves the amount locally and publishes a sync message.
func (s *SubmissionService) RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error {
	rec, err := s.storage.SaveSubmission(ctx, periodID, vaultID, amount)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	s.publish(ctx, rec)
	return nil
}

// ChangeVaultAmount corrects the latest submission of a vault and publishes
// the new version.
func (s *SubmissionService) ChangeVaultAmount(ctx context.Context, vaultID string, amount float64) error {
	rec, err := s.storage.UpdateLatestAmount(ctx, vaultID, amount)
	if err != nil {
		return fmt.Errorf("update latest amount: %w", err)
	}
	s.publish(ctx, rec)
	return nil
}

func (s *SubmissionService) publish(ctx context.Context, rec storage.SubmissionRecord) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "id", rec.ID)
		return
	}
	msg := amqp.NewSubmissionSyncMessage(rec.ID, rec.Version, rec.PeriodKey, rec.Vault.ID, rec.Amount)
	if err := s.publisher.PublishSubmissionSync(ctx, msg); err != nil {
		// Don't fail the request: the row is saved and stays pending.
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", rec.ID, "version", rec.Version, "error", err)
	}
}

// Close closes storage and publisher when they hold resources.
func (s *SubmissionService) Close() error {
	var errs []error

	if c, ok := s.storage.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close submission service: %v", errs)
	}
	return nil
}

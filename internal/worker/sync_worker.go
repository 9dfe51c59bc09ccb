package worker

import (
	"context"
	"fmt"
	"log/slog"

	"vaultbot/internal/amqp"
	"vaultbot/internal/core"
	"vaultbot/internal/storage"
)

type (
	// SubmissionSource is the SQLite side of the sync.
	SubmissionSource interface {
		GetSubmission(ctx context.Context, id int64) (storage.SubmissionRecord, error)
		PendingSubmissions(ctx context.Context, limit int) ([]storage.SubmissionRecord, error)
		MarkSynced(ctx context.Context, id, version int64) error
		MarkSyncError(ctx context.Context, id int64) error
	}

	// Mirror is the spreadsheet the submissions are copied into.
	Mirror interface {
		// UpsertVault writes the vault row under its own id.
		UpsertVault(ctx context.Context, v core.Vault) error
		OpenPeriod(ctx context.Context, key string) (core.Period, error)
		RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error
	}
)

// SyncWorker mirrors SQLite submissions into the spreadsheet.
type SyncWorker struct {
	storage   SubmissionSource
	mirror    Mirror
	batchSize int
}

func NewSyncWorker(storage SubmissionSource, mirror Mirror, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{storage: storage, mirror: mirror, batchSize: batchSize}
}

// HandleSyncMessage processes a single submission sync message from AMQP.
// Messages older than the stored row are acknowledged without work: the
// newer version has its own message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SubmissionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version,
		"period", msg.PeriodKey)

	rec, err := w.storage.GetSubmission(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get submission from storage: %w", err)
	}
	if rec.Version > msg.Version {
		slog.DebugContext(ctx, "Skipping stale sync message",
			"id", msg.ID, "message_version", msg.Version, "stored_version", rec.Version)
		return nil
	}
	if rec.SyncStatus == storage.SyncSynced && rec.Version == msg.Version {
		return nil
	}
	return w.sync(ctx, rec)
}

// ProcessPendingSubmissions mirrors one batch of rows still pending or in
// error. It is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingSubmissions(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch at worker startup to recover from
// downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.PendingSubmissions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending submissions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending submissions", "count", len(pending))

	synced := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.sync(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "Failed to sync submission", "id", rec.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (w *SyncWorker) sync(ctx context.Context, rec storage.SubmissionRecord) error {
	if err := w.mirrorRecord(ctx, rec); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", rec.ID, "error", markErr)
		}
		return err
	}

	if err := w.storage.MarkSynced(ctx, rec.ID, rec.Version); err != nil {
		// The mirror write happened; the next sweep rewrites the same value.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced submission",
		"id", rec.ID,
		"version", rec.Version,
		"period", rec.PeriodKey,
		"vault_id", rec.Vault.ID,
		"amount", rec.Amount)
	return nil
}

func (w *SyncWorker) mirrorRecord(ctx context.Context, rec storage.SubmissionRecord) error {
	if err := w.mirror.UpsertVault(ctx, rec.Vault); err != nil {
		return fmt.Errorf("upsert vault %s: %w", rec.Vault.ID, err)
	}
	period, err := w.mirror.OpenPeriod(ctx, rec.PeriodKey)
	if err != nil {
		return fmt.Errorf("open period %s: %w", rec.PeriodKey, err)
	}
	if err := w.mirror.RecordSubmission(ctx, period.ID, rec.Vault.ID, rec.Amount); err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

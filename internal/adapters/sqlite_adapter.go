package adapters

import (
	"context"

	"vaultbot/internal/services"
	"vaultbot/internal/sheets"
	"vaultbot/internal/storage"
)

var _ sheets.Store = (*SQLiteAdapter)(nil)

// SQLiteAdapter exposes SQLiteRepository as a sheets.Store. Reads and vault
// edits go straight to the repository; submission writes go through the
// SubmissionService so that every stored amount is announced to the sync
// worker.
type SQLiteAdapter struct {
	*storage.SQLiteRepository
	service *services.SubmissionService
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.SubmissionService) *SQLiteAdapter {
	return &SQLiteAdapter{
		SQLiteRepository: storage,
		service:          service,
	}
}

// RecordSubmission implements sheets.SubmissionWriter
func (a *SQLiteAdapter) RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error {
	return a.service.RecordSubmission(ctx, periodID, vaultID, amount)
}

// ChangeVaultAmount implements sheets.VaultEditor
func (a *SQLiteAdapter) ChangeVaultAmount(ctx context.Context, id string, amount float64) error {
	return a.service.ChangeVaultAmount(ctx, id, amount)
}

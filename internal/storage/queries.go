package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds the statements of the repository, one method per query.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type (
	Vault struct {
		ID         int64
		OwnerID    int64
		Title      string
		Currency   string
		Active     bool
		LastAmount sql.NullFloat64
	}

	Period struct {
		ID        int64
		Key       string
		CreatedAt int64
	}

	PeriodSubmission struct {
		VaultID  int64
		Currency string
		Amount   float64
	}

	Submission struct {
		ID              int64
		Amount          float64
		Version         int64
		SyncStatus      string
		UpdatedAt       int64
		PeriodKey       string
		PeriodCreatedAt int64
		Vault           Vault
	}
)

const upsertUser = `
INSERT INTO users (telegram_id, name, created_at) VALUES (?, ?, ?)
ON CONFLICT (telegram_id) DO UPDATE SET
    name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END`

func (q *Queries) UpsertUser(ctx context.Context, telegramID int64, name string, now int64) error {
	_, err := q.db.ExecContext(ctx, upsertUser, telegramID, name, now)
	return err
}

const listActiveOwnerIDs = `
SELECT owner_id FROM vaults WHERE active = 1
GROUP BY owner_id ORDER BY MIN(id)`

func (q *Queries) ListActiveOwnerIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listActiveOwnerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const createVault = `
INSERT INTO vaults (owner_id, title, currency, active, created_at) VALUES (?, ?, ?, 1, ?)`

func (q *Queries) CreateVault(ctx context.Context, ownerID int64, title, currency string, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, createVault, ownerID, title, currency, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// lastAmountColumn selects the vault's amount in the most recent period it
// reported in.
const lastAmountColumn = `
    (SELECT s.amount FROM submissions s JOIN periods p ON p.id = s.period_id
      WHERE s.vault_id = v.id ORDER BY p.created_at DESC, p.id DESC LIMIT 1)`

const listOwnerVaults = `
SELECT v.id, v.owner_id, v.title, v.currency, v.active,` + lastAmountColumn + `
FROM vaults v
WHERE v.owner_id = ? AND (v.active = 1 OR ?)
ORDER BY v.id`

func (q *Queries) ListOwnerVaults(ctx context.Context, ownerID int64, includeInactive bool) ([]Vault, error) {
	rows, err := q.db.QueryContext(ctx, listOwnerVaults, ownerID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Vault
	for rows.Next() {
		var v Vault
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Currency, &v.Active, &v.LastAmount); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const getVault = `
SELECT v.id, v.owner_id, v.title, v.currency, v.active,` + lastAmountColumn + `
FROM vaults v WHERE v.id = ?`

func (q *Queries) GetVault(ctx context.Context, id int64) (Vault, error) {
	var v Vault
	err := q.db.QueryRowContext(ctx, getVault, id).
		Scan(&v.ID, &v.OwnerID, &v.Title, &v.Currency, &v.Active, &v.LastAmount)
	return v, err
}

const countActiveVaults = `SELECT COUNT(*) FROM vaults WHERE active = 1`

func (q *Queries) CountActiveVaults(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countActiveVaults).Scan(&n)
	return n, err
}

const updateVaultTitle = `UPDATE vaults SET title = ? WHERE id = ?`

func (q *Queries) UpdateVaultTitle(ctx context.Context, id int64, title string) (int64, error) {
	return affected(q.db.ExecContext(ctx, updateVaultTitle, title, id))
}

const updateVaultCurrency = `UPDATE vaults SET currency = ? WHERE id = ?`

func (q *Queries) UpdateVaultCurrency(ctx context.Context, id int64, currency string) (int64, error) {
	return affected(q.db.ExecContext(ctx, updateVaultCurrency, currency, id))
}

const updateVaultActive = `UPDATE vaults SET active = ? WHERE id = ?`

func (q *Queries) UpdateVaultActive(ctx context.Context, id int64, active bool) (int64, error) {
	return affected(q.db.ExecContext(ctx, updateVaultActive, active, id))
}

const insertPeriod = `INSERT INTO periods (period_key, created_at) VALUES (?, ?) ON CONFLICT (period_key) DO NOTHING`

func (q *Queries) InsertPeriod(ctx context.Context, key string, now int64) error {
	_, err := q.db.ExecContext(ctx, insertPeriod, key, now)
	return err
}

const getPeriodByKey = `SELECT id, period_key, created_at FROM periods WHERE period_key = ?`

func (q *Queries) GetPeriodByKey(ctx context.Context, key string) (Period, error) {
	var p Period
	err := q.db.QueryRowContext(ctx, getPeriodByKey, key).Scan(&p.ID, &p.Key, &p.CreatedAt)
	return p, err
}

const getPeriod = `SELECT id, period_key, created_at FROM periods WHERE id = ?`

func (q *Queries) GetPeriod(ctx context.Context, id int64) (Period, error) {
	var p Period
	err := q.db.QueryRowContext(ctx, getPeriod, id).Scan(&p.ID, &p.Key, &p.CreatedAt)
	return p, err
}

const listPeriods = `SELECT id, period_key, created_at FROM periods ORDER BY created_at, id`

func (q *Queries) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := q.db.QueryContext(ctx, listPeriods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Key, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const listPeriodSubmissions = `
SELECT s.vault_id, v.currency, s.amount
FROM submissions s JOIN vaults v ON v.id = s.vault_id
WHERE s.period_id = ?
ORDER BY s.id`

func (q *Queries) ListPeriodSubmissions(ctx context.Context, periodID int64) ([]PeriodSubmission, error) {
	rows, err := q.db.QueryContext(ctx, listPeriodSubmissions, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodSubmission
	for rows.Next() {
		var s PeriodSubmission
		if err := rows.Scan(&s.VaultID, &s.Currency, &s.Amount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const upsertSubmission = `
INSERT INTO submissions (period_id, vault_id, amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (period_id, vault_id) DO UPDATE SET
    amount = excluded.amount,
    version = submissions.version + 1,
    sync_status = 'pending',
    updated_at = excluded.updated_at`

func (q *Queries) UpsertSubmission(ctx context.Context, periodID, vaultID int64, amount float64, now int64) error {
	_, err := q.db.ExecContext(ctx, upsertSubmission, periodID, vaultID, amount, now, now)
	return err
}

const getSubmissionID = `SELECT id FROM submissions WHERE period_id = ? AND vault_id = ?`

func (q *Queries) GetSubmissionID(ctx context.Context, periodID, vaultID int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, getSubmissionID, periodID, vaultID).Scan(&id)
	return id, err
}

const latestSubmissionID = `
SELECT s.id FROM submissions s JOIN periods p ON p.id = s.period_id
WHERE s.vault_id = ?
ORDER BY p.created_at DESC, p.id DESC LIMIT 1`

func (q *Queries) LatestSubmissionID(ctx context.Context, vaultID int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, latestSubmissionID, vaultID).Scan(&id)
	return id, err
}

const updateSubmissionAmount = `
UPDATE submissions SET amount = ?, version = version + 1, sync_status = 'pending', updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateSubmissionAmount(ctx context.Context, id int64, amount float64, now int64) error {
	_, err := q.db.ExecContext(ctx, updateSubmissionAmount, amount, now, id)
	return err
}

const submissionColumns = `
SELECT s.id, s.amount, s.version, s.sync_status, s.updated_at, p.period_key, p.created_at,
       v.id, v.owner_id, v.title, v.currency, v.active
FROM submissions s
JOIN periods p ON p.id = s.period_id
JOIN vaults v ON v.id = s.vault_id`

func scanSubmission(sc interface{ Scan(...any) error }) (Submission, error) {
	var s Submission
	err := sc.Scan(&s.ID, &s.Amount, &s.Version, &s.SyncStatus, &s.UpdatedAt, &s.PeriodKey, &s.PeriodCreatedAt,
		&s.Vault.ID, &s.Vault.OwnerID, &s.Vault.Title, &s.Vault.Currency, &s.Vault.Active)
	return s, err
}

func (q *Queries) GetSubmission(ctx context.Context, id int64) (Submission, error) {
	return scanSubmission(q.db.QueryRowContext(ctx, submissionColumns+` WHERE s.id = ?`, id))
}

func (q *Queries) ListPendingSubmissions(ctx context.Context, limit int64) ([]Submission, error) {
	rows, err := q.db.QueryContext(ctx,
		submissionColumns+` WHERE s.sync_status IN ('pending', 'error') ORDER BY s.updated_at, s.id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const markSubmissionSynced = `UPDATE submissions SET sync_status = 'synced' WHERE id = ? AND version = ?`

func (q *Queries) MarkSubmissionSynced(ctx context.Context, id, version int64) (int64, error) {
	return affected(q.db.ExecContext(ctx, markSubmissionSynced, id, version))
}

const markSubmissionSyncError = `UPDATE submissions SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkSubmissionSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markSubmissionSyncError, id)
	return err
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

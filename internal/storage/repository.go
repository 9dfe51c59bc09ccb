package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vaultbot/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a submission row.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// SubmissionRecord is a stored submission together with the data needed to
// mirror it elsewhere.
type SubmissionRecord struct {
	ID              int64
	PeriodKey       string
	PeriodCreatedAt time.Time
	Vault           core.Vault
	Amount          float64
	Version         int64
	SyncStatus      string
	UpdatedAt       time.Time
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SetClock replaces the time source used for created_at columns.
func (r *SQLiteRepository) SetClock(now func() time.Time) {
	r.now = now
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, id)
	}
	return n, nil
}

func toVault(v Vault) core.Vault {
	out := core.Vault{
		ID:       strconv.FormatInt(v.ID, 10),
		OwnerID:  v.OwnerID,
		Title:    v.Title,
		Currency: v.Currency,
		Active:   v.Active,
	}
	if v.LastAmount.Valid {
		amount := v.LastAmount.Float64
		out.LastAmount = &amount
	}
	return out
}

func toPeriod(p Period) core.Period {
	return core.Period{
		ID:        strconv.FormatInt(p.ID, 10),
		Key:       p.Key,
		CreatedAt: time.Unix(0, p.CreatedAt),
	}
}

func toRecord(s Submission) SubmissionRecord {
	return SubmissionRecord{
		ID:              s.ID,
		PeriodKey:       s.PeriodKey,
		PeriodCreatedAt: time.Unix(0, s.PeriodCreatedAt),
		Vault:           toVault(s.Vault),
		Amount:          s.Amount,
		Version:         s.Version,
		SyncStatus:      s.SyncStatus,
		UpdatedAt:       time.Unix(0, s.UpdatedAt),
	}
}

// EnsureUser implements sheets.UserRegistrar
func (r *SQLiteRepository) EnsureUser(ctx context.Context, u core.User) error {
	if err := r.queries.UpsertUser(ctx, u.TelegramID, u.Name, r.now().UnixNano()); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// Recipients implements sheets.RecipientLister: the owners of active vaults.
func (r *SQLiteRepository) Recipients(ctx context.Context) ([]int64, error) {
	ids, err := r.queries.ListActiveOwnerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vault owners: %w", err)
	}
	return ids, nil
}

// CreateVault implements sheets.VaultEditor. The owner is registered in the
// same transaction.
func (r *SQLiteRepository) CreateVault(ctx context.Context, v core.Vault) (core.Vault, error) {
	cur, err := core.NormalizeCurrency(v.Currency)
	if err != nil {
		return core.Vault{}, err
	}
	v.Currency = cur
	v.Title = strings.TrimSpace(v.Title)
	if err := v.Validate(); err != nil {
		return core.Vault{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Vault{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	now := r.now().UnixNano()
	if err := q.UpsertUser(ctx, v.OwnerID, "", now); err != nil {
		return core.Vault{}, fmt.Errorf("upsert owner: %w", err)
	}
	id, err := q.CreateVault(ctx, v.OwnerID, v.Title, v.Currency, now)
	if err != nil {
		return core.Vault{}, fmt.Errorf("create vault: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Vault{}, fmt.Errorf("commit vault: %w", err)
	}

	v.ID = strconv.FormatInt(id, 10)
	v.Active = true
	v.LastAmount = nil
	slog.InfoContext(ctx, "Vault saved to SQLite", "id", v.ID, "owner", v.OwnerID, "currency", v.Currency)
	return v, nil
}

// ActiveVaults implements sheets.VaultReader
func (r *SQLiteRepository) ActiveVaults(ctx context.Context, ownerID int64) ([]core.Vault, error) {
	return r.OwnerVaults(ctx, ownerID, false)
}

func (r *SQLiteRepository) OwnerVaults(ctx context.Context, ownerID int64, includeInactive bool) ([]core.Vault, error) {
	rows, err := r.queries.ListOwnerVaults(ctx, ownerID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list vaults of %d: %w", ownerID, err)
	}
	out := make([]core.Vault, len(rows))
	for i, v := range rows {
		out[i] = toVault(v)
	}
	return out, nil
}

func (r *SQLiteRepository) ActiveVaultCount(ctx context.Context) (int, error) {
	n, err := r.queries.CountActiveVaults(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active vaults: %w", err)
	}
	return int(n), nil
}

// vaultUpdate runs one of the single-column vault updates and maps "no rows"
// to ErrVaultNotFound.
func (r *SQLiteRepository) vaultUpdate(id string, update func(int64) (int64, error)) error {
	vid, err := parseID("vault", id)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
	}
	n, err := update(vid)
	if err != nil {
		return fmt.Errorf("update vault %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
	}
	return nil
}

func (r *SQLiteRepository) RenameVault(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if err := (core.Vault{Title: title, Currency: "USD"}).Validate(); err != nil {
		return err
	}
	return r.vaultUpdate(id, func(vid int64) (int64, error) {
		return r.queries.UpdateVaultTitle(ctx, vid, title)
	})
}

func (r *SQLiteRepository) ChangeVaultCurrency(ctx context.Context, id, currency string) error {
	cur, err := core.NormalizeCurrency(currency)
	if err != nil {
		return err
	}
	return r.vaultUpdate(id, func(vid int64) (int64, error) {
		return r.queries.UpdateVaultCurrency(ctx, vid, cur)
	})
}

func (r *SQLiteRepository) SetVaultActive(ctx context.Context, id string, active bool) error {
	return r.vaultUpdate(id, func(vid int64) (int64, error) {
		return r.queries.UpdateVaultActive(ctx, vid, active)
	})
}

// ChangeVaultAmount implements sheets.VaultEditor
func (r *SQLiteRepository) ChangeVaultAmount(ctx context.Context, id string, amount float64) error {
	_, err := r.UpdateLatestAmount(ctx, id, amount)
	return err
}

// UpdateLatestAmount overwrites the most recent submission of the vault and
// returns the updated row, now pending sync.
func (r *SQLiteRepository) UpdateLatestAmount(ctx context.Context, vaultID string, amount float64) (SubmissionRecord, error) {
	vid, err := parseID("vault", vaultID)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrVaultNotFound, vaultID)
	}
	if _, err := r.queries.GetVault(ctx, vid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrVaultNotFound, vaultID)
		}
		return SubmissionRecord{}, fmt.Errorf("get vault: %w", err)
	}
	sid, err := r.queries.LatestSubmissionID(ctx, vid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrNoSubmissions, vaultID)
		}
		return SubmissionRecord{}, fmt.Errorf("latest submission: %w", err)
	}
	if err := r.queries.UpdateSubmissionAmount(ctx, sid, amount, r.now().UnixNano()); err != nil {
		return SubmissionRecord{}, fmt.Errorf("update submission: %w", err)
	}
	return r.GetSubmission(ctx, sid)
}

// OpenPeriod implements sheets.SubmissionWriter
func (r *SQLiteRepository) OpenPeriod(ctx context.Context, key string) (core.Period, error) {
	if err := r.queries.InsertPeriod(ctx, key, r.now().UnixNano()); err != nil {
		return core.Period{}, fmt.Errorf("insert period %s: %w", key, err)
	}
	p, err := r.queries.GetPeriodByKey(ctx, key)
	if err != nil {
		return core.Period{}, fmt.Errorf("get period %s: %w", key, err)
	}
	return r.withSubmissions(ctx, p)
}

// RecordSubmission implements sheets.SubmissionWriter
func (r *SQLiteRepository) RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error {
	_, err := r.SaveSubmission(ctx, periodID, vaultID, amount)
	return err
}

// SaveSubmission upserts the amount of vault in period and returns the
// stored row. Every write bumps the row version and resets it to pending.
func (r *SQLiteRepository) SaveSubmission(ctx context.Context, periodID, vaultID string, amount float64) (SubmissionRecord, error) {
	pid, err := parseID("period", periodID)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, periodID)
	}
	vid, err := parseID("vault", vaultID)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrVaultNotFound, vaultID)
	}
	if _, err := r.queries.GetPeriod(ctx, pid); errors.Is(err, sql.ErrNoRows) {
		return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, periodID)
	} else if err != nil {
		return SubmissionRecord{}, fmt.Errorf("get period: %w", err)
	}
	if _, err := r.queries.GetVault(ctx, vid); errors.Is(err, sql.ErrNoRows) {
		return SubmissionRecord{}, fmt.Errorf("%w: %s", core.ErrVaultNotFound, vaultID)
	} else if err != nil {
		return SubmissionRecord{}, fmt.Errorf("get vault: %w", err)
	}

	if err := r.queries.UpsertSubmission(ctx, pid, vid, amount, r.now().UnixNano()); err != nil {
		return SubmissionRecord{}, fmt.Errorf("upsert submission: %w", err)
	}
	sid, err := r.queries.GetSubmissionID(ctx, pid, vid)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("get submission id: %w", err)
	}
	rec, err := r.GetSubmission(ctx, sid)
	if err != nil {
		return SubmissionRecord{}, err
	}

	slog.InfoContext(ctx, "Submission saved to SQLite",
		"id", rec.ID,
		"period", rec.PeriodKey,
		"vault_id", vaultID,
		"amount", amount,
		"version", rec.Version)
	return rec, nil
}

// ListPeriods implements sheets.PeriodLister
func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.queries.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	out := make([]core.Period, 0, len(rows))
	for _, p := range rows {
		period, err := r.withSubmissions(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, nil
}

func (r *SQLiteRepository) Period(ctx context.Context, id string) (core.Period, error) {
	pid, err := parseID("period", id)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, id)
	}
	p, err := r.queries.GetPeriod(ctx, pid)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, id)
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}
	return r.withSubmissions(ctx, p)
}

func (r *SQLiteRepository) withSubmissions(ctx context.Context, p Period) (core.Period, error) {
	out := toPeriod(p)
	subs, err := r.queries.ListPeriodSubmissions(ctx, p.ID)
	if err != nil {
		return core.Period{}, fmt.Errorf("list submissions of %s: %w", p.Key, err)
	}
	for _, s := range subs {
		out.Submissions = append(out.Submissions, core.Submission{
			VaultID:  strconv.FormatInt(s.VaultID, 10),
			Currency: s.Currency,
			Amount:   s.Amount,
		})
	}
	return out, nil
}

// GetSubmission retrieves a single submission by ID
func (r *SQLiteRepository) GetSubmission(ctx context.Context, id int64) (SubmissionRecord, error) {
	s, err := r.queries.GetSubmission(ctx, id)
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("get submission %d: %w", id, err)
	}
	return toRecord(s), nil
}

// PendingSubmissions returns submissions that still need to reach the mirror,
// oldest first.
func (r *SQLiteRepository) PendingSubmissions(ctx context.Context, limit int) ([]SubmissionRecord, error) {
	rows, err := r.queries.ListPendingSubmissions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending submissions: %w", err)
	}
	out := make([]SubmissionRecord, len(rows))
	for i, s := range rows {
		out[i] = toRecord(s)
	}
	return out, nil
}

// MarkSynced marks the given version of a submission as mirrored. A newer
// version written meanwhile stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	n, err := r.queries.MarkSubmissionSynced(ctx, id, version)
	if err != nil {
		return fmt.Errorf("mark submission synced: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Submission changed before sync completed", "id", id, "version", version)
		return nil
	}
	slog.InfoContext(ctx, "Submission marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError marks a submission as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkSubmissionSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark submission sync error: %w", err)
	}
	slog.WarnContext(ctx, "Submission marked with sync error", "id", id)
	return nil
}

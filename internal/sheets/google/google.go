package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"vaultbot/internal/core"
	ports "vaultbot/internal/sheets"
)

var _ ports.Store = (*Client)(nil)

// valuesAPI is the slice of the Sheets values API the client needs.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
	Append(ctx context.Context, rng string, values [][]any) error
}

// Client stores vaults in one sheet: static columns id, name, currency,
// chatId, active, followed by one column per period headed by its key.
// Users are the distinct owners of the vault rows.
type Client struct {
	values    valuesAPI
	sheet     string
	keyLayout string

	mu                 sync.Mutex
	cached             [][]any
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE,
// otherwise an OAuth client (GOOGLE_OAUTH_CLIENT_JSON/FILE) with a stored
// token (GOOGLE_OAUTH_TOKEN_JSON/FILE) as written by cmd/oauth-init.
// Optional: GOOGLE_SHEET_NAME (default "Vaults"), PERIOD_KEY_LAYOUT.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheet == "" {
		sheet = "Vaults"
	}
	layout := strings.TrimSpace(os.Getenv("PERIOD_KEY_LAYOUT"))
	if layout == "" {
		layout = "2006-01"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(&sheetsValues{svc: svc, spreadsheetID: spreadsheetID}, sheet, layout), nil
}

// New builds a client over an existing values API.
func New(values valuesAPI, sheet, keyLayout string) *Client {
	return &Client{
		values:             values,
		sheet:              sheet,
		keyLayout:          keyLayout,
		cacheValidDuration: 30 * time.Second,
	}
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	}
	if credentialsJSON != nil {
		slog.InfoContext(ctx, "Creating Google Sheets service with service account",
			"credentials_size", len(credentialsJSON))
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	ts, err := oauthTokenSource(ctx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token")
	return gsheet.NewService(ctx, goption.WithTokenSource(ts))
}

func oauthTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientJSON, err := envOrFile("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_JSON/FILE)")
	}
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := envOrFile("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (run oauth-init, then set GOOGLE_OAUTH_TOKEN_FILE)")
	}
	tok, err := parseToken(tokenJSON)
	if err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}

// envOrFile returns the inline value of jsonKey or the content of the file
// named by fileKey. Both unset yields nil.
func envOrFile(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return b, nil
}

type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *sheetsValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (s *sheetsValues) Update(ctx context.Context, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (s *sheetsValues) Append(ctx context.Context, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

// table reads the whole sheet, served from cache while it is fresh.
func (c *Client) table(ctx context.Context) (table, error) {
	c.mu.Lock()
	if c.cached != nil && time.Now().Before(c.cacheExpiresAt) {
		values := c.cached
		c.mu.Unlock()
		return parseTable(values, c.keyLayout), nil
	}
	c.mu.Unlock()

	values, err := c.values.Get(ctx, c.sheet+"!A1:ZZ")
	if err != nil {
		return table{}, err
	}

	c.mu.Lock()
	c.cached = values
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return parseTable(values, c.keyLayout), nil
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) writeCell(ctx context.Context, col, row int, v any) error {
	defer c.invalidate()
	return c.values.Update(ctx, fmt.Sprintf("%s!%s%d", c.sheet, colName(col), row), [][]any{{v}})
}

func (c *Client) ActiveVaults(ctx context.Context, ownerID int64) ([]core.Vault, error) {
	return c.OwnerVaults(ctx, ownerID, false)
}

func (c *Client) OwnerVaults(ctx context.Context, ownerID int64, includeInactive bool) ([]core.Vault, error) {
	t, err := c.table(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Vault
	for _, r := range t.rows {
		if r.vault.OwnerID == ownerID && (r.vault.Active || includeInactive) {
			out = append(out, r.vault)
		}
	}
	return out, nil
}

func (c *Client) ActiveVaultCount(ctx context.Context) (int, error) {
	t, err := c.table(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range t.rows {
		if r.vault.Active {
			n++
		}
	}
	return n, nil
}

func (c *Client) Recipients(ctx context.Context) ([]int64, error) {
	t, err := c.table(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int64]bool{}
	var out []int64
	for _, r := range t.rows {
		id := r.vault.OwnerID
		if id != 0 && r.vault.Active && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// EnsureUser is a no-op: the sheet knows users only as vault owners.
func (c *Client) EnsureUser(context.Context, core.User) error {
	return nil
}

func (c *Client) CreateVault(ctx context.Context, v core.Vault) (core.Vault, error) {
	cur, err := core.NormalizeCurrency(v.Currency)
	if err != nil {
		return core.Vault{}, err
	}
	v.Currency = cur
	v.Title = strings.TrimSpace(v.Title)
	if err := v.Validate(); err != nil {
		return core.Vault{}, err
	}
	t, err := c.table(ctx)
	if err != nil {
		return core.Vault{}, err
	}

	v.ID = strconv.Itoa(t.nextID())
	v.Active = true
	v.LastAmount = nil
	row := []any{v.ID, v.Title, v.Currency, strconv.FormatInt(v.OwnerID, 10), "TRUE"}

	defer c.invalidate()
	if err := c.values.Append(ctx, fmt.Sprintf("%s!A:%s", c.sheet, colName(len(staticColumns)-1)), [][]any{row}); err != nil {
		return core.Vault{}, fmt.Errorf("append vault: %w", err)
	}
	return v, nil
}

// UpsertVault writes v under its own id, appending a row when the id is
// unknown. The sync worker uses it to mirror vaults created elsewhere.
func (c *Client) UpsertVault(ctx context.Context, v core.Vault) error {
	t, err := c.table(ctx)
	if err != nil {
		return err
	}
	row := []any{v.ID, v.Title, v.Currency, strconv.FormatInt(v.OwnerID, 10), strings.ToUpper(strconv.FormatBool(v.Active))}

	defer c.invalidate()
	if r, ok := t.row(v.ID); ok {
		rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, r.sheetRow, colName(len(staticColumns)-1), r.sheetRow)
		if err := c.values.Update(ctx, rng, [][]any{row}); err != nil {
			return fmt.Errorf("update vault %s: %w", v.ID, err)
		}
		return nil
	}
	if err := c.values.Append(ctx, fmt.Sprintf("%s!A:%s", c.sheet, colName(len(staticColumns)-1)), [][]any{row}); err != nil {
		return fmt.Errorf("append vault %s: %w", v.ID, err)
	}
	return nil
}

func (c *Client) vaultRow(ctx context.Context, id string) (table, tableRow, error) {
	t, err := c.table(ctx)
	if err != nil {
		return table{}, tableRow{}, err
	}
	r, ok := t.row(id)
	if !ok {
		return table{}, tableRow{}, fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
	}
	return t, r, nil
}

func (c *Client) RenameVault(ctx context.Context, id, title string) error {
	_, r, err := c.vaultRow(ctx, id)
	if err != nil {
		return err
	}
	renamed := r.vault
	renamed.Title = strings.TrimSpace(title)
	if err := renamed.Validate(); err != nil {
		return err
	}
	return c.writeCell(ctx, colTitle, r.sheetRow, renamed.Title)
}

func (c *Client) ChangeVaultCurrency(ctx context.Context, id, currency string) error {
	cur, err := core.NormalizeCurrency(currency)
	if err != nil {
		return err
	}
	_, r, err := c.vaultRow(ctx, id)
	if err != nil {
		return err
	}
	return c.writeCell(ctx, colCurrency, r.sheetRow, cur)
}

func (c *Client) SetVaultActive(ctx context.Context, id string, active bool) error {
	_, r, err := c.vaultRow(ctx, id)
	if err != nil {
		return err
	}
	return c.writeCell(ctx, colActive, r.sheetRow, strings.ToUpper(strconv.FormatBool(active)))
}

func (c *Client) ChangeVaultAmount(ctx context.Context, id string, amount float64) error {
	t, r, err := c.vaultRow(ctx, id)
	if err != nil {
		return err
	}
	for i := len(t.periods) - 1; i >= 0; i-- {
		if _, ok := r.amounts[i]; ok {
			return c.writeCell(ctx, t.periods[i].col, r.sheetRow, amount)
		}
	}
	return fmt.Errorf("%w: %s", core.ErrNoSubmissions, id)
}

// OpenPeriod returns the column headed by key, adding it after the last
// period column when missing. The period id is the key itself.
func (c *Client) OpenPeriod(ctx context.Context, key string) (core.Period, error) {
	t, err := c.table(ctx)
	if err != nil {
		return core.Period{}, err
	}
	if i, ok := t.periodIndex(key); ok {
		return t.period(i), nil
	}
	col := len(staticColumns) + len(t.periods)
	if err := c.writeCell(ctx, col, 1, key); err != nil {
		return core.Period{}, fmt.Errorf("open period %s: %w", key, err)
	}
	slog.InfoContext(ctx, "Period column created", "period", key, "column", colName(col))
	return core.Period{ID: key, Key: key, CreatedAt: t.nextPeriodTime(key, c.keyLayout)}, nil
}

func (c *Client) RecordSubmission(ctx context.Context, periodID, vaultID string, amount float64) error {
	t, r, err := c.vaultRow(ctx, vaultID)
	if err != nil {
		return err
	}
	i, ok := t.periodIndex(periodID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrPeriodNotFound, periodID)
	}
	return c.writeCell(ctx, t.periods[i].col, r.sheetRow, amount)
}

func (c *Client) ListPeriods(ctx context.Context) ([]core.Period, error) {
	t, err := c.table(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Period, 0, len(t.periods))
	for i := range t.periods {
		out = append(out, t.period(i))
	}
	return out, nil
}

func (c *Client) Period(ctx context.Context, id string) (core.Period, error) {
	t, err := c.table(ctx)
	if err != nil {
		return core.Period{}, err
	}
	i, ok := t.periodIndex(id)
	if !ok {
		return core.Period{}, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, id)
	}
	return t.period(i), nil
}

package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"vaultbot/internal/core"
)

// fakeValues is an in-memory sheet addressed with the A1 ranges the client
// produces.
type fakeValues struct {
	grid [][]any
	gets int
}

func (f *fakeValues) Get(_ context.Context, _ string) ([][]any, error) {
	f.gets++
	out := make([][]any, len(f.grid))
	for i, row := range f.grid {
		out[i] = append([]any(nil), row...)
	}
	return out, nil
}

func (f *fakeValues) Update(_ context.Context, rng string, values [][]any) error {
	col, row, err := parseCell(rng)
	if err != nil {
		return err
	}
	for len(f.grid) < row {
		f.grid = append(f.grid, nil)
	}
	r := f.grid[row-1]
	for len(r) < col+len(values[0]) {
		r = append(r, "")
	}
	copy(r[col:], values[0])
	f.grid[row-1] = r
	return nil
}

func (f *fakeValues) Append(_ context.Context, _ string, values [][]any) error {
	f.grid = append(f.grid, values...)
	return nil
}

func parseCell(rng string) (col, row int, err error) {
	ref := rng[strings.Index(rng, "!")+1:]
	if j := strings.Index(ref, ":"); j >= 0 {
		ref = ref[:j]
	}
	i := strings.IndexAny(ref, "0123456789")
	if i <= 0 {
		return 0, 0, fmt.Errorf("bad cell %q", rng)
	}
	n := 0
	for _, ch := range ref[:i] {
		n = n*26 + int(ch-'A'+1)
	}
	row, err = strconv.Atoi(ref[i:])
	return n - 1, row, err
}

func newFake() (*Client, *fakeValues) {
	f := &fakeValues{grid: [][]any{{"id", "name", "currency", "chatId", "active"}}}
	return New(f, "Vaults", "2006-01"), f
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_InvalidOAuthClient(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "invalid-json")
	t.Setenv("GOOGLE_OAUTH_TOKEN_JSON", `{"access_token":"test"}`)

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Fatalf("expected oauth config error, got: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE"} {
		t.Setenv(k, "")
	}
	if _, err := NewFromEnv(context.Background()); err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestEnvOrFile(t *testing.T) {
	path := t.TempDir() + "/token.json"
	if err := os.WriteFile(path, []byte(`{"access_token":"abc"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_TOKEN_JSON", "")
	t.Setenv("TEST_TOKEN_FILE", path)

	b, err := envOrFile("TEST_TOKEN_JSON", "TEST_TOKEN_FILE")
	if err != nil {
		t.Fatal(err)
	}
	tok, err := parseToken(b)
	if err != nil || tok.AccessToken != "abc" {
		t.Fatalf("token=%+v err=%v", tok, err)
	}
}

func TestClientVaultsAndPeriods(t *testing.T) {
	c, f := newFake()
	ctx := context.Background()

	bank, err := c.CreateVault(ctx, core.Vault{OwnerID: 100, Title: "Bank", Currency: "usd"})
	if err != nil {
		t.Fatal(err)
	}
	savings, _ := c.CreateVault(ctx, core.Vault{OwnerID: 200, Title: "Savings", Currency: "EUR"})
	if bank.ID != "1" || savings.ID != "2" || len(f.grid) != 3 {
		t.Fatalf("ids %s %s rows %d", bank.ID, savings.ID, len(f.grid))
	}

	p, err := c.OpenPeriod(ctx, "2025-07")
	if err != nil {
		t.Fatal(err)
	}
	if f.grid[0][5] != "2025-07" {
		t.Fatalf("header=%v", f.grid[0])
	}
	again, _ := c.OpenPeriod(ctx, "2025-07")
	if again.ID != p.ID || len(f.grid[0]) != 6 {
		t.Fatalf("period reopened as new column: %v", f.grid[0])
	}

	if err := c.RecordSubmission(ctx, p.ID, bank.ID, 150); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordSubmission(ctx, p.ID, savings.ID, 20); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordSubmission(ctx, "2030-01", bank.ID, 1); !errors.Is(err, core.ErrPeriodNotFound) {
		t.Fatalf("expected ErrPeriodNotFound, got %v", err)
	}

	got, err := c.Period(ctx, p.ID)
	if err != nil || len(got.Submissions) != 2 || got.Submissions[0].Amount != 150 || got.Submissions[1].Currency != "EUR" {
		t.Fatalf("period=%+v err=%v", got, err)
	}

	vaults, _ := c.ActiveVaults(ctx, 100)
	if len(vaults) != 1 || *vaults[0].LastAmount != 150 {
		t.Fatalf("vaults=%+v", vaults)
	}
	recipients, _ := c.Recipients(ctx)
	if len(recipients) != 2 {
		t.Fatalf("recipients=%v", recipients)
	}
}

func TestClientEditVault(t *testing.T) {
	c, f := newFake()
	ctx := context.Background()
	v, _ := c.CreateVault(ctx, core.Vault{OwnerID: 1, Title: "Bank", Currency: "USD"})

	if err := c.ChangeVaultAmount(ctx, v.ID, 1); !errors.Is(err, core.ErrNoSubmissions) {
		t.Fatalf("expected ErrNoSubmissions, got %v", err)
	}
	p, _ := c.OpenPeriod(ctx, "2025-07")
	_ = c.RecordSubmission(ctx, p.ID, v.ID, 10)

	steps := []error{
		c.RenameVault(ctx, v.ID, "Main"),
		c.ChangeVaultCurrency(ctx, v.ID, "gbp"),
		c.ChangeVaultAmount(ctx, v.ID, 99),
		c.SetVaultActive(ctx, v.ID, false),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	row := f.grid[1]
	if row[1] != "Main" || row[2] != "GBP" || row[4] != "FALSE" || row[5] != 99.0 {
		t.Fatalf("row=%v", row)
	}
	if n, _ := c.ActiveVaultCount(ctx); n != 0 {
		t.Fatalf("active=%d", n)
	}
	if err := c.RenameVault(ctx, "nope", "x"); !errors.Is(err, core.ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
}

func TestTableCache(t *testing.T) {
	c, f := newFake()
	ctx := context.Background()

	_, _ = c.ActiveVaultCount(ctx)
	_, _ = c.ActiveVaultCount(ctx)
	if f.gets != 1 {
		t.Fatalf("gets=%d want 1 while cache is fresh", f.gets)
	}

	_, _ = c.CreateVault(ctx, core.Vault{OwnerID: 1, Title: "Bank", Currency: "USD"})
	n, _ := c.ActiveVaultCount(ctx)
	if n != 1 || f.gets != 2 {
		t.Fatalf("write must invalidate the cache: n=%d gets=%d", n, f.gets)
	}

	c.cacheValidDuration = time.Millisecond
	c.invalidate()
	_, _ = c.ActiveVaultCount(ctx)
	time.Sleep(5 * time.Millisecond)
	_, _ = c.ActiveVaultCount(ctx)
	if f.gets != 4 {
		t.Fatalf("gets=%d want 4 after expiry", f.gets)
	}
}

func TestUpsertVault(t *testing.T) {
	c, f := newFake()
	ctx := context.Background()

	v := core.Vault{ID: "7", OwnerID: 42, Title: "Cash", Currency: "USD", Active: true}
	if err := c.UpsertVault(ctx, v); err != nil {
		t.Fatal(err)
	}
	if len(f.grid) != 2 || f.grid[1][0] != "7" {
		t.Fatalf("vault row not appended: %v", f.grid)
	}

	v.Title = "Wallet"
	v.Active = false
	if err := c.UpsertVault(ctx, v); err != nil {
		t.Fatal(err)
	}
	if len(f.grid) != 2 {
		t.Fatalf("existing vault should be updated in place: %v", f.grid)
	}
	vaults, err := c.OwnerVaults(ctx, 42, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(vaults) != 1 || vaults[0].Title != "Wallet" || vaults[0].Active {
		t.Fatalf("vaults = %+v", vaults)
	}

	p, _ := c.OpenPeriod(ctx, "2025-07")
	if err := c.RecordSubmission(ctx, p.ID, "7", 12); err != nil {
		t.Fatalf("submission for an upserted vault: %v", err)
	}
}

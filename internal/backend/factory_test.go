package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"vaultbot/internal/config"
	"vaultbot/internal/core"
)

func quietFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "redis"}); err == nil {
		t.Fatal("unknown backend should fail")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "mongo", MongoURI: "mongodb://db", MongoDatabase: "vb"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != MongoBackend || cfg.MongoURI != "mongodb://db" || cfg.MongoDatabase != "vb" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"mongo without database", Config{Type: MongoBackend, MongoURI: "mongodb://db"}, true},
		{"sheets without id", Config{Type: SheetsBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed_vaults.txt"), []byte("7|Cash|EUR|20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	vaults, err := res.Store.ActiveVaults(context.Background(), 7)
	if err != nil || len(vaults) != 1 || vaults[0].Currency != "EUR" {
		t.Fatalf("vaults = %+v, err %v", vaults, err)
	}
	if res.Pinger != nil {
		t.Fatal("memory backend has nothing to ping")
	}
}

func TestCreateSQLiteBackendWithoutAMQP(t *testing.T) {
	ctx := context.Background()
	res, err := quietFactory().CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "vaultbot.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if err := res.Pinger.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	v, err := res.Store.CreateVault(ctx, core.Vault{OwnerID: 1, Title: "Bank", Currency: "usd"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := res.Store.OpenPeriod(ctx, "2025-07")
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Store.RecordSubmission(ctx, p.ID, v.ID, 100); err != nil {
		t.Fatal(err)
	}
	got, err := res.Store.Period(ctx, p.ID)
	if err != nil || len(got.Submissions) != 1 || got.Submissions[0].Amount != 100 {
		t.Fatalf("period = %+v, err %v", got, err)
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	if _, err := quietFactory().CreateBackend(context.Background(), Config{Type: SheetsBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}

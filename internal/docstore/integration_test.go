//go:build integration

package docstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"vaultbot/internal/core"
)

// Integration tests require a running MongoDB.
// Run with: MONGO_URI=mongodb://localhost:27017 go test -tags=integration ./internal/docstore

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx := context.Background()
	db := "vaultbot_test_" + time.Now().Format("20060102150405")
	s, err := Connect(ctx, uri, db)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = s.client.Database(db).Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestIntegration_RoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	v, err := s.CreateVault(ctx, core.Vault{OwnerID: 1, Title: "Bank", Currency: "usd"})
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	p, err := s.OpenPeriod(ctx, "2025-07")
	if err != nil {
		t.Fatalf("open period: %v", err)
	}
	again, _ := s.OpenPeriod(ctx, "2025-07")
	if again.ID != p.ID {
		t.Fatalf("period not shared: %s vs %s", p.ID, again.ID)
	}

	if err := s.RecordSubmission(ctx, p.ID, v.ID, 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordSubmission(ctx, p.ID, v.ID, 150); err != nil {
		t.Fatalf("record again: %v", err)
	}
	got, err := s.Period(ctx, p.ID)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if len(got.Submissions) != 1 || got.Submissions[0].Amount != 150 {
		t.Fatalf("submissions = %+v", got.Submissions)
	}

	if err := s.ChangeVaultAmount(ctx, v.ID, 175); err != nil {
		t.Fatalf("change amount: %v", err)
	}
	vaults, _ := s.ActiveVaults(ctx, 1)
	if len(vaults) != 1 || vaults[0].LastAmount == nil || *vaults[0].LastAmount != 175 {
		t.Fatalf("vaults = %+v", vaults)
	}

	if err := s.RecordSubmission(ctx, p.ID, "000000000000000000000000", 1); !errors.Is(err, core.ErrVaultNotFound) {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
	recipients, _ := s.Recipients(ctx)
	if len(recipients) != 1 || recipients[0] != 1 {
		t.Fatalf("recipients = %v", recipients)
	}
}

//go:build integration

package google

import (
	"context"
	"os"
	"testing"
)

// Integration tests require a real spreadsheet.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ReadVaults(t *testing.T) {
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	ctx := context.Background()
	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	periods, err := client.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	t.Logf("found %d periods", len(periods))

	for i := 1; i < len(periods); i++ {
		if periods[i].CreatedAt.Before(periods[i-1].CreatedAt) {
			t.Errorf("periods out of order at %d", i)
		}
	}

	recipients, err := client.Recipients(ctx)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	t.Logf("found %d recipients", len(recipients))
}

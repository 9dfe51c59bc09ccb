package core

import (
	"errors"
	"testing"
)

func TestNormalizeCurrency(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"USD", "USD", true},
		{"eur", "EUR", true},
		{" gbp ", "GBP", true},
		{"RUB", "RUB", true},
		{"US", "", false},
		{"DOLLAR", "", false},
		{"QQQ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeCurrency(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("%q expected ErrInvalidCurrency, got %v", tc.in, err)
		}
	}
}

func TestVaultValidate(t *testing.T) {
	good := Vault{Title: "Savings", Currency: "EUR"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Vault{
		{Title: "", Currency: "EUR"},
		{Title: "   ", Currency: "EUR"},
		{Title: "Cash", Currency: "XX"},
	}
	for i, v := range bads {
		if err := v.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTotalsPreservesFirstSeenOrder(t *testing.T) {
	var tot Totals
	tot.Add("USD", 100)
	tot.Add("EUR", 20)
	tot.Add("USD", 50)

	cur := tot.Currencies()
	if len(cur) != 2 || cur[0] != "USD" || cur[1] != "EUR" {
		t.Fatalf("unexpected order: %v", cur)
	}
	if v, ok := tot.Get("USD"); !ok || v != 150 {
		t.Fatalf("USD total: got %v ok=%v", v, ok)
	}
	if _, ok := tot.Get("GBP"); ok {
		t.Fatalf("GBP should be absent")
	}
	if entries := tot.Entries(); len(entries) != 2 || entries[1].Amount != 20 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestPeriodVaultIDs(t *testing.T) {
	p := Period{Submissions: []Submission{
		{VaultID: "1", Currency: "USD", Amount: 1},
		{VaultID: "2", Currency: "USD", Amount: 1},
		{VaultID: "1", Currency: "USD", Amount: 3},
	}}
	if got := len(p.VaultIDs()); got != 2 {
		t.Fatalf("expected 2 distinct vaults, got %d", got)
	}
	if p.IsEmpty() {
		t.Fatal("period should not be empty")
	}
}

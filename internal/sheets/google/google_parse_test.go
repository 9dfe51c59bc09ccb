package google

import (
	"testing"
	"time"
)

func TestColName(t *testing.T) {
	tests := map[int]string{0: "A", 4: "E", 5: "F", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for in, want := range tests {
		if got := colName(in); got != want {
			t.Errorf("colName(%d)=%q want %q", in, got, want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"1,200.50", 1200.5, true},
		{"1.200,50", 1200.5, true},
		{"12,5", 12.5, true},
		{" 1 000 ", 1000, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseAmount(%q)=%v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTable(t *testing.T) {
	values := [][]any{
		{"id", "name", "currency", "chatId", "active", "2025-05", "2025-06", "", "bonus"},
		{"1", "Bank", "usd", "100", "TRUE", 100.0, "150"},
		{"2", "Savings", "EUR", "100", "FALSE", "20"},
		{"", "ignored"},
		{"7", "Broker", "GBP", "200", "", "", "", "", "5"},
	}
	tab := parseTable(values, "2006-01")

	if len(tab.periods) != 3 {
		t.Fatalf("periods=%+v", tab.periods)
	}
	may, june, bonus := tab.periods[0], tab.periods[1], tab.periods[2]
	if !may.createdAt.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) || june.col != 6 {
		t.Errorf("unexpected period columns: %+v %+v", may, june)
	}
	if bonus.col != 8 || !bonus.createdAt.Equal(june.createdAt.Add(time.Second)) {
		t.Errorf("unparsable key must follow previous column: %+v", bonus)
	}

	if len(tab.rows) != 3 || tab.rows[2].sheetRow != 5 {
		t.Fatalf("rows=%+v", tab.rows)
	}
	bank := tab.rows[0].vault
	if bank.Currency != "USD" || bank.OwnerID != 100 || !bank.Active || *bank.LastAmount != 150 {
		t.Errorf("bank=%+v", bank)
	}
	if tab.rows[1].vault.Active {
		t.Error("savings should be inactive")
	}
	if !tab.rows[2].vault.Active {
		t.Error("empty active cell should count as active")
	}

	p := tab.period(0)
	if p.ID != "2025-05" || len(p.Submissions) != 2 || p.Submissions[1].Currency != "EUR" {
		t.Errorf("period=%+v", p)
	}
	if tab.nextID() != 8 {
		t.Errorf("nextID=%d want 8", tab.nextID())
	}
}

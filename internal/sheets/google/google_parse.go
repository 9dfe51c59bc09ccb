package google

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"vaultbot/internal/core"
)

var staticColumns = []string{"id", "name", "currency", "chatId", "active"}

const (
	colID = iota
	colTitle
	colCurrency
	colChat
	colActive
)

type (
	periodCol struct {
		key       string
		col       int
		createdAt time.Time
	}

	tableRow struct {
		vault    core.Vault
		sheetRow int             // 1-based row in the sheet
		amounts  map[int]float64 // period index -> amount
	}

	table struct {
		periods []periodCol
		rows    []tableRow
	}
)

// parseTable converts the raw sheet values into vault rows and period
// columns. Row 1 is the header. Period times come from parsing the key
// with layout; keys that do not parse, or go backwards, are placed one
// second after the previous column so that column order wins.
func parseTable(values [][]any, layout string) table {
	var t table
	if len(values) == 0 {
		return t
	}
	header := toStrings(values[0])
	for col := len(staticColumns); col < len(header); col++ {
		key := header[col]
		if key == "" {
			continue
		}
		t.periods = append(t.periods, periodCol{key: key, col: col, createdAt: t.nextPeriodTime(key, layout)})
	}

	for i := 1; i < len(values); i++ {
		cells := toStrings(values[i])
		id := safeGet(cells, colID)
		if id == "" {
			continue
		}
		owner, _ := strconv.ParseInt(safeGet(cells, colChat), 10, 64)
		r := tableRow{
			vault: core.Vault{
				ID:       id,
				OwnerID:  owner,
				Title:    safeGet(cells, colTitle),
				Currency: strings.ToUpper(safeGet(cells, colCurrency)),
				Active:   parseActive(safeGet(cells, colActive)),
			},
			sheetRow: i + 1,
			amounts:  map[int]float64{},
		}
		for pi, p := range t.periods {
			if amount, ok := parseAmount(safeGet(cells, p.col)); ok {
				r.amounts[pi] = amount
				a := amount
				r.vault.LastAmount = &a
			}
		}
		t.rows = append(t.rows, r)
	}
	return t
}

func (t table) nextPeriodTime(key, layout string) time.Time {
	var last time.Time
	if n := len(t.periods); n > 0 {
		last = t.periods[n-1].createdAt
	}
	if ts, err := time.ParseInLocation(layout, key, time.UTC); err == nil && ts.After(last) {
		return ts
	}
	if last.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return last.Add(time.Second)
}

func (t table) row(id string) (tableRow, bool) {
	for _, r := range t.rows {
		if r.vault.ID == id {
			return r, true
		}
	}
	return tableRow{}, false
}

func (t table) periodIndex(key string) (int, bool) {
	for i, p := range t.periods {
		if p.key == key {
			return i, true
		}
	}
	return -1, false
}

func (t table) period(i int) core.Period {
	p := t.periods[i]
	out := core.Period{ID: p.key, Key: p.key, CreatedAt: p.createdAt}
	for _, r := range t.rows {
		if amount, ok := r.amounts[i]; ok {
			out.Submissions = append(out.Submissions, core.Submission{
				VaultID:  r.vault.ID,
				Currency: r.vault.Currency,
				Amount:   amount,
			})
		}
	}
	return out
}

func (t table) nextID() int {
	highest := 0
	for _, r := range t.rows {
		if n, err := strconv.Atoi(r.vault.ID); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// colName converts a 0-based column index into its A1 letters:
// 0 -> A, 25 -> Z, 26 -> AA.
func colName(n int) string {
	var s []byte
	for n >= 0 {
		s = append([]byte{byte('A' + n%26)}, s...)
		n = n/26 - 1
	}
	return string(s)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseActive treats an empty cell as active so rows written before the
// column existed keep reporting.
func parseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "0", "no", "n":
		return false
	}
	return true
}

// parseAmount accepts formatted sheet numbers such as "1,200.50",
// "1.200,50" or "42".
func parseAmount(s string) (float64, bool) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return &tok, nil
}

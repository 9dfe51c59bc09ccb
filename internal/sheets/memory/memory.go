package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"vaultbot/internal/core"
	ports "vaultbot/internal/sheets"
)

var _ ports.Store = (*Store)(nil)

type period struct {
	id        string
	key       string
	createdAt time.Time
	vaults    []string // submission order
	amounts   map[string]float64
}

// Store keeps users, vaults and periods in process memory.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	users   []core.User
	vaults  []*core.Vault
	periods []*period
	seq     int
}

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromFiles seeds the store from base/seed_vaults.txt. Each line reads
// "owner|title|currency" with an optional "|amount" recorded into a first
// "seed" period. A missing file yields an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	lines := readLines(filepath.Join(base, "seed_vaults.txt"))
	var seedPeriod string
	for _, line := range lines {
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		owner, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			continue
		}
		v, err := s.CreateVault(context.Background(), core.Vault{
			OwnerID:  owner,
			Title:    strings.TrimSpace(parts[1]),
			Currency: parts[2],
			Active:   true,
		})
		if err != nil || len(parts) < 4 {
			continue
		}
		amount, err := core.EvalAmount(parts[3])
		if err != nil {
			continue
		}
		if seedPeriod == "" {
			p, _ := s.OpenPeriod(context.Background(), "seed")
			seedPeriod = p.ID
		}
		_ = s.RecordSubmission(context.Background(), seedPeriod, v.ID, amount)
	}
	return s
}

// SetClock replaces the time source used for period creation.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) nextID() string {
	s.seq++
	return strconv.Itoa(s.seq)
}

func (s *Store) EnsureUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(u)
	return nil
}

func (s *Store) ensureUser(u core.User) {
	for i := range s.users {
		if s.users[i].TelegramID == u.TelegramID {
			if u.Name != "" {
				s.users[i].Name = u.Name
			}
			return
		}
	}
	s.users = append(s.users, u)
}

// Recipients lists the owners of active vaults, in vault creation order.
func (s *Store) Recipients(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, v := range s.vaults {
		if v.Active && !seen[v.OwnerID] {
			seen[v.OwnerID] = true
			out = append(out, v.OwnerID)
		}
	}
	return out, nil
}

func (s *Store) CreateVault(_ context.Context, v core.Vault) (core.Vault, error) {
	cur, err := core.NormalizeCurrency(v.Currency)
	if err != nil {
		return core.Vault{}, err
	}
	v.Currency = cur
	v.Title = strings.TrimSpace(v.Title)
	if err := v.Validate(); err != nil {
		return core.Vault{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUser(core.User{TelegramID: v.OwnerID})
	v.ID = s.nextID()
	v.Active = true
	v.LastAmount = nil
	stored := v
	s.vaults = append(s.vaults, &stored)
	return stored, nil
}

func (s *Store) ActiveVaults(ctx context.Context, ownerID int64) ([]core.Vault, error) {
	return s.OwnerVaults(ctx, ownerID, false)
}

func (s *Store) OwnerVaults(_ context.Context, ownerID int64, includeInactive bool) ([]core.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Vault
	for _, v := range s.vaults {
		if v.OwnerID != ownerID || (!v.Active && !includeInactive) {
			continue
		}
		out = append(out, s.withLastAmount(*v))
	}
	return out, nil
}

func (s *Store) withLastAmount(v core.Vault) core.Vault {
	v.LastAmount = nil
	for i := len(s.periods) - 1; i >= 0; i-- {
		if amount, ok := s.periods[i].amounts[v.ID]; ok {
			a := amount
			v.LastAmount = &a
			break
		}
	}
	return v
}

func (s *Store) ActiveVaultCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.vaults {
		if v.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) vault(id string) (*core.Vault, error) {
	for _, v := range s.vaults {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrVaultNotFound, id)
}

func (s *Store) RenameVault(_ context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vault(id)
	if err != nil {
		return err
	}
	renamed := *v
	renamed.Title = title
	if err := renamed.Validate(); err != nil {
		return err
	}
	v.Title = title
	return nil
}

func (s *Store) ChangeVaultCurrency(_ context.Context, id, currency string) error {
	cur, err := core.NormalizeCurrency(currency)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vault(id)
	if err != nil {
		return err
	}
	v.Currency = cur
	return nil
}

func (s *Store) ChangeVaultAmount(_ context.Context, id string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.vault(id); err != nil {
		return err
	}
	for i := len(s.periods) - 1; i >= 0; i-- {
		if _, ok := s.periods[i].amounts[id]; ok {
			s.periods[i].amounts[id] = amount
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrNoSubmissions, id)
}

func (s *Store) SetVaultActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vault(id)
	if err != nil {
		return err
	}
	v.Active = active
	return nil
}

func (s *Store) OpenPeriod(_ context.Context, key string) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.periods {
		if p.key == key {
			return s.snapshot(p), nil
		}
	}
	p := &period{id: s.nextID(), key: key, createdAt: s.now(), amounts: make(map[string]float64)}
	s.periods = append(s.periods, p)
	return s.snapshot(p), nil
}

func (s *Store) RecordSubmission(_ context.Context, periodID, vaultID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.period(periodID)
	if err != nil {
		return err
	}
	if _, err := s.vault(vaultID); err != nil {
		return err
	}
	if _, ok := p.amounts[vaultID]; !ok {
		p.vaults = append(p.vaults, vaultID)
	}
	p.amounts[vaultID] = amount
	return nil
}

func (s *Store) period(id string) (*period, error) {
	for _, p := range s.periods {
		if p.id == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", core.ErrPeriodNotFound, id)
}

// ListPeriods returns periods in creation order.
func (s *Store) ListPeriods(_ context.Context) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, s.snapshot(p))
	}
	return out, nil
}

func (s *Store) Period(_ context.Context, id string) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.period(id)
	if err != nil {
		return core.Period{}, err
	}
	return s.snapshot(p), nil
}

// snapshot copies p, resolving each submission's currency from its vault.
func (s *Store) snapshot(p *period) core.Period {
	out := core.Period{ID: p.id, Key: p.key, CreatedAt: p.createdAt}
	for _, id := range p.vaults {
		v, err := s.vault(id)
		if err != nil {
			continue
		}
		out.Submissions = append(out.Submissions, core.Submission{
			VaultID:  id,
			Currency: v.Currency,
			Amount:   p.amounts[id],
		})
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

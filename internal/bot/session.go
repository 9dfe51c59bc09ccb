package bot

import (
	"sync"
	"time"

	"vaultbot/internal/core"
)

type dialog int

const (
	dialogCreate dialog = iota + 1
	dialogEdit
)

type step int

const (
	stepVaultName step = iota
	stepVaultCurrency
	stepChooseVault
	stepChooseAction
	stepActionInput
)

// session is the state of a vault dialog. Updates of one chat are
// serialized by the dispatcher, so a session needs no lock of its own.
type session struct {
	dialog    dialog
	step      step
	name      string
	options   []core.Vault
	vault     core.Vault
	action    string
	updatedAt time.Time
}

// sessions holds one dialog per chat and forgets dialogs idle for ttl.
type sessions struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[int64]*session
}

func newSessions(ttl time.Duration) *sessions {
	return &sessions{ttl: ttl, now: time.Now, m: make(map[int64]*session)}
}

func (s *sessions) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.updatedAt) > s.ttl
}

// get returns the live session of chat, dropping an expired one.
func (s *sessions) get(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[chatID]
	if !ok {
		return nil
	}
	if s.expired(sess, s.now()) {
		delete(s.m, chatID)
		return nil
	}
	return sess
}

func (s *sessions) put(chatID int64, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.updatedAt = s.now()
	s.m[chatID] = sess
}

func (s *sessions) touch(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.updatedAt = s.now()
}

func (s *sessions) drop(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}

func (s *sessions) evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for chat, sess := range s.m {
		if s.expired(sess, now) {
			delete(s.m, chat)
			removed++
		}
	}
	return removed
}

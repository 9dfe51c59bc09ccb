// Package poll drives one user through the ordered questions of a period
// report: one question per vault, one answer per question, with backward
// navigation and completion detection.
package poll

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoQuestions is returned when a run is created without questions.
	// Callers must check for eligible vaults before starting a run.
	ErrNoQuestions = errors.New("poll: run needs at least one question")
	// ErrOutOfRange guards access to a question index outside the run.
	ErrOutOfRange = errors.New("poll: question index out of range")
)

type (
	// Question asks for the current balance of one vault.
	Question struct {
		ID            string // vault id
		Text          string
		PreviousValue *float64
	}

	Answer struct {
		QuestionID string
		Value      float64
	}
)

// Run is one user's walk through a period report.
//
// Its cursor is guarded by mu, so the registry janitor can inspect a run
// while the chat that owns it is answering.
type Run struct {
	ID        uuid.UUID
	OwnerID   int64
	PeriodKey string
	StartedAt time.Time

	questions []Question

	mu        sync.Mutex
	answers   []Answer
	index     int
	active    bool
	updatedAt time.Time
}

// New creates an active run positioned on the first question.
func New(ownerID int64, periodKey string, questions []Question) (*Run, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	now := time.Now()
	return &Run{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		PeriodKey: periodKey,
		StartedAt: now,
		updatedAt: now,
		questions: append([]Question(nil), questions...),
		answers:   make([]Answer, 0, len(questions)),
		active:    true,
	}, nil
}

// CurrentQuestion returns the question under the cursor. After completion
// it keeps returning the last question.
func (r *Run) CurrentQuestion() (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked()
}

func (r *Run) currentLocked() (Question, error) {
	if r.index < 0 || r.index >= len(r.questions) {
		return Question{}, ErrOutOfRange
	}
	return r.questions[r.index], nil
}

// SaveAnswer records value for the current question and advances. It is a
// no-op on an inactive run so that duplicate button presses are harmless.
func (r *Run) SaveAnswer(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	q, err := r.currentLocked()
	if err != nil {
		return
	}
	r.answers = append(r.answers, Answer{QuestionID: q.ID, Value: value})
	r.updatedAt = time.Now()

	if r.index+1 == len(r.questions) {
		r.active = false
		return
	}
	r.index++
}

func (r *Run) IsFirstQuestion() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index == 0
}

// GoToPrevious drops the latest answer and moves the cursor back.
// It does nothing on the first question or once the run has completed:
// a finished run has already been handed over for persistence.
func (r *Run) GoToPrevious() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.index == 0 {
		return
	}
	r.answers = r.answers[:len(r.answers)-1]
	r.index--
	r.updatedAt = time.Now()
}

func (r *Run) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// LastActivity is the time of creation or of the latest answer or step back.
func (r *Run) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt
}

// Index is the 0-based cursor into the questions.
func (r *Run) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Len is the number of questions.
func (r *Run) Len() int {
	return len(r.questions)
}

// Answers returns a copy of the answers collected so far.
func (r *Run) Answers() []Answer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Answer(nil), r.answers...)
}

package poll

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func questions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		prev := float64(i * 10)
		qs[i] = Question{ID: fmt.Sprintf("v%d", i), Text: fmt.Sprintf("Vault %d", i), PreviousValue: &prev}
	}
	return qs
}

func mustNew(t *testing.T, n int) *Run {
	t.Helper()
	r, err := New(42, "2025-07", questions(n))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	return r
}

func checkAligned(t *testing.T, r *Run) {
	t.Helper()
	if r.IsActive() && len(r.Answers()) != r.Index() {
		t.Fatalf("answers=%d index=%d", len(r.Answers()), r.Index())
	}
}

func TestNewRejectsEmptyQuestions(t *testing.T) {
	if _, err := New(1, "2025-07", nil); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestSaveAnswerCompletesAfterAllQuestions(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("questions_%d", n), func(t *testing.T) {
			r := mustNew(t, n)
			for i := 0; i < n; i++ {
				if !r.IsActive() {
					t.Fatalf("run inactive before answer %d", i)
				}
				checkAligned(t, r)
				r.SaveAnswer(float64(i))
				checkAligned(t, r)
			}
			if r.IsActive() {
				t.Fatal("run should be inactive")
			}
			if got := len(r.Answers()); got != n {
				t.Fatalf("answers=%d want %d", got, n)
			}
			q, err := r.CurrentQuestion()
			if err != nil || q.ID != fmt.Sprintf("v%d", n-1) {
				t.Fatalf("current question after completion: %+v err=%v", q, err)
			}
		})
	}
}

func TestAnswersCarryQuestionIDs(t *testing.T) {
	r := mustNew(t, 3)
	r.SaveAnswer(1)
	r.SaveAnswer(2.5)
	r.SaveAnswer(-3)
	want := []Answer{{"v0", 1}, {"v1", 2.5}, {"v2", -3}}
	if got := r.Answers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("answers=%v want %v", got, want)
	}
}

func TestSaveAnswerOnInactiveRunIsNoop(t *testing.T) {
	r := mustNew(t, 1)
	r.SaveAnswer(5)
	before := r.Answers()
	idx := r.Index()

	r.SaveAnswer(99)

	if !reflect.DeepEqual(before, r.Answers()) || idx != r.Index() || r.IsActive() {
		t.Fatalf("state changed after completion: %v idx=%d", r.Answers(), r.Index())
	}
}

func TestGoToPreviousAtFirstQuestionIsNoop(t *testing.T) {
	r := mustNew(t, 3)
	r.GoToPrevious()
	if r.Index() != 0 || len(r.Answers()) != 0 || !r.IsActive() || !r.IsFirstQuestion() {
		t.Fatalf("unexpected state: idx=%d answers=%v", r.Index(), r.Answers())
	}
}

func TestGoToPreviousThenSaveRestoresState(t *testing.T) {
	r := mustNew(t, 4)
	r.SaveAnswer(10)
	r.SaveAnswer(20)

	beforeAnswers := r.Answers()
	beforeIdx := r.Index()

	r.GoToPrevious()
	checkAligned(t, r)
	if r.Index() != beforeIdx-1 {
		t.Fatalf("index=%d want %d", r.Index(), beforeIdx-1)
	}
	r.SaveAnswer(20)
	checkAligned(t, r)

	if !reflect.DeepEqual(beforeAnswers, r.Answers()) || r.Index() != beforeIdx {
		t.Fatalf("round trip changed state: %v idx=%d", r.Answers(), r.Index())
	}
}

func TestGoToPreviousAfterCompletionIsNoop(t *testing.T) {
	r := mustNew(t, 2)
	r.SaveAnswer(1)
	r.SaveAnswer(2)
	r.GoToPrevious()
	if r.IsActive() || len(r.Answers()) != 2 || r.Index() != 1 {
		t.Fatalf("completed run moved back: active=%v answers=%v idx=%d", r.IsActive(), r.Answers(), r.Index())
	}
}

func TestCurrentQuestionGuardsIndex(t *testing.T) {
	r := mustNew(t, 1)
	r.index = 5
	if _, err := r.CurrentQuestion(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestNewCopiesQuestions(t *testing.T) {
	qs := questions(2)
	r, err := New(1, "k", qs)
	if err != nil {
		t.Fatal(err)
	}
	qs[0].Text = "mutated"
	q, _ := r.CurrentQuestion()
	if q.Text == "mutated" {
		t.Fatal("run shares the caller's question slice")
	}
}

package bot

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

func textUpdate(chat int64, text string) Update {
	return Update{Message: &Message{ChatID: chat, Text: text}}
}

func TestUpdateChatID(t *testing.T) {
	tests := []struct {
		u    Update
		want int64
	}{
		{u: textUpdate(7, "/start"), want: 7},
		{u: Update{Callback: &Callback{ChatID: -100200, Data: dataKeep}}, want: -100200},
		{u: Update{}, want: 0},
	}
	for _, tt := range tests {
		if got := tt.u.ChatID(); got != tt.want {
			t.Errorf("ChatID() = %d, want %d", got, tt.want)
		}
	}
}

func TestQueueKeepsChatOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
		done = make(chan struct{})
	)
	const burst = 100
	q := NewQueue(4, 8, func(_ context.Context, u Update) {
		// The first update is the slowest, so a handler racing ahead would
		// record a later answer first.
		if u.Message.Text == "0" {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, u.Message.Text)
		if len(seen) == burst {
			close(done)
		}
		mu.Unlock()
	})
	defer q.Close()

	for i := 0; i < burst; i++ {
		q.Push(context.Background(), textUpdate(42, strconv.Itoa(i)))
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("burst not handled")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, text := range seen {
		if text != strconv.Itoa(i) {
			t.Fatalf("update %d handled as %s: %v", i, text, seen)
		}
	}
}

func TestQueueRunsChatsInParallel(t *testing.T) {
	release := make(chan struct{})
	handled := make(chan int64, 2)
	q := NewQueue(2, 1, func(_ context.Context, u Update) {
		if u.ChatID() == 1 {
			<-release
		}
		handled <- u.ChatID()
	})
	defer q.Close()

	q.Push(context.Background(), textUpdate(1, "blocked"))
	q.Push(context.Background(), textUpdate(2, "free"))

	select {
	case chat := <-handled:
		if chat != 2 {
			t.Fatalf("chat %d handled first, want 2", chat)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a slow chat held up another lane")
	}
	close(release)
	if chat := <-handled; chat != 1 {
		t.Fatalf("chat %d handled, want 1", chat)
	}
}

func TestQueuePushAfterClose(t *testing.T) {
	q := NewQueue(1, 0, func(context.Context, Update) {
		t.Error("handler called after close")
	})
	q.Close()

	pushed := make(chan struct{})
	go func() {
		q.Push(context.Background(), textUpdate(1, "late"))
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked on a closed queue")
	}
}

func TestQueueRecoversFromPanics(t *testing.T) {
	handled := make(chan string, 1)
	q := NewQueue(1, 2, func(_ context.Context, u Update) {
		if u.Message.Text == "boom" {
			panic("handler failure")
		}
		handled <- u.Message.Text
	})
	defer q.Close()

	q.Push(context.Background(), textUpdate(1, "boom"))
	q.Push(context.Background(), textUpdate(1, "after"))
	select {
	case text := <-handled:
		if text != "after" {
			t.Fatalf("handled %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lane stopped after a panic")
	}
}

package bot

import (
	"context"
	"log/slog"
	"sync"
)

// ChatID is the chat the update belongs to.
func (u Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.ChatID
	case u.Callback != nil:
		return u.Callback.ChatID
	}
	return 0
}

type queued struct {
	ctx context.Context
	u   Update
}

// Queue hands updates to a fixed set of lanes, each drained by one worker.
// A chat always maps to the same lane, so its updates are handled one at a
// time in the order they were pushed while other chats proceed in parallel.
type Queue struct {
	handle func(context.Context, Update)
	lanes  []chan queued

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue starts lanes workers calling handle. Each lane buffers depth
// updates before Push blocks.
func NewQueue(lanes, depth int, handle func(context.Context, Update)) *Queue {
	if lanes < 1 {
		lanes = 1
	}
	if depth < 0 {
		depth = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{handle: handle, lanes: make([]chan queued, lanes), ctx: ctx, cancel: cancel}
	for i := range q.lanes {
		q.lanes[i] = make(chan queued, depth)
		q.wg.Add(1)
		go q.work(q.lanes[i])
	}
	return q
}

// Push enqueues u on its chat's lane. It blocks while the lane is full and
// drops u once ctx ends or the queue is closed.
func (q *Queue) Push(ctx context.Context, u Update) {
	lane := q.lanes[uint64(u.ChatID())%uint64(len(q.lanes))]
	select {
	case lane <- queued{ctx: ctx, u: u}:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Update dropped", "chat_id", u.ChatID(), "error", ctx.Err())
	case <-q.ctx.Done():
		slog.WarnContext(ctx, "Update dropped, queue closed", "chat_id", u.ChatID())
	}
}

// Close stops the workers after the updates they are handling. Updates
// still waiting in a lane are discarded.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) work(lane <-chan queued) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case item := <-lane:
			q.run(item)
		}
	}
}

func (q *Queue) run(item queued) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(item.ctx, "Update handler panicked", "chat_id", item.u.ChatID(), "panic", r)
		}
	}()
	q.handle(item.ctx, item.u)
}

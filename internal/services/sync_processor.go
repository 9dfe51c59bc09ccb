package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrProcessorRunning is returned by Start on a processor already sweeping.
var ErrProcessorRunning = errors.New("sync processor is already running")

// PendingSyncer mirrors one batch of unsynced submissions.
type PendingSyncer interface {
	ProcessPendingSubmissions(ctx context.Context) (int, error)
}

type SyncProcessorConfig struct {
	// PollInterval between sweeps of pending submissions, one minute when zero.
	PollInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{PollInterval: time.Minute}
}

// SyncProcessor is the safety net of the AMQP path: on every tick it asks
// the syncer to mirror submissions whose message was lost or whose mirror
// write failed.
type SyncProcessor struct {
	syncer PendingSyncer
	config SyncProcessorConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	synced atomic.Int64
}

func NewSyncProcessor(syncer PendingSyncer, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{syncer: syncer, config: config}
}

// Start launches the sweep loop, which lives until Stop or until ctx ends.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrProcessorRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)

	slog.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop cancels the loop and waits for the sweep in flight, or for ctx.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	slog.InfoContext(ctx, "Sync processor stopped", "synced_total", p.synced.Load())
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Synced is the number of submissions mirrored by sweeps since creation.
func (p *SyncProcessor) Synced() int64 {
	return p.synced.Load()
}

func (p *SyncProcessor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *SyncProcessor) sweep(ctx context.Context) {
	n, err := p.syncer.ProcessPendingSubmissions(ctx)
	p.synced.Add(int64(n))
	switch {
	case err != nil && ctx.Err() == nil:
		slog.ErrorContext(ctx, "Pending submission sweep failed", "synced", n, "error", err)
	case n > 0:
		slog.InfoContext(ctx, "Pending submissions synced", "count", n)
	}
}

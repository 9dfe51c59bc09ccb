package poll

import (
	"sync"
	"time"
)

// Registry indexes runs by owner. At most one run per owner is kept: a new
// run replaces the previous one.
type Registry struct {
	mu   sync.Mutex
	ttl  time.Duration
	runs map[int64]*Run
}

// NewRegistry creates a registry whose idle runs expire after ttl.
// A zero ttl disables idle expiry and evicts completed runs right away.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:  ttl,
		runs: make(map[int64]*Run),
	}
}

// Append stores run under its owner.
func (r *Registry) Append(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.OwnerID] = run
}

// FindActive returns the active run of owner, if any.
func (r *Registry) FindActive(ownerID int64) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[ownerID]
	if !ok || !run.IsActive() {
		return nil, false
	}
	return run, true
}

// Find returns the run of owner whether or not it is still active. A
// completed run stays registered until its answers are stored.
func (r *Registry) Find(ownerID int64) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[ownerID]
	return run, ok
}

// Remove drops the run of owner once its answers have been consumed.
func (r *Registry) Remove(ownerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, ownerID)
}

// Evict removes runs idle since before now-ttl, answered or not. With a
// zero ttl it removes completed runs only. It returns the number removed.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for owner, run := range r.runs {
		var drop bool
		if r.ttl > 0 {
			drop = now.Sub(run.LastActivity()) > r.ttl
		} else {
			drop = !run.IsActive()
		}
		if drop {
			delete(r.runs, owner)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

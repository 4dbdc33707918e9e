package runs

import (
	"sort"
	"sync"
	"time"

	"nludevops/internal/domain"
)

type entry struct {
	run         domain.Run
	lastUpdated time.Time
}

// Registry keeps recent runs in memory until their TTL passes.
type Registry struct {
	mu   sync.RWMutex
	data map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		data: make(map[string]entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *Registry) Put(run domain.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[run.RunID] = entry{run: copyRun(run), lastUpdated: r.now()}
	r.evictLocked()
}

func (r *Registry) Get(runID string) (domain.Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.data[runID]
	if !ok || r.isExpired(e) {
		return domain.Run{}, false
	}
	return copyRun(e.run), true
}

// List returns live runs, newest first.
func (r *Registry) List() []domain.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Run, 0, len(r.data))
	for _, e := range r.data {
		if r.isExpired(e) {
			continue
		}
		out = append(out, copyRun(e.run))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (r *Registry) evictLocked() {
	for id, e := range r.data {
		if r.isExpired(e) {
			delete(r.data, id)
		}
	}
}

func (r *Registry) isExpired(e entry) bool {
	return r.now().Sub(e.lastUpdated) > r.ttl
}

func copyRun(run domain.Run) domain.Run {
	out := run
	out.Outcomes = append([]domain.Outcome{}, run.Outcomes...)
	return out
}

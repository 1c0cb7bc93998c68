package cdp

import "sync"

// failDemoteThreshold is the run of consecutive failures after which a
// context is tried last instead of in insertion order. Contexts are never
// removed — the target may never announce destruction.
const failDemoteThreshold = 3

// ExecutionContext is one isolated script environment inside the target.
// Identity is the id.
type ExecutionContext struct {
	ID     int64  `json:"id"`
	Origin string `json:"origin,omitempty"`
	Name   string `json:"name,omitempty"`
}

type contextEntry struct {
	ctx        ExecutionContext
	failStreak int
}

// Registry is the append-only, insertion-ordered set of discovered
// execution contexts. Insertion order is load-bearing: capture and
// injection walk it first-success-wins.
type Registry struct {
	mu      sync.Mutex
	entries []*contextEntry
	byID    map[int64]*contextEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[int64]*contextEntry)}
}

// Add records a newly announced context. Re-announcing a known id is a
// no-op.
func (r *Registry) Add(ctx ExecutionContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ctx.ID]; ok {
		return
	}
	e := &contextEntry{ctx: ctx}
	r.entries = append(r.entries, e)
	r.byID[ctx.ID] = e
}

// Len returns the number of known contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Ordered returns the contexts in insertion order, except that contexts
// with a long run of consecutive failures are deprioritized to the end
// (still in their own insertion order). Likely-stale contexts get tried
// last rather than deleted.
func (r *Registry) Ordered() []ExecutionContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ExecutionContext, 0, len(r.entries))
	var demoted []ExecutionContext
	for _, e := range r.entries {
		if e.failStreak >= failDemoteThreshold {
			demoted = append(demoted, e.ctx)
			continue
		}
		out = append(out, e.ctx)
	}
	return append(out, demoted...)
}

// RecordSuccess resets the failure streak for a context.
func (r *Registry) RecordSuccess(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.failStreak = 0
	}
}

// RecordFailure bumps the failure streak for a context.
func (r *Registry) RecordFailure(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.failStreak++
	}
}

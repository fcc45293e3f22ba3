// Package ledger holds the client-side completion state: one sparse
// per-day map per habit. It is the single authoritative local copy;
// the mutation coordinator and full-snapshot refreshes are its only
// writers.
package ledger

import (
	"sync"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

// ChangeFunc is notified after every successful write with the habit
// whose map changed. Used to drive snapshot persistence.
type ChangeFunc func(habitID string, completions domain.CompletionMap)

// Ledger is pure state storage, no I/O. All operations copy on the way
// in and out so callers can never alias internal maps.
type Ledger struct {
	mu       sync.RWMutex
	habits   map[string]domain.CompletionMap
	onChange ChangeFunc
}

func New() *Ledger {
	return &Ledger{
		habits: make(map[string]domain.CompletionMap),
	}
}

// OnChange registers a change hook. Must be called before the ledger
// is shared; there is no unregister.
func (l *Ledger) OnChange(fn ChangeFunc) {
	l.onChange = fn
}

// Get returns a copy of the habit's completion map. An unknown habit
// yields an empty map, never nil.
func (l *Ledger) Get(habitID string) domain.CompletionMap {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.habits[habitID].Clone()
}

// Set records one day's completion state. Idempotent; setting false is
// allowed and reads as "not completed".
func (l *Ledger) Set(habitID, dateKey string, completed bool) {
	l.mu.Lock()
	m, ok := l.habits[habitID]
	if !ok {
		m = make(domain.CompletionMap)
		l.habits[habitID] = m
	}
	m[dateKey] = completed
	snapshot := m.Clone()
	l.mu.Unlock()

	l.notify(habitID, snapshot)
}

// Replace swaps the habit's entire map, superseding any optimistic
// local state. Used for rollback and for full server snapshots.
func (l *Ledger) Replace(habitID string, completions domain.CompletionMap) {
	clone := completions.Clone()

	l.mu.Lock()
	l.habits[habitID] = clone
	snapshot := clone.Clone()
	l.mu.Unlock()

	l.notify(habitID, snapshot)
}

// Evict drops a habit's record entirely, for delete notifications.
func (l *Ledger) Evict(habitID string) {
	l.mu.Lock()
	delete(l.habits, habitID)
	l.mu.Unlock()

	l.notify(habitID, domain.CompletionMap{})
}

// Snapshot returns a deep copy of the whole ledger.
func (l *Ledger) Snapshot() map[string]domain.CompletionMap {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]domain.CompletionMap, len(l.habits))
	for id, m := range l.habits {
		out[id] = m.Clone()
	}
	return out
}

func (l *Ledger) notify(habitID string, completions domain.CompletionMap) {
	if l.onChange != nil {
		l.onChange(habitID, completions)
	}
}

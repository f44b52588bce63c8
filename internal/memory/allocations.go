package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Allocation is one tracked allocation record. Records are marked inactive
// by End, never deleted, until an explicit Clear.
type Allocation struct {
	ID          string
	Name        string
	InitialSize uint64
	CurrentSize uint64
	StartTime   time.Time
	Active      bool
}

// AllocationTracker owns the set of allocation records mutated by Begin,
// Update and End. Detection over the records is read-only and lives in the
// leak detector.
type AllocationTracker struct {
	mu      sync.RWMutex
	records map[string]*Allocation
	order   []string
}

// NewAllocationTracker constructs an empty tracker.
func NewAllocationTracker() *AllocationTracker {
	return &AllocationTracker{records: make(map[string]*Allocation)}
}

// Begin starts tracking a named allocation and returns its id.
func (t *AllocationTracker) Begin(name string, size uint64) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.records[id] = &Allocation{
		ID:          id,
		Name:        name,
		InitialSize: size,
		CurrentSize: size,
		StartTime:   time.Now(),
		Active:      true,
	}
	t.order = append(t.order, id)
	t.mu.Unlock()
	return id
}

// Update sets the current size of an active allocation. Unknown or inactive
// ids are ignored.
func (t *AllocationTracker) Update(id string, size uint64) {
	t.mu.Lock()
	if rec, ok := t.records[id]; ok && rec.Active {
		rec.CurrentSize = size
	}
	t.mu.Unlock()
}

// End marks an allocation inactive. The record is retained.
func (t *AllocationTracker) End(id string) {
	t.mu.Lock()
	if rec, ok := t.records[id]; ok {
		rec.Active = false
	}
	t.mu.Unlock()
}

// Active returns copies of the currently active records in begin order.
func (t *AllocationTracker) Active() []Allocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Allocation
	for _, id := range t.order {
		if rec := t.records[id]; rec != nil && rec.Active {
			out = append(out, *rec)
		}
	}
	return out
}

// All returns copies of every record, active or not, in begin order.
func (t *AllocationTracker) All() []Allocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Allocation, 0, len(t.order))
	for _, id := range t.order {
		if rec := t.records[id]; rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// Clear drops every record.
func (t *AllocationTracker) Clear() {
	t.mu.Lock()
	t.records = make(map[string]*Allocation)
	t.order = nil
	t.mu.Unlock()
}

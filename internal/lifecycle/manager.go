package lifecycle

import (
	"sync"
	"time"
)

// historyCapacity bounds the transition history kept per machine.
const historyCapacity = 100

// TransitionRecord is one entry in the bounded transition history.
type TransitionRecord struct {
	State    State
	At       time.Time
	Duration time.Duration // time spent in the previous state
}

// StateManager owns the single current state of one managed resource and a
// bounded history of recent transitions. It is the only writer of the
// current state; the service serializes mutations.
type StateManager struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	history []TransitionRecord
}

// NewStateManager starts a manager in the uninitialized state.
func NewStateManager() *StateManager {
	return &StateManager{current: StateUninitialized, since: time.Now()}
}

// Current returns the current state.
func (m *StateManager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *StateManager) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// set commits a new state and appends a history record. Oldest entries are
// evicted past historyCapacity.
func (m *StateManager) set(s State) TransitionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rec := TransitionRecord{State: s, At: now, Duration: now.Sub(m.since)}
	m.current = s
	m.since = now
	m.history = append(m.history, rec)
	if len(m.history) > historyCapacity {
		m.history = m.history[len(m.history)-historyCapacity:]
	}
	return rec
}

// History returns a copy of the retained transition records, oldest first.
func (m *StateManager) History() []TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TransitionRecord, len(m.history))
	copy(out, m.history)
	return out
}

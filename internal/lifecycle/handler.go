package lifecycle

import (
	"sync"
	"time"
)

// Hook runs code around a transition. Pre-hooks run before any state hook,
// post-hooks after the state commits. A non-nil error from a pre- or
// per-state hook aborts the transition; the machine keeps its prior state.
type Hook func(from, to State) error

// transitionHandler validates a proposed transition against the table, runs
// hooks in order (pre, per-target-state, post), and records timing and
// error statistics. It holds a non-owning reference to the StateManager; it
// never outlives the service that owns it.
type transitionHandler struct {
	table Table
	sm    *StateManager

	mu         sync.Mutex
	preHooks   []Hook
	postHooks  []Hook
	stateHooks map[State][]Hook

	transitions uint64
	errors      uint64
	totalTime   time.Duration
}

func newTransitionHandler(table Table, sm *StateManager) *transitionHandler {
	return &transitionHandler{
		table:      table,
		sm:         sm,
		stateHooks: make(map[State][]Hook),
	}
}

func (h *transitionHandler) addPreHook(fn Hook)  { h.mu.Lock(); h.preHooks = append(h.preHooks, fn); h.mu.Unlock() }
func (h *transitionHandler) addPostHook(fn Hook) { h.mu.Lock(); h.postHooks = append(h.postHooks, fn); h.mu.Unlock() }

func (h *transitionHandler) addStateHook(s State, fn Hook) {
	h.mu.Lock()
	h.stateHooks[s] = append(h.stateHooks[s], fn)
	h.mu.Unlock()
}

// execute performs one validated transition. The caller must already hold
// the service transition lock so validate-then-act is atomic.
func (h *transitionHandler) execute(to State) (TransitionRecord, error) {
	from := h.sm.Current()
	if !h.table.CanTransition(from, to) {
		return TransitionRecord{}, ErrInvalidTransition(from, to)
	}

	h.mu.Lock()
	pre := append([]Hook(nil), h.preHooks...)
	state := append([]Hook(nil), h.stateHooks[to]...)
	post := append([]Hook(nil), h.postHooks...)
	h.mu.Unlock()

	start := time.Now()
	for _, fn := range pre {
		if err := fn(from, to); err != nil {
			h.recordError()
			return TransitionRecord{}, ErrHookFailure(from, err)
		}
	}
	for _, fn := range state {
		if err := fn(from, to); err != nil {
			h.recordError()
			return TransitionRecord{}, ErrHookFailure(from, err)
		}
	}

	rec := h.sm.set(to)

	// Post-hooks observe the committed state; their errors are counted but
	// cannot roll the transition back.
	for _, fn := range post {
		if err := fn(from, to); err != nil {
			h.recordError()
		}
	}

	h.mu.Lock()
	h.transitions++
	h.totalTime += time.Since(start)
	h.mu.Unlock()
	return rec, nil
}

func (h *transitionHandler) recordError() {
	h.mu.Lock()
	h.errors++
	h.mu.Unlock()
}

// timing returns (total transitions, errors, mean transition wall time).
func (h *transitionHandler) timing() (uint64, uint64, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var avg time.Duration
	if h.transitions > 0 {
		avg = h.totalTime / time.Duration(h.transitions)
	}
	return h.transitions, h.errors, avg
}

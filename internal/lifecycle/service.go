package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stats is a read-only statistics snapshot of one machine.
type Stats struct {
	State                 State
	TotalTransitions      uint64
	ErrorCount            uint64
	AverageTransitionTime time.Duration
	ObserverCount         int
	LastError             string
}

// ValidationResult lists structural violations of the transition table.
// Violations are reported, not prevented.
type ValidationResult struct {
	Violations []string
}

// OK reports whether the table passed every structural check.
func (v ValidationResult) OK() bool { return len(v.Violations) == 0 }

// Config carries construction parameters for a Service.
type Config struct {
	// Table defaults to DefaultTable when nil.
	Table Table
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Service drives a single managed resource through its lifecycle. It
// guarantees at most one in-flight transition at a time: validate-then-act
// runs under one mutex, so a transition valid at validation time is still
// valid at commit time. Observer delivery happens after the state lock is
// released, in transition order.
type Service struct {
	table     Table
	sm        *StateManager
	handler   *transitionHandler
	observers observerRegistry
	log       zerolog.Logger

	// transitionMu serializes validate-then-act; notifyMu preserves
	// delivery order (acquired before transitionMu is released).
	transitionMu sync.Mutex
	notifyMu     sync.Mutex

	lastMu  sync.Mutex
	lastErr string
}

// NewService constructs a machine over the given table. Recovery from hook
// failures depends on the error state being reachable from every other
// state, so that is validated here rather than left advisory: a table
// without those edges is rejected at construction.
func NewService(cfg Config) (*Service, error) {
	table := cfg.Table
	if table == nil {
		table = DefaultTable()
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	sm := NewStateManager()
	s := &Service{
		table:   table,
		sm:      sm,
		handler: newTransitionHandler(table, sm),
		log:     logger.With().Str("component", "lifecycle").Logger(),
	}
	for _, st := range AllStates() {
		if st == StateError {
			continue
		}
		if _, ok := table[st]; !ok {
			continue // not in this table's domain
		}
		if _, reachable := table.ShortestPath(st, StateError); !reachable {
			return nil, fmt.Errorf("malformed table: error state not reachable from %s", st)
		}
	}
	return s, nil
}

// CurrentState returns the machine's current state.
func (s *Service) CurrentState() State { return s.sm.Current() }

// Allowed returns the states directly reachable from the current state,
// sorted for stable output.
func (s *Service) Allowed() []State {
	out := s.table.Allowed(s.sm.Current())
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// History returns the retained transition records, oldest first.
func (s *Service) History() []TransitionRecord { return s.sm.History() }

// AddObserver registers an observer for state changes and errors.
func (s *Service) AddObserver(o Observer) { s.observers.add(o) }

// RemoveObserver unregisters a previously added observer.
func (s *Service) RemoveObserver(o Observer) { s.observers.remove(o) }

// AddPreHook registers a hook that runs before every transition.
func (s *Service) AddPreHook(fn Hook) { s.handler.addPreHook(fn) }

// AddPostHook registers a hook that runs after every committed transition.
func (s *Service) AddPostHook(fn Hook) { s.handler.addPostHook(fn) }

// AddStateHook registers a hook that runs when entering the given state.
func (s *Service) AddStateHook(st State, fn Hook) { s.handler.addStateHook(st, fn) }

// TransitionTo performs one validated transition to target. On hook failure
// the machine keeps its prior state, the failure is reported to observers,
// and a separately validated transition to error is attempted; the original
// hook error is returned either way.
func (s *Service) TransitionTo(target State) error {
	s.transitionMu.Lock()
	err := s.transitionLocked(target)
	if err == nil {
		return nil
	}
	if IsHookFailure(err) {
		from := s.sm.Current()
		s.recoverLocked(err, from)
		return err
	}
	s.transitionMu.Unlock()
	return err
}

// transitionLocked commits target and, on success, hands off to ordered
// notification (which releases the transition lock). On failure the caller
// still holds the transition lock.
func (s *Service) transitionLocked(target State) error {
	from := s.sm.Current()
	_, err := s.handler.execute(target)
	if err != nil {
		return err
	}
	s.log.Debug().Str("from", string(from)).Str("to", string(target)).Msg("transition")
	s.notifyStateChanged(from, target)
	return nil
}

// notifyStateChanged delivers in transition order: the notify lock is taken
// before the transition lock is released, so a later transition cannot
// overtake this event.
func (s *Service) notifyStateChanged(from, to State) {
	s.notifyMu.Lock()
	s.transitionMu.Unlock()
	defer s.notifyMu.Unlock()
	s.observers.notifyStateChanged(from, to)
}

// recoverLocked handles a hook failure while the transition lock is held:
// report the error, then force a validated transition to the error state.
// The construction-time check guarantees that edge exists, so a rejection
// here indicates a structurally defective table and is logged loudly.
func (s *Service) recoverLocked(cause error, from State) {
	s.setLastError(cause)
	if from == StateError {
		s.notifyError(cause, from)
		return
	}
	_, err := s.handler.execute(StateError)
	if err != nil {
		s.log.Error().Err(err).Str("from", string(from)).
			Msg("structural defect: error state rejected during hook recovery")
		s.notifyError(cause, from)
		return
	}
	s.log.Warn().Err(cause).Str("from", string(from)).Msg("hook failed, forced error state")
	s.notifyMu.Lock()
	s.transitionMu.Unlock()
	defer s.notifyMu.Unlock()
	s.observers.notifyError(cause, from)
	s.observers.notifyStateChanged(from, StateError)
}

// notifyError reports an error without a state change, preserving order.
func (s *Service) notifyError(err error, state State) {
	s.notifyMu.Lock()
	s.transitionMu.Unlock()
	defer s.notifyMu.Unlock()
	s.observers.notifyError(err, state)
}

// ProgressToNext advances along the linear happy path. States without a
// happy-path successor (ready, executing, error, cleanup) are a successful
// no-op.
func (s *Service) ProgressToNext() error {
	s.transitionMu.Lock()
	next, ok := NextOnHappyPath(s.sm.Current())
	if !ok {
		s.transitionMu.Unlock()
		return nil
	}
	return s.finishTransition(next)
}

// finishTransition is the shared tail of operations that already hold the
// transition lock and want TransitionTo's failure handling.
func (s *Service) finishTransition(target State) error {
	err := s.transitionLocked(target)
	if err == nil {
		return nil
	}
	if IsHookFailure(err) {
		s.recoverLocked(err, s.sm.Current())
		return err
	}
	s.transitionMu.Unlock()
	return err
}

// HandleError transitions to the error state through the normal validated
// path and notifies observers with the originating state and error.
func (s *Service) HandleError(cause error) error {
	s.transitionMu.Lock()
	from := s.sm.Current()
	s.setLastError(cause)
	if from == StateError {
		s.notifyError(cause, from)
		return nil
	}
	_, err := s.handler.execute(StateError)
	if err != nil {
		s.transitionMu.Unlock()
		return err
	}
	s.log.Warn().Err(cause).Str("from", string(from)).Msg("error state entered")
	s.notifyMu.Lock()
	s.transitionMu.Unlock()
	defer s.notifyMu.Unlock()
	s.observers.notifyError(cause, from)
	s.observers.notifyStateChanged(from, StateError)
	return nil
}

// Reset drives the machine back to uninitialized via cleanup. Already
// uninitialized is a no-op.
func (s *Service) Reset() error {
	if s.sm.Current() == StateUninitialized {
		return nil
	}
	if s.sm.Current() != StateCleanup {
		if err := s.SkipToState(StateCleanup); err != nil {
			return err
		}
	}
	return s.TransitionTo(StateUninitialized)
}

// PathTo returns the shortest transition path from the current state to
// target, excluding the current state.
func (s *Service) PathTo(target State) ([]State, error) {
	from := s.sm.Current()
	path, ok := s.table.ShortestPath(from, target)
	if !ok {
		return nil, ErrNoPath(from, target)
	}
	return path, nil
}

// SkipToState computes the shortest path to target with a breadth-first
// search over the table and executes each hop in sequence.
func (s *Service) SkipToState(target State) error {
	for {
		from := s.sm.Current()
		if from == target {
			return nil
		}
		path, ok := s.table.ShortestPath(from, target)
		if !ok {
			return ErrNoPath(from, target)
		}
		if err := s.TransitionTo(path[0]); err != nil {
			return err
		}
	}
}

// ExecuteStateful runs op while the machine is in the executing state. It
// requires the current state to be ready, transitions to executing, runs
// op, and returns to ready on success or to error on failure (re-raising
// op's error). Cancellation of op still lands in a well-defined state.
func (s *Service) ExecuteStateful(ctx context.Context, op func(context.Context) error) error {
	if cur := s.sm.Current(); cur != StateReady {
		return ErrInvalidState(fmt.Sprintf("cannot execute in state %s: machine not ready", cur))
	}
	if err := s.TransitionTo(StateExecuting); err != nil {
		return err
	}
	opErr := op(ctx)
	if opErr == nil {
		return s.TransitionTo(StateReady)
	}
	if err := s.HandleError(opErr); err != nil {
		s.log.Error().Err(err).Msg("error transition rejected after failed execution")
	}
	return opErr
}

// Validate runs the structural health checks over the table: every state in
// the domain has at least one outgoing edge (designed terminals aside, the
// default table has none), the error state is reachable from every state,
// and no state is orphaned (declared but never referenced as source or
// target). It mutates nothing.
func (s *Service) Validate() ValidationResult {
	var res ValidationResult
	referenced := make(map[State]bool)
	for from, tos := range s.table {
		if len(tos) == 0 {
			res.Violations = append(res.Violations, fmt.Sprintf("state %s has no outgoing transitions", from))
		}
		referenced[from] = true
		for to := range tos {
			referenced[to] = true
		}
	}
	for _, st := range AllStates() {
		if st == StateError {
			continue
		}
		if _, ok := s.table[st]; !ok && !referenced[st] {
			res.Violations = append(res.Violations, fmt.Sprintf("state %s is orphaned", st))
			continue
		}
		if _, reachable := s.table.ShortestPath(st, StateError); !reachable {
			res.Violations = append(res.Violations, fmt.Sprintf("error not reachable from %s", st))
		}
	}
	sort.Strings(res.Violations)
	return res
}

func (s *Service) setLastError(err error) {
	s.lastMu.Lock()
	s.lastErr = err.Error()
	s.lastMu.Unlock()
}

func (s *Service) getLastError() string {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastErr
}

// Stats returns an aggregate statistics snapshot.
func (s *Service) Stats() Stats {
	transitions, errs, avg := s.handler.timing()
	return Stats{
		State:                 s.sm.Current(),
		TotalTransitions:      transitions,
		ErrorCount:            errs,
		AverageTransitionTime: avg,
		ObserverCount:         s.observers.count(),
		LastError:             s.getLastError(),
	}
}

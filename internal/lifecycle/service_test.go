package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(Config{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

// driveToReady walks the happy path from uninitialized to ready.
func driveToReady(t *testing.T, s *Service) {
	t.Helper()
	for s.CurrentState() != StateReady {
		if err := s.ProgressToNext(); err != nil {
			t.Fatalf("ProgressToNext from %s: %v", s.CurrentState(), err)
		}
	}
}

func TestInitialState(t *testing.T) {
	s := newTestService(t)
	if got := s.CurrentState(); got != StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", got)
	}
}

func TestHappyPathReachesReadyInTwelveSteps(t *testing.T) {
	s := newTestService(t)
	want := []State{
		StateDiscovered, StateDownloading, StateDownloaded, StateExtracting,
		StateExtracted, StateValidating, StateValidated, StateInitializing,
		StateInitialized, StateLoading, StateLoaded, StateReady,
	}
	for i, w := range want {
		if err := s.ProgressToNext(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := s.CurrentState(); got != w {
			t.Fatalf("step %d: expected %s got %s", i, w, got)
		}
	}
	// Terminal in the happy path: further calls are successful no-ops.
	if err := s.ProgressToNext(); err != nil {
		t.Fatalf("terminal ProgressToNext: %v", err)
	}
	if got := s.CurrentState(); got != StateReady {
		t.Fatalf("expected ready after terminal no-op, got %s", got)
	}
	if st := s.Stats(); st.TotalTransitions != 12 {
		t.Fatalf("expected 12 transitions, got %d", st.TotalTransitions)
	}
}

func TestInvalidTransitionRejectedAndStateUnchanged(t *testing.T) {
	s := newTestService(t)
	err := s.TransitionTo(StateReady)
	if !IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if got := s.CurrentState(); got != StateUninitialized {
		t.Fatalf("state changed after rejected transition: %s", got)
	}
	if st := s.Stats(); st.TotalTransitions != 0 {
		t.Fatalf("rejected transition was counted: %d", st.TotalTransitions)
	}
}

func TestTransitionSoundnessExhaustive(t *testing.T) {
	table := DefaultTable()
	for _, from := range AllStates() {
		for _, to := range AllStates() {
			if table.CanTransition(from, to) {
				continue
			}
			s := newTestService(t)
			if from != StateUninitialized {
				if err := s.SkipToState(from); err != nil {
					t.Fatalf("skip to %s: %v", from, err)
				}
			}
			err := s.TransitionTo(to)
			if !IsInvalidTransition(err) {
				t.Fatalf("%s -> %s: expected invalid transition, got %v", from, to, err)
			}
			if got := s.CurrentState(); got != from {
				t.Fatalf("%s -> %s: state moved to %s", from, to, got)
			}
		}
	}
}

func TestSidePaths(t *testing.T) {
	t.Run("skip download when model local", func(t *testing.T) {
		s := newTestService(t)
		if err := s.TransitionTo(StateDiscovered); err != nil {
			t.Fatalf("to discovered: %v", err)
		}
		if err := s.TransitionTo(StateValidated); err != nil {
			t.Fatalf("discovered -> validated: %v", err)
		}
	})
	t.Run("skip extraction for plain file", func(t *testing.T) {
		s := newTestService(t)
		for _, st := range []State{StateDiscovered, StateDownloading, StateDownloaded, StateValidating} {
			if err := s.TransitionTo(st); err != nil {
				t.Fatalf("to %s: %v", st, err)
			}
		}
	})
	t.Run("retry from discovery after error", func(t *testing.T) {
		s := newTestService(t)
		if err := s.TransitionTo(StateDiscovered); err != nil {
			t.Fatalf("to discovered: %v", err)
		}
		if err := s.HandleError(errors.New("download checksum mismatch")); err != nil {
			t.Fatalf("handle error: %v", err)
		}
		if err := s.TransitionTo(StateDiscovered); err != nil {
			t.Fatalf("error -> discovered: %v", err)
		}
	})
}

func TestHandleErrorFromEveryState(t *testing.T) {
	for _, from := range AllStates() {
		if from == StateError {
			continue
		}
		s := newTestService(t)
		if from != StateUninitialized {
			if err := s.SkipToState(from); err != nil {
				t.Fatalf("skip to %s: %v", from, err)
			}
		}
		if err := s.HandleError(errors.New("boom")); err != nil {
			t.Fatalf("HandleError from %s: %v", from, err)
		}
		if got := s.CurrentState(); got != StateError {
			t.Fatalf("expected error state from %s, got %s", from, got)
		}
	}
}

func TestResetReturnsToUninitialized(t *testing.T) {
	s := newTestService(t)
	driveToReady(t, s)
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := s.CurrentState(); got != StateUninitialized {
		t.Fatalf("expected uninitialized after reset, got %s", got)
	}
	// Idempotent.
	if err := s.Reset(); err != nil {
		t.Fatalf("second reset: %v", err)
	}
}

func TestSkipToStateExecutesShortestPath(t *testing.T) {
	s := newTestService(t)
	if err := s.TransitionTo(StateDiscovered); err != nil {
		t.Fatalf("to discovered: %v", err)
	}
	path, err := s.PathTo(StateReady)
	if err != nil {
		t.Fatalf("PathTo: %v", err)
	}
	// The discovered -> validated shortcut makes this the shortest route.
	want := []State{StateValidated, StateInitializing, StateInitialized, StateLoading, StateLoaded, StateReady}
	if len(path) != len(want) {
		t.Fatalf("path length: got %v want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path[%d]: got %s want %s", i, path[i], want[i])
		}
	}
	if err := s.SkipToState(StateReady); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if got := s.CurrentState(); got != StateReady {
		t.Fatalf("expected ready, got %s", got)
	}
}

func TestSkipToUnreachableState(t *testing.T) {
	table := Table{
		StateUninitialized: {StateError: true},
		StateError:         {StateCleanup: true},
		StateCleanup:       {StateError: true},
		// ready declared but unreachable from uninitialized
		StateReady: {StateError: true},
	}
	s, err := NewService(Config{Table: table})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := s.SkipToState(StateReady); !IsNoPath(err) {
		t.Fatalf("expected no-path error, got %v", err)
	}
}

func TestConstructionRejectsTableWithoutErrorRecovery(t *testing.T) {
	// loading has no route to error: recovery would deadlock.
	table := Table{
		StateUninitialized: {StateLoading: true, StateError: true},
		StateLoading:       {StateLoaded: true},
		StateLoaded:        {StateError: true},
		StateError:         {StateUninitialized: true},
	}
	if _, err := NewService(Config{Table: table}); err == nil {
		t.Fatalf("expected construction to reject table without error recovery")
	}
}

func TestHookFailureAbortsAndForcesErrorState(t *testing.T) {
	s := newTestService(t)
	cause := errors.New("disk full")
	s.AddStateHook(StateDiscovered, func(from, to State) error { return cause })

	var observed []error
	obs := &ObserverFuncs{Error: func(err error, state State) { observed = append(observed, err) }}
	s.AddObserver(obs)

	err := s.TransitionTo(StateDiscovered)
	if !IsHookFailure(err) {
		t.Fatalf("expected hook failure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("hook failure does not wrap cause: %v", err)
	}
	if got := s.CurrentState(); got != StateError {
		t.Fatalf("expected forced error state, got %s", got)
	}
	if len(observed) == 0 {
		t.Fatalf("observer did not receive the hook error")
	}
}

func TestHooksRunInOrder(t *testing.T) {
	s := newTestService(t)
	var order []string
	s.AddPreHook(func(from, to State) error { order = append(order, "pre"); return nil })
	s.AddStateHook(StateDiscovered, func(from, to State) error { order = append(order, "state"); return nil })
	s.AddPostHook(func(from, to State) error { order = append(order, "post"); return nil })
	if err := s.TransitionTo(StateDiscovered); err != nil {
		t.Fatalf("transition: %v", err)
	}
	want := []string{"pre", "state", "post"}
	if len(order) != len(want) {
		t.Fatalf("hook order: got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order: got %v want %v", order, want)
		}
	}
}

func TestExecuteStateful(t *testing.T) {
	t.Run("requires ready", func(t *testing.T) {
		s := newTestService(t)
		err := s.ExecuteStateful(context.Background(), func(context.Context) error { return nil })
		if !IsInvalidState(err) {
			t.Fatalf("expected invalid state error, got %v", err)
		}
	})
	t.Run("returns to ready on success", func(t *testing.T) {
		s := newTestService(t)
		driveToReady(t, s)
		var sawExecuting bool
		err := s.ExecuteStateful(context.Background(), func(context.Context) error {
			sawExecuting = s.CurrentState() == StateExecuting
			return nil
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !sawExecuting {
			t.Fatalf("op did not run in executing state")
		}
		if got := s.CurrentState(); got != StateReady {
			t.Fatalf("expected ready after success, got %s", got)
		}
	})
	t.Run("lands in error on failure and re-raises", func(t *testing.T) {
		s := newTestService(t)
		driveToReady(t, s)
		cause := errors.New("adapter crashed")
		err := s.ExecuteStateful(context.Background(), func(context.Context) error { return cause })
		if !errors.Is(err, cause) {
			t.Fatalf("expected original error, got %v", err)
		}
		if got := s.CurrentState(); got != StateError {
			t.Fatalf("expected error state, got %s", got)
		}
	})
	t.Run("cancellation still lands in a defined state", func(t *testing.T) {
		s := newTestService(t)
		driveToReady(t, s)
		ctx, cancel := context.WithCancel(context.Background())
		err := s.ExecuteStateful(ctx, func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if got := s.CurrentState(); got != StateError {
			t.Fatalf("expected error state after cancellation, got %s", got)
		}
	})
}

func TestValidateDefaultTableIsClean(t *testing.T) {
	s := newTestService(t)
	res := s.Validate()
	if !res.OK() {
		t.Fatalf("default table has violations: %v", res.Violations)
	}
}

func TestValidateReportsViolations(t *testing.T) {
	table := Table{
		StateUninitialized: {StateError: true},
		StateError:         {StateUninitialized: true},
		// dead end with no outgoing edges
		StateLoaded: {},
	}
	s, err := NewService(Config{Table: table})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	res := s.Validate()
	if res.OK() {
		t.Fatalf("expected violations")
	}
}

func TestObserverNotification(t *testing.T) {
	s := newTestService(t)
	var mu sync.Mutex
	var events [][2]State
	obs := &ObserverFuncs{StateChanged: func(from, to State) {
		mu.Lock()
		events = append(events, [2]State{from, to})
		mu.Unlock()
	}}
	s.AddObserver(obs)
	if err := s.TransitionTo(StateDiscovered); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := s.TransitionTo(StateDownloading); err != nil {
		t.Fatalf("transition: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0] != [2]State{StateUninitialized, StateDiscovered} ||
		events[1] != [2]State{StateDiscovered, StateDownloading} {
		t.Fatalf("events out of order: %v", events)
	}
	s.RemoveObserver(obs)
	if err := s.TransitionTo(StateDownloaded); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("removed observer still notified")
	}
	if s.Stats().ObserverCount != 0 {
		t.Fatalf("observer count not updated")
	}
}

func TestConcurrentTransitionsSerialized(t *testing.T) {
	s := newTestService(t)
	var wg sync.WaitGroup
	succ := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.TransitionTo(StateDiscovered); err == nil {
				succ <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succ)
	n := 0
	for range succ {
		n++
	}
	// Only the first caller can win uninitialized -> discovered.
	if n != 1 {
		t.Fatalf("expected exactly 1 successful transition, got %d", n)
	}
	if got := s.CurrentState(); got != StateDiscovered {
		t.Fatalf("expected discovered, got %s", got)
	}
}

func TestHistoryBounded(t *testing.T) {
	s := newTestService(t)
	driveToReady(t, s)
	for i := 0; i < 120; i++ {
		if err := s.TransitionTo(StateExecuting); err != nil {
			t.Fatalf("to executing: %v", err)
		}
		if err := s.TransitionTo(StateReady); err != nil {
			t.Fatalf("to ready: %v", err)
		}
	}
	h := s.History()
	if len(h) != historyCapacity {
		t.Fatalf("expected history capped at %d, got %d", historyCapacity, len(h))
	}
	if h[len(h)-1].State != StateReady {
		t.Fatalf("last record should be ready, got %s", h[len(h)-1].State)
	}
}

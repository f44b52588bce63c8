package lifecycle

// State represents one stage in a managed model's life, from discovery
// through execution to cleanup.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateDiscovered    State = "discovered"
	StateDownloading   State = "downloading"
	StateDownloaded    State = "downloaded"
	StateExtracting    State = "extracting"
	StateExtracted     State = "extracted"
	StateValidating    State = "validating"
	StateValidated     State = "validated"
	StateInitializing  State = "initializing"
	StateInitialized   State = "initialized"
	StateLoading       State = "loading"
	StateLoaded        State = "loaded"
	StateReady         State = "ready"
	StateExecuting     State = "executing"
	StateError         State = "error"
	StateCleanup       State = "cleanup"
)

// AllStates lists every state in the default table's domain.
func AllStates() []State {
	return []State{
		StateUninitialized, StateDiscovered, StateDownloading, StateDownloaded,
		StateExtracting, StateExtracted, StateValidating, StateValidated,
		StateInitializing, StateInitialized, StateLoading, StateLoaded,
		StateReady, StateExecuting, StateError, StateCleanup,
	}
}

// Table is an immutable mapping from each state to the set of states
// directly reachable from it.
type Table map[State]map[State]bool

// DefaultTable returns the transition table for the standard model lifecycle:
//
//	uninitialized → discovered → downloading → downloaded → extracting →
//	extracted → validating → validated → initializing → initialized →
//	loading → loaded → ready ⇄ executing
//
// Side paths:
//
//	discovered → validated    : model already local, skip download
//	downloaded → validating   : not an archive, skip extraction
//	any non-terminal → error
//	error → cleanup → uninitialized  : full retry
//	error → discovered               : retry from discovery
func DefaultTable() Table {
	t := make(Table, 16)
	add := func(from State, to ...State) {
		m := t[from]
		if m == nil {
			m = make(map[State]bool, len(to))
			t[from] = m
		}
		for _, s := range to {
			m[s] = true
		}
	}

	add(StateUninitialized, StateDiscovered)
	add(StateDiscovered, StateDownloading, StateValidated)
	add(StateDownloading, StateDownloaded)
	add(StateDownloaded, StateExtracting, StateValidating)
	add(StateExtracting, StateExtracted)
	add(StateExtracted, StateValidating)
	add(StateValidating, StateValidated)
	add(StateValidated, StateInitializing)
	add(StateInitializing, StateInitialized)
	add(StateInitialized, StateLoading)
	add(StateLoading, StateLoaded)
	add(StateLoaded, StateReady)
	add(StateReady, StateExecuting, StateCleanup)
	add(StateExecuting, StateReady)
	add(StateError, StateCleanup, StateDiscovered)
	add(StateCleanup, StateUninitialized)

	// Every non-terminal state can fall into error.
	for _, s := range AllStates() {
		if s == StateError {
			continue
		}
		add(s, StateError)
	}
	return t
}

// happyPath maps each state to its successor on the linear happy path.
// Terminal states (ready, executing, error, cleanup) have no entry.
var happyPath = map[State]State{
	StateUninitialized: StateDiscovered,
	StateDiscovered:    StateDownloading,
	StateDownloading:   StateDownloaded,
	StateDownloaded:    StateExtracting,
	StateExtracting:    StateExtracted,
	StateExtracted:     StateValidating,
	StateValidating:    StateValidated,
	StateValidated:     StateInitializing,
	StateInitializing:  StateInitialized,
	StateInitialized:   StateLoading,
	StateLoading:       StateLoaded,
	StateLoaded:        StateReady,
}

// NextOnHappyPath returns the linear successor of s, if any.
func NextOnHappyPath(s State) (State, bool) {
	n, ok := happyPath[s]
	return n, ok
}

// Allowed returns the set of states directly reachable from s.
func (t Table) Allowed(s State) []State {
	out := make([]State, 0, len(t[s]))
	for to, ok := range t[s] {
		if ok {
			out = append(out, to)
		}
	}
	return out
}

// CanTransition reports whether from → to is in the table.
func (t Table) CanTransition(from, to State) bool {
	return t[from][to]
}

// ShortestPath runs a breadth-first search from → to and returns the
// sequence of states to visit, excluding from itself. ok is false when no
// route exists. The table is small and static, so the search is performed
// on every call.
func (t Table) ShortestPath(from, to State) ([]State, bool) {
	if from == to {
		return nil, true
	}
	prev := map[State]State{from: from}
	queue := []State{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range t[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				var path []State
				for s := to; s != from; s = prev[s] {
					path = append(path, s)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

package lifecycle

import "sync"

// Observer receives state-change and error notifications from a machine.
// Implementations must be lightweight and non-blocking; callbacks run
// outside the transition lock, in transition order. A callback must not
// synchronously drive a new transition on the same machine; hand that off
// to another goroutine.
type Observer interface {
	OnStateChanged(from, to State)
	OnError(err error, state State)
}

// observerRegistry fans out notifications to registered observers. An
// explicit list, not an ambient event bus: each machine owns its own.
type observerRegistry struct {
	mu        sync.RWMutex
	observers []Observer
}

func (r *observerRegistry) add(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *observerRegistry) remove(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.observers {
		if cur == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *observerRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// snapshot returns the observer list as of now; notification iterates the
// snapshot so a callback may add or remove observers without deadlock.
func (r *observerRegistry) snapshot() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Observer, len(r.observers))
	copy(out, r.observers)
	return out
}

func (r *observerRegistry) notifyStateChanged(from, to State) {
	for _, o := range r.snapshot() {
		o.OnStateChanged(from, to)
	}
}

func (r *observerRegistry) notifyError(err error, state State) {
	for _, o := range r.snapshot() {
		o.OnError(err, state)
	}
}

// ObserverFuncs adapts plain callbacks to the Observer interface. Register
// it by pointer so removal can match on identity.
type ObserverFuncs struct {
	StateChanged func(from, to State)
	Error        func(err error, state State)
}

func (o *ObserverFuncs) OnStateChanged(from, to State) {
	if o.StateChanged != nil {
		o.StateChanged(from, to)
	}
}

func (o *ObserverFuncs) OnError(err error, state State) {
	if o.Error != nil {
		o.Error(err, state)
	}
}

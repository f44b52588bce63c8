package httpapi

import "context"

// serverBaseCtx is canceled on daemon shutdown so in-flight execute
// requests stop with the process.
var serverBaseCtx = context.Background()

// SetBaseContext installs the shutdown context used by long-running
// handlers. A nil ctx restores the default Background context.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context done when either parent is. Callers must
// invoke the returned cancel to stop the bridging goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	joined, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		select {
		case <-a.Done():
		case <-b.Done():
		case <-joined.Done():
		}
	}()
	return joined, cancel
}

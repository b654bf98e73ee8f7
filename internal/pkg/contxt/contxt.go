// Package contxt provides the process-lifetime contexts the commands run
// under.
package contxt

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// WithShutdown returns a context cancelled on SIGINT or SIGTERM. Serve mode
// runs the scheduler and every pass under it; a signal stops the scheduler
// and unwinds in-flight passes, and the command exits clean.
func WithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// WithPassTimeout bounds a single run-to-completion pass.
func WithPassTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

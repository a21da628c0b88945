package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// SignalContext is cancelled on the first SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ShutdownContext bounds cleanup that runs after ctx has been cancelled. It keeps ctx's
// values but not its cancellation.
func ShutdownContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

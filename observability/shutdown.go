package observability

import (
	"context"
	"fmt"
	"time"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for pending spans
// and metrics to export.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown flushes and stops provider, giving up after timeout (or
// DefaultShutdownTimeout when timeout is not positive). Cancelling ctx stops
// the wait early. A nil provider is ignored.
func Shutdown(ctx context.Context, provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrShutdown, err)
	}
	return nil
}

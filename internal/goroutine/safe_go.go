package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/helvetio/marketplace-backend/internal/logger"
)

// SafeGo runs fn in a goroutine and turns a panic into an error log instead
// of a crashed process. Used for fire-and-forget work such as notification
// delivery.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.WithField("stack", string(debug.Stack())).
					Errorf("panic in goroutine: %v", r)
			}
		}()
		fn()
	}()
}

// SafeGoWithContext is SafeGo for functions that take a context.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	SafeGo(func() { fn(ctx) })
}

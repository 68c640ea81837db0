// Package global holds the process-wide default limiter behind an explicit
// accessor. Prefer constructing and passing your own limiter; the default
// exists for callers that genuinely want one shared instance.
package global

import (
	"sync/atomic"

	"github.com/parraconnect/ratelimit/limiter"
)

func defaultLimiter() *atomic.Value {
	v := &atomic.Value{}
	// Memory-backed with the default policy table. The sweep is not started
	// here; callers owning the lifecycle install their own instance via
	// SetLimiter after calling StartSweep on its store.
	v.Store(limiter.New(limiter.NewMemoryStore()))
	return v
}

var globalLimiter = defaultLimiter()

// SetLimiter sets the global limiter instance.
func SetLimiter(rl *limiter.RateLimiter) {
	globalLimiter.Store(rl)
}

// GetLimiter retrieves the current global limiter instance.
func GetLimiter() *limiter.RateLimiter {
	return globalLimiter.Load().(*limiter.RateLimiter)
}

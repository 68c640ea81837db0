// Package timing provides throttle and debounce wrappers for event handlers.
// These are timing utilities, not rate limiters: they coalesce calls instead
// of admitting or rejecting them.
package timing

import (
	"sync"
	"time"
)

// Throttle wraps fn so it runs immediately when at least delay has elapsed
// since the last run, and otherwise schedules a single trailing run for the
// remainder of the delay. Calls landing while a trailing run is pending
// coalesce into it, keeping the latest argument.
func Throttle[T any](fn func(T), delay time.Duration) func(T) {
	var (
		mu      sync.Mutex
		last    time.Time
		timer   *time.Timer
		pending T
	)

	return func(arg T) {
		mu.Lock()
		now := time.Now()

		if now.Sub(last) >= delay {
			last = now
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			mu.Unlock()
			fn(arg)
			return
		}

		pending = arg
		if timer == nil {
			timer = time.AfterFunc(delay-now.Sub(last), func() {
				mu.Lock()
				trailing := pending
				last = time.Now()
				timer = nil
				mu.Unlock()
				fn(trailing)
			})
		}
		mu.Unlock()
	}
}

// Debounce wraps fn so it runs once, delay after the most recent call.
// Every call replaces the pending run and its argument.
func Debounce[T any](fn func(T), delay time.Duration) func(T) {
	var (
		mu      sync.Mutex
		timer   *time.Timer
		pending T
	)

	return func(arg T) {
		mu.Lock()
		defer mu.Unlock()

		pending = arg
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			mu.Lock()
			latest := pending
			timer = nil
			mu.Unlock()
			fn(latest)
		})
	}
}

// Package debounce coalesces a burst of event notifications into a single
// callback invocation, firing only once the burst has settled for a quiet
// period. Unlike a fixed-window batcher, every notification resets the
// window: a never-ending trickle of events defers firing indefinitely.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fire at most once per settled burst of Notify calls. The
// zero value is not usable; construct with New.
type Debouncer struct {
	window time.Duration
	fire   func()

	eventCh chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	stopper sync.Once
}

// New starts a Debouncer's background goroutine. fire is invoked on its own
// goroutine each time a burst settles; it must not block indefinitely, and
// must tolerate being called concurrently with itself if fire is slow
// relative to window (the caller is expected to serialize via its own
// in-progress flag, as the watcher's snapshot_in_progress does).
func New(window time.Duration, fire func()) *Debouncer {
	d := &Debouncer{
		window:  window,
		fire:    fire,
		eventCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify records an event, resetting the settle window. Non-blocking: a
// pending, not-yet-consumed notification already covers any new event.
func (d *Debouncer) Notify() {
	select {
	case d.eventCh <- struct{}{}:
	default:
	}
}

// Close stops the background goroutine. Pending, unfired bursts are
// dropped. Safe to call more than once.
func (d *Debouncer) Close() {
	d.stopper.Do(func() {
		close(d.stopCh)
	})
	<-d.done
}

func (d *Debouncer) run() {
	defer close(d.done)

	timer := time.NewTimer(d.window)
	if !timer.Stop() {
		<-timer.C
	}
	active := false

	for {
		select {
		case <-d.stopCh:
			if active && !timer.Stop() {
				<-timer.C
			}
			return

		case <-d.eventCh:
			if active && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(d.window)
			active = true

		case <-timer.C:
			active = false
			go d.fire()
		}
	}
}

package address

import (
	"sync"
	"time"
)

const DefaultQuietPeriod = 500 * time.Millisecond

// Debouncer runs the last function passed to Call once no further call has arrived for the
// quiet period. Every Call restarts the timer.
type Debouncer struct {
	quiet time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func NewDebouncer(quiet time.Duration) *Debouncer {
	return &Debouncer{quiet: quiet}
}

func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.cancelLocked()

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.quiet, func() {
		defer d.wg.Done()
		fn()
	})
}

// Stop drops a pending call and waits for a running one to return. Calls after Stop are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Debouncer) cancelLocked() {
	if d.timer == nil {
		return
	}
	// a timer that already fired releases the wait group from its own goroutine
	if d.timer.Stop() {
		d.wg.Done()
	}
	d.timer = nil
}

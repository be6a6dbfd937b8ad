package bridge

import (
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/ports"
)

// Debouncer is a single-slot trailing-edge scheduler. Arming it cancels the
// task already pending, so at most one task is ever waiting.
type Debouncer struct {
	clock ports.Clock
	delay time.Duration

	mu      sync.Mutex
	pending ports.Timer
	gen     uint64
}

// NewDebouncer creates a debouncer over clock. A nil clock uses the system clock.
func NewDebouncer(clock ports.Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = ports.SystemClock
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Schedule arms f to run after the delay, replacing any pending task.
func (d *Debouncer) Schedule(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			// Superseded after the timer already fired.
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		f()
	})
}

// Cancel drops the pending task. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.pending == nil {
		return false
	}
	d.pending.Stop()
	d.pending = nil
	return true
}

// Pending reports whether a task is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

package console

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Debouncer delays a value until its input has been quiet for a fixed
// interval. Scheduling a new value cancels the pending one; only the most
// recent value is ever emitted.
//
// emit runs on the clock's timer goroutine and must not call back into the
// clock.
type Debouncer struct {
	clock clock.WithDelayedExecution
	delay time.Duration
	emit  func(string)

	mu    sync.Mutex
	gen   uint64
	fired uint64
	timer clock.Timer
}

// NewDebouncer creates a Debouncer. A nil clock uses the real clock.
func NewDebouncer(clk clock.WithDelayedExecution, delay time.Duration, emit func(string)) *Debouncer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Debouncer{clock: clk, delay: delay, emit: emit}
}

// Delay returns the quiescence interval.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Schedule arms the timer with value, replacing any pending value.
func (d *Debouncer) Schedule(value string) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	prev := d.timer
	d.timer = nil
	d.mu.Unlock()

	// The generation check in fire is what guarantees latest-wins; stopping
	// the previous timer only avoids a wasted wakeup.
	if prev != nil {
		prev.Stop()
	}
	t := d.clock.AfterFunc(d.delay, func() { d.fire(gen, value) })

	d.mu.Lock()
	if gen == d.gen && d.fired != gen {
		d.timer = t
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	t.Stop()
}

func (d *Debouncer) fire(gen uint64, value string) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.fired = gen
	d.timer = nil
	d.mu.Unlock()
	d.emit(value)
}

// Pending reports whether a value is waiting to be emitted.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending value.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.gen++
	prev := d.timer
	d.timer = nil
	d.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

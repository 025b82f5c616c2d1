package filters

import (
	"sync"
	"time"
)

// Debouncer commits only the trailing value once no new value arrived for the quiet period.
// commit must not call back into the Debouncer.
type Debouncer struct {
	// commitMu is held from the sequence check through commit, so Cancel
	// returns only once no stale value can still be committed.
	commitMu sync.Mutex
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	seq      uint64
	stopped  bool
	commit   func(string)
}

func NewDebouncer(delay time.Duration, commit func(string)) *Debouncer {
	return &Debouncer{delay: delay, commit: commit}
}

func (d *Debouncer) Push(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() {
		d.commitMu.Lock()
		defer d.commitMu.Unlock()

		d.mu.Lock()
		if d.stopped || seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.commit(value)
	})
}

// Cancel drops a pending value without committing it.
func (d *Debouncer) Cancel() {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels any pending value and ignores later pushes.
func (d *Debouncer) Stop() {
	d.Cancel()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

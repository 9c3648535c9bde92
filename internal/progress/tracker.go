// Package progress publishes the live state of the engine's current
// long-running operation. A single writer (the engine) drives the
// Begin/Step/End lifecycle; any number of readers poll Snapshot or
// subscribe with Watch. It replaces the historical process-wide
// "sync in progress" flag with an owned state value.
package progress

import "sync"

// Snapshot is one observed point of the current operation.
type Snapshot struct {
	Phase     string
	Label     string
	Completed int
	Total     int
	Running   bool
}

// Tracker is safe for concurrent use. Sends to watchers never block:
// a subscriber that stops draining misses intermediate snapshots but
// keeps receiving later ones once it catches up.
type Tracker struct {
	mu       sync.Mutex
	cur      Snapshot
	watchers map[chan Snapshot]struct{}
}

const watchBuffer = 16

func NewTracker() *Tracker {
	return &Tracker{watchers: make(map[chan Snapshot]struct{})}
}

// Begin starts a new phase with the given unit total, resetting the
// completed counter. Calling Begin while running re-bases the operation,
// which is exactly what an outer retry attempt wants.
func (t *Tracker) Begin(phase string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = Snapshot{Phase: phase, Total: total, Running: true}
	t.publish()
}

// Step records one completed unit.
func (t *Tracker) Step() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Completed++
	t.publish()
}

// AddTotal grows the unit total mid-operation. Sync passes discover work
// incrementally (the size of a project's asset tree is unknown until its
// detail arrives), so the total is allowed to move while running.
func (t *Tracker) AddTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Total += n
	t.publish()
}

// SetLabel names the unit currently being worked on.
func (t *Tracker) SetLabel(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Label = label
	t.publish()
}

// End marks the operation finished. Counters keep their final values so
// late readers still see what the last run did.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Running = false
	t.cur.Label = ""
	t.publish()
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Watch subscribes to state changes. The returned cancel func must be
// called when done; it closes the channel.
func (t *Tracker) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, watchBuffer)

	t.mu.Lock()
	t.watchers[ch] = struct{}{}
	ch <- t.cur
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.watchers[ch]; ok {
			delete(t.watchers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// publish fans the current snapshot out to all watchers. Callers hold mu.
func (t *Tracker) publish() {
	for ch := range t.watchers {
		select {
		case ch <- t.cur:
		default:
		}
	}
}

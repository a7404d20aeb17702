package conversation

import (
	"sync"
	"time"
)

// ManualTimer is a Timer driven by a simulated clock. Callbacks run on the
// goroutine that calls Advance, in deadline order.
type ManualTimer struct {
	mu      sync.Mutex
	now     time.Time
	nextID  TimerHandle
	pending map[TimerHandle]manualEntry
}

type manualEntry struct {
	deadline time.Time
	fn       func()
}

func NewManualTimer(start time.Time) *ManualTimer {
	return &ManualTimer{now: start, pending: make(map[TimerHandle]manualEntry)}
}

// Now is the simulated clock; pass it to WithClock.
func (m *ManualTimer) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualTimer) Schedule(d time.Duration, fn func()) TimerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.pending[m.nextID] = manualEntry{deadline: m.now.Add(d), fn: fn}
	return m.nextID
}

func (m *ManualTimer) Cancel(h TimerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, h)
}

func (m *ManualTimer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Advance moves the clock forward by d, firing every timer whose deadline is reached.
func (m *ManualTimer) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		id, entry, ok := m.earliestLocked(target)
		if !ok {
			break
		}
		delete(m.pending, id)
		m.now = entry.deadline
		m.mu.Unlock()
		entry.fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

func (m *ManualTimer) earliestLocked(limit time.Time) (TimerHandle, manualEntry, bool) {
	var (
		bestID TimerHandle
		best   manualEntry
		found  bool
	)
	for id, e := range m.pending {
		if e.deadline.After(limit) {
			continue
		}
		if !found || e.deadline.Before(best.deadline) || (e.deadline.Equal(best.deadline) && id < bestID) {
			bestID, best, found = id, e, true
		}
	}
	return bestID, best, found
}

package conversation

import (
	"sync"
	"time"

	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

// TimerHandle identifies a scheduled callback.
type TimerHandle uint64

// Timer schedules one-shot callbacks. Cancel must be safe to call with a
// handle that already fired or was already cancelled.
type Timer interface {
	Schedule(d time.Duration, fn func()) TimerHandle
	Cancel(h TimerHandle)
}

// RealTimer implements Timer on top of time.AfterFunc.
type RealTimer struct {
	mu     sync.Mutex
	timers map[TimerHandle]*time.Timer
	nextID TimerHandle
}

func NewRealTimer() *RealTimer {
	return &RealTimer{timers: make(map[TimerHandle]*time.Timer)}
}

func (t *RealTimer) Schedule(d time.Duration, fn func()) TimerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.timers[id] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		fn()
	})
	logx.Debug().Uint64("timer_id", uint64(id)).Dur("delay", d).Msg("timer scheduled")
	return id
}

func (t *RealTimer) Cancel(h TimerHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tm, ok := t.timers[h]; ok {
		tm.Stop()
		delete(t.timers, h)
		logx.Debug().Uint64("timer_id", uint64(h)).Msg("timer cancelled")
	}
}

// Pending returns the number of timers that have neither fired nor been cancelled.
func (t *RealTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Stop cancels every outstanding timer.
func (t *RealTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
}

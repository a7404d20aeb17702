package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIdle = 30 * time.Second

func newTestMachine(t *testing.T, opts ...Option) (*StateMachine, *ManualTimer) {
	t.Helper()
	mt := NewManualTimer(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	base := []Option{WithTimer(mt), WithClock(mt.Now), WithIdleTimeout(testIdle)}
	return NewStateMachine(append(base, opts...)...), mt
}

func TestStateMachine_InitialState(t *testing.T) {
	m, mt := newTestMachine(t)

	s := m.Snapshot()
	assert.False(t, s.IsActive)
	assert.False(t, s.IsAgentResponding)
	assert.Nil(t, s.LastInteractionTime)
	assert.Empty(t, s.TurnHistory)
	assert.False(t, s.IdleTimerPending)
	assert.Zero(t, mt.Pending())
}

func TestStateMachine_Activate(t *testing.T) {
	m, mt := newTestMachine(t)

	res := m.Activate()
	assert.Equal(t, ActivationResult{Status: StatusActivated, Active: true}, res)

	s := m.Snapshot()
	assert.True(t, s.IsActive)
	assert.False(t, s.IsAgentResponding)
	require.NotNil(t, s.LastInteractionTime)
	assert.Equal(t, mt.Now(), *s.LastInteractionTime)
	assert.True(t, s.IdleTimerPending)
	assert.Equal(t, 1, mt.Pending())
}

func TestStateMachine_ReactivateResetsClockAndAnnotations(t *testing.T) {
	m, mt := newTestMachine(t)
	m.Activate()
	m.SetLTMContext([]any{"remembered"})
	m.SetUserGoal("plan week")
	m.RecordAgentResponse("hi", "hello", "d1", "greet", map[string]any{"name": "ana"})

	mt.Advance(testIdle / 2)
	res := m.Activate()
	assert.Equal(t, StatusReset, res.Status)
	assert.True(t, res.Active)

	s := m.Snapshot()
	assert.Equal(t, mt.Now(), *s.LastInteractionTime)
	assert.Nil(t, s.LTMContext)
	assert.Empty(t, s.UserGoal)
	assert.Empty(t, s.CurrentIntent)
	assert.Nil(t, s.IdentifiedEntities)
	assert.Len(t, s.TurnHistory, 1, "history survives a reset")
	assert.Equal(t, 1, mt.Pending())

	// old deadline passes without effect, new one deactivates
	mt.Advance(testIdle/2 + time.Millisecond)
	assert.True(t, m.IsActive())
	mt.Advance(testIdle / 2)
	assert.False(t, m.IsActive())
}

func TestStateMachine_Deactivate(t *testing.T) {
	var reasons []string
	m, mt := newTestMachine(t, WithDeactivateHook(func(r string) { reasons = append(reasons, r) }))
	m.Activate()
	m.SetLTMContext([]any{1})

	m.Deactivate("user_exit")
	s := m.Snapshot()
	assert.False(t, s.IsActive)
	assert.False(t, s.IsAgentResponding)
	assert.Nil(t, s.LastInteractionTime)
	assert.Nil(t, s.LTMContext)
	assert.Zero(t, mt.Pending())

	m.Deactivate("again")
	assert.Equal(t, []string{"user_exit"}, reasons, "hook only fires for active conversations")
}

func TestStateMachine_IdleTimeoutDeactivatesOnce(t *testing.T) {
	var reasons []string
	m, mt := newTestMachine(t, WithDeactivateHook(func(r string) { reasons = append(reasons, r) }))
	m.Activate()

	mt.Advance(testIdle + time.Millisecond)
	assert.False(t, m.IsActive())
	assert.Equal(t, []string{ReasonIdleTimeout}, reasons)

	mt.Advance(10 * testIdle)
	assert.Equal(t, []string{ReasonIdleTimeout}, reasons)
	assert.Zero(t, mt.Pending())
}

func TestStateMachine_InteractionResetsDeadline(t *testing.T) {
	m, mt := newTestMachine(t)
	m.Activate()

	mt.Advance(testIdle / 2)
	require.True(t, m.RecordUserInteraction("still here"))
	mt.Advance(testIdle / 2)
	assert.True(t, m.IsActive())

	mt.Advance(testIdle/2 + time.Millisecond)
	assert.False(t, m.IsActive())
}

func TestStateMachine_InteractionWhileInactiveIsNoop(t *testing.T) {
	m, mt := newTestMachine(t)

	assert.False(t, m.RecordUserInteraction("hello?"))
	s := m.Snapshot()
	assert.False(t, s.IsActive)
	assert.Nil(t, s.LastInteractionTime)
	assert.Zero(t, mt.Pending())
}

func TestStateMachine_RespondingSuppressesTimeout(t *testing.T) {
	m, mt := newTestMachine(t)
	m.Activate()

	m.SetAgentResponding(true)
	assert.Zero(t, mt.Pending())
	assert.False(t, m.Snapshot().IdleTimerPending)

	mt.Advance(testIdle + time.Second)
	assert.True(t, m.IsActive())

	m.SetAgentResponding(false)
	assert.Equal(t, 1, mt.Pending())

	mt.Advance(testIdle + time.Millisecond)
	assert.False(t, m.IsActive())
}

func TestStateMachine_InteractionWhileRespondingKeepsTimerSuspended(t *testing.T) {
	m, mt := newTestMachine(t)
	m.Activate()
	m.SetAgentResponding(true)

	assert.True(t, m.RecordUserInteraction("one more thing"))
	assert.Zero(t, mt.Pending())
}

func TestStateMachine_RespondingFalseOnInactiveStartsNoTimer(t *testing.T) {
	m, mt := newTestMachine(t)
	m.SetAgentResponding(true)
	m.SetAgentResponding(false)
	assert.Zero(t, mt.Pending())
}

func TestStateMachine_AtMostOneTimer(t *testing.T) {
	m, mt := newTestMachine(t)

	ops := []func(){
		func() { m.Activate() },
		func() { m.RecordUserInteraction("a") },
		func() { m.SetAgentResponding(false) },
		func() { m.Activate() },
		func() { m.SetAgentResponding(true) },
		func() { m.RecordUserInteraction("b") },
		func() { m.SetAgentResponding(false) },
		func() { m.SetAgentResponding(false) },
		func() { m.RecordUserInteraction("c") },
		func() { m.Deactivate("done") },
		func() { m.Activate() },
	}
	for i, op := range ops {
		op()
		assert.LessOrEqual(t, mt.Pending(), 1, "after op %d", i)
		if m.IsAgentResponding() {
			assert.Zero(t, mt.Pending(), "responding implies no timer (op %d)", i)
		}
	}
}

func TestStateMachine_StaleCallbackIsIgnored(t *testing.T) {
	// a timer that was cleared but still delivers its callback must not deactivate
	rec := &recordingTimer{}
	m := NewStateMachine(WithTimer(rec), WithIdleTimeout(testIdle))
	m.Activate()
	stale := rec.last()
	m.RecordUserInteraction("reset")

	stale()
	assert.True(t, m.IsActive())

	rec.last()()
	assert.False(t, m.IsActive())
}

func TestStateMachine_CallbackAfterRespondingIsIgnored(t *testing.T) {
	rec := &recordingTimer{}
	m := NewStateMachine(WithTimer(rec), WithIdleTimeout(testIdle))
	m.Activate()
	live := rec.last()

	m.SetAgentResponding(true)
	live()
	assert.True(t, m.IsActive())
}

func TestStateMachine_RecordAgentResponse(t *testing.T) {
	m, _ := newTestMachine(t, WithMaxTurns(20))
	m.Activate()

	m.RecordAgentResponse("schedule lunch", "done", "d-1", "schedule_meeting", map[string]any{"time": "noon"})
	m.RecordAgentResponse("thanks", "you're welcome", "d-2", "", nil)

	s := m.Snapshot()
	require.Len(t, s.TurnHistory, 2)
	assert.Equal(t, "schedule_meeting", s.CurrentIntent)
	assert.Equal(t, "noon", s.IdentifiedEntities["time"])
	assert.Equal(t, "d-2", s.TurnHistory[1].DecisionID)

	for i := 0; i < 25; i++ {
		m.RecordAgentResponse(fmt.Sprintf("u%d", i), "r", "", "", nil)
	}
	assert.Len(t, m.History(), 20)
	assert.Len(t, m.RecentTurns(10), 10)
	assert.Equal(t, "u24", m.RecentTurns(1)[0].UserInput)
}

func TestStateMachine_ConcurrentUse(t *testing.T) {
	m := NewStateMachine(WithIdleTimeout(time.Hour))
	m.Activate()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RecordUserInteraction("x")
				m.SetAgentResponding(j%2 == 0)
				m.RecordAgentResponse("x", "y", "", "", nil)
				_ = m.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	m.SetAgentResponding(false)

	rt := m.timer.(*RealTimer)
	assert.Equal(t, 1, rt.Pending())
	m.Deactivate("test_done")
	assert.Zero(t, rt.Pending())
}

// recordingTimer hands callbacks back to the test instead of running them.
type recordingTimer struct {
	mu  sync.Mutex
	fns []func()
}

func (r *recordingTimer) Schedule(_ time.Duration, fn func()) TimerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
	return TimerHandle(len(r.fns))
}

func (r *recordingTimer) Cancel(TimerHandle) {}

func (r *recordingTimer) last() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fns[len(r.fns)-1]
}

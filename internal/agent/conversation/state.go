// Package conversation tracks whether a conversation is live. All mutations go
// through one mutex; the idle timer callback re-acquires it and re-validates
// state before it deactivates anything.
package conversation

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	"github.com/Chative-core-poc-v1/assistant-core/internal/metrics"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const (
	DefaultIdleTimeout = 30 * time.Second

	ReasonIdleTimeout = "idle_timeout"
)

type ActivationStatus string

const (
	StatusActivated ActivationStatus = "activated"
	StatusReset     ActivationStatus = "reset"
)

// ActivationResult reports whether Activate started a conversation or reset a live one.
type ActivationResult struct {
	Status ActivationStatus `json:"status"`
	Active bool             `json:"active"`
}

type Option func(*StateMachine)

func WithTimer(t Timer) Option {
	return func(m *StateMachine) { m.timer = t }
}

func WithClock(now func() time.Time) Option {
	return func(m *StateMachine) { m.now = now }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *StateMachine) { m.metrics = mt }
}

func WithConversationID(id string) Option {
	return func(m *StateMachine) { m.id = id }
}

// WithDeactivateHook registers a callback invoked, outside the lock, whenever
// an active conversation is deactivated.
func WithDeactivateHook(fn func(reason string)) Option {
	return func(m *StateMachine) { m.onDeactivate = fn }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(m *StateMachine) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

func WithMaxTurns(n int) Option {
	return func(m *StateMachine) { m.ledger = NewTurnLedger(n) }
}

// StateMachine is the single owner of a conversation's state:
// Idle -> Active <-> Responding -> Idle.
type StateMachine struct {
	mu sync.Mutex

	id           string
	timer        Timer
	now          func() time.Time
	idleTimeout  time.Duration
	metrics      *metrics.Metrics
	onDeactivate func(reason string)

	active          bool
	responding      bool
	lastInteraction time.Time
	ledger          *TurnLedger

	// at most one outstanding idle timer; generation invalidates callbacks
	// that were already in flight when their timer was cleared
	idleHandle TimerHandle
	hasTimer   bool
	generation uint64

	currentIntent      string
	identifiedEntities map[string]any
	userGoal           string
	ltmContext         []any
}

func NewStateMachine(opts ...Option) *StateMachine {
	m := &StateMachine{
		id:          uuid.NewString(),
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
		ledger:      NewTurnLedger(DefaultMaxTurns),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.timer == nil {
		m.timer = NewRealTimer()
	}
	return m
}

func (m *StateMachine) ID() string { return m.id }

// Activate starts the conversation, or resets the clock and annotations of a live one.
func (m *StateMachine) Activate() ActivationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := StatusActivated
	if m.active {
		status = StatusReset
	}

	m.active = true
	m.responding = false
	m.lastInteraction = m.now()
	m.clearAnnotationsLocked()
	m.startIdleTimerLocked()

	m.metrics.Transition(string(status))
	logx.Info().Str("conversation_id", m.id).Str("status", string(status)).Msg("conversation activated")
	return ActivationResult{Status: status, Active: true}
}

// Deactivate ends the conversation. Safe to call when already inactive.
func (m *StateMachine) Deactivate(reason string) {
	m.mu.Lock()
	wasActive := m.deactivateLocked(reason)
	hook := m.onDeactivate
	m.mu.Unlock()

	if wasActive && hook != nil {
		hook(reason)
	}
}

// RecordUserInteraction refreshes the idle deadline of an active conversation.
// It never activates an inactive one; the returned flag reports whether it was active.
// While the agent is responding the timer stays suspended.
func (m *StateMachine) RecordUserInteraction(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		logx.Debug().Str("conversation_id", m.id).Int("input_len", len(text)).Msg("interaction ignored, conversation inactive")
		return false
	}

	m.lastInteraction = m.now()
	if !m.responding {
		m.startIdleTimerLocked()
	}
	return true
}

// SetAgentResponding suspends idle tracking while true and resumes it with a
// fresh timer when set back to false on an active conversation.
func (m *StateMachine) SetAgentResponding(responding bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responding = responding
	if responding {
		m.clearIdleTimerLocked()
		m.metrics.Transition("responding")
		return
	}
	if m.active {
		m.startIdleTimerLocked()
		m.metrics.Transition("response_done")
	}
}

// RecordAgentResponse appends a turn. Non-empty intent and non-nil entities
// overwrite the current annotations.
func (m *StateMachine) RecordAgentResponse(userText string, response string, decisionID string, intent string, entities map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ledger.Append(model.Turn{
		UserInput:     userText,
		AgentResponse: response,
		DecisionID:    decisionID,
		Intent:        intent,
		Entities:      maps.Clone(entities),
		Timestamp:     m.now(),
	})
	if intent != "" {
		m.currentIntent = intent
	}
	if entities != nil {
		m.identifiedEntities = maps.Clone(entities)
	}
}

func (m *StateMachine) SetUserGoal(goal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userGoal = goal
}

func (m *StateMachine) SetLTMContext(items []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ltmContext = slices.Clone(items)
}

func (m *StateMachine) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *StateMachine) IsAgentResponding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responding
}

// History returns a copy of every recorded turn, oldest first.
func (m *StateMachine) History() []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Turns()
}

// RecentTurns returns a copy of at most n most recent turns.
func (m *StateMachine) RecentTurns(n int) []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Last(n)
}

func (m *StateMachine) Snapshot() model.ConversationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := model.ConversationSnapshot{
		ConversationID:     m.id,
		IsActive:           m.active,
		IsAgentResponding:  m.responding,
		IdleTimerPending:   m.hasTimer,
		TurnHistory:        m.ledger.Turns(),
		CurrentIntent:      m.currentIntent,
		IdentifiedEntities: maps.Clone(m.identifiedEntities),
		UserGoal:           m.userGoal,
		LTMContext:         slices.Clone(m.ltmContext),
		TakenAt:            m.now(),
	}
	if !m.lastInteraction.IsZero() {
		t := m.lastInteraction
		s.LastInteractionTime = &t
	}
	return s
}

func (m *StateMachine) deactivateLocked(reason string) bool {
	m.clearIdleTimerLocked()
	wasActive := m.active

	m.active = false
	m.responding = false
	m.lastInteraction = time.Time{}
	m.ltmContext = nil

	if wasActive {
		m.metrics.Transition("deactivated")
		logx.Info().Str("conversation_id", m.id).Str("reason", reason).Msg("conversation deactivated")
	}
	return wasActive
}

func (m *StateMachine) clearAnnotationsLocked() {
	m.currentIntent = ""
	m.identifiedEntities = nil
	m.userGoal = ""
	m.ltmContext = nil
}

// startIdleTimerLocked always clears the previous timer first.
func (m *StateMachine) startIdleTimerLocked() {
	m.clearIdleTimerLocked()
	gen := m.generation
	m.idleHandle = m.timer.Schedule(m.idleTimeout, func() { m.onIdleTimeout(gen) })
	m.hasTimer = true
}

func (m *StateMachine) clearIdleTimerLocked() {
	if m.hasTimer {
		m.timer.Cancel(m.idleHandle)
		m.hasTimer = false
		m.idleHandle = 0
	}
	m.generation++
}

func (m *StateMachine) onIdleTimeout(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || !m.hasTimer {
		m.mu.Unlock()
		logx.Warn().Str("conversation_id", m.id).Msg("stale idle timer fired, ignoring")
		return
	}
	m.hasTimer = false
	m.idleHandle = 0

	if !m.active || m.responding {
		active := m.active
		m.mu.Unlock()
		logx.Warn().Str("conversation_id", m.id).
			Bool("active", active).
			Msg("idle timer fired while inactive or responding, ignoring")
		return
	}

	wasActive := m.deactivateLocked(ReasonIdleTimeout)
	hook := m.onDeactivate
	m.mu.Unlock()

	m.metrics.IdleTimeout()
	if wasActive && hook != nil {
		hook(ReasonIdleTimeout)
	}
}

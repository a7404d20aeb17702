package conversation

import (
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
)

const (
	DefaultMaxTurns       = 20
	DefaultShortTermTurns = 10
)

// TurnLedger is a fixed-capacity FIFO of completed turns. It is not safe for
// concurrent use; the StateMachine serializes access.
type TurnLedger struct {
	turns    []model.Turn
	capacity int
}

func NewTurnLedger(capacity int) *TurnLedger {
	if capacity <= 0 {
		capacity = DefaultMaxTurns
	}
	return &TurnLedger{
		turns:    make([]model.Turn, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a turn, evicting the oldest ones beyond capacity.
func (l *TurnLedger) Append(t model.Turn) {
	l.turns = append(l.turns, t)
	if over := len(l.turns) - l.capacity; over > 0 {
		// shift in place so the backing array does not grow without bound
		n := copy(l.turns, l.turns[over:])
		clear(l.turns[n:])
		l.turns = l.turns[:n]
	}
}

func (l *TurnLedger) Len() int      { return len(l.turns) }
func (l *TurnLedger) Capacity() int { return l.capacity }

// Turns returns a copy of the ledger, oldest first.
func (l *TurnLedger) Turns() []model.Turn {
	return model.CloneTurns(l.turns)
}

// Last returns a copy of at most n most recent turns.
func (l *TurnLedger) Last(n int) []model.Turn {
	return model.CloneTurns(model.LastTurns(l.turns, n))
}

func (l *TurnLedger) Reset() {
	clear(l.turns)
	l.turns = l.turns[:0]
}

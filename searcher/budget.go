package searcher

import (
	"sync/atomic"
	"time"

	"othello/game"
)

// Budget bounds a search by boards evaluated and by wall-clock deadline. One
// budget belongs to one node; it is shared by every search call made there.
// A zero limit or zero deadline means unbounded.
type Budget struct {
	maxBoards int64
	deadline  time.Time
	evaluated atomic.Int64
}

func NewBudget(maxBoards int64, deadline time.Time) *Budget {
	return &Budget{maxBoards: maxBoards, deadline: deadline}
}

// Unlimited returns a budget that never runs out.
func Unlimited() *Budget {
	return &Budget{}
}

// Reset starts a new root search with fresh limits.
func (b *Budget) Reset(maxBoards int64, deadline time.Time) {
	b.maxBoards = maxBoards
	b.deadline = deadline
	b.evaluated.Store(0)
}

func (b *Budget) Exhausted() bool {
	if b.maxBoards > 0 && b.evaluated.Load() >= b.maxBoards {
		return true
	}
	return !b.deadline.IsZero() && time.Now().After(b.deadline)
}

// Evaluate scores board for player as a piece differential and charges one
// board to the budget.
func (b *Budget) Evaluate(player game.Cell, board *game.Board) int {
	b.evaluated.Add(1)
	return board.Differential(player)
}

// FinalValue scores a position where neither side can move.
func (b *Budget) FinalValue(player game.Cell, board *game.Board) int {
	return game.Final(b.Evaluate(player, board))
}

func (b *Budget) Evaluated() int64 {
	return b.evaluated.Load()
}

func (b *Budget) Deadline() time.Time {
	return b.deadline
}

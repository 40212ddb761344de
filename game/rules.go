package game

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

var ErrIllegalMove = errors.New("illegal move")

// Scores returned at true terminal positions. They are symmetric so that
// negation in negamax never overflows.
const (
	WinValue  = math.MaxInt32
	LossValue = -math.MaxInt32
)

// findBracket returns the index of the player's own piece closing a run of
// opponent pieces next to square in direction, or -1 when there is none.
func (b *Board) findBracket(square int, player Cell, direction int) int {
	bracket := square + direction
	if !b.layout.Valid(bracket) || b.cells[bracket] == player {
		return -1
	}
	opp := player.Opponent()
	for b.cells[bracket] == opp {
		bracket += direction
	}
	if b.cells[bracket] == Outer || b.cells[bracket] == Empty {
		return -1
	}
	return bracket
}

// IsLegal reports whether player may place a piece on move.
func (b *Board) IsLegal(move int, player Cell) bool {
	if !b.layout.Valid(move) || b.cells[move] != Empty {
		return false
	}
	for _, d := range b.layout.Directions() {
		if b.findBracket(move, player, d) > -1 {
			return true
		}
	}
	return false
}

// GenerateMoves lists every legal move for player in increasing index order.
// The order is the search order and decides ties.
func (b *Board) GenerateMoves(player Cell) []int {
	return lo.Filter(lo.Range(len(b.cells)), func(move int, _ int) bool {
		return b.IsLegal(move, player)
	})
}

func (b *Board) AnyLegalMove(player Cell) bool {
	for move := range b.cells {
		if b.IsLegal(move, player) {
			return true
		}
	}
	return false
}

// MakeMove places the piece and flips every bracketed run, in place. Callers
// copy first when another branch still needs the original.
func (b *Board) MakeMove(move int, player Cell) *Board {
	if !b.layout.Interior(move) {
		panic(fmt.Sprintf("move %d is outside the board interior", move))
	}
	b.cells[move] = player
	for _, d := range b.layout.Directions() {
		b.makeFlips(move, player, d)
	}
	return b
}

func (b *Board) makeFlips(move int, player Cell, direction int) {
	bracket := b.findBracket(move, player, direction)
	if bracket < 0 {
		return
	}
	for square := move + direction; square != bracket; square += direction {
		b.cells[square] = player
	}
}

// Play validates move and returns the resulting board, leaving b untouched.
func (b *Board) Play(move int, player Cell) (*Board, error) {
	if !b.IsLegal(move, player) {
		return nil, fmt.Errorf("%w: %s cannot move to %s (square %d)", ErrIllegalMove, player, b.layout.Label(move), move)
	}
	return b.Copy().MakeMove(move, player), nil
}

// Differential is the piece count of player minus the opponent's.
func (b *Board) Differential(player Cell) int {
	return b.Count(player) - b.Count(player.Opponent())
}

// Final maps a differential to the saturated score used at positions where
// neither side can move.
func Final(diff int) int {
	switch {
	case diff < 0:
		return LossValue
	case diff > 0:
		return WinValue
	}
	return 0
}

// GameOver reports whether neither player has a legal move.
func (b *Board) GameOver() bool {
	return !b.AnyLegalMove(Black) && !b.AnyLegalMove(White)
}

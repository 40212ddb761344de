package searcher

import (
	"math"

	"othello/game"
)

// Minimax is an exhaustive negamax without pruning or budget. It is the
// reference that AlphaBeta must agree with on the root value.
func Minimax(player game.Cell, board *game.Board, depth int) Result {
	if depth == 0 {
		return Result{Score: board.Differential(player), Move: game.NoMove}
	}

	moves := board.GenerateMoves(player)
	if len(moves) == 0 {
		if !board.AnyLegalMove(player.Opponent()) {
			return Result{Score: game.Final(board.Differential(player)), Move: game.NoMove}
		}
		ret := Minimax(player.Opponent(), board, depth-1)
		return Result{Score: -ret.Score, Move: game.NoMove}
	}

	best := Result{Score: math.MinInt, Move: game.NoMove}
	for _, move := range moves {
		score := -Minimax(player.Opponent(), board.Copy().MakeMove(move, player), depth-1).Score
		if score > best.Score {
			best = Result{Score: score, Move: move}
		}
	}
	return best
}

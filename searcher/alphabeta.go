package searcher

import (
	"othello/game"
)

// Result is a negamax score from the perspective of the player to move and
// the move that achieved it, or game.NoMove.
type Result struct {
	Score int
	Move  int
}

// AlphaBeta searches depth plies below board with a fail-hard alpha-beta
// window. Moves are tried in generation order; the first move to raise alpha
// wins ties. When no move raises alpha above its initial value the result
// carries game.NoMove even if legal moves exist.
func AlphaBeta(player game.Cell, board *game.Board, depth, alpha, beta int, budget *Budget) Result {
	if depth == 0 || budget.Exhausted() {
		return Result{Score: budget.Evaluate(player, board), Move: game.NoMove}
	}

	moves := board.GenerateMoves(player)
	if len(moves) == 0 {
		if !board.AnyLegalMove(player.Opponent()) {
			return Result{Score: budget.FinalValue(player, board), Move: game.NoMove}
		}
		// Pass: the opponent moves on the same board.
		ret := AlphaBeta(player.Opponent(), board, depth-1, -beta, -alpha, budget)
		return Result{Score: -ret.Score, Move: game.NoMove}
	}

	best := game.NoMove
	for _, move := range moves {
		if alpha >= beta {
			break
		}
		child := board.Copy().MakeMove(move, player)
		score := -AlphaBeta(player.Opponent(), child, depth-1, -beta, -alpha, budget).Score
		if score > alpha {
			alpha = score
			best = move
		}
	}
	return Result{Score: alpha, Move: best}
}

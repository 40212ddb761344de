package engine

import (
	"othello/experiments/metrics"
	"othello/game"
)

// Engine plays one game between two agents.
type Engine interface {
	// Run plays until neither side can move or the turn limit is reached.
	Run() (metrics.GameMetric, []metrics.MoveMetric, error)
	Board() *game.Board
}

// Counter is implemented by agents that report the boards they evaluated
// for their last move.
type Counter interface {
	Evaluated() int64
}

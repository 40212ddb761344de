package searcher

import (
	"time"

	"othello/game"
	"othello/meta"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// Strategy picks a move for player on board.
type Strategy interface {
	FindMove(player game.Cell, board *game.Board) (Result, error)
}

type Option func(s *Sequential)

// Sequential runs AlphaBeta from the root with the configured limits.
type Sequential struct {
	depth     int
	maxBoards int64
	timeout   time.Duration
	budget    *Budget
}

func WithMaxBoards(maxBoards int64) Option {
	return func(s *Sequential) {
		if maxBoards > 0 {
			s.maxBoards = maxBoards
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Sequential) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func NewSequential(depth int, options ...Option) *Sequential {
	if depth <= 0 {
		panic("search depth must be positive")
	}
	s := &Sequential{depth: depth, budget: Unlimited()}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Sequential) FindMove(player game.Cell, board *game.Board) (Result, error) {
	var deadline time.Time
	if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}
	s.budget.Reset(s.maxBoards, deadline)

	start := time.Now()
	res := AlphaBeta(player, board.Copy(), s.depth, -meta.Infinity, meta.Infinity, s.budget)
	log.Debug().
		Str("player", player.String()).
		Str("move", board.Layout().Label(res.Move)).
		Int("score", res.Score).
		Int64("boards", s.budget.Evaluated()).
		Dur("elapsed", time.Since(start)).
		Msg("sequential-search")
	return res, nil
}

// Evaluated reports the boards charged by the most recent FindMove.
func (s *Sequential) Evaluated() int64 {
	return s.budget.Evaluated()
}

// Random plays a uniformly random legal move.
type Random struct {
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) FindMove(player game.Cell, board *game.Board) (Result, error) {
	moves := board.GenerateMoves(player)
	if len(moves) == 0 {
		return Result{Score: 0, Move: game.NoMove}, nil
	}
	return Result{Score: 0, Move: moves[r.rng.Intn(len(moves))]}, nil
}

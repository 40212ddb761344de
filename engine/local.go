package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"othello/experiments/metrics"
	"othello/game"
	"othello/meta"
	"othello/searcher"
)

const passLabel = "pass"

type Local struct {
	board    *game.Board
	player   game.Cell
	agents   map[game.Cell]searcher.Strategy
	maxTurns int
}

var _ Engine = (*Local)(nil)

// LocalEngine plays first to move on board, with black and white agents.
func LocalEngine(board *game.Board, first game.Cell, black, white searcher.Strategy) *Local {
	if first != game.Black && first != game.White {
		panic("the first player must be black or white")
	}
	return &Local{
		board:    board.Copy(),
		player:   first,
		agents:   map[game.Cell]searcher.Strategy{game.Black: black, game.White: white},
		maxTurns: meta.MAX_TURNS,
	}
}

func (e *Local) Board() *game.Board { return e.board }

// Run returns an error, leaving the board at the last legal position, if an
// agent fails or picks an illegal move.
func (e *Local) Run() (metrics.GameMetric, []metrics.MoveMetric, error) {
	gm := metrics.GameMetric{StartingPlayer: e.player.String(), StartTime: time.Now()}
	var moves []metrics.MoveMetric

	log.Info().Msgf("%s is starting", e.player)

	turn := 1
	for ; !e.board.GameOver() && turn <= e.maxTurns; turn++ {
		legal := e.board.GenerateMoves(e.player)
		if len(legal) == 0 {
			log.Debug().Int("turn", turn).Str("player", e.player.String()).Msg("pass")
			moves = append(moves, metrics.MoveMetric{Step: turn, Player: e.player.String(), Move: passLabel})
			e.player = e.player.Opponent()
			continue
		}

		agent := e.agents[e.player]
		start := time.Now()
		res, err := agent.FindMove(e.player, e.board)
		if err != nil {
			return gm, moves, fmt.Errorf("%s agent on turn %d: %w", e.player, turn, err)
		}
		elapsed := time.Since(start)

		move := res.Move
		if move == game.NoMove {
			// No move beat the root window; any legal move is as good.
			log.Warn().Int("turn", turn).Str("player", e.player.String()).Msg("no-move-chosen")
			move = legal[0]
		}
		next, err := e.board.Play(move, e.player)
		if err != nil {
			return gm, moves, fmt.Errorf("turn %d: %w", turn, err)
		}

		mm := metrics.MoveMetric{
			Step:     turn,
			Player:   e.player.String(),
			Move:     e.board.Layout().Label(move),
			Score:    res.Score,
			Duration: elapsed,
		}
		if c, ok := agent.(Counter); ok {
			mm.Boards = c.Evaluated()
		}
		moves = append(moves, mm)
		log.Info().Msgf("turn %d: %s plays %s (score %d)", turn, e.player, mm.Move, res.Score)

		e.board = next
		e.player = e.player.Opponent()
	}

	gm.EndTime = time.Now()
	gm.Duration = gm.EndTime.Sub(gm.StartTime)
	gm.TotalMoves = turn - 1
	gm.Black = e.board.Count(game.Black)
	gm.White = e.board.Count(game.White)
	switch {
	case gm.Black > gm.White:
		gm.Winner = game.Black.String()
	case gm.White > gm.Black:
		gm.Winner = game.White.String()
	}
	if !e.board.GameOver() {
		log.Warn().Msgf("stopped after %d turns without a finished game", e.maxTurns)
	}
	log.Info().Msgf("game over: black %d, white %d", gm.Black, gm.White)
	return gm, moves, nil
}

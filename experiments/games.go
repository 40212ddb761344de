package experiments

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"othello/distributed"
	"othello/engine"
	"othello/experiments/metrics"
	"othello/game"
)

// SelfPlay is a whole game where both sides share one local cluster.
type SelfPlay struct {
	Procs   int
	Depth   int
	Timeout time.Duration
	Options []distributed.Option
}

type GameRecord struct {
	Game  metrics.GameMetric
	Moves []metrics.MoveMetric
	Nodes []metrics.NodeMetric
}

func RunSelfPlay(ctx context.Context, board *game.Board, first game.Cell, s SelfPlay) (GameRecord, error) {
	cluster, err := distributed.NewLocalCluster(ctx, s.Procs, s.Depth, s.Timeout, s.Options...)
	if err != nil {
		return GameRecord{}, err
	}
	log.Info().Msgf("starting self-play with %d processes at depth %d...", s.Procs, s.Depth)

	e := engine.LocalEngine(board, first, cluster, cluster)
	gm, moves, runErr := e.Run()
	nodes, closeErr := cluster.Close()
	if runErr != nil {
		return GameRecord{Game: gm, Moves: moves, Nodes: nodes}, runErr
	}
	if closeErr != nil {
		log.Warn().Err(closeErr).Msg("cluster shutdown incomplete")
	}
	log.Info().Msgf("completed self-play with winner: %q", gm.Winner)
	return GameRecord{Game: gm, Moves: moves, Nodes: nodes}, nil
}

// WriteGame stores a game's records under root and returns the directory used.
func WriteGame(root string, rec GameRecord) (string, error) {
	writer, err := metrics.NewWriter(root, "selfplay")
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}
	if err := writer.WriteGameRecord(rec.Game); err != nil {
		return "", fmt.Errorf("failed to write game record: %w", err)
	}
	if err := writer.WriteMoveRecords(rec.Moves); err != nil {
		return "", fmt.Errorf("failed to write move records: %w", err)
	}
	if err := writer.WriteNodeMetrics(rec.Nodes); err != nil {
		return "", fmt.Errorf("failed to write node metrics: %w", err)
	}
	log.Info().Msg("stored game records")
	return writer.Dir(), nil
}

package experiments

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"othello/distributed"
	"othello/experiments/metrics"
	"othello/game"
)

// Speedup describes a sweep over cluster sizes for one position.
type Speedup struct {
	Procs   []int
	Trials  int
	Depth   int
	Timeout time.Duration
	Options []distributed.Option
}

// RunSpeedup times Trials root searches of board for every cluster size.
func RunSpeedup(ctx context.Context, player game.Cell, board *game.Board, s Speedup) ([]metrics.SpeedupRecord, error) {
	var records []metrics.SpeedupRecord
	log.Info().Msgf("starting speedup experiment over %v processes...", s.Procs)

	for _, procs := range s.Procs {
		for trial := 1; trial <= max(1, s.Trials); trial++ {
			log.Info().Msgf("starting trial %d with %d processes...", trial, procs)

			cluster, err := distributed.NewLocalCluster(ctx, procs, s.Depth, s.Timeout, s.Options...)
			if err != nil {
				return records, err
			}
			start := time.Now()
			res, err := cluster.FindMove(player, board)
			elapsed := time.Since(start)
			nodes, closeErr := cluster.Close()
			if err != nil {
				return records, err
			}
			if closeErr != nil {
				log.Warn().Err(closeErr).Msg("cluster shutdown incomplete")
			}

			total := metrics.Total(nodes)
			records = append(records, metrics.SpeedupRecord{
				Procs:    procs,
				Trial:    trial,
				Move:     board.Layout().Label(res.Move),
				Score:    res.Score,
				Elapsed:  elapsed,
				Total:    total,
				MaxNode:  lo.Max(lo.Map(nodes, func(n metrics.NodeMetric, _ int) int64 { return n.BoardsEvaluated })),
				Timeouts: total.Timeouts,
			})
			log.Info().Msgf("completed trial %d with %d processes: %s in %s", trial, procs, board.Layout().Label(res.Move), elapsed)
		}
	}

	log.Info().Msg("completed speedup experiment")
	return records, nil
}

// WriteSpeedup stores records under root and returns the directory used.
func WriteSpeedup(root string, records []metrics.SpeedupRecord) (string, error) {
	writer, err := metrics.NewWriter(root, "speedup")
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}
	if err := writer.WriteSpeedupRecords(records); err != nil {
		return "", fmt.Errorf("failed to write speedup records: %w", err)
	}
	log.Info().Msg("stored speedup records")
	return writer.Dir(), nil
}

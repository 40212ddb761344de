package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"othello/communication/ws"
	"othello/config"
	"othello/distributed"
	"othello/experiments"
	"othello/experiments/metrics"
	"othello/game"
	"othello/meta"
)

func main() {
	boardPath := flag.String("board", "", "Initial board file (initialbrd.txt)")
	paramsPath := flag.String("params", "", "Search parameter file (evalparams.txt)")
	mode := flag.String("mode", "local", "Transport: local runs every process in this one, ws uses websockets")
	procs := flag.Int("procs", 4, "Number of processes in local mode, master included")
	fanout := flag.Int("fanout", meta.FANOUT, "Children per node in the worker tree")
	id := flag.Int("id", 0, "Rank of this process in ws mode")
	peers := flag.String("peers", "", "Comma separated host:port per rank in ws mode")
	aggregation := flag.Duration("aggregation", meta.AGGREGATION_TIMEOUT, "How long a node waits on its children")
	selfplay := flag.Bool("selfplay", false, "Play a whole game instead of a single move (local mode)")
	speedup := flag.String("speedup", "", "Comma separated process counts to time a single move with (local mode)")
	stats := flag.String("stats", "", "Directory for CSV statistics")
	level := flag.String("log", "info", "Log level")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		log.Fatal().Err(err).Msg("bad log level")
	}
	zerolog.SetGlobalLevel(lvl)

	cfg, err := config.Load(*boardPath, *paramsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	board, err := cfg.Board()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build the initial board")
	}
	opts := []distributed.Option{
		distributed.WithFanout(*fanout),
		distributed.WithAggregationTimeout(*aggregation),
		distributed.WithMaxBoards(cfg.MaxBoards),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "local":
		switch {
		case *speedup != "":
			runSpeedup(ctx, cfg, board, *speedup, *stats, opts)
		case *selfplay:
			runSelfPlay(ctx, cfg, board, *procs, *stats, opts)
		default:
			runLocal(ctx, cfg, board, *procs, *stats, opts)
		}
	case "ws":
		runWS(ctx, cfg, board, *id, strings.Split(*peers, ","), *stats, opts)
	default:
		log.Fatal().Msgf("unknown mode %q", *mode)
	}
}

func runLocal(ctx context.Context, cfg config.Config, board *game.Board, procs int, stats string, opts []distributed.Option) {
	cluster, err := distributed.NewLocalCluster(ctx, procs, cfg.MaxDepth, cfg.Timeout, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the cluster")
	}
	start := time.Now()
	res, err := cluster.FindMove(cfg.Player, board)
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}
	report(cfg.Player, board, res.Move, res.Score, time.Since(start))

	nodes, err := cluster.Close()
	if err != nil {
		log.Warn().Err(err).Msg("cluster shutdown incomplete")
	}
	writeNodes(stats, nodes)
}

func runWS(ctx context.Context, cfg config.Config, board *game.Board, id int, peers []string, stats string, opts []distributed.Option) {
	transport, err := ws.New(ctx, id, peers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the transport")
	}
	defer transport.Close()

	if id != meta.MASTER_ID {
		worker, err := distributed.NewWorker(transport, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start the worker")
		}
		if err := worker.Run(ctx); err != nil {
			log.Error().Err(err).Msg("worker stopped")
		}
		return
	}

	master, err := distributed.NewMaster(transport, cfg.MaxDepth, cfg.Timeout, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the master")
	}
	start := time.Now()
	res, err := master.FindMove(cfg.Player, board)
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}
	report(cfg.Player, board, res.Move, res.Score, time.Since(start))

	nodes, err := master.Shutdown()
	if err != nil {
		log.Warn().Err(err).Msg("cluster shutdown incomplete")
	}
	writeNodes(stats, nodes)
}

func runSelfPlay(ctx context.Context, cfg config.Config, board *game.Board, procs int, stats string, opts []distributed.Option) {
	rec, err := experiments.RunSelfPlay(ctx, board, cfg.Player, experiments.SelfPlay{
		Procs:   procs,
		Depth:   cfg.MaxDepth,
		Timeout: cfg.Timeout,
		Options: opts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("self-play failed")
	}
	fmt.Printf("black %d, white %d after %d moves\n", rec.Game.Black, rec.Game.White, rec.Game.TotalMoves)
	if stats != "" {
		dir, err := experiments.WriteGame(stats, rec)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to write statistics")
		}
		log.Info().Msgf("statistics written to %s", dir)
	}
}

func runSpeedup(ctx context.Context, cfg config.Config, board *game.Board, counts, stats string, opts []distributed.Option) {
	var procs []int
	for _, field := range strings.Split(counts, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n <= 0 {
			log.Fatal().Msgf("bad process count %q", field)
		}
		procs = append(procs, n)
	}
	records, err := experiments.RunSpeedup(ctx, cfg.Player, board, experiments.Speedup{
		Procs:   procs,
		Trials:  1,
		Depth:   cfg.MaxDepth,
		Timeout: cfg.Timeout,
		Options: opts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("speedup experiment failed")
	}
	for _, r := range records {
		fmt.Printf("%3d procs: %s (score %d) in %s, %d boards\n", r.Procs, r.Move, r.Score, r.Elapsed, r.Total.BoardsEvaluated)
	}
	if stats != "" {
		dir, err := experiments.WriteSpeedup(stats, records)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to write statistics")
		}
		log.Info().Msgf("statistics written to %s", dir)
	}
}

func report(player game.Cell, board *game.Board, move, score int, elapsed time.Duration) {
	fmt.Print(board)
	if move == game.NoMove {
		fmt.Printf("%s has no move to play\n", player)
		return
	}
	after, err := board.Play(move, player)
	if err != nil {
		log.Fatal().Err(err).Msg("search returned an illegal move")
	}
	fmt.Printf("best move for %s: %s (score %d) in %s\n", player, board.Layout().Label(move), score, elapsed)
	fmt.Print(after)
}

func writeNodes(stats string, nodes []metrics.NodeMetric) {
	if stats == "" {
		return
	}
	writer, err := metrics.NewWriter(stats, "search")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to write statistics")
	}
	if err := writer.WriteNodeMetrics(nodes); err != nil {
		log.Fatal().Err(err).Msg("failed to write statistics")
	}
	log.Info().Msgf("statistics written to %s", writer.Dir())
}

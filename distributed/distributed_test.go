package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"othello/communication"
	"othello/communication/local"
	"othello/game"
	"othello/meta"
	"othello/searcher"
)

func opening(t *testing.T) *game.Board {
	t.Helper()
	layout, err := game.NewLayout(8, 8)
	require.NoError(t, err)
	b, err := game.NewBoard(layout, []string{"d4", "e5"}, []string{"d5", "e4"})
	require.NoError(t, err)
	return b
}

// positions returns the opening plus a few early positions with black to
// move. No game can finish within eight plies of the opening, so searches
// of depth four from here never reach a terminal score.
func positions(t *testing.T) []*game.Board {
	t.Helper()
	boards := []*game.Board{opening(t)}
	rng := rand.New(rand.NewSource(11))
	for len(boards) < 4 {
		b := opening(t)
		player := game.Black
		for ply := 0; ply < 4; ply++ {
			moves := b.GenerateMoves(player)
			require.NotEmpty(t, moves)
			b = b.Copy().MakeMove(moves[rng.Intn(len(moves))], player)
			player = player.Opponent()
		}
		boards = append(boards, b)
	}
	return boards
}

func sequential(board *game.Board, depth int) searcher.Result {
	return searcher.AlphaBeta(game.Black, board.Copy(), depth, -meta.Infinity, meta.Infinity, searcher.Unlimited())
}

func TestSingleProcessMatchesSequential(t *testing.T) {
	for _, depth := range []int{1, 2, 3, 4} {
		for i, board := range positions(t) {
			cluster, err := NewLocalCluster(context.Background(), 1, depth, 0)
			require.NoError(t, err)
			got, err := cluster.FindMove(game.Black, board)
			require.NoError(t, err)
			require.Equal(t, sequential(board, depth), got, "position %d at depth %d", i, depth)
			nodes, err := cluster.Close()
			require.NoError(t, err)
			require.Len(t, nodes, 1)
		}
	}
}

func TestClusterScoresMatchSequential(t *testing.T) {
	const depth = 4
	for _, procs := range []int{2, 4, 7, 13} {
		cluster, err := NewLocalCluster(context.Background(), procs, depth, 0, WithAggregationTimeout(time.Minute))
		require.NoError(t, err)

		for i, board := range positions(t) {
			want := sequential(board, depth)
			got, err := cluster.FindMove(game.Black, board)
			require.NoError(t, err)
			require.Equal(t, want.Score, got.Score, "position %d with %d procs", i, procs)
			require.True(t, board.IsLegal(got.Move, game.Black), "position %d with %d procs", i, procs)

			// Moves tied on score may be picked in arrival order, so check the
			// move achieves the score rather than comparing moves.
			child := board.Copy().MakeMove(got.Move, game.Black)
			again := -searcher.AlphaBeta(game.White, child, depth-1, -meta.Infinity, meta.Infinity, searcher.Unlimited()).Score
			require.Equal(t, got.Score, again)
		}

		nodes, err := cluster.Close()
		require.NoError(t, err)
		require.Len(t, nodes, procs)
		for rank, node := range nodes {
			require.Equal(t, rank, node.Node)
		}
		require.Positive(t, nodes[0].JobsDispatched, "the master hands moves to its children")
		require.Positive(t, nodes[1].JobsReceived)
		require.Positive(t, nodes[1].BoardsEvaluated)
	}
}

func TestClusterBoardBudget(t *testing.T) {
	cluster, err := NewLocalCluster(context.Background(), 4, 6, 0, WithMaxBoards(300))
	require.NoError(t, err)
	board := opening(t)
	got, err := cluster.FindMove(game.Black, board)
	require.NoError(t, err)
	require.True(t, board.IsLegal(got.Move, game.Black))
	require.LessOrEqual(t, cluster.Master().Evaluated(), int64(1000),
		"the master stops expanding once its share of 100 boards is spent")
	_, err = cluster.Close()
	require.NoError(t, err)
}

func TestShareBoards(t *testing.T) {
	require.Equal(t, int64(100), ShareBoards(100, 1))
	require.Equal(t, int64(100), ShareBoards(100, 2))
	require.Equal(t, int64(25), ShareBoards(100, 5))
	require.Equal(t, int64(0), ShareBoards(0, 5))
}

// startWorker runs rank 1 of a two-rank network and returns rank 0's endpoint.
func startWorker(t *testing.T) (*local.Transport, <-chan error) {
	t.Helper()
	network, err := local.NewNetwork(2)
	require.NoError(t, err)
	t.Cleanup(network.Close)
	zero, err := network.Transport(0)
	require.NoError(t, err)
	one, err := network.Transport(1)
	require.NoError(t, err)
	worker, err := NewWorker(one)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()
	return zero, done
}

func expect(t *testing.T, tr communication.Transport) communication.Message {
	t.Helper()
	env, ok, err := tr.Receive(10 * time.Second)
	require.NoError(t, err)
	require.True(t, ok, "no reply within the timeout")
	require.Equal(t, 1, env.From)
	return env.Message
}

func TestWorker(t *testing.T) {
	t.Run("an idle worker acks cutoffs and ignores strays", func(t *testing.T) {
		zero, done := startWorker(t)
		require.NoError(t, zero.Send(1, communication.Result{JobID: 3, Score: 1, Move: 11}))
		require.NoError(t, zero.Send(1, communication.Cutoff{JobID: 42}))
		require.Equal(t, communication.CutoffAck{JobID: 42}, expect(t, zero))

		require.NoError(t, zero.Send(1, communication.Termination{}))
		ack, ok := expect(t, zero).(communication.TerminationAck)
		require.True(t, ok)
		require.Equal(t, 1, ack.Metrics.Node)
		require.Equal(t, int64(1), ack.Metrics.CutoffsReceived)
		require.NoError(t, <-done)
	})

	t.Run("a leaf job is answered with its evaluation and move", func(t *testing.T) {
		zero, done := startWorker(t)
		board := opening(t)
		d3, err := board.Layout().Index("d3")
		require.NoError(t, err)
		root := communication.Job{ID: 1, Search: 1, Board: board, Player: game.Black, Depth: 1,
			Alpha: -meta.Infinity, Beta: meta.Infinity, Move: game.NoMove}
		job := root.Child(7, d3, -meta.Infinity)
		require.Equal(t, 0, job.Depth)

		require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
		require.Equal(t, communication.Result{JobID: 7, Score: -3, Move: d3}, expect(t, zero))

		require.NoError(t, zero.Send(1, communication.Termination{}))
		ack := expect(t, zero).(communication.TerminationAck)
		require.Equal(t, int64(1), ack.Metrics.JobsReceived)
		require.Equal(t, int64(1), ack.Metrics.BoardsEvaluated)
		require.NoError(t, <-done)
	})

	t.Run("a job matches sequential search", func(t *testing.T) {
		zero, done := startWorker(t)
		for i, board := range positions(t) {
			job := communication.Job{ID: uint64(i + 1), Search: uint64(i + 1), Board: board, Player: game.Black,
				Depth: 3, Alpha: -meta.Infinity, Beta: meta.Infinity, Move: 55}
			require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
			want := sequential(board, 3)
			require.Equal(t, communication.Result{JobID: job.ID, Score: want.Score, Move: 55}, expect(t, zero))
		}
		require.NoError(t, zero.Send(1, communication.Termination{}))
		_ = expect(t, zero)
		require.NoError(t, <-done)
	})

	t.Run("a cut off job is abandoned without a result", func(t *testing.T) {
		zero, done := startWorker(t)
		job := communication.Job{ID: 9, Search: 1, Board: opening(t), Player: game.Black,
			Depth: 7, Alpha: -meta.Infinity, Beta: meta.Infinity, Move: 12}
		require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
		require.NoError(t, zero.Send(1, communication.Cutoff{JobID: 9}))
		require.Equal(t, communication.CutoffAck{JobID: 9}, expect(t, zero))

		require.NoError(t, zero.Send(1, communication.Termination{}))
		_, ok := expect(t, zero).(communication.TerminationAck)
		require.True(t, ok, "nothing is sent between the cutoff ack and the termination ack")
		require.NoError(t, <-done)
	})

	t.Run("termination during a search stops the worker", func(t *testing.T) {
		zero, done := startWorker(t)
		job := communication.Job{ID: 4, Search: 1, Board: opening(t), Player: game.Black,
			Depth: 7, Alpha: -meta.Infinity, Beta: meta.Infinity, Move: 12}
		require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
		require.NoError(t, zero.Send(1, communication.Termination{}))
		_, ok := expect(t, zero).(communication.TerminationAck)
		require.True(t, ok)
		require.NoError(t, <-done)

		_, ok, err := zero.Receive(50 * time.Millisecond)
		require.NoError(t, err)
		require.False(t, ok, "a terminated worker sends nothing more")
	})

	t.Run("the worker stops when its context ends", func(t *testing.T) {
		network, err := local.NewNetwork(2)
		require.NoError(t, err)
		one, err := network.Transport(1)
		require.NoError(t, err)
		worker, err := NewWorker(one)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, worker.Run(ctx), context.Canceled)
	})
}

// startInner runs rank 1 of a three-rank network with fanout one, so rank 1
// is an inner node whose only child is rank 2. The test drives ranks 0 and 2.
func startInner(t *testing.T) (*local.Transport, *local.Transport, <-chan error) {
	t.Helper()
	network, err := local.NewNetwork(3)
	require.NoError(t, err)
	t.Cleanup(network.Close)
	zero, err := network.Transport(0)
	require.NoError(t, err)
	one, err := network.Transport(1)
	require.NoError(t, err)
	two, err := network.Transport(2)
	require.NoError(t, err)
	worker, err := NewWorker(one, WithFanout(1), WithAggregationTimeout(time.Minute))
	require.NoError(t, err)
	require.Equal(t, []int{2}, worker.node.topology.Children())

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()
	return zero, two, done
}

func silent(t *testing.T, tr communication.Transport, msg string) {
	t.Helper()
	_, ok, err := tr.Receive(100 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok, msg)
}

func TestInnerWorker(t *testing.T) {
	t.Run("cutoffs are forwarded to the child before the parent is acked", func(t *testing.T) {
		zero, two, done := startInner(t)
		job := communication.Job{ID: 11, Search: 1, Board: opening(t), Player: game.Black,
			Depth: 3, Alpha: -meta.Infinity, Beta: meta.Infinity, Move: 12}
		require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
		sub, ok := expect(t, two).(communication.Subproblem)
		require.True(t, ok)
		require.Equal(t, 2, sub.Job.Depth)

		require.NoError(t, zero.Send(1, communication.Cutoff{JobID: 11}))
		require.Equal(t, communication.Cutoff{JobID: sub.Job.ID}, expect(t, two))
		silent(t, zero, "the parent is acked only after the child")

		require.NoError(t, two.Send(1, communication.CutoffAck{JobID: sub.Job.ID}))
		require.Equal(t, communication.CutoffAck{JobID: 11}, expect(t, zero))

		require.NoError(t, zero.Send(1, communication.Termination{}))
		ack, ok := expect(t, zero).(communication.TerminationAck)
		require.True(t, ok)
		require.Equal(t, int64(1), ack.Metrics.CutoffsSent)
		require.NoError(t, <-done)
		silent(t, two, "nothing reaches the child after termination")
	})

	t.Run("a late child result still counts after a local cutoff", func(t *testing.T) {
		zero, two, done := startInner(t)
		// Any local move fails high against this window, so rank 1 cuts
		// its child off right after the first local search.
		job := communication.Job{ID: 3, Search: 1, Board: opening(t), Player: game.Black,
			Depth: 2, Alpha: -100, Beta: -50, Move: 12}
		require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
		sub, ok := expect(t, two).(communication.Subproblem)
		require.True(t, ok)
		require.Equal(t, communication.Cutoff{JobID: sub.Job.ID}, expect(t, two))

		require.NoError(t, two.Send(1, communication.Result{JobID: sub.Job.ID, Score: -70, Move: sub.Job.Move}))
		require.Equal(t, communication.Result{JobID: 3, Score: 70, Move: 12}, expect(t, zero))

		require.NoError(t, zero.Send(1, communication.Termination{}))
		_, ok = expect(t, zero).(communication.TerminationAck)
		require.True(t, ok)
		require.NoError(t, <-done)
		silent(t, two, "nothing reaches the child after termination")
	})

	t.Run("termination while the child holds a job sends it nothing more", func(t *testing.T) {
		zero, two, done := startInner(t)
		job := communication.Job{ID: 5, Search: 1, Board: opening(t), Player: game.Black,
			Depth: 4, Alpha: -meta.Infinity, Beta: meta.Infinity, Move: 12}
		require.NoError(t, zero.Send(1, communication.Subproblem{Job: job}))
		_, ok := expect(t, two).(communication.Subproblem)
		require.True(t, ok)

		require.NoError(t, zero.Send(1, communication.Termination{}))
		_, ok = expect(t, zero).(communication.TerminationAck)
		require.True(t, ok)
		require.NoError(t, <-done)
		silent(t, two, "nothing reaches the child after termination")
		silent(t, zero, "nothing follows the termination ack")
	})
}

func TestMasterAggregationTimeout(t *testing.T) {
	network, err := local.NewNetwork(2)
	require.NoError(t, err)
	defer network.Close()
	zero, err := network.Transport(0)
	require.NoError(t, err)
	master, err := NewMaster(zero, 3, 0, WithAggregationTimeout(50*time.Millisecond))
	require.NoError(t, err)

	// Rank 1 never answers, so the first move's subtree is lost.
	board := opening(t)
	got, err := master.FindMove(game.Black, board)
	require.NoError(t, err)

	moves := board.GenerateMoves(game.Black)
	alpha, best := -meta.Infinity, game.NoMove
	for _, move := range moves[1:] {
		child := board.Copy().MakeMove(move, game.Black)
		score := -searcher.AlphaBeta(game.White, child, 2, -meta.Infinity, -alpha, searcher.Unlimited()).Score
		if score > alpha {
			alpha, best = score, move
		}
	}
	require.Equal(t, searcher.Result{Score: alpha, Move: best}, got)

	m := master.node.collector.Complete(0, 0)
	require.Equal(t, int64(1), m.Timeouts)
	require.Equal(t, int64(1), m.JobsDispatched)
	require.Equal(t, int64(len(moves)-1), m.LocalMoves)
}

func TestHandle(t *testing.T) {
	network, err := local.NewNetwork(3)
	require.NoError(t, err)
	defer network.Close()
	zero, err := network.Transport(0)
	require.NoError(t, err)
	n, err := newNode(zero, "master")
	require.NoError(t, err)

	board := opening(t)
	moves := board.GenerateMoves(game.Black)
	newFrame := func() *frame {
		return &frame{
			job:    communication.Job{ID: 1, Board: board, Player: game.Black, Depth: 2, Alpha: -meta.Infinity, Beta: meta.Infinity},
			from:   -1,
			moves:  moves,
			next:   len(moves),
			alpha:  -meta.Infinity,
			best:   game.NoMove,
			active: map[int]dispatched{1: {job: 5, move: moves[0]}},
		}
	}

	t.Run("stale results are discarded", func(t *testing.T) {
		f := newFrame()
		require.Equal(t, completed, n.handle(f, communication.Envelope{From: 1, Message: communication.Result{JobID: 4, Score: -10}}))
		require.Equal(t, completed, n.handle(f, communication.Envelope{From: 2, Message: communication.Result{JobID: 5, Score: -10}}))
		require.Equal(t, -meta.Infinity, f.alpha)
		require.Len(t, f.active, 1)

		n.handle(f, communication.Envelope{From: 1, Message: communication.Result{JobID: 5, Score: -10}})
		require.Equal(t, 10, f.alpha, "child scores are negated")
		require.Equal(t, moves[0], f.best)
		require.Empty(t, f.active)
	})

	t.Run("a result never lowers alpha", func(t *testing.T) {
		f := newFrame()
		f.alpha = 20
		n.handle(f, communication.Envelope{From: 1, Message: communication.Result{JobID: 5, Score: -10}})
		require.Equal(t, 20, f.alpha)
		require.Equal(t, game.NoMove, f.best)
	})

	t.Run("a freed child gets the next move", func(t *testing.T) {
		f := newFrame()
		f.next = 1
		n.handle(f, communication.Envelope{From: 1, Message: communication.Result{JobID: 5, Score: 0}})
		require.Equal(t, 2, f.next)
		require.Contains(t, f.active, 1)
		require.Equal(t, moves[1], f.active[1].move)
	})

	t.Run("a result during cutoff still raises alpha", func(t *testing.T) {
		f := newFrame()
		f.next = 1
		f.cutting = true
		n.handle(f, communication.Envelope{From: 1, Message: communication.Result{JobID: 5, Score: -50}})
		require.Equal(t, 50, f.alpha)
		require.Equal(t, moves[0], f.best)
		require.Empty(t, f.active)
		require.Equal(t, 1, f.next, "a child being cut off gets no new work")
	})

	t.Run("subproblems are deferred and cutoffs drop them", func(t *testing.T) {
		f := newFrame()
		sub := communication.Envelope{From: 2, Message: communication.Subproblem{Job: communication.Job{ID: 8}}}
		n.handle(f, sub)
		require.Len(t, n.pending, 1)
		n.handle(f, communication.Envelope{From: 2, Message: communication.Cutoff{JobID: 8}})
		require.Empty(t, n.pending)
		require.False(t, f.cancel)
	})

	t.Run("cutoff acks clear the child", func(t *testing.T) {
		f := newFrame()
		n.handle(f, communication.Envelope{From: 1, Message: communication.CutoffAck{JobID: 5}})
		require.Empty(t, f.active)
	})

	t.Run("termination ends the frame", func(t *testing.T) {
		f := newFrame()
		require.Equal(t, terminated, n.handle(f, communication.Envelope{From: 0, Message: communication.Termination{}}))
	})
}

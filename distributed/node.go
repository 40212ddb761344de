// Package distributed spreads an alpha-beta search over a tree of processes.
// Every process runs a Node; rank 0 wraps its node in a Master and the rest
// run Worker loops. A node hands its first moves to its children in the
// topology and searches the remaining moves itself, folding child results
// into its window as they arrive.
package distributed

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"othello/communication"
	"othello/experiments/metrics"
	"othello/game"
	"othello/meta"
	"othello/searcher"
)

var ErrTerminated = errors.New("search terminated")

type Option func(*Node)

// WithFanout sets the number of children per node in the worker tree.
func WithFanout(fanout int) Option {
	return func(n *Node) {
		if fanout > 0 {
			n.fanout = fanout
		}
	}
}

// WithAggregationTimeout bounds how long a node waits on its children once
// its own moves are done, and how long it waits for cutoff acknowledgements.
func WithAggregationTimeout(d time.Duration) Option {
	return func(n *Node) {
		if d > 0 {
			n.aggregation = d
		}
	}
}

// WithMaxBoards caps the boards evaluated per root search across the whole
// cluster. Each node gets an equal share of the workers' total.
func WithMaxBoards(total int64) Option {
	return func(n *Node) {
		if total > 0 {
			n.maxBoards = total
		}
	}
}

// WithoutMetrics replaces the node's counters with a no-op collector.
func WithoutMetrics() Option {
	return func(n *Node) { n.collector = metrics.NewDummyCollector() }
}

type outcome int

const (
	completed outcome = iota
	cutoff
	terminated
)

// Node is the per-process search state shared by Master and Worker.
type Node struct {
	transport   communication.Transport
	topology    communication.Topology
	fanout      int
	aggregation time.Duration
	maxBoards   int64
	budget      *searcher.Budget
	collector   metrics.Collector
	logger      zerolog.Logger

	jobs     uint64 // last job id issued
	searchID uint64 // root search the budget was last reset for
	boards   int64  // boards evaluated in searches before the current one
	pending  []communication.Envelope
}

func newNode(transport communication.Transport, role string, opts ...Option) (*Node, error) {
	n := &Node{
		transport:   transport,
		fanout:      meta.FANOUT,
		aggregation: meta.AGGREGATION_TIMEOUT,
		budget:      searcher.Unlimited(),
		collector:   metrics.NewCollector(),
		logger:      log.With().Int("node", transport.ID()).Str("role", role).Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	topology, err := communication.NewTopology(transport.ID(), transport.Size(), n.fanout)
	if err != nil {
		return nil, err
	}
	n.topology = topology
	n.maxBoards = ShareBoards(n.maxBoards, transport.Size())
	return n, nil
}

// ShareBoards splits a cluster-wide board limit between the workers. A
// single process keeps the whole limit.
func ShareBoards(total int64, procs int) int64 {
	if total <= 0 {
		return 0
	}
	return total / int64(max(1, procs-1))
}

func (n *Node) Topology() communication.Topology { return n.topology }

// reset starts a new root search on this node.
func (n *Node) reset(search uint64, deadline time.Time) {
	n.boards += n.budget.Evaluated()
	n.searchID = search
	n.budget.Reset(n.maxBoards, deadline)
}

func (n *Node) boardsEvaluated() int64 {
	return n.boards + n.budget.Evaluated()
}

func (n *Node) send(to int, msg communication.Message) error {
	start := time.Now()
	err := n.transport.Send(to, msg)
	n.collector.AddCommTime(time.Since(start))
	if err != nil {
		n.logger.Warn().Err(err).Int("to", to).Str("kind", string(msg.Kind())).Msg("send-failed")
	}
	return err
}

// next returns a deferred subproblem if there is one, else the next message
// from the transport.
func (n *Node) next(timeout time.Duration) (communication.Envelope, bool, error) {
	if len(n.pending) > 0 {
		env := n.pending[0]
		n.pending = n.pending[1:]
		return env, true, nil
	}
	start := time.Now()
	env, ok, err := n.transport.Receive(timeout)
	if ok {
		n.collector.AddCommTime(time.Since(start))
	}
	return env, ok, err
}

func (n *Node) receive(timeout time.Duration) (communication.Envelope, bool, error) {
	start := time.Now()
	env, ok, err := n.transport.Receive(timeout)
	if ok {
		n.collector.AddCommTime(time.Since(start))
	}
	return env, ok, err
}

func (n *Node) terminate(from int) {
	ack := communication.TerminationAck{Metrics: n.collector.Complete(n.topology.ID(), n.boardsEvaluated())}
	_ = n.send(from, ack)
	n.logger.Debug().Int("from", from).Msg("terminated")
}

// ackCutoff answers a cutoff that does not name the running job. A deferred
// subproblem it names is dropped.
func (n *Node) ackCutoff(from int, jobID uint64) {
	n.collector.AddCutoffReceived()
	for i, env := range n.pending {
		if sub, ok := env.Message.(communication.Subproblem); ok && env.From == from && sub.Job.ID == jobID {
			n.pending = append(n.pending[:i], n.pending[i+1:]...)
			break
		}
	}
	_ = n.send(from, communication.CutoffAck{JobID: jobID})
}

type dispatched struct {
	job  uint64
	move int
}

// frame is the state of one job being searched on this node.
type frame struct {
	job     communication.Job
	from    int // rank the job came from, -1 at the root
	moves   []int
	next    int
	alpha   int
	best    int
	active  map[int]dispatched
	cancel  bool // the sender cut this job off
	cutting bool // cutoffs sent to children, waiting on acks
}

func (f *frame) raise(score, move int) {
	if score > f.alpha {
		f.alpha = score
		f.best = move
	}
}

func (f *frame) done() bool {
	return f.cancel || f.alpha >= f.job.Beta
}

// search runs job from rank from and returns the window's final alpha with
// the move that produced it. The result is meaningless unless the outcome is
// completed.
func (n *Node) search(job communication.Job, from int) (searcher.Result, outcome) {
	if job.Depth <= 0 || n.budget.Exhausted() {
		return searcher.Result{Score: n.budget.Evaluate(job.Player, job.Board), Move: game.NoMove}, completed
	}

	moves := job.Board.GenerateMoves(job.Player)
	if len(moves) == 0 {
		start := time.Now()
		res := searcher.AlphaBeta(job.Player, job.Board, job.Depth, job.Alpha, job.Beta, n.budget)
		n.collector.AddCompTime(time.Since(start))
		return res, completed
	}

	f := &frame{
		job:    job,
		from:   from,
		moves:  moves,
		alpha:  job.Alpha,
		best:   game.NoMove,
		active: make(map[int]dispatched),
	}
	for _, child := range n.topology.Children() {
		if f.next >= len(f.moves) {
			break
		}
		n.dispatch(f, child)
	}

	for !f.done() {
		if n.poll(f) == terminated {
			return searcher.Result{}, terminated
		}
		if f.done() || f.next >= len(f.moves) {
			break
		}
		move := f.moves[f.next]
		f.next++
		n.collector.AddLocalMove()
		start := time.Now()
		child := job.Board.Copy().MakeMove(move, job.Player)
		score := -searcher.AlphaBeta(job.Player.Opponent(), child, job.Depth-1, -job.Beta, -f.alpha, n.budget).Score
		n.collector.AddCompTime(time.Since(start))
		f.raise(score, move)
	}

	if n.aggregate(f) == terminated {
		return searcher.Result{}, terminated
	}
	if f.cancel {
		_ = n.send(f.from, communication.CutoffAck{JobID: job.ID})
		return searcher.Result{}, cutoff
	}
	return searcher.Result{Score: f.alpha, Move: f.best}, completed
}

// dispatch hands the next unassigned move to child. The move stays with
// this node if the send fails.
func (n *Node) dispatch(f *frame, child int) {
	n.jobs++
	move := f.moves[f.next]
	sub := f.job.Child(n.jobs, move, f.alpha)
	if err := n.send(child, communication.Subproblem{Job: sub}); err != nil {
		return
	}
	f.next++
	f.active[child] = dispatched{job: sub.ID, move: move}
	n.collector.AddJobDispatched()
	n.logger.Debug().Int("child", child).Uint64("job", sub.ID).Str("move", f.job.Board.Layout().Label(move)).Msg("sent-subproblem")
}

// poll handles every message that is already waiting.
func (n *Node) poll(f *frame) outcome {
	for {
		env, ok, err := n.receive(0)
		if err != nil {
			return terminated
		}
		if !ok {
			return completed
		}
		if n.handle(f, env) == terminated {
			return terminated
		}
	}
}

// aggregate waits for outstanding children, cutting them off first if the
// job is already decided.
func (n *Node) aggregate(f *frame) outcome {
	deadline := time.Now().Add(n.aggregation)
	for len(f.active) > 0 {
		if f.done() && !f.cutting {
			n.cutoffChildren(f)
			deadline = time.Now().Add(n.aggregation)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			n.collector.AddTimeout()
			n.logger.Warn().Int("outstanding", len(f.active)).Bool("cutting", f.cutting).Msg("aggregation-timeout")
			clear(f.active)
			return completed
		}
		env, ok, err := n.receive(remaining)
		if err != nil {
			return terminated
		}
		if ok && n.handle(f, env) == terminated {
			return terminated
		}
	}
	return completed
}

func (n *Node) cutoffChildren(f *frame) {
	f.cutting = true
	for child, d := range f.active {
		if err := n.send(child, communication.Cutoff{JobID: d.job}); err != nil {
			delete(f.active, child)
			continue
		}
		n.collector.AddCutoffSent()
	}
}

// handle applies one message to the running frame.
func (n *Node) handle(f *frame, env communication.Envelope) outcome {
	switch msg := env.Message.(type) {
	case communication.Termination:
		n.terminate(env.From)
		return terminated

	case communication.Cutoff:
		if env.From == f.from && msg.JobID == f.job.ID {
			n.collector.AddCutoffReceived()
			f.cancel = true
			n.logger.Debug().Uint64("job", msg.JobID).Msg("received-cutoff")
			return completed
		}
		n.ackCutoff(env.From, msg.JobID)

	case communication.CutoffAck:
		if d, ok := f.active[env.From]; ok && d.job == msg.JobID {
			delete(f.active, env.From)
		}

	case communication.Result:
		d, ok := f.active[env.From]
		if !ok || d.job != msg.JobID {
			n.logger.Debug().Int("from", env.From).Uint64("job", msg.JobID).Msg("stale-result")
			return completed
		}
		delete(f.active, env.From)
		f.raise(-msg.Score, d.move)
		if !f.cutting && !f.done() && f.next < len(f.moves) {
			n.dispatch(f, env.From)
		}

	case communication.Subproblem:
		n.pending = append(n.pending, env)

	default:
		n.logger.Debug().Int("from", env.From).Str("kind", string(env.Message.Kind())).Msg("ignored-message")
	}
	return completed
}

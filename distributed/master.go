package distributed

import (
	"fmt"
	"sort"
	"time"

	"othello/communication"
	"othello/experiments/metrics"
	"othello/game"
	"othello/meta"
	"othello/searcher"
)

const shutdownTimeout = 10 * time.Second

// Master runs root searches on rank 0 and shuts the cluster down.
type Master struct {
	node     *Node
	depth    int
	timeout  time.Duration
	searches uint64
}

var _ searcher.Strategy = (*Master)(nil)

// NewMaster searches depth plies per move and gives each move at most timeout
// of wall-clock time. A zero timeout means no deadline.
func NewMaster(transport communication.Transport, depth int, timeout time.Duration, opts ...Option) (*Master, error) {
	if transport.ID() != meta.MASTER_ID {
		return nil, fmt.Errorf("master must run on rank %d, not %d", meta.MASTER_ID, transport.ID())
	}
	if depth <= 0 {
		return nil, fmt.Errorf("search depth %d must be positive", depth)
	}
	node, err := newNode(transport, "master", opts...)
	if err != nil {
		return nil, err
	}
	return &Master{node: node, depth: depth, timeout: timeout}, nil
}

// FindMove searches the position with the whole cluster.
func (m *Master) FindMove(player game.Cell, board *game.Board) (searcher.Result, error) {
	m.searches++
	var deadline time.Time
	if m.timeout > 0 {
		deadline = time.Now().Add(m.timeout)
	}
	m.node.reset(m.searches, deadline)
	m.node.jobs++
	job := communication.Job{
		ID:       m.node.jobs,
		Search:   m.searches,
		Board:    board.Copy(),
		Player:   player,
		Depth:    m.depth,
		Alpha:    -meta.Infinity,
		Beta:     meta.Infinity,
		Move:     game.NoMove,
		Deadline: deadline,
	}

	start := time.Now()
	res, o := m.node.search(job, -1)
	if o != completed {
		return searcher.Result{}, ErrTerminated
	}
	m.node.logger.Info().
		Str("player", player.String()).
		Str("move", board.Layout().Label(res.Move)).
		Int("score", res.Score).
		Int64("boards", m.node.budget.Evaluated()).
		Dur("elapsed", time.Since(start)).
		Msg("distributed-search")
	return res, nil
}

// Evaluated reports the boards this rank charged during the last search.
func (m *Master) Evaluated() int64 {
	return m.node.budget.Evaluated()
}

// Shutdown sends Termination to every worker and collects their counters,
// the master's own first. Workers that have not acknowledged within the
// timeout are missing from the result and reported in the error.
func (m *Master) Shutdown() ([]metrics.NodeMetric, error) {
	n := m.node
	waiting := make(map[int]bool)
	for _, worker := range n.topology.Workers() {
		if err := n.send(worker, communication.Termination{}); err == nil {
			waiting[worker] = true
		}
	}

	var workers []metrics.NodeMetric
	deadline := time.Now().Add(shutdownTimeout)
	for len(waiting) > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		env, ok, err := n.receive(remaining)
		if err != nil {
			break
		}
		if !ok {
			continue
		}
		ack, isAck := env.Message.(communication.TerminationAck)
		if !isAck || !waiting[env.From] {
			continue
		}
		delete(waiting, env.From)
		workers = append(workers, ack.Metrics)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].Node < workers[j].Node })

	all := append([]metrics.NodeMetric{n.collector.Complete(n.topology.ID(), n.boardsEvaluated())}, workers...)
	if len(waiting) > 0 {
		return all, fmt.Errorf("%d workers did not acknowledge termination", len(waiting))
	}
	n.logger.Info().Int("workers", len(workers)).Msg("cluster-terminated")
	return all, nil
}

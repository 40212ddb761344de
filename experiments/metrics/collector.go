package metrics

import (
	"sync/atomic"
	"time"
)

// NodeMetric summarises the work one process did for a search.
type NodeMetric struct {
	Node            int
	CommTime        time.Duration
	CompTime        time.Duration
	BoardsEvaluated int64
	JobsReceived    int64
	JobsDispatched  int64
	LocalMoves      int64
	CutoffsReceived int64
	CutoffsSent     int64
	Timeouts        int64
}

type MoveMetric struct {
	Step     int
	Player   string
	Move     string
	Score    int
	Duration time.Duration
	Boards   int64
}

type GameMetric struct {
	StartingPlayer string
	Winner         string // "" on a draw
	Black          int
	White          int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalMoves     int
}

type Collector interface {
	AddCommTime(d time.Duration)
	AddCompTime(d time.Duration)
	AddJobReceived()
	AddJobDispatched()
	AddLocalMove()
	AddCutoffReceived()
	AddCutoffSent()
	AddTimeout()
	Complete(node int, boards int64) NodeMetric
}

type collector struct {
	commTime        atomic.Int64
	compTime        atomic.Int64
	jobsReceived    atomic.Int64
	jobsDispatched  atomic.Int64
	localMoves      atomic.Int64
	cutoffsReceived atomic.Int64
	cutoffsSent     atomic.Int64
	timeouts        atomic.Int64
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) AddCommTime(d time.Duration) {
	m.commTime.Add(int64(d))
}

func (m *collector) AddCompTime(d time.Duration) {
	m.compTime.Add(int64(d))
}

func (m *collector) AddJobReceived()    { m.jobsReceived.Add(1) }
func (m *collector) AddJobDispatched()  { m.jobsDispatched.Add(1) }
func (m *collector) AddLocalMove()      { m.localMoves.Add(1) }
func (m *collector) AddCutoffReceived() { m.cutoffsReceived.Add(1) }
func (m *collector) AddCutoffSent()     { m.cutoffsSent.Add(1) }
func (m *collector) AddTimeout()        { m.timeouts.Add(1) }

func (m *collector) Complete(node int, boards int64) NodeMetric {
	return NodeMetric{
		Node:            node,
		CommTime:        time.Duration(m.commTime.Load()),
		CompTime:        time.Duration(m.compTime.Load()),
		BoardsEvaluated: boards,
		JobsReceived:    m.jobsReceived.Load(),
		JobsDispatched:  m.jobsDispatched.Load(),
		LocalMoves:      m.localMoves.Load(),
		CutoffsReceived: m.cutoffsReceived.Load(),
		CutoffsSent:     m.cutoffsSent.Load(),
		Timeouts:        m.timeouts.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) AddCommTime(d time.Duration) {}
func (m *dummyCollector) AddCompTime(d time.Duration) {}
func (m *dummyCollector) AddJobReceived()             {}
func (m *dummyCollector) AddJobDispatched()           {}
func (m *dummyCollector) AddLocalMove()               {}
func (m *dummyCollector) AddCutoffReceived()          {}
func (m *dummyCollector) AddCutoffSent()              {}
func (m *dummyCollector) AddTimeout()                 {}
func (m *dummyCollector) Complete(node int, boards int64) NodeMetric {
	return NodeMetric{Node: node, BoardsEvaluated: boards}
}

// Total sums the counters of every node; Node is set to -1.
func Total(nodes []NodeMetric) NodeMetric {
	total := NodeMetric{Node: -1}
	for _, n := range nodes {
		total.CommTime += n.CommTime
		total.CompTime += n.CompTime
		total.BoardsEvaluated += n.BoardsEvaluated
		total.JobsReceived += n.JobsReceived
		total.JobsDispatched += n.JobsDispatched
		total.LocalMoves += n.LocalMoves
		total.CutoffsReceived += n.CutoffsReceived
		total.CutoffsSent += n.CutoffsSent
		total.Timeouts += n.Timeouts
	}
	return total
}

package communication

import (
	"time"

	"othello/experiments/metrics"
	"othello/game"
)

type Kind string

const (
	KindSubproblem     Kind = "subproblem"
	KindResult         Kind = "result"
	KindCutoff         Kind = "cutoff"
	KindCutoffAck      Kind = "cutoff_ack"
	KindTermination    Kind = "termination"
	KindTerminationAck Kind = "termination_ack"
)

// Message is one of the protocol messages below.
type Message interface {
	Kind() Kind
}

// Job is a unit of distributable search work. It is copied to exactly one
// worker; the sender keeps no claim on it until the matching Result arrives.
type Job struct {
	ID       uint64 // unique per sender
	Search   uint64 // root search the job belongs to
	Board    *game.Board
	Player   game.Cell
	Depth    int
	Alpha    int
	Beta     int
	Move     int // move that produced Board, echoed in the Result
	Deadline time.Time
}

// Child packages move as a job for the opponent one ply deeper, with the
// window swapped and negated around the current alpha.
func (j Job) Child(id uint64, move, alpha int) Job {
	return Job{
		ID:       id,
		Search:   j.Search,
		Board:    j.Board.Copy().MakeMove(move, j.Player),
		Player:   j.Player.Opponent(),
		Depth:    j.Depth - 1,
		Alpha:    -j.Beta,
		Beta:     -alpha,
		Move:     move,
		Deadline: j.Deadline,
	}
}

type Subproblem struct {
	Job Job
}

// Result answers the Subproblem with the same job id.
type Result struct {
	JobID uint64
	Score int
	Move  int
}

// Cutoff asks the receiver to abandon the job with JobID.
type Cutoff struct {
	JobID uint64
}

type CutoffAck struct {
	JobID uint64
}

type Termination struct{}

// TerminationAck carries the worker's counters back to the master.
type TerminationAck struct {
	Metrics metrics.NodeMetric
}

func (Subproblem) Kind() Kind     { return KindSubproblem }
func (Result) Kind() Kind         { return KindResult }
func (Cutoff) Kind() Kind         { return KindCutoff }
func (CutoffAck) Kind() Kind      { return KindCutoffAck }
func (Termination) Kind() Kind    { return KindTermination }
func (TerminationAck) Kind() Kind { return KindTerminationAck }

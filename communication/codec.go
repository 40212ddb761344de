package communication

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"othello/experiments/metrics"
	"othello/game"
)

var ErrUnknownKind = errors.New("unknown message kind")

type wireEnvelope struct {
	Type    Kind            `json:"type"`
	From    int             `json:"from"`
	To      int             `json:"to"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireJob struct {
	ID       uint64 `json:"id"`
	Search   uint64 `json:"search"`
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	Board    string `json:"board"`
	Player   string `json:"player"`
	Depth    int    `json:"depth"`
	Alpha    int    `json:"alpha"`
	Beta     int    `json:"beta"`
	Move     int    `json:"move"`
	Deadline int64  `json:"deadline,omitempty"` // unix nanoseconds, 0 for none
}

type wireResult struct {
	JobID uint64 `json:"job"`
	Score int    `json:"score"`
	Move  int    `json:"move"`
}

type wireJobRef struct {
	JobID uint64 `json:"job"`
}

type wireTerminationAck struct {
	Metrics metrics.NodeMetric `json:"metrics"`
}

// Encode serialises an envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	if env.Message == nil {
		return nil, fmt.Errorf("encoding envelope from %d to %d: nil message", env.From, env.To)
	}
	var payload any
	switch msg := env.Message.(type) {
	case Subproblem:
		payload = encodeJob(msg.Job)
	case Result:
		payload = wireResult{JobID: msg.JobID, Score: msg.Score, Move: msg.Move}
	case Cutoff:
		payload = wireJobRef{JobID: msg.JobID}
	case CutoffAck:
		payload = wireJobRef{JobID: msg.JobID}
	case Termination:
	case TerminationAck:
		payload = wireTerminationAck{Metrics: msg.Metrics}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, env.Message)
	}

	wire := wireEnvelope{Type: env.Message.Kind(), From: env.From, To: env.To}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", wire.Type, err)
		}
		wire.Payload = raw
	}
	return json.Marshal(wire)
}

// Decode parses a frame produced by Encode into a typed envelope.
func Decode(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	env := Envelope{From: wire.From, To: wire.To}

	unmarshal := func(v any) error {
		if len(wire.Payload) == 0 {
			return fmt.Errorf("decoding %s: missing payload", wire.Type)
		}
		if err := json.Unmarshal(wire.Payload, v); err != nil {
			return fmt.Errorf("decoding %s payload: %w", wire.Type, err)
		}
		return nil
	}

	switch wire.Type {
	case KindSubproblem:
		var wj wireJob
		if err := unmarshal(&wj); err != nil {
			return Envelope{}, err
		}
		job, err := decodeJob(wj)
		if err != nil {
			return Envelope{}, err
		}
		env.Message = Subproblem{Job: job}
	case KindResult:
		var wr wireResult
		if err := unmarshal(&wr); err != nil {
			return Envelope{}, err
		}
		env.Message = Result{JobID: wr.JobID, Score: wr.Score, Move: wr.Move}
	case KindCutoff, KindCutoffAck:
		var ref wireJobRef
		if err := unmarshal(&ref); err != nil {
			return Envelope{}, err
		}
		if wire.Type == KindCutoff {
			env.Message = Cutoff{JobID: ref.JobID}
		} else {
			env.Message = CutoffAck{JobID: ref.JobID}
		}
	case KindTermination:
		env.Message = Termination{}
	case KindTerminationAck:
		var ack wireTerminationAck
		if err := unmarshal(&ack); err != nil {
			return Envelope{}, err
		}
		env.Message = TerminationAck{Metrics: ack.Metrics}
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, wire.Type)
	}
	return env, nil
}

func encodeJob(job Job) wireJob {
	layout := job.Board.Layout()
	var deadline int64
	if !job.Deadline.IsZero() {
		deadline = job.Deadline.UnixNano()
	}
	return wireJob{
		ID:       job.ID,
		Search:   job.Search,
		Rows:     layout.Rows,
		Cols:     layout.Cols,
		Board:    job.Board.Encode(),
		Player:   string(rune(job.Player)),
		Depth:    job.Depth,
		Alpha:    job.Alpha,
		Beta:     job.Beta,
		Move:     job.Move,
		Deadline: deadline,
	}
}

func decodeJob(wj wireJob) (Job, error) {
	layout, err := game.NewLayout(wj.Rows, wj.Cols)
	if err != nil {
		return Job{}, fmt.Errorf("decoding job %d: %w", wj.ID, err)
	}
	board, err := game.DecodeBoard(layout, wj.Board)
	if err != nil {
		return Job{}, fmt.Errorf("decoding job %d: %w", wj.ID, err)
	}
	if len(wj.Player) != 1 || (game.Cell(wj.Player[0]) != game.Black && game.Cell(wj.Player[0]) != game.White) {
		return Job{}, fmt.Errorf("decoding job %d: bad player %q", wj.ID, wj.Player)
	}
	var deadline time.Time
	if wj.Deadline != 0 {
		deadline = time.Unix(0, wj.Deadline)
	}
	return Job{
		ID:       wj.ID,
		Search:   wj.Search,
		Board:    board,
		Player:   game.Cell(wj.Player[0]),
		Depth:    wj.Depth,
		Alpha:    wj.Alpha,
		Beta:     wj.Beta,
		Move:     wj.Move,
		Deadline: deadline,
	}, nil
}

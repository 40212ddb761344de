package distributed

import (
	"context"
	"errors"

	"othello/communication"
	"othello/meta"
)

// Worker serves subproblems until the master terminates it.
type Worker struct {
	node *Node
}

func NewWorker(transport communication.Transport, opts ...Option) (*Worker, error) {
	if transport.ID() == meta.MASTER_ID {
		return nil, errors.New("rank 0 is reserved for the master")
	}
	node, err := newNode(transport, "worker", opts...)
	if err != nil {
		return nil, err
	}
	return &Worker{node: node}, nil
}

// Run returns nil after acknowledging Termination, or the context's error.
func (w *Worker) Run(ctx context.Context) error {
	n := w.node
	n.logger.Debug().Ints("children", n.topology.Children()).Msg("worker-started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		env, ok, err := n.next(meta.IDLE_POLL)
		if err != nil {
			if errors.Is(err, communication.ErrClosed) {
				return nil
			}
			return err
		}
		if !ok {
			continue
		}

		switch msg := env.Message.(type) {
		case communication.Termination:
			n.terminate(env.From)
			return nil
		case communication.Cutoff:
			n.ackCutoff(env.From, msg.JobID)
		case communication.Subproblem:
			if w.serve(env.From, msg.Job) == terminated {
				return nil
			}
		default:
			n.logger.Debug().Int("from", env.From).Str("kind", string(env.Message.Kind())).Msg("ignored-message")
		}
	}
}

func (w *Worker) serve(from int, job communication.Job) outcome {
	n := w.node
	n.collector.AddJobReceived()
	if job.Search != n.searchID {
		n.reset(job.Search, job.Deadline)
	}
	res, o := n.search(job, from)
	if o == completed {
		_ = n.send(from, communication.Result{JobID: job.ID, Score: res.Score, Move: job.Move})
	}
	return o
}

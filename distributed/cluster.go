package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"othello/communication/local"
	"othello/experiments/metrics"
	"othello/game"
	"othello/searcher"
)

// Cluster runs a master and procs-1 workers as goroutines over a local network.
type Cluster struct {
	master  *Master
	network *local.Network
	group   *errgroup.Group
	cancel  context.CancelFunc
}

var _ searcher.Strategy = (*Cluster)(nil)

func NewLocalCluster(ctx context.Context, procs, depth int, timeout time.Duration, opts ...Option) (*Cluster, error) {
	network, err := local.NewNetwork(procs)
	if err != nil {
		return nil, err
	}
	mt, err := network.Transport(0)
	if err != nil {
		return nil, err
	}
	master, err := NewMaster(mt, depth, timeout, opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	for id := 1; id < procs; id++ {
		wt, err := network.Transport(id)
		if err != nil {
			cancel()
			return nil, err
		}
		worker, err := NewWorker(wt, opts...)
		if err != nil {
			cancel()
			return nil, err
		}
		group.Go(func() error {
			if err := worker.Run(ctx); err != nil {
				return fmt.Errorf("worker %d: %w", wt.ID(), err)
			}
			return nil
		})
	}
	return &Cluster{master: master, network: network, group: group, cancel: cancel}, nil
}

func (c *Cluster) FindMove(player game.Cell, board *game.Board) (searcher.Result, error) {
	return c.master.FindMove(player, board)
}

func (c *Cluster) Master() *Master { return c.master }

// Evaluated reports the boards the master charged during the last search.
func (c *Cluster) Evaluated() int64 { return c.master.Evaluated() }

// Close terminates the workers and returns every node's counters.
func (c *Cluster) Close() ([]metrics.NodeMetric, error) {
	nodes, shutdownErr := c.master.Shutdown()
	c.cancel()
	err := c.group.Wait()
	c.network.Close()
	if shutdownErr != nil {
		return nodes, shutdownErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return nodes, err
	}
	return nodes, nil
}

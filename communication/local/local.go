// Package local runs every search process inside one OS process. Each
// message is still encoded and decoded so nothing is shared between ranks.
package local

import (
	"fmt"
	"sync"
	"time"

	"othello/communication"
)

// Network holds one mailbox per rank.
type Network struct {
	mailboxes []*communication.Mailbox
	closeOnce sync.Once
}

func NewNetwork(size int) (*Network, error) {
	if size <= 0 {
		return nil, fmt.Errorf("process count %d must be positive", size)
	}
	mailboxes := make([]*communication.Mailbox, size)
	for i := range mailboxes {
		mailboxes[i] = communication.NewMailbox()
	}
	return &Network{mailboxes: mailboxes}, nil
}

func (n *Network) Size() int { return len(n.mailboxes) }

// Transport returns the endpoint for rank id.
func (n *Network) Transport(id int) (*Transport, error) {
	if id < 0 || id >= len(n.mailboxes) {
		return nil, fmt.Errorf("%w: rank %d", communication.ErrUnknownPeer, id)
	}
	return &Transport{id: id, network: n}, nil
}

// Close shuts every mailbox.
func (n *Network) Close() {
	n.closeOnce.Do(func() {
		for _, mb := range n.mailboxes {
			mb.Close()
		}
	})
}

type Transport struct {
	id      int
	network *Network
}

var _ communication.Transport = (*Transport)(nil)

func (t *Transport) ID() int   { return t.id }
func (t *Transport) Size() int { return t.network.Size() }

func (t *Transport) Send(to int, msg communication.Message) error {
	if to < 0 || to >= t.network.Size() {
		return fmt.Errorf("%w: rank %d", communication.ErrUnknownPeer, to)
	}
	data, err := communication.Encode(communication.Envelope{From: t.id, To: to, Message: msg})
	if err != nil {
		return err
	}
	env, err := communication.Decode(data)
	if err != nil {
		return err
	}
	return t.network.mailboxes[to].Put(env)
}

func (t *Transport) Receive(timeout time.Duration) (communication.Envelope, bool, error) {
	return t.network.mailboxes[t.id].Receive(timeout)
}

// Close closes this rank's mailbox only.
func (t *Transport) Close() error {
	t.network.mailboxes[t.id].Close()
	return nil
}

package communication

import (
	"sync"
	"time"
)

// Mailbox is an unbounded FIFO of envelopes. Put never blocks, so a process
// that is busy searching cannot stall its senders.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Envelope
	notify chan struct{}
	closed bool
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

func (m *Mailbox) Put(env Envelope) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, env)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *Mailbox) pop() (Envelope, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) > 0 {
		env := m.queue[0]
		m.queue[0] = Envelope{}
		m.queue = m.queue[1:]
		return env, true, nil
	}
	if m.closed {
		return Envelope{}, false, ErrClosed
	}
	return Envelope{}, false, nil
}

// Receive waits up to timeout for the next envelope. Queued envelopes are
// still delivered after Close; ErrClosed is returned once the queue drains.
func (m *Mailbox) Receive(timeout time.Duration) (Envelope, bool, error) {
	env, ok, err := m.pop()
	if ok || err != nil || timeout <= 0 {
		return env, ok, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-m.notify:
			env, ok, err = m.pop()
			if ok || err != nil {
				return env, ok, err
			}
		case <-timer.C:
			return m.pop()
		}
	}
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

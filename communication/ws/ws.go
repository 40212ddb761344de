// Package ws carries protocol messages between OS processes over websockets.
// Every rank listens on its own address; a sender dials the receiver lazily
// and keeps one outgoing connection per peer.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"othello/communication"
)

const (
	defaultIdlePing    = 30 * time.Second
	defaultDialTimeout = 10 * time.Second
	dialBackoff        = 100 * time.Millisecond
	maxDialBackoff     = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

type Option func(*Transport)

// WithListener serves on an already bound listener instead of the rank's
// peer address.
func WithListener(l net.Listener) Option {
	return func(t *Transport) { t.listener = l }
}

// WithDialTimeout bounds how long Send keeps retrying a peer that is not up yet.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) { t.dialTimeout = d }
}

// WithIdlePing sets how long an outgoing connection may stay silent before
// a ping is written.
func WithIdlePing(d time.Duration) Option {
	return func(t *Transport) { t.idlePing = d }
}

type Transport struct {
	id          int
	peers       []string
	inbox       *communication.Mailbox
	listener    net.Listener
	server      *http.Server
	dialTimeout time.Duration
	idlePing    time.Duration
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu    sync.Mutex
	conns map[int]*peerConn
}

var _ communication.Transport = (*Transport)(nil)

type peerConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	lastWrite time.Time
	done      chan struct{}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// New starts serving rank id. peers holds one host:port per rank, in rank order.
func New(ctx context.Context, id int, peers []string, opts ...Option) (*Transport, error) {
	if id < 0 || id >= len(peers) {
		return nil, fmt.Errorf("%w: rank %d of %d peers", communication.ErrUnknownPeer, id, len(peers))
	}
	t := &Transport{
		id:          id,
		peers:       peers,
		inbox:       communication.NewMailbox(),
		dialTimeout: defaultDialTimeout,
		idlePing:    defaultIdlePing,
		logger:      log.With().Int("node", id).Str("transport", "ws").Logger(),
		conns:       make(map[int]*peerConn),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.listener == nil {
		l, err := net.Listen("tcp", peers[id])
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", peers[id], err)
		}
		t.listener = l
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", t.serveWS)
	t.server = &http.Server{Handler: r}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.group = new(errgroup.Group)
	t.group.Go(func() error {
		if err := t.server.Serve(t.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	t.group.Go(func() error {
		<-t.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := t.server.Shutdown(shutdownCtx); err != nil {
			_ = t.server.Close()
		}
		return nil
	})
	t.logger.Info().Str("addr", t.listener.Addr().String()).Msg("listening")
	return t, nil
}

func (t *Transport) ID() int   { return t.id }
func (t *Transport) Size() int { return len(t.peers) }

func (t *Transport) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn().Err(err).Msg("upgrade-failed")
		return
	}
	defer conn.Close()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := communication.Decode(frame)
		if err != nil {
			t.logger.Warn().Err(err).Msg("dropped-frame")
			continue
		}
		if env.To != t.id {
			t.logger.Warn().Int("to", env.To).Msg("misrouted-frame")
			continue
		}
		if err := t.inbox.Put(env); err != nil {
			return
		}
	}
}

func (t *Transport) Send(to int, msg communication.Message) error {
	if to < 0 || to >= len(t.peers) {
		return fmt.Errorf("%w: rank %d", communication.ErrUnknownPeer, to)
	}
	data, err := communication.Encode(communication.Envelope{From: t.id, To: to, Message: msg})
	if err != nil {
		return err
	}
	if to == t.id {
		env, err := communication.Decode(data)
		if err != nil {
			return err
		}
		return t.inbox.Put(env)
	}

	pc, err := t.peer(to)
	if err != nil {
		return err
	}
	pc.mu.Lock()
	err = pc.conn.WriteMessage(websocket.TextMessage, data)
	pc.lastWrite = time.Now()
	pc.mu.Unlock()
	if err != nil {
		t.drop(to, pc)
		return fmt.Errorf("sending %s to %d: %w", msg.Kind(), to, err)
	}
	return nil
}

func (t *Transport) Receive(timeout time.Duration) (communication.Envelope, bool, error) {
	return t.inbox.Receive(timeout)
}

// peer returns the outgoing connection to rank to, dialing it on first use.
// The dial runs without the lock so a slow peer does not hold up the others.
func (t *Transport) peer(to int) (*peerConn, error) {
	t.mu.Lock()
	pc, ok := t.conns[to]
	t.mu.Unlock()
	if ok {
		return pc, nil
	}
	if t.ctx.Err() != nil {
		return nil, communication.ErrClosed
	}

	conn, err := t.dial(to)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if existing, ok := t.conns[to]; ok {
		t.mu.Unlock()
		_ = conn.Close()
		return existing, nil
	}
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		_ = conn.Close()
		return nil, communication.ErrClosed
	}
	pc = &peerConn{conn: conn, lastWrite: time.Now(), done: make(chan struct{})}
	t.conns[to] = pc
	t.mu.Unlock()

	go t.discardReads(pc)
	go t.heartbeat(to, pc)
	return pc, nil
}

func (t *Transport) dial(to int) (*websocket.Conn, error) {
	url := "ws://" + t.peers[to] + "/ws"
	ctx, cancel := context.WithTimeout(t.ctx, t.dialTimeout)
	defer cancel()

	backoff := dialBackoff
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			t.logger.Debug().Int("peer", to).Msg("dialed")
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dialing rank %d at %s: %w", to, t.peers[to], err)
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, maxDialBackoff)
	}
}

// discardReads keeps control frames flowing on an outgoing connection.
func (t *Transport) discardReads(pc *peerConn) {
	defer close(pc.done)
	for {
		if _, _, err := pc.conn.NextReader(); err != nil {
			return
		}
	}
}

func (t *Transport) heartbeat(to int, pc *peerConn) {
	ticker := time.NewTicker(t.idlePing)
	defer ticker.Stop()
	for {
		select {
		case <-pc.done:
			return
		case <-ticker.C:
			pc.mu.Lock()
			if time.Since(pc.lastWrite) < t.idlePing {
				pc.mu.Unlock()
				continue
			}
			err := pc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.idlePing))
			pc.lastWrite = time.Now()
			pc.mu.Unlock()
			if err != nil {
				t.logger.Debug().Err(err).Int("peer", to).Msg("ping-failed")
				t.drop(to, pc)
				return
			}
		}
	}
}

func (t *Transport) drop(to int, pc *peerConn) {
	t.mu.Lock()
	if t.conns[to] == pc {
		delete(t.conns, to)
	}
	t.mu.Unlock()
	_ = pc.conn.Close()
}

// Close stops the server and closes every outgoing connection. Messages
// already queued can still be received.
func (t *Transport) Close() error {
	t.cancel()
	t.mu.Lock()
	for to, pc := range t.conns {
		pc.mu.Lock()
		_ = pc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		pc.mu.Unlock()
		_ = pc.conn.Close()
		delete(t.conns, to)
	}
	t.mu.Unlock()
	err := t.group.Wait()
	t.inbox.Close()
	return err
}

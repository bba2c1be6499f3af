package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/squirrelay/internal/core"
	"github.com/dcrodman/squirrelay/internal/transport"
	"github.com/dcrodman/squirrelay/pkg/protocol"
)

const (
	ConnectionKeyHeader = protocol.ConnectionKeyHeader

	maxMessageSize = 1 << 16
	eventQueueSize = 1024

	// Remote hosts that present a bad key this many times are refused until
	// the failure window expires.
	maxKeyFailures   = 5
	keyFailureWindow = time.Minute
)

// Frontend implements transport.Transport over websockets.
//
// Every connection gets a read pump and a write pump. The pumps translate
// websocket traffic into transport events for the relay loop, which is the
// only consumer of Events().
type Frontend struct {
	Config *core.Config
	Logger *logrus.Logger

	log         logrus.FieldLogger
	upgrader    websocket.Upgrader
	events      chan transport.Event
	done        chan struct{}
	keyFailures *gocache.Cache

	server   *http.Server
	listener net.Listener

	mu        sync.Mutex
	peers     map[uint64]*wsPeer
	upgrading int
	nextID    uint64

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewFrontend(cfg *core.Config, logger *logrus.Logger) *Frontend {
	return &Frontend{
		Config: cfg,
		Logger: logger,
		log:    core.ComponentLogger(logger, "frontend", cfg.Logging.ServerLogging),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Game clients aren't browsers; the connection key is the gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		events:      make(chan transport.Event, eventQueueSize),
		done:        make(chan struct{}),
		keyFailures: gocache.New(keyFailureWindow, 10*time.Second),
		peers:       make(map[uint64]*wsPeer),
	}
}

func (f *Frontend) Events() <-chan transport.Event {
	return f.events
}

// Handler routes /ws to the websocket endpoint.
func (f *Frontend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", f.handleWebsocket)
	return r
}

// Start listens on the configured address and serves connections in the
// background until Stop is called.
func (f *Frontend) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", f.Config.ListenAddress())
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", f.Config.ListenAddress(), err)
	}
	f.listener = listener
	f.server = &http.Server{Handler: f.Handler()}

	f.log.Infof("waiting for connections on %v", listener.Addr())
	go func() {
		if err := f.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.log.Errorf("websocket server exited: %v", err)
		}
	}()
	return nil
}

// Addr returns the address Start is listening on.
func (f *Frontend) Addr() net.Addr {
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// Stop closes the listener and every connection, then waits for the pumps
// to exit.
func (f *Frontend) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)

		if f.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := f.server.Shutdown(ctx); err != nil {
				f.log.Warnf("error shutting down websocket server: %v", err)
			}
		}

		f.mu.Lock()
		peers := make([]*wsPeer, 0, len(f.peers))
		for _, p := range f.peers {
			peers = append(peers, p)
		}
		f.mu.Unlock()

		for _, p := range peers {
			p.Close()
		}
		f.wg.Wait()
		f.log.Info("exited")
	})
}

// NumPeers returns the number of open connections.
func (f *Frontend) NumPeers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *Frontend) stopped() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// emit hands an event to the relay loop. It gives up once the frontend is
// stopped so pumps never outlive Stop.
func (f *Frontend) emit(ev transport.Event) {
	select {
	case f.events <- ev:
	case <-f.done:
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// checkKey reports whether the request carries the configured key and keeps
// count of the failures per remote host.
func (f *Frontend) checkKey(r *http.Request) bool {
	want := f.Config.Net.ConnectionKey
	if want == "" {
		return true
	}
	key := r.Header.Get(ConnectionKeyHeader)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == want {
		return true
	}

	host := remoteHost(r)
	if err := f.keyFailures.Add(host, 1, gocache.DefaultExpiration); err != nil {
		_, _ = f.keyFailures.IncrementInt(host, 1)
	}
	return false
}

func (f *Frontend) throttled(r *http.Request) bool {
	count, ok := f.keyFailures.Get(remoteHost(r))
	return ok && count.(int) >= maxKeyFailures
}

func (f *Frontend) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	logger := f.log.WithField("remote", r.RemoteAddr)

	if f.stopped() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if f.throttled(r) {
		logger.Warn("refusing connection after repeated bad keys")
		http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
		return
	}
	if !f.checkKey(r) {
		logger.Warn("rejected connection with a bad key")
		http.Error(w, "invalid connection key", http.StatusUnauthorized)
		return
	}

	// The slot is reserved before upgrading so concurrent handshakes can't
	// overshoot the limit.
	f.mu.Lock()
	if len(f.peers)+f.upgrading >= f.Config.Net.MaxClients {
		f.mu.Unlock()
		logger.Warn("rejected connection, server is full")
		http.Error(w, "server is full", http.StatusServiceUnavailable)
		return
	}
	f.upgrading++
	f.mu.Unlock()

	conn, err := f.upgrader.Upgrade(w, r, nil)

	f.mu.Lock()
	f.upgrading--
	if err != nil {
		f.mu.Unlock()
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	if f.stopped() {
		f.mu.Unlock()
		_ = conn.Close()
		return
	}
	f.nextID++
	p := &wsPeer{
		id:       f.nextID,
		remote:   r.RemoteAddr,
		conn:     conn,
		frontend: f,
		send:     make(chan []byte, f.Config.Net.SendQueueSize),
		done:     make(chan struct{}),
	}
	f.peers[p.id] = p
	f.wg.Add(2)
	f.mu.Unlock()
	logger.Infof("accepted connection %d", p.id)

	f.emit(transport.Event{Type: transport.Connected, Peer: p})

	go f.readPump(p)
	go f.writePump(p)
}

func (f *Frontend) forget(p *wsPeer) {
	f.mu.Lock()
	delete(f.peers, p.id)
	f.mu.Unlock()
}

// recoverPeer is the failsafe that catches any panics in a pump and
// disconnects the peer regardless of the state of the connection.
func (f *Frontend) recoverPeer(p *wsPeer) {
	if err := recover(); err != nil {
		f.log.Errorf("error in client communication with %s: error=%s, trace: %s",
			p.remote, err, debug.Stack())
	}
	p.Close()
}

// readPump turns incoming websocket messages into Message events. It owns
// the Disconnected event: exactly one is emitted when it exits.
func (f *Frontend) readPump(p *wsPeer) {
	defer f.wg.Done()
	defer func() {
		f.forget(p)
		f.emit(transport.Event{Type: transport.Disconnected, Peer: p})
		f.log.Infof("disconnected client %s", p.remote)
	}()
	defer f.recoverPeer(p)

	timeout := f.Config.Net.DisconnectTimeout
	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	p.conn.SetPongHandler(func(string) error {
		if sent := p.pingSent.Load(); sent != 0 {
			f.emit(transport.Event{
				Type:    transport.Latency,
				Peer:    p,
				Latency: time.Since(time.Unix(0, sent)),
			})
		}
		return p.conn.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				f.log.Warnf("read error from %s: %v", p.remote, err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
		f.emit(transport.Event{Type: transport.Message, Peer: p, Data: data})
	}
}

// writePump drains the peer's send queue and pings it periodically.
func (f *Frontend) writePump(p *wsPeer) {
	defer f.wg.Done()
	defer f.recoverPeer(p)

	ticker := time.NewTicker(f.Config.Net.PingInterval)
	defer ticker.Stop()
	writeWait := f.Config.Net.DisconnectTimeout

	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				f.log.Debugf("write error to %s: %v", p.remote, err)
				return
			}
		case <-ticker.C:
			p.pingSent.Store(time.Now().UnixNano())
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-p.done:
			_ = p.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		}
	}
}

// wsPeer is one websocket connection.
type wsPeer struct {
	id       uint64
	remote   string
	conn     *websocket.Conn
	frontend *Frontend

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	// UnixNano of the last ping, read by the pong handler.
	pingSent atomic.Int64
}

func (p *wsPeer) ID() uint64 { return p.id }

func (p *wsPeer) RemoteAddr() string { return p.remote }

// Send queues data for the write pump. A peer whose queue is full is too slow
// to keep up with the tick and gets disconnected.
func (p *wsPeer) Send(data []byte) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.send <- data:
	default:
		p.frontend.log.Warnf("send queue full for %s, disconnecting", p.remote)
		p.Close()
	}
}

func (p *wsPeer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		// Give the write pump a moment to send the close frame before the
		// read pump is unblocked by closing the socket.
		time.AfterFunc(100*time.Millisecond, func() {
			_ = p.conn.Close()
		})
	})
}

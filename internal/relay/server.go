// Package relay runs the server loop: it turns transport events into session
// and room operations and paces the room broadcasts to a fixed tick.
package relay

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/squirrelay/internal/core"
	"github.com/dcrodman/squirrelay/internal/core/correlation"
	"github.com/dcrodman/squirrelay/internal/core/debug"
	"github.com/dcrodman/squirrelay/internal/core/session"
	"github.com/dcrodman/squirrelay/internal/room"
	"github.com/dcrodman/squirrelay/internal/transport"
	"github.com/dcrodman/squirrelay/pkg/protocol"
)

// Server is the single goroutine that owns every session and room. Nothing
// it holds is touched from other goroutines; the transport and handshake
// awaiters talk to it over channels.
type Server struct {
	Config    *core.Config
	Logger    *logrus.Logger
	Transport transport.Transport
	// Registerer receives the relay metrics. Defaults to a private registry.
	Registerer prometheus.Registerer
	// Observer is told about every finished game. Optional.
	Observer room.GameObserver

	log        logrus.FieldLogger
	messageLog logrus.FieldLogger
	metrics    *metrics
	pacer      *pacer
	rooms      *room.List

	sessions   map[transport.Peer]*session.Session
	nextID     uint64
	handshakes chan handshakeResult
}

type handshakeResult struct {
	session *session.Session
	hello   *protocol.Hello
	err     error
}

// Init prepares the server to run. It must be called before Run or Tick.
func (s *Server) Init() {
	logging := s.Config.Logging
	s.log = core.ComponentLogger(s.Logger, "relay", logging.ServerLogging)
	s.messageLog = core.ComponentLogger(s.Logger, "messages", logging.MessageLogging)

	registry := s.Registerer
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(registry)
	s.pacer = newPacer(s.Config.Net.TickInterval)

	s.rooms = room.NewList(&s.Config.Room, room.Options{
		Logger:     core.ComponentLogger(s.Logger, "room_list", logging.RoomListLogging),
		RoomLogger: core.ComponentLogger(s.Logger, "room", logging.RoomLogging),
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		Observer:   s.Observer,
	})

	s.rooms.Start()

	s.sessions = make(map[transport.Peer]*session.Session)
	s.nextID = 0
	s.handshakes = make(chan handshakeResult, s.Config.Net.MaxClients)
}

// Rooms exposes the room registry for inspection.
func (s *Server) Rooms() *room.List {
	return s.rooms
}

// NumSessions returns the number of connected sessions.
func (s *Server) NumSessions() int {
	return len(s.sessions)
}

// Run starts the transport and ticks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Transport.Start(ctx); err != nil {
		return err
	}
	defer s.shutdown()

	s.pacer.start()
	s.log.Infof("relay running with a %v tick", s.Config.Net.TickInterval)

	for {
		s.Tick(ctx)
		if err := s.pacer.wait(ctx); err != nil {
			return nil
		}
	}
}

func (s *Server) shutdown() {
	s.log.Info("shutting down")
	s.Transport.Stop()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.sessions = make(map[transport.Peer]*session.Session)
	s.rooms.Stop()
}

// Tick processes what was queued when it started without blocking and then
// lets every room flush its buffered state.
func (s *Server) Tick(ctx context.Context) {
	start := time.Now()

	s.drainEvents(ctx)
	s.drainHandshakes()
	s.rooms.Update()

	s.metrics.sessions.Set(float64(len(s.sessions)))
	s.metrics.rooms.Set(float64(s.rooms.Len()))
	s.metrics.tickDuration.Observe(time.Since(start).Seconds())
}

// drainEvents handles the events already queued when the tick began. Events
// that arrive meanwhile wait for the next tick.
func (s *Server) drainEvents(ctx context.Context) {
	events := s.Transport.Events()
	for n := len(events); n > 0; n-- {
		s.handleEvent(ctx, <-events)
	}
}

func (s *Server) drainHandshakes() {
	for {
		select {
		case res := <-s.handshakes:
			s.completeHandshake(res)
		default:
			return
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, ev transport.Event) {
	switch ev.Type {
	case transport.Connected:
		s.connect(ctx, ev.Peer)
	case transport.Disconnected:
		s.disconnect(ev.Peer)
	case transport.Message:
		if sess, ok := s.sessions[ev.Peer]; ok {
			s.handleMessage(sess, ev.Data)
		}
	case transport.Latency:
		if sess, ok := s.sessions[ev.Peer]; ok {
			sess.SetLatency(ev.Latency)
		}
	}
}

func (s *Server) connect(ctx context.Context, peer transport.Peer) {
	s.nextID++
	sess := session.New(s.nextID, peer)
	s.sessions[peer] = sess

	s.log.WithFields(logrus.Fields{
		"session": sess.ID(),
		"remote":  peer.RemoteAddr(),
	}).Info("client connected")

	// Registered here rather than in the awaiter so a Hello processed later
	// in this same tick still finds its waiter.
	pending := correlation.Expect[*protocol.Hello](sess.Inbox())
	timeout := s.Config.Net.HandshakeTimeout

	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		hello, err := pending.Wait(waitCtx)
		select {
		case s.handshakes <- handshakeResult{session: sess, hello: hello, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Server) completeHandshake(res handshakeResult) {
	sess := res.session
	if current, ok := s.sessions[sess.Peer()]; !ok || current != sess {
		// Disconnected while the handshake was in flight.
		return
	}
	logger := s.log.WithField("session", sess.ID())

	if res.err != nil {
		if !errors.Is(res.err, correlation.ErrCanceled) {
			logger.Warnf("handshake failed: %v", res.err)
			s.metrics.handshakeErrors.Inc()
			sess.Peer().Close()
		}
		return
	}

	if err := sess.SetClientVersion(res.hello.ClientVersion); err != nil {
		logger.Warnf("ignoring hello: %v", err)
		return
	}
	sess.Send(&protocol.HelloAck{ClientID: sess.ID(), RoomConfig: s.Config.Room})
	logger.WithField("version", res.hello.ClientVersion).Info("handshake complete")
}

func (s *Server) disconnect(peer transport.Peer) {
	sess, ok := s.sessions[peer]
	if !ok {
		return
	}
	delete(s.sessions, peer)
	sess.Close()

	if _, inRoom := sess.RoomID(); inRoom {
		s.rooms.ExitRoom(sess)
	}
	s.log.WithField("session", sess.ID()).Info("client disconnected")
}

func (s *Server) handleMessage(sess *session.Session, data []byte) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		s.log.WithField("session", sess.ID()).Warnf("dropping datagram: %v", err)
		s.metrics.decodeErrors.Inc()
		return
	}
	s.metrics.messagesTotal.WithLabelValues(msg.ClientKind().String()).Inc()
	if s.Config.Logging.MessageLogging {
		debug.LogMessage(s.messageLog, "in", sess.ID(), msg)
	}

	switch m := msg.(type) {
	case *protocol.GetClientsCount:
		sess.Send(&protocol.ClientsCountResponse{Count: len(s.sessions)})
	case *protocol.GetRoomList:
		sess.Send(s.rooms.GetRoomInfoList())
	case *protocol.CreateRoom:
		sess.Send(s.rooms.CreateRoom(sess, m))
	case *protocol.EnterRoom:
		sess.Send(s.rooms.EnterRoom(sess, m))
	case *protocol.ExitRoom:
		sess.Send(s.rooms.ExitRoom(sess))
	case *protocol.OperateRoom:
		sess.Send(s.rooms.OperateRoom(sess, m))
	case *protocol.SetPlayerStatus:
		sess.Send(s.rooms.SetPlayerStatus(sess, m))
	case *protocol.SetRoomMessage:
		sess.Send(s.rooms.SetRoomMessage(sess, m))
	case *protocol.SendGameMessage:
		sess.Send(s.rooms.ReceiveGameMessage(sess, m))
	case protocol.Response:
		if !sess.Inbox().Receive(msg) {
			s.log.WithField("session", sess.ID()).Debugf("nobody waiting for %v", msg.ClientKind())
		}
	}
}

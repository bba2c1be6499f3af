package session

import (
	"errors"
	"time"

	"github.com/dcrodman/squirrelay/internal/core/correlation"
	"github.com/dcrodman/squirrelay/internal/transport"
	"github.com/dcrodman/squirrelay/pkg/protocol"
)

var ErrAlreadyHelloed = errors.New("session: client version already set")

// Session is the server-side state of one connected peer. Apart from the
// inbox, a Session is owned by the relay loop and must not be touched from
// other goroutines.
type Session struct {
	id   uint64
	peer transport.Peer

	roomID int
	inRoom bool

	clientVersion string
	helloed       bool

	latency time.Duration

	// Response-shaped client messages are routed here for whoever awaits them.
	inbox *correlation.Table[protocol.ClientMessage]
}

func New(id uint64, peer transport.Peer) *Session {
	return &Session{
		id:    id,
		peer:  peer,
		inbox: correlation.NewTable[protocol.ClientMessage](),
	}
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) Peer() transport.Peer {
	return s.peer
}

// RoomID returns the room the session occupies, if any.
func (s *Session) RoomID() (int, bool) {
	return s.roomID, s.inRoom
}

func (s *Session) SetRoomID(id int) {
	s.roomID, s.inRoom = id, true
}

func (s *Session) ClearRoomID() {
	s.roomID, s.inRoom = 0, false
}

func (s *Session) ClientVersion() string {
	return s.clientVersion
}

// Helloed reports whether the handshake completed.
func (s *Session) Helloed() bool {
	return s.helloed
}

// SetClientVersion records the version negotiated during the handshake. It
// can only be called once.
func (s *Session) SetClientVersion(version string) error {
	if s.helloed {
		return ErrAlreadyHelloed
	}
	s.clientVersion, s.helloed = version, true
	return nil
}

func (s *Session) Latency() time.Duration {
	return s.latency
}

func (s *Session) SetLatency(d time.Duration) {
	s.latency = d
}

func (s *Session) Inbox() *correlation.Table[protocol.ClientMessage] {
	return s.inbox
}

// Send encodes msg and hands it to the transport.
func (s *Session) Send(msg protocol.ServerMessage) {
	s.peer.Send(protocol.EncodeServer(msg))
}

// SendBytes sends an already encoded datagram, letting broadcasts encode once.
func (s *Session) SendBytes(data []byte) {
	s.peer.Send(data)
}

// Close cancels everything still waiting on the session's inbox.
func (s *Session) Close() {
	s.inbox.Cancel()
}

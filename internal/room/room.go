package room

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/squirrelay/pkg/protocol"
)

// Member is a session as seen by the room layer.
type Member interface {
	ID() uint64
	ClientVersion() string
	Helloed() bool
	RoomID() (int, bool)
	SetRoomID(id int)
	ClearRoomID()
	SendBytes(data []byte)
}

type Status int

const (
	WaitingToPlay Status = iota
	Playing
	// OwnerExited rooms are empty and waiting to be disposed.
	OwnerExited
)

func (s Status) String() string {
	switch s {
	case WaitingToPlay:
		return "WaitingToPlay"
	case Playing:
		return "Playing"
	case OwnerExited:
		return "OwnerExited"
	}
	return "Unknown"
}

// GameSummary describes a game once it has finished.
type GameSummary struct {
	RoomID               int
	ClientVersion        string
	StartedAt            time.Time
	Duration             time.Duration
	NumberOfPlayers      int
	NumberOfGameMessages int
}

// GameObserver is told about every finished game. It is called from the relay
// loop and must not block.
type GameObserver interface {
	GameFinished(summary GameSummary)
}

// Room is the authoritative state of one room. Status changes and game
// messages are buffered and only broadcast from Update, so a room sends at
// most one message of each kind per tick no matter how busy its members are.
type Room struct {
	id       int
	info     *protocol.RoomInfo
	password string
	config   *protocol.RoomConfig
	logger   logrus.FieldLogger
	now      func() time.Time
	observer GameObserver

	owner    uint64
	hasOwner bool
	members  []Member
	status   Status

	// Committed statuses plus the changes to apply at the next flush. A nil
	// entry in pending removes the player.
	statuses       protocol.Statuses
	pending        protocol.Statuses
	messageChanged bool

	emptySince time.Time
	disposing  bool

	startedAt        time.Time
	playersAtStart   int
	gameMessages     []protocol.RelayedGameMessage
	gameMessageCount int
}

func newRoom(id int, info *protocol.RoomInfo, password string, config *protocol.RoomConfig,
	logger logrus.FieldLogger, now func() time.Time, observer GameObserver) *Room {
	return &Room{
		id:       id,
		info:     info,
		password: password,
		config:   config,
		logger:   logger.WithField("room", id),
		now:      now,
		observer: observer,
		status:   WaitingToPlay,
		statuses: protocol.Statuses{},
		pending:  protocol.Statuses{},
	}
}

func (r *Room) ID() int {
	return r.id
}

// Info returns a copy of the room's public listing.
func (r *Room) Info() protocol.RoomInfo {
	return *r.info
}

func (r *Room) Status() Status {
	return r.status
}

func (r *Room) Owner() (uint64, bool) {
	return r.owner, r.hasOwner
}

func (r *Room) NumberOfPlayers() int {
	return len(r.members)
}

// MemberIDs returns the occupants in the order they entered.
func (r *Room) MemberIDs() []uint64 {
	ids := make([]uint64, len(r.members))
	for i, m := range r.members {
		ids[i] = m.ID()
	}
	return ids
}

// Statuses returns a copy of the committed player statuses.
func (r *Room) Statuses() protocol.Statuses {
	return r.statuses.Clone()
}

// PendingGameMessages returns the number of game messages waiting for the next flush.
func (r *Room) PendingGameMessages() int {
	return len(r.gameMessages)
}

// EmptyFor reports how long the room has been without members. The second
// return value is false while the dispose timer isn't running.
func (r *Room) EmptyFor() (time.Duration, bool) {
	if !r.disposing {
		return 0, false
	}
	return r.now().Sub(r.emptySince), true
}

func (r *Room) isMember(m Member) bool {
	for _, other := range r.members {
		if other.ID() == m.ID() {
			return true
		}
	}
	return false
}

// Enter adds m to the room after checking the room's admission rules.
func (r *Room) Enter(m Member, password string, status []byte) *protocol.EnterRoomResponse {
	fail := func(result protocol.ResultKind) *protocol.EnterRoomResponse {
		return &protocol.EnterRoomResponse{Result: result, Statuses: protocol.Statuses{}}
	}

	if r.password != "" && r.password != password {
		return fail(protocol.InvalidPassword)
	}
	if len(r.members) >= r.info.MaxNumberOfPlayers {
		return fail(protocol.NumberOfPlayersLimitation)
	}
	if r.status == Playing && !r.config.EnterWhilePlayingAllowed {
		return fail(protocol.InvalidRoomStatus)
	}
	if r.isMember(m) {
		return fail(protocol.AlreadyEntered)
	}
	if r.info.ClientVersion != m.ClientVersion() {
		return fail(protocol.DifferentClientVersion)
	}

	r.enter(m, status)

	return &protocol.EnterRoomResponse{
		Result:      protocol.Success,
		OwnerID:     r.owner,
		Statuses:    r.statuses.Clone(),
		RoomMessage: r.info.Message,
	}
}

// enter adds m without any admission checks. Used for the creator of a room.
func (r *Room) enter(m Member, status []byte) {
	r.members = append(r.members, m)
	r.info.NumberOfPlayers = len(r.members)

	if !r.hasOwner {
		r.owner, r.hasOwner = m.ID(), true
		if r.status == OwnerExited {
			r.status = WaitingToPlay
		}
	}
	r.disposing = false

	r.pending[m.ID()] = &protocol.PlayerStatus{Data: status}
	r.logger.WithField("client", m.ID()).Info("client entered")
}

// Exit removes m from the room. m must be a member.
func (r *Room) Exit(m Member) {
	idx := -1
	for i, other := range r.members {
		if other.ID() == m.ID() {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("room %d: client %d is not a member", r.id, m.ID()))
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)
	r.info.NumberOfPlayers = len(r.members)
	r.pending[m.ID()] = nil
	r.logger.WithField("client", m.ID()).Info("client exited")

	if !r.hasOwner || r.owner != m.ID() {
		return
	}

	if len(r.members) > 0 {
		r.owner = r.members[0].ID()
		r.logger.WithField("client", r.owner).Info("new owner elected")
		return
	}

	if r.status == Playing {
		r.finishPlaying()
	}
	r.owner, r.hasOwner = 0, false
	r.emptySince, r.disposing = r.now(), true
	r.status = OwnerExited
	r.logger.Info("owner exited")
}

// Operate starts or finishes a game on behalf of the owner.
func (r *Room) Operate(m Member, kind protocol.RoomOperateKind) protocol.ResultKind {
	if !r.hasOwner || r.owner != m.ID() {
		return protocol.PlayerIsNotOwner
	}

	switch kind {
	case protocol.StartPlaying:
		if r.status == Playing {
			return protocol.InvalidRoomStatus
		}
		if len(r.members) < r.config.NumberOfPlayersRange.Min {
			return protocol.NotEnoughPeople
		}
		r.startPlaying()
	case protocol.FinishPlaying:
		if r.status != Playing {
			return protocol.InvalidRoomStatus
		}
		r.finishPlaying()
	}
	return protocol.Success
}

func (r *Room) startPlaying() {
	r.status = Playing
	r.info.IsPlaying = true
	r.startedAt = r.now()
	r.playersAtStart = len(r.members)
	r.gameMessageCount = 0

	r.broadcast(&protocol.NotifyRoomOperation{Operate: protocol.StartPlaying})
	r.logger.Info("game started")
}

func (r *Room) finishPlaying() {
	duration := r.now().Sub(r.startedAt)

	r.status = WaitingToPlay
	r.info.IsPlaying = false
	r.gameMessages = nil

	r.broadcast(&protocol.NotifyRoomOperation{Operate: protocol.FinishPlaying})
	r.logger.WithField("duration", duration).Info("game finished")

	if r.observer != nil {
		r.observer.GameFinished(GameSummary{
			RoomID:               r.id,
			ClientVersion:        r.info.ClientVersion,
			StartedAt:            r.startedAt,
			Duration:             duration,
			NumberOfPlayers:      r.playersAtStart,
			NumberOfGameMessages: r.gameMessageCount,
		})
	}
	r.startedAt = time.Time{}
}

// SetPlayerStatus buffers m's new status until the next Update.
func (r *Room) SetPlayerStatus(m Member, status []byte) protocol.ResultKind {
	r.pending[m.ID()] = &protocol.PlayerStatus{Data: status}
	return protocol.Success
}

// SetMessage replaces the room message. Only the owner may do this.
func (r *Room) SetMessage(m Member, message []byte) protocol.ResultKind {
	if !r.hasOwner || r.owner != m.ID() {
		return protocol.PlayerIsNotOwner
	}
	r.info.Message = message
	r.messageChanged = true
	return protocol.Success
}

// ReceiveGameMessage queues a game message for the next Update.
func (r *Room) ReceiveGameMessage(m Member, data []byte) protocol.ResultKind {
	if r.status != Playing {
		return protocol.InvalidRoomStatus
	}
	r.gameMessages = append(r.gameMessages, protocol.RelayedGameMessage{
		ClientID:       m.ID(),
		ElapsedSeconds: r.elapsedSeconds(),
		Data:           data,
	})
	r.gameMessageCount++
	return protocol.Success
}

func (r *Room) elapsedSeconds() float32 {
	return float32(r.now().Sub(r.startedAt).Seconds())
}

// Update flushes buffered state to the members. It is called once per tick.
func (r *Room) Update() {
	if len(r.pending) > 0 {
		for id, st := range r.pending {
			if st == nil {
				delete(r.statuses, id)
			} else {
				r.statuses[id] = st
			}
		}

		update := &protocol.UpdateRoomPlayers{Statuses: r.pending}
		if r.hasOwner {
			owner := r.owner
			update.Owner = &owner
		}
		r.broadcast(update)
		r.pending = protocol.Statuses{}
	}

	if r.messageChanged {
		r.broadcast(&protocol.UpdateRoomMessage{RoomMessage: r.info.Message})
		r.messageChanged = false
	}

	if r.status != Playing {
		return
	}
	if len(r.gameMessages) > 0 {
		r.broadcast(&protocol.BroadcastGameMessages{Messages: r.gameMessages})
		r.gameMessages = nil
	}
	if r.config.TickMessageEnabled {
		r.broadcast(&protocol.Tick{ElapsedSeconds: r.elapsedSeconds()})
	}
}

// broadcast encodes msg once and sends it to every member.
func (r *Room) broadcast(msg protocol.ServerMessage) {
	if len(r.members) == 0 {
		return
	}
	data := protocol.EncodeServer(msg)
	for _, m := range r.members {
		m.SendBytes(data)
	}
}

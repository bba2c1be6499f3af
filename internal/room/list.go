package room

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/squirrelay/internal/core"
	"github.com/dcrodman/squirrelay/pkg/protocol"
)

// Random draws made before falling back to scanning for a free id.
const maxRandomIDAttempts = 64

// Options configures a List. Zero values get usable defaults.
type Options struct {
	// Logger receives registry events (creation, disposal).
	Logger logrus.FieldLogger
	// RoomLogger receives per-room events (entries, exits, games).
	RoomLogger logrus.FieldLogger
	Rand       *rand.Rand
	Clock      func() time.Time
	Observer   GameObserver
}

// List is the registry of live rooms. Like Room it is not safe for concurrent
// use; the relay loop owns it.
type List struct {
	config     *protocol.RoomConfig
	logger     logrus.FieldLogger
	roomLogger logrus.FieldLogger
	rand       *rand.Rand
	now        func() time.Time
	observer   GameObserver

	rooms map[int]*Room
	infos map[int]*protocol.RoomInfo

	lastSweep time.Time
}

func NewList(config *protocol.RoomConfig, opts Options) *List {
	l := &List{
		config:     config,
		logger:     opts.Logger,
		roomLogger: opts.RoomLogger,
		rand:       opts.Rand,
		now:        opts.Clock,
		observer:   opts.Observer,
		rooms:      make(map[int]*Room),
		infos:      make(map[int]*protocol.RoomInfo),
	}
	if l.logger == nil {
		l.logger = core.DiscardLogger()
	}
	if l.roomLogger == nil {
		l.roomLogger = core.DiscardLogger()
	}
	if l.rand == nil {
		l.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Start begins the dispose sweep cadence.
func (l *List) Start() {
	l.lastSweep = l.now()
}

// Stop forgets every room.
func (l *List) Stop() {
	l.rooms = make(map[int]*Room)
	l.infos = make(map[int]*protocol.RoomInfo)
}

// Len returns the number of live rooms, visible or not.
func (l *List) Len() int {
	return len(l.rooms)
}

func (l *List) Room(id int) (*Room, bool) {
	r, ok := l.rooms[id]
	return r, ok
}

// Info returns the listing entry for a room.
func (l *List) Info(id int) (protocol.RoomInfo, bool) {
	info, ok := l.infos[id]
	if !ok {
		return protocol.RoomInfo{}, false
	}
	return *info, true
}

// roomOf resolves the room a member records. A recorded id without a room
// means the registry and the sessions disagree, which is unrecoverable.
func (l *List) roomOf(m Member) (*Room, bool) {
	id, ok := m.RoomID()
	if !ok {
		return nil, false
	}
	r, found := l.rooms[id]
	if !found {
		panic(fmt.Sprintf("room list: client %d records room %d which does not exist", m.ID(), id))
	}
	return r, true
}

func (l *List) generateID() (int, bool) {
	idRange := l.config.GeneratedRoomIDRange
	span := idRange.Max - idRange.Min + 1
	if span <= 0 || len(l.rooms) >= span {
		return 0, false
	}

	for i := 0; i < maxRandomIDAttempts; i++ {
		id := idRange.Min + l.rand.Intn(span)
		if _, taken := l.rooms[id]; !taken {
			return id, true
		}
	}
	for id := idRange.Min; id <= idRange.Max; id++ {
		if _, taken := l.rooms[id]; !taken {
			return id, true
		}
	}
	return 0, false
}

// GetRoomInfoList returns the visible rooms ordered by id.
func (l *List) GetRoomInfoList() *protocol.RoomListResponse {
	rooms := make([]protocol.RoomInfo, 0, len(l.infos))
	for _, info := range l.infos {
		if info.IsVisible {
			rooms = append(rooms, *info)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return &protocol.RoomListResponse{Rooms: rooms}
}

// CreateRoom opens a room with m as its first occupant and owner.
func (l *List) CreateRoom(m Member, req *protocol.CreateRoom) *protocol.CreateRoomResponse {
	if !m.Helloed() {
		return &protocol.CreateRoomResponse{Result: protocol.NotHelloed}
	}
	if _, ok := m.RoomID(); ok {
		return &protocol.CreateRoomResponse{Result: protocol.AlreadyEntered}
	}

	id, ok := l.generateID()
	if !ok {
		l.logger.Warnf("no free room id in %v", l.config.GeneratedRoomIDRange)
		return &protocol.CreateRoomResponse{Result: protocol.RoomLimitation}
	}

	info := &protocol.RoomInfo{
		ID:                 id,
		IsVisible:          !l.config.InvisibleEnabled || req.IsVisible,
		MaxNumberOfPlayers: l.config.NumberOfPlayersRange.Clamp(req.MaxNumberOfPlayers),
		ClientVersion:      m.ClientVersion(),
	}
	if l.config.RoomMessageEnabled {
		info.Message = req.RoomMessage
	}
	var password string
	if l.config.PasswordEnabled {
		password = req.Password
	}

	r := newRoom(id, info, password, l.config, l.roomLogger, l.now, l.observer)
	l.rooms[id] = r
	l.infos[id] = info

	r.enter(m, req.PlayerStatus)
	m.SetRoomID(id)

	l.logger.WithFields(logrus.Fields{"room": id, "client": m.ID()}).Info("room created")
	return &protocol.CreateRoomResponse{Result: protocol.Success, RoomID: id}
}

func (l *List) EnterRoom(m Member, req *protocol.EnterRoom) *protocol.EnterRoomResponse {
	fail := func(result protocol.ResultKind) *protocol.EnterRoomResponse {
		return &protocol.EnterRoomResponse{Result: result, Statuses: protocol.Statuses{}}
	}

	if !m.Helloed() {
		return fail(protocol.NotHelloed)
	}
	if _, ok := m.RoomID(); ok {
		return fail(protocol.AlreadyEntered)
	}
	r, ok := l.rooms[req.RoomID]
	if !ok {
		return fail(protocol.RoomNotFound)
	}

	res := r.Enter(m, req.Password, req.Status)
	if res.Result.OK() {
		m.SetRoomID(r.ID())
	}
	return res
}

func (l *List) ExitRoom(m Member) *protocol.ExitRoomResponse {
	r, ok := l.roomOf(m)
	if !ok {
		return &protocol.ExitRoomResponse{Result: protocol.PlayerOutOfRoom}
	}
	r.Exit(m)
	m.ClearRoomID()
	return &protocol.ExitRoomResponse{Result: protocol.Success}
}

func (l *List) OperateRoom(m Member, req *protocol.OperateRoom) *protocol.OperateRoomResponse {
	r, ok := l.roomOf(m)
	if !ok {
		return &protocol.OperateRoomResponse{Result: protocol.PlayerOutOfRoom}
	}
	return &protocol.OperateRoomResponse{Result: r.Operate(m, req.Operate)}
}

func (l *List) SetPlayerStatus(m Member, req *protocol.SetPlayerStatus) *protocol.SetPlayerStatusResponse {
	r, ok := l.roomOf(m)
	if !ok {
		return &protocol.SetPlayerStatusResponse{Result: protocol.PlayerOutOfRoom}
	}
	return &protocol.SetPlayerStatusResponse{Result: r.SetPlayerStatus(m, req.Status)}
}

func (l *List) SetRoomMessage(m Member, req *protocol.SetRoomMessage) *protocol.SetRoomMessageResponse {
	r, ok := l.roomOf(m)
	if !ok {
		return &protocol.SetRoomMessageResponse{Result: protocol.PlayerOutOfRoom}
	}
	return &protocol.SetRoomMessageResponse{Result: r.SetMessage(m, req.RoomMessage)}
}

func (l *List) ReceiveGameMessage(m Member, req *protocol.SendGameMessage) *protocol.SendGameMessageResponse {
	r, ok := l.roomOf(m)
	if !ok {
		return &protocol.SendGameMessageResponse{Result: protocol.PlayerOutOfRoom}
	}
	return &protocol.SendGameMessageResponse{Result: r.ReceiveGameMessage(m, req.Data)}
}

// Update flushes every room and, on its own slower cadence, disposes rooms
// that have been empty for long enough.
func (l *List) Update() {
	for _, r := range l.rooms {
		r.Update()
	}

	now := l.now()
	if now.Sub(l.lastSweep) >= seconds(l.config.UpdatingDisposeIntervalSeconds) {
		l.sweep()
		l.lastSweep = now
	}
}

func (l *List) sweep() {
	limit := seconds(l.config.DisposeSecondsWhenNoMember)
	for id, r := range l.rooms {
		if r.Status() != OwnerExited {
			continue
		}
		if empty, running := r.EmptyFor(); running && empty > limit {
			delete(l.rooms, id)
			delete(l.infos, id)
			l.logger.WithField("room", id).Info("room disposed")
		}
	}
}

func seconds(s float32) time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

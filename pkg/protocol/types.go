package protocol

import (
	"sort"
)

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

// Clamp returns v limited to [Min, Max].
func (r Range) Clamp(v int) int {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r Range) encode() []byte {
	var w fieldWriter
	w.putInt(1, r.Min)
	w.putInt(2, r.Max)
	return w
}

func decodeRange(b []byte) (Range, error) {
	var r Range
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toInt(&r.Min)
		case 2:
			return f.toInt(&r.Max)
		}
		return nil
	})
	return r, err
}

// RoomConfig holds the room feature flags and limits. The server shares one
// by pointer and sends it to every client in HelloAck.
type RoomConfig struct {
	// Allow rooms to be hidden from GetRoomList.
	InvisibleEnabled bool
	// Allow rooms to carry an owner-defined message.
	RoomMessageEnabled bool
	// Allow rooms to be password protected.
	PasswordEnabled bool
	// Allow players to join a room while a game is in progress.
	EnterWhilePlayingAllowed bool
	// Send a Tick with the elapsed game time every server tick while playing.
	TickMessageEnabled bool
	// Seconds an empty room survives before it is disposed.
	DisposeSecondsWhenNoMember float32
	// Seconds between sweeps for rooms to dispose.
	UpdatingDisposeIntervalSeconds float32
	// Bounds on a room's player capacity. Min is also the number of players
	// required to start a game.
	NumberOfPlayersRange Range
	// Range from which room ids are drawn.
	GeneratedRoomIDRange Range
}

func (c *RoomConfig) encode() []byte {
	var w fieldWriter
	w.putBool(1, c.InvisibleEnabled)
	w.putBool(2, c.RoomMessageEnabled)
	w.putBool(3, c.PasswordEnabled)
	w.putBool(4, c.EnterWhilePlayingAllowed)
	w.putBool(5, c.TickMessageEnabled)
	w.putFloat(6, c.DisposeSecondsWhenNoMember)
	w.putFloat(7, c.UpdatingDisposeIntervalSeconds)
	w.putMessage(8, c.NumberOfPlayersRange.encode())
	w.putMessage(9, c.GeneratedRoomIDRange.encode())
	return w
}

func decodeRoomConfig(b []byte) (RoomConfig, error) {
	var c RoomConfig
	err := walkFields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			return f.toBool(&c.InvisibleEnabled)
		case 2:
			return f.toBool(&c.RoomMessageEnabled)
		case 3:
			return f.toBool(&c.PasswordEnabled)
		case 4:
			return f.toBool(&c.EnterWhilePlayingAllowed)
		case 5:
			return f.toBool(&c.TickMessageEnabled)
		case 6:
			return f.toFloat(&c.DisposeSecondsWhenNoMember)
		case 7:
			return f.toFloat(&c.UpdatingDisposeIntervalSeconds)
		case 8:
			if err = f.expect(bytesType); err == nil {
				c.NumberOfPlayersRange, err = decodeRange(f.raw)
			}
		case 9:
			if err = f.expect(bytesType); err == nil {
				c.GeneratedRoomIDRange, err = decodeRange(f.raw)
			}
		}
		return err
	})
	return c, err
}

// RoomInfo is the public projection of a room returned by GetRoomList.
type RoomInfo struct {
	ID                 int
	IsVisible          bool
	MaxNumberOfPlayers int
	NumberOfPlayers    int
	Message            []byte
	IsPlaying          bool
	ClientVersion      string
}

func (r *RoomInfo) encode() []byte {
	var w fieldWriter
	w.putInt(1, r.ID)
	w.putBool(2, r.IsVisible)
	w.putInt(3, r.MaxNumberOfPlayers)
	w.putInt(4, r.NumberOfPlayers)
	w.putBytes(5, r.Message)
	w.putBool(6, r.IsPlaying)
	w.putString(7, r.ClientVersion)
	return w
}

func decodeRoomInfo(b []byte) (RoomInfo, error) {
	var r RoomInfo
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toInt(&r.ID)
		case 2:
			return f.toBool(&r.IsVisible)
		case 3:
			return f.toInt(&r.MaxNumberOfPlayers)
		case 4:
			return f.toInt(&r.NumberOfPlayers)
		case 5:
			return f.toBytes(&r.Message)
		case 6:
			return f.toBool(&r.IsPlaying)
		case 7:
			return f.toString(&r.ClientVersion)
		}
		return nil
	})
	return r, err
}

// PlayerStatus is an opaque per-player payload. In a status map a nil
// *PlayerStatus marks a player that left the room.
type PlayerStatus struct {
	Data []byte
}

// Statuses maps client ids to their status.
type Statuses map[uint64]*PlayerStatus

// Clone returns a shallow copy of s. The PlayerStatus values are shared.
func (s Statuses) Clone() Statuses {
	c := make(Statuses, len(s))
	for id, st := range s {
		c[id] = st
	}
	return c
}

func (s Statuses) encode(w *fieldWriter, num fieldNumber) {
	ids := make([]uint64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		var entry fieldWriter
		entry.putUint(1, id)
		if st := s[id]; st == nil {
			entry.putBool(3, true)
		} else {
			entry.putBytes(2, st.Data)
		}
		w.putMessage(num, entry)
	}
}

func decodeStatusEntry(b []byte, into Statuses) error {
	var (
		id      uint64
		data    []byte
		removed bool
	)
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toUint(&id)
		case 2:
			return f.toBytes(&data)
		case 3:
			return f.toBool(&removed)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if removed {
		into[id] = nil
	} else {
		into[id] = &PlayerStatus{Data: data}
	}
	return nil
}

// RelayedGameMessage is a game message stamped with its sender and the
// seconds elapsed since the game started.
type RelayedGameMessage struct {
	ClientID       uint64
	ElapsedSeconds float32
	Data           []byte
}

func (m *RelayedGameMessage) encode() []byte {
	var w fieldWriter
	w.putUint(1, m.ClientID)
	w.putFloat(2, m.ElapsedSeconds)
	w.putBytes(3, m.Data)
	return w
}

func decodeRelayedGameMessage(b []byte) (RelayedGameMessage, error) {
	var m RelayedGameMessage
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toUint(&m.ClientID)
		case 2:
			return f.toFloat(&m.ElapsedSeconds)
		case 3:
			return f.toBytes(&m.Data)
		}
		return nil
	})
	return m, err
}

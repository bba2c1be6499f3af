package client

import (
	"sort"

	"github.com/dcrodman/squirrelay/pkg/protocol"
)

// Room is the client's view of the room it is in, kept current from
// responses and pushes.
type Room struct {
	ID        int
	OwnerID   uint64
	HasOwner  bool
	Statuses  map[uint64][]byte
	Message   []byte
	IsPlaying bool
}

// IsOwner reports whether id owns the room.
func (r *Room) IsOwner(id uint64) bool {
	return r.HasOwner && r.OwnerID == id
}

func newRoom(id int, owner uint64, hasOwner bool, statuses protocol.Statuses, message []byte) *Room {
	r := &Room{
		ID:       id,
		OwnerID:  owner,
		HasOwner: hasOwner,
		Statuses: make(map[uint64][]byte, len(statuses)),
		Message:  message,
	}
	for id, st := range statuses {
		if st != nil {
			r.Statuses[id] = st.Data
		}
	}
	return r
}

func (r *Room) clone() Room {
	c := *r
	c.Statuses = make(map[uint64][]byte, len(r.Statuses))
	for id, st := range r.Statuses {
		c.Statuses[id] = st
	}
	return c
}

// applyPlayers merges a players update into the view and returns the events
// it implies.
func (r *Room) applyPlayers(m *protocol.UpdateRoomPlayers) []event {
	var events []event

	owner, hasOwner := uint64(0), false
	if m.Owner != nil {
		owner, hasOwner = *m.Owner, true
	}
	if owner != r.OwnerID || hasOwner != r.HasOwner {
		r.OwnerID, r.HasOwner = owner, hasOwner
		events = append(events, func(l Listener) { l.OwnerChanged(owner, hasOwner) })
	}

	ids := make([]uint64, 0, len(m.Statuses))
	for id := range m.Statuses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		id, st := id, m.Statuses[id]
		if st == nil {
			delete(r.Statuses, id)
			events = append(events, func(l Listener) { l.PlayerExited(id) })
			continue
		}

		data := st.Data
		if _, known := r.Statuses[id]; known {
			events = append(events, func(l Listener) { l.PlayerStatusUpdated(id, data) })
		} else {
			events = append(events, func(l Listener) { l.PlayerEntered(id, data) })
		}
		r.Statuses[id] = data
	}
	return events
}

package client

// Listener receives room events pushed by the server. Its methods are only
// ever called from Client.Update, on the caller's goroutine.
//
// Embed NopListener to implement just the events you care about.
type Listener interface {
	GameStarted()
	GameFinished()
	// OwnerChanged reports the new owner; ok is false when the room has none.
	OwnerChanged(id uint64, ok bool)
	PlayerEntered(id uint64, status []byte)
	PlayerExited(id uint64)
	PlayerStatusUpdated(id uint64, status []byte)
	RoomMessageUpdated(message []byte)
	GameMessageReceived(clientID uint64, elapsedSeconds float32, data []byte)
	Ticked(elapsedSeconds float32)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) GameStarted()                                {}
func (NopListener) GameFinished()                               {}
func (NopListener) OwnerChanged(uint64, bool)                   {}
func (NopListener) PlayerEntered(uint64, []byte)                {}
func (NopListener) PlayerExited(uint64)                         {}
func (NopListener) PlayerStatusUpdated(uint64, []byte)          {}
func (NopListener) RoomMessageUpdated([]byte)                   {}
func (NopListener) GameMessageReceived(uint64, float32, []byte) {}
func (NopListener) Ticked(float32)                              {}

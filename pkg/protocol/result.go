package protocol

// ResultKind is the outcome carried by every response. Failures are never sent
// as free-form strings.
type ResultKind uint8

const (
	Success ResultKind = iota
	RoomNotFound
	InvalidPassword
	NumberOfPlayersLimitation
	AlreadyEntered
	InvalidRoomStatus
	PlayerIsNotOwner
	PlayerOutOfRoom
	NotEnoughPeople
	DifferentClientVersion
	// NotHelloed is returned when a session issues a room request before
	// completing the Hello handshake.
	NotHelloed
	// RoomLimitation is returned by CreateRoom when every id in the configured
	// range belongs to a live room.
	RoomLimitation

	numResultKinds
)

var resultNames = [...]string{
	Success:                   "Success",
	RoomNotFound:              "RoomNotFound",
	InvalidPassword:           "InvalidPassword",
	NumberOfPlayersLimitation: "NumberOfPlayersLimitation",
	AlreadyEntered:            "AlreadyEntered",
	InvalidRoomStatus:         "InvalidRoomStatus",
	PlayerIsNotOwner:          "PlayerIsNotOwner",
	PlayerOutOfRoom:           "PlayerOutOfRoom",
	NotEnoughPeople:           "NotEnoughPeople",
	DifferentClientVersion:    "DifferentClientVersion",
	NotHelloed:                "NotHelloed",
	RoomLimitation:            "RoomLimitation",
}

func (r ResultKind) String() string {
	if r < numResultKinds {
		return resultNames[r]
	}
	return "ResultKind(unknown)"
}

// OK reports whether r is Success.
func (r ResultKind) OK() bool {
	return r == Success
}

// RoomOperateKind selects the transition requested by OperateRoom.
type RoomOperateKind uint8

const (
	StartPlaying RoomOperateKind = iota
	FinishPlaying
)

func (k RoomOperateKind) String() string {
	switch k {
	case StartPlaying:
		return "StartPlaying"
	case FinishPlaying:
		return "FinishPlaying"
	}
	return "RoomOperateKind(unknown)"
}

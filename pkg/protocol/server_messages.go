package protocol

// HelloAck completes the handshake, telling the client its id and the room
// rules the server enforces.
type HelloAck struct {
	ClientID   uint64
	RoomConfig RoomConfig
}

func (*HelloAck) ServerKind() ServerKind { return KindHelloAck }
func (*HelloAck) isResponse()            {}

func (m *HelloAck) encode() []byte {
	var w fieldWriter
	w.putUint(1, m.ClientID)
	w.putMessage(2, m.RoomConfig.encode())
	return w
}

func decodeHelloAck(b []byte) (ServerMessage, error) {
	m := &HelloAck{}
	err := walkFields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			return f.toUint(&m.ClientID)
		case 2:
			if err = f.expect(bytesType); err == nil {
				m.RoomConfig, err = decodeRoomConfig(f.raw)
			}
		}
		return err
	})
	return m, err
}

type ClientsCountResponse struct {
	Count int
}

func (*ClientsCountResponse) ServerKind() ServerKind { return KindClientsCountResponse }
func (*ClientsCountResponse) isResponse()            {}

func (m *ClientsCountResponse) encode() []byte {
	var w fieldWriter
	w.putInt(1, m.Count)
	return w
}

func decodeClientsCountResponse(b []byte) (ServerMessage, error) {
	m := &ClientsCountResponse{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toInt(&m.Count)
		}
		return nil
	})
	return m, err
}

type RoomListResponse struct {
	Rooms []RoomInfo
}

func (*RoomListResponse) ServerKind() ServerKind { return KindRoomListResponse }
func (*RoomListResponse) isResponse()            {}

func (m *RoomListResponse) encode() []byte {
	var w fieldWriter
	for i := range m.Rooms {
		w.putMessage(1, m.Rooms[i].encode())
	}
	return w
}

func decodeRoomListResponse(b []byte) (ServerMessage, error) {
	m := &RoomListResponse{Rooms: []RoomInfo{}}
	err := walkFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		if err := f.expect(bytesType); err != nil {
			return err
		}
		info, err := decodeRoomInfo(f.raw)
		if err != nil {
			return err
		}
		m.Rooms = append(m.Rooms, info)
		return nil
	})
	return m, err
}

type CreateRoomResponse struct {
	Result ResultKind
	RoomID int
}

func (*CreateRoomResponse) ServerKind() ServerKind { return KindCreateRoomResponse }
func (*CreateRoomResponse) isResponse()            {}

func (m *CreateRoomResponse) encode() []byte {
	var w fieldWriter
	w.putUint(1, uint64(m.Result))
	w.putInt(2, m.RoomID)
	return w
}

func decodeCreateRoomResponse(b []byte) (ServerMessage, error) {
	m := &CreateRoomResponse{}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toResult(&m.Result)
		case 2:
			return f.toInt(&m.RoomID)
		}
		return nil
	})
	return m, err
}

// EnterRoomResponse carries a snapshot of the room on success: its owner, the
// committed statuses of everyone already inside and the room message.
type EnterRoomResponse struct {
	Result      ResultKind
	OwnerID     uint64
	Statuses    Statuses
	RoomMessage []byte
}

func (*EnterRoomResponse) ServerKind() ServerKind { return KindEnterRoomResponse }
func (*EnterRoomResponse) isResponse()            {}

func (m *EnterRoomResponse) encode() []byte {
	var w fieldWriter
	w.putUint(1, uint64(m.Result))
	w.putUint(2, m.OwnerID)
	m.Statuses.encode(&w, 3)
	w.putBytes(4, m.RoomMessage)
	return w
}

func decodeEnterRoomResponse(b []byte) (ServerMessage, error) {
	m := &EnterRoomResponse{Statuses: Statuses{}}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toResult(&m.Result)
		case 2:
			return f.toUint(&m.OwnerID)
		case 3:
			if err := f.expect(bytesType); err != nil {
				return err
			}
			return decodeStatusEntry(f.raw, m.Statuses)
		case 4:
			return f.toBytes(&m.RoomMessage)
		}
		return nil
	})
	return m, err
}

type ExitRoomResponse struct {
	Result ResultKind
}

type OperateRoomResponse struct {
	Result ResultKind
}

type SetPlayerStatusResponse struct {
	Result ResultKind
}

type SetRoomMessageResponse struct {
	Result ResultKind
}

type SendGameMessageResponse struct {
	Result ResultKind
}

func (*ExitRoomResponse) ServerKind() ServerKind        { return KindExitRoomResponse }
func (*OperateRoomResponse) ServerKind() ServerKind     { return KindOperateRoomResponse }
func (*SetPlayerStatusResponse) ServerKind() ServerKind { return KindSetPlayerStatusResponse }
func (*SetRoomMessageResponse) ServerKind() ServerKind  { return KindSetRoomMessageResponse }
func (*SendGameMessageResponse) ServerKind() ServerKind { return KindSendGameMessageResponse }

func (*ExitRoomResponse) isResponse()        {}
func (*OperateRoomResponse) isResponse()     {}
func (*SetPlayerStatusResponse) isResponse() {}
func (*SetRoomMessageResponse) isResponse()  {}
func (*SendGameMessageResponse) isResponse() {}

func (m *ExitRoomResponse) encode() []byte        { return encodeResult(m.Result) }
func (m *OperateRoomResponse) encode() []byte     { return encodeResult(m.Result) }
func (m *SetPlayerStatusResponse) encode() []byte { return encodeResult(m.Result) }
func (m *SetRoomMessageResponse) encode() []byte  { return encodeResult(m.Result) }
func (m *SendGameMessageResponse) encode() []byte { return encodeResult(m.Result) }

func encodeResult(r ResultKind) []byte {
	var w fieldWriter
	w.putUint(1, uint64(r))
	return w
}

// resultDecoder builds a decoder for responses that carry nothing but a result.
func resultDecoder(build func(ResultKind) ServerMessage) func([]byte) (ServerMessage, error) {
	return func(b []byte) (ServerMessage, error) {
		var r ResultKind
		err := walkFields(b, func(f field) error {
			if f.num == 1 {
				return f.toResult(&r)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return build(r), nil
	}
}

// UpdateRoomPlayers pushes the status changes accumulated since the previous
// tick. A nil entry in Statuses means that player left. Owner is nil once the
// room has no owner.
type UpdateRoomPlayers struct {
	Owner    *uint64
	Statuses Statuses
}

func (*UpdateRoomPlayers) ServerKind() ServerKind { return KindUpdateRoomPlayers }

func (m *UpdateRoomPlayers) encode() []byte {
	var w fieldWriter
	if m.Owner != nil {
		// Wrapped so that presence survives even for a zero id.
		var owner fieldWriter
		owner.putUint(1, *m.Owner)
		w.putMessage(1, owner)
	}
	m.Statuses.encode(&w, 2)
	return w
}

func decodeUpdateRoomPlayers(b []byte) (ServerMessage, error) {
	m := &UpdateRoomPlayers{Statuses: Statuses{}}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			if err := f.expect(bytesType); err != nil {
				return err
			}
			var owner uint64
			err := walkFields(f.raw, func(f field) error {
				if f.num == 1 {
					return f.toUint(&owner)
				}
				return nil
			})
			m.Owner = &owner
			return err
		case 2:
			if err := f.expect(bytesType); err != nil {
				return err
			}
			return decodeStatusEntry(f.raw, m.Statuses)
		}
		return nil
	})
	return m, err
}

type UpdateRoomMessage struct {
	RoomMessage []byte
}

func (*UpdateRoomMessage) ServerKind() ServerKind { return KindUpdateRoomMessage }

func (m *UpdateRoomMessage) encode() []byte {
	var w fieldWriter
	w.putBytes(1, m.RoomMessage)
	return w
}

func decodeUpdateRoomMessage(b []byte) (ServerMessage, error) {
	m := &UpdateRoomMessage{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toBytes(&m.RoomMessage)
		}
		return nil
	})
	return m, err
}

// Tick reports the seconds elapsed since the current game started.
type Tick struct {
	ElapsedSeconds float32
}

func (*Tick) ServerKind() ServerKind { return KindTick }

func (m *Tick) encode() []byte {
	var w fieldWriter
	w.putFloat(1, m.ElapsedSeconds)
	return w
}

func decodeTick(b []byte) (ServerMessage, error) {
	m := &Tick{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toFloat(&m.ElapsedSeconds)
		}
		return nil
	})
	return m, err
}

// BroadcastGameMessages carries every game message a room received during one
// tick, in the order they arrived.
type BroadcastGameMessages struct {
	Messages []RelayedGameMessage
}

func (*BroadcastGameMessages) ServerKind() ServerKind { return KindBroadcastGameMessages }

func (m *BroadcastGameMessages) encode() []byte {
	var w fieldWriter
	for i := range m.Messages {
		w.putMessage(1, m.Messages[i].encode())
	}
	return w
}

func decodeBroadcastGameMessages(b []byte) (ServerMessage, error) {
	m := &BroadcastGameMessages{Messages: []RelayedGameMessage{}}
	err := walkFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		if err := f.expect(bytesType); err != nil {
			return err
		}
		msg, err := decodeRelayedGameMessage(f.raw)
		if err != nil {
			return err
		}
		m.Messages = append(m.Messages, msg)
		return nil
	})
	return m, err
}

type NotifyRoomOperation struct {
	Operate RoomOperateKind
}

func (*NotifyRoomOperation) ServerKind() ServerKind { return KindNotifyRoomOperation }

func (m *NotifyRoomOperation) encode() []byte {
	var w fieldWriter
	w.putUint(1, uint64(m.Operate))
	return w
}

func decodeNotifyRoomOperation(b []byte) (ServerMessage, error) {
	m := &NotifyRoomOperation{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toOperate(&m.Operate)
		}
		return nil
	})
	return m, err
}

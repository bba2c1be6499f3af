package protocol

// Hello is the first message a client sends after connecting. The server
// waits for it before assigning the client a version and answering HelloAck.
type Hello struct {
	ClientVersion string
}

func (*Hello) ClientKind() ClientKind { return KindHello }
func (*Hello) isResponse()            {}

func (m *Hello) encode() []byte {
	var w fieldWriter
	w.putString(1, m.ClientVersion)
	return w
}

func decodeHello(b []byte) (ClientMessage, error) {
	m := &Hello{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toString(&m.ClientVersion)
		}
		return nil
	})
	return m, err
}

type GetClientsCount struct{}

func (*GetClientsCount) ClientKind() ClientKind                  { return KindGetClientsCount }
func (*GetClientsCount) ExpectedResponse() *ClientsCountResponse { return nil }
func (*GetClientsCount) encode() []byte                          { return nil }
func decodeGetClientsCount([]byte) (ClientMessage, error)        { return &GetClientsCount{}, nil }

type GetRoomList struct{}

func (*GetRoomList) ClientKind() ClientKind              { return KindGetRoomList }
func (*GetRoomList) ExpectedResponse() *RoomListResponse { return nil }
func (*GetRoomList) encode() []byte                      { return nil }
func decodeGetRoomList([]byte) (ClientMessage, error)    { return &GetRoomList{}, nil }

// CreateRoom asks the server to open a new room with the sender as owner.
// Fields the server's RoomConfig disables are ignored.
type CreateRoom struct {
	IsVisible          bool
	Password           string
	MaxNumberOfPlayers int
	PlayerStatus       []byte
	RoomMessage        []byte
}

func (*CreateRoom) ClientKind() ClientKind                { return KindCreateRoom }
func (*CreateRoom) ExpectedResponse() *CreateRoomResponse { return nil }

func (m *CreateRoom) encode() []byte {
	var w fieldWriter
	w.putBool(1, m.IsVisible)
	w.putString(2, m.Password)
	w.putInt(3, m.MaxNumberOfPlayers)
	w.putBytes(4, m.PlayerStatus)
	w.putBytes(5, m.RoomMessage)
	return w
}

func decodeCreateRoom(b []byte) (ClientMessage, error) {
	m := &CreateRoom{}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toBool(&m.IsVisible)
		case 2:
			return f.toString(&m.Password)
		case 3:
			return f.toInt(&m.MaxNumberOfPlayers)
		case 4:
			return f.toBytes(&m.PlayerStatus)
		case 5:
			return f.toBytes(&m.RoomMessage)
		}
		return nil
	})
	return m, err
}

type EnterRoom struct {
	RoomID   int
	Password string
	Status   []byte
}

func (*EnterRoom) ClientKind() ClientKind               { return KindEnterRoom }
func (*EnterRoom) ExpectedResponse() *EnterRoomResponse { return nil }

func (m *EnterRoom) encode() []byte {
	var w fieldWriter
	w.putInt(1, m.RoomID)
	w.putString(2, m.Password)
	w.putBytes(3, m.Status)
	return w
}

func decodeEnterRoom(b []byte) (ClientMessage, error) {
	m := &EnterRoom{}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return f.toInt(&m.RoomID)
		case 2:
			return f.toString(&m.Password)
		case 3:
			return f.toBytes(&m.Status)
		}
		return nil
	})
	return m, err
}

type ExitRoom struct{}

func (*ExitRoom) ClientKind() ClientKind              { return KindExitRoom }
func (*ExitRoom) ExpectedResponse() *ExitRoomResponse { return nil }
func (*ExitRoom) encode() []byte                      { return nil }
func decodeExitRoom([]byte) (ClientMessage, error)    { return &ExitRoom{}, nil }

type OperateRoom struct {
	Operate RoomOperateKind
}

func (*OperateRoom) ClientKind() ClientKind                 { return KindOperateRoom }
func (*OperateRoom) ExpectedResponse() *OperateRoomResponse { return nil }

func (m *OperateRoom) encode() []byte {
	var w fieldWriter
	w.putUint(1, uint64(m.Operate))
	return w
}

func decodeOperateRoom(b []byte) (ClientMessage, error) {
	m := &OperateRoom{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toOperate(&m.Operate)
		}
		return nil
	})
	return m, err
}

type SetPlayerStatus struct {
	Status []byte
}

func (*SetPlayerStatus) ClientKind() ClientKind                     { return KindSetPlayerStatus }
func (*SetPlayerStatus) ExpectedResponse() *SetPlayerStatusResponse { return nil }

func (m *SetPlayerStatus) encode() []byte {
	var w fieldWriter
	w.putBytes(1, m.Status)
	return w
}

func decodeSetPlayerStatus(b []byte) (ClientMessage, error) {
	m := &SetPlayerStatus{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toBytes(&m.Status)
		}
		return nil
	})
	return m, err
}

type SetRoomMessage struct {
	RoomMessage []byte
}

func (*SetRoomMessage) ClientKind() ClientKind                    { return KindSetRoomMessage }
func (*SetRoomMessage) ExpectedResponse() *SetRoomMessageResponse { return nil }

func (m *SetRoomMessage) encode() []byte {
	var w fieldWriter
	w.putBytes(1, m.RoomMessage)
	return w
}

func decodeSetRoomMessage(b []byte) (ClientMessage, error) {
	m := &SetRoomMessage{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toBytes(&m.RoomMessage)
		}
		return nil
	})
	return m, err
}

type SendGameMessage struct {
	Data []byte
}

func (*SendGameMessage) ClientKind() ClientKind                     { return KindSendGameMessage }
func (*SendGameMessage) ExpectedResponse() *SendGameMessageResponse { return nil }

func (m *SendGameMessage) encode() []byte {
	var w fieldWriter
	w.putBytes(1, m.Data)
	return w
}

func decodeSendGameMessage(b []byte) (ClientMessage, error) {
	m := &SendGameMessage{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			return f.toBytes(&m.Data)
		}
		return nil
	})
	return m, err
}

package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"
)

func ownerPtr(id uint64) *uint64 { return &id }

var testRoomConfig = RoomConfig{
	InvisibleEnabled:               true,
	RoomMessageEnabled:             true,
	PasswordEnabled:                false,
	EnterWhilePlayingAllowed:       true,
	TickMessageEnabled:             true,
	DisposeSecondsWhenNoMember:     2.5,
	UpdatingDisposeIntervalSeconds: 0.25,
	NumberOfPlayersRange:           Range{Min: 2, Max: 8},
	GeneratedRoomIDRange:           Range{Min: 1000, Max: 9999},
}

func TestClientMessages_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientMessage
	}{
		{"Hello", &Hello{ClientVersion: "1.0.2"}},
		{"Hello with empty version", &Hello{}},
		{"GetClientsCount", &GetClientsCount{}},
		{"GetRoomList", &GetRoomList{}},
		{"CreateRoom", &CreateRoom{
			IsVisible:          true,
			Password:           "hunter2",
			MaxNumberOfPlayers: 6,
			PlayerStatus:       []byte{0x01, 0x02},
			RoomMessage:        []byte("welcome"),
		}},
		{"CreateRoom with absent payloads", &CreateRoom{MaxNumberOfPlayers: -3}},
		{"CreateRoom with empty payloads", &CreateRoom{PlayerStatus: []byte{}, RoomMessage: []byte{}}},
		{"EnterRoom", &EnterRoom{RoomID: 4321, Password: "pw", Status: []byte{0xff}}},
		{"EnterRoom without status", &EnterRoom{RoomID: 1}},
		{"ExitRoom", &ExitRoom{}},
		{"OperateRoom start", &OperateRoom{Operate: StartPlaying}},
		{"OperateRoom finish", &OperateRoom{Operate: FinishPlaying}},
		{"SetPlayerStatus", &SetPlayerStatus{Status: []byte("ready")}},
		{"SetPlayerStatus nil", &SetPlayerStatus{}},
		{"SetRoomMessage", &SetRoomMessage{RoomMessage: []byte{}}},
		{"SendGameMessage", &SendGameMessage{Data: []byte{0, 0, 0, 7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClient(EncodeClient(tt.msg))
			if err != nil {
				t.Fatalf("DecodeClient() returned an unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.msg, got); diff != "" {
				t.Errorf("DecodeClient() did not reproduce the message; diff:\n%s", diff)
			}
		})
	}
}

func TestServerMessages_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ServerMessage
	}{
		{"HelloAck", &HelloAck{ClientID: 42, RoomConfig: testRoomConfig}},
		{"ClientsCountResponse", &ClientsCountResponse{Count: 17}},
		{"RoomListResponse", &RoomListResponse{Rooms: []RoomInfo{
			{ID: 1001, IsVisible: true, MaxNumberOfPlayers: 4, NumberOfPlayers: 2, Message: []byte("hi"), ClientVersion: "1.0"},
			{ID: 1002, IsVisible: true, MaxNumberOfPlayers: 8, IsPlaying: true, Message: []byte{}},
		}}},
		{"RoomListResponse empty", &RoomListResponse{Rooms: []RoomInfo{}}},
		{"CreateRoomResponse", &CreateRoomResponse{Result: Success, RoomID: 5555}},
		{"CreateRoomResponse failure", &CreateRoomResponse{Result: NotHelloed}},
		{"EnterRoomResponse", &EnterRoomResponse{
			Result:  Success,
			OwnerID: 3,
			Statuses: Statuses{
				3: {Data: []byte("owner")},
				9: {Data: nil},
				4: {Data: []byte{}},
			},
			RoomMessage: []byte("msg"),
		}},
		{"EnterRoomResponse failure", &EnterRoomResponse{Result: DifferentClientVersion, Statuses: Statuses{}}},
		{"ExitRoomResponse", &ExitRoomResponse{Result: PlayerOutOfRoom}},
		{"OperateRoomResponse", &OperateRoomResponse{Result: NotEnoughPeople}},
		{"SetPlayerStatusResponse", &SetPlayerStatusResponse{Result: Success}},
		{"SetRoomMessageResponse", &SetRoomMessageResponse{Result: PlayerIsNotOwner}},
		{"SendGameMessageResponse", &SendGameMessageResponse{Result: InvalidRoomStatus}},
		{"UpdateRoomPlayers", &UpdateRoomPlayers{
			Owner:    ownerPtr(7),
			Statuses: Statuses{7: {Data: []byte{1}}, 8: nil},
		}},
		{"UpdateRoomPlayers without owner", &UpdateRoomPlayers{Statuses: Statuses{1: nil}}},
		{"UpdateRoomPlayers with zero owner", &UpdateRoomPlayers{Owner: ownerPtr(0), Statuses: Statuses{}}},
		{"UpdateRoomMessage", &UpdateRoomMessage{RoomMessage: []byte("round 2")}},
		{"UpdateRoomMessage nil", &UpdateRoomMessage{}},
		{"Tick", &Tick{ElapsedSeconds: 12.75}},
		{"BroadcastGameMessages", &BroadcastGameMessages{Messages: []RelayedGameMessage{
			{ClientID: 1, ElapsedSeconds: 0.5, Data: []byte("a")},
			{ClientID: 2, ElapsedSeconds: 0.75},
			{ClientID: 1, ElapsedSeconds: 1, Data: []byte{}},
		}}},
		{"NotifyRoomOperation", &NotifyRoomOperation{Operate: FinishPlaying}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeServer(EncodeServer(tt.msg))
			if err != nil {
				t.Fatalf("DecodeServer() returned an unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.msg, got); diff != "" {
				t.Errorf("DecodeServer() did not reproduce the message; diff:\n%s", diff)
			}
		})
	}
}

func TestDecode_PreservesNilAndEmptyPayloads(t *testing.T) {
	got, err := DecodeClient(EncodeClient(&CreateRoom{PlayerStatus: []byte{}}))
	if err != nil {
		t.Fatalf("DecodeClient() returned an unexpected error: %v", err)
	}
	m := got.(*CreateRoom)
	if m.PlayerStatus == nil {
		t.Errorf("expected an empty, non-nil PlayerStatus")
	}
	if m.RoomMessage != nil {
		t.Errorf("expected a nil RoomMessage, got %v", m.RoomMessage)
	}
}

func TestDecode_CopiesPayloadOutOfBuffer(t *testing.T) {
	datagram := EncodeClient(&SendGameMessage{Data: []byte("abc")})
	got, err := DecodeClient(datagram)
	if err != nil {
		t.Fatalf("DecodeClient() returned an unexpected error: %v", err)
	}
	for i := range datagram {
		datagram[i] = 0
	}
	if diff := cmp.Diff([]byte("abc"), got.(*SendGameMessage).Data); diff != "" {
		t.Errorf("decoded payload aliased the datagram; diff:\n%s", diff)
	}
}

func TestDecode_Errors(t *testing.T) {
	unknownKind := protowire.AppendTag(nil, envelopeKind, protowire.VarintType)
	unknownKind = protowire.AppendVarint(unknownKind, 200)

	badResult := encodeEnvelope(uint8(KindExitRoomResponse), encodeResult(ResultKind(250)))
	badOperate := encodeEnvelope(uint8(KindOperateRoom), (&OperateRoom{Operate: RoomOperateKind(9)}).encode())

	wrongWireType := protowire.AppendTag(nil, 1, protowire.Fixed32Type)
	wrongWireType = protowire.AppendFixed32(wrongWireType, 1)
	helloWithWrongType := encodeEnvelope(uint8(KindHello), wrongWireType)

	tests := []struct {
		name    string
		data    []byte
		server  bool
		wantErr error
	}{
		{"empty datagram", nil, false, ErrMalformed},
		{"truncated datagram", []byte{0x08}, false, ErrMalformed},
		{"unknown client kind", unknownKind, false, ErrUnknownKind},
		{"unknown server kind", unknownKind, true, ErrUnknownKind},
		{"result out of range", badResult, true, ErrMalformed},
		{"operation out of range", badOperate, false, ErrMalformed},
		{"field with wrong wire type", helloWithWrongType, false, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.server {
				_, err = DecodeServer(tt.data)
			} else {
				_, err = DecodeClient(tt.data)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	payload := (&EnterRoom{RoomID: 12, Password: "x"}).encode()
	payload = protowire.AppendTag(payload, 99, protowire.BytesType)
	payload = protowire.AppendBytes(payload, []byte("from a newer client"))

	got, err := DecodeClient(encodeEnvelope(uint8(KindEnterRoom), payload))
	if err != nil {
		t.Fatalf("DecodeClient() returned an unexpected error: %v", err)
	}
	if diff := cmp.Diff(&EnterRoom{RoomID: 12, Password: "x"}, got); diff != "" {
		t.Errorf("DecodeClient() diff:\n%s", diff)
	}
}

func TestResultKind_String(t *testing.T) {
	if got := NumberOfPlayersLimitation.String(); got != "NumberOfPlayersLimitation" {
		t.Errorf("String() = %s", got)
	}
	if got := ResultKind(200).String(); got != "ResultKind(unknown)" {
		t.Errorf("String() = %s", got)
	}
}

func TestRange_Clamp(t *testing.T) {
	r := Range{Min: 2, Max: 6}
	for in, want := range map[int]int{-5: 2, 2: 2, 4: 4, 6: 6, 100: 6} {
		if got := r.Clamp(in); got != want {
			t.Errorf("Clamp(%d) = %d, want %d", in, got, want)
		}
	}
}

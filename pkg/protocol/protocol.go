// Package protocol defines the messages exchanged between squirrelay clients
// and the relay server, along with their wire encoding.
//
// Every datagram is an envelope holding a small integer discriminant and the
// encoded payload of one message, written in the protobuf wire format. Decoding
// goes through an explicit discriminant table per direction, so both sides can
// decode any datagram into a single closed message type without a schema.
package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrUnknownKind is returned when a datagram's discriminant has no registered decoder.
	ErrUnknownKind = errors.New("protocol: unknown message kind")
	// ErrMalformed is returned for truncated or otherwise undecodable datagrams.
	ErrMalformed = errors.New("protocol: malformed message")
)

// ConnectionKeyHeader carries the shared connection key on the websocket
// upgrade request. Servers also accept it as the "key" query parameter.
const ConnectionKeyHeader = "X-Connection-Key"

// ClientKind is the discriminant of a client-originated message.
type ClientKind uint8

const (
	KindHello ClientKind = iota
	KindGetClientsCount
	KindGetRoomList
	KindCreateRoom
	KindEnterRoom
	KindExitRoom
	KindOperateRoom
	KindSetPlayerStatus
	KindSetRoomMessage
	KindSendGameMessage
)

var clientKindNames = map[ClientKind]string{
	KindHello:           "Hello",
	KindGetClientsCount: "GetClientsCount",
	KindGetRoomList:     "GetRoomList",
	KindCreateRoom:      "CreateRoom",
	KindEnterRoom:       "EnterRoom",
	KindExitRoom:        "ExitRoom",
	KindOperateRoom:     "OperateRoom",
	KindSetPlayerStatus: "SetPlayerStatus",
	KindSetRoomMessage:  "SetRoomMessage",
	KindSendGameMessage: "SendGameMessage",
}

func (k ClientKind) String() string {
	if name, ok := clientKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ClientKind(%d)", uint8(k))
}

// ServerKind is the discriminant of a server-originated message.
type ServerKind uint8

const (
	KindHelloAck ServerKind = iota
	KindClientsCountResponse
	KindRoomListResponse
	KindCreateRoomResponse
	KindEnterRoomResponse
	KindExitRoomResponse
	KindOperateRoomResponse
	KindSetPlayerStatusResponse
	KindSetRoomMessageResponse
	KindSendGameMessageResponse
	KindUpdateRoomPlayers
	KindUpdateRoomMessage
	KindTick
	KindBroadcastGameMessages
	KindNotifyRoomOperation
)

var serverKindNames = map[ServerKind]string{
	KindHelloAck:                "HelloAck",
	KindClientsCountResponse:    "ClientsCountResponse",
	KindRoomListResponse:        "RoomListResponse",
	KindCreateRoomResponse:      "CreateRoomResponse",
	KindEnterRoomResponse:       "EnterRoomResponse",
	KindExitRoomResponse:        "ExitRoomResponse",
	KindOperateRoomResponse:     "OperateRoomResponse",
	KindSetPlayerStatusResponse: "SetPlayerStatusResponse",
	KindSetRoomMessageResponse:  "SetRoomMessageResponse",
	KindSendGameMessageResponse: "SendGameMessageResponse",
	KindUpdateRoomPlayers:       "UpdateRoomPlayers",
	KindUpdateRoomMessage:       "UpdateRoomMessage",
	KindTick:                    "Tick",
	KindBroadcastGameMessages:   "BroadcastGameMessages",
	KindNotifyRoomOperation:     "NotifyRoomOperation",
}

func (k ServerKind) String() string {
	if name, ok := serverKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ServerKind(%d)", uint8(k))
}

// ClientMessage is implemented only by the message types in this package.
type ClientMessage interface {
	ClientKind() ClientKind
	encode() []byte
}

// ServerMessage is implemented only by the message types in this package.
type ServerMessage interface {
	ServerKind() ServerKind
	encode() []byte
}

// WithResponse is implemented by requests that are answered with exactly one
// message of type R. It exists to tie request and response types together at
// compile time and is never sent over the wire.
type WithResponse[R ServerMessage] interface {
	ClientMessage
	ExpectedResponse() R
}

// Response marks messages that answer a request rather than arriving
// unsolicited. Receivers route these to whoever is awaiting them.
type Response interface {
	isResponse()
}

const (
	envelopeKind    = 1
	envelopePayload = 2
)

func encodeEnvelope(kind uint8, payload []byte) []byte {
	w := make(fieldWriter, 0, len(payload)+8)
	// The discriminant is written even when zero.
	w = protowire.AppendTag(w, envelopeKind, protowire.VarintType)
	w = protowire.AppendVarint(w, uint64(kind))
	w.putMessage(envelopePayload, payload)
	return w
}

func decodeEnvelope(b []byte) (uint8, []byte, error) {
	var (
		kind    uint64
		hasKind bool
		payload []byte
	)
	err := walkFields(b, func(f field) error {
		switch f.num {
		case envelopeKind:
			hasKind = true
			return f.toUint(&kind)
		case envelopePayload:
			if err := f.expect(bytesType); err != nil {
				return err
			}
			payload = f.raw
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if !hasKind || kind > 0xff {
		return 0, nil, fmt.Errorf("%w: missing or invalid discriminant", ErrMalformed)
	}
	return uint8(kind), payload, nil
}

// EncodeClient serializes a client message into a datagram.
func EncodeClient(m ClientMessage) []byte {
	return encodeEnvelope(uint8(m.ClientKind()), m.encode())
}

// EncodeServer serializes a server message into a datagram.
func EncodeServer(m ServerMessage) []byte {
	return encodeEnvelope(uint8(m.ServerKind()), m.encode())
}

// DecodeClient parses a datagram produced by EncodeClient.
func DecodeClient(b []byte) (ClientMessage, error) {
	kind, payload, err := decodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	decode, ok := clientDecoders[ClientKind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, ClientKind(kind))
	}
	m, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", ClientKind(kind), err)
	}
	return m, nil
}

// DecodeServer parses a datagram produced by EncodeServer.
func DecodeServer(b []byte) (ServerMessage, error) {
	kind, payload, err := decodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	decode, ok := serverDecoders[ServerKind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, ServerKind(kind))
	}
	m, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", ServerKind(kind), err)
	}
	return m, nil
}

var clientDecoders = map[ClientKind]func([]byte) (ClientMessage, error){
	KindHello:           decodeHello,
	KindGetClientsCount: decodeGetClientsCount,
	KindGetRoomList:     decodeGetRoomList,
	KindCreateRoom:      decodeCreateRoom,
	KindEnterRoom:       decodeEnterRoom,
	KindExitRoom:        decodeExitRoom,
	KindOperateRoom:     decodeOperateRoom,
	KindSetPlayerStatus: decodeSetPlayerStatus,
	KindSetRoomMessage:  decodeSetRoomMessage,
	KindSendGameMessage: decodeSendGameMessage,
}

var serverDecoders = map[ServerKind]func([]byte) (ServerMessage, error){
	KindHelloAck:                decodeHelloAck,
	KindClientsCountResponse:    decodeClientsCountResponse,
	KindRoomListResponse:        decodeRoomListResponse,
	KindCreateRoomResponse:      decodeCreateRoomResponse,
	KindEnterRoomResponse:       decodeEnterRoomResponse,
	KindExitRoomResponse:        resultDecoder(func(r ResultKind) ServerMessage { return &ExitRoomResponse{Result: r} }),
	KindOperateRoomResponse:     resultDecoder(func(r ResultKind) ServerMessage { return &OperateRoomResponse{Result: r} }),
	KindSetPlayerStatusResponse: resultDecoder(func(r ResultKind) ServerMessage { return &SetPlayerStatusResponse{Result: r} }),
	KindSetRoomMessageResponse:  resultDecoder(func(r ResultKind) ServerMessage { return &SetRoomMessageResponse{Result: r} }),
	KindSendGameMessageResponse: resultDecoder(func(r ResultKind) ServerMessage { return &SendGameMessageResponse{Result: r} }),
	KindUpdateRoomPlayers:       decodeUpdateRoomPlayers,
	KindUpdateRoomMessage:       decodeUpdateRoomMessage,
	KindTick:                    decodeTick,
	KindBroadcastGameMessages:   decodeBroadcastGameMessages,
	KindNotifyRoomOperation:     decodeNotifyRoomOperation,
}

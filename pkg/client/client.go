// Package client is a Go client for a squirrelay server.
//
// Requests block until the server answers or the connection drops. Pushed
// room events are queued as they arrive and handed to a Listener by Update,
// so a game loop can process them at a time of its choosing.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/squirrelay/internal/core"
	"github.com/dcrodman/squirrelay/internal/core/correlation"
	"github.com/dcrodman/squirrelay/pkg/protocol"
)

// ErrDisconnected is returned by requests on a closed connection, including
// requests that were still waiting when it closed.
var ErrDisconnected = fmt.Errorf("client: disconnected from server: %w", correlation.ErrCanceled)

const writeWait = 5 * time.Second

type Options struct {
	ConnectionKey string
	ClientVersion string
	// Extra headers sent with the websocket upgrade request.
	Header http.Header
	Dialer *websocket.Dialer
	Logger logrus.FieldLogger
}

// event is a queued Listener call.
type event func(Listener)

type Client struct {
	conn      *websocket.Conn
	log       logrus.FieldLogger
	responses *correlation.Table[protocol.ServerMessage]

	id         uint64
	roomConfig protocol.RoomConfig

	writeMu sync.Mutex

	mu       sync.Mutex
	room     *Room
	entering []int
	events   []event
	err      error

	done chan struct{}
}

// Dial connects to the websocket endpoint at url and completes the handshake.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = v
	}
	if opts.ConnectionKey != "" {
		header.Set(protocol.ConnectionKeyHeader, opts.ConnectionKey)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("error connecting to %s (%s): %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("error connecting to %s: %w", url, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = core.DiscardLogger()
	}

	c := &Client{
		conn:      conn,
		log:       logger,
		responses: correlation.NewTable[protocol.ServerMessage](),
		done:      make(chan struct{}),
	}
	go c.readLoop()

	pending := correlation.Expect[*protocol.HelloAck](c.responses)
	if err := c.send(&protocol.Hello{ClientVersion: opts.ClientVersion}); err != nil {
		c.Close()
		return nil, err
	}
	ack, err := pending.Wait(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("error during handshake: %w", c.translate(err))
	}

	c.id = ack.ClientID
	c.roomConfig = ack.RoomConfig
	c.log.Infof("connected to %s as client %d", url, c.id)
	return c, nil
}

// ID is the id the server assigned to this client.
func (c *Client) ID() uint64 {
	return c.id
}

// RoomConfig is the server's room configuration, received during the
// handshake.
func (c *Client) RoomConfig() protocol.RoomConfig {
	return c.roomConfig
}

// CurrentRoom returns a copy of the room the client is in, if any.
func (c *Client) CurrentRoom() (Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return Room{}, false
	}
	return c.room.clone(), true
}

// IsOwner reports whether the client owns its current room.
func (c *Client) IsOwner() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room != nil && c.room.IsOwner(c.id)
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil if it is still
// open or was closed with Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Update hands every queued event to l in the order it arrived.
func (c *Client) Update(l Listener) {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	for _, ev := range events {
		ev(l)
	}
}

// Close sends a close frame and waits for the server to hang up.
func (c *Client) Close() {
	c.writeMu.Lock()
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	if err != nil {
		_ = c.conn.Close()
	}

	select {
	case <-c.done:
	case <-time.After(time.Second):
		_ = c.conn.Close()
		<-c.done
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) send(msg protocol.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeClient(msg)); err != nil {
		// The read loop notices the broken connection and releases waiters.
		_ = c.conn.Close()
		return fmt.Errorf("error sending %v: %w", msg.ClientKind(), err)
	}
	return nil
}

func (c *Client) translate(err error) error {
	if errors.Is(err, correlation.ErrCanceled) {
		return ErrDisconnected
	}
	return err
}

// request sends msg and waits for its response.
func request[R protocol.ServerMessage](ctx context.Context, c *Client, msg protocol.WithResponse[R]) (R, error) {
	var zero R
	if c.closed() {
		return zero, ErrDisconnected
	}

	pending := correlation.Expect[R](c.responses)
	if err := c.send(msg); err != nil {
		return zero, err
	}
	res, err := pending.Wait(ctx)
	if err != nil {
		return zero, c.translate(err)
	}
	return res, nil
}

// ClientsCount returns the number of clients connected to the server.
func (c *Client) ClientsCount(ctx context.Context) (int, error) {
	res, err := request[*protocol.ClientsCountResponse](ctx, c, &protocol.GetClientsCount{})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// RoomList returns the visible rooms.
func (c *Client) RoomList(ctx context.Context) ([]protocol.RoomInfo, error) {
	res, err := request[*protocol.RoomListResponse](ctx, c, &protocol.GetRoomList{})
	if err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

// CreateRoom creates a room and enters it as its owner. Fields the server
// has disabled are cleared before sending.
func (c *Client) CreateRoom(ctx context.Context, req protocol.CreateRoom) (*protocol.CreateRoomResponse, error) {
	if !c.roomConfig.InvisibleEnabled {
		req.IsVisible = true
	}
	if !c.roomConfig.PasswordEnabled {
		req.Password = ""
	}
	if !c.roomConfig.RoomMessageEnabled {
		req.RoomMessage = nil
	}
	if req.MaxNumberOfPlayers == 0 {
		req.MaxNumberOfPlayers = c.roomConfig.NumberOfPlayersRange.Max
	}
	return request[*protocol.CreateRoomResponse](ctx, c, &req)
}

// EnterRoom enters an existing room.
func (c *Client) EnterRoom(ctx context.Context, req protocol.EnterRoom) (*protocol.EnterRoomResponse, error) {
	if !c.roomConfig.PasswordEnabled {
		req.Password = ""
	}
	c.mu.Lock()
	c.entering = append(c.entering, req.RoomID)
	c.mu.Unlock()
	return request[*protocol.EnterRoomResponse](ctx, c, &req)
}

// ExitRoom leaves the current room.
func (c *Client) ExitRoom(ctx context.Context) (*protocol.ExitRoomResponse, error) {
	return request[*protocol.ExitRoomResponse](ctx, c, &protocol.ExitRoom{})
}

// StartPlaying starts a game in the current room. Only the owner may do so.
func (c *Client) StartPlaying(ctx context.Context) (*protocol.OperateRoomResponse, error) {
	return request[*protocol.OperateRoomResponse](ctx, c, &protocol.OperateRoom{Operate: protocol.StartPlaying})
}

// FinishPlaying finishes the game in the current room. Only the owner may do
// so.
func (c *Client) FinishPlaying(ctx context.Context) (*protocol.OperateRoomResponse, error) {
	return request[*protocol.OperateRoomResponse](ctx, c, &protocol.OperateRoom{Operate: protocol.FinishPlaying})
}

func (c *Client) SetPlayerStatus(ctx context.Context, status []byte) (*protocol.SetPlayerStatusResponse, error) {
	return request[*protocol.SetPlayerStatusResponse](ctx, c, &protocol.SetPlayerStatus{Status: status})
}

func (c *Client) SetRoomMessage(ctx context.Context, message []byte) (*protocol.SetRoomMessageResponse, error) {
	return request[*protocol.SetRoomMessageResponse](ctx, c, &protocol.SetRoomMessage{RoomMessage: message})
}

// SendGameMessage relays data to everyone in the room with the next
// broadcast.
func (c *Client) SendGameMessage(ctx context.Context, data []byte) (*protocol.SendGameMessageResponse, error) {
	return request[*protocol.SendGameMessageResponse](ctx, c, &protocol.SendGameMessage{Data: data})
}

func (c *Client) readLoop() {
	defer func() {
		c.responses.Cancel()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnf("connection lost: %v", err)
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}

		msg, err := protocol.DecodeServer(data)
		if err != nil {
			c.log.Warnf("dropping malformed message from server: %v", err)
			continue
		}
		c.handle(msg)
	}
}

// handle applies msg to the room view before waking whoever awaits it, so a
// request returns with CurrentRoom already reflecting its response.
func (c *Client) handle(msg protocol.ServerMessage) {
	c.mu.Lock()
	switch m := msg.(type) {
	case *protocol.CreateRoomResponse:
		if m.Result.OK() {
			c.room = newRoom(m.RoomID, c.id, true, nil, nil)
		}
	case *protocol.EnterRoomResponse:
		var roomID int
		if len(c.entering) > 0 {
			roomID, c.entering = c.entering[0], c.entering[1:]
		}
		if m.Result.OK() {
			c.room = newRoom(roomID, m.OwnerID, true, m.Statuses, m.RoomMessage)
		}
	case *protocol.ExitRoomResponse:
		if m.Result.OK() {
			c.room = nil
		}
	case *protocol.UpdateRoomPlayers:
		if c.room != nil {
			c.events = append(c.events, c.room.applyPlayers(m)...)
		}
	case *protocol.UpdateRoomMessage:
		if c.room != nil {
			c.room.Message = m.RoomMessage
			message := m.RoomMessage
			c.events = append(c.events, func(l Listener) { l.RoomMessageUpdated(message) })
		}
	case *protocol.NotifyRoomOperation:
		if c.room != nil {
			c.room.IsPlaying = m.Operate == protocol.StartPlaying
		}
		switch m.Operate {
		case protocol.StartPlaying:
			c.events = append(c.events, Listener.GameStarted)
		case protocol.FinishPlaying:
			c.events = append(c.events, Listener.GameFinished)
		}
	case *protocol.BroadcastGameMessages:
		for _, gm := range m.Messages {
			gm := gm
			c.events = append(c.events, func(l Listener) {
				l.GameMessageReceived(gm.ClientID, gm.ElapsedSeconds, gm.Data)
			})
		}
	case *protocol.Tick:
		elapsed := m.ElapsedSeconds
		c.events = append(c.events, func(l Listener) { l.Ticked(elapsed) })
	}
	c.mu.Unlock()

	if _, ok := msg.(protocol.Response); ok {
		if !c.responses.Receive(msg) {
			c.log.Warnf("dropping unexpected %v", msg.ServerKind())
		}
	}
}

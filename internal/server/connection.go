package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/greenfelt/holdem/internal/game"
	"github.com/greenfelt/holdem/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one WebSocket client. Reads and writes run on their own
// pumps; outbound messages queue on the send channel.
type Connection struct {
	conn     *websocket.Conn
	send     chan *Message
	registry *Registry
	store    store.Store
	logger   *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu     sync.RWMutex
	player store.Player
	authed bool
}

// NewConnection wraps an upgraded WebSocket.
func NewConnection(conn *websocket.Conn, registry *Registry, st store.Store, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		send:     make(chan *Message, 256),
		registry: registry,
		store:    st,
		logger:   logger.WithPrefix("conn"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SendMessage queues a message for the client.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection", "player", c.Player().Username)
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Player returns the authenticated player, zero before auth.
func (c *Connection) Player() store.Player {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

func (c *Connection) authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authed
}

func (c *Connection) setPlayer(p store.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = p
	c.authed = true
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "player", c.Player().Username)

	if msg.Type == MessageTypeAuth {
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse auth data")
			return
		}
		c.handleAuth(data)
		return
	}

	if !c.authenticated() {
		c.sendError("not_authenticated", "must authenticate first")
		return
	}

	switch msg.Type {
	case MessageTypeListRooms:
		c.handleListRooms()

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeLeaveRoom:
		c.handleLeaveRoom()

	case MessageTypeReady:
		c.handleReady(true)

	case MessageTypeUnready:
		c.handleReady(false)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse action data")
			return
		}
		c.handleAction(data)

	default:
		c.sendError("unknown_message_type", "unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}

func (c *Connection) handleAuth(data AuthData) {
	ctx, cancel := context.WithTimeout(c.ctx, storeTimeout)
	defer cancel()
	player, err := c.store.ResolveSession(ctx, data.Token)
	if err != nil {
		c.logger.Info("auth rejected", "error", err)
		response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{Success: false, Error: "invalid session"})
		_ = c.SendMessage(response)
		return
	}
	c.setPlayer(player)

	// A second login for the same account displaces the old socket.
	if old := c.registry.Bind(player.ID, c); old != nil {
		old.sendError("session_replaced", "account connected elsewhere")
		_ = old.Close()
	}
	if actor, ok := c.registry.RoomOf(player.ID); ok {
		if err := actor.Reconnect(player.ID); err != nil {
			c.logger.Warn("reconnect to room failed", "player", player.Username, "error", err)
		}
	}
	c.logger.Info("authenticated", "player", player.Username)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		PlayerID: player.ID.String(),
		Username: player.Username,
		Balance:  player.Balance,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleListRooms() {
	ctx, cancel := context.WithTimeout(c.ctx, storeTimeout)
	defer cancel()
	rooms, err := c.store.ListRooms(ctx)
	if err != nil {
		c.sendError("list_failed", "could not list rooms")
		return
	}
	data := RoomListData{Rooms: make([]RoomInfoData, 0, len(rooms))}
	for _, ri := range rooms {
		data.Rooms = append(data.Rooms, RoomInfoData{
			ID:          ri.ID.String(),
			Name:        ri.Name,
			SmallBlind:  ri.SmallBlind,
			BigBlind:    ri.BigBlind,
			BuyInMin:    ri.BuyInMin,
			BuyInMax:    ri.BuyInMax,
			MaxPlayers:  ri.MaxSeats,
			PlayerCount: ri.PlayerCount,
		})
	}
	response, _ := NewMessage(MessageTypeRoomList, data)
	_ = c.SendMessage(response)
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	roomID, err := uuid.Parse(data.RoomID)
	if err != nil {
		c.sendError("invalid_message", "malformed room id")
		return
	}
	actor, ok := c.registry.Room(roomID)
	if !ok {
		c.sendError("room_not_found", "no such room")
		return
	}
	player := c.Player()
	if _, ok := c.registry.RoomOf(player.ID); ok {
		c.sendError("already_in_room", "leave your current room first")
		return
	}
	if err := c.registry.SetRoom(player.ID, roomID); err != nil {
		c.sendError("already_in_room", "leave your current room first")
		return
	}
	if err := actor.Join(player, data.BuyIn); err != nil {
		c.registry.ClearRoom(player.ID)
		c.sendError("join_failed", err.Error())
		return
	}
	response, _ := NewMessage(MessageTypeRoomJoined, RoomJoinedData{RoomID: roomID.String()})
	_ = c.SendMessage(response)
}

func (c *Connection) handleLeaveRoom() {
	player := c.Player()
	actor, ok := c.registry.RoomOf(player.ID)
	if !ok {
		c.sendError("not_in_room", "not in a room")
		return
	}
	if err := actor.Leave(player.ID); err != nil {
		c.sendError("leave_failed", err.Error())
	}
	// The room confirms with a room_left message once the seat is released,
	// which may wait for the end of the current hand.
}

func (c *Connection) handleReady(ready bool) {
	player := c.Player()
	actor, ok := c.registry.RoomOf(player.ID)
	if !ok {
		c.sendError("not_in_room", "not in a room")
		return
	}
	var err error
	if ready {
		err = actor.Ready(player.ID)
	} else {
		err = actor.Unready(player.ID)
	}
	if err != nil {
		c.sendError("ready_failed", err.Error())
	}
}

func (c *Connection) handleAction(data ActionData) {
	player := c.Player()
	actor, ok := c.registry.RoomOf(player.ID)
	if !ok {
		c.sendError("not_in_room", "not in a room")
		return
	}
	action, err := game.ParseAction(data.Action)
	if err != nil {
		c.sendError("invalid_action", err.Error())
		return
	}
	result := ActionResultData{Accepted: true}
	if err := actor.Action(player.ID, action, data.Amount); err != nil {
		result = ActionResultData{Accepted: false, Reason: err.Error()}
	}
	response, _ := NewMessage(MessageTypeActionResult, result)
	_ = c.SendMessage(response)
}

// teardown runs when the socket dies: the player's room is told about the
// disconnect, and the identity binding is released if this socket still owns
// it.
func (c *Connection) teardown() {
	if !c.authenticated() {
		return
	}
	player := c.Player()
	if !c.registry.Unbind(player.ID, c) {
		// A newer socket owns the identity; its room state is not ours to
		// touch.
		return
	}
	if actor, ok := c.registry.RoomOf(player.ID); ok {
		if err := actor.Disconnect(player.ID); err != nil {
			c.logger.Warn("disconnect cleanup failed", "player", player.Username, "error", err)
		}
	}
}

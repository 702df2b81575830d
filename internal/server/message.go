package server

import (
	"encoding/json"
	"time"

	"github.com/greenfelt/holdem/poker"
)

// MessageType identifies a WebSocket message.
type MessageType string

// Client to server.
const (
	MessageTypeAuth      MessageType = "auth"
	MessageTypeListRooms MessageType = "list_rooms"
	MessageTypeJoinRoom  MessageType = "join_room"
	MessageTypeLeaveRoom MessageType = "leave_room"
	MessageTypeReady     MessageType = "ready"
	MessageTypeUnready   MessageType = "unready"
	MessageTypeAction    MessageType = "action"
)

// Server to client.
const (
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeRoomList     MessageType = "room_list"
	MessageTypeRoomJoined   MessageType = "room_joined"
	MessageTypeRoomLeft     MessageType = "room_left"
	MessageTypeRoomState    MessageType = "room_state"
	MessageTypeActionResult MessageType = "action_result"
	MessageTypeHandResult   MessageType = "hand_result"
	MessageTypeError        MessageType = "error"
)

func (t MessageType) String() string { return string(t) }

// Message is the WebSocket envelope. Payloads are type-specific JSON.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client -> Server payloads.

type AuthData struct {
	Token string `json:"token"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
	BuyIn  int    `json:"buyIn"`
}

type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// Server -> Client payloads.

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId,omitempty"`
	Username string `json:"username,omitempty"`
	Balance  int64  `json:"balance,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomInfoData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SmallBlind  int    `json:"smallBlind"`
	BigBlind    int    `json:"bigBlind"`
	BuyInMin    int    `json:"buyInMin"`
	BuyInMax    int    `json:"buyInMax"`
	MaxPlayers  int    `json:"maxPlayers"`
	PlayerCount int    `json:"playerCount"`
}

type RoomListData struct {
	Rooms []RoomInfoData `json:"rooms"`
}

type RoomJoinedData struct {
	RoomID string `json:"roomId"`
}

type RoomLeftData struct {
	RoomID string `json:"roomId"`
	Refund int    `json:"refund"`
}

type ActionResultData struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// SeatView is one seat as a given recipient sees it. HoleCards carries only
// the recipient's own cards until showdown reveals the contesting hands.
type SeatView struct {
	PlayerID    string       `json:"playerId"`
	Username    string       `json:"username"`
	Stack       int          `json:"stack"`
	Status      string       `json:"status"`
	Bet         int          `json:"bet"`
	TotalBet    int          `json:"totalBet"`
	HoleCards   []poker.Card `json:"holeCards,omitempty"`
	HandLabel   string       `json:"handLabel,omitempty"`
	LastAction  string       `json:"lastAction,omitempty"`
	IsConnected bool         `json:"isConnected"`
	IsDealer    bool         `json:"isDealer"`
	IsTurn      bool         `json:"isTurn"`
}

// RoomStateData is the full table view pushed after every state change.
type RoomStateData struct {
	RoomID     string       `json:"roomId"`
	Stage      string       `json:"stage"`
	HandID     string       `json:"handId,omitempty"`
	Community  []poker.Card `json:"community"`
	Pot        int          `json:"pot"`
	CurrentBet int          `json:"currentBet"`
	MinRaise   int          `json:"minRaise"`
	Seats      []SeatView   `json:"seats"`
	SmallBlind int          `json:"smallBlind"`
	BigBlind   int          `json:"bigBlind"`
}

type WinnerData struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	Label    string `json:"label,omitempty"`
}

type HandResultData struct {
	RoomID  string       `json:"roomId"`
	HandID  string       `json:"handId"`
	Winners []WinnerData `json:"winners"`
	// NextHandInMs tells clients how long the table pauses before the next
	// deal.
	NextHandInMs int64 `json:"nextHandInMs"`
}

// Package store persists identity, balances and room listings. The game
// engine never touches it directly; room actors call it when players join,
// leave, or finish a hand.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound     = errors.New("store: session not found or expired")
	ErrPlayerNotFound      = errors.New("store: player not found")
	ErrInsufficientBalance = errors.New("store: insufficient balance")
)

// Player is a registered account.
type Player struct {
	ID       uuid.UUID
	Username string
	Balance  int64
}

// RoomInfo is the lobby listing row for one room.
type RoomInfo struct {
	ID          uuid.UUID
	Name        string
	SmallBlind  int
	BigBlind    int
	BuyInMin    int
	BuyInMax    int
	MaxSeats    int
	PlayerCount int
}

// Store is the durable backend behind the game server.
//
// ApplySettlement must be idempotent on (handID, playerID): room actors
// retry failed writes and a replay must not double-count.
type Store interface {
	// ResolveSession maps a bearer token to its player.
	ResolveSession(ctx context.Context, token string) (Player, error)

	// DebitBuyIn atomically withdraws a buy-in and records the player's
	// current room. Returns ErrInsufficientBalance without side effects if
	// the balance cannot cover it.
	DebitBuyIn(ctx context.Context, playerID, roomID uuid.UUID, amount int64) error

	// CreditRefund returns a stack to the player's balance and clears
	// their current room.
	CreditRefund(ctx context.Context, playerID uuid.UUID, amount int64) error

	// ApplySettlement records one player's net result for a hand.
	ApplySettlement(ctx context.Context, handID, playerID uuid.UUID, delta int64) error

	// ListRooms returns the lobby listing.
	ListRooms(ctx context.Context) ([]RoomInfo, error)

	// SeedRooms inserts the default rooms when the listing is empty.
	SeedRooms(ctx context.Context, rooms []RoomInfo) error

	// UpdatePlayerCount refreshes a room's occupancy in the listing.
	UpdatePlayerCount(ctx context.Context, roomID uuid.UUID, count int) error

	Close() error
}

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used when no database is configured and in
// tests. Any bearer token resolves to a fresh player with the configured
// starting balance, so local clients can connect without registering.
type Memory struct {
	mu          sync.Mutex
	players     map[uuid.UUID]*Player
	sessions    map[string]uuid.UUID
	rooms       map[uuid.UUID]RoomInfo
	settlements map[settlementKey]int64

	// StartingBalance is granted to players minted on first sight of an
	// unknown token. Zero disables minting.
	StartingBalance int64
}

type settlementKey struct {
	hand   uuid.UUID
	player uuid.UUID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		players:     map[uuid.UUID]*Player{},
		sessions:    map[string]uuid.UUID{},
		rooms:       map[uuid.UUID]RoomInfo{},
		settlements: map[settlementKey]int64{},
	}
}

// AddPlayer registers a player and a session token for it. Test helper.
func (m *Memory) AddPlayer(p Player, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.players[p.ID] = &cp
	m.sessions[token] = p.ID
}

// Settlement reports the recorded delta for a hand and player. Test helper.
func (m *Memory) Settlement(handID, playerID uuid.UUID) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta, ok := m.settlements[settlementKey{hand: handID, player: playerID}]
	return delta, ok
}

// Balance returns a player's current balance. Test helper.
func (m *Memory) Balance(playerID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[playerID]; ok {
		return p.Balance
	}
	return 0
}

func (m *Memory) ResolveSession(_ context.Context, token string) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.sessions[token]; ok {
		return *m.players[id], nil
	}
	if m.StartingBalance <= 0 {
		return Player{}, ErrSessionNotFound
	}
	p := &Player{ID: uuid.New(), Username: token, Balance: m.StartingBalance}
	m.players[p.ID] = p
	m.sessions[token] = p.ID
	return *p, nil
}

func (m *Memory) DebitBuyIn(_ context.Context, playerID, _ uuid.UUID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if p.Balance < amount {
		return ErrInsufficientBalance
	}
	p.Balance -= amount
	return nil
}

func (m *Memory) CreditRefund(_ context.Context, playerID uuid.UUID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Balance += amount
	return nil
}

func (m *Memory) ApplySettlement(_ context.Context, handID, playerID uuid.UUID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := settlementKey{hand: handID, player: playerID}
	if _, done := m.settlements[key]; done {
		return nil
	}
	m.settlements[key] = delta
	return nil
}

func (m *Memory) ListRooms(_ context.Context) ([]RoomInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for _, ri := range m.rooms {
		out = append(out, ri)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SeedRooms(_ context.Context, rooms []RoomInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rooms) > 0 {
		return nil
	}
	for _, ri := range rooms {
		m.rooms[ri.ID] = ri
	}
	return nil
}

func (m *Memory) UpdatePlayerCount(_ context.Context, roomID uuid.UUID, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ri, ok := m.rooms[roomID]; ok {
		ri.PlayerCount = count
		m.rooms[roomID] = ri
	}
	return nil
}

func (m *Memory) Close() error { return nil }

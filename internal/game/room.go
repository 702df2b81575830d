// Package game implements the per-room Texas Hold'Em state machine: seating,
// blinds, betting rounds, side pots and showdown resolution. The package does
// no I/O; every mutation returns the effects the caller must dispatch, and a
// single writer (the room actor) serialises all calls.
package game

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/google/uuid"

	"github.com/greenfelt/holdem/poker"
)

// Stage represents where the room is in a hand.
type Stage int

const (
	NotEnoughPlayers Stage = iota
	PreFlop
	Flop
	Turn
	River
	Showdown
)

// String returns the wire representation of the stage.
func (s Stage) String() string {
	return [...]string{"NOT_ENOUGH_PLAYERS", "PRE_FLOP", "FLOP", "TURN", "RIVER", "SHOWDOWN"}[s]
}

// Status represents a seat's state within the room.
type Status int

const (
	StatusWaiting Status = iota
	StatusReady
	StatusInHand
	StatusFolded
	StatusAllIn
	StatusLeft
)

// String returns the wire representation of the status.
func (s Status) String() string {
	return [...]string{"WAITING", "READY", "IN_HAND", "FOLDED", "ALL_IN", "LEFT"}[s]
}

// Game-rule rejections. These surface to the client as an action_result with
// accepted=false; they never mutate room state.
var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNoBettingRound = errors.New("no betting round in progress")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadySeated  = errors.New("player already seated in this room")
	ErrNotSeated      = errors.New("player is not in this room")
	ErrBuyInRange     = errors.New("buy-in outside room limits")
)

// Config holds the per-room table parameters.
type Config struct {
	SmallBlind int
	BigBlind   int
	BuyInMin   int
	BuyInMax   int
	MaxSeats   int
}

// DefaultConfig returns the stakes used when no table configuration is
// provided: 1/2 blinds, 50-200 big blind buy-in, six-handed.
func DefaultConfig() Config {
	return Config{
		SmallBlind: 1,
		BigBlind:   2,
		BuyInMin:   100,
		BuyInMax:   400,
		MaxSeats:   6,
	}
}

// Seat is a player's transient state within one room.
type Seat struct {
	PlayerID   uuid.UUID
	Name       string
	Stack      int
	HoleCards  []poker.Card
	Status     Status
	Bet        int // chips committed this betting round
	HandBet    int // chips committed this hand across all rounds
	Acted      bool
	Connected  bool
	LastAction string

	// stack at the start of the current hand, before blinds; settlement
	// deltas are measured against it.
	handStack int
	dealtIn   bool
}

// InHand reports whether the seat can still act this betting round.
func (s *Seat) InHand() bool {
	return s.Status == StatusInHand
}

// Contesting reports whether the seat is still eligible for the pot.
func (s *Seat) Contesting() bool {
	return s.Status == StatusInHand || s.Status == StatusAllIn
}

// Room is the authoritative state of one table. All access is serialised by
// the owning room actor.
type Room struct {
	ID         uuid.UUID
	Config     Config
	Seats      []*Seat
	JoinQueue  []*Seat
	Deck       *poker.Deck
	Community  []poker.Card
	Stage      Stage
	Pot        int // collected from completed betting rounds
	CurrentBet int
	MinRaise   int
	Button     int
	Turn       int // seat index of the player to act, -1 when none
	TurnNonce  uint64
	HandID     uuid.UUID

	// escrow tracks every chip bought into the room and not yet refunded;
	// the conservation invariant is checked against it after each event.
	escrow  int
	newDeck func() *poker.Deck
}

// NewRoom creates an empty room. The RNG seeds a fresh deck every hand;
// tests inject a deterministic generator.
func NewRoom(id uuid.UUID, cfg Config, rng *rand.Rand) *Room {
	return &Room{
		ID:      id,
		Config:  cfg,
		Stage:   NotEnoughPlayers,
		Turn:    -1,
		Button:  -1,
		newDeck: func() *poker.Deck { return poker.NewDeck(rng) },
	}
}

// seatByPlayer returns the seat index for a player, or -1.
func (r *Room) seatByPlayer(playerID uuid.UUID) int {
	for i, s := range r.Seats {
		if s.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// SeatOf returns the seat for a player, or nil.
func (r *Room) SeatOf(playerID uuid.UUID) *Seat {
	if i := r.seatByPlayer(playerID); i >= 0 {
		return r.Seats[i]
	}
	for _, s := range r.JoinQueue {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// PlayerCount counts seated and queued players who have not left.
func (r *Room) PlayerCount() int {
	n := len(r.JoinQueue)
	for _, s := range r.Seats {
		if s.Status != StatusLeft {
			n++
		}
	}
	return n
}

// HandInProgress reports whether a hand is being played.
func (r *Room) HandInProgress() bool {
	switch r.Stage {
	case PreFlop, Flop, Turn, River:
		return true
	}
	return false
}

// Join seats a player, or queues them for the next hand when one is in
// progress. The caller has already debited the buy-in from the durable
// balance.
func (r *Room) Join(playerID uuid.UUID, name string, buyIn int) ([]Effect, error) {
	if r.SeatOf(playerID) != nil {
		return nil, ErrAlreadySeated
	}
	if buyIn < r.Config.BuyInMin || buyIn > r.Config.BuyInMax {
		return nil, fmt.Errorf("%w: %d-%d", ErrBuyInRange, r.Config.BuyInMin, r.Config.BuyInMax)
	}
	if r.PlayerCount() >= r.Config.MaxSeats {
		return nil, ErrRoomFull
	}
	seat := &Seat{
		PlayerID:  playerID,
		Name:      name,
		Stack:     buyIn,
		Status:    StatusWaiting,
		Connected: true,
	}
	r.escrow += buyIn
	if r.HandInProgress() || r.Stage == Showdown {
		r.JoinQueue = append(r.JoinQueue, seat)
	} else {
		r.Seats = append(r.Seats, seat)
	}
	return []Effect{EffectBroadcast{}}, nil
}

// Leave removes a player. A seat dealt into the current hand folds
// immediately but keeps its chips in play until the hand ends, when removal
// refunds the remaining stack; otherwise removal is immediate.
func (r *Room) Leave(playerID uuid.UUID) ([]Effect, error) {
	for i, s := range r.JoinQueue {
		if s.PlayerID == playerID {
			r.JoinQueue = append(r.JoinQueue[:i], r.JoinQueue[i+1:]...)
			r.escrow -= s.Stack
			return []Effect{EffectSeatRemoved{PlayerID: playerID, Refund: s.Stack}, EffectBroadcast{}}, nil
		}
	}
	idx := r.seatByPlayer(playerID)
	if idx < 0 {
		return nil, ErrNotSeated
	}
	seat := r.Seats[idx]
	if r.HandInProgress() && seat.dealtIn {
		effects := r.forceFold(idx)
		seat.Status = StatusLeft
		return append(effects, EffectBroadcast{}), nil
	}
	return r.maybeStart(r.removeSeat(idx)), nil
}

// Disconnect marks a player's connection as lost. A seat dealt into the
// current hand stays until the hand ends and the turn timer plays for it;
// queued and idle seats are removed with a refund.
func (r *Room) Disconnect(playerID uuid.UUID) ([]Effect, error) {
	for i, s := range r.JoinQueue {
		if s.PlayerID == playerID {
			r.JoinQueue = append(r.JoinQueue[:i], r.JoinQueue[i+1:]...)
			r.escrow -= s.Stack
			return []Effect{EffectSeatRemoved{PlayerID: playerID, Refund: s.Stack}, EffectBroadcast{}}, nil
		}
	}
	idx := r.seatByPlayer(playerID)
	if idx < 0 {
		return nil, ErrNotSeated
	}
	seat := r.Seats[idx]
	seat.Connected = false
	if r.HandInProgress() && seat.dealtIn {
		return []Effect{EffectBroadcast{}}, nil
	}
	return r.maybeStart(r.removeSeat(idx)), nil
}

// Reconnect marks a previously disconnected seat as connected again.
func (r *Room) Reconnect(playerID uuid.UUID) ([]Effect, error) {
	seat := r.SeatOf(playerID)
	if seat == nil {
		return nil, ErrNotSeated
	}
	seat.Connected = true
	return []Effect{EffectBroadcast{}}, nil
}

// Ready marks a waiting player as ready. The hand is dealt once every seated
// player is ready, two at minimum, so nobody gets skipped by readying a beat
// later than the rest.
func (r *Room) Ready(playerID uuid.UUID) ([]Effect, error) {
	seat := r.SeatOf(playerID)
	if seat == nil {
		return nil, ErrNotSeated
	}
	if seat.Status == StatusWaiting {
		seat.Status = StatusReady
	}
	if r.Stage == NotEnoughPlayers && r.canStart() {
		return r.StartHand(), nil
	}
	return []Effect{EffectBroadcast{}}, nil
}

// Unready reverts a ready player to waiting. Only possible between hands.
func (r *Room) Unready(playerID uuid.UUID) ([]Effect, error) {
	seat := r.SeatOf(playerID)
	if seat == nil {
		return nil, ErrNotSeated
	}
	if seat.Status == StatusReady {
		seat.Status = StatusWaiting
	}
	return []Effect{EffectBroadcast{}}, nil
}

// canStart reports whether the next hand may be dealt: at least two funded
// seats are ready and nobody seated is still deciding.
func (r *Room) canStart() bool {
	ready := 0
	for _, s := range r.Seats {
		if s.Stack == 0 {
			continue
		}
		switch s.Status {
		case StatusWaiting:
			return false
		case StatusReady:
			ready++
		}
	}
	return ready >= 2
}

// maybeStart deals a hand when a between-hands seating change unblocked it.
func (r *Room) maybeStart(effects []Effect) []Effect {
	if r.Stage == NotEnoughPlayers && r.canStart() {
		return append(effects, r.StartHand()...)
	}
	return effects
}

// removeSeat drops a non-contesting seat, refunding its stack. Cursor
// indexes shift down past the removed slot so an in-progress hand keeps its
// action order.
func (r *Room) removeSeat(idx int) []Effect {
	seat := r.Seats[idx]
	r.Seats = append(r.Seats[:idx], r.Seats[idx+1:]...)
	r.escrow -= seat.Stack
	if idx <= r.Button {
		r.Button--
	}
	if idx < r.Turn {
		r.Turn--
	}
	if r.Button >= len(r.Seats) {
		r.Button = len(r.Seats) - 1
	}
	return []Effect{EffectSeatRemoved{PlayerID: seat.PlayerID, Refund: seat.Stack}, EffectBroadcast{}}
}

// CheckInvariants verifies chip conservation and seat integrity. A failure is
// fatal to the room: the actor quarantines it and refunds stacks.
func (r *Room) CheckInvariants() error {
	total := r.Pot
	for _, s := range r.Seats {
		total += s.Stack + s.Bet
	}
	for _, s := range r.JoinQueue {
		total += s.Stack
	}
	if total != r.escrow {
		return fmt.Errorf("chip conservation broken: stacks+bets+pot=%d escrow=%d", total, r.escrow)
	}
	if r.Turn >= 0 {
		if r.Turn >= len(r.Seats) {
			return fmt.Errorf("turn cursor %d out of range", r.Turn)
		}
		if !r.Seats[r.Turn].InHand() {
			return fmt.Errorf("turn cursor on seat %d with status %s", r.Turn, r.Seats[r.Turn].Status)
		}
	}
	seen := map[poker.Card]bool{}
	for _, c := range r.Community {
		if seen[c] {
			return fmt.Errorf("duplicate community card %s", c)
		}
		seen[c] = true
	}
	for _, s := range r.Seats {
		for _, c := range s.HoleCards {
			if seen[c] {
				return fmt.Errorf("duplicate hole card %s", c)
			}
			seen[c] = true
		}
	}
	return nil
}

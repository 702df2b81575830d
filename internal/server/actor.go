package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/greenfelt/holdem/internal/game"
	"github.com/greenfelt/holdem/internal/store"
)

var (
	ErrRoomClosed      = errors.New("room is closed")
	ErrRoomQuarantined = errors.New("room is quarantined")
)

const (
	storeTimeout       = 5 * time.Second
	settlementAttempts = 3
	settlementBackoff  = 100 * time.Millisecond
)

// Hub is the actor's view of the connection registry.
type Hub interface {
	SendToPlayer(playerID uuid.UUID, msg *Message) error
	ClearRoom(playerID uuid.UUID)
}

// Actor owns one room. All room mutations run on its goroutine, so the game
// engine needs no locks; callers block until their command is applied.
type Actor struct {
	room    *game.Room
	clock   quartz.Clock
	store   store.Store
	hub     Hub
	logger  *log.Logger
	metrics *Metrics

	turnTimeout   time.Duration
	nextHandDelay time.Duration

	mailbox chan func()
	ctx     context.Context
	cancel  context.CancelFunc

	turnTimer   *quartz.Timer
	armedNonce  uint64
	quarantined bool
}

// NewActor wraps a room and starts its goroutine.
func NewActor(room *game.Room, st store.Store, hub Hub, clock quartz.Clock, logger *log.Logger, metrics *Metrics, turnTimeout, nextHandDelay time.Duration) *Actor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		room:          room,
		clock:         clock,
		store:         st,
		hub:           hub,
		logger:        logger.WithPrefix("room").With("room", room.ID.String()),
		metrics:       metrics,
		turnTimeout:   turnTimeout,
		nextHandDelay: nextHandDelay,
		mailbox:       make(chan func(), 64),
		ctx:           ctx,
		cancel:        cancel,
	}
	go a.run()
	return a
}

// RoomID returns the owned room's identifier.
func (a *Actor) RoomID() uuid.UUID { return a.room.ID }

func (a *Actor) run() {
	for {
		select {
		case fn := <-a.mailbox:
			fn()
		case <-a.ctx.Done():
			return
		}
	}
}

// enqueue submits work to the actor goroutine without waiting for it.
func (a *Actor) enqueue(fn func()) {
	select {
	case a.mailbox <- fn:
	case <-a.ctx.Done():
	}
}

// call runs a room mutation on the actor goroutine and waits for the result.
func (a *Actor) call(fn func() ([]game.Effect, error)) error {
	reply := make(chan error, 1)
	a.enqueue(func() {
		defer func() {
			if r := recover(); r != nil {
				a.quarantine(fmt.Errorf("room panicked: %v", r))
				select {
				case reply <- ErrRoomQuarantined:
				default:
				}
			}
		}()
		if a.quarantined {
			reply <- ErrRoomQuarantined
			return
		}
		effects, err := fn()
		if err != nil {
			reply <- err
			return
		}
		a.dispatch(effects)
		a.afterMutation()
		reply <- nil
	})
	select {
	case err := <-reply:
		return err
	case <-a.ctx.Done():
		return ErrRoomClosed
	}
}

// Join debits the buy-in and seats the player. The debit is reversed if the
// room rejects the join.
func (a *Actor) Join(player store.Player, buyIn int) error {
	return a.call(func() ([]game.Effect, error) {
		ctx, cancel := context.WithTimeout(a.ctx, storeTimeout)
		defer cancel()
		if err := a.store.DebitBuyIn(ctx, player.ID, a.room.ID, int64(buyIn)); err != nil {
			return nil, err
		}
		effects, err := a.room.Join(player.ID, player.Username, buyIn)
		if err != nil {
			if cerr := a.store.CreditRefund(ctx, player.ID, int64(buyIn)); cerr != nil {
				a.logger.Error("failed to reverse buy-in after rejected join", "player", player.ID, "error", cerr)
			}
			return nil, err
		}
		a.metrics.PlayersSeated.Inc()
		a.updatePlayerCount()
		return effects, nil
	})
}

// Leave removes the player, folding them first if a hand is running.
func (a *Actor) Leave(playerID uuid.UUID) error {
	return a.call(func() ([]game.Effect, error) { return a.room.Leave(playerID) })
}

// Ready marks the player ready for the next hand.
func (a *Actor) Ready(playerID uuid.UUID) error {
	return a.call(func() ([]game.Effect, error) { return a.room.Ready(playerID) })
}

// Unready reverts the player to waiting.
func (a *Actor) Unready(playerID uuid.UUID) error {
	return a.call(func() ([]game.Effect, error) { return a.room.Unready(playerID) })
}

// Action applies a betting decision.
func (a *Actor) Action(playerID uuid.UUID, action game.Action, amount int) error {
	err := a.call(func() ([]game.Effect, error) { return a.room.TakeAction(playerID, action, amount) })
	if err != nil {
		a.metrics.ActionsRejected.Inc()
		return err
	}
	a.metrics.ActionsTotal.WithLabelValues(action.String()).Inc()
	return nil
}

// Disconnect records a dropped connection for the player.
func (a *Actor) Disconnect(playerID uuid.UUID) error {
	return a.call(func() ([]game.Effect, error) { return a.room.Disconnect(playerID) })
}

// Reconnect records a restored connection for the player.
func (a *Actor) Reconnect(playerID uuid.UUID) error {
	return a.call(func() ([]game.Effect, error) { return a.room.Reconnect(playerID) })
}

// Close refunds every remaining stack and stops the actor. Used on server
// shutdown.
func (a *Actor) Close() {
	done := make(chan struct{})
	a.enqueue(func() {
		defer close(done)
		a.stopTurnTimer()
		for _, s := range append(a.room.Seats, a.room.JoinQueue...) {
			a.refundSeat(s.PlayerID, s.Stack+s.Bet)
		}
		a.room.Seats = nil
		a.room.JoinQueue = nil
	})
	select {
	case <-done:
	case <-time.After(storeTimeout * 2):
		a.logger.Warn("timed out waiting for room drain")
	}
	a.cancel()
}

// dispatch applies the engine's effects: broadcasts, removals with refunds,
// and hand results with their durable settlements.
func (a *Actor) dispatch(effects []game.Effect) {
	for _, effect := range effects {
		switch e := effect.(type) {
		case game.EffectBroadcast:
			a.broadcast(e.Reveal)

		case game.EffectSeatRemoved:
			a.refundSeat(e.PlayerID, e.Refund)
			a.metrics.PlayersSeated.Dec()
			a.updatePlayerCount()
			if msg, err := NewMessage(MessageTypeRoomLeft, RoomLeftData{RoomID: a.room.ID.String(), Refund: e.Refund}); err == nil {
				_ = a.hub.SendToPlayer(e.PlayerID, msg)
			}

		case game.EffectHandResult:
			a.metrics.HandsPlayed.Inc()
			a.sendHandResult(e)
			a.persistSettlements(e.HandID, e.Settlements)
			handID := e.HandID
			a.clock.AfterFunc(a.nextHandDelay, func() {
				a.enqueue(func() {
					if a.quarantined || a.room.HandID != handID {
						return
					}
					a.dispatch(a.room.NextHand())
					a.afterMutation()
				})
			})
		}
	}
}

// afterMutation verifies invariants and re-arms the turn timer when the
// action moved to a new turn.
func (a *Actor) afterMutation() {
	if a.quarantined {
		return
	}
	if err := a.room.CheckInvariants(); err != nil {
		a.quarantine(err)
		return
	}
	if a.room.Turn >= 0 && a.room.TurnNonce != a.armedNonce {
		a.stopTurnTimer()
		a.armedNonce = a.room.TurnNonce
		nonce := a.room.TurnNonce
		a.turnTimer = a.clock.AfterFunc(a.turnTimeout, func() {
			a.enqueue(func() {
				if a.quarantined {
					return
				}
				effects := a.room.TimeoutTurn(nonce)
				if effects == nil {
					return
				}
				a.metrics.TurnTimeouts.Inc()
				a.dispatch(effects)
				a.afterMutation()
			})
		})
	}
}

func (a *Actor) stopTurnTimer() {
	if a.turnTimer != nil {
		a.turnTimer.Stop()
		a.turnTimer = nil
	}
}

// broadcast pushes a per-recipient view of the room to every player in it.
func (a *Actor) broadcast(reveal bool) {
	recipients := make([]uuid.UUID, 0, len(a.room.Seats)+len(a.room.JoinQueue))
	for _, s := range a.room.Seats {
		recipients = append(recipients, s.PlayerID)
	}
	for _, s := range a.room.JoinQueue {
		recipients = append(recipients, s.PlayerID)
	}
	for _, playerID := range recipients {
		view := buildRoomView(a.room, playerID, reveal)
		msg, err := NewMessage(MessageTypeRoomState, view)
		if err != nil {
			a.logger.Error("failed to encode room state", "error", err)
			continue
		}
		_ = a.hub.SendToPlayer(playerID, msg)
	}
}

func (a *Actor) sendHandResult(e game.EffectHandResult) {
	winners := make([]WinnerData, 0, len(e.Winners))
	for _, w := range e.Winners {
		winners = append(winners, WinnerData{PlayerID: w.PlayerID.String(), Amount: w.Amount, Label: w.Label})
	}
	msg, err := NewMessage(MessageTypeHandResult, HandResultData{
		RoomID:       a.room.ID.String(),
		HandID:       e.HandID.String(),
		Winners:      winners,
		NextHandInMs: a.nextHandDelay.Milliseconds(),
	})
	if err != nil {
		a.logger.Error("failed to encode hand result", "error", err)
		return
	}
	for _, s := range a.room.Seats {
		_ = a.hub.SendToPlayer(s.PlayerID, msg)
	}
}

// persistSettlements writes the hand's zero-sum deltas off the actor
// goroutine. Writes are idempotent on (hand, player) so retries are safe.
func (a *Actor) persistSettlements(handID uuid.UUID, settlements []game.Settlement) {
	go func() {
		for _, s := range settlements {
			var err error
			for attempt := 0; attempt < settlementAttempts; attempt++ {
				if attempt > 0 {
					timer := a.clock.NewTimer(settlementBackoff << attempt)
					select {
					case <-timer.C:
					case <-a.ctx.Done():
						timer.Stop()
						return
					}
				}
				ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
				err = a.store.ApplySettlement(ctx, handID, s.PlayerID, int64(s.Delta))
				cancel()
				if err == nil {
					break
				}
			}
			if err != nil {
				a.metrics.SettlementFailures.Inc()
				a.logger.Error("settlement write failed", "hand", handID, "player", s.PlayerID, "delta", s.Delta, "error", err)
			}
		}
	}()
}

func (a *Actor) refundSeat(playerID uuid.UUID, amount int) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := a.store.CreditRefund(ctx, playerID, int64(amount)); err != nil {
		a.logger.Error("refund failed", "player", playerID, "amount", amount, "error", err)
	}
	a.hub.ClearRoom(playerID)
}

func (a *Actor) updatePlayerCount() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := a.store.UpdatePlayerCount(ctx, a.room.ID, a.room.PlayerCount()); err != nil {
		a.logger.Warn("player count update failed", "error", err)
	}
}

// quarantine freezes the room after a broken invariant: stacks and live bets
// are refunded, players are told, and every later command is rejected. The
// pot of the aborted hand is withheld since its ownership is unknown.
func (a *Actor) quarantine(cause error) {
	if a.quarantined {
		return
	}
	a.quarantined = true
	a.metrics.RoomsQuarantined.Inc()
	a.stopTurnTimer()
	a.logger.Error("room quarantined", "error", cause)

	if msg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    "room_quarantined",
		Message: "room closed due to an internal error, stacks refunded",
	}); err == nil {
		for _, s := range a.room.Seats {
			_ = a.hub.SendToPlayer(s.PlayerID, msg)
		}
		for _, s := range a.room.JoinQueue {
			_ = a.hub.SendToPlayer(s.PlayerID, msg)
		}
	}
	for _, s := range append(a.room.Seats, a.room.JoinQueue...) {
		a.refundSeat(s.PlayerID, s.Stack+s.Bet)
		a.metrics.PlayersSeated.Dec()
	}
	a.room.Seats = nil
	a.room.JoinQueue = nil
	a.updatePlayerCount()
}

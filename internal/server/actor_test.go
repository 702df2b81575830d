package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenfelt/holdem/internal/game"
	"github.com/greenfelt/holdem/internal/randutil"
	"github.com/greenfelt/holdem/internal/store"
)

// fakeHub records every message an actor sends, keyed by player.
type fakeHub struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]*Message
	cleared  map[uuid.UUID]int
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		messages: map[uuid.UUID][]*Message{},
		cleared:  map[uuid.UUID]int{},
	}
}

func (h *fakeHub) SendToPlayer(playerID uuid.UUID, msg *Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages[playerID] = append(h.messages[playerID], msg)
	return nil
}

func (h *fakeHub) ClearRoom(playerID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared[playerID]++
}

func (h *fakeHub) lastOfType(playerID uuid.UUID, mt MessageType) *Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.messages[playerID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == mt {
			return msgs[i]
		}
	}
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

type actorFixture struct {
	actor *Actor
	hub   *fakeHub
	store *store.Memory
	clock *quartz.Mock
	a, b  store.Player
}

func newActorFixture(t *testing.T) *actorFixture {
	t.Helper()
	mem := store.NewMemory()
	a := store.Player{ID: uuid.New(), Username: "alice", Balance: 1000}
	b := store.Player{ID: uuid.New(), Username: "bob", Balance: 1000}
	mem.AddPlayer(a, "ta")
	mem.AddPlayer(b, "tb")

	room := game.NewRoom(uuid.New(), game.Config{
		SmallBlind: 1, BigBlind: 2, BuyInMin: 50, BuyInMax: 500, MaxSeats: 6,
	}, randutil.New(7))
	hub := newFakeHub()
	clock := quartz.NewMock(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	actor := NewActor(room, mem, hub, clock, testLogger(), metrics, 30*time.Second, 4*time.Second)
	t.Cleanup(actor.Close)
	return &actorFixture{actor: actor, hub: hub, store: mem, clock: clock, a: a, b: b}
}

// sync waits until every previously enqueued actor command has run.
func (f *actorFixture) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.actor.call(func() ([]game.Effect, error) { return nil, nil }))
}

func TestActorJoinDebitsBalance(t *testing.T) {
	f := newActorFixture(t)

	require.NoError(t, f.actor.Join(f.a, 200))
	assert.Equal(t, int64(800), f.store.Balance(f.a.ID))

	// Broadcast went out to the seated player.
	assert.NotNil(t, f.hub.lastOfType(f.a.ID, MessageTypeRoomState))
}

func TestActorJoinInsufficientBalanceRejected(t *testing.T) {
	f := newActorFixture(t)
	poor := store.Player{ID: uuid.New(), Username: "carol", Balance: 10}
	f.store.AddPlayer(poor, "tc")

	err := f.actor.Join(poor, 200)
	assert.ErrorIs(t, err, store.ErrInsufficientBalance)
	assert.Equal(t, int64(10), f.store.Balance(poor.ID))
}

func TestActorJoinRejectionReversesDebit(t *testing.T) {
	f := newActorFixture(t)

	// Buy-in outside the table limits fails after the debit succeeded.
	err := f.actor.Join(f.a, 600)
	assert.ErrorIs(t, err, game.ErrBuyInRange)
	assert.Equal(t, int64(1000), f.store.Balance(f.a.ID))
}

func TestActorLeaveRefundsStack(t *testing.T) {
	f := newActorFixture(t)

	require.NoError(t, f.actor.Join(f.a, 200))
	require.NoError(t, f.actor.Leave(f.a.ID))
	f.sync(t)

	assert.Equal(t, int64(1000), f.store.Balance(f.a.ID))
	f.hub.mu.Lock()
	assert.Equal(t, 1, f.hub.cleared[f.a.ID])
	f.hub.mu.Unlock()
	assert.NotNil(t, f.hub.lastOfType(f.a.ID, MessageTypeRoomLeft))
}

func startHand(t *testing.T, f *actorFixture) {
	t.Helper()
	require.NoError(t, f.actor.Join(f.a, 200))
	require.NoError(t, f.actor.Join(f.b, 200))
	require.NoError(t, f.actor.Ready(f.a.ID))
	require.NoError(t, f.actor.Ready(f.b.ID))
}

func TestActorBroadcastsMaskHoleCards(t *testing.T) {
	f := newActorFixture(t)
	startHand(t, f)

	msg := f.hub.lastOfType(f.a.ID, MessageTypeRoomState)
	require.NotNil(t, msg)
	var view RoomStateData
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, "PRE_FLOP", view.Stage)
	require.Len(t, view.Seats, 2)
	for _, seat := range view.Seats {
		if seat.PlayerID == f.a.ID.String() {
			assert.Len(t, seat.HoleCards, 2)
		} else {
			assert.Empty(t, seat.HoleCards, "opponent cards must be hidden")
		}
	}
}

func TestActorTurnTimerActsForPlayer(t *testing.T) {
	f := newActorFixture(t)
	startHand(t, f)

	// Nobody acts; the 30s deadline passes and the engine folds or checks
	// for the player on turn, here the button facing the big blind.
	f.clock.Advance(30 * time.Second).MustWait(context.Background())
	f.sync(t)

	msg := f.hub.lastOfType(f.a.ID, MessageTypeHandResult)
	require.NotNil(t, msg, "timeout should have ended the heads-up hand")
}

func TestActorStaleTimerIgnoredAfterAction(t *testing.T) {
	f := newActorFixture(t)
	startHand(t, f)

	// The button acts before the deadline; the old timer must not fire a
	// second action against the next turn's clock.
	buttonID := f.a.ID
	if err := f.actor.Action(buttonID, game.ActionCall, 0); err != nil {
		buttonID = f.b.ID
		require.NoError(t, f.actor.Action(buttonID, game.ActionCall, 0))
	}
	f.clock.Advance(29 * time.Second).MustWait(context.Background())
	f.sync(t)

	// The hand is still on: no result yet.
	assert.Nil(t, f.hub.lastOfType(f.a.ID, MessageTypeHandResult))
}

func TestActorNextHandStartsAfterDelay(t *testing.T) {
	f := newActorFixture(t)
	startHand(t, f)

	// Fold the button to end the hand immediately.
	if err := f.actor.Action(f.a.ID, game.ActionFold, 0); err != nil {
		require.NoError(t, f.actor.Action(f.b.ID, game.ActionFold, 0))
	}
	require.NotNil(t, f.hub.lastOfType(f.a.ID, MessageTypeHandResult))

	f.clock.Advance(4 * time.Second).MustWait(context.Background())
	f.sync(t)

	msg := f.hub.lastOfType(f.a.ID, MessageTypeRoomState)
	require.NotNil(t, msg)
	var view RoomStateData
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, "PRE_FLOP", view.Stage, "a fresh hand should have been dealt")
}

func TestActorPersistsZeroSumSettlements(t *testing.T) {
	f := newActorFixture(t)
	startHand(t, f)

	if err := f.actor.Action(f.a.ID, game.ActionFold, 0); err != nil {
		require.NoError(t, f.actor.Action(f.b.ID, game.ActionFold, 0))
	}

	msg := f.hub.lastOfType(f.a.ID, MessageTypeHandResult)
	require.NotNil(t, msg)
	var result HandResultData
	require.NoError(t, json.Unmarshal(msg.Data, &result))
	require.Len(t, result.Winners, 1)
	handID, err := uuid.Parse(result.HandID)
	require.NoError(t, err)

	// Settlement writes happen off the actor goroutine; wait for both rows
	// and verify they cancel out.
	require.Eventually(t, func() bool {
		_, okA := f.store.Settlement(handID, f.a.ID)
		_, okB := f.store.Settlement(handID, f.b.ID)
		return okA && okB
	}, time.Second, 10*time.Millisecond)
	deltaA, _ := f.store.Settlement(handID, f.a.ID)
	deltaB, _ := f.store.Settlement(handID, f.b.ID)
	assert.Zero(t, deltaA+deltaB)
	assert.Equal(t, int64(1), maxInt64(deltaA, deltaB))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func TestActorQuarantinesOnBrokenInvariant(t *testing.T) {
	f := newActorFixture(t)
	require.NoError(t, f.actor.Join(f.a, 200))

	// Corrupt the chip ledger behind the engine's back; the next command
	// must freeze the room and refund the stack.
	f.actor.enqueue(func() { f.actor.room.Pot += 13 })
	err := f.actor.Ready(f.a.ID)
	require.NoError(t, err)

	err = f.actor.Ready(f.a.ID)
	assert.ErrorIs(t, err, ErrRoomQuarantined)
	assert.Equal(t, int64(1000), f.store.Balance(f.a.ID))
	assert.NotNil(t, f.hub.lastOfType(f.a.ID, MessageTypeError))
}

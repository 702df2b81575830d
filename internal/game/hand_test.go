package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findHandResult(effects []Effect) (EffectHandResult, bool) {
	for _, e := range effects {
		if hr, ok := e.(EffectHandResult); ok {
			return hr, true
		}
	}
	return EffectHandResult{}, false
}

func findBroadcast(effects []Effect) (EffectBroadcast, bool) {
	for _, e := range effects {
		if b, ok := e.(EffectBroadcast); ok {
			return b, true
		}
	}
	return EffectBroadcast{}, false
}

// Fold-around: the limper collects the blinds uncontested.
func TestFoldAroundAwardsBlinds(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	// Seat 0 is the button and acts first three-handed.
	require.Equal(t, 0, r.Turn)
	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)
	effects, err := r.TakeAction(ids[2], ActionFold, 0)
	require.NoError(t, err)

	assert.Equal(t, 103, r.Seats[0].Stack)
	assert.Equal(t, 99, r.Seats[1].Stack)
	assert.Equal(t, 98, r.Seats[2].Stack)
	assert.Equal(t, Showdown, r.Stage)
	assert.NoError(t, r.CheckInvariants())

	// Win by fold never reveals hole cards.
	b, ok := findBroadcast(effects)
	require.True(t, ok)
	assert.False(t, b.Reveal)

	hr, ok := findHandResult(effects)
	require.True(t, ok)
	require.Len(t, hr.Winners, 1)
	assert.Equal(t, ids[0], hr.Winners[0].PlayerID)
	sum := 0
	for _, s := range hr.Settlements {
		sum += s.Delta
	}
	assert.Zero(t, sum)
}

// Split pot: both players play a straight on the board, blinds wash.
func TestSplitPotWhenBoardPlays(t *testing.T) {
	r := newTestRoom(testConfig(), "2h Kc 3d Qd 2c 5h 6c 7d 2s 8s 3c 9h")
	ids := seatPlayers(t, r, 100, 100)

	// Button completes the small blind, big blind checks its option.
	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionCheck, 0)
	require.NoError(t, err)

	var effects []Effect
	for r.Stage != Showdown {
		effects, err = r.TakeAction(r.Seats[r.Turn].PlayerID, ActionCheck, 0)
		require.NoError(t, err)
	}

	assert.Equal(t, 100, r.Seats[0].Stack)
	assert.Equal(t, 100, r.Seats[1].Stack)
	assert.NoError(t, r.CheckInvariants())

	b, ok := findBroadcast(effects)
	require.True(t, ok)
	assert.True(t, b.Reveal)

	hr, ok := findHandResult(effects)
	require.True(t, ok)
	require.Len(t, hr.Winners, 2)
	for _, w := range hr.Winners {
		assert.Equal(t, 2, w.Amount)
		assert.Equal(t, "Straight", w.Label)
	}
}

// Side pot: the short all-in contests only the main pot.
func TestSidePotWithAllIn(t *testing.T) {
	// Seat 0 (button) has aces, seat 2 kings, seat 1 queens; board misses.
	deck := "Qs Ks As Qd Kd Ad 3c 2h 7d 9c 3d 4s 3h Jh"
	cfg := testConfig()
	r := newTestRoom(cfg, deck)
	ids := seatPlayers(t, r, 30, 100, 100)

	_, err := r.TakeAction(ids[0], ActionAllIn, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[2], ActionCall, 0)
	require.NoError(t, err)
	require.Equal(t, Flop, r.Stage)
	assert.Equal(t, 90, r.Pot)

	// Flop: seat 1 bets 20, seat 2 calls, then everyone checks down.
	require.Equal(t, 1, r.Turn)
	_, err = r.TakeAction(ids[1], ActionRaise, 20)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[2], ActionCall, 0)
	require.NoError(t, err)

	var effects []Effect
	for r.Stage != Showdown {
		effects, err = r.TakeAction(r.Seats[r.Turn].PlayerID, ActionCheck, 0)
		require.NoError(t, err)
	}

	// Aces take the 90 main pot, kings the 40 side pot.
	assert.Equal(t, 90, r.Seats[0].Stack)
	assert.Equal(t, 50, r.Seats[1].Stack)
	assert.Equal(t, 90, r.Seats[2].Stack)
	total := 0
	for _, s := range r.Seats {
		total += s.Stack
	}
	assert.Equal(t, 230, total)
	assert.NoError(t, r.CheckInvariants())

	hr, ok := findHandResult(effects)
	require.True(t, ok)
	require.Len(t, hr.Winners, 2)
	payouts := map[int]int{}
	for _, w := range hr.Winners {
		for i, id := range ids {
			if id == w.PlayerID {
				payouts[i] = w.Amount
			}
		}
	}
	assert.Equal(t, 90, payouts[0])
	assert.Equal(t, 40, payouts[2])
}

// A raise below current_bet + min_raise is rejected without touching state.
func TestRaiseBelowMinimumRejected(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	turnBefore := r.Turn
	nonceBefore := r.TurnNonce
	stackBefore := r.Seats[r.Turn].Stack

	// Blinds 1/2 make the minimum raise total 4.
	_, err := r.TakeAction(ids[r.Turn], ActionRaise, 3)
	assert.ErrorIs(t, err, ErrRaiseTooSmall)
	assert.Equal(t, turnBefore, r.Turn)
	assert.Equal(t, nonceBefore, r.TurnNonce)
	assert.Equal(t, stackBefore, r.Seats[turnBefore].Stack)
	assert.Equal(t, 2, r.CurrentBet)

	_, err = r.TakeAction(ids[r.Turn], ActionRaise, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, r.CurrentBet)
	assert.Equal(t, 2, r.MinRaise)
}

// A raise past the stack is rejected; an exact-stack raise is an all-in.
func TestRaiseBeyondStackRejected(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.TakeAction(ids[0], ActionRaise, 101)
	assert.ErrorIs(t, err, ErrRaiseTooLarge)

	_, err = r.TakeAction(ids[0], ActionRaise, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusAllIn, r.Seats[0].Status)
}

// A short all-in raises the price without reopening action: prior actors may
// call or fold but not raise again.
func TestShortAllInDoesNotReopenAction(t *testing.T) {
	r := newTestRoom(testConfig(), "2h Kc 3d Qd 2c 5h 6c 7d 2s 8s 3c 9h")
	ids := seatPlayers(t, r, 100, 25)

	// Button raises to 20; the 25-stack big blind jams for 25, which is
	// below the full minimum of 38.
	_, err := r.TakeAction(ids[0], ActionRaise, 20)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionAllIn, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, r.CurrentBet)
	require.Equal(t, 0, r.Turn)

	_, err = r.TakeAction(ids[0], ActionRaise, 60)
	assert.ErrorIs(t, err, ErrActionClosed)
	_, err = r.TakeAction(ids[0], ActionAllIn, 0)
	assert.ErrorIs(t, err, ErrActionClosed)

	_, err = r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	assert.Equal(t, Showdown, r.Stage)
	assert.NoError(t, r.CheckInvariants())
}

// The big blind gets its option when the pot is only limped.
func TestBigBlindOption(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionCall, 0)
	require.NoError(t, err)

	// Round does not close on the matched big blind; it may still raise.
	require.Equal(t, PreFlop, r.Stage)
	require.Equal(t, 2, r.Turn)
	_, err = r.TakeAction(ids[2], ActionRaise, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, r.CurrentBet)
}

func TestCheckFacingBetRejected(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100)

	// Button owes the other half of the blind.
	_, err := r.TakeAction(ids[0], ActionCheck, 0)
	assert.ErrorIs(t, err, ErrCheckFacingBet)
}

func TestOutOfTurnActionRejected(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.TakeAction(ids[1], ActionFold, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = r.TakeAction(uuid.New(), ActionFold, 0)
	assert.ErrorIs(t, err, ErrNotSeated)
}

// Timer expiry checks when free, folds when facing a bet, and ignores stale
// nonces.
func TestTimeoutTurn(t *testing.T) {
	r := newTestRoom(testConfig(), "2h Kc 3d Qd 2c 5h 6c 7d 2s 8s 3c 9h")
	ids := seatPlayers(t, r, 100, 100)

	// Stale nonce is a no-op.
	assert.Nil(t, r.TimeoutTurn(r.TurnNonce-1))

	// Button owes chips, so the timeout folds it and ends the hand.
	effects := r.TimeoutTurn(r.TurnNonce)
	require.NotNil(t, effects)
	assert.Equal(t, Showdown, r.Stage)
	assert.Equal(t, "FOLD", r.Seats[0].LastAction)
	assert.Equal(t, 99, r.Seats[0].Stack)
	assert.Equal(t, 101, r.Seats[1].Stack)
	_ = ids
}

func TestTimeoutChecksWhenFree(t *testing.T) {
	r := newTestRoom(testConfig(), "2h Kc 3d Qd 2c 5h 6c 7d 2s 8s 3c 9h")
	ids := seatPlayers(t, r, 100, 100)

	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)

	// Big blind can check for free; the timer must not fold it.
	require.Equal(t, 1, r.Turn)
	effects := r.TimeoutTurn(r.TurnNonce)
	require.NotNil(t, effects)
	assert.Equal(t, Flop, r.Stage)
	assert.Equal(t, StatusInHand, r.Seats[1].Status)
	assert.Equal(t, "CHECK", r.Seats[1].LastAction)
}

// Leaving mid-hand folds the seat; the stack is refunded at hand end.
func TestLeaveMidHandFoldsThenRefunds(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.Leave(ids[1])
	require.NoError(t, err)
	assert.Equal(t, StatusLeft, r.Seats[1].Status)
	require.Equal(t, PreFlop, r.Stage)

	// The remaining two finish the hand.
	_, err = r.TakeAction(ids[0], ActionFold, 0)
	require.NoError(t, err)
	require.Equal(t, Showdown, r.Stage)

	effects := r.NextHand()
	var removed *EffectSeatRemoved
	for _, e := range effects {
		if sr, ok := e.(EffectSeatRemoved); ok && sr.PlayerID == ids[1] {
			removed = &sr
		}
	}
	require.NotNil(t, removed)
	assert.Equal(t, 99, removed.Refund)
	assert.Nil(t, r.SeatOf(ids[1]))
	assert.NoError(t, r.CheckInvariants())
}

// Disconnecting mid-hand keeps the seat dealt in; the seat is dropped after
// the hand instead.
func TestDisconnectMidHandStaysDealtIn(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.Disconnect(ids[2])
	require.NoError(t, err)
	assert.Equal(t, StatusInHand, r.Seats[2].Status)
	assert.False(t, r.Seats[2].Connected)
	assert.Equal(t, 3, len(r.Seats))

	_, err = r.TakeAction(ids[0], ActionFold, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)
	require.Equal(t, Showdown, r.Stage)

	effects := r.NextHand()
	found := false
	for _, e := range effects {
		if sr, ok := e.(EffectSeatRemoved); ok && sr.PlayerID == ids[2] {
			found = true
			// Big blind wins the small blind's chip plus a 1-chip
			// uncalled refund.
			assert.Equal(t, 101, sr.Refund)
		}
	}
	assert.True(t, found)
	assert.Nil(t, r.SeatOf(ids[2]))
}

// Disconnecting after folding keeps the dealt-in seat, and its dead money,
// until the hand settles.
func TestDisconnectAfterFoldKeepsSeatUntilHandEnd(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)

	_, err = r.Disconnect(ids[1])
	require.NoError(t, err)
	assert.Len(t, r.Seats, 3)
	assert.Equal(t, StatusFolded, r.Seats[1].Status)
	assert.False(t, r.Seats[1].Connected)
	require.NoError(t, r.CheckInvariants())

	// Big blind checks its option, then the hand checks down.
	_, err = r.TakeAction(ids[2], ActionCheck, 0)
	require.NoError(t, err)
	for r.Stage != Showdown {
		_, err = r.TakeAction(r.Seats[r.Turn].PlayerID, ActionCheck, 0)
		require.NoError(t, err)
	}
	require.NoError(t, r.CheckInvariants())

	effects := r.NextHand()
	found := false
	for _, e := range effects {
		if sr, ok := e.(EffectSeatRemoved); ok && sr.PlayerID == ids[1] {
			found = true
			assert.Equal(t, 99, sr.Refund)
		}
	}
	assert.True(t, found)
	assert.Nil(t, r.SeatOf(ids[1]))
	assert.NoError(t, r.CheckInvariants())
}

// Leaving after folding defers removal to hand end like any dealt-in seat.
func TestLeaveAfterFoldDefersRemoval(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)

	_, err = r.Leave(ids[1])
	require.NoError(t, err)
	assert.Len(t, r.Seats, 3)
	assert.Equal(t, StatusLeft, r.Seats[1].Status)
	assert.NoError(t, r.CheckInvariants())
}

// A queued player's dropped connection refunds the buy-in instead of seating
// a phantom next hand.
func TestDisconnectQueuedPlayerRefunds(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	seatPlayers(t, r, 100, 100)

	late := uuid.New()
	_, err := r.Join(late, "C", 200)
	require.NoError(t, err)
	require.Len(t, r.JoinQueue, 1)

	effects, err := r.Disconnect(late)
	require.NoError(t, err)
	removed, ok := effects[0].(EffectSeatRemoved)
	require.True(t, ok)
	assert.Equal(t, late, removed.PlayerID)
	assert.Equal(t, 200, removed.Refund)
	assert.Empty(t, r.JoinQueue)
	assert.Nil(t, r.SeatOf(late))
	assert.NoError(t, r.CheckInvariants())
}

// Reconnecting before the hand ends keeps the seat.
func TestReconnectKeepsSeat(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)

	_, err := r.Disconnect(ids[2])
	require.NoError(t, err)
	_, err = r.Reconnect(ids[2])
	require.NoError(t, err)
	assert.True(t, r.Seats[2].Connected)

	_, err = r.TakeAction(ids[0], ActionFold, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)
	r.NextHand()
	assert.NotNil(t, r.SeatOf(ids[2]))
}

// Odd chip on a split goes to the tied winner closest left of the button.
func TestOddChipGoesLeftOfButton(t *testing.T) {
	deck := "Th 2h Kc Jc 3d Qd 2c 5h 6c 7d 2s 8s 3c 9h"
	r := newTestRoom(testConfig(), deck)
	ids := seatPlayers(t, r, 100, 100, 100)

	// Button limps, small blind folds its single chip, big blind checks.
	_, err := r.TakeAction(ids[0], ActionCall, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[2], ActionCheck, 0)
	require.NoError(t, err)

	for r.Stage != Showdown {
		_, err = r.TakeAction(r.Seats[r.Turn].PlayerID, ActionCheck, 0)
		require.NoError(t, err)
	}

	// Pot of 5 splits 2/3 with the odd chip to seat 2, first after the
	// button.
	assert.Equal(t, 100, r.Seats[0].Stack)
	assert.Equal(t, 99, r.Seats[1].Stack)
	assert.Equal(t, 101, r.Seats[2].Stack)
	assert.NoError(t, r.CheckInvariants())
}

// The button rotates between hands.
func TestButtonRotates(t *testing.T) {
	r := newTestRoom(testConfig(), fullDeckCards)
	ids := seatPlayers(t, r, 100, 100, 100)
	first := r.Button

	_, err := r.TakeAction(ids[0], ActionFold, 0)
	require.NoError(t, err)
	_, err = r.TakeAction(ids[1], ActionFold, 0)
	require.NoError(t, err)
	r.NextHand()
	require.Equal(t, PreFlop, r.Stage)
	assert.Equal(t, (first+1)%3, r.Button)
}

package game

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Action is a betting decision.
type Action int

const (
	ActionFold Action = iota
	ActionCheck
	ActionCall
	ActionRaise
	ActionAllIn
)

// String returns the wire representation of the action.
func (a Action) String() string {
	return [...]string{"FOLD", "CHECK", "CALL", "RAISE", "ALL_IN"}[a]
}

// ParseAction parses a wire action string.
func ParseAction(s string) (Action, error) {
	switch s {
	case "FOLD":
		return ActionFold, nil
	case "CHECK":
		return ActionCheck, nil
	case "CALL":
		return ActionCall, nil
	case "RAISE":
		return ActionRaise, nil
	case "ALL_IN":
		return ActionAllIn, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Illegal-action rejections.
var (
	ErrCheckFacingBet = errors.New("cannot check facing a bet")
	ErrNothingToCall  = errors.New("nothing to call")
	ErrRaiseTooSmall  = errors.New("raise below minimum")
	ErrRaiseTooLarge  = errors.New("raise exceeds stack")
	ErrActionClosed   = errors.New("betting not reopened, only call or fold")
)

// TakeAction applies a betting decision for the player whose turn it is.
// For RAISE, amount is the total bet the round moves to, not the increment.
// Rejected actions leave the room unchanged.
func (r *Room) TakeAction(playerID uuid.UUID, action Action, amount int) ([]Effect, error) {
	if !r.HandInProgress() || r.Turn < 0 {
		return nil, ErrNoBettingRound
	}
	idx := r.seatByPlayer(playerID)
	if idx < 0 {
		return nil, ErrNotSeated
	}
	if idx != r.Turn {
		return nil, ErrNotYourTurn
	}
	seat := r.Seats[idx]

	switch action {
	case ActionFold:
		seat.Status = StatusFolded
		seat.LastAction = "FOLD"

	case ActionCheck:
		if seat.Bet != r.CurrentBet {
			return nil, ErrCheckFacingBet
		}
		seat.LastAction = "CHECK"

	case ActionCall:
		owed := r.CurrentBet - seat.Bet
		if owed <= 0 {
			return nil, ErrNothingToCall
		}
		r.commit(seat, min(owed, seat.Stack))
		seat.LastAction = "CALL"

	case ActionRaise:
		if seat.Acted {
			// A short all-in raised the price without reopening action;
			// players who already acted may only call or fold.
			return nil, ErrActionClosed
		}
		maxTo := seat.Bet + seat.Stack
		if amount > maxTo {
			return nil, fmt.Errorf("%w: have %d", ErrRaiseTooLarge, maxTo)
		}
		if amount < r.CurrentBet+r.MinRaise {
			return nil, fmt.Errorf("%w: minimum %d", ErrRaiseTooSmall, r.CurrentBet+r.MinRaise)
		}
		r.applyRaise(seat, amount)
		seat.LastAction = fmt.Sprintf("RAISE %d", amount)

	case ActionAllIn:
		total := seat.Bet + seat.Stack
		if seat.Acted && total > r.CurrentBet {
			return nil, ErrActionClosed
		}
		switch {
		case total >= r.CurrentBet+r.MinRaise:
			r.applyRaise(seat, total)
		case total > r.CurrentBet:
			// Short all-in: the bet rises but action is not reopened for
			// players who already acted at the previous price.
			r.commit(seat, seat.Stack)
			r.CurrentBet = total
		default:
			r.commit(seat, seat.Stack)
		}
		seat.LastAction = "ALL_IN"

	default:
		return nil, fmt.Errorf("unknown action %d", action)
	}

	seat.Acted = true
	if seat.Stack == 0 && seat.Status == StatusInHand {
		seat.Status = StatusAllIn
	}
	return r.advance(), nil
}

// commit moves chips from the seat's stack into its current-round bet.
func (r *Room) commit(seat *Seat, chips int) {
	seat.Stack -= chips
	seat.Bet += chips
	seat.HandBet += chips
}

// applyRaise commits a full raise to the given total and reopens action for
// everyone else still in the hand.
func (r *Room) applyRaise(seat *Seat, to int) {
	r.MinRaise = to - r.CurrentBet
	r.CurrentBet = to
	r.commit(seat, to-seat.Bet)
	for _, other := range r.Seats {
		if other != seat && other.InHand() {
			other.Acted = false
		}
	}
}

// advance moves the hand forward after a seat's status or bet changed: ends
// the hand if one player remains, ends the round if betting is settled, or
// passes the turn.
func (r *Room) advance() []Effect {
	if n := r.contestingCount(); n <= 1 {
		return r.endHandByFold()
	}
	if r.roundComplete() {
		return r.endRound()
	}
	r.Turn = r.nextInHand(r.Turn)
	r.TurnNonce++
	if r.Turn < 0 {
		// Everyone left to act is all-in; finish the streets.
		return r.endRound()
	}
	return []Effect{EffectBroadcast{}}
}

func (r *Room) contestingCount() int {
	n := 0
	for _, s := range r.Seats {
		if s.Contesting() {
			n++
		}
	}
	return n
}

// roundComplete reports whether every player who can still act has acted and
// matched the current bet. Blinds do not count as having acted, which gives
// the big blind its option.
func (r *Room) roundComplete() bool {
	for _, s := range r.Seats {
		if s.InHand() && (!s.Acted || s.Bet != r.CurrentBet) {
			return false
		}
	}
	return true
}

// nextInHand returns the next seat index after from that can act, or -1.
func (r *Room) nextInHand(from int) int {
	if len(r.Seats) == 0 {
		return -1
	}
	for i := 1; i <= len(r.Seats); i++ {
		idx := (from + i) % len(r.Seats)
		if r.Seats[idx].InHand() {
			return idx
		}
	}
	return -1
}

// forceFold folds a seat out of turn (leave or timeout) and moves the hand
// forward.
func (r *Room) forceFold(idx int) []Effect {
	seat := r.Seats[idx]
	if !seat.Contesting() {
		return nil
	}
	seat.Status = StatusFolded
	seat.LastAction = "FOLD"
	seat.Acted = true
	if idx == r.Turn {
		return r.advance()
	}
	// Folding out of turn can still settle the round or the hand.
	if r.contestingCount() <= 1 {
		return r.endHandByFold()
	}
	if r.roundComplete() {
		return r.endRound()
	}
	return []Effect{EffectBroadcast{}}
}

// TimeoutTurn handles an expired turn timer. The nonce guards against a
// timer firing for a turn that already passed: stale nonces are discarded.
// The timed-out player checks when legal, otherwise folds.
func (r *Room) TimeoutTurn(nonce uint64) []Effect {
	if r.Turn < 0 || nonce != r.TurnNonce || !r.HandInProgress() {
		return nil
	}
	seat := r.Seats[r.Turn]
	if seat.Bet == r.CurrentBet {
		seat.LastAction = "CHECK"
		seat.Acted = true
		return r.advance()
	}
	return r.forceFold(r.Turn)
}

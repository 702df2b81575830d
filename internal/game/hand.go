package game

import (
	"github.com/google/uuid"

	"github.com/greenfelt/holdem/poker"
)

// StartHand deals a new hand to every ready seat with chips. Callers have
// verified at least two such seats exist.
func (r *Room) StartHand() []Effect {
	var participants []int
	for i, s := range r.Seats {
		s.HoleCards = nil
		s.Bet = 0
		s.HandBet = 0
		s.Acted = false
		s.LastAction = ""
		s.dealtIn = false
		if s.Status == StatusReady && s.Stack > 0 {
			participants = append(participants, i)
		}
	}
	if len(participants) < 2 {
		r.Stage = NotEnoughPlayers
		return []Effect{EffectBroadcast{}}
	}

	r.HandID = uuid.New()
	r.Deck = r.newDeck()
	r.Community = nil
	r.Pot = 0
	r.CurrentBet = r.Config.BigBlind
	r.MinRaise = r.Config.BigBlind
	r.Stage = PreFlop

	for _, i := range participants {
		s := r.Seats[i]
		s.Status = StatusInHand
		s.handStack = s.Stack
		s.dealtIn = true
	}

	r.Button = r.nextDealtIn(r.Button)

	// Heads-up the button posts the small blind and acts first pre-flop;
	// otherwise blinds sit left of the button and action starts after the
	// big blind.
	var sb, bb, first int
	if len(participants) == 2 {
		sb = r.Button
		bb = r.nextDealtIn(sb)
		first = sb
	} else {
		sb = r.nextDealtIn(r.Button)
		bb = r.nextDealtIn(sb)
		first = r.nextDealtIn(bb)
	}
	r.postBlind(r.Seats[sb], r.Config.SmallBlind)
	r.postBlind(r.Seats[bb], r.Config.BigBlind)

	// Two cards each, dealt one at a time starting left of the button.
	for round := 0; round < 2; round++ {
		for i, n := 0, r.nextDealtIn(r.Button); i < len(participants); i, n = i+1, r.nextDealtIn(n) {
			r.Seats[n].HoleCards = append(r.Seats[n].HoleCards, r.mustDraw())
		}
	}

	r.Turn = first
	if !r.Seats[first].InHand() {
		r.Turn = r.nextInHand(first)
	}
	r.TurnNonce++
	if r.Turn < 0 {
		// Blinds put everyone all-in; run the board out.
		return r.endRound()
	}
	return []Effect{EffectBroadcast{}}
}

func (r *Room) postBlind(seat *Seat, blind int) {
	r.commit(seat, min(blind, seat.Stack))
	if seat.Stack == 0 {
		seat.Status = StatusAllIn
	}
}

// nextDealtIn returns the next seat index after from that is dealt into the
// current hand, or -1.
func (r *Room) nextDealtIn(from int) int {
	if len(r.Seats) == 0 {
		return -1
	}
	if from < 0 {
		from = len(r.Seats) - 1
	}
	for i := 1; i <= len(r.Seats); i++ {
		idx := (from + i) % len(r.Seats)
		if r.Seats[idx].dealtIn {
			return idx
		}
	}
	return -1
}

func (r *Room) inHandCount() int {
	n := 0
	for _, s := range r.Seats {
		if s.InHand() {
			n++
		}
	}
	return n
}

// mustDraw draws from the deck. A valid hand never exhausts the deck, so a
// failure here means corrupted state; the panic is recovered by the room
// actor, which quarantines the room.
func (r *Room) mustDraw() poker.Card {
	c, err := r.Deck.Draw()
	if err != nil {
		panic(err)
	}
	return c
}

// endRound sweeps the round's bets into the pot and either opens the next
// street, runs the board out when betting is over, or goes to showdown.
func (r *Room) endRound() []Effect {
	r.collectBets()
	for {
		if r.Stage == River {
			return r.showdown()
		}
		r.dealNextStreet()
		if r.inHandCount() >= 2 {
			r.Turn = r.nextInHand(r.Button)
			r.TurnNonce++
			return []Effect{EffectBroadcast{}}
		}
	}
}

func (r *Room) collectBets() {
	for _, s := range r.Seats {
		r.Pot += s.Bet
		s.Bet = 0
		s.Acted = false
	}
	r.CurrentBet = 0
	r.MinRaise = r.Config.BigBlind
	r.Turn = -1
}

func (r *Room) dealNextStreet() {
	r.mustDraw() // burn
	switch r.Stage {
	case PreFlop:
		r.Community = append(r.Community, r.mustDraw(), r.mustDraw(), r.mustDraw())
		r.Stage = Flop
	case Flop:
		r.Community = append(r.Community, r.mustDraw())
		r.Stage = Turn
	case Turn:
		r.Community = append(r.Community, r.mustDraw())
		r.Stage = River
	}
}

// endHandByFold awards the pot to the last contesting player without a
// showdown. Hole cards stay hidden.
func (r *Room) endHandByFold() []Effect {
	r.collectBets()
	r.refundUncalled()
	var winner *Seat
	for _, s := range r.Seats {
		if s.Contesting() {
			winner = s
			break
		}
	}
	if winner == nil {
		// Every contesting seat vanished mid-hand; nothing to award.
		return r.finishHand(nil, false)
	}
	amount := r.Pot
	winner.Stack += amount
	r.Pot = 0
	return r.finishHand([]Winner{{PlayerID: winner.PlayerID, Amount: amount}}, false)
}

// showdown evaluates the contesting hands, splits the pot layers, and ends
// the hand with all contesting hole cards revealed.
func (r *Room) showdown() []Effect {
	r.refundUncalled()

	contribs := make([]contribution, 0, len(r.Seats))
	ranks := map[int]poker.HandRank{}
	for i, s := range r.Seats {
		if !s.dealtIn {
			continue
		}
		contribs = append(contribs, contribution{seat: i, amount: s.HandBet, live: s.Contesting()})
		if s.Contesting() {
			ranks[i] = poker.Evaluate7(append(append([]poker.Card{}, s.HoleCards...), r.Community...))
		}
	}

	pots := buildPots(contribs)
	payouts, labels := awardPots(pots,
		func(seat int) poker.HandRank { return ranks[seat] },
		func(seat int) string { return ranks[seat].String() },
		func(a, b int) bool { return r.buttonDistance(a) < r.buttonDistance(b) },
	)

	var winners []Winner
	for i, s := range r.Seats {
		if amt, ok := payouts[i]; ok {
			s.Stack += amt
			r.Pot -= amt
			winners = append(winners, Winner{PlayerID: s.PlayerID, Amount: amt, Label: labels[i]})
		}
	}
	return r.finishHand(winners, true)
}

// buttonDistance is the seat's action-order position after the button.
func (r *Room) buttonDistance(seat int) int {
	n := len(r.Seats)
	d := (seat - r.Button - 1) % n
	if d < 0 {
		d += n
	}
	return d
}

// refundUncalled returns the portion of the highest contribution no other
// player matched. Runs after bets are collected, before pots are built.
func (r *Room) refundUncalled() {
	var top *Seat
	topAmt, secondAmt := 0, 0
	for _, s := range r.Seats {
		if !s.dealtIn {
			continue
		}
		if s.Contesting() && s.HandBet > topAmt {
			if topAmt > secondAmt {
				secondAmt = topAmt
			}
			top, topAmt = s, s.HandBet
		} else if s.HandBet > secondAmt {
			secondAmt = s.HandBet
		}
	}
	if top != nil && topAmt > secondAmt {
		excess := topAmt - secondAmt
		top.Stack += excess
		top.HandBet -= excess
		r.Pot -= excess
	}
}

// finishHand freezes the table in SHOWDOWN, computes zero-sum settlements,
// and emits the hand result. Departed and busted seats are swept by
// NextHand once the inter-hand delay elapses.
func (r *Room) finishHand(winners []Winner, reveal bool) []Effect {
	r.Stage = Showdown
	r.Turn = -1
	r.TurnNonce++

	var settlements []Settlement
	for _, s := range r.Seats {
		if !s.dealtIn {
			continue
		}
		settlements = append(settlements, Settlement{PlayerID: s.PlayerID, Delta: s.Stack - s.handStack})
	}
	return []Effect{
		EffectBroadcast{Reveal: reveal},
		EffectHandResult{HandID: r.HandID, Winners: winners, Settlements: settlements},
	}
}

// NextHand runs after the inter-hand delay: departed, disconnected and
// busted seats are removed, queued joiners are seated ready, and a new hand
// starts if enough players remain.
func (r *Room) NextHand() []Effect {
	if r.Stage != Showdown {
		return nil
	}
	var effects []Effect
	for i := len(r.Seats) - 1; i >= 0; i-- {
		s := r.Seats[i]
		if s.Status == StatusLeft || !s.Connected || s.Stack == 0 {
			r.Seats = append(r.Seats[:i], r.Seats[i+1:]...)
			r.escrow -= s.Stack
			effects = append(effects, EffectSeatRemoved{PlayerID: s.PlayerID, Refund: s.Stack})
			if r.Button >= i {
				r.Button--
			}
		} else if s.dealtIn {
			s.Status = StatusReady
		}
	}
	for _, s := range r.JoinQueue {
		s.Status = StatusReady
	}
	r.Seats = append(r.Seats, r.JoinQueue...)
	r.JoinQueue = nil

	if r.canStart() {
		return append(effects, r.StartHand()...)
	}
	r.Stage = NotEnoughPlayers
	for _, s := range r.Seats {
		s.HoleCards = nil
		s.Bet = 0
		s.HandBet = 0
		s.LastAction = ""
		s.dealtIn = false
	}
	r.Community = nil
	return append(effects, EffectBroadcast{})
}

package game

import "github.com/google/uuid"

// Effect is an outcome of a room mutation that the actor must dispatch:
// state broadcasts, durable settlement writes, seat removals with refunds.
// Effects decouple the state machine from I/O so the whole engine stays
// synchronously testable.
type Effect interface {
	isEffect()
}

// EffectBroadcast tells the actor to push a fresh per-recipient room view to
// every connection. Reveal is set for the showdown broadcast so contesting
// players' hole cards and hand labels are included for everyone.
type EffectBroadcast struct {
	Reveal bool
}

func (EffectBroadcast) isEffect() {}

// Winner describes one payout at hand end.
type Winner struct {
	PlayerID uuid.UUID
	Amount   int
	Label    string
}

// Settlement is one player's net chip delta for a completed hand. Deltas
// across a hand always sum to zero.
type Settlement struct {
	PlayerID uuid.UUID
	Delta    int
}

// EffectHandResult is emitted exactly once per completed hand. The actor
// broadcasts the result, persists the settlements idempotently, and arms the
// next-hand timer.
type EffectHandResult struct {
	HandID      uuid.UUID
	Winners     []Winner
	Settlements []Settlement
}

func (EffectHandResult) isEffect() {}

// EffectSeatRemoved reports a player leaving the table with their remaining
// stack. The actor credits the refund to the durable balance and unbinds the
// player from the room.
type EffectSeatRemoved struct {
	PlayerID uuid.UUID
	Refund   int
}

func (EffectSeatRemoved) isEffect() {}

package poker

import (
	"errors"
	rand "math/rand/v2"
)

// ErrDeckEmpty is returned when drawing from an exhausted deck. A correctly
// scoped hand never draws more than 28 cards, so hitting this indicates a
// corrupted room state.
var ErrDeckEmpty = errors.New("poker: deck is empty")

// Deck represents a standard 52-card deck. Cards are drawn from the top.
type Deck struct {
	cards [52]Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates a new shuffled deck using the provided RNG. The RNG is
// retained for reshuffles; callers inject a seeded generator for tests.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	i := 0
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}
	d.Shuffle()
	return d
}

// NewStackedDeck returns a deck that deals the given cards in order, used by
// tests that need known boards. Shuffle must not be called on it.
func NewStackedDeck(cards ...Card) *Deck {
	d := &Deck{}
	copy(d.cards[:], cards)
	return d
}

// Shuffle reshuffles the full deck using Fisher-Yates and resets the draw
// position.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if d.next >= len(d.cards) {
		return Card{}, ErrDeckEmpty
	}
	card := d.cards[d.next]
	d.next++
	return card, nil
}

// Remaining returns the number of undrawn cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}

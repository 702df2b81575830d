package poker

import "sort"

// Category enumerates poker hand categories from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns a human-readable category label.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandRank is a totally ordered hand strength. Higher is stronger. Two hands
// with identical categories and kickers compare equal, which is how split
// pots arise. Layout: category in bits 20-23, then up to five tie-break
// ranks packed 4 bits each, most significant first.
type HandRank uint32

// Category returns the hand's category.
func (hr HandRank) Category() Category {
	return Category(hr >> 20)
}

// String returns the category label, e.g. "Full House".
func (hr HandRank) String() string {
	return hr.Category().String()
}

func packRank(cat Category, tiebreaks ...Rank) HandRank {
	v := uint32(cat) << 20
	shift := 16
	for _, r := range tiebreaks {
		v |= uint32(r) << shift
		shift -= 4
	}
	return HandRank(v)
}

// Evaluate7 returns the strongest 5-card hand rank formed from 7 cards by
// scoring all 21 subsets. Per-showdown cost is negligible and the enumeration
// is trivially auditable.
func Evaluate7(cards []Card) HandRank {
	if len(cards) != 7 {
		return 0
	}
	best := HandRank(0)
	var hand [5]Card
	for i := 0; i < 7; i++ {
		for j := i + 1; j < 7; j++ {
			// Exclude cards i and j.
			n := 0
			for k := 0; k < 7; k++ {
				if k != i && k != j {
					hand[n] = cards[k]
					n++
				}
			}
			if rank := Evaluate5(hand); rank > best {
				best = rank
			}
		}
	}
	return best
}

// Evaluate5 scores exactly five cards.
func Evaluate5(hand [5]Card) HandRank {
	ranks := make([]Rank, 5)
	flush := true
	for i, c := range hand {
		ranks[i] = c.Rank
		if c.Suit != hand[0].Suit {
			flush = false
		}
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] > ranks[j] })

	straightHigh, isStraight := straightHighCard(ranks)

	if flush && isStraight {
		return packRank(StraightFlush, straightHigh)
	}

	// Group ranks by multiplicity.
	counts := map[Rank]int{}
	for _, r := range ranks {
		counts[r]++
	}
	groups := make([]Rank, 0, len(counts))
	for r := range counts {
		groups = append(groups, r)
	}
	// Higher multiplicity first, then higher rank.
	sort.Slice(groups, func(i, j int) bool {
		if counts[groups[i]] != counts[groups[j]] {
			return counts[groups[i]] > counts[groups[j]]
		}
		return groups[i] > groups[j]
	})

	switch {
	case counts[groups[0]] == 4:
		return packRank(FourOfAKind, groups[0], groups[1])
	case counts[groups[0]] == 3 && counts[groups[1]] == 2:
		return packRank(FullHouse, groups[0], groups[1])
	case flush:
		return packRank(Flush, ranks[0], ranks[1], ranks[2], ranks[3], ranks[4])
	case isStraight:
		return packRank(Straight, straightHigh)
	case counts[groups[0]] == 3:
		return packRank(ThreeOfAKind, groups[0], groups[1], groups[2])
	case counts[groups[0]] == 2 && counts[groups[1]] == 2:
		return packRank(TwoPair, groups[0], groups[1], groups[2])
	case counts[groups[0]] == 2:
		return packRank(Pair, groups[0], groups[1], groups[2], groups[3])
	default:
		return packRank(HighCard, ranks[0], ranks[1], ranks[2], ranks[3], ranks[4])
	}
}

// straightHighCard reports whether the descending-sorted ranks form a
// straight, and its high card. The wheel (A-5-4-3-2) counts with a five-high.
func straightHighCard(desc []Rank) (Rank, bool) {
	run := true
	for i := 1; i < 5; i++ {
		if desc[i-1] != desc[i]+1 {
			run = false
			break
		}
	}
	if run {
		return desc[0], true
	}
	if desc[0] == Ace && desc[1] == Five && desc[2] == Four && desc[3] == Three && desc[4] == Two {
		return Five, true
	}
	return 0, false
}

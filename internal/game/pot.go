package game

import (
	"sort"

	"github.com/greenfelt/holdem/poker"
)

// potLayer is one contribution tier of the pot. Folded players' chips stay in
// the layer as dead money but folded players are never eligible to win it.
type potLayer struct {
	amount   int
	eligible []int // seat indexes still contesting at this tier
}

// contribution pairs a seat index with its total chips committed this hand.
type contribution struct {
	seat   int
	amount int
	live   bool
}

// buildPots partitions the hand's total contributions into a main pot and
// side pots. Tier boundaries are the distinct contribution amounts of
// contesting players, ascending; each layer collects min(contribution, hi) -
// min(contribution, lo) from every contributor, folded or not.
func buildPots(contribs []contribution) []potLayer {
	levels := make([]int, 0, len(contribs))
	for _, c := range contribs {
		if c.live && c.amount > 0 {
			levels = append(levels, c.amount)
		}
	}
	if len(levels) == 0 {
		return nil
	}
	sort.Ints(levels)
	distinct := levels[:0]
	for _, l := range levels {
		if len(distinct) == 0 || distinct[len(distinct)-1] != l {
			distinct = append(distinct, l)
		}
	}

	var pots []potLayer
	lo := 0
	for _, hi := range distinct {
		layer := potLayer{}
		for _, c := range contribs {
			layer.amount += min(c.amount, hi) - min(c.amount, lo)
			if c.live && c.amount >= hi {
				layer.eligible = append(layer.eligible, c.seat)
			}
		}
		if layer.amount > 0 {
			pots = append(pots, layer)
		}
		lo = hi
	}

	// Chips above the highest live contribution were never matched; they are
	// returned to their owner before this function is called, so nothing is
	// left over here.
	return pots
}

// awardPots splits each pot layer among its best-ranked eligible seats.
// Ties split evenly; odd chips go to the tied winner closest to the left of
// the dealer button. Returns payout per seat index and the winning label per
// paid seat.
func awardPots(pots []potLayer, rank func(seat int) poker.HandRank, label func(seat int) string, leftOfButton func(a, b int) bool) (map[int]int, map[int]string) {
	payouts := map[int]int{}
	labels := map[int]string{}
	for _, pot := range pots {
		best := poker.HandRank(0)
		var winners []int
		for _, seat := range pot.eligible {
			r := rank(seat)
			switch {
			case r > best:
				best = r
				winners = winners[:0]
				winners = append(winners, seat)
			case r == best:
				winners = append(winners, seat)
			}
		}
		if len(winners) == 0 {
			continue
		}
		share := pot.amount / len(winners)
		remainder := pot.amount % len(winners)
		// Odd chips go to the winner earliest in action order after the
		// button.
		sort.Slice(winners, func(i, j int) bool { return leftOfButton(winners[i], winners[j]) })
		for i, seat := range winners {
			amt := share
			if i < remainder {
				amt++
			}
			payouts[seat] += amt
			labels[seat] = label(seat)
		}
	}
	return payouts, labels
}

package domain

// Combat strength tiers for the 40-card Truco order. The four "bravas"
// (1 Sword, 1 Club, 7 Sword, 7 Gold) sit above everything; the remaining
// ranks share a tier regardless of suit, so two contenders can tie.
var combatTiers = map[Card]int{
	{Rank: 1, Suit: Sword}: 14,
	{Rank: 1, Suit: Club}:  13,
	{Rank: 7, Suit: Sword}: 12,
	{Rank: 7, Suit: Gold}:  11,
}

var rankTiers = map[int]int{
	3:  10,
	2:  9,
	1:  8, // 1 Cup, 1 Gold
	12: 7,
	11: 6,
	10: 5,
	7:  4, // 7 Cup, 7 Club
	6:  3,
	5:  2,
	4:  1,
}

// CombatValue returns the trick-taking strength of a card.
func CombatValue(c Card) int {
	if v, ok := combatTiers[c]; ok {
		return v
	}
	return rankTiers[c.Rank]
}

// CompareCards returns the sign of CombatValue(a) - CombatValue(b).
func CompareCards(a, b Card) int {
	av, bv := CombatValue(a), CombatValue(b)
	switch {
	case av > bv:
		return 1
	case av < bv:
		return -1
	default:
		return 0
	}
}

// EnvidoFaceValue returns the envido contribution of a card: its rank for
// numeric cards, zero for the figures (10, 11, 12).
func EnvidoFaceValue(c Card) int {
	if c.Rank < 10 {
		return c.Rank
	}
	return 0
}

// CalculateEnvidoScore computes the envido score of a hand: the two highest
// face values of the largest same-suit group plus 20 when at least two cards
// share a suit, otherwise the single highest face value. Empty hands score 0.
func CalculateEnvidoScore(hand []Card) int {
	bySuit := make(map[Suit][]int, len(hand))
	for _, c := range hand {
		bySuit[c.Suit] = append(bySuit[c.Suit], EnvidoFaceValue(c))
	}

	best := 0
	paired := false
	for _, values := range bySuit {
		if len(values) < 2 {
			continue
		}
		top, second := topTwo(values)
		if score := top + second + 20; !paired || score > best {
			best = score
		}
		paired = true
	}
	if paired {
		return best
	}

	for _, c := range hand {
		if v := EnvidoFaceValue(c); v > best {
			best = v
		}
	}
	return best
}

// HasFlor reports whether at least three held cards share one suit.
func HasFlor(hand []Card) bool {
	if len(hand) < 3 {
		return false
	}
	counts := make(map[Suit]int, len(hand))
	for _, c := range hand {
		counts[c.Suit]++
		if counts[c.Suit] >= 3 {
			return true
		}
	}
	return false
}

// CalculateFlorScore sums the envido face values of the full hand plus 20.
// The result is only meaningful when HasFlor holds.
func CalculateFlorScore(hand []Card) int {
	total := 20
	for _, c := range hand {
		total += EnvidoFaceValue(c)
	}
	return total
}

func topTwo(values []int) (int, int) {
	top, second := 0, 0
	for _, v := range values {
		switch {
		case v > top:
			top, second = v, top
		case v > second:
			second = v
		}
	}
	return top, second
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Suit is one of the four Spanish-deck suits used in Truco.
type Suit string

const (
	Club  Suit = "Club"
	Cup   Suit = "Cup"
	Sword Suit = "Sword"
	Gold  Suit = "Gold"
)

// Suits lists the four suits in deck-building order.
var Suits = []Suit{Club, Cup, Sword, Gold}

// Ranks lists the ten legal ranks. Ranks 8 and 9 do not exist in the
// Spanish 40-card deck.
var Ranks = []int{1, 2, 3, 4, 5, 6, 7, 10, 11, 12}

// Card is an immutable (rank, suit) value.
type Card struct {
	Rank int
	Suit Suit
}

// Key returns the stable display key for the card, e.g. "Sword_1".
func (c Card) Key() string {
	return fmt.Sprintf("%s_%d", c.Suit, c.Rank)
}

func (c Card) String() string {
	return c.Key()
}

// ParseCard parses a display key like "Sword_1" back into a Card.
func ParseCard(key string) (Card, error) {
	suit, rankStr, ok := strings.Cut(key, "_")
	if !ok {
		return Card{}, fmt.Errorf("bad card key %q", key)
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return Card{}, fmt.Errorf("bad card key %q", key)
	}
	c := Card{Rank: rank, Suit: Suit(suit)}
	if !c.Valid() {
		return Card{}, fmt.Errorf("bad card key %q", key)
	}
	return c, nil
}

// Valid reports whether the card is one of the 40 legal deck members.
func (c Card) Valid() bool {
	switch c.Suit {
	case Club, Cup, Sword, Gold:
	default:
		return false
	}
	switch c.Rank {
	case 1, 2, 3, 4, 5, 6, 7, 10, 11, 12:
		return true
	}
	return false
}

// Team identifies one of the two sides of a match. TeamNone marks a drawn
// round or an unset winner slot.
type Team int

const (
	TeamNone Team = iota
	Team1
	Team2
)

func (t Team) String() string {
	switch t {
	case Team1:
		return "team1"
	case Team2:
		return "team2"
	default:
		return "none"
	}
}

// Opponent returns the opposing team. TeamNone has no opponent.
func (t Team) Opponent() Team {
	switch t {
	case Team1:
		return Team2
	case Team2:
		return Team1
	default:
		return TeamNone
	}
}

// Participant is a seated player. ID is negative for unregistered guests.
// Hand is owned by the match while a hand is in progress and replaced
// wholesale on each deal.
type Participant struct {
	ID       int64
	Username string
	Team     Team
	Hand     []Card
}

// HoldsCard reports whether the participant's current hand contains c.
func (p *Participant) HoldsCard(c Card) bool {
	for _, held := range p.Hand {
		if held == c {
			return true
		}
	}
	return false
}

// RemoveCard takes c out of the hand, reporting whether it was held.
func (p *Participant) RemoveCard(c Card) bool {
	for i, held := range p.Hand {
		if held == c {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

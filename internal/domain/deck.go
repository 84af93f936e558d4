package domain

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
)

// DeckSize is the number of cards in a full Spanish deck.
const DeckSize = 40

// HandSize is the number of cards dealt to each participant per hand.
const HandSize = 3

var (
	// ErrInsufficientCards is returned when a full hand cannot be dealt.
	ErrInsufficientCards = errors.New("not enough cards left to deal a hand")
	// ErrDeckEmpty is returned when drawing from an empty deck.
	ErrDeckEmpty = errors.New("deck is empty")
)

// Shuffler permutes a slice of cards in place. The default implementation
// draws from crypto/rand; tests inject deterministic arrangements.
type Shuffler func(cards []Card)

// Deck holds the undealt remainder of a 40-card Spanish deck.
type Deck struct {
	cards   []Card
	shuffle Shuffler
}

// NewDeck returns a full, unshuffled deck using the given shuffler, or the
// crypto/rand shuffler when nil.
func NewDeck(shuffle Shuffler) *Deck {
	if shuffle == nil {
		shuffle = CryptoShuffle
	}
	d := &Deck{shuffle: shuffle}
	d.Reset()
	return d
}

// Reset restores the full 40-card composition, unshuffled.
func (d *Deck) Reset() {
	if d.cards == nil {
		d.cards = make([]Card, 0, DeckSize)
	}
	d.cards = d.cards[:0]
	for _, s := range Suits {
		for _, r := range Ranks {
			d.cards = append(d.cards, Card{Rank: r, Suit: s})
		}
	}
}

// Shuffle permutes the remaining cards.
func (d *Deck) Shuffle() {
	d.shuffle(d.cards)
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// DealHand removes and returns exactly HandSize cards from the top.
func (d *Deck) DealHand() ([]Card, error) {
	if len(d.cards) < HandSize {
		return nil, ErrInsufficientCards
	}
	hand := make([]Card, HandSize)
	copy(hand, d.cards[:HandSize])
	d.cards = d.cards[HandSize:]
	return hand, nil
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckEmpty
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, nil
}

// CryptoShuffle is a Fisher-Yates permutation backed by crypto/rand.
func CryptoShuffle(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		var b [8]byte
		if _, err := crand.Read(b[:]); err != nil {
			// A failing entropy source must not interrupt the hand flow;
			// leave the remaining prefix in place.
			return
		}
		j := int(binary.BigEndian.Uint64(b[:]) % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

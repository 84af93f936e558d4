// Package lobby coordinates the transition from a formed lobby to a running
// match: code bookkeeping, live notification channels, seat admission and
// the match starter.
package lobby

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/ports"
)

// GuestPrefix marks usernames of unregistered participants.
const GuestPrefix = "guest_"

// matchCodeLen is the length of the shareable match code.
const matchCodeLen = 6

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	// ErrCodeTaken is returned when registering a code twice.
	ErrCodeTaken = errors.New("match code already registered")
	// ErrUnknownCode is returned for codes with no lobby mapping.
	ErrUnknownCode = errors.New("unknown match code")
	// ErrDuplicateChannel is returned when binding the same channel to a
	// match code twice.
	ErrDuplicateChannel = errors.New("channel already bound to this match code")
)

// ChannelIdentity is what the coordinator knows about the participant
// behind a live channel.
type ChannelIdentity struct {
	Username string
	Team     domain.Team // recorded at join time
}

// IsGuest reports whether the identity belongs to an unregistered player.
func (id ChannelIdentity) IsGuest() bool {
	return strings.HasPrefix(id.Username, GuestPrefix)
}

// Coordinator owns four independently-locked concurrent structures: the
// code→lobby mapping, lazily created per-lobby locks, the live channel
// registry per match code and the channel→identity index.
type Coordinator struct {
	codesMu sync.RWMutex
	codes   map[string]uuid.UUID

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex

	channelsMu sync.RWMutex
	channels   map[string][]ports.Channel

	identitiesMu sync.RWMutex
	identities   map[ports.Channel]ChannelIdentity

	log zerolog.Logger
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator(log zerolog.Logger) *Coordinator {
	return &Coordinator{
		codes:      make(map[string]uuid.UUID),
		locks:      make(map[uuid.UUID]*sync.Mutex),
		channels:   make(map[string][]ports.Channel),
		identities: make(map[ports.Channel]ChannelIdentity),
		log:        log.With().Str("component", "lobby").Logger(),
	}
}

// NewMatchCode generates a 6-character [A-Z0-9] code from a cryptographic
// source, retrying until it is not already registered.
func (c *Coordinator) NewMatchCode() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		buf := make([]byte, matchCodeLen)
		if _, err := crand.Read(buf); err != nil {
			return "", fmt.Errorf("match code entropy: %w", err)
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)
		c.codesMu.RLock()
		_, taken := c.codes[code]
		c.codesMu.RUnlock()
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique match code")
}

// RegisterCode binds a match code to a lobby id.
func (c *Coordinator) RegisterCode(code string, lobbyID uuid.UUID) error {
	c.codesMu.Lock()
	defer c.codesMu.Unlock()
	if _, exists := c.codes[code]; exists {
		return ErrCodeTaken
	}
	c.codes[code] = lobbyID
	return nil
}

// LobbyID resolves a match code to its lobby id.
func (c *Coordinator) LobbyID(code string) (uuid.UUID, error) {
	c.codesMu.RLock()
	defer c.codesMu.RUnlock()
	id, ok := c.codes[code]
	if !ok {
		return uuid.Nil, ErrUnknownCode
	}
	return id, nil
}

// RemoveCode drops the code→lobby mapping and the channel registrations
// held under the code.
func (c *Coordinator) RemoveCode(code string) {
	c.codesMu.Lock()
	delete(c.codes, code)
	c.codesMu.Unlock()

	c.channelsMu.Lock()
	chans := c.channels[code]
	delete(c.channels, code)
	c.channelsMu.Unlock()

	c.identitiesMu.Lock()
	for _, ch := range chans {
		delete(c.identities, ch)
	}
	c.identitiesMu.Unlock()
}

// LobbyLock returns the mutex serializing join decisions for a lobby,
// creating it lazily on first use.
func (c *Coordinator) LobbyLock(lobbyID uuid.UUID) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	mu, ok := c.locks[lobbyID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[lobbyID] = mu
	}
	return mu
}

// BindChannel registers a live channel for a (match code, participant)
// pair. Binding the same channel to the same code twice is rejected.
func (c *Coordinator) BindChannel(code string, identity ChannelIdentity, ch ports.Channel) error {
	c.channelsMu.Lock()
	for _, existing := range c.channels[code] {
		if existing == ch {
			c.channelsMu.Unlock()
			return ErrDuplicateChannel
		}
	}
	c.channels[code] = append(c.channels[code], ch)
	c.channelsMu.Unlock()

	c.identitiesMu.Lock()
	c.identities[ch] = identity
	c.identitiesMu.Unlock()
	return nil
}

// UnbindChannel removes a channel registration for a match code.
func (c *Coordinator) UnbindChannel(code string, ch ports.Channel) {
	c.channelsMu.Lock()
	chans := c.channels[code]
	for i, existing := range chans {
		if existing == ch {
			c.channels[code] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	c.channelsMu.Unlock()

	c.identitiesMu.Lock()
	delete(c.identities, ch)
	c.identitiesMu.Unlock()
}

// Channels returns a snapshot of the live channels bound to a match code.
// Snapshot-before-iterate: broadcasters never walk the live slice.
func (c *Coordinator) Channels(code string) []ports.Channel {
	c.channelsMu.RLock()
	defer c.channelsMu.RUnlock()
	out := make([]ports.Channel, len(c.channels[code]))
	copy(out, c.channels[code])
	return out
}

// IdentityFor returns the identity recorded for a channel.
func (c *Coordinator) IdentityFor(ch ports.Channel) (ChannelIdentity, bool) {
	c.identitiesMu.RLock()
	defer c.identitiesMu.RUnlock()
	id, ok := c.identities[ch]
	return id, ok
}

// PruneClosed drops channels whose underlying connection is no longer open
// and returns how many were removed.
func (c *Coordinator) PruneClosed(code string) int {
	c.channelsMu.Lock()
	chans := c.channels[code]
	kept := chans[:0]
	var dropped []ports.Channel
	for _, ch := range chans {
		if ch.State() == ports.ChannelOpen {
			kept = append(kept, ch)
		} else {
			dropped = append(dropped, ch)
		}
	}
	c.channels[code] = kept
	c.channelsMu.Unlock()

	if len(dropped) > 0 {
		c.identitiesMu.Lock()
		for _, ch := range dropped {
			delete(c.identities, ch)
		}
		c.identitiesMu.Unlock()
		c.log.Debug().Str("match", code).Int("pruned", len(dropped)).Msg("pruned dead channels")
	}
	return len(dropped)
}

// Broadcast fans a notice out to every live channel bound to the code as
// independent fire-and-forget units; one channel's failure never blocks or
// drops delivery to the others.
func (c *Coordinator) Broadcast(code string, n ports.Notice) {
	for _, ch := range c.Channels(code) {
		if ch.State() != ports.ChannelOpen {
			continue
		}
		go func(ch ports.Channel) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ch.Send(ctx, n); err != nil {
				c.log.Warn().Err(err).Str("match", code).Str("event", n.Event).
					Msg("broadcast delivery failed")
			}
		}(ch)
	}
}

// GuestCount reports how many unregistered participants are currently
// attached to a match code.
func (c *Coordinator) GuestCount(code string) int {
	chans := c.Channels(code)
	c.identitiesMu.RLock()
	defer c.identitiesMu.RUnlock()
	count := 0
	for _, ch := range chans {
		if id, ok := c.identities[ch]; ok && id.IsGuest() {
			count++
		}
	}
	return count
}

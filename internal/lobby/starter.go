package lobby

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/match"
	"truco/internal/ports"
	"truco/internal/session"
)

// Starter orchestrates the transition from a filled lobby to a running
// match: participant resolution, seating order, construction and
// registration.
type Starter struct {
	coord     *Coordinator
	registry  *session.Registry
	users     ports.UserDirectory
	store     ports.MatchStore
	publisher ports.EventPublisher // optional
	shuffler  domain.Shuffler      // nil for crypto/rand
	log       zerolog.Logger
}

// NewStarter wires a starter with its collaborators.
func NewStarter(coord *Coordinator, registry *session.Registry, users ports.UserDirectory,
	store ports.MatchStore, publisher ports.EventPublisher, log zerolog.Logger) *Starter {
	return &Starter{
		coord:     coord,
		registry:  registry,
		users:     users,
		store:     store,
		publisher: publisher,
		log:       log.With().Str("component", "starter").Logger(),
	}
}

// GuestID synthesizes the stable negative id for an unregistered username.
func GuestID(username string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	id := -int64(h.Sum32())
	if id == 0 {
		id = -1
	}
	return id
}

// Start builds and registers the match for a filled lobby. The whole
// transition runs under the lobby's lock so no join can race the capacity
// observation: the lobby is closed before participants are resolved and
// reopened if any step fails. Nothing is left registered on failure.
func (s *Starter) Start(ctx context.Context, l *Lobby) (m *match.Match, err error) {
	mu := s.coord.LobbyLock(l.ID)
	mu.Lock()
	defer mu.Unlock()

	if l.Closed {
		return nil, ErrLobbyClosed
	}
	if l.Capacity != 2 && l.Capacity != 4 {
		return nil, ErrBadCapacity
	}
	if len(l.Members) != l.Capacity {
		return nil, fmt.Errorf("lobby %s has %d of %d seats filled", l.Code, len(l.Members), l.Capacity)
	}

	l.Closed = true
	defer func() {
		if err != nil {
			l.Closed = false
		}
	}()

	s.coord.PruneClosed(l.Code)
	live := s.coord.Channels(l.Code)
	byUser := make(map[string]ports.Channel, len(live))
	for _, ch := range live {
		if id, ok := s.coord.IdentityFor(ch); ok {
			byUser[id.Username] = ch
		}
	}

	participants := make([]*domain.Participant, 0, l.Capacity)
	channels := make(map[int64]ports.Channel, l.Capacity)
	for _, mem := range l.Members {
		ch, hasChannel := byUser[mem.Username]
		p := &domain.Participant{Username: mem.Username, Team: mem.Team}
		if mem.Guest {
			p.ID = GuestID(mem.Username)
			if hasChannel {
				// Guests carry no persisted seat; the channel's recorded
				// team is authoritative for them.
				if identity, ok := s.coord.IdentityFor(ch); ok {
					p.Team = identity.Team
				}
			}
		} else {
			id, err := s.users.LookupID(ctx, mem.Username)
			if err != nil {
				return nil, fmt.Errorf("resolve user %q: %w", mem.Username, err)
			}
			p.ID = id
		}
		participants = append(participants, p)
		if hasChannel {
			channels[p.ID] = ch
		}
	}

	// A participant without a live channel means a connection dropped while
	// the match was being built.
	if len(channels) != len(participants) {
		return nil, fmt.Errorf("resolved %d participants but %d live channels", len(participants), len(channels))
	}

	seated, err := seatOrder(l.Owner, participants)
	if err != nil {
		return nil, err
	}

	m, err = match.New(match.Config{
		Code:         l.Code,
		LobbyID:      l.ID.String(),
		Participants: seated,
		Channels:     channels,
		Store:        s.store,
		Publisher:    s.publisher,
		Logger:       s.log,
		Shuffler:     s.shuffler,
	})
	if err != nil {
		return nil, err
	}

	if !s.registry.TryAdd(l.Code, m) {
		return nil, fmt.Errorf("match code %s already has a running match", l.Code)
	}
	if err := m.Start(ctx); err != nil {
		s.registry.TryRemove(l.Code)
		s.log.Error().Err(err).Str("match", l.Code).Msg("match start failed")
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ports.SubjectMatchStarted, map[string]any{
			"code":     l.Code,
			"lobby_id": l.ID.String(),
			"seats":    len(seated),
		}); err != nil {
			s.log.Warn().Err(err).Str("match", l.Code).Msg("publish match start failed")
		}
	}

	s.log.Info().Str("match", l.Code).Int("seats", len(seated)).Msg("match started")
	return m, nil
}

// seatOrder computes the turn order. Two players: the owner goes first.
// Four players: owner, first opponent, teammate, second opponent, with
// opponents ordered by username, so teams always alternate.
func seatOrder(owner string, participants []*domain.Participant) ([]*domain.Participant, error) {
	var ownerP *domain.Participant
	for _, p := range participants {
		if p.Username == owner {
			ownerP = p
			break
		}
	}
	if ownerP == nil {
		return nil, fmt.Errorf("owner %q is not among the participants", owner)
	}

	if len(participants) == 2 {
		for _, p := range participants {
			if p != ownerP {
				return []*domain.Participant{ownerP, p}, nil
			}
		}
	}

	var teammate *domain.Participant
	var opponents []*domain.Participant
	for _, p := range participants {
		switch {
		case p == ownerP:
		case p.Team == ownerP.Team:
			teammate = p
		default:
			opponents = append(opponents, p)
		}
	}
	if teammate == nil || len(opponents) != 2 {
		return nil, fmt.Errorf("unbalanced teams for owner %q", owner)
	}
	sort.Slice(opponents, func(i, j int) bool { return opponents[i].Username < opponents[j].Username })
	return []*domain.Participant{ownerP, opponents[0], teammate, opponents[1]}, nil
}

// Package app exposes the client-facing action surface, keyed by match
// code. It enforces the one-in-flight-mutation-per-match invariant and the
// catch-all boundary that keeps panics away from the transport layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/lobby"
	"truco/internal/match"
	"truco/internal/ports"
	"truco/internal/session"
)

// ErrMatchNotFound is returned for actions against unknown match codes.
var ErrMatchNotFound = errors.New("no running match for code")

// Service routes live player actions to the correct running match.
type Service struct {
	registry *session.Registry
	coord    *lobby.Coordinator
	starter  *lobby.Starter

	// Serializes mutating calls per match code: matches are not internally
	// locked (except the end guard), the invariant lives here.
	locks sync.Map // code -> *sync.Mutex

	log zerolog.Logger
}

// NewService wires the action surface.
func NewService(registry *session.Registry, coord *lobby.Coordinator, starter *lobby.Starter, log zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		coord:    coord,
		starter:  starter,
		log:      log.With().Str("component", "app").Logger(),
	}
}

func (s *Service) codeLock(code string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(code, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// withMatch runs fn against the match for code, serialized per code, with a
// recover boundary so no panic reaches the transport. When the match ends
// inside fn its registry entry and code bookkeeping are torn down.
func (s *Service) withMatch(code string, fn func(m *match.Match) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("match", code).Interface("panic", r).Msg("action panicked")
			err = fmt.Errorf("internal error handling action for match %s", code)
		}
	}()

	mu := s.codeLock(code)
	mu.Lock()
	defer mu.Unlock()

	m, ok := s.registry.TryGet(code)
	if !ok {
		return ErrMatchNotFound
	}
	err = fn(m)
	if m.Ended() {
		s.registry.TryRemove(code)
		s.coord.RemoveCode(code)
		s.locks.Delete(code)
	}
	return err
}

// JoinLobby admits a participant to a forming lobby under the lobby's lock
// and binds their live channel to the match code.
func (s *Service) JoinLobby(ctx context.Context, l *lobby.Lobby, username string, guest bool, ch ports.Channel) error {
	mu := s.coord.LobbyLock(l.ID)
	mu.Lock()
	defer mu.Unlock()

	var team domain.Team
	if guest {
		if err := l.AdmitGuest(s.coord.GuestCount(l.Code)); err != nil {
			return err
		}
		team = l.NextTeam()
	} else {
		var err error
		team, err = l.AdmitUser(username)
		if err != nil {
			return err
		}
	}

	if err := s.coord.BindChannel(l.Code, lobby.ChannelIdentity{Username: username, Team: team}, ch); err != nil {
		return err
	}
	l.Members = append(l.Members, lobby.Member{Username: username, Team: team, Guest: guest})

	s.coord.Broadcast(l.Code, ports.Notice{Event: ports.EventPlayerJoined, Payload: map[string]any{
		"username": username,
		"team":     team.String(),
	}})
	return nil
}

// LeaveLobby releases a seat in a forming lobby and unbinds the channel.
func (s *Service) LeaveLobby(l *lobby.Lobby, username string, ch ports.Channel) {
	mu := s.coord.LobbyLock(l.ID)
	mu.Lock()
	defer mu.Unlock()

	for i, m := range l.Members {
		if m.Username == username {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			break
		}
	}
	s.coord.UnbindChannel(l.Code, ch)
	s.coord.Broadcast(l.Code, ports.Notice{Event: ports.EventPlayerLeft, Payload: map[string]any{
		"username": username,
	}})
}

// StartMatch builds and registers the match for a filled lobby.
func (s *Service) StartMatch(ctx context.Context, l *lobby.Lobby) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("match", l.Code).Interface("panic", r).Msg("start panicked")
			err = fmt.Errorf("internal error starting match %s", l.Code)
		}
	}()
	_, err = s.starter.Start(ctx, l)
	return err
}

// PlayCard plays a card for the sender in their running match.
func (s *Service) PlayCard(ctx context.Context, code string, playerID int64, card domain.Card) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.PlayCard(ctx, playerID, card)
	})
}

// CallTruco proposes a truco escalation.
func (s *Service) CallTruco(ctx context.Context, code string, playerID int64, level domain.TrucoLevel) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.CallTruco(ctx, playerID, level)
	})
}

// RespondTruco answers a pending truco proposal.
func (s *Service) RespondTruco(ctx context.Context, code string, playerID int64, accept bool) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.RespondTruco(ctx, playerID, accept)
	})
}

// CallEnvido opens or raises the envido.
func (s *Service) CallEnvido(ctx context.Context, code string, playerID int64, level domain.EnvidoLevel) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.CallEnvido(ctx, playerID, level)
	})
}

// RespondEnvido answers a pending envido call.
func (s *Service) RespondEnvido(ctx context.Context, code string, playerID int64, accept bool) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.RespondEnvido(ctx, playerID, accept)
	})
}

// CallFlor declares a flor.
func (s *Service) CallFlor(ctx context.Context, code string, playerID int64) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.CallFlor(ctx, playerID)
	})
}

// RespondFlor answers a contested flor.
func (s *Service) RespondFlor(ctx context.Context, code string, playerID int64, response match.FlorResponse) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.RespondFlor(ctx, playerID, response)
	})
}

// GoToDeck folds the sender's team for the current hand.
func (s *Service) GoToDeck(ctx context.Context, code string, playerID int64) error {
	return s.withMatch(code, func(m *match.Match) error {
		return m.GoToDeck(ctx, playerID)
	})
}

// Chat relays a message to everyone in the match.
func (s *Service) Chat(ctx context.Context, code string, from, text string) error {
	return s.withMatch(code, func(m *match.Match) error {
		m.Chat(ctx, from, text)
		return nil
	})
}

// LeaveMatch aborts a running match when a participant disconnects, in
// favor of the opposing team.
func (s *Service) LeaveMatch(ctx context.Context, code string, playerID int64) error {
	mu := s.codeLock(code)
	mu.Lock()
	defer mu.Unlock()
	if !s.registry.AbortAndRemove(ctx, code, playerID) {
		return ErrMatchNotFound
	}
	s.coord.RemoveCode(code)
	s.locks.Delete(code)
	return nil
}

package lobby

import (
	"errors"

	"github.com/google/uuid"

	"truco/internal/domain"
)

// Admission errors.
var (
	ErrLobbyClosed   = errors.New("lobby is closed")
	ErrLobbyFull     = errors.New("lobby is at capacity")
	ErrLobbyPrivate  = errors.New("lobby is not public")
	ErrAlreadySeated = errors.New("user already holds a seat in this lobby")
	ErrBadCapacity   = errors.New("lobby capacity must be 2 or 4")
)

// Member is a seated lobby participant.
type Member struct {
	Username string
	Team     domain.Team
	Guest    bool
}

// Lobby is the engine's view of a formed (or forming) lobby. Persistence of
// lobbies themselves lives behind the external collaborators; the engine
// works with this snapshot plus the coordinator's in-memory guest count.
type Lobby struct {
	ID       uuid.UUID
	Code     string
	Owner    string
	Capacity int
	Public   bool
	Closed   bool
	Members  []Member
}

// Seated reports whether a username already holds a seat.
func (l *Lobby) Seated(username string) bool {
	for _, m := range l.Members {
		if m.Username == username {
			return true
		}
	}
	return false
}

// teamCounts tallies seats per team.
func (l *Lobby) teamCounts() (team1, team2 int) {
	for _, m := range l.Members {
		switch m.Team {
		case domain.Team1:
			team1++
		case domain.Team2:
			team2++
		}
	}
	return team1, team2
}

// AdmitGuest decides whether an unregistered participant may take a seat.
// inMemoryGuests is the coordinator's count of guests already attached to
// the code, which is authoritative for guest seats; only registered members
// count on top of it. The caller holds the lobby's lock.
func (l *Lobby) AdmitGuest(inMemoryGuests int) error {
	if l.Closed {
		return ErrLobbyClosed
	}
	if !l.Public {
		return ErrLobbyPrivate
	}
	registered := 0
	for _, m := range l.Members {
		if !m.Guest {
			registered++
		}
	}
	if registered+inMemoryGuests >= l.Capacity {
		return ErrLobbyFull
	}
	return nil
}

// AdmitUser decides whether a registered user may take a seat and assigns a
// team by simple balancing. The caller holds the lobby's lock.
func (l *Lobby) AdmitUser(username string) (domain.Team, error) {
	if l.Closed {
		return domain.TeamNone, ErrLobbyClosed
	}
	if l.Seated(username) {
		return domain.TeamNone, ErrAlreadySeated
	}
	if len(l.Members) >= l.Capacity {
		return domain.TeamNone, ErrLobbyFull
	}
	return l.NextTeam(), nil
}

// NextTeam picks the seat's team by simple balancing: the first seat gets
// Team1, later seats alternate toward the less-populated team.
func (l *Lobby) NextTeam() domain.Team {
	team1, team2 := l.teamCounts()
	if team2 < team1 {
		return domain.Team2
	}
	return domain.Team1
}

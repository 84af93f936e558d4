package lobby

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/session"
)

type stubUsers struct {
	ids map[string]int64
}

func (u stubUsers) LookupID(_ context.Context, username string) (int64, error) {
	id, ok := u.ids[username]
	if !ok {
		return 0, fmt.Errorf("no such user %q", username)
	}
	return id, nil
}

type stubStore struct{}

func (stubStore) SaveMatch(context.Context, string, string, []domain.Participant) (int64, error) {
	return 11, nil
}

func (stubStore) SaveResult(context.Context, int64, domain.Team, int, int) error { return nil }

func TestGuestIDIsNegativeAndStable(t *testing.T) {
	a := GuestID(GuestPrefix + "visitor")
	b := GuestID(GuestPrefix + "visitor")
	if a >= 0 {
		t.Fatalf("guest id = %d, want negative", a)
	}
	if a != b {
		t.Fatalf("guest id unstable: %d vs %d", a, b)
	}
	if GuestID(GuestPrefix+"other") == a {
		t.Fatal("distinct usernames should not collide")
	}
}

func TestSeatOrderAlternatesTeams(t *testing.T) {
	owner := &domain.Participant{ID: 1, Username: "ana", Team: domain.Team1}
	mate := &domain.Participant{ID: 2, Username: "bruno", Team: domain.Team1}
	opp1 := &domain.Participant{ID: 3, Username: "zoe", Team: domain.Team2}
	opp2 := &domain.Participant{ID: 4, Username: "carla", Team: domain.Team2}

	seated, err := seatOrder("ana", []*domain.Participant{opp1, mate, owner, opp2})
	if err != nil {
		t.Fatalf("seat order: %v", err)
	}
	// Owner leads, opponents by username, teammate between them.
	want := []string{"ana", "carla", "bruno", "zoe"}
	for i, p := range seated {
		if p.Username != want[i] {
			t.Fatalf("seat %d = %s, want %s", i, p.Username, want[i])
		}
	}
	for i, p := range seated {
		if next := seated[(i+1)%len(seated)]; next.Team == p.Team {
			t.Fatalf("seats %d and %d share a team", i, i+1)
		}
	}
}

func newStarterFixture(t *testing.T) (*Starter, *Coordinator, *session.Registry) {
	t.Helper()
	coord := NewCoordinator(zerolog.Nop())
	registry := session.NewRegistry(zerolog.Nop())
	users := stubUsers{ids: map[string]int64{"ana": 10, "bruno": 20}}
	s := NewStarter(coord, registry, users, stubStore{}, nil, zerolog.Nop())
	s.shuffler = func([]domain.Card) {}
	return s, coord, registry
}

func TestStartRegistersRunningMatch(t *testing.T) {
	s, coord, registry := newStarterFixture(t)
	l := &Lobby{ID: uuid.New(), Code: "AAAAAA", Owner: "ana", Capacity: 2, Public: true}
	l.Members = []Member{
		{Username: "ana", Team: domain.Team1},
		{Username: GuestPrefix + "visitor", Team: domain.Team2, Guest: true},
	}
	_ = coord.RegisterCode(l.Code, l.ID)
	_ = coord.BindChannel(l.Code, ChannelIdentity{Username: "ana", Team: domain.Team1}, &stubChannel{})
	_ = coord.BindChannel(l.Code, ChannelIdentity{Username: GuestPrefix + "visitor", Team: domain.Team2}, &stubChannel{})

	m, err := s.Start(context.Background(), l)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := registry.TryGet(l.Code); !ok {
		t.Fatal("match not registered under its code")
	}

	seats := m.Participants()
	if seats[0].Username != "ana" || seats[0].ID != 10 {
		t.Fatalf("seat 0 = %s/%d, want owner ana/10", seats[0].Username, seats[0].ID)
	}
	if seats[1].ID >= 0 {
		t.Fatalf("guest seat id = %d, want negative", seats[1].ID)
	}
	for _, p := range seats {
		if len(p.Hand) != domain.HandSize {
			t.Fatalf("seat %s has %d cards, want %d", p.Username, len(p.Hand), domain.HandSize)
		}
	}

	// The started lobby is closed: no late seats, no second start.
	if !l.Closed {
		t.Fatal("lobby should be closed after start")
	}
	if _, err := l.AdmitUser("bruno"); err != ErrLobbyClosed {
		t.Fatalf("late join error = %v, want %v", err, ErrLobbyClosed)
	}
	if _, err := s.Start(context.Background(), l); err != ErrLobbyClosed {
		t.Fatalf("second start error = %v, want %v", err, ErrLobbyClosed)
	}
}

func TestStartRequiresFullLobby(t *testing.T) {
	s, _, _ := newStarterFixture(t)
	l := &Lobby{ID: uuid.New(), Code: "AAAAAA", Owner: "ana", Capacity: 2, Public: true}
	l.Members = []Member{{Username: "ana", Team: domain.Team1}}

	if _, err := s.Start(context.Background(), l); err == nil {
		t.Fatal("expected error for half-filled lobby")
	}

	l.Capacity = 3
	l.Members = append(l.Members, Member{Username: "bruno", Team: domain.Team2},
		Member{Username: "carla", Team: domain.Team1})
	if _, err := s.Start(context.Background(), l); err != ErrBadCapacity {
		t.Fatalf("capacity error = %v, want %v", err, ErrBadCapacity)
	}
}

func TestStartFailsWhenChannelMissing(t *testing.T) {
	s, coord, registry := newStarterFixture(t)
	l := &Lobby{ID: uuid.New(), Code: "AAAAAA", Owner: "ana", Capacity: 2, Public: true}
	l.Members = []Member{
		{Username: "ana", Team: domain.Team1},
		{Username: "bruno", Team: domain.Team2},
	}
	_ = coord.RegisterCode(l.Code, l.ID)
	_ = coord.BindChannel(l.Code, ChannelIdentity{Username: "ana", Team: domain.Team1}, &stubChannel{})

	if _, err := s.Start(context.Background(), l); err == nil {
		t.Fatal("expected error when a seat has no live channel")
	}
	if registry.Len() != 0 {
		t.Fatalf("registry len = %d, want 0 after failed start", registry.Len())
	}
	// A failed start reopens the lobby for another attempt.
	if l.Closed {
		t.Fatal("lobby should be reopened after failed start")
	}
}

package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/lobby"
	"truco/internal/ports"
	"truco/internal/session"
)

type stubChannel struct {
	name string
}

func (*stubChannel) Send(context.Context, ports.Notice) error { return nil }
func (*stubChannel) State() ports.ChannelState                { return ports.ChannelOpen }

func newStubChannel() *stubChannel { return &stubChannel{} }

type stubStore struct{}

func (stubStore) SaveMatch(context.Context, string, string, []domain.Participant) (int64, error) {
	return 5, nil
}

func (stubStore) SaveResult(context.Context, int64, domain.Team, int, int) error { return nil }

type stubUsers struct{}

func (stubUsers) LookupID(_ context.Context, username string) (int64, error) {
	return 0, fmt.Errorf("no such user %q", username)
}

func newFixture(t *testing.T) (*Service, *lobby.Coordinator, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(zerolog.Nop())
	coord := lobby.NewCoordinator(zerolog.Nop())
	starter := lobby.NewStarter(coord, registry, stubUsers{}, stubStore{}, nil, zerolog.Nop())
	return NewService(registry, coord, starter, zerolog.Nop()), coord, registry
}

func TestActionsOnUnknownCode(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	if err := svc.PlayCard(ctx, "NOPE01", 1, domain.Card{Rank: 1, Suit: domain.Sword}); err != ErrMatchNotFound {
		t.Fatalf("play error = %v, want %v", err, ErrMatchNotFound)
	}
	if err := svc.CallTruco(ctx, "NOPE01", 1, domain.TrucoCalled); err != ErrMatchNotFound {
		t.Fatalf("truco error = %v, want %v", err, ErrMatchNotFound)
	}
	if err := svc.LeaveMatch(ctx, "NOPE01", 1); err != ErrMatchNotFound {
		t.Fatalf("leave error = %v, want %v", err, ErrMatchNotFound)
	}
}

func TestJoinLobbyAdmitsGuestsUpToCapacity(t *testing.T) {
	svc, coord, _ := newFixture(t)
	ctx := context.Background()

	l := &lobby.Lobby{ID: uuid.New(), Code: "AAAAAA", Owner: lobby.GuestPrefix + "ana", Capacity: 2, Public: true}
	if err := coord.RegisterCode(l.Code, l.ID); err != nil {
		t.Fatalf("register code: %v", err)
	}

	if err := svc.JoinLobby(ctx, l, lobby.GuestPrefix+"ana", true, newStubChannel()); err != nil {
		t.Fatalf("join owner: %v", err)
	}
	if err := svc.JoinLobby(ctx, l, lobby.GuestPrefix+"bruno", true, newStubChannel()); err != nil {
		t.Fatalf("join second: %v", err)
	}
	if err := svc.JoinLobby(ctx, l, lobby.GuestPrefix+"carla", true, newStubChannel()); err != lobby.ErrLobbyFull {
		t.Fatalf("third join error = %v, want %v", err, lobby.ErrLobbyFull)
	}

	if len(l.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(l.Members))
	}
	if l.Members[0].Team == l.Members[1].Team {
		t.Fatal("both seats on the same team")
	}
	if n := coord.GuestCount(l.Code); n != 2 {
		t.Fatalf("guest count = %d, want 2", n)
	}
}

func TestStartPlayAndLeaveMatch(t *testing.T) {
	svc, coord, registry := newFixture(t)
	ctx := context.Background()

	l := &lobby.Lobby{ID: uuid.New(), Code: "AAAAAA", Owner: lobby.GuestPrefix + "ana", Capacity: 2, Public: true}
	_ = coord.RegisterCode(l.Code, l.ID)
	_ = svc.JoinLobby(ctx, l, lobby.GuestPrefix+"ana", true, newStubChannel())
	_ = svc.JoinLobby(ctx, l, lobby.GuestPrefix+"bruno", true, newStubChannel())

	if err := svc.StartMatch(ctx, l); err != nil {
		t.Fatalf("start match: %v", err)
	}
	m, ok := registry.TryGet(l.Code)
	if !ok {
		t.Fatal("match not registered after start")
	}

	// The owner leads the first hand.
	owner := m.Participants()[0]
	if err := svc.PlayCard(ctx, l.Code, owner.ID, owner.Hand[0]); err != nil {
		t.Fatalf("play card: %v", err)
	}

	if err := svc.LeaveMatch(ctx, l.Code, owner.ID); err != nil {
		t.Fatalf("leave match: %v", err)
	}
	if !m.Ended() {
		t.Fatal("match should be aborted after leave")
	}
	if err := svc.PlayCard(ctx, l.Code, owner.ID, domain.Card{Rank: 1, Suit: domain.Sword}); err != ErrMatchNotFound {
		t.Fatalf("post-leave play error = %v, want %v", err, ErrMatchNotFound)
	}
	if _, err := coord.LobbyID(l.Code); err != lobby.ErrUnknownCode {
		t.Fatalf("code should be released, got %v", err)
	}
}

package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/match"
	"truco/internal/ports"
)

type nopChannel struct{}

func (nopChannel) Send(context.Context, ports.Notice) error { return nil }
func (nopChannel) State() ports.ChannelState                { return ports.ChannelOpen }

type nopStore struct{}

func (nopStore) SaveMatch(context.Context, string, string, []domain.Participant) (int64, error) {
	return 1, nil
}

func (nopStore) SaveResult(context.Context, int64, domain.Team, int, int) error { return nil }

func testMatch(t *testing.T, code string) *match.Match {
	t.Helper()
	m, err := match.New(match.Config{
		Code: code,
		Participants: []*domain.Participant{
			{ID: 1, Username: "ana", Team: domain.Team1},
			{ID: 2, Username: "bruno", Team: domain.Team2},
		},
		Channels: map[int64]ports.Channel{1: nopChannel{}, 2: nopChannel{}},
		Store:    nopStore{},
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	return m
}

func TestTryAddRejectsDuplicateCode(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	if !r.TryAdd("AAAAAA", testMatch(t, "AAAAAA")) {
		t.Fatal("first add should succeed")
	}
	if r.TryAdd("AAAAAA", testMatch(t, "AAAAAA")) {
		t.Fatal("duplicate add should fail")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestTryGetAfterRemove(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.TryAdd("BBBBBB", testMatch(t, "BBBBBB"))

	if _, ok := r.TryGet("BBBBBB"); !ok {
		t.Fatal("expected match for registered code")
	}
	if !r.TryRemove("BBBBBB") {
		t.Fatal("remove should succeed")
	}
	if _, ok := r.TryGet("BBBBBB"); ok {
		t.Fatal("expected no match after removal")
	}
	if r.TryRemove("BBBBBB") {
		t.Fatal("second remove should report absence")
	}
}

func TestAbortAndRemoveEndsTheMatch(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	m := testMatch(t, "CCCCCC")
	r.TryAdd("CCCCCC", m)

	if !r.AbortAndRemove(context.Background(), "CCCCCC", 1) {
		t.Fatal("abort should succeed for registered code")
	}
	if !m.Ended() {
		t.Fatal("match should be ended after abort")
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d, want 0", r.Len())
	}
	if r.AbortAndRemove(context.Background(), "CCCCCC", 1) {
		t.Fatal("abort of unknown code should fail")
	}
}

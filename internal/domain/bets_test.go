package domain

import (
	"errors"
	"testing"
)

func TestTrucoEscalation(t *testing.T) {
	var b TrucoBet

	// Skipping straight to retruco from none is rejected.
	if err := b.Call(Retruco, 1, 2); !errors.Is(err, ErrInvalidEscalation) {
		t.Fatalf("skip call err = %v, want ErrInvalidEscalation", err)
	}
	if b.Level != TrucoNone || b.Pending() {
		t.Fatal("state changed by rejected call")
	}

	if err := b.Call(TrucoCalled, 1, 2); err != nil {
		t.Fatalf("truco call error: %v", err)
	}
	if err := b.Call(Retruco, 1, 2); !errors.Is(err, ErrBetPending) {
		t.Fatalf("double call err = %v, want ErrBetPending", err)
	}
	if err := b.Accept(99); !errors.Is(err, ErrNotBetResponder) {
		t.Fatalf("wrong responder err = %v, want ErrNotBetResponder", err)
	}
	if err := b.Accept(2); err != nil {
		t.Fatalf("accept error: %v", err)
	}
	if b.Level != TrucoCalled || b.Pending() {
		t.Fatalf("level = %v pending = %v after accept", b.Level, b.Pending())
	}

	// Reject pays the level that stood before the proposal.
	if err := b.Call(Retruco, 2, 1); err != nil {
		t.Fatalf("retruco call error: %v", err)
	}
	points, err := b.Reject(1)
	if err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if points != 2 {
		t.Fatalf("reject points = %d, want 2", points)
	}
}

func TestTrucoLevelPoints(t *testing.T) {
	want := map[TrucoLevel]int{TrucoNone: 1, TrucoCalled: 2, Retruco: 3, ValeCuatro: 4}
	for level, points := range want {
		if got := level.Points(); got != points {
			t.Errorf("%v.Points() = %d, want %d", level, got, points)
		}
	}
}

func TestEnvidoPot(t *testing.T) {
	var b EnvidoBet
	if err := b.Call(Envido, 1, 2, 2); err != nil {
		t.Fatalf("envido call error: %v", err)
	}
	// Responder raises: implicit accept plus three more in the pot.
	if err := b.Call(RealEnvido, 2, 1, 3); err != nil {
		t.Fatalf("real envido raise error: %v", err)
	}
	if b.Pot != 5 {
		t.Fatalf("pot = %d, want 5", b.Pot)
	}
	pot, err := b.Accept(1)
	if err != nil {
		t.Fatalf("accept error: %v", err)
	}
	if pot != 5 {
		t.Fatalf("accepted pot = %d, want 5", pot)
	}

	// The track is a one-shot per hand.
	if err := b.Call(FaltaEnvido, 1, 2, 30); !errors.Is(err, ErrBetAlreadyPlayed) {
		t.Fatalf("replay err = %v, want ErrBetAlreadyPlayed", err)
	}
}

func TestEnvidoReject(t *testing.T) {
	var b EnvidoBet
	if err := b.Call(Envido, 1, 2, 2); err != nil {
		t.Fatalf("call error: %v", err)
	}
	points, err := b.Reject(2)
	if err != nil {
		t.Fatalf("reject error: %v", err)
	}
	// Pot 2 minus last raise 2, floored at one point.
	if points != 1 {
		t.Fatalf("reject points = %d, want 1", points)
	}

	var chained EnvidoBet
	if err := chained.Call(Envido, 1, 2, 2); err != nil {
		t.Fatal(err)
	}
	if err := chained.Call(FaltaEnvido, 2, 1, 17); err != nil {
		t.Fatal(err)
	}
	points, err = chained.Reject(1)
	if err != nil {
		t.Fatalf("reject error: %v", err)
	}
	// Falta overrode the pot to 17; rejecting pays what stood before it.
	if points != 2 {
		t.Fatalf("reject points = %d, want 2", points)
	}
}

func TestEnvidoRaiseByOutsiderRejected(t *testing.T) {
	var b EnvidoBet
	if err := b.Call(Envido, 1, 2, 2); err != nil {
		t.Fatal(err)
	}
	if err := b.Call(RealEnvido, 3, 1, 3); !errors.Is(err, ErrBetPending) {
		t.Fatalf("outsider raise err = %v, want ErrBetPending", err)
	}
}

func TestFlorTrack(t *testing.T) {
	var b FlorBet
	if err := b.Call(1, 2, true); err != nil {
		t.Fatalf("flor call error: %v", err)
	}
	if !b.Pending() {
		t.Fatal("contested flor should await a response")
	}
	points, err := b.Reject(2)
	if err != nil {
		t.Fatalf("reject error: %v", err)
	}
	if points != FlorPoints {
		t.Fatalf("reject points = %d, want %d", points, FlorPoints)
	}
	if err := b.Call(1, 2, false); !errors.Is(err, ErrBetAlreadyPlayed) {
		t.Fatalf("second flor err = %v, want ErrBetAlreadyPlayed", err)
	}

	var c FlorBet
	if err := c.Call(5, 6, true); err != nil {
		t.Fatal(err)
	}
	if err := c.Escalate(6); err != nil {
		t.Fatalf("escalate error: %v", err)
	}
	if c.Level != ContraFlor || c.Pending() {
		t.Fatalf("level = %v pending = %v after contra flor", c.Level, c.Pending())
	}
}

package lobby

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/ports"
)

type stubChannel struct {
	state ports.ChannelState
}

func (c *stubChannel) Send(context.Context, ports.Notice) error { return nil }
func (c *stubChannel) State() ports.ChannelState                { return c.state }

func TestNewMatchCodeShape(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	code, err := c.NewMatchCode()
	if err != nil {
		t.Fatalf("new code: %v", err)
	}
	if len(code) != matchCodeLen {
		t.Fatalf("code length = %d, want %d", len(code), matchCodeLen)
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", code, r)
		}
	}
}

func TestRegisterCodeRejectsDuplicates(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	id := uuid.New()
	if err := c.RegisterCode("AAAAAA", id); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.RegisterCode("AAAAAA", uuid.New()); err != ErrCodeTaken {
		t.Fatalf("duplicate register error = %v, want %v", err, ErrCodeTaken)
	}
	got, err := c.LobbyID("AAAAAA")
	if err != nil || got != id {
		t.Fatalf("lobby id = %v (%v), want %v", got, err, id)
	}
	if _, err := c.LobbyID("ZZZZZZ"); err != ErrUnknownCode {
		t.Fatalf("unknown code error = %v, want %v", err, ErrUnknownCode)
	}
}

func TestBindChannelRejectsSameChannelTwice(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	ch := &stubChannel{}
	identity := ChannelIdentity{Username: "ana", Team: domain.Team1}

	if err := c.BindChannel("AAAAAA", identity, ch); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := c.BindChannel("AAAAAA", identity, ch); err != ErrDuplicateChannel {
		t.Fatalf("rebind error = %v, want %v", err, ErrDuplicateChannel)
	}
	if got, ok := c.IdentityFor(ch); !ok || got.Username != "ana" {
		t.Fatalf("identity = %+v (%v), want ana", got, ok)
	}

	c.UnbindChannel("AAAAAA", ch)
	if _, ok := c.IdentityFor(ch); ok {
		t.Fatal("identity should be gone after unbind")
	}
	if n := len(c.Channels("AAAAAA")); n != 0 {
		t.Fatalf("channels = %d, want 0", n)
	}
}

func TestPruneClosedDropsDeadChannels(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	open := &stubChannel{state: ports.ChannelOpen}
	closed := &stubChannel{state: ports.ChannelClosed}
	_ = c.BindChannel("AAAAAA", ChannelIdentity{Username: "ana"}, open)
	_ = c.BindChannel("AAAAAA", ChannelIdentity{Username: "bruno"}, closed)

	if n := c.PruneClosed("AAAAAA"); n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if n := len(c.Channels("AAAAAA")); n != 1 {
		t.Fatalf("channels = %d, want 1", n)
	}
	if _, ok := c.IdentityFor(closed); ok {
		t.Fatal("pruned channel should lose its identity")
	}
}

func TestGuestCountUsesUsernamePrefix(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	_ = c.BindChannel("AAAAAA", ChannelIdentity{Username: "ana"}, &stubChannel{})
	_ = c.BindChannel("AAAAAA", ChannelIdentity{Username: GuestPrefix + "visitor"}, &stubChannel{})

	if n := c.GuestCount("AAAAAA"); n != 1 {
		t.Fatalf("guest count = %d, want 1", n)
	}
}

func TestRemoveCodeClearsAllState(t *testing.T) {
	c := NewCoordinator(zerolog.Nop())
	ch := &stubChannel{}
	_ = c.RegisterCode("AAAAAA", uuid.New())
	_ = c.BindChannel("AAAAAA", ChannelIdentity{Username: "ana"}, ch)

	c.RemoveCode("AAAAAA")
	if _, err := c.LobbyID("AAAAAA"); err != ErrUnknownCode {
		t.Fatalf("lobby id error = %v, want %v", err, ErrUnknownCode)
	}
	if n := len(c.Channels("AAAAAA")); n != 0 {
		t.Fatalf("channels = %d, want 0", n)
	}
	if _, ok := c.IdentityFor(ch); ok {
		t.Fatal("identity should be gone after code removal")
	}
}

package ports

import "context"

// ChannelState describes the health of a live client channel.
type ChannelState int

const (
	ChannelOpen ChannelState = iota
	ChannelClosed
	ChannelFaulted
)

func (s ChannelState) String() string {
	switch s {
	case ChannelOpen:
		return "open"
	case ChannelClosed:
		return "closed"
	default:
		return "faulted"
	}
}

// Notice is a single server-to-client notification.
type Notice struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Notification event names carried on channels.
const (
	EventCardsDealt     = "cards_dealt"
	EventCardPlayed     = "card_played"
	EventTurnChanged    = "turn_changed"
	EventScoreUpdated   = "score_updated"
	EventTrucoCalled    = "truco_called"
	EventTrucoResponse  = "truco_response"
	EventEnvidoCalled   = "envido_called"
	EventEnvidoResponse = "envido_response"
	EventFlorCalled     = "flor_called"
	EventFlorResponse   = "flor_response"
	EventRoundEnded     = "round_ended"
	EventHandEnded      = "hand_ended"
	EventMatchStarted   = "match_started"
	EventMatchEnded     = "match_ended"
	EventPlayerJoined   = "player_joined"
	EventPlayerLeft     = "player_left"
	EventChat           = "chat"
)

// Channel is a live, fire-and-forget notification path to one client.
// Senders check State before attempting delivery and prune non-open
// channels lazily; Send errors are logged, never surfaced to gameplay.
type Channel interface {
	Send(ctx context.Context, n Notice) error
	State() ChannelState
}

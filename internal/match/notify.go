package match

import (
	"context"
	"time"

	"truco/internal/domain"
	"truco/internal/ports"
)

// sendTimeout bounds a single fire-and-forget delivery attempt.
const sendTimeout = 5 * time.Second

// broadcast fans a notice out to every bound channel as independent
// fire-and-forget units. A broken channel is logged and skipped; it never
// blocks or drops delivery to the remaining channels.
func (m *Match) broadcast(_ context.Context, n ports.Notice) {
	for id, ch := range m.channels {
		if ch.State() != ports.ChannelOpen {
			m.log.Debug().Int64("player", id).Str("state", ch.State().String()).
				Msg("skipping non-open channel")
			continue
		}
		go deliver(m, id, ch, n)
	}
}

// sendTo delivers a notice to a single participant's channel.
func (m *Match) sendTo(_ context.Context, playerID int64, n ports.Notice) {
	ch, ok := m.channels[playerID]
	if !ok {
		m.log.Warn().Int64("player", playerID).Msg("no channel bound for participant")
		return
	}
	if ch.State() != ports.ChannelOpen {
		m.log.Debug().Int64("player", playerID).Str("state", ch.State().String()).
			Msg("skipping non-open channel")
		return
	}
	go deliver(m, playerID, ch, n)
}

// deliver runs detached from the originating request so a stalled channel
// cannot hold up gameplay. Failures are point-in-time best effort.
func deliver(m *Match, playerID int64, ch ports.Channel, n ports.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := ch.Send(ctx, n); err != nil {
		m.log.Warn().Err(err).Int64("player", playerID).Str("event", n.Event).
			Msg("notification delivery failed")
	}
}

func (m *Match) broadcastTurn(ctx context.Context) {
	p := m.players[m.turn]
	m.broadcast(ctx, ports.Notice{Event: ports.EventTurnChanged, Payload: playerPayload{
		PlayerID: p.ID,
		Username: p.Username,
	}})
}

func cardKeys(cards []domain.Card) []string {
	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = c.Key()
	}
	return keys
}

type cardsDealtPayload struct {
	Cards []string `json:"cards"`
}

type playerPayload struct {
	PlayerID int64  `json:"player_id"`
	Username string `json:"username"`
}

type cardPlayedPayload struct {
	PlayerID int64  `json:"player_id"`
	Card     string `json:"card"`
	Round    int    `json:"round"`
}

type roundEndedPayload struct {
	Round  int    `json:"round"`
	Winner string `json:"winner"` // "none" for a drawn round
}

type handEndedPayload struct {
	Winner string `json:"winner"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

type scorePayload struct {
	Team1  int    `json:"team1"`
	Team2  int    `json:"team2"`
	Reason string `json:"reason"`
}

type betCallPayload struct {
	PlayerID int64  `json:"player_id"`
	Call     string `json:"call"`
	Pot      int    `json:"pot,omitempty"`
}

type betResponsePayload struct {
	PlayerID int64  `json:"player_id"`
	Response string `json:"response"`
	Winner   string `json:"winner,omitempty"`
	Points   int    `json:"points,omitempty"`
}

type matchEndedPayload struct {
	Code        string `json:"code"`
	Winner      string `json:"winner"`
	WinnerScore int    `json:"winner_score"`
	LoserScore  int    `json:"loser_score"`
}

type chatPayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

package match

import (
	"context"

	"truco/internal/domain"
	"truco/internal/ports"
)

// PlayCard moves a card from the caller's hand to the table and resolves the
// round once every seat has played.
func (m *Match) PlayCard(ctx context.Context, playerID int64, card domain.Card) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if m.flor.Pending() || m.envido.Pending() {
		return domain.ErrBetPending
	}
	switch m.state {
	case StateEnvido, StateTruco, StateFlor:
	default:
		return ErrWrongState
	}
	p := m.playerByID(playerID)
	if p == nil {
		return ErrUnknownParticipant
	}
	if m.players[m.turn].ID != playerID {
		return ErrNotYourTurn
	}
	if !p.RemoveCard(card) {
		return ErrCardNotInHand
	}

	play := playedCard{PlayerID: playerID, Card: card}
	m.table = append(m.table, play)
	m.roundPlays = append(m.roundPlays, play)
	m.anyCardPlayed = true

	m.broadcast(ctx, ports.Notice{Event: ports.EventCardPlayed, Payload: cardPlayedPayload{
		PlayerID: playerID,
		Card:     card.Key(),
		Round:    m.roundIdx + 1,
	}})

	if len(m.roundPlays) == len(m.players) {
		m.resolveRound(ctx)
		return nil
	}

	m.turn = (m.turn + 1) % len(m.players)
	m.broadcastTurn(ctx)
	return nil
}

// resolveRound compares the two teams' best cards. An exact tie between the
// contenders' top cards voids the round: no winner is recorded.
func (m *Match) resolveRound(ctx context.Context) {
	best := map[domain.Team]playedCard{}
	for _, play := range m.roundPlays {
		team := m.teamOf(play.PlayerID)
		cur, ok := best[team]
		if !ok || domain.CompareCards(play.Card, cur.Card) > 0 {
			best[team] = play
		}
	}

	winner := domain.TeamNone
	b1, b2 := best[domain.Team1], best[domain.Team2]
	switch domain.CompareCards(b1.Card, b2.Card) {
	case 1:
		winner = domain.Team1
	case -1:
		winner = domain.Team2
	}

	m.roundWins[m.roundIdx] = winner
	m.broadcast(ctx, ports.Notice{Event: ports.EventRoundEnded, Payload: roundEndedPayload{
		Round:  m.roundIdx + 1,
		Winner: winner.String(),
	}})
	m.roundIdx++
	m.roundPlays = m.roundPlays[:0]

	// The winning card leads the next round; a drawn round leaves the lead
	// with the hand starter.
	switch winner {
	case domain.Team1:
		m.turn = m.playerIndex(b1.PlayerID)
	case domain.Team2:
		m.turn = m.playerIndex(b2.PlayerID)
	default:
		m.turn = m.handStarter
	}

	// The envido window closes once the first round is complete.
	if m.state == StateEnvido && !m.envido.Pending() {
		m.state = StateTruco
	}

	if winner, over := m.handOutcome(); over {
		m.endHand(ctx, winner, m.truco.Level.Points(), "rounds")
		return
	}
	m.broadcastTurn(ctx)
}

// handOutcome decides whether the hand is finished and who takes it.
//
// The hand ends when a team reaches two round wins, when one team holds the
// only win alongside a drawn round, or after three rounds. On tied win
// counts the first non-drawn round decides; a hand whose relevant rounds
// were all drawn awards no points.
func (m *Match) handOutcome() (domain.Team, bool) {
	var wins [3]int // indexed by Team
	draws := 0
	for i := 0; i < m.roundIdx; i++ {
		if w := m.roundWins[i]; w == domain.TeamNone {
			draws++
		} else {
			wins[w]++
		}
	}

	over := false
	switch {
	case wins[domain.Team1] == 2 || wins[domain.Team2] == 2:
		over = true
	case draws > 0 && wins[domain.Team1]+wins[domain.Team2] == 1:
		// One decided round plus a draw settles the hand early.
		over = true
	case m.roundIdx >= 3:
		over = true
	}
	if !over {
		return domain.TeamNone, false
	}

	switch {
	case wins[domain.Team1] > wins[domain.Team2]:
		return domain.Team1, true
	case wins[domain.Team2] > wins[domain.Team1]:
		return domain.Team2, true
	}
	// Tied on wins: the earliest decided round is the tie-break.
	for i := 0; i < m.roundIdx; i++ {
		if w := m.roundWins[i]; w != domain.TeamNone {
			return w, true
		}
	}
	// Every played round was a draw; nobody takes the hand.
	return domain.TeamNone, true
}

// endHand awards the stake, then either finishes the match or deals the
// next hand.
func (m *Match) endHand(ctx context.Context, winner domain.Team, points int, reason string) {
	m.state = StateHandEnd
	if winner == domain.TeamNone {
		points = 0
		m.log.Info().Str("reason", reason).Msg("hand drawn, no points awarded")
	}
	m.broadcast(ctx, ports.Notice{Event: ports.EventHandEnded, Payload: handEndedPayload{
		Winner: winner.String(),
		Points: points,
		Reason: reason,
	}})
	if winner != domain.TeamNone {
		if m.awardPoints(ctx, winner, points, reason) {
			return
		}
	}
	if m.Ended() {
		return
	}
	m.startNewHand(ctx)
}

// GoToDeck folds the caller's team, conceding the standing truco stake to
// the opponents and ending the hand immediately.
func (m *Match) GoToDeck(ctx context.Context, playerID int64) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	switch m.state {
	case StateEnvido, StateTruco, StateFlor:
	default:
		return ErrWrongState
	}
	p := m.playerByID(playerID)
	if p == nil {
		return ErrUnknownParticipant
	}
	m.envido.Cancel()
	m.endHand(ctx, p.Team.Opponent(), m.truco.Level.Points(), "fold")
	return nil
}

// Chat relays a message to every bound channel.
func (m *Match) Chat(ctx context.Context, from, text string) {
	m.broadcast(ctx, ports.Notice{Event: ports.EventChat, Payload: chatPayload{
		From: from,
		Text: text,
	}})
}

package match

import (
	"context"

	"truco/internal/domain"
	"truco/internal/ports"
)

// CallTruco proposes the next truco escalation step. When the awaited
// responder answers with the next step instead of accept/reject, the
// standing proposal is committed and the call recurses as a counter-raise.
func (m *Match) CallTruco(ctx context.Context, playerID int64, level domain.TrucoLevel) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if m.state != StateEnvido && m.state != StateTruco {
		return ErrWrongState
	}
	if m.envido.Pending() || m.flor.Pending() {
		return domain.ErrBetPending
	}
	if m.playerByID(playerID) == nil {
		return ErrUnknownParticipant
	}
	if m.truco.Pending() {
		if playerID != m.truco.ResponderID || level != m.truco.Proposed()+1 {
			return domain.ErrBetPending
		}
		// Counter-raise: answering with the next step accepts the standing
		// proposal first.
		if err := m.truco.Accept(playerID); err != nil {
			return err
		}
		m.broadcast(ctx, ports.Notice{Event: ports.EventTrucoResponse, Payload: betResponsePayload{
			PlayerID: playerID,
			Response: "accept",
		}})
	}

	responder, err := m.nextOpponentOf(playerID)
	if err != nil {
		return err
	}
	if err := m.truco.Call(level, playerID, responder); err != nil {
		return err
	}
	m.broadcast(ctx, ports.Notice{Event: ports.EventTrucoCalled, Payload: betCallPayload{
		PlayerID: playerID,
		Call:     level.String(),
	}})
	return nil
}

// RespondTruco accepts or rejects a pending truco proposal. Rejecting pays
// the caller's team the stake that stood before the proposal and ends the
// hand immediately.
func (m *Match) RespondTruco(ctx context.Context, playerID int64, accept bool) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if accept {
		if err := m.truco.Accept(playerID); err != nil {
			return err
		}
		m.broadcast(ctx, ports.Notice{Event: ports.EventTrucoResponse, Payload: betResponsePayload{
			PlayerID: playerID,
			Response: "accept",
		}})
		return nil
	}

	points, err := m.truco.Reject(playerID)
	if err != nil {
		return err
	}
	callerTeam := m.teamOf(m.truco.CallerID)
	m.broadcast(ctx, ports.Notice{Event: ports.EventTrucoResponse, Payload: betResponsePayload{
		PlayerID: playerID,
		Response: "reject",
		Winner:   callerTeam.String(),
		Points:   points,
	}})
	m.endHand(ctx, callerTeam, points, "truco_rejected")
	return nil
}

// CallEnvido opens or raises the envido while the envido window is open.
func (m *Match) CallEnvido(ctx context.Context, playerID int64, level domain.EnvidoLevel) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if m.state != StateEnvido {
		return ErrWrongState
	}
	if m.truco.Pending() || m.flor.Pending() {
		return domain.ErrBetPending
	}
	if m.playerByID(playerID) == nil {
		return ErrUnknownParticipant
	}
	responder, err := m.nextOpponentOf(playerID)
	if err != nil {
		return err
	}
	if err := m.envido.Call(level, playerID, responder, m.envidoStake(level)); err != nil {
		return err
	}
	m.broadcast(ctx, ports.Notice{Event: ports.EventEnvidoCalled, Payload: betCallPayload{
		PlayerID: playerID,
		Call:     level.String(),
		Pot:      m.envido.Pot,
	}})
	return nil
}

// envidoStake returns the raise value for a level. Falta envido is worth
// whatever the leading team still needs to reach the live target.
func (m *Match) envidoStake(level domain.EnvidoLevel) int {
	switch level {
	case domain.Envido:
		return 2
	case domain.RealEnvido:
		return 3
	case domain.FaltaEnvido:
		target := TargetScore
		if m.scores[0] < 15 && m.scores[1] < 15 {
			target = 15
		}
		lead := m.scores[0]
		if m.scores[1] > lead {
			lead = m.scores[1]
		}
		return target - lead
	default:
		return 0
	}
}

// RespondEnvido accepts or rejects the pending envido. Accepting compares
// the pre-computed scores of all participants in turn order from the hand
// starter; the first seat reached with the highest score takes the pot.
func (m *Match) RespondEnvido(ctx context.Context, playerID int64, accept bool) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if !accept {
		points, err := m.envido.Reject(playerID)
		if err != nil {
			return err
		}
		callerTeam := m.teamOf(m.envido.CallerID)
		m.broadcast(ctx, ports.Notice{Event: ports.EventEnvidoResponse, Payload: betResponsePayload{
			PlayerID: playerID,
			Response: "reject",
			Winner:   callerTeam.String(),
			Points:   points,
		}})
		m.closeEnvidoWindow()
		m.awardPoints(ctx, callerTeam, points, "envido_rejected")
		return nil
	}

	pot, err := m.envido.Accept(playerID)
	if err != nil {
		return err
	}
	winner := m.resolveEnvidoShowdown()
	winnerTeam := m.teamOf(winner)
	m.broadcast(ctx, ports.Notice{Event: ports.EventEnvidoResponse, Payload: betResponsePayload{
		PlayerID: playerID,
		Response: "accept",
		Winner:   winnerTeam.String(),
		Points:   pot,
	}})
	m.closeEnvidoWindow()
	m.awardPoints(ctx, winnerTeam, pot, "envido")
	return nil
}

// resolveEnvidoShowdown returns the participant id with the highest
// pre-computed envido score, iterating from the hand starter so the
// starting seat wins ties by turn proximity.
func (m *Match) resolveEnvidoShowdown() int64 {
	n := len(m.players)
	winner := m.players[m.handStarter].ID
	best := m.envidoScores[winner]
	for step := 1; step < n; step++ {
		p := m.players[(m.handStarter+step)%n]
		if score := m.envidoScores[p.ID]; score > best {
			best = score
			winner = p.ID
		}
	}
	return winner
}

// closeEnvidoWindow moves a resolved envido state on to truco play.
func (m *Match) closeEnvidoWindow() {
	if m.state == StateEnvido {
		m.state = StateTruco
	}
}

// CallFlor declares a flor. Only legal before any card has been played this
// hand, once per hand, and only for a seat whose pre-computed flor score is
// set. An opponent without flor concedes three points immediately and any
// in-flight envido is cancelled.
func (m *Match) CallFlor(ctx context.Context, playerID int64) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if m.state != StateEnvido && m.state != StateTruco {
		return ErrWrongState
	}
	if m.anyCardPlayed {
		return ErrFlorWindowClosed
	}
	if m.truco.Pending() {
		return domain.ErrBetPending
	}
	if m.playerByID(playerID) == nil {
		return ErrUnknownParticipant
	}
	if m.florScores[playerID] == NoFlorScore {
		return ErrNoFlor
	}
	responder, err := m.nextOpponentOf(playerID)
	if err != nil {
		return err
	}

	contested := m.florScores[responder] != NoFlorScore
	if err := m.flor.Call(playerID, responder, contested); err != nil {
		return err
	}
	// Flor preempts the envido track for the rest of the hand.
	m.envido.Cancel()

	m.broadcast(ctx, ports.Notice{Event: ports.EventFlorCalled, Payload: betCallPayload{
		PlayerID: playerID,
		Call:     domain.Flor.String(),
	}})

	if !contested {
		m.state = StateTruco
		m.awardPoints(ctx, m.teamOf(playerID), domain.FlorPoints, "flor")
		return nil
	}
	// Suspend the enclosing state until the responder answers.
	m.resume = m.state
	if m.resume == StateEnvido {
		m.resume = StateTruco
	}
	m.state = StateFlor
	return nil
}

// FlorResponse is the responder's answer to a contested flor.
type FlorResponse string

const (
	FlorReject FlorResponse = "reject"
	FlorContra FlorResponse = "contra_flor"
)

// RespondFlor resolves a contested flor. Contra flor is a six-point
// winner-take-all decided by comparing the two flor scores; ties go to the
// contender closest to the hand starter in turn order.
func (m *Match) RespondFlor(ctx context.Context, playerID int64, response FlorResponse) error {
	if m.Ended() {
		return ErrMatchEnded
	}
	if m.state != StateFlor {
		return ErrWrongState
	}
	caller := m.flor.CallerID

	if response == FlorReject {
		points, err := m.flor.Reject(playerID)
		if err != nil {
			return err
		}
		callerTeam := m.teamOf(caller)
		m.broadcast(ctx, ports.Notice{Event: ports.EventFlorResponse, Payload: betResponsePayload{
			PlayerID: playerID,
			Response: string(FlorReject),
			Winner:   callerTeam.String(),
			Points:   points,
		}})
		m.state = m.resume
		m.awardPoints(ctx, callerTeam, points, "flor_rejected")
		return nil
	}

	if err := m.flor.Escalate(playerID); err != nil {
		return err
	}
	winner := m.resolveFlorShowdown(caller, playerID)
	winnerTeam := m.teamOf(winner)
	m.broadcast(ctx, ports.Notice{Event: ports.EventFlorResponse, Payload: betResponsePayload{
		PlayerID: playerID,
		Response: string(FlorContra),
		Winner:   winnerTeam.String(),
		Points:   domain.ContraFlorPoints,
	}})
	m.state = m.resume
	m.awardPoints(ctx, winnerTeam, domain.ContraFlorPoints, "contra_flor")
	return nil
}

// resolveFlorShowdown compares the two contenders' flor scores, breaking
// ties by proximity to the hand starter in turn order.
func (m *Match) resolveFlorShowdown(caller, responder int64) int64 {
	cs, rs := m.florScores[caller], m.florScores[responder]
	switch {
	case cs > rs:
		return caller
	case rs > cs:
		return responder
	}
	n := len(m.players)
	for step := 0; step < n; step++ {
		id := m.players[(m.handStarter+step)%n].ID
		if id == caller || id == responder {
			return id
		}
	}
	return caller
}

package match

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"truco/internal/domain"
	"truco/internal/ports"
)

// TargetScore ends the match the instant either team reaches it.
const TargetScore = 30

// State is the lifecycle stage of a running match.
type State string

const (
	StateDeal     State = "deal"
	StateEnvido   State = "envido"
	StateFlor     State = "flor"
	StateTruco    State = "truco"
	StateHandEnd  State = "hand_end"
	StateMatchEnd State = "match_end"
)

// Illegal-action errors returned across the public action surface.
var (
	ErrMatchEnded         = errors.New("match has ended")
	ErrNotYourTurn        = errors.New("not this participant's turn")
	ErrWrongState         = errors.New("action not legal in current state")
	ErrCardNotInHand      = errors.New("card is not in hand")
	ErrUnknownParticipant = errors.New("participant is not seated in this match")
	ErrNoFlor             = errors.New("participant has no flor")
	ErrFlorWindowClosed   = errors.New("flor must be called before any card is played")
)

// NoFlorScore is the sentinel for a participant without flor this hand.
const NoFlorScore = -1

type playedCard struct {
	PlayerID int64
	Card     domain.Card
}

// Config collects the collaborators a match needs.
type Config struct {
	Code         string
	LobbyID      string
	Participants []*domain.Participant // turn order
	Channels     map[int64]ports.Channel
	Store        ports.MatchStore
	Publisher    ports.EventPublisher // optional
	Logger       zerolog.Logger
	Shuffler     domain.Shuffler // nil for crypto/rand
}

// Match is the state machine for one running game. Callers serialize all
// mutating calls per match code; the only internally locked field is the
// one-shot match-end guard, which two point-awarding paths can race for.
type Match struct {
	code    string
	lobbyID string

	players  []*domain.Participant
	channels map[int64]ports.Channel

	deck  *domain.Deck
	state State
	// state suspended by an in-flight contested flor
	resume State

	scores      [2]int
	handStarter int // index into players; leads round 1
	turn        int // index into players
	table       []playedCard
	roundPlays  []playedCard
	roundIdx    int
	roundWins   [3]domain.Team // TeamNone = draw or not yet played

	truco  domain.TrucoBet
	envido domain.EnvidoBet
	flor   domain.FlorBet

	envidoScores  map[int64]int
	florScores    map[int64]int
	anyCardPlayed bool

	endMu sync.Mutex
	ended bool

	store     ports.MatchStore
	publisher ports.EventPublisher
	recordID  int64

	log zerolog.Logger
}

// New validates the participant list and builds a match ready to Start.
func New(cfg Config) (*Match, error) {
	n := len(cfg.Participants)
	if n != 2 && n != 4 {
		return nil, fmt.Errorf("participant count must be 2 or 4, got %d", n)
	}
	for _, p := range cfg.Participants {
		if p == nil {
			return nil, errors.New("nil participant in seat list")
		}
		if _, ok := cfg.Channels[p.ID]; !ok {
			return nil, fmt.Errorf("participant %d has no bound channel", p.ID)
		}
	}
	return &Match{
		code:         cfg.Code,
		lobbyID:      cfg.LobbyID,
		players:      cfg.Participants,
		channels:     cfg.Channels,
		deck:         domain.NewDeck(cfg.Shuffler),
		state:        StateDeal,
		handStarter:  -1,
		store:        cfg.Store,
		publisher:    cfg.Publisher,
		envidoScores: make(map[int64]int, n),
		florScores:   make(map[int64]int, n),
		log:          cfg.Logger.With().Str("match", cfg.Code).Logger(),
	}, nil
}

// Code returns the shareable match code.
func (m *Match) Code() string { return m.code }

// LobbyID returns the internal lobby id the match was started from.
func (m *Match) LobbyID() string { return m.lobbyID }

// Participants returns the seats in turn order.
func (m *Match) Participants() []*domain.Participant { return m.players }

// Scores returns the current team scores.
func (m *Match) Scores() (team1, team2 int) { return m.scores[0], m.scores[1] }

// State returns the current lifecycle stage.
func (m *Match) State() State { return m.state }

// Ended reports whether the match-end guard has fired.
func (m *Match) Ended() bool {
	m.endMu.Lock()
	defer m.endMu.Unlock()
	return m.ended
}

// Start persists the match record and deals the first hand.
func (m *Match) Start(ctx context.Context) error {
	if m.state != StateDeal {
		return ErrWrongState
	}
	participants := make([]domain.Participant, len(m.players))
	for i, p := range m.players {
		participants[i] = *p
	}
	id, err := m.store.SaveMatch(ctx, m.code, m.lobbyID, participants)
	if err != nil {
		// Storage being down must not stop live gameplay.
		m.log.Error().Err(err).Msg("persist match failed, continuing unpersisted")
	} else {
		m.recordID = id
	}
	m.startNewHand(ctx)
	return nil
}

// startNewHand resets the deck and round state, rotates the hand starter,
// deals three cards to every seat and fixes the envido/flor pre-computations
// for the hand.
func (m *Match) startNewHand(ctx context.Context) {
	m.deck.Reset()
	m.deck.Shuffle()

	m.table = m.table[:0]
	m.roundPlays = m.roundPlays[:0]
	m.roundIdx = 0
	m.roundWins = [3]domain.Team{}
	m.truco = domain.TrucoBet{}
	m.envido = domain.EnvidoBet{}
	m.flor = domain.FlorBet{}
	m.anyCardPlayed = false

	m.handStarter = (m.handStarter + 1) % len(m.players)
	m.turn = m.handStarter

	for _, p := range m.players {
		hand, err := m.deck.DealHand()
		if err != nil {
			m.log.Warn().Err(err).Int64("player", p.ID).Msg("deal failed, hand not started")
			return
		}
		p.Hand = hand
		m.envidoScores[p.ID] = domain.CalculateEnvidoScore(hand)
		if domain.HasFlor(hand) {
			m.florScores[p.ID] = domain.CalculateFlorScore(hand)
		} else {
			m.florScores[p.ID] = NoFlorScore
		}
	}

	m.state = StateEnvido

	for _, p := range m.players {
		m.sendTo(ctx, p.ID, ports.Notice{Event: ports.EventCardsDealt, Payload: cardsDealtPayload{
			Cards: cardKeys(p.Hand),
		}})
	}
	m.broadcastTurn(ctx)
}

// playerIndex returns the seat index for a participant id, or -1.
func (m *Match) playerIndex(id int64) int {
	for i, p := range m.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *Match) playerByID(id int64) *domain.Participant {
	if i := m.playerIndex(id); i >= 0 {
		return m.players[i]
	}
	return nil
}

// nextOpponentOf returns the id of the next seat in turn order belonging to
// the other team from the given participant.
func (m *Match) nextOpponentOf(id int64) (int64, error) {
	idx := m.playerIndex(id)
	if idx < 0 {
		return 0, ErrUnknownParticipant
	}
	team := m.players[idx].Team
	for step := 1; step < len(m.players); step++ {
		cand := m.players[(idx+step)%len(m.players)]
		if cand.Team != team {
			return cand.ID, nil
		}
	}
	return 0, ErrUnknownParticipant
}

// teamOf returns the team a participant id plays for.
func (m *Match) teamOf(id int64) domain.Team {
	if p := m.playerByID(id); p != nil {
		return p.Team
	}
	return domain.TeamNone
}

// awardPoints credits a team and finishes the match once the target score
// is reached. Returns true when the match ended as a consequence.
func (m *Match) awardPoints(ctx context.Context, team domain.Team, points int, reason string) bool {
	if team != domain.Team1 && team != domain.Team2 {
		return false
	}
	m.scores[team-1] += points
	m.log.Debug().Str("team", team.String()).Int("points", points).Str("reason", reason).
		Ints("scores", m.scores[:]).Msg("points awarded")
	m.broadcast(ctx, ports.Notice{Event: ports.EventScoreUpdated, Payload: scorePayload{
		Team1:  m.scores[0],
		Team2:  m.scores[1],
		Reason: reason,
	}})
	if m.scores[team-1] >= TargetScore {
		return m.finishMatch(ctx, team)
	}
	return false
}

// finishMatch runs the one-shot end path: exactly one of the racing
// point-awarding code paths gets to persist the result and broadcast the
// end. Returns false when another path already finished the match.
func (m *Match) finishMatch(ctx context.Context, winner domain.Team) bool {
	m.endMu.Lock()
	if m.ended {
		m.endMu.Unlock()
		return false
	}
	m.ended = true
	m.endMu.Unlock()

	m.state = StateMatchEnd
	winnerScore := m.scores[winner-1]
	loserScore := m.scores[winner.Opponent()-1]

	if m.recordID != 0 {
		if err := m.store.SaveResult(ctx, m.recordID, winner, winnerScore, loserScore); err != nil {
			m.log.Error().Err(err).Msg("persist result failed")
		}
	} else {
		m.log.Warn().Msg("no match record id, result not persisted")
	}
	if m.publisher != nil {
		err := m.publisher.Publish(ctx, ports.SubjectMatchEnded, matchEndedPayload{
			Code:        m.code,
			Winner:      winner.String(),
			WinnerScore: winnerScore,
			LoserScore:  loserScore,
		})
		if err != nil {
			m.log.Warn().Err(err).Msg("publish match end failed")
		}
	}

	m.broadcast(ctx, ports.Notice{Event: ports.EventMatchEnded, Payload: matchEndedPayload{
		Code:        m.code,
		Winner:      winner.String(),
		WinnerScore: winnerScore,
		LoserScore:  loserScore,
	}})
	m.log.Info().Str("winner", winner.String()).Int("winner_score", winnerScore).
		Int("loser_score", loserScore).Msg("match ended")
	return true
}

// Abort irreversibly ends the match in favor of the team opposing the
// leaving participant, with whatever score currently stands.
func (m *Match) Abort(ctx context.Context, leavingID int64) error {
	p := m.playerByID(leavingID)
	if p == nil {
		return ErrUnknownParticipant
	}
	m.broadcast(ctx, ports.Notice{Event: ports.EventPlayerLeft, Payload: playerPayload{
		PlayerID: leavingID,
		Username: p.Username,
	}})
	m.finishMatch(ctx, p.Team.Opponent())
	return nil
}

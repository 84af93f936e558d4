package domain

import "errors"

// Bet protocol errors shared by the three tracks.
var (
	ErrBetPending        = errors.New("a bet response is already pending")
	ErrNoBetPending      = errors.New("no bet response is pending")
	ErrNotBetResponder   = errors.New("participant is not the awaited responder")
	ErrInvalidEscalation = errors.New("bet escalation must be sequential")
	ErrBetAlreadyPlayed  = errors.New("bet track already played this hand")
)

// TrucoLevel is the stake of the truco track.
type TrucoLevel int

const (
	TrucoNone TrucoLevel = iota
	TrucoCalled
	Retruco
	ValeCuatro
)

func (l TrucoLevel) String() string {
	switch l {
	case TrucoCalled:
		return "truco"
	case Retruco:
		return "retruco"
	case ValeCuatro:
		return "vale_cuatro"
	default:
		return "none"
	}
}

// Points returns the hand stake at this level.
func (l TrucoLevel) Points() int {
	switch l {
	case TrucoCalled:
		return 2
	case Retruco:
		return 3
	case ValeCuatro:
		return 4
	default:
		return 1
	}
}

// TrucoBet tracks the truco escalation for one hand. Participant id 0 is the
// null sentinel: real ids are positive (registered) or negative (guests).
type TrucoBet struct {
	Level       TrucoLevel
	CallerID    int64
	ResponderID int64
	proposed    TrucoLevel
}

// Pending reports whether a response is awaited.
func (b *TrucoBet) Pending() bool { return b.ResponderID != 0 }

// Proposed returns the level awaiting a response.
func (b *TrucoBet) Proposed() TrucoLevel { return b.proposed }

// Call proposes the next escalation step. Skipping levels is rejected.
func (b *TrucoBet) Call(level TrucoLevel, caller, responder int64) error {
	if b.Pending() {
		return ErrBetPending
	}
	if level != b.Level+1 || level > ValeCuatro {
		return ErrInvalidEscalation
	}
	b.proposed = level
	b.CallerID = caller
	b.ResponderID = responder
	return nil
}

// Accept commits the proposed level and clears the pending response.
func (b *TrucoBet) Accept(responder int64) error {
	if !b.Pending() {
		return ErrNoBetPending
	}
	if responder != b.ResponderID {
		return ErrNotBetResponder
	}
	b.Level = b.proposed
	b.ResponderID = 0
	return nil
}

// Reject clears the pending proposal and returns the stake the caller's team
// is owed: the value of the level that stood before the proposal.
func (b *TrucoBet) Reject(responder int64) (int, error) {
	if !b.Pending() {
		return 0, ErrNoBetPending
	}
	if responder != b.ResponderID {
		return 0, ErrNotBetResponder
	}
	points := b.Level.Points()
	b.ResponderID = 0
	b.proposed = b.Level
	return points, nil
}

// EnvidoLevel is a step of the envido track.
type EnvidoLevel int

const (
	EnvidoNone EnvidoLevel = iota
	Envido
	RealEnvido
	FaltaEnvido
)

func (l EnvidoLevel) String() string {
	switch l {
	case Envido:
		return "envido"
	case RealEnvido:
		return "real_envido"
	case FaltaEnvido:
		return "falta_envido"
	default:
		return "none"
	}
}

// EnvidoBet accumulates the envido pot for one hand.
type EnvidoBet struct {
	Level       EnvidoLevel
	CallerID    int64
	ResponderID int64
	Pot         int
	Played      bool
	lastRaise   int
}

// Pending reports whether a response is awaited.
func (b *EnvidoBet) Pending() bool { return b.ResponderID != 0 }

// Call opens or raises the envido. points is the raise value: 2 for Envido,
// 3 for RealEnvido, and the computed match-shortfall for FaltaEnvido, which
// overrides the pot instead of adding to it. Raising while pending is only
// allowed for the awaited responder and counts as accepting the prior step.
func (b *EnvidoBet) Call(level EnvidoLevel, caller, responder int64, points int) error {
	if b.Played && !b.Pending() {
		return ErrBetAlreadyPlayed
	}
	if b.Pending() && caller != b.ResponderID {
		return ErrBetPending
	}
	if level <= b.Level {
		return ErrInvalidEscalation
	}
	if level == FaltaEnvido {
		b.lastRaise = points - b.Pot
		if b.lastRaise < 0 {
			b.lastRaise = 0
		}
		b.Pot = points
	} else {
		b.Pot += points
		b.lastRaise = points
	}
	b.Level = level
	b.CallerID = caller
	b.ResponderID = responder
	b.Played = true
	return nil
}

// Accept commits the pot and clears the pending response.
func (b *EnvidoBet) Accept(responder int64) (int, error) {
	if !b.Pending() {
		return 0, ErrNoBetPending
	}
	if responder != b.ResponderID {
		return 0, ErrNotBetResponder
	}
	b.ResponderID = 0
	return b.Pot, nil
}

// Reject clears the pending call and returns the consolation stake owed to
// the caller's team: the pot minus the last raise, never below one point.
func (b *EnvidoBet) Reject(responder int64) (int, error) {
	if !b.Pending() {
		return 0, ErrNoBetPending
	}
	if responder != b.ResponderID {
		return 0, ErrNotBetResponder
	}
	points := b.Pot - b.lastRaise
	if points < 1 {
		points = 1
	}
	b.ResponderID = 0
	return points, nil
}

// Cancel drops any pending envido without awarding points. Used when a flor
// short-circuits the track.
func (b *EnvidoBet) Cancel() {
	b.ResponderID = 0
	b.Played = true
}

// FlorLevel is a step of the flor track.
type FlorLevel int

const (
	FlorNone FlorLevel = iota
	Flor
	ContraFlor
)

func (l FlorLevel) String() string {
	switch l {
	case Flor:
		return "flor"
	case ContraFlor:
		return "contra_flor"
	default:
		return "none"
	}
}

// Flor stake values.
const (
	FlorPoints       = 3
	ContraFlorPoints = 6
)

// FlorBet tracks the flor side bet for one hand.
type FlorBet struct {
	Level       FlorLevel
	CallerID    int64
	ResponderID int64
	Played      bool
}

// Pending reports whether a response is awaited.
func (b *FlorBet) Pending() bool { return b.ResponderID != 0 }

// Call declares a flor. When contested is false no response is awaited.
func (b *FlorBet) Call(caller, responder int64, contested bool) error {
	if b.Played {
		return ErrBetAlreadyPlayed
	}
	b.Level = Flor
	b.CallerID = caller
	b.Played = true
	if contested {
		b.ResponderID = responder
	}
	return nil
}

// Escalate moves a contested flor to contra flor, resolved immediately by
// score comparison at the match level.
func (b *FlorBet) Escalate(responder int64) error {
	if !b.Pending() {
		return ErrNoBetPending
	}
	if responder != b.ResponderID {
		return ErrNotBetResponder
	}
	b.Level = ContraFlor
	b.ResponderID = 0
	return nil
}

// Reject concedes a contested flor, returning the caller's stake.
func (b *FlorBet) Reject(responder int64) (int, error) {
	if !b.Pending() {
		return 0, ErrNoBetPending
	}
	if responder != b.ResponderID {
		return 0, ErrNotBetResponder
	}
	b.ResponderID = 0
	return FlorPoints, nil
}

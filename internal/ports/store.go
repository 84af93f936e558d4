package ports

import (
	"context"

	"truco/internal/domain"
)

// MatchStore persists match lifecycle facts. Failures are absorbed by the
// engine (logged, gameplay unaffected); implementations must not block
// longer than the supplied context allows.
type MatchStore interface {
	// SaveMatch records a new or ongoing match and returns its record id.
	// Idempotent: a second call for the same lobby while the match is in
	// progress returns the same id.
	SaveMatch(ctx context.Context, code, lobbyID string, participants []domain.Participant) (int64, error)

	// SaveResult records the final outcome for a previously saved match.
	SaveResult(ctx context.Context, matchID int64, winner domain.Team, winnerScore, loserScore int) error
}

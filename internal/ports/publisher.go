package ports

import "context"

// EventPublisher bridges match lifecycle facts to interested external
// services (statistics, matchmaking). Best effort: publish failures are
// logged by callers and never affect gameplay.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Publisher subjects.
const (
	SubjectMatchStarted = "truco.match.started"
	SubjectMatchEnded   = "truco.match.ended"
)

package ports

import "context"

// UserDirectory resolves registered usernames to stable numeric ids.
// Guests never resolve here; their ids are synthesized by the lobby layer
// as negative hashes of the transient username.
type UserDirectory interface {
	// LookupID returns the stable id for a registered username.
	LookupID(ctx context.Context, username string) (int64, error)
}

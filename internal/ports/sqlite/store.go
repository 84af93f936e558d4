// Package sqlite implements the persistence collaborators on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"truco/internal/domain"
)

// ErrUnknownUser is returned when a username has no registered account.
var ErrUnknownUser = errors.New("unknown username")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS matches (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	code         TEXT NOT NULL,
	lobby_id     TEXT NOT NULL,
	participants TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'in_progress',
	winner       TEXT,
	winner_score INTEGER,
	loser_score  INTEGER,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_matches_lobby_live ON matches(lobby_id, status);
`

// Store is the SQLite-backed MatchStore and UserDirectory.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if missing) the database at path with WAL and a busy
// timeout, and ensures the schema exists.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log.With().Str("component", "sqlite").Logger()}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveMatch records a new match, or returns the existing record id when the
// same lobby already has a match in progress.
func (s *Store) SaveMatch(ctx context.Context, code, lobbyID string, participants []domain.Participant) (int64, error) {
	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM matches WHERE lobby_id = ? AND status = 'in_progress'`, lobbyID).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("query live match: %w", err)
	}

	type seat struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Team     string `json:"team"`
	}
	seats := make([]seat, len(participants))
	for i, p := range participants {
		seats[i] = seat{ID: p.ID, Username: p.Username, Team: p.Team.String()}
	}
	blob, err := json.Marshal(seats)
	if err != nil {
		return 0, fmt.Errorf("encode participants: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (code, lobby_id, participants) VALUES (?, ?, ?)`,
		code, lobbyID, string(blob))
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}
	return res.LastInsertId()
}

// SaveResult finalizes a previously saved match record.
func (s *Store) SaveResult(ctx context.Context, matchID int64, winner domain.Team, winnerScore, loserScore int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE matches
		 SET status = 'finished', winner = ?, winner_score = ?, loser_score = ?, finished_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		winner.String(), winnerScore, loserScore, matchID)
	if err != nil {
		return fmt.Errorf("finalize match %d: %w", matchID, err)
	}
	return nil
}

// LookupID resolves a registered username to its stable id.
func (s *Store) LookupID(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownUser
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user %q: %w", username, err)
	}
	return id, nil
}

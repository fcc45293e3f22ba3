// Package store persists completion-ledger snapshots to a local sqlite
// file so a restarted client shows last-known state before its first
// fetch completes.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/comitanigiacomo/kanso-companion/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS completions (
	habit_id TEXT NOT NULL,
	day      TEXT NOT NULL,
	done     INTEGER NOT NULL,
	PRIMARY KEY (habit_id, day)
);`

type SnapshotStore struct {
	db *sql.DB
}

func Open(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store at %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// SaveHabit replaces the stored snapshot for one habit. False entries
// are not persisted: they read the same as absent ones and only exist
// transiently in memory.
func (s *SnapshotStore) SaveHabit(habitID string, completions domain.CompletionMap) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM completions WHERE habit_id = ?`, habitID); err != nil {
		return fmt.Errorf("clearing snapshot for habit %s: %w", habitID, err)
	}

	for day, done := range completions {
		if !done {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO completions (habit_id, day, done) VALUES (?, ?, 1)`,
			habitID, day,
		); err != nil {
			return fmt.Errorf("writing snapshot for habit %s: %w", habitID, err)
		}
	}

	return tx.Commit()
}

// Load reads every stored habit snapshot.
func (s *SnapshotStore) Load() (map[string]domain.CompletionMap, error) {
	rows, err := s.db.Query(`SELECT habit_id, day, done FROM completions`)
	if err != nil {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.CompletionMap)
	for rows.Next() {
		var habitID, day string
		var done int
		if err := rows.Scan(&habitID, &day, &done); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		m, ok := out[habitID]
		if !ok {
			m = make(domain.CompletionMap)
			out[habitID] = m
		}
		m[day] = done != 0
	}

	return out, rows.Err()
}

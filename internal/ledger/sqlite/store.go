// Package sqlite is the embedded key-value alternative to the JSON-file
// ledger, for deployments with more write concurrency.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/italolelis/trackbot/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reads all user rows and derives the global totals from them, so the
// counter invariants hold by construction.
func (s *Store) Load(ctx context.Context) (ledger.Stats, error) {
	stats := ledger.Stats{Users: make(map[string]ledger.UserRecord)}

	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, downloads, first_seen, last_seen FROM users`)
	if err != nil {
		return stats, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			username sql.NullString
			rec      ledger.UserRecord
			first    sql.NullString
			last     sql.NullString
		)

		if err := rows.Scan(&id, &username, &rec.Downloads, &first, &last); err != nil {
			return stats, fmt.Errorf("failed to scan user row: %w", err)
		}

		rec.Username = username.String
		rec.FirstSeen = first.String
		rec.LastSeen = last.String

		stats.Users[id] = rec
		stats.TotalUsers++
		stats.TotalDownloads += rec.Downloads
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to read user rows: %w", err)
	}

	return stats, nil
}

// RecordDownload upserts the user row and bumps its download counter.
func (s *Store) RecordDownload(ctx context.Context, userID int64, username string) error {
	if username == "" {
		username = "unknown"
	}

	now := time.Now().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, downloads, first_seen, last_seen)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			downloads = users.downloads + 1,
			last_seen = excluded.last_seen
	`, fmt.Sprintf("%d", userID), username, now, now)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

// Package jsonfile persists the usage ledger as a single JSON document,
// rewritten wholesale on every update.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/italolelis/trackbot/internal/ledger"
	"github.com/italolelis/trackbot/internal/logctx"
)

const filePerm = 0644

// Store is a mutex-guarded single-writer ledger backend. Concurrent requests
// serialize on the lock instead of racing the whole-file rewrite.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Load reads the persisted ledger. A missing or malformed file yields a
// fresh zeroed ledger rather than an error.
func (s *Store) Load(ctx context.Context) (ledger.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx), nil
}

// RecordDownload increments the counters for the given user, inserting a new
// record on first sight, and rewrites the ledger file.
func (s *Store) RecordDownload(ctx context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.load(ctx)
	now := s.now().Format(time.RFC3339)

	id := fmt.Sprintf("%d", userID)

	rec, seen := stats.Users[id]
	if !seen {
		stats.TotalUsers++

		if username == "" {
			username = "unknown"
		}

		rec = ledger.UserRecord{Username: username, FirstSeen: now}
	}

	if username != "" {
		rec.Username = username
	}

	rec.LastSeen = now
	rec.Downloads++
	stats.Users[id] = rec
	stats.TotalDownloads++

	if err := s.save(stats); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}

	return nil
}

func (s *Store) load(ctx context.Context) ledger.Stats {
	logger := logctx.LoggerFromContext(ctx)

	fresh := ledger.Stats{
		CreatedAt: s.now().Format(time.RFC3339),
		Users:     make(map[string]ledger.UserRecord),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read ledger file, starting fresh", "path", s.path, "err", err)
		}

		return fresh
	}

	var stats ledger.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		logger.Warn("malformed ledger file, starting fresh", "path", s.path, "err", err)

		return fresh
	}

	if stats.Users == nil {
		stats.Users = make(map[string]ledger.UserRecord)
	}

	return stats
}

func (s *Store) save(stats ledger.Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if err := os.WriteFile(s.path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}

	return nil
}

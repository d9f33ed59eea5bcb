package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(filepath.Join(t.TempDir(), "bot_stats.json"))
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalDownloads)
	assert.Equal(t, 0, stats.TotalUsers)
	assert.Empty(t, stats.Users)
}

func TestLoadMalformedFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0644))

	stats, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalDownloads)
	assert.Equal(t, 0, stats.TotalUsers)
}

func TestRecordDownloadNewUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDownload(ctx, 42, "alice"))

	stats, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalDownloads)

	rec, ok := stats.Users["42"]
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, 1, rec.Downloads)
	assert.NotEmpty(t, rec.FirstSeen)
	assert.NotEmpty(t, rec.LastSeen)
}

func TestRecordDownloadExistingUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDownload(ctx, 42, "alice"))
	require.NoError(t, s.RecordDownload(ctx, 42, "alice"))

	stats, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalUsers, "second download must not add a user")
	assert.Equal(t, 2, stats.TotalDownloads)
	assert.Equal(t, 2, stats.Users["42"].Downloads)
}

func TestRecordDownloadSurvivesReopen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDownload(ctx, 1, "a"))

	reopened := NewStore(s.path)
	require.NoError(t, reopened.RecordDownload(ctx, 2, "b"))

	stats, err := reopened.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 2, stats.TotalDownloads)
}

func TestSummaryTopFive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	users := []struct {
		id        int64
		name      string
		downloads int
	}{
		{1, "one", 1},
		{2, "two", 2},
		{3, "three", 3},
		{4, "four", 4},
		{5, "five", 5},
		{6, "six", 6},
		{7, "seven", 7},
	}

	for _, u := range users {
		for range u.downloads {
			require.NoError(t, s.RecordDownload(ctx, u.id, u.name))
		}
	}

	stats, err := s.Load(ctx)
	require.NoError(t, err)

	summary := stats.Summary()

	assert.Contains(t, summary, "Total downloads: 28")
	assert.Contains(t, summary, "Total users: 7")
	assert.Contains(t, summary, "1. @seven - 7 downloads")
	assert.Contains(t, summary, "5. @three - 3 downloads")
	assert.NotContains(t, summary, "@two")
	assert.NotContains(t, summary, "@one")

	// At most 5 ranked lines.
	ranked := 0
	for _, line := range strings.Split(summary, "\n") {
		if strings.Contains(line, "downloads") && strings.Contains(line, "@") {
			ranked++
		}
	}
	assert.Equal(t, 5, ranked)
}

func TestSummaryEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Contains(t, stats.Summary(), "no users yet")
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/italolelis/trackbot/internal/ledger"
	"github.com/italolelis/trackbot/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	stats ledger.Stats
	err   error
}

func (s *stubStore) Load(_ context.Context) (ledger.Stats, error) {
	return s.stats, s.err
}

func (s *stubStore) RecordDownload(_ context.Context, _ int64, _ string) error {
	return nil
}

func newTestHandler(t *testing.T, store ledger.Store) *AdminHandler {
	t.Helper()

	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	return NewAdminHandler(store, tel)
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, &stubStore{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStats(t *testing.T) {
	store := &stubStore{
		stats: ledger.Stats{
			TotalDownloads: 4,
			TotalUsers:     2,
			Users: map[string]ledger.UserRecord{
				"1": {Username: "alice", Downloads: 3},
				"2": {Username: "bob", Downloads: 1},
			},
		},
	}

	h := newTestHandler(t, store)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got ledger.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.TotalDownloads)
	assert.Equal(t, "alice", got.Users["1"].Username)
}

func TestStatsStoreFailure(t *testing.T) {
	h := newTestHandler(t, &stubStore{err: errors.New("disk gone")})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// Package rest exposes the bot's operational surface: health, metrics and a
// read-only stats snapshot.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/trackbot/internal/ledger"
	"github.com/italolelis/trackbot/internal/logctx"
	"github.com/italolelis/trackbot/internal/telemetry"
)

type AdminHandler struct {
	store     ledger.Store
	telemetry *telemetry.Telemetry
}

func NewAdminHandler(store ledger.Store, tel *telemetry.Telemetry) *AdminHandler {
	return &AdminHandler{store: store, telemetry: tel}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.health)
	r.Get("/stats", h.stats)
	r.Method(http.MethodGet, "/metrics", h.telemetry.Handler())

	return r
}

func (h *AdminHandler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	logger := logctx.LoggerFromContext(r.Context())

	stats, err := h.store.Load(r.Context())
	if err != nil {
		logger.Error("failed to load ledger", "err", err)
		http.Error(w, "failed to load stats", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logger.Error("failed to encode stats", "err", err)
	}
}

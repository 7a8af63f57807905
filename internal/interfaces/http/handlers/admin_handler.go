package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/interfaces/http/middleware"
	"github.com/icon-forge/iconforge/internal/metrics"
)

const defaultFailureListLimit = 100

// statsStore is the pure-read/delete surface the admin endpoints need over
// the metrics table. Backed by *metrics.PostgresStore in production.
type statsStore interface {
	Summarize(ctx context.Context) (metrics.Summary, error)
	ListFailures(ctx context.Context, limit int) ([]metrics.FailureRecord, error)
	DeleteFailures(ctx context.Context) (int64, error)
}

// AdminHandler implements the admin stats endpoints gated by a shared secret,
// per spec.md §4.7: thin SQL reads with no aggregation logic specified beyond
// "stats", plus one write, DELETE of the failed-conversion rows.
type AdminHandler struct {
	store  statsStore
	logger zerolog.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(store statsStore, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

// Summary handles GET /api/v1/admin/stats/summary.
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summarize(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to summarize conversion metrics")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to load stats")
		return
	}
	_ = EncodeJSON(w, http.StatusOK, summary)
}

// Failures handles GET /api/v1/admin/stats/failures.
func (h *AdminHandler) Failures(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListFailures(r.Context(), defaultFailureListLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list failed conversions")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to load failures")
		return
	}
	_ = EncodeJSON(w, http.StatusOK, map[string]interface{}{"failures": records})
}

// DeleteFailures handles DELETE /api/v1/admin/stats/failures.
func (h *AdminHandler) DeleteFailures(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteFailures(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to delete failed conversions")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to delete failures")
		return
	}
	_ = EncodeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// AdminAuth gates every admin route behind a constant-time comparison of the
// X-Admin-Password header against the configured secret, per spec.md §4.7's
// "Unauthorized" error kind.
func AdminAuth(adminPassword string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Admin-Password")

			if subtle.ConstantTimeCompare([]byte(provided), []byte(adminPassword)) != 1 {
				logger.Warn().Str("path", r.URL.Path).Msg("admin auth failed")
				middleware.WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "invalid admin password")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Package maintenance garbage-collects expired revocation records, both on a
// schedule and through a secret-protected endpoint for external cron runners.
package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"wishstash/internal/auth"
)

type Cleaner struct {
	revoked   *auth.RevocationStore
	logger    zerolog.Logger
	batchSize int
}

func NewCleaner(revoked *auth.RevocationStore, logger zerolog.Logger, batchSize int) *Cleaner {
	return &Cleaner{revoked: revoked, logger: logger, batchSize: batchSize}
}

func (c *Cleaner) Run(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := c.revoked.CleanupExpired(ctx, c.batchSize)
	if err != nil {
		c.logger.Error().Err(err).Msg("revocation_cleanup_failed")
		return 0, err
	}

	c.logger.Info().Int64("deleted", deleted).Msg("revocation_cleanup_completed")

	return deleted, nil
}

// Schedule registers the cleanup on the cron runner. The caller owns starting
// and stopping the runner.
func (c *Cleaner) Schedule(runner *cron.Cron, spec string) error {
	_, err := runner.AddFunc(spec, func() {
		_, _ = c.Run(context.Background())
	})
	return err
}

// Handler exposes the cleanup over HTTP for platform cron services. Without
// a configured secret the route pretends not to exist.
type Handler struct {
	cleaner    *Cleaner
	cronSecret string
}

func NewHandler(cleaner *Cleaner, cronSecret string) *Handler {
	return &Handler{cleaner: cleaner, cronSecret: strings.TrimSpace(cronSecret)}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	deleted, err := h.cleaner.Run(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"deleted": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

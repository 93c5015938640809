package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// dependencyCheck pings one backing service.
type dependencyCheck struct {
	name string
	ping func(ctx context.Context) error
}

type HealthController struct {
	checks []dependencyCheck
}

// NewHealthController checks Postgres (the outbox store) and Redis
// (chat fan-out and the dead-letter stream). A nil client is skipped.
func NewHealthController(pool *pgxpool.Pool, rdb *redis.Client) *HealthController {
	h := &HealthController{}
	if pool != nil {
		h.checks = append(h.checks, dependencyCheck{name: "database", ping: pool.Ping})
	}
	if rdb != nil {
		h.checks = append(h.checks, dependencyCheck{
			name: "redis",
			ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return h
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	for _, c := range h.checks {
		if err := c.ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": c.name + " unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

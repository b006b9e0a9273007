package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 3 * time.Second

// PoolStats is the pool snapshot reported alongside the health status.
type PoolStats struct {
	MaxConns  int32 `json:"maxConns"`
	OpenConns int32 `json:"openConns"`
	IdleConns int32 `json:"idleConns"`
	BusyConns int32 `json:"busyConns"`
}

func poolSnapshot(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		MaxConns:  s.MaxConns(),
		OpenConns: s.TotalConns(),
		IdleConns: s.IdleConns(),
		BusyConns: s.AcquiredConns(),
	}
}

// HealthHandler backs GET /health: a bounded ping against the database plus
// the current pool snapshot. A failed ping reports 503 so load balancers
// pull the instance.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		started := time.Now()
		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   poolSnapshot(pool),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "ok",
			"pingMs": time.Since(started).Milliseconds(),
			"pool":   poolSnapshot(pool),
		})
	}
}

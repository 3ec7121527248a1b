package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// PoolStats is a snapshot of pgxpool counters.
type PoolStats struct {
	TotalConns      int32  `json:"totalConns"`
	IdleConns       int32  `json:"idleConns"`
	AcquiredConns   int32  `json:"acquiredConns"`
	MaxConns        int32  `json:"maxConns"`
	AcquireCount    int64  `json:"acquireCount"`
	AcquireDuration string `json:"acquireDuration"`
}

// Health is the body of GET /health/db.
type Health struct {
	Status string `json:"status"`
	// SchemaVersion is the highest applied migration, 0 when none are.
	SchemaVersion int        `json:"schemaVersion"`
	Pool          *PoolStats `json:"pool"`
	Error         string     `json:"error,omitempty"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// CheckHealth pings the database and reads the applied schema version. A
// missing _migrations table counts as unhealthy: the booking tables and the
// overlap constraint would be absent too.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) *Health {
	h := &Health{Status: "healthy", Pool: GetPoolStats(pool)}
	if err := pool.Ping(ctx); err != nil {
		h.Status, h.Error = "unhealthy", err.Error()
		return h
	}
	err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM _migrations`).Scan(&h.SchemaVersion)
	if err != nil {
		h.Status, h.Error = "unhealthy", "schema not migrated: "+err.Error()
	}
	return h
}

// HealthHandler serves GET /health/db.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		h := CheckHealth(ctx, pool)
		if h.Error != "" {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"success": false,
				"data":    h,
				"error":   h.Error,
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    h,
		})
	}
}

package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports process and dependency health.
type HealthHandler struct {
	db  *sql.DB
	rdb *redis.Client
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Health returns service health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	dbStatus := "ok"
	if h.db == nil {
		dbStatus = "down"
	} else if err := h.db.PingContext(c.Context()); err != nil {
		dbStatus = "down"
	}

	redisStatus := "ok"
	if h.rdb == nil {
		redisStatus = "disabled"
	} else if err := h.rdb.Ping(c.Context()).Err(); err != nil {
		redisStatus = "down"
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "shortreel-backend",
		"db":      dbStatus,
		"redis":   redisStatus,
	})
}

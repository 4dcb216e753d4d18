package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil.
func NewSystemHandler(name, version string, db Pinger, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: newBaseHandler(logger),
		name:        name,
		version:     version,
		db:          db,
		startTime:   time.Now(),
	}
}

// HealthResponse reports service health
type HealthResponse struct {
	Status    string            `json:"status"`
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// Health handles GET /health. A failing database check answers 503.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    map[string]string{},
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("check", "database"), zap.Error(err))
			resp.Status = "degraded"
			resp.Checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["database"] = "ok"
		}
	}

	c.JSON(status, dto.NewSuccessResponse(resp))
}

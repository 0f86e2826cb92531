package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/logging"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	EngineID string
	Version  string
	store    Pinger
}

func NewHealthHandler(engineID, version string, store Pinger) *HealthHandler {
	return &HealthHandler{EngineID: engineID, Version: version, store: store}
}

type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	EngineID string `json:"engine_id" example:"engine-1"`
	Store    string `json:"store" example:"ok"`
}

type EngineInfoResponse struct {
	EngineID     string   `json:"engine_id" example:"engine-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Check if the engine and its store are healthy
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", EngineID: h.EngineID, Store: "ok"}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			logging.Warn(c).Err(err).Msg("Store health check failed")
			resp.Status = "degraded"
			resp.Store = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Engine information
// @Description Get basic engine information and capabilities
// @Tags health
// @Produce json
// @Success 200 {object} EngineInfoResponse
// @Router / [get]
func (h *HealthHandler) EngineInfo(c *gin.Context) {
	c.JSON(http.StatusOK, EngineInfoResponse{
		EngineID: h.EngineID,
		Status:   "running",
		Version:  h.Version,
		Capabilities: []string{
			"zone_tracking",
			"restricted_area_alerts",
			"loitering_alerts",
			"suspect_matching",
			"hourly_aggregation",
			"live_alert_stream",
		},
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/models"
)

// OccupancySource serves live per-camera snapshots.
type OccupancySource interface {
	Snapshot(ctx context.Context, cameraID string) (models.OccupancySnapshot, error)
	Snapshots(ctx context.Context) ([]models.OccupancySnapshot, error)
}

// AnalyticsReader reads the hourly rollups and dwell history.
type AnalyticsReader interface {
	ListFootfall(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyFootfall, error)
	ListDemographics(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyDemographics, error)
	DwellStats(ctx context.Context, cameraID string, start, end time.Time) ([]models.ZoneDwellStats, error)
}

type AnalyticsHandler struct {
	live    OccupancySource
	history AnalyticsReader
}

func NewAnalyticsHandler(live OccupancySource, history AnalyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{live: live, history: history}
}

const defaultHistorySpan = 24 * time.Hour

// @Summary Current occupancy
// @Description Live zone occupancy for one camera, or every running camera
// @Tags analytics
// @Produce json
// @Param camera_id query string false "Camera ID"
// @Success 200 {array} models.OccupancySnapshot
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/analytics/current [get]
func (h *AnalyticsHandler) Current(c *gin.Context) {
	ctx := c.Request.Context()
	if id := c.Query("camera_id"); id != "" {
		snap, err := h.live.Snapshot(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, []models.OccupancySnapshot{snap})
		return
	}

	snaps, err := h.live.Snapshots(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snaps)
}

// @Summary Hourly footfall
// @Description Unique non-staff persons per camera and hour
// @Tags analytics
// @Produce json
// @Param camera_id query string false "Camera ID"
// @Param start query string false "RFC3339 start (default 24h ago)"
// @Param end query string false "RFC3339 end (default now)"
// @Success 200 {array} models.HourlyFootfall
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/analytics/footfall [get]
func (h *AnalyticsHandler) Footfall(c *gin.Context) {
	start, end, err := queryRange(c, defaultHistorySpan)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	rows, err := h.history.ListFootfall(c.Request.Context(), c.Query("camera_id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.HourlyFootfall{}
	}
	c.JSON(http.StatusOK, rows)
}

// @Summary Hourly demographics
// @Description Demographic category counts per camera and hour
// @Tags analytics
// @Produce json
// @Param camera_id query string false "Camera ID"
// @Param start query string false "RFC3339 start (default 24h ago)"
// @Param end query string false "RFC3339 end (default now)"
// @Success 200 {array} models.HourlyDemographics
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/analytics/demographics [get]
func (h *AnalyticsHandler) Demographics(c *gin.Context) {
	start, end, err := queryRange(c, defaultHistorySpan)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	rows, err := h.history.ListDemographics(c.Request.Context(), c.Query("camera_id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.HourlyDemographics{}
	}
	c.JSON(http.StatusOK, rows)
}

// @Summary Zone dwell statistics
// @Description Visit counts and dwell times of finalized track visits per zone
// @Tags analytics
// @Produce json
// @Param camera_id query string false "Camera ID"
// @Param start query string false "RFC3339 start (default 24h ago)"
// @Param end query string false "RFC3339 end (default now)"
// @Success 200 {array} models.ZoneDwellStats
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/analytics/dwell [get]
func (h *AnalyticsHandler) Dwell(c *gin.Context) {
	start, end, err := queryRange(c, defaultHistorySpan)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}
	rows, err := h.history.DwellStats(c.Request.Context(), c.Query("camera_id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.ZoneDwellStats{}
	}
	c.JSON(http.StatusOK, rows)
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/models"
)

// AlertService is the alert manager as seen by the API.
type AlertService interface {
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	Acknowledge(ctx context.Context, id int64, actor string) (*models.Alert, error)
	Stats(ctx context.Context, days int) (*models.AlertStats, error)
}

// AlertHandler handles alert endpoints
type AlertHandler struct {
	alerts AlertService
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

type AlertListResponse struct {
	Alerts []models.Alert `json:"alerts"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
}

type AcknowledgeRequest struct {
	Actor string `json:"actor" example:"operator-7"`
}

// @Summary List alerts
// @Description List alerts newest first with optional filters
// @Tags alerts
// @Produce json
// @Param acknowledged query bool false "Filter by acknowledgment"
// @Param severity query string false "Minimum severity (low, medium, high, critical)"
// @Param type query string false "Alert type"
// @Param camera_id query string false "Camera ID"
// @Param suspect_id query string false "Suspect ID of suspect_match alerts"
// @Param start query string false "RFC3339 start time"
// @Param end query string false "RFC3339 end time"
// @Param limit query int false "Maximum rows (default 100, max 1000)"
// @Success 200 {object} AlertListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/alerts [get]
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	filter := models.AlertFilter{CameraID: c.Query("camera_id"), SuspectID: c.Query("suspect_id")}

	if v := c.Query("acknowledged"); v != "" {
		ack, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "acknowledged must be a boolean")
			return
		}
		filter.Acknowledged = &ack
	}
	if v := c.Query("severity"); v != "" {
		sev, ok := models.ParseSeverity(v)
		if !ok {
			badRequest(c, "unknown severity %q", v)
			return
		}
		filter.MinSeverity = sev
	}
	if v := c.Query("type"); v != "" {
		t := models.AlertType(strings.ToLower(v))
		if !t.Valid() {
			badRequest(c, "unknown alert type %q", v)
			return
		}
		filter.AlertType = t
	}

	var err error
	if filter.Start, err = queryTime(c, "start"); err != nil {
		badRequest(c, "%v", err)
		return
	}
	if filter.End, err = queryTime(c, "end"); err != nil {
		badRequest(c, "%v", err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit", models.DefaultAlertLimit); err != nil {
		badRequest(c, "%v", err)
		return
	}

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, AlertListResponse{Alerts: alerts, Count: len(alerts), Limit: filter.EffectiveLimit()})
}

// @Summary Get alert
// @Description Get one alert by ID
// @Tags alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {object} models.Alert
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *AlertHandler) GetAlert(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}
	alert, err := h.alerts.GetAlert(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// @Summary Acknowledge alert
// @Description Mark an alert acknowledged. Acknowledging twice returns the alert unchanged.
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path int true "Alert ID"
// @Param request body AcknowledgeRequest false "Who acknowledged"
// @Success 200 {object} models.Alert
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id, ok := alertID(c)
	if !ok {
		return
	}

	var req AcknowledgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: %v", err)
			return
		}
	}
	if req.Actor == "" {
		req.Actor = "api"
	}

	alert, err := h.alerts.Acknowledge(c.Request.Context(), id, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// @Summary Alert statistics
// @Description Totals by type and severity plus daily counts
// @Tags alerts
// @Produce json
// @Param days query int false "Days to cover (default 7)"
// @Success 200 {object} models.AlertStats
// @Router /api/v1/alerts/stats [get]
func (h *AlertHandler) Stats(c *gin.Context) {
	days, err := queryInt(c, "days", 7)
	if err != nil || days < 1 || days > 366 {
		badRequest(c, "days must be between 1 and 366")
		return
	}
	stats, err := h.alerts.Stats(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func alertID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		badRequest(c, "invalid alert id %q", c.Param("id"))
		return 0, false
	}
	return id, true
}

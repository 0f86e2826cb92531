package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/models"
)

// SightingReader reads the recorded positions of watch-list matches.
type SightingReader interface {
	ListSightings(ctx context.Context, filter models.SightingFilter) ([]models.SuspectSighting, error)
}

type SuspectHandler struct {
	sightings SightingReader
}

func NewSuspectHandler(sightings SightingReader) *SuspectHandler {
	return &SuspectHandler{sightings: sightings}
}

// @Summary Suspect sightings
// @Description Where and when a watch-list suspect was matched, newest first
// @Tags suspects
// @Produce json
// @Param suspect_id path string true "Suspect ID"
// @Param camera_id query string false "Camera ID"
// @Param start query string false "RFC3339 start time"
// @Param end query string false "RFC3339 end time"
// @Param limit query int false "Maximum rows (default 50, max 1000)"
// @Success 200 {array} models.SuspectSighting
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/suspects/{suspect_id}/sightings [get]
func (h *SuspectHandler) Sightings(c *gin.Context) {
	filter := models.SightingFilter{
		SuspectID: c.Param("suspect_id"),
		CameraID:  c.Query("camera_id"),
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
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
		badRequest(c, "end must not be before start")
		return
	}
	if filter.Limit, err = queryInt(c, "limit", models.DefaultSightingLimit); err != nil {
		badRequest(c, "%v", err)
		return
	}

	sightings, err := h.sightings.ListSightings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if sightings == nil {
		sightings = []models.SuspectSighting{}
	}
	c.JSON(http.StatusOK, sightings)
}

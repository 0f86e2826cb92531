package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/services/ingest"
)

const maxEventPayload = 4 << 20

// PayloadHandler decodes and routes detection payloads.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, source string, data []byte) ([]ingest.Result, error)
}

type EventHandler struct {
	ingest PayloadHandler
}

func NewEventHandler(h PayloadHandler) *EventHandler {
	return &EventHandler{ingest: h}
}

type IngestResponse struct {
	Summary ingest.Summary  `json:"summary"`
	Results []ingest.Result `json:"results"`
}

// @Summary Submit detection events
// @Description Submit one detection event object or an array of them. Items are validated independently.
// @Tags events
// @Accept json
// @Produce json
// @Param request body object true "Detection event or array of events"
// @Success 200 {object} IngestResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} IngestResponse "Every valid item was dropped"
// @Router /api/v1/events [post]
func (h *EventHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxEventPayload))
	if err != nil {
		badRequest(c, "failed to read body: %v", err)
		return
	}

	results, err := h.ingest.HandlePayload(c.Request.Context(), "http", body)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := IngestResponse{Summary: ingest.Summarize(results), Results: results}
	status := http.StatusOK
	if resp.Summary.Accepted == 0 && resp.Summary.Dropped > 0 {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

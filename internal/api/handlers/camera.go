package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
)

// CameraRegistry lists configured cameras.
type CameraRegistry interface {
	Cameras() []models.Camera
}

// CameraWorkers reports worker state.
type CameraWorkers interface {
	Statuses(ctx context.Context, configured []models.Camera) []models.CameraStatus
	StopCamera(cameraID string) error
}

// CameraHandler handles camera status endpoints
type CameraHandler struct {
	registry func() CameraRegistry
	workers  CameraWorkers
}

// NewCameraHandler creates a new camera handler. registry is resolved per
// request so a zones reload is visible immediately.
func NewCameraHandler(registry func() CameraRegistry, workers CameraWorkers) *CameraHandler {
	return &CameraHandler{registry: registry, workers: workers}
}

// @Summary List cameras
// @Description List configured cameras and every camera with a running worker
// @Tags cameras
// @Produce json
// @Success 200 {array} models.CameraStatus
// @Router /api/v1/cameras [get]
func (h *CameraHandler) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, h.workers.Statuses(c.Request.Context(), h.registry().Cameras()))
}

// @Summary Get camera
// @Description Get the status of one camera
// @Tags cameras
// @Produce json
// @Param camera_id path string true "Camera ID"
// @Success 200 {object} models.CameraStatus
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/cameras/{camera_id} [get]
func (h *CameraHandler) GetCamera(c *gin.Context) {
	id := c.Param("camera_id")
	for _, st := range h.workers.Statuses(c.Request.Context(), h.registry().Cameras()) {
		if st.CameraID == id {
			c.JSON(http.StatusOK, st)
			return
		}
	}
	respondError(c, engineerrors.NotFound("camera", id))
}

// @Summary Stop camera worker
// @Description Stop a camera worker and finalize its open visits. The worker restarts on the next event.
// @Tags cameras
// @Produce json
// @Param camera_id path string true "Camera ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/cameras/{camera_id}/stop [post]
func (h *CameraHandler) StopCamera(c *gin.Context) {
	id := c.Param("camera_id")
	if err := h.workers.StopCamera(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Camera worker stopped"})
}

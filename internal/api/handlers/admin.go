package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/services/aggregation"
	"sentinel-engine-go/internal/services/suspects"
)

// ZoneReloader swaps in a freshly loaded zone configuration.
type ZoneReloader interface {
	ReloadZones() ([]models.Camera, error)
}

// GalleryReloader reloads the suspect gallery.
type GalleryReloader interface {
	Reload(ctx context.Context) (*suspects.Gallery, error)
}

// Aggregator runs hourly rollups on demand.
type Aggregator interface {
	RunOnce(ctx context.Context) (aggregation.Result, error)
	RunHour(ctx context.Context, t time.Time) (aggregation.Result, error)
}

// AdminHandler handles operational endpoints
type AdminHandler struct {
	zones      ZoneReloader
	gallery    GalleryReloader
	aggregator Aggregator
}

func NewAdminHandler(zones ZoneReloader, gallery GalleryReloader, aggregator Aggregator) *AdminHandler {
	return &AdminHandler{zones: zones, gallery: gallery, aggregator: aggregator}
}

type ZonesReloadResponse struct {
	Cameras int `json:"cameras"`
	Zones   int `json:"zones"`
}

type GalleryReloadResponse struct {
	Source   string    `json:"source"`
	Entries  int       `json:"entries"`
	Active   int       `json:"active"`
	LoadedAt time.Time `json:"loaded_at"`
}

// @Summary Reload zones
// @Description Re-read the zones file and swap it in for running workers
// @Tags admin
// @Produce json
// @Success 200 {object} ZonesReloadResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/admin/zones/reload [post]
func (h *AdminHandler) ReloadZones(c *gin.Context) {
	cameras, err := h.zones.ReloadZones()
	if err != nil {
		badRequest(c, "failed to reload zones: %v", err)
		return
	}
	resp := ZonesReloadResponse{Cameras: len(cameras)}
	for _, cam := range cameras {
		resp.Zones += len(cam.Zones)
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Reload suspect gallery
// @Description Load the suspect gallery now instead of waiting for the refresh interval
// @Tags admin
// @Produce json
// @Success 200 {object} GalleryReloadResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/admin/suspects/reload [post]
func (h *AdminHandler) ReloadSuspects(c *gin.Context) {
	g, err := h.gallery.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "GALLERY_UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, GalleryReloadResponse{
		Source:   g.Source,
		Entries:  len(g.Entries),
		Active:   g.Size(),
		LoadedAt: g.LoadedAt,
	})
}

// @Summary Run aggregation
// @Description Aggregate the lookback window, or one completed hour when hour is given
// @Tags admin
// @Produce json
// @Param hour query string false "RFC3339 time inside the hour to aggregate"
// @Success 200 {object} aggregation.Result
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/admin/aggregate [post]
func (h *AdminHandler) Aggregate(c *gin.Context) {
	hour, err := queryTime(c, "hour")
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	var res aggregation.Result
	if hour.IsZero() {
		res, err = h.aggregator.RunOnce(c.Request.Context())
	} else {
		res, err = h.aggregator.RunHour(c.Request.Context(), hour)
	}
	if err != nil {
		if hour.IsZero() {
			respondError(c, err)
		} else {
			badRequest(c, "%v", err)
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

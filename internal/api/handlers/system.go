package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-engine-go/internal/observability"
)

// WorkerStats reports camera worker counts.
type WorkerStats interface {
	GetStats() (total int, running int)
}

// SubscriberCounter reports live fan-out subscribers.
type SubscriberCounter interface {
	Len() int
}

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	EngineID  string
	counters  *observability.Counters
	workers   WorkerStats
	hub       SubscriberCounter
	startedAt time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(engineID string, counters *observability.Counters, workers WorkerStats, hub SubscriberCounter) *SystemHandler {
	return &SystemHandler{
		EngineID:  engineID,
		counters:  counters,
		workers:   workers,
		hub:       hub,
		startedAt: time.Now(),
	}
}

// @Summary Get system stats
// @Description Get runtime statistics, worker counts and live subscribers
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	total, running := h.workers.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"engine_id":        h.EngineID,
			"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
			"memory_mb":        m.Alloc / 1024 / 1024,
			"cpu_cores":        runtime.NumCPU(),
			"goroutines":       runtime.NumGoroutine(),
			"go_version":       runtime.Version(),
			"camera_workers":   total,
			"running_workers":  running,
			"live_subscribers": h.hub.Len(),
		},
		"timestamp": time.Now().Unix(),
	})
}

// @Summary Get counters
// @Description Get event, alert and fan-out counters since start
// @Tags system
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /api/v1/system/counters [get]
func (h *SystemHandler) GetCounters(c *gin.Context) {
	c.JSON(http.StatusOK, h.counters.Snapshot())
}

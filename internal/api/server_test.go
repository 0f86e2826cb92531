package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/api/handlers"
	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/services"
)

const zonesYAML = `
cameras:
  - id: cam_1
    name: Back office
    zones:
      - id: storage
        restricted: true
        polygon: [[0, 0], [10, 0], [10, 10], [0, 10]]
      - id: aisle
        polygon: [[20, 0], [30, 0], [30, 10], [20, 10]]
`

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	zonesFile := filepath.Join(dir, "zones.yaml")
	require.NoError(t, os.WriteFile(zonesFile, []byte(zonesYAML), 0o644))

	cfg := config.Load()
	cfg.Environment = "test"
	cfg.StoreDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(dir, "sentinel.db")
	cfg.ZonesFile = zonesFile
	cfg.SuspectGalleryFile = ""
	cfg.SuspectGalleryRedisKey = ""
	cfg.NatsEnabled = false
	cfg.MQTTEnabled = false
	cfg.GRPCEnabled = false
	cfg.S3PresignEnabled = false
	cfg.DetectionFlushInterval = 20 * time.Millisecond

	container, err := services.NewServiceContainer(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, container.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, container.Shutdown(ctx))
	})

	server, err := NewServer(cfg, container)
	require.NoError(t, err)
	return server.Handler()
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_EventToAcknowledgedAlert(t *testing.T) {
	h := newTestServer(t)

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	body := fmt.Sprintf(`[
		{"camera_id":"cam_1","track_id":"t1","timestamp":%q,"x":5,"y":5,"confidence":0.9},
		{"camera_id":"cam_1","timestamp":%q,"x":5,"y":5,"confidence":0.9}
	]`, ts, ts)

	w := do(h, http.MethodPost, "/api/v1/events", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ingestResp handlers.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingestResp))
	assert.Equal(t, 1, ingestResp.Summary.Accepted)
	assert.Equal(t, 1, ingestResp.Summary.Malformed)

	var list handlers.AlertListResponse
	require.Eventually(t, func() bool {
		w := do(h, http.MethodGet, "/api/v1/alerts?type=restricted_area&camera_id=cam_1", "")
		if w.Code != http.StatusOK {
			return false
		}
		list = handlers.AlertListResponse{}
		return json.Unmarshal(w.Body.Bytes(), &list) == nil && list.Count == 1
	}, 3*time.Second, 10*time.Millisecond)

	alert := list.Alerts[0]
	assert.Equal(t, "storage", alert.ZoneID)
	assert.False(t, alert.Acknowledged)

	w = do(h, http.MethodPost, fmt.Sprintf("/api/v1/alerts/%d/acknowledge", alert.ID), `{"actor":"guard"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var acked models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acked))
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, "guard", *acked.AcknowledgedBy)

	w = do(h, http.MethodGet, "/api/v1/alerts?acknowledged=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Zero(t, list.Count)

	w = do(h, http.MethodGet, "/api/v1/analytics/current?camera_id=cam_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snaps []models.OccupancySnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].ActiveTracks)
}

func TestServer_Endpoints(t *testing.T) {
	h := newTestServer(t)

	w := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodGet, "/api/info", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodGet, "/api/v1/cameras", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cams []models.CameraStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cams))
	require.Len(t, cams, 1)
	assert.Equal(t, "cam_1", cams[0].CameraID)
	assert.Equal(t, 2, cams[0].ZoneCount)
	assert.Equal(t, models.WorkerStateStopped, cams[0].State)

	w = do(h, http.MethodGet, "/api/v1/alerts/12345", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodGet, "/api/v1/analytics/footfall", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(h, http.MethodGet, "/api/v1/system/counters", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodPost, "/api/v1/admin/zones/reload", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cameras":1,"zones":2}`, w.Body.String())

	// no gallery source is configured
	w = do(h, http.MethodPost, "/api/v1/admin/suspects/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(h, http.MethodPost, "/api/v1/admin/aggregate", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodOptions, "/api/v1/alerts", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

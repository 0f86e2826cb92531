// Package camera runs one worker goroutine per camera. A worker owns its
// camera's track store and applies zone, dwell and alert rules to that
// camera's detection stream in order.
package camera

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/services/postprocessing"
	"sentinel-engine-go/internal/services/postprocessing/alerts"
)

// Dependencies are the shared sinks and settings handed to every worker.
type Dependencies struct {
	Cameras    CameraLookup
	Alerts     AlertSubmitter
	Matcher    SuspectMatcher
	Detections DetectionSink
	Counters   *observability.Counters
	Rules      alerts.Rules
	Logger     zerolog.Logger

	IdleTimeout   time.Duration
	Hysteresis    time.Duration
	SweepInterval time.Duration
	EventBuffer   int

	// how long alert times are remembered per track, at least the longest
	// cooldown; tracks may be evicted and return well within it
	AlertRetention time.Duration
}

// DependenciesFromConfig fills the settings part of Dependencies.
func DependenciesFromConfig(cfg *config.Config) Dependencies {
	return Dependencies{
		Rules:          alerts.RulesFromConfig(cfg),
		Logger:         logging.NewServiceLogger(cfg, "camera"),
		IdleTimeout:    cfg.TrackIdleTimeout,
		Hysteresis:     cfg.ZoneHysteresis,
		SweepInterval:  cfg.TrackSweepInterval,
		EventBuffer:    cfg.CameraEventBuffer,
		AlertRetention: postprocessing.NewDeduper(cfg).MaxCooldown(),
	}
}

// Manager routes events to per-camera workers, creating them lazily.
type Manager struct {
	cfg    *config.Config
	deps   Dependencies
	logger zerolog.Logger

	workers map[string]*Worker
	mutex   sync.RWMutex
	closed  bool

	maxCameras     int
	enqueueTimeout time.Duration
	stopTimeout    time.Duration
}

// NewManager creates a manager. deps.Cameras and deps.Alerts are required.
func NewManager(cfg *config.Config, deps Dependencies) (*Manager, error) {
	if deps.Cameras == nil {
		return nil, fmt.Errorf("camera lookup is required")
	}
	if deps.Alerts == nil {
		return nil, fmt.Errorf("alert manager is required")
	}
	if deps.EventBuffer <= 0 {
		deps.EventBuffer = 256
	}

	m := &Manager{
		cfg:            cfg,
		deps:           deps,
		logger:         deps.Logger,
		workers:        make(map[string]*Worker),
		maxCameras:     cfg.MaxCameras,
		enqueueTimeout: cfg.EventEnqueueTimeout,
		stopTimeout:    5 * time.Second,
	}
	if m.enqueueTimeout <= 0 {
		m.enqueueTimeout = 2 * time.Second
	}

	m.logger.Info().
		Int("max_cameras", m.maxCameras).
		Int("event_buffer", deps.EventBuffer).
		Dur("enqueue_timeout", m.enqueueTimeout).
		Dur("idle_timeout", deps.IdleTimeout).
		Dur("hysteresis", deps.Hysteresis).
		Msg("Camera manager initialized")

	return m, nil
}

// Submit routes a validated event to its camera's worker. Events of
// cameras configured as inactive are dropped; events that cannot be queued
// within the enqueue timeout are dropped as backpressure.
func (m *Manager) Submit(ctx context.Context, evt models.DetectionEvent) error {
	if cam, ok := m.deps.Cameras.Camera(evt.CameraID); ok && !cam.Active {
		m.deps.Counters.Inc(observability.EventsInactiveCamera)
		return engineerrors.ErrCameraInactive
	}

	w, err := m.worker(evt.CameraID)
	if err != nil {
		m.deps.Counters.Inc(observability.EventsDropped)
		return err
	}

	if err := w.Enqueue(ctx, evt, m.enqueueTimeout); err != nil {
		m.deps.Counters.Inc(observability.EventsDropped)
		m.logger.Warn().
			Err(err).
			Str("camera_id", evt.CameraID).
			Str("track_id", evt.TrackID).
			Msg("Dropped detection event")
		return err
	}
	return nil
}

// worker returns the running worker of cameraID, starting one if needed.
func (m *Manager) worker(cameraID string) (*Worker, error) {
	m.mutex.RLock()
	w, ok := m.workers[cameraID]
	closed := m.closed
	m.mutex.RUnlock()
	if ok {
		return w, nil
	}
	if closed {
		return nil, fmt.Errorf("camera manager is shut down")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if w, ok := m.workers[cameraID]; ok {
		return w, nil
	}
	if m.closed {
		return nil, fmt.Errorf("camera manager is shut down")
	}
	if m.maxCameras > 0 && len(m.workers) >= m.maxCameras {
		return nil, engineerrors.ErrCameraLimit.WithDetails(map[string]interface{}{
			"camera_id":   cameraID,
			"max_cameras": m.maxCameras,
		})
	}

	w = newWorker(cameraID, m.deps)
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("failed to start camera %s: %w", cameraID, err)
	}
	m.workers[cameraID] = w
	return w, nil
}

// Snapshot returns the live occupancy of one camera. A configured camera
// with no worker yet reports empty zones.
func (m *Manager) Snapshot(ctx context.Context, cameraID string) (models.OccupancySnapshot, error) {
	m.mutex.RLock()
	w, ok := m.workers[cameraID]
	m.mutex.RUnlock()
	if ok {
		return w.Snapshot(ctx)
	}

	cam, configured := m.deps.Cameras.Camera(cameraID)
	if !configured {
		return models.OccupancySnapshot{}, engineerrors.NotFound("camera", cameraID)
	}
	snap := models.OccupancySnapshot{CameraID: cameraID, Timestamp: time.Now().UTC(), Zones: []models.ZoneOccupancy{}}
	for _, z := range cam.Zones {
		snap.Zones = append(snap.Zones, models.ZoneOccupancy{ZoneID: z.ID, Restricted: z.Restricted, Demographics: map[string]int{}})
	}
	return snap, nil
}

// Snapshots returns the live occupancy of every running camera, ordered by
// camera id.
func (m *Manager) Snapshots(ctx context.Context) ([]models.OccupancySnapshot, error) {
	out := make([]models.OccupancySnapshot, 0)
	for _, id := range m.cameraIDs() {
		snap, err := m.Snapshot(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn().Err(err).Str("camera_id", id).Msg("Skipping camera snapshot")
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (m *Manager) cameraIDs() []string {
	m.mutex.RLock()
	ids := make([]string, 0, len(m.workers))
	for id := range m.workers {
		ids = append(ids, id)
	}
	m.mutex.RUnlock()
	sort.Strings(ids)
	return ids
}

// Statuses lists running workers and configured cameras without one.
func (m *Manager) Statuses(ctx context.Context, configured []models.Camera) []models.CameraStatus {
	byID := make(map[string]models.CameraStatus)

	m.mutex.RLock()
	for id, w := range m.workers {
		byID[id] = w.Status()
	}
	m.mutex.RUnlock()

	for id, st := range byID {
		if snap, err := m.Snapshot(ctx, id); err == nil {
			st.ActiveTracks = snap.ActiveTracks
		}
		byID[id] = st
	}

	for _, cam := range configured {
		st, ok := byID[cam.ID]
		if !ok {
			st = models.CameraStatus{CameraID: cam.ID, State: models.WorkerStateStopped}
		}
		st.Name = cam.Name
		st.Configured = true
		st.Active = cam.Active
		st.ZoneCount = len(cam.Zones)
		byID[cam.ID] = st
	}

	out := make([]models.CameraStatus, 0, len(byID))
	for _, st := range byID {
		if !st.Configured {
			st.Active = true
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}

// GetStats returns the number of workers and how many are running.
func (m *Manager) GetStats() (int, int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	running := 0
	for _, w := range m.workers {
		if w.State() == models.WorkerStateRunning {
			running++
		}
	}
	return len(m.workers), running
}

// StopCamera stops and removes one worker; its open tracks are closed.
func (m *Manager) StopCamera(cameraID string) error {
	m.mutex.Lock()
	w, ok := m.workers[cameraID]
	delete(m.workers, cameraID)
	m.mutex.Unlock()

	if !ok {
		return engineerrors.NotFound("camera", cameraID)
	}
	return w.Stop(m.stopTimeout)
}

// Shutdown stops every worker. No new workers are created afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mutex.Lock()
	m.closed = true
	workers := m.workers
	m.workers = make(map[string]*Worker)
	m.mutex.Unlock()

	m.logger.Info().Int("cameras", len(workers)).Msg("Shutting down camera manager")

	timeout := m.stopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	var wg sync.WaitGroup
	for id, w := range workers {
		wg.Add(1)
		go func(id string, w *Worker) {
			defer wg.Done()
			if err := w.Stop(timeout); err != nil {
				m.logger.Error().Err(err).Str("camera_id", id).Msg("Failed to stop camera during shutdown")
			}
		}(id, w)
	}
	wg.Wait()
	return nil
}

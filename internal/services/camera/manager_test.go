package camera

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/config"
	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/services/fanout"
	"sentinel-engine-go/internal/services/postprocessing"
	"sentinel-engine-go/internal/services/suspects"
	"sentinel-engine-go/internal/store/sqlite"
	"sentinel-engine-go/internal/zones"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func rect(x0, y0, x1, y1 float64) []models.Point {
	return []models.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func testConfig() *config.Config {
	return &config.Config{
		EngineID:                   "test",
		ZoneHysteresis:             time.Second,
		TrackIdleTimeout:           30 * time.Second,
		TrackSweepInterval:         time.Hour,
		LoiteringThreshold:         300 * time.Second,
		CooldownLoitering:          300 * time.Second,
		CooldownRestrictedArea:     60 * time.Second,
		CooldownSuspectMatch:       600 * time.Second,
		CooldownSuspiciousBehavior: 120 * time.Second,
		AlertPersistAttempts:       2,
		AlertPersistBackoff:        time.Millisecond,
		MaxCameras:                 4,
		CameraEventBuffer:          64,
		EventEnqueueTimeout:        50 * time.Millisecond,
		FanoutBuffer:               64,
	}
}

type recordingSink struct {
	mu        sync.Mutex
	records   []models.DetectionRecord
	visits    []models.TrackVisit
	sightings []models.SuspectSighting
}

func (r *recordingSink) Enqueue(_ context.Context, record models.DetectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *recordingSink) EnqueueVisits(_ context.Context, visits []models.TrackVisit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, visits...)
	return nil
}

func (r *recordingSink) EnqueueSighting(_ context.Context, sighting models.SuspectSighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sightings = append(r.sightings, sighting)
	return nil
}

type harness struct {
	manager  *Manager
	alerts   *postprocessing.Service
	db       *sqlite.DB
	hub      *fanout.Hub
	sink     *recordingSink
	counters *observability.Counters
	accepted int64
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	idx, err := zones.NewIndex([]models.Camera{
		{
			ID:     "cam_1",
			Name:   "Shop floor",
			Active: true,
			Zones: []models.Zone{
				{ID: "storage", Polygon: rect(0, 0, 10, 10), Restricted: true},
				{ID: "perfume", Polygon: rect(20, 0, 30, 10)},
			},
		},
		{ID: "cam_off", Name: "Disabled", Active: false},
	})
	require.NoError(t, err)

	db, err := sqlite.New(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	counters := observability.NewCounters()
	hub := fanout.NewHub(cfg, counters)
	alertSvc, err := postprocessing.NewService(cfg, db, hub, counters)
	require.NoError(t, err)

	matcher := suspects.NewMatcher(0.6)
	matcher.Swap(suspects.NewGallery([]models.SuspectEntry{
		{SuspectID: "s5", Name: "Known shoplifter", FeatureVectors: [][]float64{{0.1, 0.2, 0.3}}, Active: true},
	}, "test", t0))

	sink := &recordingSink{}
	deps := DependenciesFromConfig(cfg)
	deps.Cameras = zones.NewHolder(idx)
	deps.Alerts = alertSvc
	deps.Matcher = matcher
	deps.Detections = sink
	deps.Counters = counters

	m, err := NewManager(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	return &harness{manager: m, alerts: alertSvc, db: db, hub: hub, sink: sink, counters: counters}
}

// send submits events and waits until the workers have handled them. A
// worker serves snapshots from its event loop, so a snapshot taken after the
// last event was picked up returns only once that event is done.
func (h *harness) send(t *testing.T, events ...models.DetectionEvent) {
	t.Helper()
	cameras := make(map[string]bool)
	for _, evt := range events {
		require.NoError(t, h.manager.Submit(context.Background(), evt))
		cameras[evt.CameraID] = true
	}
	h.accepted += int64(len(events))
	require.Eventually(t, func() bool {
		return h.counters.Get(observability.EventsAccepted) == h.accepted
	}, 2*time.Second, 2*time.Millisecond)
	for id := range cameras {
		_, err := h.manager.Snapshot(context.Background(), id)
		require.NoError(t, err)
	}
}

func (h *harness) alertsOf(t *testing.T, alertType models.AlertType) []models.Alert {
	t.Helper()
	list, err := h.alerts.ListAlerts(context.Background(), models.AlertFilter{AlertType: alertType})
	require.NoError(t, err)
	return list
}

func ev(track string, at time.Duration, x, y float64) models.DetectionEvent {
	return models.DetectionEvent{
		CameraID:   "cam_1",
		TrackID:    track,
		Timestamp:  t0.Add(at),
		Position:   models.Point{X: x, Y: y},
		Confidence: 0.9,
	}
}

func TestScenario_RestrictedAreaOncePerCooldown(t *testing.T) {
	h := newHarness(t, testConfig())
	sub := h.hub.Subscribe()

	var events []models.DetectionEvent
	for s := 0; s <= 50; s += 5 {
		events = append(events, ev("t1", time.Duration(s)*time.Second, 5, 5))
	}
	h.send(t, events...)

	list := h.alertsOf(t, models.AlertTypeRestrictedArea)
	require.Len(t, list, 1)
	assert.Equal(t, "cam_1", list[0].CameraID)
	assert.Equal(t, "t1", list[0].TrackID)
	assert.Equal(t, "storage", list[0].ZoneID)
	assert.Equal(t, models.AlertSeverityHigh, list[0].Severity)
	assert.False(t, list[0].Acknowledged)

	msg := <-sub.Messages()
	assert.Equal(t, models.FanoutAlertCreated, msg.Type)
	assert.Equal(t, list[0].ID, msg.Alert.ID)

	// past the 60s cooldown the still-present track alerts again
	h.send(t, ev("t1", 61*time.Second, 5, 5))
	assert.Len(t, h.alertsOf(t, models.AlertTypeRestrictedArea), 2)
	assert.Equal(t, int64(10), h.counters.Get(observability.AlertsSuppressed))
}

func TestScenario_StaffNeverTriggersRestrictedArea(t *testing.T) {
	h := newHarness(t, testConfig())
	staff := true

	first := ev("s1", 0, 5, 5)
	first.IsStaffHint = &staff
	h.send(t, first)
	// later events without the hint keep the staff classification
	h.send(t, ev("s1", 10*time.Second, 5, 5), ev("s1", 400*time.Second, 25, 5), ev("s1", 800*time.Second, 25, 5))

	assert.Empty(t, h.alertsOf(t, models.AlertTypeRestrictedArea))
	assert.Empty(t, h.alertsOf(t, models.AlertTypeLoitering))
}

func TestScenario_LoiteringFiresOnceAfterThreshold(t *testing.T) {
	h := newHarness(t, testConfig())

	var events []models.DetectionEvent
	for s := 0; s <= 400; s += 10 {
		events = append(events, ev("t2", time.Duration(s)*time.Second, 25, 5))
	}
	h.send(t, events...)

	list := h.alertsOf(t, models.AlertTypeLoitering)
	require.Len(t, list, 1)
	assert.Equal(t, "perfume", list[0].ZoneID)
	assert.Equal(t, "t2", list[0].TrackID)
	assert.Equal(t, models.AlertSeverityMedium, list[0].Severity)
}

func TestScenario_LeavingZoneResetsDwell(t *testing.T) {
	h := newHarness(t, testConfig())

	h.send(t,
		ev("t2", 0, 25, 5),
		ev("t2", 200*time.Second, 25, 5),
		// out of every zone for longer than the hysteresis window
		ev("t2", 210*time.Second, 50, 50),
		ev("t2", 215*time.Second, 50, 50),
		ev("t2", 220*time.Second, 25, 5),
		ev("t2", 500*time.Second, 25, 5),
	)
	assert.Empty(t, h.alertsOf(t, models.AlertTypeLoitering))

	h.send(t, ev("t2", 521*time.Second, 25, 5))
	assert.Len(t, h.alertsOf(t, models.AlertTypeLoitering), 1)
}

func TestScenario_SuspectMatch(t *testing.T) {
	h := newHarness(t, testConfig())

	e := ev("t3", 0, 50, 50)
	e.FeatureVector = []float64{0.1, 0.2, 0.31}
	h.send(t, e)

	list := h.alertsOf(t, models.AlertTypeSuspectMatch)
	require.Len(t, list, 1)
	assert.Equal(t, models.AlertSeverityCritical, list[0].Severity)
	require.NotNil(t, list[0].SuspectID)
	assert.Equal(t, "s5", *list[0].SuspectID)
	require.NotNil(t, list[0].Similarity)
	assert.InDelta(t, 0.99, *list[0].Similarity, 1e-9)
}

func TestScenario_EverySuspectMatchIsASighting(t *testing.T) {
	h := newHarness(t, testConfig())

	first := ev("t3", 0, 50, 50)
	first.FeatureVector = []float64{0.1, 0.2, 0.31}
	second := ev("t3", 20*time.Second, 25, 5)
	second.FeatureVector = []float64{0.1, 0.2, 0.31}
	unmatched := ev("t4", 20*time.Second, 50, 50)
	unmatched.FeatureVector = []float64{-0.3, 0.2, -0.1}
	h.send(t, first, second, unmatched)

	// the second match is inside the cooldown: no alert, still a sighting
	assert.Len(t, h.alertsOf(t, models.AlertTypeSuspectMatch), 1)

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	require.Len(t, h.sink.sightings, 2)
	assert.Equal(t, "s5", h.sink.sightings[0].SuspectID)
	assert.Equal(t, "t3", h.sink.sightings[0].TrackID)
	assert.Equal(t, "", h.sink.sightings[0].ZoneID)
	assert.True(t, t0.Equal(h.sink.sightings[0].Timestamp))
	assert.Equal(t, "perfume", h.sink.sightings[1].ZoneID)
	assert.InDelta(t, 0.99, h.sink.sightings[1].Similarity, 1e-9)
}

func TestScenario_CooldownSurvivesTrackEviction(t *testing.T) {
	cfg := testConfig()
	cfg.TrackSweepInterval = 5 * time.Millisecond
	h := newHarness(t, cfg)

	h.send(t, ev("t1", 0, 5, 5))
	require.Len(t, h.alertsOf(t, models.AlertTypeRestrictedArea), 1)

	// another track moves the event clock past the idle timeout of t1
	h.send(t, ev("t2", 34*time.Second, 25, 5))
	require.Eventually(t, func() bool {
		return h.counters.Get(observability.TracksEvicted) >= 1
	}, 2*time.Second, 2*time.Millisecond)

	// t1 comes back 35s after its alert, inside the 60s cooldown
	h.send(t, ev("t1", 35*time.Second, 5, 5))
	assert.Len(t, h.alertsOf(t, models.AlertTypeRestrictedArea), 1)

	h.send(t, ev("t1", 61*time.Second, 5, 5))
	assert.Len(t, h.alertsOf(t, models.AlertTypeRestrictedArea), 2)
}

func TestScenario_AcknowledgeTwice(t *testing.T) {
	h := newHarness(t, testConfig())
	h.send(t, ev("t1", 0, 5, 5))

	list := h.alertsOf(t, models.AlertTypeRestrictedArea)
	require.Len(t, list, 1)

	first, err := h.alerts.Acknowledge(context.Background(), list[0].ID, "guard-1")
	require.NoError(t, err)
	second, err := h.alerts.Acknowledge(context.Background(), list[0].ID, "guard-2")
	require.NoError(t, err)

	assert.True(t, second.Acknowledged)
	require.NotNil(t, second.AcknowledgedBy)
	assert.Equal(t, "guard-1", *second.AcknowledgedBy)
	require.NotNil(t, first.AcknowledgedAt)
	require.NotNil(t, second.AcknowledgedAt)
	assert.True(t, first.AcknowledgedAt.Equal(*second.AcknowledgedAt))
}

func TestManager_InactiveCameraDropped(t *testing.T) {
	h := newHarness(t, testConfig())

	e := ev("t1", 0, 5, 5)
	e.CameraID = "cam_off"
	err := h.manager.Submit(context.Background(), e)
	assert.True(t, errors.Is(err, engineerrors.ErrCameraInactive))
	assert.Equal(t, int64(1), h.counters.Get(observability.EventsInactiveCamera))

	total, _ := h.manager.GetStats()
	assert.Equal(t, 0, total)
}

func TestManager_UnconfiguredCameraStillProcessed(t *testing.T) {
	h := newHarness(t, testConfig())

	e := ev("t1", 0, 5, 5)
	e.CameraID = "cam_new"
	h.send(t, e)

	total, running := h.manager.GetStats()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, running)
	assert.Empty(t, h.alertsOf(t, models.AlertTypeRestrictedArea))
}

func TestManager_CameraLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCameras = 1
	h := newHarness(t, cfg)

	h.send(t, ev("t1", 0, 50, 50))
	e := ev("t1", 0, 50, 50)
	e.CameraID = "cam_2"
	err := h.manager.Submit(context.Background(), e)
	assert.True(t, errors.Is(err, engineerrors.ErrCameraLimit))
	assert.Equal(t, int64(1), h.counters.Get(observability.EventsDropped))
}

func TestManager_SnapshotAndStatuses(t *testing.T) {
	h := newHarness(t, testConfig())
	h.send(t,
		ev("t1", 0, 5, 5),
		ev("t2", 0, 25, 5),
		ev("t3", 0, 26, 6),
		ev("t4", 0, 50, 50),
	)

	snap, err := h.manager.Snapshot(context.Background(), "cam_1")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.ActiveTracks)
	assert.Equal(t, 1, snap.Unzoned)
	require.Len(t, snap.Zones, 2)
	assert.Equal(t, "storage", snap.Zones[0].ZoneID)
	assert.Equal(t, 1, snap.Zones[0].Count)
	assert.Equal(t, "perfume", snap.Zones[1].ZoneID)
	assert.Equal(t, 2, snap.Zones[1].Count)

	_, err = h.manager.Snapshot(context.Background(), "nope")
	assert.True(t, errors.Is(err, engineerrors.ErrNotFound))

	statuses := h.manager.Statuses(context.Background(), []models.Camera{
		{ID: "cam_1", Name: "Shop floor", Active: true},
		{ID: "cam_off", Name: "Disabled"},
	})
	require.Len(t, statuses, 2)
	assert.Equal(t, "cam_1", statuses[0].CameraID)
	assert.Equal(t, models.WorkerStateRunning, statuses[0].State)
	assert.Equal(t, 4, statuses[0].ActiveTracks)
	assert.Equal(t, int64(4), statuses[0].EventsHandled)
	assert.Equal(t, models.WorkerStateStopped, statuses[1].State)
	assert.False(t, statuses[1].Active)
}

func TestManager_ShutdownClosesOpenVisits(t *testing.T) {
	h := newHarness(t, testConfig())
	h.send(t, ev("t2", 0, 25, 5), ev("t2", 40*time.Second, 25, 5))

	require.NoError(t, h.manager.Shutdown(context.Background()))

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	require.Len(t, h.sink.records, 2)
	assert.Contains(t, h.sink.records[0].DetectionData, `"zone_id":"perfume"`)
	require.Len(t, h.sink.visits, 1)
	assert.Equal(t, "perfume", h.sink.visits[0].ZoneID)
	assert.InDelta(t, 40.0, h.sink.visits[0].DwellSeconds, 1e-9)
	assert.Equal(t, int64(1), h.counters.Get(observability.TracksEvicted))

	err := h.manager.Submit(context.Background(), ev("t2", 50*time.Second, 25, 5))
	assert.Error(t, err)
}

type panickyMatcher struct{}

func (panickyMatcher) Match([]float64) (*models.SuspectMatch, error) { panic("boom") }

func TestWorker_RecoversFromPanic(t *testing.T) {
	h := newHarness(t, testConfig())
	h.manager.deps.Matcher = panickyMatcher{}

	bad := ev("t9", 0, 50, 50)
	bad.FeatureVector = []float64{1}
	require.NoError(t, h.manager.Submit(context.Background(), bad))
	require.Eventually(t, func() bool {
		return h.counters.Get(observability.WorkerPanicsRecovered) == 1
	}, 2*time.Second, 2*time.Millisecond)

	h.accepted = h.counters.Get(observability.EventsAccepted)
	h.send(t, ev("t1", time.Second, 5, 5))
	assert.Len(t, h.alertsOf(t, models.AlertTypeRestrictedArea), 1)
}

type blockingSubmitter struct {
	release chan struct{}
	calls   atomic.Int64
}

func (b *blockingSubmitter) Submit(_ context.Context, _ *postprocessing.AlertHistory, _ models.AlertCandidate) (*models.Alert, postprocessing.Outcome, error) {
	b.calls.Add(1)
	if b.release != nil {
		<-b.release
	}
	return nil, postprocessing.OutcomeSuppressed, nil
}

func newTestWorker(t *testing.T, submitter AlertSubmitter) *Worker {
	t.Helper()
	idx, err := zones.NewIndex([]models.Camera{{
		ID:     "cam_1",
		Active: true,
		Zones:  []models.Zone{{ID: "storage", Polygon: rect(0, 0, 10, 10), Restricted: true}},
	}})
	require.NoError(t, err)

	deps := DependenciesFromConfig(testConfig())
	deps.Logger = zerolog.Nop()
	deps.Cameras = zones.NewHolder(idx)
	deps.Alerts = submitter
	deps.EventBuffer = 1024
	return newWorker("cam_1", deps)
}

func TestWorker_StopTimeoutLeavesStopping(t *testing.T) {
	sub := &blockingSubmitter{release: make(chan struct{})}
	w := newTestWorker(t, sub)
	require.NoError(t, w.Start())

	require.NoError(t, w.Enqueue(context.Background(), ev("t1", 0, 5, 5), time.Second))
	require.Eventually(t, func() bool { return sub.calls.Load() == 1 }, 2*time.Second, 2*time.Millisecond)

	err := w.Stop(20 * time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, models.WorkerStateStopping, w.State())

	close(sub.release)
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after release")
	}
	assert.Equal(t, models.WorkerStateStopped, w.State())
}

func TestWorker_NoEventAcceptedAfterStopIsLost(t *testing.T) {
	w := newTestWorker(t, &blockingSubmitter{})
	require.NoError(t, w.Start())

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e := ev("t1", time.Duration(g*100+i)*time.Millisecond, 50, 50)
				if w.Enqueue(context.Background(), e, time.Second) == nil {
					accepted.Add(1)
				}
			}
		}(g)
	}

	time.Sleep(time.Millisecond)
	require.NoError(t, w.Stop(5*time.Second))
	wg.Wait()

	assert.Equal(t, accepted.Load(), w.Status().EventsHandled)
	assert.Error(t, w.Enqueue(context.Background(), ev("t1", time.Hour, 50, 50), time.Second))
}

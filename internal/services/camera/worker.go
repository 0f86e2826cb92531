package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/services/detection"
	"sentinel-engine-go/internal/services/postprocessing"
	"sentinel-engine-go/internal/services/postprocessing/alerts"
	"sentinel-engine-go/internal/tracking"
)

// AlertSubmitter is the alert manager as seen by a worker.
type AlertSubmitter interface {
	Submit(ctx context.Context, history *postprocessing.AlertHistory, c models.AlertCandidate) (*models.Alert, postprocessing.Outcome, error)
}

// SuspectMatcher looks a feature vector up in the suspect gallery.
type SuspectMatcher interface {
	Match(vector []float64) (*models.SuspectMatch, error)
}

// DetectionSink receives persisted forms of accepted events, visits and
// suspect sightings.
type DetectionSink interface {
	Enqueue(ctx context.Context, record models.DetectionRecord) error
	EnqueueVisits(ctx context.Context, visits []models.TrackVisit) error
	EnqueueSighting(ctx context.Context, sighting models.SuspectSighting) error
}

// CameraLookup resolves zones and camera configuration.
type CameraLookup interface {
	tracking.ZoneResolver
	Camera(cameraID string) (*models.Camera, bool)
}

type snapshotRequest struct {
	reply chan models.OccupancySnapshot
}

// Worker is the single owner of one camera's track store. Every mutation of
// that state happens on the worker goroutine.
type Worker struct {
	cameraID string
	deps     Dependencies
	store    *tracking.Store
	history  *postprocessing.AlertHistory
	logger   zerolog.Logger

	events    chan models.DetectionEvent
	snapshots chan snapshotRequest
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	// held for reading across the stop check and the send in Enqueue, so an
	// accepted event is always queued before stop closes
	sendMu sync.RWMutex

	state     int32
	startedAt time.Time

	eventsHandled  atomic.Int64
	lastEventNanos atomic.Int64
	panics         atomic.Int64

	// event clock, owned by the worker goroutine
	clockEvent time.Time
	clockSeen  time.Time
}

func newWorker(cameraID string, deps Dependencies) *Worker {
	w := &Worker{
		cameraID: cameraID,
		deps:     deps,
		store: tracking.NewStore(cameraID, deps.Cameras, tracking.Config{
			IdleTimeout: deps.IdleTimeout,
			Hysteresis:  deps.Hysteresis,
		}),
		history:   postprocessing.NewAlertHistory(),
		logger:    deps.Logger.With().Str("camera_id", cameraID).Logger(),
		events:    make(chan models.DetectionEvent, deps.EventBuffer),
		snapshots: make(chan snapshotRequest),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.setState(models.WorkerStateStopped)
	return w
}

func (w *Worker) setState(s models.WorkerState) {
	var v int32
	switch s {
	case models.WorkerStateRunning:
		v = 1
	case models.WorkerStateStopping:
		v = 2
	}
	atomic.StoreInt32(&w.state, v)
}

// State returns the lifecycle state.
func (w *Worker) State() models.WorkerState {
	switch atomic.LoadInt32(&w.state) {
	case 1:
		return models.WorkerStateRunning
	case 2:
		return models.WorkerStateStopping
	default:
		return models.WorkerStateStopped
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() error {
	if !atomic.CompareAndSwapInt32(&w.state, 0, 1) {
		return fmt.Errorf("camera %s cannot start from state %s", w.cameraID, w.State())
	}
	w.startedAt = time.Now()
	go w.run()

	w.logger.Info().Int("buffer", cap(w.events)).Msg("Camera worker started")
	return nil
}

// Stop signals the worker and waits for it to drain its queue and evict every
// track. If that takes longer than timeout the worker is left in the
// stopping state, still finishing in the background, and an error is
// returned.
func (w *Worker) Stop(timeout time.Duration) error {
	if !atomic.CompareAndSwapInt32(&w.state, 1, 2) {
		return fmt.Errorf("camera %s cannot stop from state %s", w.cameraID, w.State())
	}
	w.sendMu.Lock()
	w.stopOnce.Do(func() { close(w.stop) })
	w.sendMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		w.logger.Info().Msg("Camera worker stopped")
		return nil
	case <-timer.C:
		w.logger.Warn().Dur("timeout", timeout).Msg("Camera worker stop timed out")
		return fmt.Errorf("camera %s worker did not stop within %s", w.cameraID, timeout)
	}
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Enqueue queues evt, waiting at most timeout for room. Once Stop has been
// called no event is accepted.
func (w *Worker) Enqueue(ctx context.Context, evt models.DetectionEvent, timeout time.Duration) error {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()

	select {
	case <-w.stop:
		return fmt.Errorf("camera %s worker is stopping", w.cameraID)
	default:
	}

	select {
	case w.events <- evt:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case w.events <- evt:
		return nil
	case <-timer.C:
		return engineerrors.ErrBackpressure
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot asks the worker for a consistent view of its tracks.
func (w *Worker) Snapshot(ctx context.Context) (models.OccupancySnapshot, error) {
	req := snapshotRequest{reply: make(chan models.OccupancySnapshot, 1)}
	select {
	case w.snapshots <- req:
	case <-w.done:
		return models.OccupancySnapshot{}, fmt.Errorf("camera %s worker is not running", w.cameraID)
	case <-ctx.Done():
		return models.OccupancySnapshot{}, ctx.Err()
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return models.OccupancySnapshot{}, ctx.Err()
	}
}

// Status reports worker state for the API.
func (w *Worker) Status() models.CameraStatus {
	st := models.CameraStatus{
		CameraID:       w.cameraID,
		State:          w.State(),
		QueueDepth:     len(w.events),
		EventsHandled:  w.eventsHandled.Load(),
		StartedAt:      w.startedAt,
		PanicsRecorded: w.panics.Load(),
	}
	if n := w.lastEventNanos.Load(); n != 0 {
		st.LastEventTime = time.Unix(0, n).UTC()
	}
	return st
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.setState(models.WorkerStateStopped)

	interval := w.deps.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			w.shutdown()
			return
		case evt := <-w.events:
			w.safeHandle(evt)
		case req := <-w.snapshots:
			req.reply <- w.snapshot()
		case <-ticker.C:
			w.safeSweep()
		}
	}
}

// shutdown processes what is still queued and closes every open visit.
func (w *Worker) shutdown() {
drain:
	for {
		select {
		case evt := <-w.events:
			w.safeHandle(evt)
		default:
			break drain
		}
	}

	evicted := w.store.Drain()
	w.persistEvictions(evicted)
	if len(evicted) > 0 {
		w.logger.Debug().Int("tracks", len(evicted)).Msg("Closed open tracks on shutdown")
	}
}

func (w *Worker) recoverPanic(where string) {
	if r := recover(); r != nil {
		w.panics.Add(1)
		w.deps.Counters.Inc(observability.WorkerPanicsRecovered)
		w.logger.Error().
			Interface("panic", r).
			Str("stage", where).
			Msg("Camera worker panic recovered")
	}
}

func (w *Worker) safeHandle(evt models.DetectionEvent) {
	defer w.recoverPanic("event")
	w.handle(evt)
}

func (w *Worker) safeSweep() {
	defer w.recoverPanic("sweep")
	w.sweep()
}

// now is the worker's event clock: the newest event timestamp plus the wall
// time elapsed since that event arrived. Replayed or skewed streams are
// swept relative to their own timeline.
func (w *Worker) now() time.Time {
	if w.clockEvent.IsZero() {
		return time.Now().UTC()
	}
	return w.clockEvent.Add(time.Since(w.clockSeen))
}

func (w *Worker) handle(evt models.DetectionEvent) {
	ctx := context.Background()

	if evt.Timestamp.After(w.clockEvent) {
		w.clockEvent = evt.Timestamp
		w.clockSeen = time.Now()
	}
	w.eventsHandled.Add(1)
	w.lastEventNanos.Store(evt.Timestamp.UnixNano())
	w.deps.Counters.Inc(observability.EventsAccepted)

	tr := w.store.ApplyEvent(evt)
	if tr.Stale {
		w.deps.Counters.Inc(observability.EventsStale)
		w.logger.Debug().
			Str("track_id", evt.TrackID).
			Time("timestamp", evt.Timestamp).
			Time("last_update", tr.Track.LastUpdate).
			Msg("Out-of-order event, zone state unchanged")
	}
	if tr.ExitedZone != nil && !tr.Restored {
		w.logger.Debug().
			Str("track_id", evt.TrackID).
			Str("from_zone", tr.ExitedZone.ID).
			Str("to_zone", zoneID(tr.Zone)).
			Dur("dwell", tr.ExitDwell).
			Msg("Track changed zone")
	}

	match := w.matchSuspect(evt)
	candidates := alerts.Evaluate(alerts.Input{Transition: tr, Event: evt, Match: match}, w.deps.Rules)
	for _, c := range candidates {
		// failures are logged and counted by the alert manager
		_, _, _ = w.deps.Alerts.Submit(ctx, w.history, c)
	}

	if match != nil && w.deps.Detections != nil {
		sighting := models.NewSuspectSighting(evt, zoneID(tr.Zone), match)
		if err := w.deps.Detections.EnqueueSighting(ctx, sighting); err != nil {
			w.logger.Warn().Err(err).Str("suspect_id", match.SuspectID).Msg("Failed to queue suspect sighting")
		}
	}

	if w.deps.Detections != nil {
		record := models.NewDetectionRecord(detection.NewRecordID(), evt, zoneID(tr.Zone), tr.Track.IsStaff, tr.Track.Demographic)
		if err := w.deps.Detections.Enqueue(ctx, record); err != nil {
			w.logger.Warn().Err(err).Str("track_id", evt.TrackID).Msg("Failed to queue detection record")
		}
		if len(tr.Finalized) > 0 {
			if err := w.deps.Detections.EnqueueVisits(ctx, tr.Finalized); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to queue track visits")
			}
		}
	}
}

func (w *Worker) matchSuspect(evt models.DetectionEvent) *models.SuspectMatch {
	if w.deps.Matcher == nil || len(evt.FeatureVector) == 0 {
		return nil
	}
	match, err := w.deps.Matcher.Match(evt.FeatureVector)
	if err != nil {
		if errors.Is(err, engineerrors.ErrGalleryUnavailable) {
			w.deps.Counters.Inc(observability.GalleryUnavailable)
		}
		w.logger.Debug().Err(err).Str("track_id", evt.TrackID).Msg("Suspect matching skipped")
		return nil
	}
	return match
}

func (w *Worker) sweep() {
	now := w.now()
	evicted, settled := w.store.Sweep(now)
	w.persistEvictions(evicted)
	w.history.Prune(now, w.deps.AlertRetention)

	if len(settled) > 0 && w.deps.Detections != nil {
		if err := w.deps.Detections.EnqueueVisits(context.Background(), settled); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to queue settled visits")
		}
	}
	if len(evicted) > 0 {
		w.logger.Debug().
			Int("evicted", len(evicted)).
			Int("active", w.store.Len()).
			Time("clock", now).
			Msg("Idle tracks evicted")
	}
}

func (w *Worker) persistEvictions(evicted []tracking.Eviction) {
	if len(evicted) == 0 {
		return
	}
	w.deps.Counters.Add(observability.TracksEvicted, int64(len(evicted)))
	if w.deps.Detections == nil {
		return
	}
	var visits []models.TrackVisit
	for _, e := range evicted {
		visits = append(visits, e.Visits...)
	}
	if err := w.deps.Detections.EnqueueVisits(context.Background(), visits); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to queue visits of evicted tracks")
	}
}

func (w *Worker) snapshot() models.OccupancySnapshot {
	cam, _ := w.deps.Cameras.Camera(w.cameraID)
	return w.store.Snapshot(w.now(), cam)
}

func zoneID(z *models.Zone) string {
	if z == nil {
		return ""
	}
	return z.ID
}

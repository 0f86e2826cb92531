package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/zones"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func rect(x0, y0, x1, y1 float64) []models.Point {
	return []models.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	idx, err := zones.NewIndex([]models.Camera{{
		ID:     "cam_1",
		Active: true,
		Zones: []models.Zone{
			{ID: "storage", Polygon: rect(0, 0, 100, 100), Restricted: true},
			{ID: "perfume", Polygon: rect(200, 0, 300, 100)},
		},
	}})
	require.NoError(t, err)
	return NewStore("cam_1", zones.NewHolder(idx), Config{IdleTimeout: 30 * time.Second, Hysteresis: time.Second})
}

var (
	inStorage = models.Point{X: 50, Y: 50}
	inPerfume = models.Point{X: 250, Y: 50}
	outside   = models.Point{X: 150, Y: 500}
)

func event(track string, at time.Duration, p models.Point) models.DetectionEvent {
	return models.DetectionEvent{CameraID: "cam_1", TrackID: track, Timestamp: t0.Add(at), Position: p, Confidence: 0.9}
}

func TestApplyEvent_NewTrackEntersZone(t *testing.T) {
	s := newTestStore(t)

	tr := s.ApplyEvent(event("t1", 0, inStorage))
	assert.True(t, tr.New)
	assert.True(t, tr.EnteredZone)
	require.NotNil(t, tr.Zone)
	assert.Equal(t, "storage", tr.Zone.ID)
	assert.Equal(t, 0.0, tr.DwellSeconds)
	assert.Equal(t, 1, s.Len())

	tr = s.ApplyEvent(event("t1", 10*time.Second, inStorage))
	assert.False(t, tr.New)
	assert.False(t, tr.EnteredZone)
	assert.InDelta(t, 10.0, tr.DwellSeconds, 1e-9)
}

func TestApplyEvent_NewTrackOutsideZones(t *testing.T) {
	s := newTestStore(t)

	tr := s.ApplyEvent(event("t1", 0, outside))
	assert.True(t, tr.New)
	assert.Nil(t, tr.Zone)
	assert.Equal(t, "", tr.Track.ZoneID)
}

func TestApplyEvent_ZoneChangeReportsExitDwell(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t2", 0, inPerfume))
	tr := s.ApplyEvent(event("t2", 40*time.Second, inStorage))

	assert.True(t, tr.EnteredZone)
	require.NotNil(t, tr.ExitedZone)
	assert.Equal(t, "perfume", tr.ExitedZone.ID)
	assert.Equal(t, 40*time.Second, tr.ExitDwell)
	assert.Equal(t, "storage", tr.Track.ZoneID)
	assert.Equal(t, t0.Add(40*time.Second), tr.Track.ZoneEnteredAt)
	assert.Empty(t, tr.Finalized, "exit stays pending inside the hysteresis window")

	tr = s.ApplyEvent(event("t2", 45*time.Second, inStorage))
	require.Len(t, tr.Finalized, 1)
	assert.Equal(t, "perfume", tr.Finalized[0].ZoneID)
	assert.InDelta(t, 40.0, tr.Finalized[0].DwellSeconds, 1e-9)
	assert.InDelta(t, 5.0, tr.DwellSeconds, 1e-9)
}

func TestApplyEvent_ReentryResetsDwell(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t2", 0, inPerfume))
	s.ApplyEvent(event("t2", 100*time.Second, inPerfume))
	s.ApplyEvent(event("t2", 105*time.Second, outside))
	tr := s.ApplyEvent(event("t2", 110*time.Second, inPerfume))

	assert.True(t, tr.EnteredZone)
	assert.False(t, tr.Restored)
	assert.Equal(t, t0.Add(110*time.Second), tr.Track.ZoneEnteredAt)

	tr = s.ApplyEvent(event("t2", 300*time.Second, inPerfume))
	assert.InDelta(t, 190.0, tr.DwellSeconds, 1e-9)
}

func TestApplyEvent_FlickerWithinHysteresisIsForgiven(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t1", 0, inPerfume))
	out := s.ApplyEvent(event("t1", 60*time.Second, outside))
	assert.True(t, out.EnteredZone)
	require.NotNil(t, out.ExitedZone)

	back := s.ApplyEvent(event("t1", 60*time.Second+500*time.Millisecond, inPerfume))
	assert.True(t, back.Restored)
	assert.False(t, back.EnteredZone)
	assert.Equal(t, t0, back.Track.ZoneEnteredAt)
	assert.InDelta(t, 60.5, back.DwellSeconds, 1e-9)
	assert.Empty(t, back.Finalized)

	evicted, _ := s.Sweep(t0.Add(10 * time.Minute))
	require.Len(t, evicted, 1)
	require.Len(t, evicted[0].Visits, 1, "the excursion must not split the visit")
	assert.Equal(t, t0, evicted[0].Visits[0].EnteredAt)
}

func TestApplyEvent_StaleEventMergesClassificationOnly(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t1", 10*time.Second, inPerfume))

	staff := true
	stale := event("t1", 5*time.Second, inStorage)
	stale.IsStaffHint = &staff
	tr := s.ApplyEvent(stale)

	assert.True(t, tr.Stale)
	assert.False(t, tr.EnteredZone)
	assert.Equal(t, "perfume", tr.Track.ZoneID)
	assert.Equal(t, t0.Add(10*time.Second), tr.Track.LastUpdate)
	assert.Equal(t, inPerfume, tr.Track.Position)
	assert.True(t, tr.Track.IsStaff, "an unknown attribute is filled from a late event")
}

func TestApplyEvent_StaleEventNeverOverwritesNewerClassification(t *testing.T) {
	s := newTestStore(t)
	staff, notStaff := true, false

	current := event("t9", 10*time.Second, inPerfume)
	current.IsStaffHint = &staff
	current.Demographic = &models.Demographic{Gender: "female", AgeBucket: "adult"}
	s.ApplyEvent(current)

	late := event("t9", 5*time.Second, inPerfume)
	late.IsStaffHint = &notStaff
	late.Demographic = &models.Demographic{Gender: "male", AgeBucket: "senior"}
	tr := s.ApplyEvent(late)
	require.True(t, tr.Stale)
	assert.True(t, tr.Track.IsStaff)

	tr = s.ApplyEvent(event("t9", 11*time.Second, inStorage))
	assert.False(t, tr.Stale)
	assert.True(t, tr.Track.IsStaff, "staff exemption must survive a delayed event")
	cat, ok := tr.Track.Demographic.Category()
	require.True(t, ok)
	assert.Equal(t, "female_adult", cat)
	assert.Equal(t, t0.Add(10*time.Second), tr.Track.StaffObservedAt)
}

func TestApplyEvent_StaleEventFillsMissingDemographicFields(t *testing.T) {
	s := newTestStore(t)

	current := event("t1", 10*time.Second, inPerfume)
	current.Demographic = &models.Demographic{Gender: "male"}
	s.ApplyEvent(current)

	late := event("t1", 5*time.Second, inPerfume)
	late.Demographic = &models.Demographic{Gender: "female", AgeBucket: "Young_Adult"}
	tr := s.ApplyEvent(late)

	cat, ok := tr.Track.Demographic.Category()
	require.True(t, ok)
	assert.Equal(t, "male_young_adult", cat)
	assert.Equal(t, t0.Add(10*time.Second), tr.Track.DemographicObservedAt)
}

func TestApplyEvent_ClassificationLastKnownWins(t *testing.T) {
	s := newTestStore(t)

	first := event("t1", 0, inPerfume)
	first.Demographic = &models.Demographic{Gender: "female", AgeBucket: "adult"}
	s.ApplyEvent(first)

	partial := event("t1", time.Second, inPerfume)
	partial.Demographic = &models.Demographic{AgeBucket: "senior"}
	s.ApplyEvent(partial)

	tr := s.ApplyEvent(event("t1", 2*time.Second, inPerfume))
	cat, ok := tr.Track.Demographic.Category()
	require.True(t, ok)
	assert.Equal(t, "female_senior", cat)

	notStaff := false
	staff := true
	s.ApplyEvent(models.DetectionEvent{CameraID: "cam_1", TrackID: "t1", Timestamp: t0.Add(3 * time.Second), Position: inPerfume, IsStaffHint: &staff})
	tr = s.ApplyEvent(event("t1", 4*time.Second, inPerfume))
	assert.True(t, tr.Track.IsStaff, "absent hint keeps the last value")

	tr = s.ApplyEvent(models.DetectionEvent{CameraID: "cam_1", TrackID: "t1", Timestamp: t0.Add(5 * time.Second), Position: inPerfume, IsStaffHint: &notStaff})
	assert.False(t, tr.Track.IsStaff)
}

func TestSweep_EvictsIdleTracksAndFinalizesOnce(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t1", 0, inStorage))
	s.ApplyEvent(event("t1", 20*time.Second, inStorage))
	s.ApplyEvent(event("t2", 25*time.Second, inPerfume))

	evicted, _ := s.Sweep(t0.Add(40 * time.Second))
	assert.Empty(t, evicted, "t1 idle for 20s, not past the timeout")

	evicted, _ = s.Sweep(t0.Add(51 * time.Second))
	require.Len(t, evicted, 1)
	assert.Equal(t, "t1", evicted[0].Track.TrackID)
	require.Len(t, evicted[0].Visits, 1)
	assert.Equal(t, "storage", evicted[0].Visits[0].ZoneID)
	assert.InDelta(t, 20.0, evicted[0].Visits[0].DwellSeconds, 1e-9)
	assert.Equal(t, 1, s.Len())

	evicted, _ = s.Sweep(t0.Add(52 * time.Second))
	assert.Empty(t, evicted)

	_, ok := s.Get("t1")
	assert.False(t, ok)

	// the same id seen again starts a fresh track
	tr := s.ApplyEvent(event("t1", 60*time.Second, inStorage))
	assert.True(t, tr.New)
	assert.Equal(t, t0.Add(60*time.Second), tr.Track.FirstSeen)
}

func TestSweep_SettlesPendingExits(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t1", 0, inPerfume))
	s.ApplyEvent(event("t1", 30*time.Second, inStorage))

	_, settled := s.Sweep(t0.Add(30*time.Second + 500*time.Millisecond))
	assert.Empty(t, settled)

	_, settled = s.Sweep(t0.Add(35 * time.Second))
	require.Len(t, settled, 1)
	assert.Equal(t, "perfume", settled[0].ZoneID)

	_, settled = s.Sweep(t0.Add(36 * time.Second))
	assert.Empty(t, settled)

	evicted, _ := s.Sweep(t0.Add(2 * time.Minute))
	require.Len(t, evicted, 1)
	require.Len(t, evicted[0].Visits, 1)
	assert.Equal(t, "storage", evicted[0].Visits[0].ZoneID)
}

func TestDrain(t *testing.T) {
	s := newTestStore(t)

	s.ApplyEvent(event("t1", 0, inPerfume))
	s.ApplyEvent(event("t2", 0, outside))

	drained := s.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, s.Len())
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t)

	staff := true
	a := event("t1", 0, inPerfume)
	a.Demographic = &models.Demographic{Gender: "male", AgeBucket: "adult"}
	b := event("t2", 10*time.Second, inPerfume)
	b.IsStaffHint = &staff
	s.ApplyEvent(a)
	s.ApplyEvent(b)
	s.ApplyEvent(event("t3", 0, outside))

	cam := &models.Camera{ID: "cam_1", Zones: []models.Zone{{ID: "storage", Restricted: true}, {ID: "perfume"}}}
	snap := s.Snapshot(t0.Add(20*time.Second), cam)

	assert.Equal(t, 3, snap.ActiveTracks)
	assert.Equal(t, 1, snap.Unzoned)
	require.Len(t, snap.Zones, 2)

	assert.Equal(t, "storage", snap.Zones[0].ZoneID)
	assert.True(t, snap.Zones[0].Restricted)
	assert.Equal(t, 0, snap.Zones[0].Count)

	perfume := snap.Zones[1]
	assert.Equal(t, 2, perfume.Count)
	assert.Equal(t, 1, perfume.StaffCount)
	assert.Equal(t, 1, perfume.Demographics["male_adult"])
	assert.InDelta(t, 15.0, perfume.AvgDwellSeconds, 1e-9)
}

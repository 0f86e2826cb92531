// Package tracking keeps per-camera track state and zone dwell timers.
//
// A Store is not safe for concurrent use. Each camera worker owns exactly one
// Store and is its only writer; other goroutines read through Snapshot,
// which the worker serves from its own loop.
package tracking

import (
	"sort"
	"time"

	"sentinel-engine-go/internal/models"
)

// ZoneResolver is the read side of the zone index.
type ZoneResolver interface {
	ResolveZone(cameraID string, p models.Point) (*models.Zone, bool)
	Zone(cameraID, zoneID string) (*models.Zone, bool)
}

// Config tunes eviction and zone hysteresis.
type Config struct {
	IdleTimeout time.Duration
	// Hysteresis forgives a brief excursion: a track that returns to the zone
	// it just left within this window keeps its original entry time.
	Hysteresis time.Duration
}

// Transition describes what one event did to its track.
type Transition struct {
	// Track points at live state; only the owning goroutine may touch it.
	Track        *models.Track
	New          bool
	EnteredZone  bool
	Zone         *models.Zone
	ExitedZone   *models.Zone
	ExitDwell    time.Duration
	DwellSeconds float64
	Restored     bool
	Stale        bool
	Finalized    []models.TrackVisit
}

// Eviction is a track removed by Sweep together with its closed visits.
type Eviction struct {
	Track  models.Track
	Visits []models.TrackVisit
}

type pendingExit struct {
	zoneID    string
	enteredAt time.Time
	exitedAt  time.Time
}

type trackState struct {
	models.Track
	prev *pendingExit
}

// Store holds the active tracks of one camera.
type Store struct {
	cameraID string
	cfg      Config
	zones    ZoneResolver
	tracks   map[string]*trackState
}

// NewStore creates an empty store for cameraID.
func NewStore(cameraID string, zones ZoneResolver, cfg Config) *Store {
	return &Store{
		cameraID: cameraID,
		cfg:      cfg,
		zones:    zones,
		tracks:   make(map[string]*trackState),
	}
}

// Len returns the number of active tracks.
func (s *Store) Len() int {
	return len(s.tracks)
}

// Get returns the live track for trackID.
func (s *Store) Get(trackID string) (*models.Track, bool) {
	st, ok := s.tracks[trackID]
	if !ok {
		return nil, false
	}
	return &st.Track, true
}

// ApplyEvent folds one detection into the store.
func (s *Store) ApplyEvent(evt models.DetectionEvent) Transition {
	ts := evt.Timestamp
	zone, _ := s.zones.ResolveZone(s.cameraID, evt.Position)

	st, exists := s.tracks[evt.TrackID]
	if !exists {
		st = &trackState{Track: models.Track{
			CameraID:      s.cameraID,
			TrackID:       evt.TrackID,
			Position:      evt.Position,
			ZoneID:        zoneID(zone),
			ZoneEnteredAt: ts,
			FirstSeen:     ts,
			LastUpdate:    ts,
		}}
		classify(&st.Track, evt)
		s.tracks[evt.TrackID] = st
		return Transition{Track: &st.Track, New: true, EnteredZone: true, Zone: zone}
	}

	classify(&st.Track, evt)

	if ts.Before(st.LastUpdate) {
		current, _ := s.zones.Zone(s.cameraID, st.ZoneID)
		return Transition{Track: &st.Track, Zone: current, Stale: true}
	}

	var finalized []models.TrackVisit
	if st.prev != nil && ts.Sub(st.prev.exitedAt) > s.cfg.Hysteresis {
		finalized = appendVisit(finalized, s.cameraID, st.TrackID, st.prev.zoneID, st.prev.enteredAt, st.prev.exitedAt)
		st.prev = nil
	}

	st.Position = evt.Position
	st.LastUpdate = ts

	tr := Transition{Track: &st.Track, Zone: zone}
	newZoneID := zoneID(zone)

	switch {
	case newZoneID == st.ZoneID:
		tr.DwellSeconds = ts.Sub(st.ZoneEnteredAt).Seconds()

	case st.prev != nil && st.prev.zoneID == newZoneID:
		// back inside the hysteresis window: the excursion never happened
		st.ZoneID = newZoneID
		st.ZoneEnteredAt = st.prev.enteredAt
		st.prev = nil
		tr.Restored = true
		tr.DwellSeconds = ts.Sub(st.ZoneEnteredAt).Seconds()

	default:
		if st.prev != nil {
			finalized = appendVisit(finalized, s.cameraID, st.TrackID, st.prev.zoneID, st.prev.enteredAt, st.prev.exitedAt)
		}
		if st.ZoneID != "" {
			tr.ExitedZone = s.lookupZone(st.ZoneID)
			tr.ExitDwell = ts.Sub(st.ZoneEnteredAt)
		}
		st.prev = &pendingExit{zoneID: st.ZoneID, enteredAt: st.ZoneEnteredAt, exitedAt: ts}
		st.ZoneID = newZoneID
		st.ZoneEnteredAt = ts
		tr.EnteredZone = true
	}

	tr.Finalized = finalized
	return tr
}

// Sweep evicts tracks idle for longer than the idle timeout and closes
// every open dwell interval of evicted tracks. Pending exits older than the
// hysteresis window are finalized for tracks that stay.
func (s *Store) Sweep(now time.Time) ([]Eviction, []models.TrackVisit) {
	var evicted []Eviction
	var settled []models.TrackVisit

	for id, st := range s.tracks {
		if now.Sub(st.LastUpdate) > s.cfg.IdleTimeout {
			var visits []models.TrackVisit
			if st.prev != nil {
				visits = appendVisit(visits, s.cameraID, id, st.prev.zoneID, st.prev.enteredAt, st.prev.exitedAt)
			}
			visits = appendVisit(visits, s.cameraID, id, st.ZoneID, st.ZoneEnteredAt, st.LastUpdate)
			evicted = append(evicted, Eviction{Track: st.Clone(), Visits: visits})
			delete(s.tracks, id)
			continue
		}

		if st.prev != nil && now.Sub(st.prev.exitedAt) > s.cfg.Hysteresis {
			settled = appendVisit(settled, s.cameraID, id, st.prev.zoneID, st.prev.enteredAt, st.prev.exitedAt)
			st.prev = nil
		}
	}

	sort.Slice(evicted, func(i, j int) bool { return evicted[i].Track.TrackID < evicted[j].Track.TrackID })
	return evicted, settled
}

// Drain evicts every track regardless of age. Used on worker shutdown.
func (s *Store) Drain() []Eviction {
	var out []Eviction
	for id, st := range s.tracks {
		var visits []models.TrackVisit
		if st.prev != nil {
			visits = appendVisit(visits, s.cameraID, id, st.prev.zoneID, st.prev.enteredAt, st.prev.exitedAt)
		}
		visits = appendVisit(visits, s.cameraID, id, st.ZoneID, st.ZoneEnteredAt, st.LastUpdate)
		out = append(out, Eviction{Track: st.Clone(), Visits: visits})
		delete(s.tracks, id)
	}
	return out
}

// Snapshot returns per-zone occupancy. Zones of the camera with no tracks
// are included with a zero count when cam is given.
func (s *Store) Snapshot(now time.Time, cam *models.Camera) models.OccupancySnapshot {
	snap := models.OccupancySnapshot{
		CameraID:     s.cameraID,
		Timestamp:    now.UTC(),
		ActiveTracks: len(s.tracks),
		Zones:        []models.ZoneOccupancy{},
	}

	byZone := make(map[string]*models.ZoneOccupancy)
	dwellSum := make(map[string]float64)
	order := make([]string, 0)

	if cam != nil {
		for _, z := range cam.Zones {
			byZone[z.ID] = &models.ZoneOccupancy{ZoneID: z.ID, Restricted: z.Restricted, Demographics: map[string]int{}}
			order = append(order, z.ID)
		}
	}

	for _, st := range s.tracks {
		if st.ZoneID == "" {
			snap.Unzoned++
			continue
		}
		occ, ok := byZone[st.ZoneID]
		if !ok {
			occ = &models.ZoneOccupancy{ZoneID: st.ZoneID, Demographics: map[string]int{}}
			if z, found := s.zones.Zone(s.cameraID, st.ZoneID); found {
				occ.Restricted = z.Restricted
			}
			byZone[st.ZoneID] = occ
			order = append(order, st.ZoneID)
		}
		occ.Count++
		if st.IsStaff {
			occ.StaffCount++
		}
		if cat, ok := st.Demographic.Category(); ok {
			occ.Demographics[cat]++
		}
		if dwell := now.Sub(st.ZoneEnteredAt).Seconds(); dwell > 0 {
			dwellSum[st.ZoneID] += dwell
		}
	}

	for _, id := range order {
		occ := byZone[id]
		if occ.Count > 0 {
			occ.AvgDwellSeconds = dwellSum[id] / float64(occ.Count)
		}
		snap.Zones = append(snap.Zones, *occ)
	}
	return snap
}

func (s *Store) lookupZone(id string) *models.Zone {
	if z, ok := s.zones.Zone(s.cameraID, id); ok {
		return z
	}
	// zone removed by a reload while the track was inside it
	return &models.Zone{ID: id, CameraID: s.cameraID}
}

// classify applies classification attributes present on the event; absent
// attributes leave the last known value in place. An attribute observed at
// a later event time is never overwritten, so a delayed event can only fill
// values that are still unknown.
func classify(t *models.Track, evt models.DetectionEvent) {
	ts := evt.Timestamp
	if evt.IsStaffHint != nil && (t.StaffObservedAt.IsZero() || !ts.Before(t.StaffObservedAt)) {
		t.IsStaff = *evt.IsStaffHint
		t.StaffObservedAt = ts
	}
	if evt.Demographic != nil {
		var base models.Demographic
		if t.Demographic != nil {
			base = *t.Demographic
		}
		var merged models.Demographic
		if ts.Before(t.DemographicObservedAt) {
			merged = models.Demographic{}.Merge(evt.Demographic).Merge(&base)
		} else {
			merged = base.Merge(evt.Demographic)
			t.DemographicObservedAt = ts
		}
		t.Demographic = &merged
	}
}

func appendVisit(visits []models.TrackVisit, cameraID, trackID, zoneID string, entered, exited time.Time) []models.TrackVisit {
	if zoneID == "" {
		return visits
	}
	dwell := exited.Sub(entered).Seconds()
	if dwell < 0 {
		dwell = 0
	}
	return append(visits, models.TrackVisit{
		CameraID:     cameraID,
		TrackID:      trackID,
		ZoneID:       zoneID,
		EnteredAt:    entered.UTC(),
		ExitedAt:     exited.UTC(),
		DwellSeconds: dwell,
	})
}

func zoneID(z *models.Zone) string {
	if z == nil {
		return ""
	}
	return z.ID
}

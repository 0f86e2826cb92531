package models

import "time"

// SuspectEntry is one gallery record owned by the suspect-management service.
type SuspectEntry struct {
	SuspectID      string      `json:"suspect_id" yaml:"suspect_id"`
	Name           string      `json:"name,omitempty" yaml:"name,omitempty"`
	FeatureVectors [][]float64 `json:"feature_vectors" yaml:"feature_vectors"`
	Active         bool        `json:"active" yaml:"active"`
}

// SuspectMatch is the nearest accepted gallery hit for a feature vector.
type SuspectMatch struct {
	SuspectID  string  `json:"suspect_id"`
	Name       string  `json:"name,omitempty"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// SuspectSighting is one observation of a gallery suspect. Every match is
// recorded, including those whose alert was suppressed by the cooldown.
type SuspectSighting struct {
	ID           int64     `json:"id"`
	SuspectID    string    `json:"suspect_id"`
	CameraID     string    `json:"camera_id"`
	TrackID      string    `json:"track_id"`
	ZoneID       string    `json:"zone_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Confidence   float64   `json:"confidence"`
	Similarity   float64   `json:"similarity"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
}

// NewSuspectSighting builds the sighting of match in evt.
func NewSuspectSighting(evt DetectionEvent, zoneID string, match *SuspectMatch) SuspectSighting {
	return SuspectSighting{
		SuspectID:    match.SuspectID,
		CameraID:     evt.CameraID,
		TrackID:      evt.TrackID,
		ZoneID:       zoneID,
		Timestamp:    evt.Timestamp.UTC(),
		X:            evt.Position.X,
		Y:            evt.Position.Y,
		Confidence:   evt.Confidence,
		Similarity:   match.Similarity,
		SnapshotPath: evt.SnapshotPath,
	}
}

// SightingFilter narrows sighting queries of one suspect.
type SightingFilter struct {
	SuspectID string
	CameraID  string
	Start     time.Time
	End       time.Time
	Limit     int
}

const (
	DefaultSightingLimit = 50
	MaxSightingLimit     = 1000
)

// EffectiveLimit clamps Limit to (0, MaxSightingLimit].
func (f SightingFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultSightingLimit
	case f.Limit > MaxSightingLimit:
		return MaxSightingLimit
	default:
		return f.Limit
	}
}

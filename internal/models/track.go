package models

import "time"

// Track is the per-camera state of one continuously identified person.
type Track struct {
	CameraID      string
	TrackID       string
	Position      Point
	ZoneID        string // empty when outside every zone
	ZoneEnteredAt time.Time
	IsStaff       bool
	Demographic   *Demographic
	FirstSeen     time.Time
	LastUpdate    time.Time

	// event times of the observations IsStaff and Demographic came from
	StaffObservedAt       time.Time
	DemographicObservedAt time.Time
}

// Clone returns a deep copy safe to hand to other goroutines.
func (t *Track) Clone() Track {
	c := *t
	if t.Demographic != nil {
		d := *t.Demographic
		c.Demographic = &d
	}
	return c
}

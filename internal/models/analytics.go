package models

import "time"

// HourlyFootfall is one row of hourly_footfall; (CameraID, Hour) is unique.
type HourlyFootfall struct {
	ID                int64     `json:"id"`
	CameraID          string    `json:"camera_id"`
	Hour              time.Time `json:"timestamp_hour"`
	UniquePersonCount int       `json:"unique_person_count"`
}

// HourlyDemographics is one row of hourly_demographics; (CameraID, Hour) is unique.
type HourlyDemographics struct {
	ID           int64          `json:"id"`
	CameraID     string         `json:"camera_id"`
	Hour         time.Time      `json:"timestamp_hour"`
	Demographics map[string]int `json:"demographics_data"`
}

// HourBucket is the aggregate for one camera and one completed hour.
type HourBucket struct {
	CameraID     string
	Hour         time.Time
	Footfall     int
	Demographics map[string]int
}

// TrackActivity is one persisted detection reduced to what rollups need.
type TrackActivity struct {
	CameraID  string
	TrackID   string
	Timestamp time.Time
	Category  string
}

// TrackVisit is a finalized dwell interval of one track in one zone.
type TrackVisit struct {
	CameraID     string    `json:"camera_id"`
	TrackID      string    `json:"track_id"`
	ZoneID       string    `json:"zone_id"`
	EnteredAt    time.Time `json:"entered_at"`
	ExitedAt     time.Time `json:"exited_at"`
	DwellSeconds float64   `json:"dwell_seconds"`
}

// ZoneDwellStats summarizes finalized visits per zone.
type ZoneDwellStats struct {
	CameraID        string  `json:"camera_id"`
	ZoneID          string  `json:"zone_id"`
	Visits          int64   `json:"visits"`
	AvgDwellSeconds float64 `json:"avg_dwell_seconds"`
	MaxDwellSeconds float64 `json:"max_dwell_seconds"`
}

// ZoneOccupancy is the live count of tracks in one zone.
type ZoneOccupancy struct {
	ZoneID          string         `json:"zone_id"`
	Restricted      bool           `json:"restricted"`
	Count           int            `json:"count"`
	StaffCount      int            `json:"staff_count"`
	Demographics    map[string]int `json:"demographics"`
	AvgDwellSeconds float64        `json:"avg_dwell_seconds"`
}

// OccupancySnapshot is a consistent view of one camera's track store.
type OccupancySnapshot struct {
	CameraID     string          `json:"camera_id"`
	Timestamp    time.Time       `json:"timestamp"`
	ActiveTracks int             `json:"active_tracks"`
	Unzoned      int             `json:"unzoned"`
	Zones        []ZoneOccupancy `json:"zones"`
}

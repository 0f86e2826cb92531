package models

import "time"

// Point is a position in the camera frame, in the same coordinate space as
// zone polygons.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone is a named polygonal region of one camera's frame.
type Zone struct {
	ID         string  `json:"id"`
	CameraID   string  `json:"camera_id"`
	Name       string  `json:"name,omitempty"`
	Polygon    []Point `json:"polygon"`
	Restricted bool    `json:"restricted"`
}

// Camera is immutable for a processing session; zones are kept in
// configured order.
type Camera struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Zones  []Zone `json:"zones"`
}

// WorkerState is the lifecycle state of a camera worker.
type WorkerState string

const (
	WorkerStateStopped  WorkerState = "stopped"
	WorkerStateRunning  WorkerState = "running"
	WorkerStateStopping WorkerState = "stopping"
)

// CameraStatus describes a camera worker for the API.
type CameraStatus struct {
	CameraID       string      `json:"camera_id" example:"cam_1"`
	Name           string      `json:"name,omitempty" example:"Entrance"`
	Configured     bool        `json:"configured"`
	Active         bool        `json:"active"`
	State          WorkerState `json:"state" example:"running"`
	ActiveTracks   int         `json:"active_tracks"`
	QueueDepth     int         `json:"queue_depth"`
	EventsHandled  int64       `json:"events_handled"`
	LastEventTime  time.Time   `json:"last_event_time,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	ZoneCount      int         `json:"zone_count"`
	PanicsRecorded int64       `json:"panics_recorded"`
}

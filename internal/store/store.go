// Package store defines the persistence contract of the engine. Backends
// live in subpackages (sqlite, mysql) and must be safe for concurrent use.
package store

import (
	"context"
	"time"

	"sentinel-engine-go/internal/models"
)

// AlertStore persists alerts and their acknowledgment.
type AlertStore interface {
	// InsertAlert stores a new OPEN alert and sets its ID.
	InsertAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	// AcknowledgeAlert marks the alert acknowledged if it is still OPEN.
	// changed is false when it was already acknowledged.
	AcknowledgeAlert(ctx context.Context, id int64, actor string, at time.Time) (alert *models.Alert, changed bool, err error)
	AlertStats(ctx context.Context, since time.Time) (*models.AlertStats, error)
}

// DetectionStore persists accepted detection events.
type DetectionStore interface {
	InsertDetections(ctx context.Context, records []models.DetectionRecord) error
	// TrackActivity returns persisted detections in [start, end) ordered by
	// timestamp.
	TrackActivity(ctx context.Context, start, end time.Time) ([]models.TrackActivity, error)
}

// SightingStore persists suspect sightings.
type SightingStore interface {
	InsertSightings(ctx context.Context, sightings []models.SuspectSighting) error
	// ListSightings returns sightings of one suspect, newest first.
	ListSightings(ctx context.Context, filter models.SightingFilter) ([]models.SuspectSighting, error)
}

// AnalyticsStore persists hourly rollups and finalized dwell visits.
type AnalyticsStore interface {
	// UpsertHourBucket writes footfall and demographics for one bucket
	// atomically. Rewriting a bucket replaces its values.
	UpsertHourBucket(ctx context.Context, bucket models.HourBucket) error
	ListFootfall(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyFootfall, error)
	ListDemographics(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyDemographics, error)
	// InsertVisits ignores visits already stored.
	InsertVisits(ctx context.Context, visits []models.TrackVisit) error
	DwellStats(ctx context.Context, cameraID string, start, end time.Time) ([]models.ZoneDwellStats, error)
}

// Store is the full persistence surface.
type Store interface {
	AlertStore
	DetectionStore
	AnalyticsStore
	SightingStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// HourKey formats hour buckets the same way in every backend.
func HourKey(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

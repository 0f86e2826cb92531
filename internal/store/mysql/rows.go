package mysql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sentinel-engine-go/internal/models"
)

type detectionEventRow struct {
	ID            string    `gorm:"primaryKey;size:64"`
	Timestamp     time.Time `gorm:"not null;index:idx_detection_events_timestamp;index:idx_detection_events_camera_ts,priority:2"`
	CameraID      string    `gorm:"size:64;not null;index:idx_detection_events_camera_ts,priority:1"`
	TrackID       string    `gorm:"size:64;not null"`
	Confidence    float64
	DetectionData string         `gorm:"type:text"`
	SnapshotPath  sql.NullString `gorm:"size:512"`
	VideoClipPath sql.NullString `gorm:"size:512"`
	Processed     bool           `gorm:"not null;default:false"`
	PersonCount   int            `gorm:"not null;default:1"`
	X             float64
	Y             float64
}

func (detectionEventRow) TableName() string { return "detection_events" }

type alertRow struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time      `gorm:"not null;index:idx_alerts_timestamp"`
	AlertType      string         `gorm:"size:32;not null;index:idx_alerts_type"`
	Severity       int            `gorm:"not null"`
	CameraID       string         `gorm:"size:64;not null"`
	ZoneID         sql.NullString `gorm:"size:64"`
	TrackID        string         `gorm:"size:64;not null"`
	Description    string         `gorm:"type:text"`
	SnapshotPath   sql.NullString `gorm:"size:512"`
	VideoClipPath  sql.NullString `gorm:"size:512"`
	Acknowledged   bool           `gorm:"not null;default:false;index:idx_alerts_acknowledged"`
	AcknowledgedBy sql.NullString `gorm:"size:128"`
	AcknowledgedAt sql.NullTime
	SuspectID      sql.NullString `gorm:"size:64;index:idx_alerts_suspect"`
	Similarity     sql.NullFloat64
}

func (alertRow) TableName() string { return "alerts" }

type hourlyFootfallRow struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	CameraID          string    `gorm:"size:64;not null;uniqueIndex:uq_footfall_camera_hour,priority:1"`
	TimestampHour     time.Time `gorm:"not null;uniqueIndex:uq_footfall_camera_hour,priority:2"`
	UniquePersonCount int       `gorm:"not null;default:0"`
}

func (hourlyFootfallRow) TableName() string { return "hourly_footfall" }

type hourlyDemographicsRow struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	CameraID         string    `gorm:"size:64;not null;uniqueIndex:uq_demographics_camera_hour,priority:1"`
	TimestampHour    time.Time `gorm:"not null;uniqueIndex:uq_demographics_camera_hour,priority:2"`
	DemographicsData string    `gorm:"type:text;not null"`
}

func (hourlyDemographicsRow) TableName() string { return "hourly_demographics" }

type trackVisitRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	CameraID     string    `gorm:"size:64;not null;uniqueIndex:uq_track_visit,priority:1"`
	TrackID      string    `gorm:"size:64;not null;uniqueIndex:uq_track_visit,priority:2"`
	ZoneID       string    `gorm:"size:64;not null;uniqueIndex:uq_track_visit,priority:3"`
	EnteredAt    time.Time `gorm:"not null;uniqueIndex:uq_track_visit,priority:4"`
	ExitedAt     time.Time `gorm:"not null"`
	DwellSeconds float64   `gorm:"not null"`
}

func (trackVisitRow) TableName() string { return "track_visits" }

type suspectSightingRow struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	SuspectID    string         `gorm:"size:64;not null;index:idx_suspect_sightings_suspect,priority:1"`
	CameraID     string         `gorm:"size:64;not null"`
	TrackID      string         `gorm:"size:64;not null"`
	ZoneID       sql.NullString `gorm:"size:64"`
	Timestamp    time.Time      `gorm:"not null;index:idx_suspect_sightings_suspect,priority:2"`
	X            float64
	Y            float64
	Confidence   float64        `gorm:"not null;default:0"`
	Similarity   float64        `gorm:"not null;default:0"`
	SnapshotPath sql.NullString `gorm:"size:512"`
}

func (suspectSightingRow) TableName() string { return "suspect_sightings" }

func sightingToRow(s models.SuspectSighting) suspectSightingRow {
	return suspectSightingRow{
		SuspectID:    s.SuspectID,
		CameraID:     s.CameraID,
		TrackID:      s.TrackID,
		ZoneID:       nullString(s.ZoneID),
		Timestamp:    s.Timestamp.UTC(),
		X:            s.X,
		Y:            s.Y,
		Confidence:   s.Confidence,
		Similarity:   s.Similarity,
		SnapshotPath: nullString(s.SnapshotPath),
	}
}

func (r suspectSightingRow) toModel() models.SuspectSighting {
	return models.SuspectSighting{
		ID:           r.ID,
		SuspectID:    r.SuspectID,
		CameraID:     r.CameraID,
		TrackID:      r.TrackID,
		ZoneID:       r.ZoneID.String,
		Timestamp:    r.Timestamp.UTC(),
		X:            r.X,
		Y:            r.Y,
		Confidence:   r.Confidence,
		Similarity:   r.Similarity,
		SnapshotPath: r.SnapshotPath.String,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func detectionToRow(r models.DetectionRecord) detectionEventRow {
	return detectionEventRow{
		ID:            r.ID,
		Timestamp:     r.Timestamp.UTC(),
		CameraID:      r.CameraID,
		TrackID:       r.TrackID,
		Confidence:    r.Confidence,
		DetectionData: r.DetectionData,
		SnapshotPath:  nullString(r.SnapshotPath),
		VideoClipPath: nullString(r.VideoClipPath),
		Processed:     r.Processed,
		PersonCount:   r.PersonCount,
		X:             r.X,
		Y:             r.Y,
	}
}

func alertToRow(a *models.Alert) alertRow {
	row := alertRow{
		ID:            a.ID,
		Timestamp:     a.Timestamp.UTC(),
		AlertType:     string(a.AlertType),
		Severity:      int(a.Severity),
		CameraID:      a.CameraID,
		ZoneID:        nullString(a.ZoneID),
		TrackID:       a.TrackID,
		Description:   a.Description,
		SnapshotPath:  nullString(a.SnapshotPath),
		VideoClipPath: nullString(a.VideoClipPath),
		Acknowledged:  a.Acknowledged,
	}
	if a.AcknowledgedBy != nil {
		row.AcknowledgedBy = nullString(*a.AcknowledgedBy)
	}
	if a.AcknowledgedAt != nil {
		row.AcknowledgedAt = sql.NullTime{Time: a.AcknowledgedAt.UTC(), Valid: true}
	}
	if a.SuspectID != nil {
		row.SuspectID = sql.NullString{String: *a.SuspectID, Valid: true}
	}
	if a.Similarity != nil {
		row.Similarity = sql.NullFloat64{Float64: *a.Similarity, Valid: true}
	}
	return row
}

func (r alertRow) toModel() models.Alert {
	sev := models.AlertSeverity(r.Severity)
	a := models.Alert{
		ID:            r.ID,
		Timestamp:     r.Timestamp.UTC(),
		AlertType:     models.AlertType(r.AlertType),
		Severity:      sev,
		SeverityLabel: sev.String(),
		CameraID:      r.CameraID,
		ZoneID:        r.ZoneID.String,
		TrackID:       r.TrackID,
		Description:   r.Description,
		SnapshotPath:  r.SnapshotPath.String,
		VideoClipPath: r.VideoClipPath.String,
		Acknowledged:  r.Acknowledged,
	}
	if r.AcknowledgedBy.Valid {
		by := r.AcknowledgedBy.String
		a.AcknowledgedBy = &by
	}
	if r.AcknowledgedAt.Valid {
		at := r.AcknowledgedAt.Time.UTC()
		a.AcknowledgedAt = &at
	}
	if r.SuspectID.Valid {
		id := r.SuspectID.String
		a.SuspectID = &id
	}
	if r.Similarity.Valid {
		sim := r.Similarity.Float64
		a.Similarity = &sim
	}
	return a
}

func (r hourlyDemographicsRow) toModel() (models.HourlyDemographics, error) {
	d := models.HourlyDemographics{
		ID:           r.ID,
		CameraID:     r.CameraID,
		Hour:         r.TimestampHour.UTC(),
		Demographics: map[string]int{},
	}
	if err := json.Unmarshal([]byte(r.DemographicsData), &d.Demographics); err != nil {
		return d, fmt.Errorf("invalid demographics_data for %s %s: %w", r.CameraID, d.Hour.Format(time.RFC3339), err)
	}
	return d, nil
}

package models

import (
	"strconv"
	"strings"
	"time"
)

// AlertType represents the rule that produced an alert
type AlertType string

const (
	AlertTypeRestrictedArea     AlertType = "restricted_area"
	AlertTypeLoitering          AlertType = "loitering"
	AlertTypeSuspectMatch       AlertType = "suspect_match"
	AlertTypeSuspiciousBehavior AlertType = "suspicious_behavior"
)

// AlertTypes lists every alert type in rule evaluation order.
var AlertTypes = []AlertType{
	AlertTypeRestrictedArea,
	AlertTypeLoitering,
	AlertTypeSuspiciousBehavior,
	AlertTypeSuspectMatch,
}

func (t AlertType) Valid() bool {
	for _, known := range AlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AlertSeverity is an ordinal severity stored as an integer
type AlertSeverity int

const (
	AlertSeverityLow AlertSeverity = iota + 1
	AlertSeverityMedium
	AlertSeverityHigh
	AlertSeverityCritical
)

func (s AlertSeverity) String() string {
	switch s {
	case AlertSeverityLow:
		return "low"
	case AlertSeverityMedium:
		return "medium"
	case AlertSeverityHigh:
		return "high"
	case AlertSeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity accepts a label ("high") or its ordinal ("3").
func ParseSeverity(s string) (AlertSeverity, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		sev := AlertSeverity(n)
		return sev, sev >= AlertSeverityLow && sev <= AlertSeverityCritical
	}
	for sev := AlertSeverityLow; sev <= AlertSeverityCritical; sev++ {
		if sev.String() == s {
			return sev, true
		}
	}
	return 0, false
}

// AlertCandidate is a rule outcome not yet deduplicated or persisted
type AlertCandidate struct {
	AlertType     AlertType     `json:"alert_type"`
	CameraID      string        `json:"camera_id"`
	TrackID       string        `json:"track_id"`
	ZoneID        string        `json:"zone_id,omitempty"`
	Severity      AlertSeverity `json:"severity"`
	Description   string        `json:"description"`
	SuspectID     string        `json:"suspect_id,omitempty"`
	Similarity    float64       `json:"similarity,omitempty"`
	SnapshotPath  string        `json:"snapshot_path,omitempty"`
	VideoClipPath string        `json:"video_clip_path,omitempty"`
	EventTime     time.Time     `json:"event_time"`
}

// Alert is a persisted alert. Lifecycle: OPEN -> ACKNOWLEDGED.
type Alert struct {
	ID             int64         `json:"id" example:"42"`
	Timestamp      time.Time     `json:"timestamp"`
	AlertType      AlertType     `json:"alert_type" example:"restricted_area"`
	Severity       AlertSeverity `json:"severity" example:"3"`
	SeverityLabel  string        `json:"severity_label" example:"high"`
	CameraID       string        `json:"camera_id" example:"cam_1"`
	ZoneID         string        `json:"zone_id,omitempty" example:"storage"`
	TrackID        string        `json:"track_id" example:"t1"`
	Description    string        `json:"description"`
	SnapshotPath   string        `json:"snapshot_path,omitempty"`
	VideoClipPath  string        `json:"video_clip_path,omitempty"`
	SnapshotURL    string        `json:"snapshot_url,omitempty"`
	VideoClipURL   string        `json:"video_clip_url,omitempty"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedBy *string       `json:"acknowledged_by"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at"`
	SuspectID      *string       `json:"suspect_id"`
	Similarity     *float64      `json:"similarity,omitempty"`
}

// NewAlert turns an accepted candidate into an OPEN alert.
func NewAlert(c AlertCandidate, createdAt time.Time) Alert {
	a := Alert{
		Timestamp:     createdAt.UTC(),
		AlertType:     c.AlertType,
		Severity:      c.Severity,
		SeverityLabel: c.Severity.String(),
		CameraID:      c.CameraID,
		ZoneID:        c.ZoneID,
		TrackID:       c.TrackID,
		Description:   c.Description,
		SnapshotPath:  c.SnapshotPath,
		VideoClipPath: c.VideoClipPath,
	}
	if c.SuspectID != "" {
		id := c.SuspectID
		sim := c.Similarity
		a.SuspectID = &id
		a.Similarity = &sim
	}
	return a
}

// State returns the lifecycle state name.
func (a Alert) State() string {
	if a.Acknowledged {
		return "ACKNOWLEDGED"
	}
	return "OPEN"
}

// AlertFilter narrows getAlerts queries. Zero values mean "no filter".
type AlertFilter struct {
	Acknowledged *bool
	MinSeverity  AlertSeverity
	AlertType    AlertType
	CameraID     string
	SuspectID    string
	Start        time.Time
	End          time.Time
	Limit        int
}

const (
	DefaultAlertLimit = 100
	MaxAlertLimit     = 1000
)

// EffectiveLimit clamps Limit to [1, MaxAlertLimit].
func (f AlertFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultAlertLimit
	case f.Limit > MaxAlertLimit:
		return MaxAlertLimit
	default:
		return f.Limit
	}
}

// AlertStats summarizes alerts created since a point in time.
type AlertStats struct {
	Since          time.Time        `json:"since"`
	Total          int64            `json:"total"`
	Unacknowledged int64            `json:"unacknowledged"`
	ByType         map[string]int64 `json:"by_type"`
	BySeverity     map[string]int64 `json:"by_severity"`
	DailyCounts    []DailyCount     `json:"daily_counts"`
}

type DailyCount struct {
	Date  string `json:"date" example:"2024-05-01"`
	Count int64  `json:"count"`
}

// AlertCooldownKey represents a unique key for alert cooldown tracking
type AlertCooldownKey struct {
	CameraID  string
	TrackID   string
	AlertType AlertType
}

// String returns a string representation of the cooldown key
func (k AlertCooldownKey) String() string {
	return k.CameraID + "|" + k.TrackID + "|" + string(k.AlertType)
}

// FanoutEventType names messages pushed to live subscribers.
type FanoutEventType string

const (
	FanoutAlertCreated      FanoutEventType = "alert.created"
	FanoutAlertAcknowledged FanoutEventType = "alert.acknowledged"
)

// FanoutMessage is the envelope delivered to dashboard subscribers.
type FanoutMessage struct {
	Type      FanoutEventType `json:"type"`
	Alert     Alert           `json:"alert"`
	Timestamp time.Time       `json:"timestamp"`
}

// MessagePublisher interface for publishing alerts
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}

package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	engineerrors "sentinel-engine-go/internal/errors"
)

// Known demographic values. Anything else is treated as unknown.
var (
	KnownGenders    = []string{"male", "female"}
	KnownAgeBuckets = []string{"child", "young_adult", "adult", "senior"}
)

// Demographic holds optional classifier attributes of a person.
type Demographic struct {
	Gender    string `json:"gender,omitempty"`
	AgeBucket string `json:"age_bucket,omitempty"`
}

// Category returns "<gender>_<age_bucket>" when both parts are known.
func (d *Demographic) Category() (string, bool) {
	if d == nil {
		return "", false
	}
	gender := strings.ToLower(strings.TrimSpace(d.Gender))
	age := strings.ToLower(strings.TrimSpace(d.AgeBucket))
	if !contains(KnownGenders, gender) || !contains(KnownAgeBuckets, age) {
		return "", false
	}
	return gender + "_" + age, true
}

// Merge overlays the known fields of other onto d.
func (d Demographic) Merge(other *Demographic) Demographic {
	if other == nil {
		return d
	}
	if other.Gender != "" {
		d.Gender = strings.ToLower(other.Gender)
	}
	if other.AgeBucket != "" {
		d.AgeBucket = strings.ToLower(other.AgeBucket)
	}
	return d
}

// DetectionEvent is one validated detection from the vision pipeline.
type DetectionEvent struct {
	CameraID      string       `json:"camera_id"`
	TrackID       string       `json:"track_id"`
	Timestamp     time.Time    `json:"timestamp"`
	Position      Point        `json:"position"`
	BBox          []float64    `json:"bbox,omitempty"`
	Confidence    float64      `json:"confidence"`
	FeatureVector []float64    `json:"feature_vector,omitempty"`
	Demographic   *Demographic `json:"demographic,omitempty"`
	BehaviorTag   string       `json:"behavior_tag,omitempty"`
	IsStaffHint   *bool        `json:"is_staff_hint,omitempty"`
	SnapshotPath  string       `json:"snapshot_path,omitempty"`
	VideoClipPath string       `json:"video_clip_path,omitempty"`
	PersonCount   int          `json:"person_count,omitempty"`
}

// rawDetectionEvent mirrors the wire schema with optional fields so that
// missing values can be told apart from zero values.
type rawDetectionEvent struct {
	CameraID      *string         `json:"camera_id"`
	TrackID       json.RawMessage `json:"track_id"`
	Timestamp     json.RawMessage `json:"timestamp"`
	X             *float64        `json:"x"`
	Y             *float64        `json:"y"`
	BBox          []float64       `json:"bbox"`
	Confidence    *float64        `json:"confidence"`
	FeatureVector []float64       `json:"feature_vector"`
	Demographic   *Demographic    `json:"demographic"`
	BehaviorTag   *string         `json:"behavior_tag"`
	IsStaffHint   *bool           `json:"is_staff_hint"`
	SnapshotPath  *string         `json:"snapshot_path"`
	VideoClipPath *string         `json:"video_clip_path"`
	PersonCount   *int            `json:"person_count"`
}

// ParseDetectionEvent decodes and validates a single inbound event. Every
// rejection is a MalformedEvent error.
func ParseDetectionEvent(data []byte) (DetectionEvent, error) {
	var raw rawDetectionEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return DetectionEvent{}, engineerrors.Wrap(engineerrors.ErrCategoryValidation, engineerrors.CodeMalformedEvent, "invalid json", err)
	}
	return raw.validate()
}

// ParseDetectionEvents accepts either one object or an array of objects.
// Items are validated independently; errs[i] is nil for accepted items.
func ParseDetectionEvents(data []byte) ([]DetectionEvent, []error, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, engineerrors.Malformed("empty payload")
	}

	if trimmed[0] != '[' {
		evt, err := ParseDetectionEvent(trimmed)
		return []DetectionEvent{evt}, []error{err}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, nil, engineerrors.Wrap(engineerrors.ErrCategoryValidation, engineerrors.CodeMalformedEvent, "invalid json array", err)
	}

	events := make([]DetectionEvent, len(items))
	errs := make([]error, len(items))
	for i, item := range items {
		events[i], errs[i] = ParseDetectionEvent(item)
	}
	return events, errs, nil
}

func (r rawDetectionEvent) validate() (DetectionEvent, error) {
	var evt DetectionEvent

	if r.CameraID == nil || strings.TrimSpace(*r.CameraID) == "" {
		return evt, engineerrors.Malformed("camera_id is required")
	}
	evt.CameraID = strings.TrimSpace(*r.CameraID)

	trackID, err := parseTrackID(r.TrackID)
	if err != nil {
		return evt, err
	}
	evt.TrackID = trackID

	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return evt, err
	}
	evt.Timestamp = ts

	switch {
	case r.X != nil && r.Y != nil:
		evt.Position = Point{X: *r.X, Y: *r.Y}
	case len(r.BBox) == 4:
		evt.Position = Point{X: (r.BBox[0] + r.BBox[2]) / 2, Y: (r.BBox[1] + r.BBox[3]) / 2}
	default:
		return evt, engineerrors.Malformed("position (x, y) or bbox is required")
	}
	if !finite(evt.Position.X) || !finite(evt.Position.Y) {
		return evt, engineerrors.Malformed("position must be finite")
	}
	evt.BBox = r.BBox

	if r.Confidence != nil {
		if *r.Confidence < 0 || *r.Confidence > 1 || !finite(*r.Confidence) {
			return evt, engineerrors.Malformed("confidence %v out of range [0, 1]", *r.Confidence)
		}
		evt.Confidence = *r.Confidence
	}

	if len(r.FeatureVector) > 0 {
		for _, v := range r.FeatureVector {
			if !finite(v) {
				return evt, engineerrors.Malformed("feature_vector contains non-finite values")
			}
		}
		evt.FeatureVector = r.FeatureVector
	}

	if r.Demographic != nil && (r.Demographic.Gender != "" || r.Demographic.AgeBucket != "") {
		d := Demographic{}.Merge(r.Demographic)
		evt.Demographic = &d
	}
	if r.BehaviorTag != nil {
		evt.BehaviorTag = strings.ToLower(strings.TrimSpace(*r.BehaviorTag))
	}
	evt.IsStaffHint = r.IsStaffHint
	if r.SnapshotPath != nil {
		evt.SnapshotPath = *r.SnapshotPath
	}
	if r.VideoClipPath != nil {
		evt.VideoClipPath = *r.VideoClipPath
	}
	if r.PersonCount != nil {
		evt.PersonCount = *r.PersonCount
	}

	return evt, nil
}

// parseTrackID accepts "t1" as well as numeric tracker ids like 17.
func parseTrackID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", engineerrors.Malformed("track_id is required")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", engineerrors.Malformed("track_id: %v", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", engineerrors.Malformed("track_id is required")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", engineerrors.Malformed("track_id must be a string or number")
	}
	return n.String(), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts ISO8601 strings (zone-less values are UTC) and
// numeric unix seconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, engineerrors.Malformed("timestamp is required")
	}

	if raw[0] != '"' {
		secs, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || secs <= 0 || !finite(secs) {
			return time.Time{}, engineerrors.Malformed("timestamp must be ISO8601 or unix seconds")
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, engineerrors.Malformed("timestamp: %v", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, engineerrors.Malformed("timestamp is required")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, engineerrors.Malformed("timestamp %q is not ISO8601", s)
}

// DetectionRecord is a persisted row of detection_events.
type DetectionRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CameraID      string    `json:"camera_id"`
	TrackID       string    `json:"track_id"`
	Confidence    float64   `json:"confidence"`
	DetectionData string    `json:"detection_data"`
	SnapshotPath  string    `json:"snapshot_path,omitempty"`
	VideoClipPath string    `json:"video_clip_path,omitempty"`
	Processed     bool      `json:"processed"`
	PersonCount   int       `json:"person_count"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
}

// DetectionData is the JSON blob stored in detection_events.detection_data.
type DetectionData struct {
	ZoneID      string       `json:"zone_id,omitempty"`
	BBox        []float64    `json:"bbox,omitempty"`
	Demographic *Demographic `json:"demographic,omitempty"`
	Category    string       `json:"category,omitempty"`
	BehaviorTag string       `json:"behavior_tag,omitempty"`
	IsStaff     bool         `json:"is_staff"`
	HasFeature  bool         `json:"has_feature_vector"`
}

// NewDetectionRecord builds the persisted form of an accepted event. The
// demographic stored is the track's last known one so that hourly rollups
// see classification carried over from earlier events.
func NewDetectionRecord(id string, evt DetectionEvent, zoneID string, isStaff bool, demographic *Demographic) DetectionRecord {
	data := DetectionData{
		ZoneID:      zoneID,
		BBox:        evt.BBox,
		Demographic: demographic,
		BehaviorTag: evt.BehaviorTag,
		IsStaff:     isStaff,
		HasFeature:  len(evt.FeatureVector) > 0,
	}
	if cat, ok := demographic.Category(); ok {
		data.Category = cat
	}
	blob, _ := json.Marshal(data)

	personCount := evt.PersonCount
	if personCount == 0 {
		personCount = 1
	}

	return DetectionRecord{
		ID:            id,
		Timestamp:     evt.Timestamp,
		CameraID:      evt.CameraID,
		TrackID:       evt.TrackID,
		Confidence:    evt.Confidence,
		DetectionData: string(blob),
		SnapshotPath:  evt.SnapshotPath,
		VideoClipPath: evt.VideoClipPath,
		Processed:     true,
		PersonCount:   personCount,
		X:             evt.Position.X,
		Y:             evt.Position.Y,
	}
}

// CategoryOf extracts the demographic category from a stored
// detection_data blob. Unknown or unreadable data yields "".
func CategoryOf(detectionData string) string {
	if detectionData == "" {
		return ""
	}
	var data DetectionData
	if err := json.Unmarshal([]byte(detectionData), &data); err != nil {
		return ""
	}
	if data.Category != "" {
		return data.Category
	}
	cat, _ := data.Demographic.Category()
	return cat
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

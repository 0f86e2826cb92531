package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/models"
)

func TestAlertRow_KeepsOptionalFields(t *testing.T) {
	ackAt := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	by := "guard-7"
	suspect := "s5"
	sim := 0.82

	in := &models.Alert{
		ID:             9,
		Timestamp:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		AlertType:      models.AlertTypeSuspectMatch,
		Severity:       models.AlertSeverityCritical,
		CameraID:       "cam_1",
		TrackID:        "t3",
		Description:    "suspect s5 matched",
		Acknowledged:   true,
		AcknowledgedBy: &by,
		AcknowledgedAt: &ackAt,
		SuspectID:      &suspect,
		Similarity:     &sim,
	}

	row := alertToRow(in)
	assert.False(t, row.ZoneID.Valid)
	assert.True(t, row.SuspectID.Valid)

	out := row.toModel()
	assert.Equal(t, "critical", out.SeverityLabel)
	assert.Equal(t, "", out.ZoneID)
	require.NotNil(t, out.AcknowledgedBy)
	assert.Equal(t, by, *out.AcknowledgedBy)
	require.NotNil(t, out.AcknowledgedAt)
	assert.True(t, ackAt.Equal(*out.AcknowledgedAt))
	require.NotNil(t, out.SuspectID)
	assert.Equal(t, suspect, *out.SuspectID)
	require.NotNil(t, out.Similarity)
	assert.InDelta(t, sim, *out.Similarity, 1e-9)
}

func TestAlertRow_OpenAlertHasNoAckFields(t *testing.T) {
	row := alertToRow(&models.Alert{
		AlertType: models.AlertTypeLoitering,
		Severity:  models.AlertSeverityMedium,
		CameraID:  "cam_1",
		ZoneID:    "perfume",
		TrackID:   "t2",
	})
	out := row.toModel()

	assert.Equal(t, "OPEN", out.State())
	assert.Nil(t, out.AcknowledgedBy)
	assert.Nil(t, out.AcknowledgedAt)
	assert.Nil(t, out.SuspectID)
	assert.Equal(t, "perfume", out.ZoneID)
}

func TestDetectionToRow(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	row := detectionToRow(models.DetectionRecord{
		ID:           "e1",
		Timestamp:    ts,
		CameraID:     "cam_1",
		TrackID:      "t1",
		SnapshotPath: "snaps/e1.jpg",
		PersonCount:  1,
	})

	assert.Equal(t, time.UTC, row.Timestamp.Location())
	assert.True(t, row.SnapshotPath.Valid)
	assert.False(t, row.VideoClipPath.Valid)
}

func TestDemographicsRow_ToModel(t *testing.T) {
	row := hourlyDemographicsRow{
		CameraID:         "cam_1",
		TimestampHour:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		DemographicsData: `{"female_adult":2,"male_senior":1}`,
	}
	d, err := row.toModel()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"female_adult": 2, "male_senior": 1}, d.Demographics)

	row.DemographicsData = "{broken"
	_, err = row.toModel()
	assert.Error(t, err)
}

func TestSightingRow_RoundTrip(t *testing.T) {
	in := models.SuspectSighting{
		SuspectID:  "s5",
		CameraID:   "cam_2",
		TrackID:    "t3",
		Timestamp:  time.Date(2024, 3, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600)),
		X:          12.5,
		Y:          40,
		Confidence: 0.91,
		Similarity: 0.7,
	}

	row := sightingToRow(in)
	assert.False(t, row.ZoneID.Valid)
	assert.False(t, row.SnapshotPath.Valid)
	assert.Equal(t, time.UTC, row.Timestamp.Location())

	out := row.toModel()
	assert.Equal(t, "", out.ZoneID)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.SuspectID, out.SuspectID)
	assert.InDelta(t, 0.7, out.Similarity, 1e-9)
}

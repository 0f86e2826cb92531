package aggregation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/store/sqlite"
)

var (
	hour10 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	now    = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
)

func testConfig() *config.Config {
	return &config.Config{
		EngineID:               "test",
		AggregationLookback:    24 * time.Hour,
		AggregationConcurrency: 2,
		AggregationInterval:    time.Hour,
	}
}

func event(cam, track string, ts time.Time, d *models.Demographic) models.DetectionEvent {
	return models.DetectionEvent{CameraID: cam, TrackID: track, Timestamp: ts, Demographic: d}
}

func record(i int, evt models.DetectionEvent) models.DetectionRecord {
	return models.NewDetectionRecord(fmt.Sprintf("det_%08x", i), evt, "", false, evt.Demographic)
}

func seed(t *testing.T, db *sqlite.DB) {
	t.Helper()
	female := &models.Demographic{Gender: "female", AgeBucket: "adult"}
	male := &models.Demographic{Gender: "male", AgeBucket: "senior"}

	events := []models.DetectionEvent{
		event("cam_1", "t1", hour10.Add(1*time.Minute), nil),
		event("cam_1", "t1", hour10.Add(2*time.Minute), female),
		event("cam_1", "t1", hour10.Add(3*time.Minute), female),
		event("cam_1", "t2", hour10.Add(5*time.Minute), male),
		event("cam_1", "t3", hour10.Add(6*time.Minute), nil),
		event("cam_2", "t1", hour10.Add(7*time.Minute), male),
		event("cam_1", "t1", hour10.Add(61*time.Minute), female),
		// current hour, must not be aggregated
		event("cam_1", "t9", now().Add(-time.Minute), female),
	}
	records := make([]models.DetectionRecord, 0, len(events))
	for i, e := range events {
		records = append(records, record(i, e))
	}
	require.NoError(t, db.InsertDetections(context.Background(), records))
}

func newSQLite(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "agg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunOnce_WritesCompletedHours(t *testing.T) {
	db := newSQLite(t)
	seed(t, db)
	counters := observability.NewCounters()

	svc, err := NewService(testConfig(), db, counters, now)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Buckets)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, int64(3), counters.Get(observability.AggregationBuckets))

	footfall, err := db.ListFootfall(context.Background(), "cam_1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, footfall, 2)
	assert.True(t, footfall[0].Hour.Equal(hour10))
	assert.Equal(t, 3, footfall[0].UniquePersonCount)
	assert.Equal(t, 1, footfall[1].UniquePersonCount)

	demo, err := db.ListDemographics(context.Background(), "cam_1", hour10, hour10.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, demo, 1)
	assert.Equal(t, map[string]int{"female_adult": 1, "male_senior": 1}, demo[0].Demographics)
}

func TestRunOnce_Idempotent(t *testing.T) {
	db := newSQLite(t)
	seed(t, db)

	svc, err := NewService(testConfig(), db, observability.NewCounters(), now)
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	first, err := db.ListFootfall(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)
	firstDemo, err := db.ListDemographics(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)

	_, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := db.ListFootfall(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)
	secondDemo, err := db.ListDemographics(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstDemo, secondDemo)
}

func TestRunHour_RejectsCurrentHour(t *testing.T) {
	db := newSQLite(t)
	svc, err := NewService(testConfig(), db, nil, now)
	require.NoError(t, err)

	_, err = svc.RunHour(context.Background(), now())
	assert.Error(t, err)

	res, err := svc.RunHour(context.Background(), hour10.Add(15*time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Start.Equal(hour10))
	assert.Equal(t, 0, res.Buckets)
}

func TestBuildBuckets_LastKnownCategoryWins(t *testing.T) {
	activity := []models.TrackActivity{
		{CameraID: "cam_1", TrackID: "t1", Timestamp: hour10.Add(time.Minute), Category: "male_adult"},
		{CameraID: "cam_1", TrackID: "t1", Timestamp: hour10.Add(2 * time.Minute), Category: "male_senior"},
		{CameraID: "cam_1", TrackID: "t1", Timestamp: hour10.Add(3 * time.Minute)},
		{CameraID: "cam_1", TrackID: "t2", Timestamp: hour10.Add(4 * time.Minute)},
	}

	buckets := BuildBuckets(activity)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Footfall)
	assert.Equal(t, map[string]int{"male_senior": 1}, buckets[0].Demographics)
}

func TestBuildBuckets_SortedByHourThenCamera(t *testing.T) {
	activity := []models.TrackActivity{
		{CameraID: "cam_2", TrackID: "a", Timestamp: hour10.Add(90 * time.Minute)},
		{CameraID: "cam_2", TrackID: "a", Timestamp: hour10},
		{CameraID: "cam_1", TrackID: "a", Timestamp: hour10.Add(30 * time.Minute)},
	}
	buckets := BuildBuckets(activity)
	require.Len(t, buckets, 3)
	assert.Equal(t, "cam_1", buckets[0].CameraID)
	assert.Equal(t, "cam_2", buckets[1].CameraID)
	assert.True(t, buckets[2].Hour.Equal(hour10.Add(time.Hour)))
}

type flakyStore struct {
	mu       sync.Mutex
	activity []models.TrackActivity
	failCam  string
	written  []models.HourBucket
}

func (f *flakyStore) InsertDetections(context.Context, []models.DetectionRecord) error { return nil }

func (f *flakyStore) TrackActivity(context.Context, time.Time, time.Time) ([]models.TrackActivity, error) {
	return f.activity, nil
}

func (f *flakyStore) UpsertHourBucket(_ context.Context, b models.HourBucket) error {
	if b.CameraID == f.failCam {
		return errors.New("disk full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, b)
	return nil
}

func TestRunOnce_FailedBucketDoesNotStopOthers(t *testing.T) {
	st := &flakyStore{
		failCam: "cam_bad",
		activity: []models.TrackActivity{
			{CameraID: "cam_bad", TrackID: "t1", Timestamp: hour10},
			{CameraID: "cam_1", TrackID: "t1", Timestamp: hour10},
			{CameraID: "cam_2", TrackID: "t1", Timestamp: hour10},
		},
	}
	counters := observability.NewCounters()
	svc, err := NewService(testConfig(), st, counters, now)
	require.NoError(t, err)

	res, err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cam_bad")
	assert.Equal(t, 2, res.Buckets)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, st.written, 2)
	assert.Equal(t, int64(1), counters.Get(observability.AggregationFailures))
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(testConfig(), nil, nil, nil)
	assert.Error(t, err)
}

// Package mysql is the gorm-backed MySQL Store backend for deployments that
// share a database server with the dashboard.
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/store"
)

// PoolConfig holds connection pool limits.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig is used by Open.
var DefaultPoolConfig = PoolConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    50,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: 30 * time.Minute,
}

// DB is a Store over a gorm MySQL connection.
type DB struct {
	db *gorm.DB
}

// Open connects with dsn, configures the pool and migrates.
func Open(dsn string) (*DB, error) {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	d := &DB{db: gdb}
	if err := d.configurePool(DefaultPoolConfig); err != nil {
		return nil, err
	}
	if err := d.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate mysql schema: %w", err)
	}
	return d, nil
}

func (d *DB) configurePool(p PoolConfig) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(p.MaxIdleConns)
	sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}

	log.Info().
		Int("max_idle_conns", p.MaxIdleConns).
		Int("max_open_conns", p.MaxOpenConns).
		Msg("MySQL connection pool configured")
	return nil
}

// Migrate adds missing tables, columns and indexes. It never drops columns.
func (d *DB) Migrate(ctx context.Context) error {
	return d.db.WithContext(ctx).AutoMigrate(
		&detectionEventRow{},
		&alertRow{},
		&hourlyFootfallRow{},
		&hourlyDemographicsRow{},
		&trackVisitRow{},
		&suspectSightingRow{},
	)
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Stats returns connection pool statistics.
func (d *DB) Stats() map[string]interface{} {
	sqlDB, err := d.db.DB()
	if err != nil {
		return nil
	}
	stats := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}
}

func persistenceError(msg string, err error) error {
	return engineerrors.Wrap(engineerrors.ErrCategoryStorage, engineerrors.CodePersistenceFailure, msg, err)
}

// InsertAlert stores a new alert and sets its ID.
func (d *DB) InsertAlert(ctx context.Context, a *models.Alert) error {
	row := alertToRow(a)
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistenceError("failed to insert alert", err)
	}
	a.ID = row.ID
	return nil
}

// GetAlert returns one alert or a NotFound error.
func (d *DB) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	return getAlert(d.db.WithContext(ctx), id)
}

func getAlert(tx *gorm.DB, id int64) (*models.Alert, error) {
	var row alertRow
	if err := tx.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engineerrors.NotFound("alert", id)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	a := row.toModel()
	return &a, nil
}

// ListAlerts returns alerts matching f, newest first.
func (d *DB) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error) {
	q := d.db.WithContext(ctx).Model(&alertRow{})
	if f.Acknowledged != nil {
		q = q.Where("acknowledged = ?", *f.Acknowledged)
	}
	if f.MinSeverity > 0 {
		q = q.Where("severity >= ?", int(f.MinSeverity))
	}
	if f.AlertType != "" {
		q = q.Where("alert_type = ?", string(f.AlertType))
	}
	if f.CameraID != "" {
		q = q.Where("camera_id = ?", f.CameraID)
	}
	if f.SuspectID != "" {
		q = q.Where("suspect_id = ?", f.SuspectID)
	}
	if !f.Start.IsZero() {
		q = q.Where("timestamp >= ?", f.Start.UTC())
	}
	if !f.End.IsZero() {
		q = q.Where("timestamp <= ?", f.End.UTC())
	}

	var rows []alertRow
	if err := q.Order("timestamp DESC, id DESC").Limit(f.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	out := make([]models.Alert, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// AcknowledgeAlert marks an OPEN alert acknowledged; already acknowledged
// alerts are returned unchanged with changed=false.
func (d *DB) AcknowledgeAlert(ctx context.Context, id int64, actor string, at time.Time) (*models.Alert, bool, error) {
	var alert *models.Alert
	var changed bool

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&alertRow{}).
			Where("id = ? AND acknowledged = ?", id, false).
			Updates(map[string]interface{}{
				"acknowledged":    true,
				"acknowledged_by": actor,
				"acknowledged_at": at.UTC(),
			})
		if res.Error != nil {
			return persistenceError("failed to acknowledge alert", res.Error)
		}
		changed = res.RowsAffected == 1

		var err error
		alert, err = getAlert(tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return alert, changed, nil
}

// AlertStats summarizes alerts created at or after since.
func (d *DB) AlertStats(ctx context.Context, since time.Time) (*models.AlertStats, error) {
	stats := &models.AlertStats{
		Since:       since.UTC(),
		ByType:      make(map[string]int64),
		BySeverity:  make(map[string]int64),
		DailyCounts: make([]models.DailyCount, 0),
	}
	base := func() *gorm.DB {
		return d.db.WithContext(ctx).Model(&alertRow{}).Where("timestamp >= ?", since.UTC())
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := base().Where("acknowledged = ?", false).Count(&stats.Unacknowledged).Error; err != nil {
		return nil, fmt.Errorf("failed to count open alerts: %w", err)
	}

	var byType []struct {
		AlertType string
		N         int64
	}
	if err := base().Select("alert_type, COUNT(*) AS n").Group("alert_type").Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts by type: %w", err)
	}
	for _, r := range byType {
		stats.ByType[r.AlertType] = r.N
	}

	var bySeverity []struct {
		Severity int
		N        int64
	}
	if err := base().Select("severity, COUNT(*) AS n").Group("severity").Scan(&bySeverity).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts by severity: %w", err)
	}
	for _, r := range bySeverity {
		stats.BySeverity[models.AlertSeverity(r.Severity).String()] = r.N
	}

	var byDay []struct {
		Day string
		N   int64
	}
	if err := base().Select("DATE_FORMAT(timestamp, '%Y-%m-%d') AS day, COUNT(*) AS n").
		Group("day").Order("day").Scan(&byDay).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts by day: %w", err)
	}
	for _, r := range byDay {
		stats.DailyCounts = append(stats.DailyCounts, models.DailyCount{Date: r.Day, Count: r.N})
	}

	return stats, nil
}

// InsertDetections adds detection events in batches; existing ids are kept.
func (d *DB) InsertDetections(ctx context.Context, records []models.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]detectionEventRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, detectionToRow(r))
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 200).Error
	if err != nil {
		return persistenceError("failed to insert detection events", err)
	}
	return nil
}

// TrackActivity returns detections in [start, end) ordered by timestamp.
func (d *DB) TrackActivity(ctx context.Context, start, end time.Time) ([]models.TrackActivity, error) {
	var rows []detectionEventRow
	err := d.db.WithContext(ctx).
		Select("id", "camera_id", "track_id", "timestamp", "detection_data").
		Where("timestamp >= ? AND timestamp < ?", start.UTC(), end.UTC()).
		Order("timestamp, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query detection events: %w", err)
	}

	out := make([]models.TrackActivity, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.TrackActivity{
			CameraID:  r.CameraID,
			TrackID:   r.TrackID,
			Timestamp: r.Timestamp.UTC(),
			Category:  models.CategoryOf(r.DetectionData),
		})
	}
	return out, nil
}

// UpsertHourBucket writes one bucket's footfall and demographics in a
// single transaction, replacing previous values.
func (d *DB) UpsertHourBucket(ctx context.Context, b models.HourBucket) error {
	demographics := b.Demographics
	if demographics == nil {
		demographics = map[string]int{}
	}
	blob, err := json.Marshal(demographics)
	if err != nil {
		return fmt.Errorf("failed to encode demographics: %w", err)
	}
	hour := store.HourKey(b.Hour)

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		footfall := hourlyFootfallRow{CameraID: b.CameraID, TimestampHour: hour, UniquePersonCount: b.Footfall}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "camera_id"}, {Name: "timestamp_hour"}},
			DoUpdates: clause.AssignmentColumns([]string{"unique_person_count"}),
		}).Create(&footfall).Error; err != nil {
			return persistenceError("failed to upsert hourly footfall", err)
		}

		demo := hourlyDemographicsRow{CameraID: b.CameraID, TimestampHour: hour, DemographicsData: string(blob)}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "camera_id"}, {Name: "timestamp_hour"}},
			DoUpdates: clause.AssignmentColumns([]string{"demographics_data"}),
		}).Create(&demo).Error; err != nil {
			return persistenceError("failed to upsert hourly demographics", err)
		}
		return nil
	})
}

func hourScope(cameraID string, start, end time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if cameraID != "" {
			q = q.Where("camera_id = ?", cameraID)
		}
		if !start.IsZero() {
			q = q.Where("timestamp_hour >= ?", start.UTC())
		}
		if !end.IsZero() {
			q = q.Where("timestamp_hour < ?", end.UTC())
		}
		return q.Order("timestamp_hour, camera_id")
	}
}

// ListFootfall returns footfall rows in [start, end).
func (d *DB) ListFootfall(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyFootfall, error) {
	var rows []hourlyFootfallRow
	if err := d.db.WithContext(ctx).Scopes(hourScope(cameraID, start, end)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query hourly footfall: %w", err)
	}
	out := make([]models.HourlyFootfall, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.HourlyFootfall{ID: r.ID, CameraID: r.CameraID, Hour: r.TimestampHour.UTC(), UniquePersonCount: r.UniquePersonCount})
	}
	return out, nil
}

// ListDemographics returns demographics rows in [start, end).
func (d *DB) ListDemographics(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyDemographics, error) {
	var rows []hourlyDemographicsRow
	if err := d.db.WithContext(ctx).Scopes(hourScope(cameraID, start, end)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query hourly demographics: %w", err)
	}
	out := make([]models.HourlyDemographics, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// InsertVisits stores finalized dwell intervals; duplicates are ignored.
func (d *DB) InsertVisits(ctx context.Context, visits []models.TrackVisit) error {
	if len(visits) == 0 {
		return nil
	}
	rows := make([]trackVisitRow, 0, len(visits))
	for _, v := range visits {
		rows = append(rows, trackVisitRow{
			CameraID:     v.CameraID,
			TrackID:      v.TrackID,
			ZoneID:       v.ZoneID,
			EnteredAt:    v.EnteredAt.UTC(),
			ExitedAt:     v.ExitedAt.UTC(),
			DwellSeconds: v.DwellSeconds,
		})
	}
	if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return persistenceError("failed to insert track visits", err)
	}
	return nil
}

// DwellStats summarizes visits that started in [start, end) per zone.
func (d *DB) DwellStats(ctx context.Context, cameraID string, start, end time.Time) ([]models.ZoneDwellStats, error) {
	q := d.db.WithContext(ctx).Model(&trackVisitRow{})
	if cameraID != "" {
		q = q.Where("camera_id = ?", cameraID)
	}
	if !start.IsZero() {
		q = q.Where("entered_at >= ?", start.UTC())
	}
	if !end.IsZero() {
		q = q.Where("entered_at < ?", end.UTC())
	}

	var out []models.ZoneDwellStats
	err := q.Select("camera_id, zone_id, COUNT(*) AS visits, AVG(dwell_seconds) AS avg_dwell_seconds, MAX(dwell_seconds) AS max_dwell_seconds").
		Group("camera_id, zone_id").
		Order("camera_id, zone_id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query dwell stats: %w", err)
	}
	if out == nil {
		out = make([]models.ZoneDwellStats, 0)
	}
	return out, nil
}

// InsertSightings adds suspect sightings in batches.
func (d *DB) InsertSightings(ctx context.Context, sightings []models.SuspectSighting) error {
	if len(sightings) == 0 {
		return nil
	}
	rows := make([]suspectSightingRow, 0, len(sightings))
	for _, s := range sightings {
		rows = append(rows, sightingToRow(s))
	}
	if err := d.db.WithContext(ctx).CreateInBatches(&rows, 200).Error; err != nil {
		return persistenceError("failed to insert suspect sightings", err)
	}
	return nil
}

// ListSightings returns sightings of f.SuspectID, newest first.
func (d *DB) ListSightings(ctx context.Context, f models.SightingFilter) ([]models.SuspectSighting, error) {
	q := d.db.WithContext(ctx).Where("suspect_id = ?", f.SuspectID)
	if f.CameraID != "" {
		q = q.Where("camera_id = ?", f.CameraID)
	}
	if !f.Start.IsZero() {
		q = q.Where("timestamp >= ?", f.Start.UTC())
	}
	if !f.End.IsZero() {
		q = q.Where("timestamp <= ?", f.End.UTC())
	}

	var rows []suspectSightingRow
	if err := q.Order("timestamp DESC, id DESC").Limit(f.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query suspect sightings: %w", err)
	}
	out := make([]models.SuspectSighting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

var _ store.Store = (*DB)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/store"
)

// UpsertHourBucket writes footfall and demographics for one (camera, hour)
// in one transaction. Existing rows are overwritten, never added to.
func (db *DB) UpsertHourBucket(ctx context.Context, b models.HourBucket) error {
	demographics := b.Demographics
	if demographics == nil {
		demographics = map[string]int{}
	}
	blob, err := json.Marshal(demographics)
	if err != nil {
		return fmt.Errorf("failed to encode demographics: %w", err)
	}
	hour := formatTime(store.HourKey(b.Hour))

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hourly_footfall (camera_id, timestamp_hour, unique_person_count)
			VALUES (?, ?, ?)
			ON CONFLICT (camera_id, timestamp_hour) DO UPDATE SET unique_person_count = excluded.unique_person_count
		`, b.CameraID, hour, b.Footfall); err != nil {
			return persistenceError("failed to upsert hourly footfall", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hourly_demographics (camera_id, timestamp_hour, demographics_data)
			VALUES (?, ?, ?)
			ON CONFLICT (camera_id, timestamp_hour) DO UPDATE SET demographics_data = excluded.demographics_data
		`, b.CameraID, hour, string(blob)); err != nil {
			return persistenceError("failed to upsert hourly demographics", err)
		}
		return nil
	})
}

// ListFootfall returns footfall rows in [start, end). An empty cameraID
// matches every camera.
func (db *DB) ListFootfall(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyFootfall, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	where, args := hourRange(cameraID, start, end)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, camera_id, timestamp_hour, unique_person_count FROM hourly_footfall
		`+where+` ORDER BY timestamp_hour, camera_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly footfall: %w", err)
	}
	defer rows.Close()

	out := make([]models.HourlyFootfall, 0)
	for rows.Next() {
		var f models.HourlyFootfall
		var hour string
		if err := rows.Scan(&f.ID, &f.CameraID, &hour, &f.UniquePersonCount); err != nil {
			return nil, fmt.Errorf("failed to scan hourly footfall: %w", err)
		}
		if f.Hour, err = parseTime(hour); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListDemographics returns demographics rows in [start, end).
func (db *DB) ListDemographics(ctx context.Context, cameraID string, start, end time.Time) ([]models.HourlyDemographics, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	where, args := hourRange(cameraID, start, end)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, camera_id, timestamp_hour, demographics_data FROM hourly_demographics
		`+where+` ORDER BY timestamp_hour, camera_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly demographics: %w", err)
	}
	defer rows.Close()

	out := make([]models.HourlyDemographics, 0)
	for rows.Next() {
		var d models.HourlyDemographics
		var hour, blob string
		if err := rows.Scan(&d.ID, &d.CameraID, &hour, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan hourly demographics: %w", err)
		}
		if d.Hour, err = parseTime(hour); err != nil {
			return nil, err
		}
		d.Demographics = map[string]int{}
		if err := json.Unmarshal([]byte(blob), &d.Demographics); err != nil {
			return nil, fmt.Errorf("invalid demographics_data for %s %s: %w", d.CameraID, hour, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func hourRange(cameraID string, start, end time.Time) (string, []interface{}) {
	var where []string
	var args []interface{}
	if cameraID != "" {
		where = append(where, "camera_id = ?")
		args = append(args, cameraID)
	}
	if !start.IsZero() {
		where = append(where, "timestamp_hour >= ?")
		args = append(args, formatTime(start))
	}
	if !end.IsZero() {
		where = append(where, "timestamp_hour < ?")
		args = append(args, formatTime(end))
	}
	if len(where) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

// InsertVisits stores finalized dwell intervals; duplicates are ignored.
func (db *DB) InsertVisits(ctx context.Context, visits []models.TrackVisit) error {
	if len(visits) == 0 {
		return nil
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO track_visits (camera_id, track_id, zone_id, entered_at, exited_at, dwell_seconds)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return persistenceError("failed to prepare statement", err)
		}
		defer stmt.Close()

		for _, v := range visits {
			if _, err := stmt.ExecContext(ctx, v.CameraID, v.TrackID, v.ZoneID, formatTime(v.EnteredAt),
				formatTime(v.ExitedAt), v.DwellSeconds); err != nil {
				return persistenceError("failed to insert track visit", err)
			}
		}
		return nil
	})
}

// DwellStats summarizes visits that started in [start, end) per zone.
func (db *DB) DwellStats(ctx context.Context, cameraID string, start, end time.Time) ([]models.ZoneDwellStats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var where []string
	var args []interface{}
	if cameraID != "" {
		where = append(where, "camera_id = ?")
		args = append(args, cameraID)
	}
	if !start.IsZero() {
		where = append(where, "entered_at >= ?")
		args = append(args, formatTime(start))
	}
	if !end.IsZero() {
		where = append(where, "entered_at < ?")
		args = append(args, formatTime(end))
	}
	query := `SELECT camera_id, zone_id, COUNT(*), AVG(dwell_seconds), MAX(dwell_seconds) FROM track_visits`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " GROUP BY camera_id, zone_id ORDER BY camera_id, zone_id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dwell stats: %w", err)
	}
	defer rows.Close()

	out := make([]models.ZoneDwellStats, 0)
	for rows.Next() {
		var s models.ZoneDwellStats
		if err := rows.Scan(&s.CameraID, &s.ZoneID, &s.Visits, &s.AvgDwellSeconds, &s.MaxDwellSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan dwell stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var _ store.Store = (*DB)(nil)

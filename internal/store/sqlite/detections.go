package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sentinel-engine-go/internal/models"
)

// InsertDetections adds detection events in a single transaction.
// Re-inserting an existing id is ignored.
func (db *DB) InsertDetections(ctx context.Context, records []models.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO detection_events (id, timestamp, camera_id, track_id, confidence, detection_data,
				snapshot_path, video_clip_path, processed, person_count, x, y)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return persistenceError("failed to prepare statement", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.ID, formatTime(r.Timestamp), r.CameraID, r.TrackID, r.Confidence,
				r.DetectionData, nullString(r.SnapshotPath), nullString(r.VideoClipPath), boolToInt(r.Processed),
				r.PersonCount, r.X, r.Y); err != nil {
				return persistenceError("failed to insert detection event", err)
			}
		}
		return nil
	})
}

// TrackActivity returns persisted detections in [start, end) reduced to
// what hourly rollups need, ordered by timestamp.
func (db *DB) TrackActivity(ctx context.Context, start, end time.Time) ([]models.TrackActivity, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT camera_id, track_id, timestamp, detection_data FROM detection_events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id
	`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query detection events: %w", err)
	}
	defer rows.Close()

	var out []models.TrackActivity
	for rows.Next() {
		var (
			act  models.TrackActivity
			ts   string
			data sql.NullString
		)
		if err := rows.Scan(&act.CameraID, &act.TrackID, &ts, &data); err != nil {
			return nil, fmt.Errorf("failed to scan detection event: %w", err)
		}
		if act.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		act.Category = models.CategoryOf(data.String)
		out = append(out, act)
	}
	return out, rows.Err()
}

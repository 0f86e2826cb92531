package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sentinel-engine-go/internal/models"
)

// InsertSightings adds suspect sightings in a single transaction.
func (db *DB) InsertSightings(ctx context.Context, sightings []models.SuspectSighting) error {
	if len(sightings) == 0 {
		return nil
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO suspect_sightings (suspect_id, camera_id, track_id, zone_id, timestamp, x, y,
				confidence, similarity, snapshot_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return persistenceError("failed to prepare statement", err)
		}
		defer stmt.Close()

		for _, s := range sightings {
			if _, err := stmt.ExecContext(ctx, s.SuspectID, s.CameraID, s.TrackID, nullString(s.ZoneID),
				formatTime(s.Timestamp), s.X, s.Y, s.Confidence, s.Similarity, nullString(s.SnapshotPath)); err != nil {
				return persistenceError("failed to insert suspect sighting", err)
			}
		}
		return nil
	})
}

// ListSightings returns sightings of f.SuspectID, newest first. Start and
// End are inclusive.
func (db *DB) ListSightings(ctx context.Context, f models.SightingFilter) ([]models.SuspectSighting, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	where := []string{"suspect_id = ?"}
	args := []interface{}{f.SuspectID}
	if f.CameraID != "" {
		where = append(where, "camera_id = ?")
		args = append(args, f.CameraID)
	}
	if !f.Start.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(f.End))
	}
	args = append(args, f.EffectiveLimit())

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, suspect_id, camera_id, track_id, zone_id, timestamp, x, y, confidence, similarity, snapshot_path
		FROM suspect_sightings WHERE `+strings.Join(where, " AND ")+`
		ORDER BY timestamp DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suspect sightings: %w", err)
	}
	defer rows.Close()

	out := make([]models.SuspectSighting, 0)
	for rows.Next() {
		var (
			s        models.SuspectSighting
			ts       string
			zone     sql.NullString
			snapshot sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.SuspectID, &s.CameraID, &s.TrackID, &zone, &ts, &s.X, &s.Y,
			&s.Confidence, &s.Similarity, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan suspect sighting: %w", err)
		}
		if s.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		s.ZoneID = zone.String
		s.SnapshotPath = snapshot.String
		out = append(out, s)
	}
	return out, rows.Err()
}

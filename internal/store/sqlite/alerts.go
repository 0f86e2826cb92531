package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
)

const alertColumns = `id, timestamp, alert_type, severity, camera_id, zone_id, track_id, description,
	snapshot_path, video_clip_path, acknowledged, acknowledged_by, acknowledged_at, suspect_id, similarity`

// InsertAlert stores a new alert and sets its ID.
func (db *DB) InsertAlert(ctx context.Context, a *models.Alert) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var suspectID sql.NullString
	var similarity sql.NullFloat64
	if a.SuspectID != nil {
		suspectID = sql.NullString{String: *a.SuspectID, Valid: true}
	}
	if a.Similarity != nil {
		similarity = sql.NullFloat64{Float64: *a.Similarity, Valid: true}
	}

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO alerts (timestamp, alert_type, severity, camera_id, zone_id, track_id, description,
			snapshot_path, video_clip_path, acknowledged, suspect_id, similarity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, formatTime(a.Timestamp), string(a.AlertType), int(a.Severity), a.CameraID, nullString(a.ZoneID), a.TrackID,
		a.Description, nullString(a.SnapshotPath), nullString(a.VideoClipPath), suspectID, similarity)
	if err != nil {
		return persistenceError("failed to insert alert", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistenceError("failed to read alert id", err)
	}
	a.ID = id
	return nil
}

// GetAlert returns one alert or a NotFound error.
func (db *DB) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return getAlert(ctx, db.conn, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getAlert(ctx context.Context, q queryRower, id int64) (*models.Alert, error) {
	row := q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engineerrors.NotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts matching filter, newest first.
func (db *DB) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var where []string
	var args []interface{}

	if f.Acknowledged != nil {
		where = append(where, "acknowledged = ?")
		args = append(args, boolToInt(*f.Acknowledged))
	}
	if f.MinSeverity > 0 {
		where = append(where, "severity >= ?")
		args = append(args, int(f.MinSeverity))
	}
	if f.AlertType != "" {
		where = append(where, "alert_type = ?")
		args = append(args, string(f.AlertType))
	}
	if f.CameraID != "" {
		where = append(where, "camera_id = ?")
		args = append(args, f.CameraID)
	}
	if f.SuspectID != "" {
		where = append(where, "suspect_id = ?")
		args = append(args, f.SuspectID)
	}
	if !f.Start.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(f.End))
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, f.EffectiveLimit())

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an OPEN alert acknowledged. An already
// acknowledged alert is returned unchanged with changed=false.
func (db *DB) AcknowledgeAlert(ctx context.Context, id int64, actor string, at time.Time) (*models.Alert, bool, error) {
	var alert *models.Alert
	var changed bool

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE alerts SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?
			WHERE id = ? AND acknowledged = 0
		`, nullString(actor), formatTime(at), id)
		if err != nil {
			return persistenceError("failed to acknowledge alert", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return persistenceError("failed to acknowledge alert", err)
		}
		changed = n == 1

		alert, err = getAlert(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return alert, changed, nil
}

// AlertStats summarizes alerts created at or after since.
func (db *DB) AlertStats(ctx context.Context, since time.Time) (*models.AlertStats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stats := &models.AlertStats{
		Since:       since.UTC(),
		ByType:      make(map[string]int64),
		BySeverity:  make(map[string]int64),
		DailyCounts: make([]models.DailyCount, 0),
	}
	sinceStr := formatTime(since)

	if err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN acknowledged = 0 THEN 1 ELSE 0 END), 0)
		FROM alerts WHERE timestamp >= ?
	`, sinceStr).Scan(&stats.Total, &stats.Unacknowledged); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	typeRows, err := db.conn.QueryContext(ctx, `
		SELECT alert_type, COUNT(*) FROM alerts WHERE timestamp >= ? GROUP BY alert_type
	`, sinceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by type: %w", err)
	}
	for typeRows.Next() {
		var t string
		var n int64
		if err := typeRows.Scan(&t, &n); err != nil {
			typeRows.Close()
			return nil, err
		}
		stats.ByType[t] = n
	}
	typeRows.Close()

	sevRows, err := db.conn.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM alerts WHERE timestamp >= ? GROUP BY severity
	`, sinceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by severity: %w", err)
	}
	for sevRows.Next() {
		var sev int
		var n int64
		if err := sevRows.Scan(&sev, &n); err != nil {
			sevRows.Close()
			return nil, err
		}
		stats.BySeverity[models.AlertSeverity(sev).String()] = n
	}
	sevRows.Close()

	dayRows, err := db.conn.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day, COUNT(*) FROM alerts
		WHERE timestamp >= ? GROUP BY day ORDER BY day
	`, sinceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by day: %w", err)
	}
	defer dayRows.Close()
	for dayRows.Next() {
		var dc models.DailyCount
		if err := dayRows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		stats.DailyCounts = append(stats.DailyCounts, dc)
	}

	return stats, dayRows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(s scanner) (*models.Alert, error) {
	var (
		a                              models.Alert
		ts, alertType                  string
		severity, acknowledged         int
		zoneID, description            sql.NullString
		snapshotPath, videoClipPath    sql.NullString
		acknowledgedBy, acknowledgedAt sql.NullString
		suspectID                      sql.NullString
		similarity                     sql.NullFloat64
	)

	if err := s.Scan(&a.ID, &ts, &alertType, &severity, &a.CameraID, &zoneID, &a.TrackID, &description,
		&snapshotPath, &videoClipPath, &acknowledged, &acknowledgedBy, &acknowledgedAt, &suspectID, &similarity); err != nil {
		return nil, err
	}

	created, err := parseTime(ts)
	if err != nil {
		return nil, err
	}
	a.Timestamp = created
	a.AlertType = models.AlertType(alertType)
	a.Severity = models.AlertSeverity(severity)
	a.SeverityLabel = a.Severity.String()
	a.ZoneID = zoneID.String
	a.Description = description.String
	a.SnapshotPath = snapshotPath.String
	a.VideoClipPath = videoClipPath.String
	a.Acknowledged = acknowledged != 0

	if acknowledgedBy.Valid {
		by := acknowledgedBy.String
		a.AcknowledgedBy = &by
	}
	if acknowledgedAt.Valid {
		at, err := parseTime(acknowledgedAt.String)
		if err != nil {
			return nil, err
		}
		a.AcknowledgedAt = &at
	}
	if suspectID.Valid {
		id := suspectID.String
		a.SuspectID = &id
	}
	if similarity.Valid {
		sim := similarity.Float64
		a.Similarity = &sim
	}
	return &a, nil
}

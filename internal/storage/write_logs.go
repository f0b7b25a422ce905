package storage

import (
	"context"
	"fmt"
	"time"
)

// WriteLog records the outcome of one write request, including redeliveries
// from a client's mutation queue.
type WriteLog struct {
	ID           int64     `json:"id"`
	ProfileID    int       `json:"profile_id"`
	CreatedAt    time.Time `json:"created_at"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Replayed     bool      `json:"replayed"`
	DurationMs   *int      `json:"duration_ms"`
	ErrorMessage *string   `json:"error_message"`
}

// InsertWriteLog creates a write log entry and returns its ID.
func (db *DB) InsertWriteLog(ctx context.Context, log WriteLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO write_logs (profile_id, kind, status, replayed, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id`,
		log.ProfileID, log.Kind, log.Status, log.Replayed, log.DurationMs, log.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting write log: %w", err)
	}
	return id, nil
}

// QueryWriteLogs returns the most recent write logs for a profile.
func (db *DB) QueryWriteLogs(ctx context.Context, profileID, limit int) ([]WriteLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, profile_id, created_at, kind, status, replayed, duration_ms, error_message
		 FROM write_logs
		 WHERE profile_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying write logs: %w", err)
	}
	defer rows.Close()

	var result []WriteLog
	for rows.Next() {
		var l WriteLog
		if err := rows.Scan(&l.ID, &l.ProfileID, &l.CreatedAt, &l.Kind, &l.Status,
			&l.Replayed, &l.DurationMs, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning write log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

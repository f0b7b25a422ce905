// Package offlinecache keeps a local copy of just-completed sessions so they
// show up in history before the remote write is confirmed.
package offlinecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
)

// Cache stores OfflineHistoryRecords keyed by (profile, session date).
// Writes are last-write-wins per key.
type Cache struct {
	db *localdb.DB
}

// New creates a Cache over db.
func New(db *localdb.DB) *Cache {
	return &Cache{db: db}
}

// Put stores rec, replacing any record for the same key.
func (c *Cache) Put(ctx context.Context, rec models.OfflineHistoryRecord) error {
	return c.PutTx(ctx, c.db.Conn(), rec)
}

// PutTx is Put inside the caller's transaction.
func (c *Cache) PutTx(ctx context.Context, ex localdb.Execer, rec models.OfflineHistoryRecord) error {
	body, err := json.Marshal(rec.Payload)
	if err != nil {
		return &models.StorageError{Op: "encode offline history", Err: err}
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO offline_history (profile_id, session_date, session_id, body, stored_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ProfileID, rec.SessionDate, rec.Payload.SessionID.String(), string(body),
		localdb.FormatTime(rec.StoredAt))
	if err != nil {
		return &models.StorageError{Op: "put offline history", Err: err}
	}
	return nil
}

// Get returns the record for (profileID, date). ok is false when none exists.
func (c *Cache) Get(ctx context.Context, profileID int, date string) (rec *models.OfflineHistoryRecord, ok bool, err error) {
	row := c.db.Conn().QueryRowContext(ctx,
		`SELECT profile_id, session_date, body, stored_at FROM offline_history
		 WHERE profile_id = ? AND session_date = ?`,
		profileID, date)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Delete removes the record for (profileID, date). Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, profileID int, date string) error {
	return c.DeleteTx(ctx, c.db.Conn(), profileID, date)
}

// DeleteTx is Delete inside the caller's transaction.
func (c *Cache) DeleteTx(ctx context.Context, ex localdb.Execer, profileID int, date string) error {
	_, err := ex.ExecContext(ctx,
		`DELETE FROM offline_history WHERE profile_id = ? AND session_date = ?`, profileID, date)
	if err != nil {
		return &models.StorageError{Op: "delete offline history", Err: err}
	}
	return nil
}

// ListAll returns every record for profileID, newest date first.
func (c *Cache) ListAll(ctx context.Context, profileID int) ([]models.OfflineHistoryRecord, error) {
	rows, err := c.db.Conn().QueryContext(ctx,
		`SELECT profile_id, session_date, body, stored_at FROM offline_history
		 WHERE profile_id = ? ORDER BY session_date DESC`, profileID)
	if err != nil {
		return nil, &models.StorageError{Op: "list offline history", Err: err}
	}
	defer rows.Close()

	var result []models.OfflineHistoryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list offline history", Err: err}
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.OfflineHistoryRecord, error) {
	var (
		r        models.OfflineHistoryRecord
		body     string
		storedAt string
	)
	if err := s.Scan(&r.ProfileID, &r.SessionDate, &body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &models.StorageError{Op: "scan offline history", Err: err}
	}
	if err := json.Unmarshal([]byte(body), &r.Payload); err != nil {
		return nil, &models.StorageError{Op: "decode offline history", Err: err}
	}
	t, err := localdb.ParseTime(storedAt)
	if err != nil {
		return nil, &models.StorageError{Op: "decode offline history", Err: err}
	}
	r.StoredAt = t
	return &r, nil
}

// Package queue is the durable, ordered, at-least-once log of remote writes
// that could not be applied when they were made.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
	"github.com/google/uuid"
)

// Queue stores OfflineMutations in the local database.
type Queue struct {
	db  *localdb.DB
	now func() time.Time
}

// New creates a Queue over db.
func New(db *localdb.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

// SetClock replaces the clock used for enqueue and attempt timestamps.
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// Enqueue appends a pending mutation and returns its id.
func (q *Queue) Enqueue(ctx context.Context, p models.MutationPayload) (uuid.UUID, error) {
	return q.EnqueueTx(ctx, q.db.Conn(), p)
}

// EnqueueTx is Enqueue inside the caller's transaction. The queue never
// reorders or deduplicates: every call appends a new entry.
func (q *Queue) EnqueueTx(ctx context.Context, ex localdb.Execer, p models.MutationPayload) (uuid.UUID, error) {
	kind, data, err := models.EncodePayload(p)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	_, err = ex.ExecContext(ctx,
		`INSERT INTO offline_mutations (id, kind, payload, enqueued_at) VALUES (?, ?, ?, ?)`,
		id.String(), string(kind), string(data), localdb.FormatTime(q.now()))
	if err != nil {
		return uuid.Nil, &models.StorageError{Op: "enqueue mutation", Err: err}
	}
	return id, nil
}

// ListPending returns unsynced mutations in enqueue order.
func (q *Queue) ListPending(ctx context.Context) ([]models.OfflineMutation, error) {
	return q.list(ctx, `WHERE is_synced = 0`)
}

// ListAll returns every stored mutation, synced or not, in enqueue order.
func (q *Queue) ListAll(ctx context.Context) ([]models.OfflineMutation, error) {
	return q.list(ctx, "")
}

func (q *Queue) list(ctx context.Context, where string) ([]models.OfflineMutation, error) {
	rows, err := q.db.Conn().QueryContext(ctx,
		`SELECT seq, id, kind, payload, enqueued_at, is_synced, retry_count, last_error, last_attempt_at
		 FROM offline_mutations `+where+` ORDER BY seq ASC`)
	if err != nil {
		return nil, &models.StorageError{Op: "list mutations", Err: err}
	}
	defer rows.Close()

	var result []models.OfflineMutation
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list mutations", Err: err}
	}
	return result, nil
}

func scanMutation(rows *sql.Rows) (models.OfflineMutation, error) {
	var (
		m           models.OfflineMutation
		id, kind    string
		payload     string
		enqueuedAt  string
		synced      int
		lastAttempt sql.NullString
	)
	if err := rows.Scan(&m.Seq, &id, &kind, &payload, &enqueuedAt, &synced,
		&m.RetryCount, &m.LastError, &lastAttempt); err != nil {
		return m, &models.StorageError{Op: "scan mutation", Err: err}
	}

	var err error
	if m.ID, err = uuid.Parse(id); err != nil {
		return m, &models.StorageError{Op: "scan mutation", Err: err}
	}
	if m.Payload, err = models.DecodePayload(models.MutationKind(kind), []byte(payload)); err != nil {
		return m, &models.StorageError{Op: "scan mutation " + id, Err: err}
	}
	if m.EnqueuedAt, err = localdb.ParseTime(enqueuedAt); err != nil {
		return m, &models.StorageError{Op: "scan mutation", Err: err}
	}
	if lastAttempt.Valid {
		t, err := localdb.ParseTime(lastAttempt.String)
		if err != nil {
			return m, &models.StorageError{Op: "scan mutation", Err: err}
		}
		m.LastAttemptAt = &t
	}
	m.IsSynced = synced != 0
	return m, nil
}

// MarkSynced flips the synced flag. The entry stays until SweepSynced so a
// crash between the two cannot lose the fact that it was delivered.
func (q *Queue) MarkSynced(ctx context.Context, id uuid.UUID) error {
	return q.MarkSyncedTx(ctx, q.db.Conn(), id)
}

// MarkSyncedTx is MarkSynced inside the caller's transaction.
func (q *Queue) MarkSyncedTx(ctx context.Context, ex localdb.Execer, id uuid.UUID) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE offline_mutations SET is_synced = 1, last_attempt_at = ?, last_error = '' WHERE id = ?`,
		localdb.FormatTime(q.now()), id.String())
	if err != nil {
		return &models.StorageError{Op: "mark mutation synced", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Resource: "mutation", ID: id.String()}
	}
	return nil
}

// RecordFailure bumps the retry counter and keeps the last error for
// diagnostics. Retries are unbounded; the entry stays pending.
func (q *Queue) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := q.db.Conn().ExecContext(ctx,
		`UPDATE offline_mutations SET retry_count = retry_count + 1, last_error = ?, last_attempt_at = ?
		 WHERE id = ? AND is_synced = 0`,
		msg, localdb.FormatTime(q.now()), id.String())
	if err != nil {
		return &models.StorageError{Op: "record mutation failure", Err: err}
	}
	return nil
}

// SweepSynced deletes all synced entries and returns how many were removed.
func (q *Queue) SweepSynced(ctx context.Context) (int64, error) {
	res, err := q.db.Conn().ExecContext(ctx, `DELETE FROM offline_mutations WHERE is_synced = 1`)
	if err != nil {
		return 0, &models.StorageError{Op: "sweep synced mutations", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return n, nil
}

// CountPending returns the number of unsynced mutations, for "N changes
// pending" indicators.
func (q *Queue) CountPending(ctx context.Context) (int, error) {
	var n int
	err := q.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_mutations WHERE is_synced = 0`).Scan(&n)
	if err != nil {
		return 0, &models.StorageError{Op: "count pending mutations", Err: err}
	}
	return n, nil
}

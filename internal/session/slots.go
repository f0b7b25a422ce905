package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
)

// The active_sessions table is the profile → current-session map. Its primary
// key on profile_id is what makes "one active session per profile" hold.

func loadSlot(ctx context.Context, ex localdb.Execer, profileID int) (*models.TrainingSession, error) {
	var body string
	err := ex.QueryRowContext(ctx,
		`SELECT body FROM active_sessions WHERE profile_id = ?`, profileID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StorageError{Op: "load active session", Err: err}
	}

	var s models.TrainingSession
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return nil, &models.StorageError{Op: "decode active session", Err: err}
	}
	return &s, nil
}

func insertSlot(ctx context.Context, ex localdb.Execer, s *models.TrainingSession) error {
	body, err := json.Marshal(s)
	if err != nil {
		return &models.StorageError{Op: "encode active session", Err: err}
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO active_sessions (profile_id, session_id, status, body, updated_at) VALUES (?, ?, ?, ?, ?)`,
		s.ProfileID, s.ID.String(), string(s.Status), string(body), localdb.FormatTime(s.UpdatedAt))
	if err != nil {
		return &models.StorageError{Op: "insert active session", Err: err}
	}
	return nil
}

func saveSlot(ctx context.Context, ex localdb.Execer, s *models.TrainingSession) error {
	body, err := json.Marshal(s)
	if err != nil {
		return &models.StorageError{Op: "encode active session", Err: err}
	}
	res, err := ex.ExecContext(ctx,
		`UPDATE active_sessions SET status = ?, body = ?, updated_at = ? WHERE profile_id = ? AND session_id = ?`,
		string(s.Status), string(body), localdb.FormatTime(s.UpdatedAt), s.ProfileID, s.ID.String())
	if err != nil {
		return &models.StorageError{Op: "save active session", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Resource: "session", ID: s.ID.String()}
	}
	return nil
}

func clearSlot(ctx context.Context, ex localdb.Execer, profileID int) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM active_sessions WHERE profile_id = ?`, profileID)
	if err != nil {
		return &models.StorageError{Op: "clear active session", Err: err}
	}
	return nil
}

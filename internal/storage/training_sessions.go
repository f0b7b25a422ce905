package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/fitito/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PutTrainingSession stores the latest snapshot of a session, replacing any
// earlier one with the same id.
func (db *DB) PutTrainingSession(ctx context.Context, s *models.TrainingSession) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding training session: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO training_sessions (id, profile_id, status, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status, body = EXCLUDED.body, updated_at = NOW()
	`, s.ID, s.ProfileID, string(s.Status), body)
	if err != nil {
		return fmt.Errorf("upserting training session %s: %w", s.ID, err)
	}
	return nil
}

// GetTrainingSession returns the stored snapshot, or nil if none exists.
func (db *DB) GetTrainingSession(ctx context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	var body []byte
	err := db.Pool.QueryRow(ctx, `SELECT body FROM training_sessions WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying training session %s: %w", id, err)
	}
	var s models.TrainingSession
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decoding training session %s: %w", id, err)
	}
	return &s, nil
}

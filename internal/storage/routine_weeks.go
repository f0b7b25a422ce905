package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/fitito/internal/models"
	"github.com/jackc/pgx/v5"
)

// PutRoutineWeekDay replaces the planned exercises of one routine day.
func (db *DB) PutRoutineWeekDay(ctx context.Context, p *models.RoutineWeekPayload) error {
	exercises, err := json.Marshal(p.Exercises)
	if err != nil {
		return fmt.Errorf("encoding planned exercises: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO routine_week_days (routine_week_id, day_of_week, profile_id, day_name, exercises)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (routine_week_id, day_of_week) DO UPDATE
			SET profile_id = EXCLUDED.profile_id,
				day_name = EXCLUDED.day_name,
				exercises = EXCLUDED.exercises,
				updated_at = NOW()
	`, p.RoutineWeekID, p.DayOfWeek, p.ProfileID, p.DayName, exercises)
	if err != nil {
		return fmt.Errorf("upserting routine week %d day %d: %w", p.RoutineWeekID, p.DayOfWeek, err)
	}
	return nil
}

// GetRoutineWeekDay returns the stored day, or nil if none exists.
func (db *DB) GetRoutineWeekDay(ctx context.Context, routineWeekID, dayOfWeek int) (*models.RoutineWeekPayload, error) {
	var (
		p         models.RoutineWeekPayload
		exercises []byte
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT routine_week_id, day_of_week, profile_id, day_name, exercises, updated_at
		FROM routine_week_days WHERE routine_week_id = $1 AND day_of_week = $2
	`, routineWeekID, dayOfWeek).Scan(&p.RoutineWeekID, &p.DayOfWeek, &p.ProfileID, &p.DayName, &exercises, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying routine week %d day %d: %w", routineWeekID, dayOfWeek, err)
	}
	if err := json.Unmarshal(exercises, &p.Exercises); err != nil {
		return nil, fmt.Errorf("decoding planned exercises: %w", err)
	}
	return &p, nil
}

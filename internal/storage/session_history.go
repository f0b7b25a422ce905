package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/jackc/pgx/v5"
)

// UpsertResult is the outcome of a session-history upsert.
type UpsertResult struct {
	ID int64 `json:"id"`
	// Replayed is true when the same session was already stored for that date,
	// i.e. the write was a redelivery.
	Replayed bool `json:"replayed"`
}

const historyColumns = `id, profile_id, session_date, session_id, routine_week_id, routine_name,
	day_of_week, day_name, started_at, ended_at, duration_minutes, total_exercises,
	completed_exercises, total_sets, completed_sets, exercises, created_at, updated_at`

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session date %q: %w", s, err)
	}
	return d, nil
}

// UpsertSessionHistory stores a completed session. There is one row per
// (profile, session date); writing it again overwrites the row and keeps its id.
func (db *DB) UpsertSessionHistory(ctx context.Context, p *models.SessionHistoryPayload) (*UpsertResult, error) {
	date, err := parseDate(p.SessionDate)
	if err != nil {
		return nil, err
	}
	exercises, err := json.Marshal(p.Exercises)
	if err != nil {
		return nil, fmt.Errorf("encoding exercises: %w", err)
	}

	var res UpsertResult
	err = db.Pool.QueryRow(ctx, `
		WITH prev AS (
			SELECT session_id FROM session_history WHERE profile_id = $1 AND session_date = $2
		), up AS (
			INSERT INTO session_history (profile_id, session_date, session_id, routine_week_id, routine_name,
				day_of_week, day_name, started_at, ended_at, duration_minutes, total_exercises,
				completed_exercises, total_sets, completed_sets, exercises)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (profile_id, session_date) DO UPDATE SET
				session_id = EXCLUDED.session_id,
				routine_week_id = EXCLUDED.routine_week_id,
				routine_name = EXCLUDED.routine_name,
				day_of_week = EXCLUDED.day_of_week,
				day_name = EXCLUDED.day_name,
				started_at = EXCLUDED.started_at,
				ended_at = EXCLUDED.ended_at,
				duration_minutes = EXCLUDED.duration_minutes,
				total_exercises = EXCLUDED.total_exercises,
				completed_exercises = EXCLUDED.completed_exercises,
				total_sets = EXCLUDED.total_sets,
				completed_sets = EXCLUDED.completed_sets,
				exercises = EXCLUDED.exercises,
				updated_at = NOW()
			RETURNING id
		)
		SELECT up.id, COALESCE((SELECT prev.session_id = $3 FROM prev), FALSE) FROM up`,
		p.ProfileID, date, p.SessionID, p.RoutineWeekID, p.RoutineName,
		p.DayOfWeek, p.DayName, p.StartedAt, p.EndedAt, p.DurationMinutes, p.TotalExercises,
		p.CompletedExercises, p.TotalSets, p.CompletedSets, exercises,
	).Scan(&res.ID, &res.Replayed)
	if err != nil {
		return nil, fmt.Errorf("upserting session history: %w", err)
	}
	return &res, nil
}

// GetSessionHistory returns the record for (profileID, date), or nil if none exists.
func (db *DB) GetSessionHistory(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	row := db.Pool.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM session_history WHERE profile_id = $1 AND session_date = $2`,
		profileID, d)
	rec, err := scanHistory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session history: %w", err)
	}
	return rec, nil
}

// ListSessionHistory returns records with start <= session_date <= end,
// newest first. Empty bounds are open.
func (db *DB) ListSessionHistory(ctx context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error) {
	var startDate, endDate *time.Time
	if start != "" {
		d, err := parseDate(start)
		if err != nil {
			return nil, err
		}
		startDate = &d
	}
	if end != "" {
		d, err := parseDate(end)
		if err != nil {
			return nil, err
		}
		endDate = &d
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT `+historyColumns+` FROM session_history
		 WHERE profile_id = $1
		   AND ($2::date IS NULL OR session_date >= $2)
		   AND ($3::date IS NULL OR session_date <= $3)
		 ORDER BY session_date DESC`,
		profileID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying session history: %w", err)
	}
	defer rows.Close()

	var result []models.SessionHistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session history: %w", err)
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// DeleteSessionHistoryByID deletes one record. Returns false if it did not exist.
func (db *DB) DeleteSessionHistoryByID(ctx context.Context, profileID int, id int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM session_history WHERE id = $1 AND profile_id = $2`, id, profileID)
	if err != nil {
		return false, fmt.Errorf("deleting session history %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteSessionHistoryByDate deletes the record for date. Returns false if it did not exist.
func (db *DB) DeleteSessionHistoryByDate(ctx context.Context, profileID int, date string) (bool, error) {
	d, err := parseDate(date)
	if err != nil {
		return false, err
	}
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM session_history WHERE profile_id = $1 AND session_date = $2`, profileID, d)
	if err != nil {
		return false, fmt.Errorf("deleting session history for %s: %w", date, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanHistory(row pgx.Row) (*models.SessionHistoryRecord, error) {
	var (
		r         models.SessionHistoryRecord
		date      time.Time
		exercises []byte
	)
	if err := row.Scan(&r.ID, &r.ProfileID, &date, &r.SessionID, &r.RoutineWeekID, &r.RoutineName,
		&r.DayOfWeek, &r.DayName, &r.StartedAt, &r.EndedAt, &r.DurationMinutes, &r.TotalExercises,
		&r.CompletedExercises, &r.TotalSets, &r.CompletedSets, &exercises, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.SessionDate = date.Format(models.DateLayout)
	if err := json.Unmarshal(exercises, &r.Exercises); err != nil {
		return nil, fmt.Errorf("decoding exercises: %w", err)
	}
	return &r, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used for session dates.
const DateLayout = "2006-01-02"

// LocalDate returns the calendar date of t in loc. Session dates use the
// device's local calendar, not UTC, so a late-evening workout stays on its day.
func LocalDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// SessionHistoryPayload is the body of a remote session-history upsert. The
// remote keys it by (ProfileID, SessionDate, SessionID).
type SessionHistoryPayload struct {
	ProfileID          int                       `json:"profile_id"`
	SessionDate        string                    `json:"session_date"`
	SessionID          uuid.UUID                 `json:"session_id"`
	RoutineWeekID      *int                      `json:"routine_week_id,omitempty"`
	RoutineName        string                    `json:"routine_name"`
	DayOfWeek          int                       `json:"day_of_week"`
	DayName            string                    `json:"day_name"`
	StartedAt          time.Time                 `json:"started_at"`
	EndedAt            time.Time                 `json:"ended_at"`
	DurationMinutes    int                       `json:"duration_minutes"`
	Exercises          []TrainingSessionExercise `json:"exercises"`
	TotalExercises     int                       `json:"total_exercises"`
	CompletedExercises int                       `json:"completed_exercises"`
	TotalSets          int                       `json:"total_sets"`
	CompletedSets      int                       `json:"completed_sets"`
}

// Kind implements MutationPayload.
func (*SessionHistoryPayload) Kind() MutationKind { return MutationSessionCompleted }

// SessionHistoryRecord is a session-history row as stored by the remote.
type SessionHistoryRecord struct {
	ID int64 `json:"id"`
	SessionHistoryPayload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OfflineHistoryRecord is the local read-side copy of a completed session that
// has not reached the remote yet. It carries no authority over the remote row.
type OfflineHistoryRecord struct {
	ProfileID   int                   `json:"profile_id"`
	SessionDate string                `json:"session_date"`
	Payload     SessionHistoryPayload `json:"payload"`
	StoredAt    time.Time             `json:"stored_at"`
}

// RoutineWeekPayload replaces the planned configuration of one routine day.
type RoutineWeekPayload struct {
	RoutineWeekID int               `json:"routine_week_id"`
	ProfileID     int               `json:"profile_id"`
	DayOfWeek     int               `json:"day_of_week"`
	DayName       string            `json:"day_name"`
	Exercises     []PlannedExercise `json:"exercises"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Kind implements MutationPayload.
func (*RoutineWeekPayload) Kind() MutationKind { return MutationRoutineWeekUpdated }

package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a TrainingSession.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// InProgress reports whether the status occupies a profile's active slot.
func (s SessionStatus) InProgress() bool {
	return s == StatusActive || s == StatusPaused
}

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether from → to is a legal lifecycle move.
func (s SessionStatus) CanTransitionTo(to SessionStatus) bool {
	switch s {
	case StatusActive:
		return to == StatusPaused || to == StatusCompleted || to == StatusCancelled
	case StatusPaused:
		return to == StatusActive || to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// TrainingSession is one workout instance, owned by the profile's local store
// until it is completed or cancelled.
type TrainingSession struct {
	ID                   uuid.UUID                 `json:"id"`
	ProfileID            int                       `json:"profile_id"`
	RoutineWeekID        *int                      `json:"routine_week_id,omitempty"`
	RoutineName          string                    `json:"routine_name"`
	DayOfWeek            int                       `json:"day_of_week"`
	DayName              string                    `json:"day_name"`
	Status               SessionStatus             `json:"status"`
	CurrentExerciseIndex int                       `json:"current_exercise_index"`
	StartedAt            time.Time                 `json:"started_at"`
	LastActivityAt       time.Time                 `json:"last_activity_at"`
	EndedAt              *time.Time                `json:"ended_at,omitempty"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
	Exercises            []TrainingSessionExercise `json:"exercises"`
}

// Exercise returns the exercise with the given id, or nil.
func (s *TrainingSession) Exercise(id uuid.UUID) *TrainingSessionExercise {
	for i := range s.Exercises {
		if s.Exercises[i].ID == id {
			return &s.Exercises[i]
		}
	}
	return nil
}

// TrainingSessionExercise is one exercise inside a session. PlannedSets are
// copied from the routine at start and never change afterwards.
type TrainingSessionExercise struct {
	ID            uuid.UUID      `json:"id"`
	ExerciseID    int            `json:"exercise_id"`
	ExerciseName  string         `json:"exercise_name"`
	ExerciseImage string         `json:"exercise_image,omitempty"`
	Position      int            `json:"position"`
	PlannedSets   []PlannedSet   `json:"planned_sets"`
	PerformedSets []PerformedSet `json:"performed_sets"`
	IsCompleted   bool           `json:"is_completed"`
	Notes         string         `json:"notes,omitempty"`
}

// Recompute refreshes the derived completion flags of the exercise and its sets.
// An exercise is completed once it has sets and every one of them is completed.
func (e *TrainingSessionExercise) Recompute() {
	done := len(e.PerformedSets) > 0
	for i := range e.PerformedSets {
		e.PerformedSets[i].Recompute()
		if !e.PerformedSets[i].IsCompleted {
			done = false
		}
	}
	e.IsCompleted = done
}

// Technique names an advanced set technique from the routine configuration.
type Technique string

const (
	TechniqueNone      Technique = ""
	TechniqueRestPause Technique = "rest_pause"
	TechniqueDropSet   Technique = "drop_set"
	TechniquePartials  Technique = "partial_reps"
)

// PlannedSet is the prescribed target for one set.
type PlannedSet struct {
	SetNumber   int       `json:"set_number"`
	Reps        string    `json:"reps"`
	Weight      float64   `json:"weight"`
	RIR         *int      `json:"rir,omitempty"`
	RestSeconds int       `json:"rest_seconds,omitempty"`
	Technique   Technique `json:"technique,omitempty"`
}

// RestPauseEntry is one mini-set of a rest-pause set.
type RestPauseEntry struct {
	Reps        int `json:"reps"`
	RestSeconds int `json:"rest_seconds"`
}

// DropSetEntry is one drop of a drop set.
type DropSetEntry struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight"`
}

// PerformedSet is what the user actually recorded for a set.
type PerformedSet struct {
	SetNumber   int              `json:"set_number"`
	Reps        *int             `json:"reps,omitempty"`
	Weight      *float64         `json:"weight,omitempty"`
	RIR         *int             `json:"rir,omitempty"`
	RestPause   []RestPauseEntry `json:"rest_pause,omitempty"`
	DropSet     []DropSetEntry   `json:"drop_set,omitempty"`
	PartialReps *int             `json:"partial_reps,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	IsCompleted bool             `json:"is_completed"`
}

// Recompute derives IsCompleted: reps and weight both present and positive.
func (p *PerformedSet) Recompute() {
	p.IsCompleted = p.Reps != nil && *p.Reps > 0 && p.Weight != nil && *p.Weight > 0
}

// SetProgress carries the fields of one set-progress update. Nil fields are
// left untouched on the stored set.
type SetProgress struct {
	Reps        *int             `json:"reps,omitempty"`
	Weight      *float64         `json:"weight,omitempty"`
	RIR         *int             `json:"rir,omitempty"`
	RestPause   []RestPauseEntry `json:"rest_pause,omitempty"`
	DropSet     []DropSetEntry   `json:"drop_set,omitempty"`
	PartialReps *int             `json:"partial_reps,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

// Apply overwrites the supplied fields on p and recomputes completion.
func (f SetProgress) Apply(p *PerformedSet) {
	if f.Reps != nil {
		p.Reps = f.Reps
	}
	if f.Weight != nil {
		p.Weight = f.Weight
	}
	if f.RIR != nil {
		p.RIR = f.RIR
	}
	if f.RestPause != nil {
		p.RestPause = f.RestPause
	}
	if f.DropSet != nil {
		p.DropSet = f.DropSet
	}
	if f.PartialReps != nil {
		p.PartialReps = f.PartialReps
	}
	if f.Notes != nil {
		p.Notes = *f.Notes
	}
	p.Recompute()
}

// PlannedExercise is an exercise of a routine day with its set configuration.
type PlannedExercise struct {
	ExerciseID    int          `json:"exercise_id"`
	ExerciseName  string       `json:"exercise_name"`
	ExerciseImage string       `json:"exercise_image,omitempty"`
	Sets          []PlannedSet `json:"sets"`
}

// CreateSessionRequest starts a session from a routine day.
type CreateSessionRequest struct {
	ProfileID     int               `json:"profile_id"`
	RoutineWeekID *int              `json:"routine_week_id,omitempty"`
	RoutineName   string            `json:"routine_name"`
	DayOfWeek     int               `json:"day_of_week"`
	DayName       string            `json:"day_name"`
	Exercises     []PlannedExercise `json:"exercises"`
}

// Package session owns the per-profile "current session" slot and its state
// machine. It is the only component that mutates a TrainingSession.
package session

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/offlinecache"
	"github.com/claude/fitito/internal/queue"
	"github.com/google/uuid"
)

// HistoryWriter is the remote upsert used on completion.
type HistoryWriter interface {
	UpsertSessionHistory(ctx context.Context, p *models.SessionHistoryPayload) (int64, error)
}

// Store is the Local Session Store. Callers are expected to drive one profile
// sequentially; the mutex only keeps in-process callers (CLI, daemon, tests)
// from interleaving.
type Store struct {
	db     *localdb.DB
	queue  *queue.Queue
	cache  *offlinecache.Cache
	remote HistoryWriter
	log    *slog.Logger

	now    func() time.Time
	loc    *time.Location
	mirror bool

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the calendar used for session dates. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithProgressMirroring queues session_created/session_updated snapshots so
// in-progress sessions reach the remote in the background.
func WithProgressMirroring(enabled bool) Option {
	return func(s *Store) { s.mirror = enabled }
}

// New creates a Store.
func New(db *localdb.DB, q *queue.Queue, cache *offlinecache.Cache, remote HistoryWriter, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		db:     db,
		queue:  q,
		cache:  cache,
		remote: remote,
		log:    log,
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActiveSession returns the profile's active or paused session.
func (s *Store) ActiveSession(ctx context.Context, profileID int) (*models.TrainingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := loadSlot(ctx, s.db.Conn(), profileID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &models.NotFoundError{Resource: "active session"}
	}
	return sess, nil
}

// CreateSession starts a session for req.ProfileID with one empty performed
// set per planned set.
func (s *Store) CreateSession(ctx context.Context, req models.CreateSessionRequest) (*models.TrainingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &models.TrainingSession{
		ID:             uuid.New(),
		ProfileID:      req.ProfileID,
		RoutineWeekID:  req.RoutineWeekID,
		RoutineName:    req.RoutineName,
		DayOfWeek:      req.DayOfWeek,
		DayName:        req.DayName,
		Status:         models.StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
		Exercises:      make([]models.TrainingSessionExercise, 0, len(req.Exercises)),
	}
	for i, pe := range req.Exercises {
		planned := append([]models.PlannedSet(nil), pe.Sets...)
		performed := make([]models.PerformedSet, len(planned))
		for j, ps := range planned {
			setNumber := ps.SetNumber
			if setNumber == 0 {
				setNumber = j + 1
				planned[j].SetNumber = setNumber
			}
			performed[j] = models.PerformedSet{SetNumber: setNumber}
		}
		sess.Exercises = append(sess.Exercises, models.TrainingSessionExercise{
			ID:            uuid.New(),
			ExerciseID:    pe.ExerciseID,
			ExerciseName:  pe.ExerciseName,
			ExerciseImage: pe.ExerciseImage,
			Position:      i,
			PlannedSets:   planned,
			PerformedSets: performed,
		})
	}

	err := s.db.WithTx(ctx, func(tx localdb.Execer) error {
		existing, err := loadSlot(ctx, tx, req.ProfileID)
		if err != nil {
			return err
		}
		if existing != nil {
			return models.ErrSessionInProgress
		}
		if err := insertSlot(ctx, tx, sess); err != nil {
			return err
		}
		if s.mirror {
			if _, err := s.queue.EnqueueTx(ctx, tx, &models.SessionCreatedPayload{Session: *sess}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session started",
		"profile_id", sess.ProfileID,
		"session_id", sess.ID,
		"routine", sess.RoutineName,
		"day", sess.DayName,
		"exercises", len(sess.Exercises),
	)
	return sess, nil
}

// UpdateSetProgress records fields for one set of one exercise. A set number
// with no performed entry yet gets one, kept in set-number order. Set numbers
// start at 1.
func (s *Store) UpdateSetProgress(ctx context.Context, profileID int, sessionID, exerciseID uuid.UUID, setNumber int, fields models.SetProgress) (*models.TrainingSession, error) {
	if setNumber <= 0 {
		return nil, &models.NotFoundError{Resource: "set", ID: strconv.Itoa(setNumber)}
	}
	return s.mutate(ctx, profileID, sessionID, func(sess *models.TrainingSession) error {
		ex := sess.Exercise(exerciseID)
		if ex == nil {
			return &models.NotFoundError{Resource: "exercise", ID: exerciseID.String()}
		}

		idx := -1
		for i := range ex.PerformedSets {
			if ex.PerformedSets[i].SetNumber == setNumber {
				idx = i
				break
			}
		}
		if idx < 0 {
			ex.PerformedSets = append(ex.PerformedSets, models.PerformedSet{SetNumber: setNumber})
			sort.SliceStable(ex.PerformedSets, func(i, j int) bool {
				return ex.PerformedSets[i].SetNumber < ex.PerformedSets[j].SetNumber
			})
			for i := range ex.PerformedSets {
				if ex.PerformedSets[i].SetNumber == setNumber {
					idx = i
					break
				}
			}
		}

		fields.Apply(&ex.PerformedSets[idx])
		ex.Recompute()
		return nil
	})
}

// MoveToNextExercise advances the focus index; a no-op on the last exercise.
func (s *Store) MoveToNextExercise(ctx context.Context, profileID int, sessionID uuid.UUID) (*models.TrainingSession, error) {
	return s.mutate(ctx, profileID, sessionID, func(sess *models.TrainingSession) error {
		sess.CurrentExerciseIndex = clampIndex(sess.CurrentExerciseIndex+1, len(sess.Exercises))
		return nil
	})
}

// MoveToPreviousExercise moves the focus index back; a no-op on the first exercise.
func (s *Store) MoveToPreviousExercise(ctx context.Context, profileID int, sessionID uuid.UUID) (*models.TrainingSession, error) {
	return s.mutate(ctx, profileID, sessionID, func(sess *models.TrainingSession) error {
		sess.CurrentExerciseIndex = clampIndex(sess.CurrentExerciseIndex-1, len(sess.Exercises))
		return nil
	})
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// PauseSession moves the profile's session from active to paused.
func (s *Store) PauseSession(ctx context.Context, profileID int) (*models.TrainingSession, error) {
	return s.setStatus(ctx, profileID, models.StatusPaused)
}

// ResumeSession moves the profile's session from paused to active.
func (s *Store) ResumeSession(ctx context.Context, profileID int) (*models.TrainingSession, error) {
	return s.setStatus(ctx, profileID, models.StatusActive)
}

func (s *Store) setStatus(ctx context.Context, profileID int, to models.SessionStatus) (*models.TrainingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := loadSlot(ctx, s.db.Conn(), profileID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &models.NotFoundError{Resource: "active session"}
	}
	if err := transition(sess, to); err != nil {
		return nil, err
	}
	s.touch(sess)
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("session status changed", "profile_id", profileID, "session_id", sess.ID, "status", sess.Status)
	return sess, nil
}

// CancelSession discards the session. Nothing is sent to the remote and no
// history is written; a cancelled session cannot be recovered.
func (s *Store) CancelSession(ctx context.Context, profileID int, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSession(ctx, profileID, sessionID)
	if err != nil {
		return err
	}
	if err := transition(sess, models.StatusCancelled); err != nil {
		return err
	}
	if err := clearSlot(ctx, s.db.Conn(), profileID); err != nil {
		return err
	}
	s.log.Info("session cancelled", "profile_id", profileID, "session_id", sessionID)
	return nil
}

// mutate loads the addressed session, applies fn, refreshes activity
// timestamps and persists. Only active and paused sessions can be mutated.
func (s *Store) mutate(ctx context.Context, profileID int, sessionID uuid.UUID, fn func(*models.TrainingSession) error) (*models.TrainingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSession(ctx, profileID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	s.touch(sess)
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) requireSession(ctx context.Context, profileID int, sessionID uuid.UUID) (*models.TrainingSession, error) {
	sess, err := loadSlot(ctx, s.db.Conn(), profileID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.ID != sessionID {
		return nil, &models.NotFoundError{Resource: "session", ID: sessionID.String()}
	}
	return sess, nil
}

func (s *Store) touch(sess *models.TrainingSession) {
	now := s.now()
	sess.LastActivityAt = now
	sess.UpdatedAt = now
}

func (s *Store) persist(ctx context.Context, sess *models.TrainingSession) error {
	if !s.mirror {
		return saveSlot(ctx, s.db.Conn(), sess)
	}
	return s.db.WithTx(ctx, func(tx localdb.Execer) error {
		if err := saveSlot(ctx, tx, sess); err != nil {
			return err
		}
		_, err := s.queue.EnqueueTx(ctx, tx, &models.SessionUpdatedPayload{Session: *sess})
		return err
	})
}

// transition applies a lifecycle move or rejects it with a ConflictError.
func transition(sess *models.TrainingSession, to models.SessionStatus) error {
	if !sess.Status.CanTransitionTo(to) {
		return models.IllegalTransition(sess.Status, to)
	}
	sess.Status = to
	return nil
}

package session

import (
	"context"
	"time"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
	"github.com/google/uuid"
)

// Completion describes how a completed session was handed off. Queued is the
// only difference the caller can observe between an online and an offline
// completion.
type Completion struct {
	Session    *models.TrainingSession
	Payload    *models.SessionHistoryPayload
	RemoteID   int64
	Queued     bool
	MutationID uuid.UUID
}

// CompleteSession finishes the session and writes it to the remote. If the
// remote write fails for any reason the payload is queued and an offline
// history copy is stored, in the same local transaction that clears the
// slot. Remote failures never surface as errors; local storage failures do.
func (s *Store) CompleteSession(ctx context.Context, profileID int, sessionID uuid.UUID) (*Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.requireSession(ctx, profileID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := transition(sess, models.StatusCompleted); err != nil {
		return nil, err
	}
	now := s.now()
	sess.EndedAt = &now
	s.touch(sess)

	payload := BuildHistoryPayload(sess, s.loc)
	done := &Completion{Session: sess, Payload: payload}

	remoteID, err := s.remote.UpsertSessionHistory(ctx, payload)
	if err == nil {
		if err := clearSlot(ctx, s.db.Conn(), profileID); err != nil {
			return nil, err
		}
		done.RemoteID = remoteID
		s.log.Info("session completed",
			"profile_id", profileID,
			"session_id", sessionID,
			"session_date", payload.SessionDate,
			"remote_id", remoteID,
		)
		return done, nil
	}

	syncErr := &models.SyncError{Op: "upsert session history", Err: err}
	s.log.Warn("remote write failed, queueing completed session",
		"profile_id", profileID,
		"session_id", sessionID,
		"retryable", syncErr.Retryable(),
		"error", syncErr,
	)

	// The caller's context may already be cancelled (that can be why the
	// remote call failed); the fallback write must still happen.
	local := context.WithoutCancel(ctx)
	err = s.db.WithTx(local, func(tx localdb.Execer) error {
		id, err := s.queue.EnqueueTx(local, tx, payload)
		if err != nil {
			return err
		}
		done.MutationID = id
		if err := s.cache.PutTx(local, tx, models.OfflineHistoryRecord{
			ProfileID:   profileID,
			SessionDate: payload.SessionDate,
			Payload:     *payload,
			StoredAt:    now,
		}); err != nil {
			return err
		}
		return clearSlot(local, tx, profileID)
	})
	if err != nil {
		return nil, err
	}

	done.Queued = true
	s.log.Info("session completed offline",
		"profile_id", profileID,
		"session_id", sessionID,
		"session_date", payload.SessionDate,
		"mutation_id", done.MutationID,
	)
	return done, nil
}

// BuildHistoryPayload converts a completed session into the remote upsert
// body. The session date is the start time's calendar date in loc.
func BuildHistoryPayload(sess *models.TrainingSession, loc *time.Location) *models.SessionHistoryPayload {
	ended := sess.UpdatedAt
	if sess.EndedAt != nil {
		ended = *sess.EndedAt
	}

	p := &models.SessionHistoryPayload{
		ProfileID:       sess.ProfileID,
		SessionDate:     models.LocalDate(sess.StartedAt, loc),
		SessionID:       sess.ID,
		RoutineWeekID:   sess.RoutineWeekID,
		RoutineName:     sess.RoutineName,
		DayOfWeek:       sess.DayOfWeek,
		DayName:         sess.DayName,
		StartedAt:       sess.StartedAt,
		EndedAt:         ended,
		DurationMinutes: durationMinutes(sess.StartedAt, ended),
		Exercises:       make([]models.TrainingSessionExercise, len(sess.Exercises)),
		TotalExercises:  len(sess.Exercises),
	}
	for i := range sess.Exercises {
		ex := sess.Exercises[i]
		ex.PerformedSets = append([]models.PerformedSet(nil), ex.PerformedSets...)
		ex.Recompute()
		p.Exercises[i] = ex

		if ex.IsCompleted {
			p.CompletedExercises++
		}
		p.TotalSets += len(ex.PerformedSets)
		for _, set := range ex.PerformedSets {
			if set.IsCompleted {
				p.CompletedSets++
			}
		}
	}
	return p
}

// durationMinutes is the whole-minute duration, never less than 1.
func durationMinutes(start, end time.Time) int {
	m := int(end.Sub(start) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}

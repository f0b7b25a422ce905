package session

import (
	"context"
	"testing"
	"time"

	"github.com/claude/fitito/internal/models"
)

func completeAllSets(t *testing.T, f *fixture, sess *models.TrainingSession) {
	t.Helper()
	ctx := context.Background()
	for _, ex := range sess.Exercises {
		for _, ps := range ex.PerformedSets {
			if _, err := f.store.UpdateSetProgress(ctx, sess.ProfileID, sess.ID, ex.ID, ps.SetNumber, done(8, 60)); err != nil {
				t.Fatalf("UpdateSetProgress: %v", err)
			}
		}
	}
}

func TestCompleteSessionOnline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 2, 3))
	completeAllSets(t, f, sess)
	f.advance(45 * time.Minute)

	c, err := f.store.CompleteSession(ctx, 7, sess.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if c.Queued {
		t.Error("online completion should not be queued")
	}
	if c.RemoteID == 0 {
		t.Error("remote id not set")
	}
	if c.Session.Status != models.StatusCompleted || c.Session.EndedAt == nil {
		t.Errorf("session = %s ended=%v", c.Session.Status, c.Session.EndedAt)
	}
	if c.Payload.TotalSets != 6 || c.Payload.CompletedSets != 6 {
		t.Errorf("sets = %d/%d, want 6/6", c.Payload.CompletedSets, c.Payload.TotalSets)
	}
	if c.Payload.DurationMinutes != 45 {
		t.Errorf("duration = %d, want 45", c.Payload.DurationMinutes)
	}

	if f.remote.HistoryCount(7) != 1 {
		t.Error("remote history not written")
	}
	if n, _ := f.queue.CountPending(ctx); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
	if recs, _ := f.cache.ListAll(ctx, 7); len(recs) != 0 {
		t.Errorf("offline records = %d, want 0", len(recs))
	}
	if _, err := f.store.ActiveSession(ctx, 7); !models.IsNotFound(err) {
		t.Errorf("slot not cleared: %v", err)
	}
}

func TestCompleteSessionOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 2, 3))
	completeAllSets(t, f, sess)
	f.remote.SetFailing(true)

	c, err := f.store.CompleteSession(ctx, 7, sess.ID)
	if err != nil {
		t.Fatalf("CompleteSession offline: %v", err)
	}
	if !c.Queued {
		t.Error("offline completion should be queued")
	}
	if c.Session.Status != models.StatusCompleted {
		t.Errorf("status = %s", c.Session.Status)
	}

	pending, _ := f.queue.ListPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].ID != c.MutationID {
		t.Errorf("mutation id = %s, want %s", pending[0].ID, c.MutationID)
	}
	p, ok := pending[0].Payload.(*models.SessionHistoryPayload)
	if !ok || p.SessionID != sess.ID || p.CompletedSets != 6 {
		t.Errorf("queued payload = %#v", pending[0].Payload)
	}

	rec, ok, err := f.cache.Get(ctx, 7, c.Payload.SessionDate)
	if err != nil || !ok {
		t.Fatalf("offline record: ok=%v err=%v", ok, err)
	}
	if rec.Payload.SessionID != sess.ID {
		t.Errorf("offline record session = %s", rec.Payload.SessionID)
	}
	if _, err := f.store.ActiveSession(ctx, 7); !models.IsNotFound(err) {
		t.Errorf("slot not cleared: %v", err)
	}
}

// cancellingWriter cancels the caller's context and fails, like a request
// abandoned mid-flight.
type cancellingWriter struct {
	cancel context.CancelFunc
}

func (w cancellingWriter) UpsertSessionHistory(ctx context.Context, _ *models.SessionHistoryPayload) (int64, error) {
	w.cancel()
	return 0, ctx.Err()
}

func TestCompleteSessionCancelledDuringUpload(t *testing.T) {
	f := newFixture(t)
	sess, _ := f.store.CreateSession(context.Background(), planRequest(7, 1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.store.remote = cancellingWriter{cancel: cancel}

	c, err := f.store.CompleteSession(ctx, 7, sess.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if !c.Queued {
		t.Error("completion should be queued")
	}
	if n, _ := f.queue.CountPending(context.Background()); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
	if _, err := f.store.ActiveSession(context.Background(), 7); !models.IsNotFound(err) {
		t.Errorf("slot not cleared: %v", err)
	}
}

func TestCompleteSessionPaused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	f.store.PauseSession(ctx, 7)

	c, err := f.store.CompleteSession(ctx, 7, sess.ID)
	if err != nil {
		t.Fatalf("completing a paused session: %v", err)
	}
	if c.Session.Status != models.StatusCompleted {
		t.Errorf("status = %s", c.Session.Status)
	}
}

func TestCompleteSessionTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	if _, err := f.store.CompleteSession(ctx, 7, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CompleteSession(ctx, 7, sess.ID); !models.IsNotFound(err) {
		t.Errorf("second completion: err = %v, want not found", err)
	}
	if f.remote.CallCount("upsert") != 1 {
		t.Errorf("upserts = %d, want 1", f.remote.CallCount("upsert"))
	}
}

func TestBuildHistoryPayload(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	start := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	end := start.Add(20 * time.Second)
	week := 4
	sess := &models.TrainingSession{
		ProfileID:     7,
		RoutineWeekID: &week,
		StartedAt:     start,
		EndedAt:       &end,
		Exercises: []models.TrainingSessionExercise{
			{PerformedSets: []models.PerformedSet{
				{SetNumber: 1, Reps: intPtr(8), Weight: floatPtr(50)},
				{SetNumber: 2},
			}},
			{PerformedSets: []models.PerformedSet{
				{SetNumber: 1, Reps: intPtr(8), Weight: floatPtr(50)},
			}},
			{},
		},
	}

	p := BuildHistoryPayload(sess, madrid)
	if p.SessionDate != "2026-03-15" {
		t.Errorf("session date = %s, want 2026-03-15", p.SessionDate)
	}
	if p.TotalExercises != 3 || p.CompletedExercises != 1 {
		t.Errorf("exercises = %d/%d, want 1/3", p.CompletedExercises, p.TotalExercises)
	}
	if p.TotalSets != 3 || p.CompletedSets != 2 {
		t.Errorf("sets = %d/%d, want 2/3", p.CompletedSets, p.TotalSets)
	}
	if p.DurationMinutes != 1 {
		t.Errorf("duration = %d, want minimum of 1", p.DurationMinutes)
	}
	if p.RoutineWeekID == nil || *p.RoutineWeekID != 4 {
		t.Errorf("routine week = %v", p.RoutineWeekID)
	}

	p.Exercises[0].PerformedSets[1].Notes = "changed"
	if sess.Exercises[0].PerformedSets[1].Notes != "" {
		t.Error("payload shares set storage with the session")
	}
}

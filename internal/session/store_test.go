package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/offlinecache"
	"github.com/claude/fitito/internal/queue"
	"github.com/claude/fitito/internal/remote/remotetest"
)

type fixture struct {
	db     *localdb.DB
	queue  *queue.Queue
	cache  *offlinecache.Cache
	remote *remotetest.Fake
	store  *Store
	clock  *time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := localdb.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening local db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	f := &fixture{
		db:     db,
		queue:  queue.New(db),
		cache:  offlinecache.New(db),
		remote: remotetest.NewFake(),
		clock:  &now,
	}
	opts = append([]Option{
		WithClock(func() time.Time { return *f.clock }),
		WithLocation(time.UTC),
	}, opts...)
	f.store = New(db, f.queue, f.cache, f.remote, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func planRequest(profileID, exercises, sets int) models.CreateSessionRequest {
	req := models.CreateSessionRequest{
		ProfileID:   profileID,
		RoutineName: "Push Pull",
		DayOfWeek:   6,
		DayName:     "Saturday",
	}
	for e := range exercises {
		pe := models.PlannedExercise{ExerciseID: 100 + e, ExerciseName: "Exercise"}
		for s := range sets {
			pe.Sets = append(pe.Sets, models.PlannedSet{SetNumber: s + 1, Reps: "8-10", Weight: 60})
		}
		req.Exercises = append(req.Exercises, pe)
	}
	return req
}

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }

func done(reps int, weight float64) models.SetProgress {
	return models.SetProgress{Reps: intPtr(reps), Weight: floatPtr(weight)}
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.store.CreateSession(ctx, planRequest(7, 2, 3))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != models.StatusActive {
		t.Errorf("status = %s, want active", sess.Status)
	}
	if len(sess.Exercises) != 2 {
		t.Fatalf("exercises = %d, want 2", len(sess.Exercises))
	}
	for _, ex := range sess.Exercises {
		if len(ex.PerformedSets) != 3 {
			t.Errorf("performed sets = %d, want 3", len(ex.PerformedSets))
		}
		for i, ps := range ex.PerformedSets {
			if ps.SetNumber != i+1 || ps.IsCompleted {
				t.Errorf("performed set %d = %+v", i, ps)
			}
		}
	}

	active, err := f.store.ActiveSession(ctx, 7)
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	if active.ID != sess.ID {
		t.Errorf("active session = %s, want %s", active.ID, sess.ID)
	}
	if n, _ := f.queue.CountPending(ctx); n != 0 {
		t.Errorf("pending mutations without mirroring = %d", n)
	}
}

func TestCreateSessionWhileInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.PauseSession(ctx, 7); err != nil {
		t.Fatal(err)
	}

	_, err = f.store.CreateSession(ctx, planRequest(7, 1, 1))
	if !models.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
	active, _ := f.store.ActiveSession(ctx, 7)
	if active.ID != first.ID {
		t.Error("existing session was replaced")
	}

	if _, err := f.store.CreateSession(ctx, planRequest(8, 1, 1)); err != nil {
		t.Errorf("other profile should be independent: %v", err)
	}
}

func TestActiveSessionNone(t *testing.T) {
	f := newFixture(t)
	if _, err := f.store.ActiveSession(context.Background(), 7); !models.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateSetProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 2))
	exID := sess.Exercises[0].ID

	got, err := f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, 1, done(8, 60))
	if err != nil {
		t.Fatalf("UpdateSetProgress: %v", err)
	}
	ex := got.Exercises[0]
	if !ex.PerformedSets[0].IsCompleted {
		t.Error("set 1 should be completed")
	}
	if ex.IsCompleted {
		t.Error("exercise should not be completed with set 2 empty")
	}

	got, err = f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, 2, done(6, 60))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Exercises[0].IsCompleted {
		t.Error("exercise should be completed")
	}

	stored, _ := f.store.ActiveSession(ctx, 7)
	if !stored.Exercises[0].IsCompleted {
		t.Error("completion not persisted")
	}
}

func TestUpdateSetProgressOutOfOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, models.CreateSessionRequest{
		ProfileID: 7,
		Exercises: []models.PlannedExercise{{ExerciseID: 1, ExerciseName: "Dips"}},
	})
	exID := sess.Exercises[0].ID

	f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, 3, done(10, 20))
	got, err := f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, 1, done(12, 20))
	if err != nil {
		t.Fatal(err)
	}

	sets := got.Exercises[0].PerformedSets
	if len(sets) != 2 {
		t.Fatalf("sets = %d, want 2", len(sets))
	}
	if sets[0].SetNumber != 1 || sets[1].SetNumber != 3 {
		t.Errorf("set order = %d,%d, want 1,3", sets[0].SetNumber, sets[1].SetNumber)
	}
}

func TestUpdateSetProgressPartialKeepsFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	exID := sess.Exercises[0].ID

	f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, 1, done(8, 60))
	got, err := f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, 1, models.SetProgress{RIR: intPtr(2)})
	if err != nil {
		t.Fatal(err)
	}
	set := got.Exercises[0].PerformedSets[0]
	if set.Reps == nil || *set.Reps != 8 || set.RIR == nil || *set.RIR != 2 {
		t.Errorf("set = %+v", set)
	}
}

func TestUpdateSetProgressUnknownTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))

	if _, err := f.store.UpdateSetProgress(ctx, 7, sess.ID, sess.ID, 1, done(1, 1)); !models.IsNotFound(err) {
		t.Errorf("unknown exercise: err = %v", err)
	}
	other := sess.Exercises[0].ID
	if _, err := f.store.UpdateSetProgress(ctx, 7, other, other, 1, done(1, 1)); !models.IsNotFound(err) {
		t.Errorf("unknown session: err = %v", err)
	}
}

func TestUpdateSetProgressRejectsNonPositiveSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 2))
	exID := sess.Exercises[0].ID

	for _, n := range []int{0, -1} {
		if _, err := f.store.UpdateSetProgress(ctx, 7, sess.ID, exID, n, done(5, 20)); !models.IsNotFound(err) {
			t.Errorf("set %d: err = %v, want not found", n, err)
		}
	}

	got, err := f.store.ActiveSession(ctx, 7)
	if err != nil {
		t.Fatalf("ActiveSession: %v", err)
	}
	for _, set := range got.Exercises[0].PerformedSets {
		if set.SetNumber <= 0 {
			t.Errorf("performed set %d was stored", set.SetNumber)
		}
	}
	payload := BuildHistoryPayload(got, time.UTC)
	if payload.TotalSets != len(sess.Exercises[0].PerformedSets) {
		t.Errorf("total sets = %d, want %d", payload.TotalSets, len(sess.Exercises[0].PerformedSets))
	}
}

func TestUpdateSetProgressRefreshesActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	started := sess.LastActivityAt

	f.advance(2 * time.Minute)
	got, _ := f.store.UpdateSetProgress(ctx, 7, sess.ID, sess.Exercises[0].ID, 1, done(5, 40))
	if !got.LastActivityAt.After(started) {
		t.Errorf("last_activity_at = %v, want after %v", got.LastActivityAt, started)
	}
	if !got.StartedAt.Equal(started) {
		t.Error("started_at changed")
	}
}

func TestMoveExerciseClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 3, 1))

	got, _ := f.store.MoveToPreviousExercise(ctx, 7, sess.ID)
	if got.CurrentExerciseIndex != 0 {
		t.Errorf("index after prev on first = %d", got.CurrentExerciseIndex)
	}
	for range 5 {
		got, _ = f.store.MoveToNextExercise(ctx, 7, sess.ID)
	}
	if got.CurrentExerciseIndex != 2 {
		t.Errorf("index after next past end = %d, want 2", got.CurrentExerciseIndex)
	}
	got, _ = f.store.MoveToPreviousExercise(ctx, 7, sess.ID)
	if got.CurrentExerciseIndex != 1 {
		t.Errorf("index after prev = %d, want 1", got.CurrentExerciseIndex)
	}
}

func TestClampIndex(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{0, 0, 0},
		{1, 0, 0},
		{-1, 3, 0},
		{3, 3, 2},
		{1, 3, 1},
	}
	for _, tt := range tests {
		if got := clampIndex(tt.i, tt.n); got != tt.want {
			t.Errorf("clampIndex(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.PauseSession(ctx, 7); !models.IsNotFound(err) {
		t.Errorf("pause without session: err = %v", err)
	}

	f.store.CreateSession(ctx, planRequest(7, 1, 1))
	if _, err := f.store.ResumeSession(ctx, 7); !models.IsConflict(err) {
		t.Errorf("resume active: err = %v, want conflict", err)
	}

	got, err := f.store.PauseSession(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusPaused {
		t.Errorf("status = %s, want paused", got.Status)
	}
	if _, err := f.store.PauseSession(ctx, 7); !models.IsConflict(err) {
		t.Errorf("pause paused: err = %v, want conflict", err)
	}

	got, err = f.store.ResumeSession(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestPausedSessionAcceptsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	f.store.PauseSession(ctx, 7)

	got, err := f.store.UpdateSetProgress(ctx, 7, sess.ID, sess.Exercises[0].ID, 1, done(5, 50))
	if err != nil {
		t.Fatalf("UpdateSetProgress on paused session: %v", err)
	}
	if got.Status != models.StatusPaused {
		t.Errorf("status = %s, want paused", got.Status)
	}
}

func TestCancelSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))

	if err := f.store.CancelSession(ctx, 7, sess.ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if _, err := f.store.ActiveSession(ctx, 7); !models.IsNotFound(err) {
		t.Errorf("slot not cleared: %v", err)
	}
	if f.remote.HistoryCount(7) != 0 {
		t.Error("cancel wrote history")
	}
	if n, _ := f.queue.CountPending(ctx); n != 0 {
		t.Errorf("cancel queued %d mutations", n)
	}
	if err := f.store.CancelSession(ctx, 7, sess.ID); !models.IsNotFound(err) {
		t.Errorf("second cancel: err = %v, want not found", err)
	}
	if _, err := f.store.CreateSession(ctx, planRequest(7, 1, 1)); err != nil {
		t.Errorf("new session after cancel: %v", err)
	}
}

func TestProgressMirroring(t *testing.T) {
	f := newFixture(t, WithProgressMirroring(true))
	ctx := context.Background()

	sess, _ := f.store.CreateSession(ctx, planRequest(7, 1, 1))
	f.store.UpdateSetProgress(ctx, 7, sess.ID, sess.Exercises[0].ID, 1, done(8, 60))
	f.store.PauseSession(ctx, 7)

	pending, err := f.queue.ListPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.MutationKind{
		models.MutationSessionCreated,
		models.MutationSessionUpdated,
		models.MutationSessionUpdated,
	}
	if len(pending) != len(want) {
		t.Fatalf("pending = %d, want %d", len(pending), len(want))
	}
	for i, m := range pending {
		if m.Kind() != want[i] {
			t.Errorf("pending[%d] = %s, want %s", i, m.Kind(), want[i])
		}
	}
	last := pending[2].Payload.(*models.SessionUpdatedPayload)
	if last.Session.Status != models.StatusPaused {
		t.Errorf("mirrored status = %s, want paused", last.Session.Status)
	}
}

// Package remotetest provides an in-memory session-history API for tests.
package remotetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/google/uuid"
)

// ErrUnavailable is returned by every call while the fake is failing.
var ErrUnavailable = errors.New("remotetest: remote unavailable")

type historyKey struct {
	profileID int
	date      string
}

// Fake implements the remote API with upsert semantics keyed by
// (profile, session date), like the real server.
type Fake struct {
	mu       sync.Mutex
	failing  bool
	failWhen func(models.MutationKind, any) error
	nextID   int64
	history  map[historyKey]*models.SessionHistoryRecord
	sessions map[uuid.UUID]models.TrainingSession
	routines map[[2]int]models.RoutineWeekPayload

	calls map[string]int
}

// NewFake returns an empty, reachable Fake.
func NewFake() *Fake {
	return &Fake{
		history:  make(map[historyKey]*models.SessionHistoryRecord),
		sessions: make(map[uuid.UUID]models.TrainingSession),
		routines: make(map[[2]int]models.RoutineWeekPayload),
		calls:    make(map[string]int),
	}
}

// SetFailing makes every subsequent call fail (true) or succeed (false).
func (f *Fake) SetFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

// FailWhen installs a per-call hook; a non-nil return fails that write.
// The second argument is the payload pointer passed to the call.
func (f *Fake) FailWhen(fn func(kind models.MutationKind, payload any) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWhen = fn
}

func (f *Fake) check(op string, kind models.MutationKind, payload any) error {
	f.calls[op]++
	if f.failing {
		return ErrUnavailable
	}
	if f.failWhen != nil && kind != "" {
		return f.failWhen(kind, payload)
	}
	return nil
}

// Ping implements the reachability probe.
func (f *Fake) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check("ping", "", nil)
}

// UpsertSessionHistory stores p, replacing any record for the same profile and date.
func (f *Fake) UpsertSessionHistory(_ context.Context, p *models.SessionHistoryPayload) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("upsert", models.MutationSessionCompleted, p); err != nil {
		return 0, err
	}

	key := historyKey{p.ProfileID, p.SessionDate}
	now := time.Now()
	if rec, ok := f.history[key]; ok {
		rec.SessionHistoryPayload = *p
		rec.UpdatedAt = now
		return rec.ID, nil
	}
	f.nextID++
	f.history[key] = &models.SessionHistoryRecord{
		ID:                    f.nextID,
		SessionHistoryPayload: *p,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	return f.nextID, nil
}

// GetSessionHistory returns the record for (profileID, date) or nil.
func (f *Fake) GetSessionHistory(_ context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("get", "", nil); err != nil {
		return nil, err
	}
	rec, ok := f.history[historyKey{profileID, date}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// ListSessionHistory returns the profile's records within [start, end], newest first.
func (f *Fake) ListSessionHistory(_ context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("list", "", nil); err != nil {
		return nil, err
	}
	var out []models.SessionHistoryRecord
	for k, rec := range f.history {
		if k.profileID != profileID {
			continue
		}
		if (start != "" && k.date < start) || (end != "" && k.date > end) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionDate > out[j].SessionDate })
	return out, nil
}

// PutTrainingSession stores a session snapshot.
func (f *Fake) PutTrainingSession(_ context.Context, s *models.TrainingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kind := models.MutationSessionUpdated
	if _, seen := f.sessions[s.ID]; !seen {
		kind = models.MutationSessionCreated
	}
	if err := f.check("put_session", kind, s); err != nil {
		return err
	}
	f.sessions[s.ID] = *s
	return nil
}

// PutRoutineWeekDay stores a routine day configuration.
func (f *Fake) PutRoutineWeekDay(_ context.Context, p *models.RoutineWeekPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("put_routine", models.MutationRoutineWeekUpdated, p); err != nil {
		return err
	}
	f.routines[[2]int{p.RoutineWeekID, p.DayOfWeek}] = *p
	return nil
}

// HistoryCount returns how many history records exist for profileID.
func (f *Fake) HistoryCount(profileID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.history {
		if k.profileID == profileID {
			n++
		}
	}
	return n
}

// Session returns the mirrored snapshot for id.
func (f *Fake) Session(id uuid.UUID) (models.TrainingSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok
}

// RoutineDay returns the stored configuration for a routine day.
func (f *Fake) RoutineDay(routineWeekID, dayOfWeek int) (models.RoutineWeekPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.routines[[2]int{routineWeekID, dayOfWeek}]
	return p, ok
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

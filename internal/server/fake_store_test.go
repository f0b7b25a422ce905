package server

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/storage"
	"github.com/google/uuid"
)

type historyKey struct {
	profileID int
	date      string
}

type routineKey struct {
	weekID, day int
}

// memStore is an in-memory Store with the same upsert keying as the
// Postgres implementation.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	profiles   map[int]bool
	history    map[historyKey]*models.SessionHistoryRecord
	sessions   map[uuid.UUID]*models.TrainingSession
	routines   map[routineKey]*models.RoutineWeekPayload
	logs       []storage.WriteLog
	failUpsert error
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[int]bool{},
		history:  map[historyKey]*models.SessionHistoryRecord{},
		sessions: map[uuid.UUID]*models.TrainingSession{},
		routines: map[routineKey]*models.RoutineWeekPayload{},
	}
}

func (m *memStore) EnsureProfile(_ context.Context, profileID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profileID] = true
	return nil
}

func (m *memStore) UpsertSessionHistory(_ context.Context, p *models.SessionHistoryPayload) (*storage.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert != nil {
		return nil, m.failUpsert
	}
	if !m.profiles[p.ProfileID] {
		return nil, errors.New("profile does not exist")
	}
	k := historyKey{p.ProfileID, p.SessionDate}
	if existing, ok := m.history[k]; ok {
		replayed := existing.SessionID == p.SessionID
		existing.SessionHistoryPayload = *p
		return &storage.UpsertResult{ID: existing.ID, Replayed: replayed}, nil
	}
	m.nextID++
	m.history[k] = &models.SessionHistoryRecord{ID: m.nextID, SessionHistoryPayload: *p}
	return &storage.UpsertResult{ID: m.nextID}, nil
}

func (m *memStore) GetSessionHistory(_ context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.history[historyKey{profileID, date}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) ListSessionHistory(_ context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionHistoryRecord
	for k, rec := range m.history {
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

func (m *memStore) DeleteSessionHistoryByID(_ context.Context, profileID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rec := range m.history {
		if k.profileID == profileID && rec.ID == id {
			delete(m.history, k)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteSessionHistoryByDate(_ context.Context, profileID int, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := historyKey{profileID, date}
	if _, ok := m.history[k]; !ok {
		return false, nil
	}
	delete(m.history, k)
	return true, nil
}

func (m *memStore) PutTrainingSession(_ context.Context, s *models.TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) GetTrainingSession(_ context.Context, id uuid.UUID) (*models.TrainingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memStore) PutRoutineWeekDay(_ context.Context, p *models.RoutineWeekPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.routines[routineKey{p.RoutineWeekID, p.DayOfWeek}] = &cp
	return nil
}

func (m *memStore) GetRoutineWeekDay(_ context.Context, weekID, day int) (*models.RoutineWeekPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routines[routineKey{weekID, day}], nil
}

func (m *memStore) InsertWriteLog(_ context.Context, l storage.WriteLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, l)
	return l.ID, nil
}

func (m *memStore) QueryWriteLogs(_ context.Context, profileID, limit int) ([]storage.WriteLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.WriteLog
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.logs[i].ProfileID == profileID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

func (m *memStore) GetProfileStats(_ context.Context, profileID int) (*storage.ProfileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &storage.ProfileStats{}
	for k, rec := range m.history {
		if k.profileID != profileID {
			continue
		}
		stats.TotalSessions++
		stats.TotalSets += int64(rec.TotalSets)
		stats.CompletedSets += int64(rec.CompletedSets)
	}
	return stats, nil
}

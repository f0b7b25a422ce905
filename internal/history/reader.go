// Package history is the read boundary for session history. It applies the
// merge policy: the remote record wins, the offline copy fills in only when
// the remote has nothing for that date yet.
package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/claude/fitito/internal/models"
	"github.com/golang/groupcache/lru"
)

// Source says where an Entry came from.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceOffline Source = "offline"
)

// Entry is one session-history item as shown to readers.
type Entry struct {
	Source   Source                       `json:"source"`
	RemoteID int64                        `json:"remote_id,omitempty"`
	Session  models.SessionHistoryPayload `json:"session"`
}

// Remote is the read side of the session-history API.
type Remote interface {
	GetSessionHistory(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error)
	ListSessionHistory(ctx context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error)
}

// OfflineStore is the local fallback copy.
type OfflineStore interface {
	Get(ctx context.Context, profileID int, date string) (*models.OfflineHistoryRecord, bool, error)
	ListAll(ctx context.Context, profileID int) ([]models.OfflineHistoryRecord, error)
}

type cacheKey struct {
	profileID int
	date      string
}

// Reader serves history with remote-first merging and caches remote
// by-date lookups until InvalidateHistory is called.
type Reader struct {
	remote  Remote
	offline OfflineStore
	log     *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache
}

// NewReader creates a Reader caching up to size by-date lookups.
func NewReader(remote Remote, offline OfflineStore, size int, log *slog.Logger) *Reader {
	if size <= 0 {
		size = 128
	}
	return &Reader{remote: remote, offline: offline, log: log, cache: lru.New(size)}
}

// SessionForDate returns the session recorded for date, or nil if there is none.
// An unreachable remote is treated like a remote without a record.
func (r *Reader) SessionForDate(ctx context.Context, profileID int, date string) (*Entry, error) {
	rec, err := r.remoteForDate(ctx, profileID, date)
	if err != nil {
		r.log.Warn("remote history read failed, using offline copy",
			"profile_id", profileID, "date", date, "error", err)
	}
	if rec != nil {
		return &Entry{Source: SourceRemote, RemoteID: rec.ID, Session: rec.SessionHistoryPayload}, nil
	}

	off, ok, err := r.offline.Get(ctx, profileID, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Entry{Source: SourceOffline, Session: off.Payload}, nil
}

func (r *Reader) remoteForDate(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	key := cacheKey{profileID, date}

	r.mu.Lock()
	v, ok := r.cache.Get(key)
	r.mu.Unlock()
	if ok {
		return v.(*models.SessionHistoryRecord), nil
	}

	rec, err := r.remote.GetSessionHistory(ctx, profileID, date)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache.Add(key, rec)
	r.mu.Unlock()
	return rec, nil
}

// List returns the profile's history in [start, end] (empty bounds are open),
// newest first. Offline copies appear only for dates the remote lacks.
func (r *Reader) List(ctx context.Context, profileID int, start, end string) ([]Entry, error) {
	remoteRecs, err := r.remote.ListSessionHistory(ctx, profileID, start, end)
	if err != nil {
		r.log.Warn("remote history list failed, showing offline copies only",
			"profile_id", profileID, "error", err)
		remoteRecs = nil
	}

	seen := make(map[string]bool, len(remoteRecs))
	entries := make([]Entry, 0, len(remoteRecs))
	for _, rec := range remoteRecs {
		seen[rec.SessionDate] = true
		entries = append(entries, Entry{Source: SourceRemote, RemoteID: rec.ID, Session: rec.SessionHistoryPayload})
	}

	offline, err := r.offline.ListAll(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for _, off := range offline {
		if seen[off.SessionDate] {
			continue
		}
		if (start != "" && off.SessionDate < start) || (end != "" && off.SessionDate > end) {
			continue
		}
		entries = append(entries, Entry{Source: SourceOffline, Session: off.Payload})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Session.SessionDate > entries[j].Session.SessionDate
	})
	return entries, nil
}

// InvalidateHistory drops every cached remote lookup.
func (r *Reader) InvalidateHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Clear()
}

// Record converts an Entry to the remote row shape. Offline entries have ID 0.
func (e Entry) Record() models.SessionHistoryRecord {
	return models.SessionHistoryRecord{ID: e.RemoteID, SessionHistoryPayload: e.Session}
}

// Records exposes a Reader through the record-returning read API, so callers
// written against the remote (MCP tools) see offline copies too.
type Records struct {
	r *Reader
}

// Records returns the record-shaped view of r.
func (r *Reader) Records() *Records {
	return &Records{r: r}
}

// GetSessionHistory returns the merged record for date, or nil if there is none.
func (s *Records) GetSessionHistory(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	e, err := s.r.SessionForDate(ctx, profileID, date)
	if err != nil || e == nil {
		return nil, err
	}
	rec := e.Record()
	return &rec, nil
}

// ListSessionHistory returns merged records in [start, end], newest first.
func (s *Records) ListSessionHistory(ctx context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error) {
	entries, err := s.r.List(ctx, profileID, start, end)
	if err != nil {
		return nil, err
	}
	recs := make([]models.SessionHistoryRecord, len(entries))
	for i, e := range entries {
		recs[i] = e.Record()
	}
	return recs, nil
}

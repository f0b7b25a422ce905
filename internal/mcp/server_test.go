package mcp

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeSource struct {
	records   []models.SessionHistoryRecord
	gotProfID int
	gotStart  string
	gotEnd    string
}

func (f *fakeSource) GetSessionHistory(_ context.Context, profileID int, date string) (*models.SessionHistoryRecord, error) {
	f.gotProfID = profileID
	for i := range f.records {
		if f.records[i].ProfileID == profileID && f.records[i].SessionDate == date {
			return &f.records[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSource) ListSessionHistory(_ context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error) {
	f.gotProfID, f.gotStart, f.gotEnd = profileID, start, end
	var out []models.SessionHistoryRecord
	for _, r := range f.records {
		if r.ProfileID == profileID && r.SessionDate >= start && r.SessionDate <= end {
			out = append(out, r)
		}
	}
	return out, nil
}

func record(profileID int, date string, sets, completed int) models.SessionHistoryRecord {
	var r models.SessionHistoryRecord
	r.ProfileID = profileID
	r.SessionDate = date
	r.DurationMinutes = 45
	r.TotalSets = sets
	r.CompletedSets = completed
	return r
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func TestProfileIDFromContextUnset(t *testing.T) {
	if id, ok := ProfileIDFromContext(context.Background()); ok {
		t.Errorf("ProfileIDFromContext(empty) = %d, true; want no profile", id)
	}
}

func TestProfileIDFromContextSet(t *testing.T) {
	ctx := WithProfileID(context.Background(), 7)
	if id, ok := ProfileIDFromContext(ctx); !ok || id != 7 {
		t.Errorf("ProfileIDFromContext = %d, %v; want 7, true", id, ok)
	}
}

func TestToolsRequireProfile(t *testing.T) {
	ds := &fakeSource{records: []models.SessionHistoryRecord{record(1, "2026-03-14", 6, 6)}}
	h := newHandlers(ds)
	ctx := context.Background()

	res, err := h.getSessionHistory(ctx, callRequest(map[string]any{"date": "2026-03-14"}))
	if err != nil {
		t.Fatalf("getSessionHistory: %v", err)
	}
	if !res.IsError {
		t.Error("get_session_history without a profile should be a tool error")
	}

	res, err = h.listSessionHistory(ctx, callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("listSessionHistory: %v", err)
	}
	if !res.IsError {
		t.Error("list_session_history without a profile should be a tool error")
	}

	res, err = h.getTrainingSummary(ctx, callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("getTrainingSummary: %v", err)
	}
	if !res.IsError {
		t.Error("get_training_summary without a profile should be a tool error")
	}
	if ds.gotProfID != 0 {
		t.Errorf("data source was queried for profile %d", ds.gotProfID)
	}
}

func TestRecentSessionsRequiresProfile(t *testing.T) {
	h := newHandlers(&fakeSource{})
	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "fitito://recent_sessions"}}

	if _, err := h.recentSessions(context.Background(), req); err == nil {
		t.Error("expected error without a connection profile")
	}
	contents, err := h.recentSessions(WithProfileID(context.Background(), 2), req)
	if err != nil {
		t.Fatalf("recentSessions: %v", err)
	}
	if len(contents) != 1 {
		t.Errorf("contents = %d, want 1", len(contents))
	}
}

func TestDefaultDateRange(t *testing.T) {
	now := time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC)

	start, end, err := defaultDateRange("", "", 30, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "2026-03-01" || end != "2026-03-31" {
		t.Errorf("default range = %s..%s, want 2026-03-01..2026-03-31", start, end)
	}

	start, end, err = defaultDateRange("2026-01-01", "2026-01-31", 30, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "2026-01-01" || end != "2026-01-31" {
		t.Errorf("explicit range = %s..%s", start, end)
	}

	if _, _, err := defaultDateRange("not-a-date", "", 30, now); err == nil {
		t.Error("expected error for invalid date")
	}
	if _, _, err := defaultDateRange("2026-02-01", "2026-01-01", 30, now); err == nil {
		t.Error("expected error for start after end")
	}
}

func TestGetSessionHistoryTool(t *testing.T) {
	ds := &fakeSource{records: []models.SessionHistoryRecord{record(7, "2026-03-14", 6, 6)}}
	h := newHandlers(ds)

	res, err := h.getSessionHistory(context.Background(), callRequest(map[string]any{
		"date":       "2026-03-14",
		"profile_id": 7,
	}))
	if err != nil {
		t.Fatalf("getSessionHistory: %v", err)
	}
	if res.IsError {
		t.Fatalf("result is error: %+v", res.Content)
	}
	if ds.gotProfID != 7 {
		t.Errorf("profile id = %d, want 7", ds.gotProfID)
	}
}

func TestGetSessionHistoryToolMissing(t *testing.T) {
	h := newHandlers(&fakeSource{})

	res, err := h.getSessionHistory(context.Background(), callRequest(map[string]any{
		"date":       "2026-03-14",
		"profile_id": 1,
	}))
	if err != nil {
		t.Fatalf("getSessionHistory: %v", err)
	}
	if res.IsError {
		t.Fatal("missing session should not be a tool error")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	if text.Text != "no session recorded on 2026-03-14" {
		t.Errorf("text = %q", text.Text)
	}
}

func TestGetSessionHistoryToolBadDate(t *testing.T) {
	h := newHandlers(&fakeSource{})

	res, err := h.getSessionHistory(WithProfileID(context.Background(), 1), callRequest(map[string]any{"date": "14/03/2026"}))
	if err != nil {
		t.Fatalf("getSessionHistory: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error for malformed date")
	}
}

func TestListSessionHistoryToolUsesContextProfile(t *testing.T) {
	ds := &fakeSource{}
	h := newHandlers(ds)
	ctx := WithProfileID(context.Background(), 3)

	res, err := h.listSessionHistory(ctx, callRequest(map[string]any{
		"start": "2026-03-01",
		"end":   "2026-03-31",
	}))
	if err != nil {
		t.Fatalf("listSessionHistory: %v", err)
	}
	if res.IsError {
		t.Fatalf("result is error: %+v", res.Content)
	}
	if ds.gotProfID != 3 || ds.gotStart != "2026-03-01" || ds.gotEnd != "2026-03-31" {
		t.Errorf("query = (%d, %s, %s), want (3, 2026-03-01, 2026-03-31)", ds.gotProfID, ds.gotStart, ds.gotEnd)
	}
}

func TestSummarize(t *testing.T) {
	recs := []models.SessionHistoryRecord{
		record(1, "2026-03-02", 6, 6),
		record(1, "2026-03-04", 10, 5),
	}
	s := summarize("2026-03-01", "2026-03-31", recs)
	if s.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", s.Sessions)
	}
	if s.Minutes != 90 {
		t.Errorf("minutes = %d, want 90", s.Minutes)
	}
	if s.Sets != 16 || s.CompletedSets != 11 {
		t.Errorf("sets = %d/%d, want 11/16", s.CompletedSets, s.Sets)
	}
	if s.CompletionRate != 11.0/16.0 {
		t.Errorf("completion rate = %v", s.CompletionRate)
	}

	if empty := summarize("a", "b", nil); empty.CompletionRate != 0 {
		t.Errorf("empty completion rate = %v, want 0", empty.CompletionRate)
	}
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultDateRange returns start/end as calendar dates, defaulting to the
// days days ending today.
func defaultDateRange(startStr, endStr string, days int, now time.Time) (string, string, error) {
	end := now
	if endStr != "" {
		t, err := time.Parse(models.DateLayout, endStr)
		if err != nil {
			return "", "", err
		}
		end = t
	}

	start := end.AddDate(0, 0, -days)
	if startStr != "" {
		t, err := time.Parse(models.DateLayout, startStr)
		if err != nil {
			return "", "", err
		}
		start = t
	}

	if start.After(end) {
		return "", "", fmt.Errorf("start %s is after end %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return start.Format(models.DateLayout), end.Format(models.DateLayout), nil
}

// errNoProfile is returned when neither the call nor the connection names a profile.
var errNoProfile = errors.New("profile_id is required: the connection has no profile (set the X-Profile-ID header or pass profile_id)")

// profileID returns the profile_id argument or the connection's profile.
func profileID(ctx context.Context, req mcp.CallToolRequest) (int, error) {
	def, _ := ProfileIDFromContext(ctx)
	id := req.GetInt("profile_id", def)
	if id <= 0 {
		return 0, errNoProfile
	}
	return id, nil
}

// --- Tool definitions ---

var toolGetSessionHistory = mcp.NewTool("get_session_history",
	mcp.WithDescription("Get the completed training session recorded on a date, with every exercise and performed set."),
	mcp.WithString("date", mcp.Required(), mcp.Description("Session date (YYYY-MM-DD)")),
	mcp.WithNumber("profile_id", mcp.Description("Profile ID. Defaults to the connection's profile; required when the connection has none.")),
)

var toolListSessionHistory = mcp.NewTool("list_session_history",
	mcp.WithDescription("List completed training sessions in a date range, newest first."),
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD). Defaults to 30 days before end.")),
	mcp.WithString("end", mcp.Description("End date (YYYY-MM-DD). Defaults to today.")),
	mcp.WithNumber("profile_id", mcp.Description("Profile ID. Defaults to the connection's profile; required when the connection has none.")),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Totals over a date range: sessions, minutes, sets and completed sets, plus completion rate."),
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD). Defaults to 30 days before end.")),
	mcp.WithString("end", mcp.Description("End date (YYYY-MM-DD). Defaults to today.")),
	mcp.WithNumber("profile_id", mcp.Description("Profile ID. Defaults to the connection's profile; required when the connection has none.")),
)

// --- Tool handlers ---

func (h *handlers) getSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date parameter is required"), nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	pid, err := profileID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := h.ds.GetSessionHistory(ctx, pid, date)
	if err != nil {
		h.log.Error("mcp get_session_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if rec == nil {
		return mcp.NewToolResultText("no session recorded on " + date), nil
	}

	result, err := mcp.NewToolResultJSON(rec)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultDateRange(req.GetString("start", ""), req.GetString("end", ""), 30, time.Now())
	if err != nil {
		return mcp.NewToolResultError("invalid date range: " + err.Error()), nil
	}

	pid, err := profileID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	recs, err := h.ds.ListSessionHistory(ctx, pid, start, end)
	if err != nil {
		h.log.Error("mcp list_session_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(recs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// TrainingSummary aggregates session history over a range.
type TrainingSummary struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Sessions       int     `json:"sessions"`
	Minutes        int     `json:"minutes"`
	Sets           int     `json:"sets"`
	CompletedSets  int     `json:"completed_sets"`
	CompletionRate float64 `json:"completion_rate"`
}

func summarize(start, end string, recs []models.SessionHistoryRecord) TrainingSummary {
	s := TrainingSummary{Start: start, End: end, Sessions: len(recs)}
	for _, r := range recs {
		s.Minutes += r.DurationMinutes
		s.Sets += r.TotalSets
		s.CompletedSets += r.CompletedSets
	}
	if s.Sets > 0 {
		s.CompletionRate = float64(s.CompletedSets) / float64(s.Sets)
	}
	return s
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultDateRange(req.GetString("start", ""), req.GetString("end", ""), 30, time.Now())
	if err != nil {
		return mcp.NewToolResultError("invalid date range: " + err.Error()), nil
	}

	pid, err := profileID(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	recs, err := h.ds.ListSessionHistory(ctx, pid, start, end)
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summarize(start, end, recs))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

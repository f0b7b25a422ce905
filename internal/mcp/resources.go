package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	start, end, err := defaultDateRange("", "", 14, time.Now())
	if err != nil {
		return nil, err
	}

	pid, ok := ProfileIDFromContext(ctx)
	if !ok {
		return nil, errNoProfile
	}

	recs, err := h.ds.ListSessionHistory(ctx, pid, start, end)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]any{
		"start":    start,
		"end":      end,
		"sessions": recs,
		"summary":  summarize(start, end, recs),
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

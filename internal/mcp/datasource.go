package mcp

import (
	"context"

	"github.com/claude/fitito/internal/history"
	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/storage"
)

// DataSource abstracts the history read side for MCP tools. *storage.DB serves
// the server endpoint; *history.Records serves stdio mode on a device, where
// sessions completed offline must show up until they sync.
type DataSource interface {
	GetSessionHistory(ctx context.Context, profileID int, date string) (*models.SessionHistoryRecord, error)
	ListSessionHistory(ctx context.Context, profileID int, start, end string) ([]models.SessionHistoryRecord, error)
}

var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*history.Records)(nil)
)

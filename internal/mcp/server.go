// Package mcp exposes session history to MCP clients.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const profileIDKey contextKey = iota

// ProfileIDFromContext extracts the profile ID injected by the transport
// layer. ok is false when the transport supplied none.
func ProfileIDFromContext(ctx context.Context) (id int, ok bool) {
	id, ok = ctx.Value(profileIDKey).(int)
	return id, ok && id > 0
}

// WithProfileID returns a context with the given profile ID.
func WithProfileID(ctx context.Context, profileID int) context.Context {
	return context.WithValue(ctx, profileIDKey, profileID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Fitito", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Fitito training history. Look up completed training sessions by date or list them over a date range. Tools default to the profile of the current connection; without one, pass profile_id."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetSessionHistory, Handler: h.getSessionHistory},
		server.ServerTool{Tool: toolListSessionHistory, Handler: h.listSessionHistory},
		server.ServerTool{Tool: toolGetTrainingSummary, Handler: h.getTrainingSummary},
	)

	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resRecentSessions = mcp.NewResource(
	"fitito://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Completed training sessions from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

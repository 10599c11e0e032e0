package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const ownerKey contextKey = iota

// DefaultOwner is used when the transport did not supply one.
const DefaultOwner = "local"

// OwnerFromContext extracts the owner injected by the transport layer.
func OwnerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey).(string); ok && owner != "" {
		return owner
	}
	return DefaultOwner
}

// WithOwner returns a context with the given owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("GymWhisper", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("GymWhisper workout log. Query finalized strength training sets by date and exercise. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWorkoutHistory, Handler: h.getWorkoutHistory},
		server.ServerTool{Tool: toolListSessions, Handler: h.listSessions},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetExerciseProgress, Handler: h.getExerciseProgress},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// NewHTTPHandler serves s over streamable HTTP. owner maps each request to
// the history owner, typically the identity set by the API middleware.
func NewHTTPHandler(s *server.MCPServer, owner func(*http.Request) string) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithOwner(ctx, owner(r))
		}),
	)
}

// ServeStdio runs s on stdin/stdout for a single owner.
func ServeStdio(s *server.MCPServer, owner string) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return WithOwner(ctx, owner)
	}))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resRecentSessions = mcp.NewResource(
	"gymwhisper://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("The last 10 finalized workout sessions with their parsed sets"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"gymwhisper://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Every exercise in the workout history with set counts and first/last dates"),
	mcp.WithMIMEType("application/json"),
)

package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("Retrieve logged strength training sets. Each set has exercise name, reps, weight (with unit), review flag and date."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD), inclusive. Defaults to the beginning of the history.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD), inclusive. Defaults to the latest set.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (partial match, e.g. 'bench')")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List finalized workout sessions, newest first, with the time each was saved and its set count."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions. Defaults to 20.")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List every exercise in the history with total sets, sets still flagged for review, and first/last dates."),
)

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Day-by-day progression for one exercise: sets, reps and weights per day, plus the heaviest weight."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (partial match)")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to the beginning of the history.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to the latest set.")),
)

// --- Tool handlers ---

func (h *handlers) loadSets(ctx context.Context) ([]SetEntry, error) {
	sessions, err := h.ds.Sessions(ctx, OwnerFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return flattenSets(sessions), nil
}

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := dateRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sets, err := h.loadSets(ctx)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	sets = filterSets(sets, setFilter{start: start, end: end, exercise: req.GetString("exercise", "")})

	result, err := mcp.NewToolResultJSON(map[string]any{
		"count": len(sets),
		"sets":  sets,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

type sessionSummary struct {
	FinalizedAt string `json:"finalized_at,omitempty"`
	Sets        int    `json:"sets"`
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	sessions, err := h.ds.Sessions(ctx, OwnerFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := []sessionSummary{}
	for i := len(sessions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, sessionSummary{FinalizedAt: sessions[i].FinalizedAt, Sets: len(sessions[i].Records)})
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"total":    len(sessions),
		"sessions": out,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sets, err := h.loadSets(ctx)
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercises": exerciseStats(sets),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil || exercise == "" {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	start, end, err := dateRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sets, err := h.loadSets(ctx)
	if err != nil {
		h.log.Error("mcp get_exercise_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	sets = filterSets(sets, setFilter{start: start, end: end, exercise: exercise})

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise": exercise,
		"days":     progress(sets),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

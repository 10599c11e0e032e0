package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

const recentSessionCount = 10

type recentSession struct {
	FinalizedAt string     `json:"finalized_at,omitempty"`
	Sets        []SetEntry `json:"sets"`
}

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sessions, err := h.ds.Sessions(ctx, OwnerFromContext(ctx))
	if err != nil {
		return nil, err
	}

	out := []recentSession{}
	for i := len(sessions) - 1; i >= 0 && len(out) < recentSessionCount; i-- {
		sets := flattenSets(sessions[i : i+1])
		if sets == nil {
			sets = []SetEntry{}
		}
		out = append(out, recentSession{FinalizedAt: sessions[i].FinalizedAt, Sets: sets})
	}

	return jsonContents(req.Params.URI, out)
}

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sets, err := h.loadSets(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, exerciseStats(sets))
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

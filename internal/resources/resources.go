// Package resources implements MCP resource handlers for the backlog.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (backlog://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/backlog/internal/backlog"
	"github.com/HendryAvila/backlog/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// IssuesURI addresses the full document snapshot.
const IssuesURI = "backlog://issues"

// Handler manages backlog resource endpoints.
type Handler struct {
	store store.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

// IssuesResource returns the MCP resource definition for the document snapshot.
func (h *Handler) IssuesResource() mcp.Resource {
	return mcp.NewResource(
		IssuesURI,
		"Backlog Issues",
		mcp.WithResourceDescription("All issues and their tasks, exactly as persisted"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleIssues returns the current document as JSON.
func (h *Handler) HandleIssues(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	var data []byte
	err := h.store.View(ctx, func(doc *backlog.Document) error {
		var err error
		data, err = json.MarshalIndent(doc, "", "  ")
		return err
	})
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

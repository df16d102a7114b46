// Package tools implements the MCP tool handlers for the backlog.
//
// Each tool is a struct holding the session controller (injected via its
// constructor) with a Definition() for registration and a Handle() that
// decodes arguments, calls exactly one controller operation and renders a
// human-readable string. Controller failures become tool error results;
// handlers never return a Go error to the transport.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/backlog/internal/backlog"
	"github.com/HendryAvila/backlog/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// descriptionPreviewLen is how much of an issue description list_issues shows.
const descriptionPreviewLen = 30

// sessionID returns the calling client's session key. Transports without
// sessions share session.DefaultID.
func sessionID(ctx context.Context) string {
	if cs := server.ClientSessionFromContext(ctx); cs != nil {
		if id := cs.SessionID(); id != "" {
			return id
		}
	}
	return session.DefaultID
}

// errorResult renders a controller error for the caller.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err))
}

// statusDescription is the shared parameter help for status arguments.
func statusDescription(prefix string) string {
	return fmt.Sprintf("%s (%s, case-insensitive)", prefix, backlog.StatusNames())
}

// preview shortens s to n characters, marking the cut with "...".
func preview(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

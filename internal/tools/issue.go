package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/backlog/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// CreateIssueTool handles the create_issue MCP tool.
type CreateIssueTool struct {
	ctrl *session.Controller
}

// NewCreateIssueTool creates a CreateIssueTool.
func NewCreateIssueTool(ctrl *session.Controller) *CreateIssueTool {
	return &CreateIssueTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for create_issue.
func (t *CreateIssueTool) Definition() mcp.Tool {
	return mcp.NewTool("create_issue",
		mcp.WithDescription(
			"Create a new issue for task management. Fails if an issue with the same "+
				"name already exists. The new issue becomes the active issue for this session.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The name of the issue to create (case-sensitive, unique)"),
		),
		mcp.WithString("description",
			mcp.Description("A detailed description of the issue"),
		),
		mcp.WithString("status",
			mcp.Description(statusDescription("Initial status, defaults to New")),
		),
	)
}

// Handle processes the create_issue tool call.
func (t *CreateIssueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	res, err := t.ctrl.CreateIssue(ctx, sessionID(ctx), name,
		req.GetString("description", ""), req.GetString("status", ""))
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Successfully created issue: %s with status: %s", res.Name, res.Status)), nil
}

// ─── InitializeIssueTool ────────────────────────────────────────────────────

// InitializeIssueTool handles the initialize_issue MCP tool.
type InitializeIssueTool struct {
	ctrl *session.Controller
}

// NewInitializeIssueTool creates an InitializeIssueTool.
func NewInitializeIssueTool(ctrl *session.Controller) *InitializeIssueTool {
	return &InitializeIssueTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for initialize_issue.
func (t *InitializeIssueTool) Definition() mcp.Tool {
	return mcp.NewTool("initialize_issue",
		mcp.WithDescription(
			"Initialize or reset an issue. Creates the issue if it does not exist; "+
				"otherwise replaces it and DISCARDS all of its tasks. "+
				"The issue becomes the active issue for this session.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The name of the issue to initialize"),
		),
		mcp.WithString("description",
			mcp.Description("A detailed description of the issue"),
		),
		mcp.WithString("status",
			mcp.Description(statusDescription("Initial status, defaults to New")),
		),
	)
}

// Handle processes the initialize_issue tool call.
func (t *InitializeIssueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	res, err := t.ctrl.InitializeIssue(ctx, sessionID(ctx), name,
		req.GetString("description", ""), req.GetString("status", ""))
	if err != nil {
		return errorResult(err), nil
	}

	msg := fmt.Sprintf("Successfully initialized issue: %s with status: %s", res.Name, res.Status)
	if res.Replaced {
		msg += " (existing tasks were discarded)"
	}
	return mcp.NewToolResultText(msg), nil
}

// ─── ListIssuesTool ─────────────────────────────────────────────────────────

// ListIssuesTool handles the list_issues MCP tool.
type ListIssuesTool struct {
	ctrl *session.Controller
}

// NewListIssuesTool creates a ListIssuesTool.
func NewListIssuesTool(ctrl *session.Controller) *ListIssuesTool {
	return &ListIssuesTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for list_issues.
func (t *ListIssuesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_issues",
		mcp.WithDescription(
			"List all issues with their status and task count. "+
				"The issue active in this session is marked (active).",
		),
	)
}

// Handle processes the list_issues tool call.
func (t *ListIssuesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues, err := t.ctrl.ListIssues(ctx, sessionID(ctx))
	if err != nil {
		return errorResult(err), nil
	}

	if len(issues) == 0 {
		return mcp.NewToolResultText("No issues found. Use 'create_issue' to create a new issue."), nil
	}

	var b strings.Builder
	b.WriteString("Available issues:")
	for _, issue := range issues {
		marker := ""
		if issue.Active {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "\n- %s%s: Status: %s, Tasks: %d", issue.Name, marker, issue.Status, issue.TaskCount)
		if desc := preview(issue.Description, descriptionPreviewLen); desc != "" {
			fmt.Fprintf(&b, "\n  Description: %s", desc)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── SelectIssueTool ────────────────────────────────────────────────────────

// SelectIssueTool handles the select_issue MCP tool.
type SelectIssueTool struct {
	ctrl *session.Controller
}

// NewSelectIssueTool creates a SelectIssueTool.
func NewSelectIssueTool(ctrl *session.Controller) *SelectIssueTool {
	return &SelectIssueTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for select_issue.
func (t *SelectIssueTool) Definition() mcp.Tool {
	return mcp.NewTool("select_issue",
		mcp.WithDescription(
			"Select the issue that subsequent task operations (add_task, list_tasks, "+
				"update_task_status) apply to in this session.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The name of the issue to select"),
		),
	)
}

// Handle processes the select_issue tool call.
func (t *SelectIssueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	if err := t.ctrl.SelectIssue(ctx, sessionID(ctx), name); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Selected issue: %s", name)), nil
}

// ─── UpdateIssueStatusTool ──────────────────────────────────────────────────

// UpdateIssueStatusTool handles the update_issue_status MCP tool.
type UpdateIssueStatusTool struct {
	ctrl *session.Controller
}

// NewUpdateIssueStatusTool creates an UpdateIssueStatusTool.
func NewUpdateIssueStatusTool(ctrl *session.Controller) *UpdateIssueStatusTool {
	return &UpdateIssueStatusTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for update_issue_status.
func (t *UpdateIssueStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("update_issue_status",
		mcp.WithDescription("Update the status of an existing issue."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The name of the issue to update"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description(statusDescription("The new status")),
		),
	)
}

// Handle processes the update_issue_status tool call.
func (t *UpdateIssueStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	status := req.GetString("status", "")
	if strings.TrimSpace(status) == "" {
		return mcp.NewToolResultError("'status' is required"), nil
	}

	change, err := t.ctrl.UpdateIssueStatus(ctx, sessionID(ctx), name, status)
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Successfully updated issue '%s' status from '%s' to '%s'.", change.Name, change.From, change.To,
	)), nil
}

// ─── ActiveIssueTool ────────────────────────────────────────────────────────

// ActiveIssueTool handles the get_active_issue MCP tool.
type ActiveIssueTool struct {
	ctrl *session.Controller
}

// NewActiveIssueTool creates an ActiveIssueTool.
func NewActiveIssueTool(ctrl *session.Controller) *ActiveIssueTool {
	return &ActiveIssueTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for get_active_issue.
func (t *ActiveIssueTool) Definition() mcp.Tool {
	return mcp.NewTool("get_active_issue",
		mcp.WithDescription("Show which issue is selected in this session, with its status and task count."),
	)
}

// Handle processes the get_active_issue tool call.
func (t *ActiveIssueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := t.ctrl.ActiveIssue(ctx, sessionID(ctx))
	if err != nil {
		return errorResult(err), nil
	}

	msg := fmt.Sprintf("Active issue: %s\nStatus: %s\nTasks: %d", issue.Name, issue.Status, issue.TaskCount)
	if issue.Description != "" {
		msg += "\nDescription: " + issue.Description
	}
	return mcp.NewToolResultText(msg), nil
}

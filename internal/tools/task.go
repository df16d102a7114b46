package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/backlog/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// AddTaskTool handles the add_task MCP tool.
type AddTaskTool struct {
	ctrl *session.Controller
}

// NewAddTaskTool creates an AddTaskTool.
func NewAddTaskTool(ctrl *session.Controller) *AddTaskTool {
	return &AddTaskTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for add_task.
func (t *AddTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("add_task",
		mcp.WithDescription(
			"Add a task to the active issue. The task gets a unique 8-character ID "+
				"and starts with status New.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("The title of the task"),
		),
		mcp.WithString("description",
			mcp.Description("A detailed description of the task"),
		),
	)
}

// Handle processes the add_task tool call.
func (t *AddTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.ctrl.AddTask(ctx, sessionID(ctx), req.GetString("title", ""), req.GetString("description", ""))
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Successfully added task: %s (ID: %s) to issue '%s'", res.Title, res.ID, res.Issue,
	)), nil
}

// ─── ListTasksTool ──────────────────────────────────────────────────────────

// ListTasksTool handles the list_tasks MCP tool.
type ListTasksTool struct {
	ctrl *session.Controller
}

// NewListTasksTool creates a ListTasksTool.
func NewListTasksTool(ctrl *session.Controller) *ListTasksTool {
	return &ListTasksTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for list_tasks.
func (t *ListTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List the tasks of the active issue, optionally filtered by status."),
		mcp.WithString("status",
			mcp.Description(statusDescription("Only show tasks with this status")),
		),
	)
}

// Handle processes the list_tasks tool call.
func (t *ListTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listing, err := t.ctrl.ListTasks(ctx, sessionID(ctx), req.GetString("status", ""))
	if err != nil {
		return errorResult(err), nil
	}

	if len(listing.Tasks) == 0 {
		if listing.Filter != "" {
			return mcp.NewToolResultText(fmt.Sprintf(
				"No tasks found with status '%s' in issue '%s'.", listing.Filter, listing.Issue,
			)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("No tasks found in issue '%s'.", listing.Issue)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tasks for issue: %s", listing.Issue)
	if listing.Description != "" {
		fmt.Fprintf(&b, "\nIssue description: %s", listing.Description)
	}
	for _, task := range listing.Tasks {
		fmt.Fprintf(&b, "\n\nID: %s\nTitle: %s\nStatus: %s", task.ID, task.Title, task.Status)
		if task.Description != "" {
			fmt.Fprintf(&b, "\nDescription: %s", task.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── UpdateTaskStatusTool ───────────────────────────────────────────────────

// UpdateTaskStatusTool handles the update_task_status MCP tool.
type UpdateTaskStatusTool struct {
	ctrl *session.Controller
}

// NewUpdateTaskStatusTool creates an UpdateTaskStatusTool.
func NewUpdateTaskStatusTool(ctrl *session.Controller) *UpdateTaskStatusTool {
	return &UpdateTaskStatusTool{ctrl: ctrl}
}

// Definition returns the MCP tool definition for update_task_status.
func (t *UpdateTaskStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("update_task_status",
		mcp.WithDescription("Update the status of a task in the active issue."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The 8-character ID of the task"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description(statusDescription("The new status")),
		),
	)
}

// Handle processes the update_task_status tool call.
func (t *UpdateTaskStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := strings.TrimSpace(req.GetString("task_id", ""))
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}

	change, err := t.ctrl.UpdateTaskStatus(ctx, sessionID(ctx), taskID, req.GetString("status", ""))
	if err != nil {
		return errorResult(err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Successfully updated task '%s' (ID: %s) status from '%s' to '%s'.",
		change.Task.Title, change.Task.ID, change.From, change.To,
	)), nil
}

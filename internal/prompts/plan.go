// Package prompts implements MCP prompt handlers for the backlog.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanPrompt handles the backlog-plan MCP prompt.
// It guides the AI to open an issue for a piece of work and break it into tasks.
type PlanPrompt struct{}

// NewPlanPrompt creates a PlanPrompt.
func NewPlanPrompt() *PlanPrompt {
	return &PlanPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("backlog-plan",
		mcp.WithPromptDescription(
			"Plan a piece of work: create (or reset) an issue for it "+
				"and break it down into tasks.",
		),
		mcp.WithArgument("issue",
			mcp.ArgumentDescription("Name of the issue to plan"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the work should achieve"),
		),
		mcp.WithArgument("reset",
			mcp.ArgumentDescription("'true' to wipe an existing issue with the same name. Default: false"),
		),
	)
}

// Handle processes the backlog-plan prompt request.
func (p *PlanPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments

	issue := strings.TrimSpace(args["issue"])
	if issue == "" {
		return nil, fmt.Errorf("argument 'issue' is required")
	}

	goal := strings.TrimSpace(args["goal"])
	if goal == "" {
		goal = "(ask me for a one-paragraph description of the goal)"
	}

	first := fmt.Sprintf("Run `create_issue` with name='%s' and the goal as description. "+
		"If it already exists, run `select_issue` with name='%s' instead", issue, issue)
	if strings.EqualFold(strings.TrimSpace(args["reset"]), "true") {
		first = fmt.Sprintf("Run `initialize_issue` with name='%s' and the goal as description "+
			"(this discards any tasks it already has)", issue)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan issue: %s", issue),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to plan the work for issue '%s'.\n\nGoal: %s\n\n"+
						"Please:\n"+
						"1. %s\n"+
						"2. Break the goal into small, independently verifiable tasks\n"+
						"3. Run `add_task` once per task, with a short title and a description of the done criteria\n"+
						"4. Finish with `list_tasks` so I can review the plan",
					issue, goal, first,
				)),
			},
		},
	}, nil
}

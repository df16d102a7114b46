package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the backlog-status MCP prompt.
// It instructs the AI to read and summarize the current backlog.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("backlog-status",
		mcp.WithPromptDescription(
			"Summarize the backlog: every issue with its status and task count, "+
				"plus the open tasks of the issue you are working on.",
		),
	)
}

// Handle processes the backlog-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Backlog Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `list_issues` to check the state of my backlog.\n\n" +
						"Then:\n" +
						"1. Show every issue with its status and task count in a compact table\n" +
						"2. If an issue is marked (active), run `list_tasks` and list its tasks that are not Done\n" +
						"3. Point out issues marked Done that still have open tasks\n" +
						"4. Suggest what I should pick up next",
				),
			},
		},
	}, nil
}

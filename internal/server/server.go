// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the concrete store and session
// registry and injects them into the tools, prompts and resources.
// No business logic lives here, only wiring and transport lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HendryAvila/backlog/internal/config"
	"github.com/HendryAvila/backlog/internal/prompts"
	"github.com/HendryAvila/backlog/internal/resources"
	"github.com/HendryAvila/backlog/internal/session"
	"github.com/HendryAvila/backlog/internal/store"
	"github.com/HendryAvila/backlog/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the MCP server name reported to clients.
const Name = "backlog"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
//
// The returned cleanup function closes the session database and must be
// called on shutdown (typically via defer). It is always non-nil.
func New(cfg config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	// --- Create shared dependencies ---

	st := store.NewFileStore(cfg.TasksFile,
		store.WithLockTimeout(cfg.LockTimeout),
		store.WithLogger(logger),
	)

	registry, persistent, err := newRegistry(cfg, logger)
	if err != nil {
		return nil, noop, err
	}
	cleanup := func() {
		if err := registry.Close(); err != nil {
			logger.Warn("closing session registry", "error", err)
		}
	}

	ctrl := session.NewController(st, registry, logger)

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, cs server.ClientSession) {
		logger.Debug("client session registered", "session", cs.SessionID())
	})
	// Only the stdio session keeps its ID across restarts, so only its
	// persisted selection is worth keeping after the client goes away.
	if forgetOnDisconnect(cfg, persistent) {
		hooks.AddOnUnregisterSession(func(ctx context.Context, cs server.ClientSession) {
			if err := ctrl.EndSession(ctx, cs.SessionID()); err != nil {
				logger.Warn("ending session", "session", cs.SessionID(), "error", err)
			}
		})
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	registerTools(s, ctrl)

	// --- Register prompts ---

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(st)
	s.AddResource(resourceHandler.IssuesResource(), resourceHandler.HandleIssues)

	logger.Info("backlog server configured",
		"tasks_file", cfg.TasksFile,
		"session_db", cfg.SessionDB,
		"lock_timeout", cfg.LockTimeout,
	)
	return s, cleanup, nil
}

// newRegistry picks the SQLite registry when a session database is
// configured, the in-memory one otherwise. Selections older than
// cfg.SessionTTL are pruned on open.
func newRegistry(cfg config.Config, logger *slog.Logger) (session.Registry, bool, error) {
	if cfg.SessionDB == "" {
		return session.NewMemoryRegistry(), false, nil
	}
	reg, err := session.NewSQLiteRegistry(cfg.SessionDB)
	if err != nil {
		return nil, false, fmt.Errorf("opening session database: %w", err)
	}

	if cfg.SessionTTL > 0 {
		n, err := reg.Prune(context.Background(), time.Now().Add(-cfg.SessionTTL))
		if err != nil {
			_ = reg.Close()
			return nil, false, fmt.Errorf("pruning session database: %w", err)
		}
		if n > 0 {
			logger.Info("pruned stale session selections", "removed", n, "ttl", cfg.SessionTTL)
		}
	}
	return reg, true, nil
}

// forgetOnDisconnect reports whether a session's selection is dropped when
// its client disconnects.
func forgetOnDisconnect(cfg config.Config, persistent bool) bool {
	return !persistent || cfg.Transport != config.TransportStdio
}

// noop is the cleanup returned when construction fails.
func noop() {}

// registerTools registers the nine backlog tools with the server.
func registerTools(s *server.MCPServer, ctrl *session.Controller) {
	// --- Issues ---
	createIssue := tools.NewCreateIssueTool(ctrl)
	s.AddTool(createIssue.Definition(), createIssue.Handle)

	initializeIssue := tools.NewInitializeIssueTool(ctrl)
	s.AddTool(initializeIssue.Definition(), initializeIssue.Handle)

	listIssues := tools.NewListIssuesTool(ctrl)
	s.AddTool(listIssues.Definition(), listIssues.Handle)

	selectIssue := tools.NewSelectIssueTool(ctrl)
	s.AddTool(selectIssue.Definition(), selectIssue.Handle)

	activeIssue := tools.NewActiveIssueTool(ctrl)
	s.AddTool(activeIssue.Definition(), activeIssue.Handle)

	updateIssueStatus := tools.NewUpdateIssueStatusTool(ctrl)
	s.AddTool(updateIssueStatus.Definition(), updateIssueStatus.Handle)

	// --- Tasks of the active issue ---
	addTask := tools.NewAddTaskTool(ctrl)
	s.AddTool(addTask.Definition(), addTask.Handle)

	listTasks := tools.NewListTasksTool(ctrl)
	s.AddTool(listTasks.Definition(), listTasks.Handle)

	updateTaskStatus := tools.NewUpdateTaskStatusTool(ctrl)
	s.AddTool(updateTaskStatus.Definition(), updateTaskStatus.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use the backlog.
func serverInstructions() string {
	return `You have access to a shared task backlog. Other assistants and people may
be working on the same backlog at the same time; always re-read before you
summarize.

## Model

- An issue is a named unit of work with a description and a status.
- Each issue holds tasks. A task has an 8-character ID, a title, a
  description and a status.
- Valid statuses are New, InWork and Done (case-insensitive).

## Workflow

1. Run list_issues to see what exists. The issue you are working on is
   marked (active).
2. Start new work with create_issue, or pick existing work with
   select_issue. Creating an issue also selects it.
3. add_task, list_tasks and update_task_status always act on the active
   issue. Use get_active_issue if you are unsure which one that is.
4. Move tasks to InWork when you start them and to Done when they are
   finished. Mark the issue Done with update_issue_status once all of its
   tasks are done.

## Caution

initialize_issue REPLACES an existing issue and discards all of its tasks.
Only use it when the user explicitly asks to reset an issue.`
}

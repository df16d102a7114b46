// Package session implements the validated backlog operations and the
// per-session "active issue" selection they depend on.
//
// Each operation takes an explicit session ID. Operations that touch the
// document make exactly one call into the store, so they are serialized
// with every other caller of the same file. Domain failures are returned as
// the typed errors from package backlog and never reach the disk.
package session

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/HendryAvila/backlog/internal/backlog"
	"github.com/HendryAvila/backlog/internal/store"
)

// IssueResult describes an issue after create or initialize.
type IssueResult struct {
	Name     string
	Status   backlog.Status
	Replaced bool
}

// IssueSummary is one row of an issue listing.
type IssueSummary struct {
	Name        string
	Description string
	Status      backlog.Status
	TaskCount   int
	Active      bool
}

// StatusChange reports an issue status update.
type StatusChange struct {
	Name string
	From backlog.Status
	To   backlog.Status
}

// TaskListing holds the tasks of the active issue, optionally filtered.
type TaskListing struct {
	Issue       string
	Description string
	Status      backlog.Status
	Filter      backlog.Status
	Tasks       []backlog.Task
}

// TaskResult is a newly added task and the issue it was added to.
type TaskResult struct {
	backlog.Task
	Issue string
}

// TaskStatusChange reports a task status update.
type TaskStatusChange struct {
	Issue string
	Task  backlog.Task
	From  backlog.Status
	To    backlog.Status
}

// Controller exposes the backlog operations on top of a Store.
type Controller struct {
	store    store.Store
	sessions Registry
	logger   *slog.Logger
}

// NewController wires a controller. A nil registry means in-memory
// selections; a nil logger discards output.
func NewController(st store.Store, sessions Registry, logger *slog.Logger) *Controller {
	if sessions == nil {
		sessions = NewMemoryRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{store: st, sessions: sessions, logger: logger}
}

// CreateIssue adds a new issue and makes it the session's active issue.
// An empty status means New.
func (c *Controller) CreateIssue(ctx context.Context, sessionID, name, description, status string) (IssueResult, error) {
	st, err := backlog.ParseStatusOr(status, backlog.StatusNew)
	if err != nil {
		return IssueResult{}, err
	}

	err = c.store.WithDocument(ctx, func(doc *backlog.Document) error {
		if _, exists := doc.Issues[name]; exists {
			return &backlog.DuplicateIssueError{Name: name}
		}
		doc.Issues[name] = backlog.NewIssue(name, description, st)
		return nil
	})
	if err != nil {
		return IssueResult{}, err
	}

	c.logger.Info("issue created", "session", sessionID, "issue", name, "status", st)
	c.selectAfterWrite(ctx, sessionID, name)
	return IssueResult{Name: name, Status: st}, nil
}

// InitializeIssue creates the issue or resets an existing one, discarding
// its tasks, and makes it the session's active issue.
func (c *Controller) InitializeIssue(ctx context.Context, sessionID, name, description, status string) (IssueResult, error) {
	st, err := backlog.ParseStatusOr(status, backlog.StatusNew)
	if err != nil {
		return IssueResult{}, err
	}

	var replaced bool
	err = c.store.WithDocument(ctx, func(doc *backlog.Document) error {
		_, replaced = doc.Issues[name]
		doc.Issues[name] = backlog.NewIssue(name, description, st)
		return nil
	})
	if err != nil {
		return IssueResult{}, err
	}

	c.logger.Info("issue initialized", "session", sessionID, "issue", name, "status", st, "replaced", replaced)
	c.selectAfterWrite(ctx, sessionID, name)
	return IssueResult{Name: name, Status: st, Replaced: replaced}, nil
}

// ListIssues returns every issue ordered by name.
func (c *Controller) ListIssues(ctx context.Context, sessionID string) ([]IssueSummary, error) {
	active, _, err := c.sessions.Active(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var out []IssueSummary
	err = c.store.View(ctx, func(doc *backlog.Document) error {
		issues := doc.SortedIssues()
		out = make([]IssueSummary, 0, len(issues))
		for _, issue := range issues {
			out = append(out, summarize(issue, active))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SelectIssue sets the session's active issue. The selection is left
// unchanged when the issue does not exist.
func (c *Controller) SelectIssue(ctx context.Context, sessionID, name string) error {
	err := c.store.View(ctx, func(doc *backlog.Document) error {
		if doc.Issue(name) == nil {
			return &backlog.IssueNotFoundError{Name: name}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("issue selected", "session", sessionID, "issue", name)
	return c.sessions.Select(ctx, sessionID, name)
}

// ActiveIssue describes the session's currently selected issue.
func (c *Controller) ActiveIssue(ctx context.Context, sessionID string) (IssueSummary, error) {
	name, err := c.activeName(ctx, sessionID)
	if err != nil {
		return IssueSummary{}, err
	}

	var out IssueSummary
	err = c.store.View(ctx, func(doc *backlog.Document) error {
		issue := doc.Issue(name)
		if issue == nil {
			return &backlog.IssueNotFoundError{Name: name}
		}
		out = summarize(issue, name)
		return nil
	})
	return out, err
}

// UpdateIssueStatus changes an issue's status.
func (c *Controller) UpdateIssueStatus(ctx context.Context, sessionID, name, status string) (StatusChange, error) {
	st, err := backlog.ParseStatus(status)
	if err != nil {
		return StatusChange{}, err
	}

	change := StatusChange{Name: name, To: st}
	err = c.store.WithDocument(ctx, func(doc *backlog.Document) error {
		issue := doc.Issue(name)
		if issue == nil {
			return &backlog.IssueNotFoundError{Name: name}
		}
		change.From = issue.Status
		issue.Status = st
		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}

	c.logger.Info("issue status updated", "session", sessionID, "issue", name, "from", change.From, "to", st)
	return change, nil
}

// AddTask appends a New task to the active issue.
func (c *Controller) AddTask(ctx context.Context, sessionID, title, description string) (TaskResult, error) {
	name, err := c.activeName(ctx, sessionID)
	if err != nil {
		return TaskResult{}, err
	}
	if strings.TrimSpace(title) == "" {
		return TaskResult{}, &backlog.InvalidTaskTitleError{}
	}

	var task backlog.Task
	err = c.store.WithDocument(ctx, func(doc *backlog.Document) error {
		issue := doc.Issue(name)
		if issue == nil {
			return &backlog.IssueNotFoundError{Name: name}
		}
		id, err := c.store.GenerateTaskID(doc)
		if err != nil {
			return err
		}
		task = backlog.Task{ID: id, Title: title, Description: description, Status: backlog.StatusNew}
		stored := task
		issue.Tasks[id] = &stored
		return nil
	})
	if err != nil {
		return TaskResult{}, err
	}

	c.logger.Info("task added", "session", sessionID, "issue", name, "task", task.ID)
	return TaskResult{Task: task, Issue: name}, nil
}

// ListTasks returns the active issue's tasks ordered by ID. A non-empty
// status filters case-insensitively.
func (c *Controller) ListTasks(ctx context.Context, sessionID, status string) (TaskListing, error) {
	name, err := c.activeName(ctx, sessionID)
	if err != nil {
		return TaskListing{}, err
	}

	var filter backlog.Status
	if strings.TrimSpace(status) != "" {
		if filter, err = backlog.ParseStatus(status); err != nil {
			return TaskListing{}, err
		}
	}

	listing := TaskListing{Issue: name, Filter: filter}
	err = c.store.View(ctx, func(doc *backlog.Document) error {
		issue := doc.Issue(name)
		if issue == nil {
			return &backlog.IssueNotFoundError{Name: name}
		}
		listing.Description = issue.Description
		listing.Status = issue.Status
		listing.Tasks = make([]backlog.Task, 0, len(issue.Tasks))
		for _, t := range issue.SortedTasks() {
			if filter != "" && t.Status != filter {
				continue
			}
			listing.Tasks = append(listing.Tasks, *t)
		}
		return nil
	})
	if err != nil {
		return TaskListing{}, err
	}
	return listing, nil
}

// UpdateTaskStatus changes the status of a task in the active issue.
func (c *Controller) UpdateTaskStatus(ctx context.Context, sessionID, taskID, status string) (TaskStatusChange, error) {
	name, err := c.activeName(ctx, sessionID)
	if err != nil {
		return TaskStatusChange{}, err
	}
	st, err := backlog.ParseStatus(status)
	if err != nil {
		return TaskStatusChange{}, err
	}

	change := TaskStatusChange{Issue: name, To: st}
	err = c.store.WithDocument(ctx, func(doc *backlog.Document) error {
		issue := doc.Issue(name)
		if issue == nil {
			return &backlog.IssueNotFoundError{Name: name}
		}
		task, ok := issue.Tasks[taskID]
		if !ok {
			return &backlog.TaskNotFoundError{ID: taskID, Issue: name}
		}
		change.From = task.Status
		task.Status = st
		task.ID = taskID
		change.Task = *task
		return nil
	})
	if err != nil {
		return TaskStatusChange{}, err
	}

	c.logger.Info("task status updated", "session", sessionID, "issue", name, "task", taskID, "from", change.From, "to", st)
	return change, nil
}

// EndSession drops the session's selection.
func (c *Controller) EndSession(ctx context.Context, sessionID string) error {
	return c.sessions.Forget(ctx, sessionID)
}

// selectAfterWrite makes name the session's active issue once the issue is
// already on disk. The write has succeeded at that point, so a registry
// failure is logged instead of reported; the caller can still select_issue.
func (c *Controller) selectAfterWrite(ctx context.Context, sessionID, name string) {
	if err := c.sessions.Select(ctx, sessionID, name); err != nil {
		c.logger.Warn("issue saved but not selected", "session", sessionID, "issue", name, "error", err)
	}
}

func (c *Controller) activeName(ctx context.Context, sessionID string) (string, error) {
	name, ok, err := c.sessions.Active(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !ok || name == "" {
		return "", &backlog.NoActiveIssueError{}
	}
	return name, nil
}

func summarize(issue *backlog.Issue, active string) IssueSummary {
	return IssueSummary{
		Name:        issue.Name,
		Description: issue.Description,
		Status:      issue.Status,
		TaskCount:   len(issue.Tasks),
		Active:      issue.Name == active,
	}
}

package backlog

import (
	"fmt"
)

// DuplicateIssueError is returned when creating an issue whose name is taken.
type DuplicateIssueError struct {
	Name string
}

func (e *DuplicateIssueError) Error() string {
	return fmt.Sprintf("issue '%s' already exists", e.Name)
}

// IssueNotFoundError is returned when a named issue is absent from the document.
type IssueNotFoundError struct {
	Name string
}

func (e *IssueNotFoundError) Error() string {
	return fmt.Sprintf("issue '%s' not found", e.Name)
}

// NoActiveIssueError is returned by task operations when the session has
// not selected an issue.
type NoActiveIssueError struct{}

func (e *NoActiveIssueError) Error() string {
	return "no active issue, select one with 'select_issue' first"
}

// InvalidStatusError is returned for a status outside New, InWork, Done.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status '%s', valid values are: %s", e.Value, StatusNames())
}

// InvalidTaskTitleError is returned when a task title is blank.
type InvalidTaskTitleError struct{}

func (e *InvalidTaskTitleError) Error() string {
	return "task title must not be empty"
}

// TaskNotFoundError is returned when a task ID is absent from the active issue.
type TaskNotFoundError struct {
	ID    string
	Issue string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task with ID '%s' not found in issue '%s'", e.ID, e.Issue)
}

// CorruptDataError is returned when the backing file exists but cannot be parsed.
type CorruptDataError struct {
	Path string
	Err  error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt backlog file %s: %v", e.Path, e.Err)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

// StorageIOError wraps a filesystem failure (read, write, lock) on the backing file.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

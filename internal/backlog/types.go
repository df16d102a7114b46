// Package backlog defines the data model shared by the document store and
// the session controller: issues, tasks, their status enum and the
// persisted document that holds them.
//
// The JSON tags here are the on-disk format. Issue names and task IDs are
// map keys in the file, so they are not serialized inside the values.
package backlog

import (
	"fmt"
	"sort"
	"strings"
)

// --- Status enum ---

// Status is the lifecycle state shared by issues and tasks.
type Status string

const (
	StatusNew    Status = "New"
	StatusInWork Status = "InWork"
	StatusDone   Status = "Done"
)

// Statuses lists every recognized status in canonical casing.
var Statuses = []Status{StatusNew, StatusInWork, StatusDone}

// ParseStatus matches s case-insensitively against the recognized statuses
// and returns the canonical value. Surrounding whitespace is ignored.
func ParseStatus(s string) (Status, error) {
	trimmed := strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(trimmed, string(st)) {
			return st, nil
		}
	}
	return "", &InvalidStatusError{Value: s}
}

// ParseStatusOr behaves like ParseStatus but returns def for an empty input.
func ParseStatusOr(s string, def Status) (Status, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return ParseStatus(s)
}

// StatusNames returns the recognized statuses joined for messages.
func StatusNames() string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

// --- Core data structures ---

// TaskIDLength is the length of store-generated task identifiers.
const TaskIDLength = 8

// Task is a unit of work owned by exactly one issue.
type Task struct {
	ID          string `json:"-" yaml:"-"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Status      Status `json:"status" yaml:"status"`
}

// Issue is a named unit of work holding zero or more tasks.
type Issue struct {
	Name        string           `json:"-" yaml:"-"`
	Description string           `json:"description" yaml:"description"`
	Status      Status           `json:"status" yaml:"status"`
	Tasks       map[string]*Task `json:"tasks" yaml:"tasks"`
}

// NewIssue creates an issue with an empty task map.
func NewIssue(name, description string, status Status) *Issue {
	return &Issue{
		Name:        name,
		Description: description,
		Status:      status,
		Tasks:       make(map[string]*Task),
	}
}

// SortedTasks returns the issue's tasks ordered by ID.
func (i *Issue) SortedTasks() []*Task {
	ids := make([]string, 0, len(i.Tasks))
	for id := range i.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		t := i.Tasks[id]
		t.ID = id
		tasks = append(tasks, t)
	}
	return tasks
}

// Document is the complete persisted state: every issue keyed by name.
type Document struct {
	Issues map[string]*Issue `json:"issues" yaml:"issues"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Issues: make(map[string]*Issue)}
}

// Issue returns the named issue, or nil.
func (d *Document) Issue(name string) *Issue {
	issue, ok := d.Issues[name]
	if !ok {
		return nil
	}
	issue.Name = name
	return issue
}

// SortedIssues returns all issues ordered by name.
func (d *Document) SortedIssues() []*Issue {
	names := make([]string, 0, len(d.Issues))
	for name := range d.Issues {
		names = append(names, name)
	}
	sort.Strings(names)

	issues := make([]*Issue, 0, len(names))
	for _, name := range names {
		issues = append(issues, d.Issue(name))
	}
	return issues
}

// HasTask reports whether any issue already owns a task with the given ID.
func (d *Document) HasTask(id string) bool {
	for _, issue := range d.Issues {
		if _, ok := issue.Tasks[id]; ok {
			return true
		}
	}
	return false
}

// Normalize fills in defaults for fields older files may omit and
// canonicalizes status casing. It returns an InvalidStatusError for a
// status that cannot be recognized.
func (d *Document) Normalize() error {
	if d.Issues == nil {
		d.Issues = make(map[string]*Issue)
	}
	for name, issue := range d.Issues {
		if issue == nil {
			issue = NewIssue(name, "", StatusNew)
			d.Issues[name] = issue
		}
		issue.Name = name
		st, err := ParseStatusOr(string(issue.Status), StatusNew)
		if err != nil {
			return fmt.Errorf("issue %q: unknown status %q", name, issue.Status)
		}
		issue.Status = st
		if issue.Tasks == nil {
			issue.Tasks = make(map[string]*Task)
		}
		for id, task := range issue.Tasks {
			if task == nil {
				task = &Task{}
				issue.Tasks[id] = task
			}
			task.ID = id
			st, err := ParseStatusOr(string(task.Status), StatusNew)
			if err != nil {
				return fmt.Errorf("issue %q task %q: unknown status %q", name, id, task.Status)
			}
			task.Status = st
		}
	}
	return nil
}

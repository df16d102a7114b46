package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/HendryAvila/backlog/internal/backlog"
	"github.com/HendryAvila/backlog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sid = "test-session"

// newTestController creates a controller backed by a temp tasks file.
func newTestController(t *testing.T) (*Controller, *store.FileStore) {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
	return NewController(st, NewMemoryRegistry(), nil), st
}

// --- create_issue ---

func TestCreateIssue_DefaultsToNew(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	res, err := c.CreateIssue(ctx, sid, "login", "auth work", "")
	require.NoError(t, err)
	assert.Equal(t, backlog.StatusNew, res.Status)

	doc, err := st.Load()
	require.NoError(t, err)
	issue := doc.Issue("login")
	require.NotNil(t, issue)
	assert.Equal(t, "auth work", issue.Description)
	assert.Empty(t, issue.Tasks)
}

func TestCreateIssue_DuplicateKeepsFirst(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "login", "first", "InWork")
	require.NoError(t, err)

	_, err = c.CreateIssue(ctx, sid, "login", "second", "Done")
	var dup *backlog.DuplicateIssueError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "login", dup.Name)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Issue("login").Description)
	assert.Equal(t, backlog.StatusInWork, doc.Issue("login").Status)
}

func TestCreateIssue_NormalizesStatus(t *testing.T) {
	c, _ := newTestController(t)

	res, err := c.CreateIssue(context.Background(), sid, "x", "", "inwork")
	require.NoError(t, err)
	assert.Equal(t, backlog.StatusInWork, res.Status)
}

func TestCreateIssue_InvalidStatusDoesNotWrite(t *testing.T) {
	c, st := newTestController(t)

	_, err := c.CreateIssue(context.Background(), sid, "x", "", "Blocked")
	var invalid *backlog.InvalidStatusError
	require.ErrorAs(t, err, &invalid)

	_, statErr := os.Stat(st.Path())
	assert.True(t, os.IsNotExist(statErr), "no file should be written")
}

func TestCreateIssue_SelectsIssue(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "login", "", "")
	require.NoError(t, err)

	active, err := c.ActiveIssue(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "login", active.Name)
}

// --- initialize_issue ---

func TestInitializeIssue_WipesTasks(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	res, err := c.InitializeIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)
	assert.False(t, res.Replaced)

	_, err = c.AddTask(ctx, sid, "t1", "")
	require.NoError(t, err)

	res, err = c.InitializeIssue(ctx, sid, "x", "reset", "Done")
	require.NoError(t, err)
	assert.True(t, res.Replaced)

	doc, err := st.Load()
	require.NoError(t, err)
	issue := doc.Issue("x")
	assert.Empty(t, issue.Tasks)
	assert.Equal(t, "reset", issue.Description)
	assert.Equal(t, backlog.StatusDone, issue.Status)
}

func TestInitializeIssue_LeavesOtherIssues(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "keep", "", "")
	require.NoError(t, err)
	_, err = c.AddTask(ctx, sid, "keep me", "")
	require.NoError(t, err)

	_, err = c.InitializeIssue(ctx, sid, "other", "", "")
	require.NoError(t, err)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Issue("keep").Tasks, 1)
}

// --- list_issues ---

func TestListIssues_SummariesAndActiveMarker(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "billing", "invoices", "")
	require.NoError(t, err)
	_, err = c.CreateIssue(ctx, sid, "api", "", "Done")
	require.NoError(t, err)
	_, err = c.AddTask(ctx, sid, "one", "")
	require.NoError(t, err)
	_, err = c.AddTask(ctx, sid, "two", "")
	require.NoError(t, err)

	issues, err := c.ListIssues(ctx, sid)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, IssueSummary{Name: "api", Status: backlog.StatusDone, TaskCount: 2, Active: true}, issues[0])
	assert.Equal(t, IssueSummary{Name: "billing", Description: "invoices", Status: backlog.StatusNew}, issues[1])
}

func TestListIssues_Idempotent(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		_, err := c.CreateIssue(ctx, sid, name, "", "")
		require.NoError(t, err)
	}

	first, err := c.ListIssues(ctx, sid)
	require.NoError(t, err)
	second, err := c.ListIssues(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListIssues_Empty(t *testing.T) {
	c, _ := newTestController(t)

	issues, err := c.ListIssues(context.Background(), sid)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

// --- select_issue ---

func TestSelectIssue_UnknownLeavesSelection(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "login", "", "")
	require.NoError(t, err)

	err = c.SelectIssue(ctx, sid, "nope")
	var notFound *backlog.IssueNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.Name)

	active, err := c.ActiveIssue(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "login", active.Name)
}

func TestSelectIssue_UnknownWithNoSelection(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	err := c.SelectIssue(ctx, sid, "ghost")
	var notFound *backlog.IssueNotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = c.ActiveIssue(ctx, sid)
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)
}

func TestSelectIssue_IsCaseSensitive(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "Login", "", "")
	require.NoError(t, err)

	var notFound *backlog.IssueNotFoundError
	assert.ErrorAs(t, c.SelectIssue(ctx, sid, "login"), &notFound)
}

func TestSelectIssue_PerSession(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, "alice", "a", "", "")
	require.NoError(t, err)
	_, err = c.CreateIssue(ctx, "alice", "b", "", "")
	require.NoError(t, err)

	require.NoError(t, c.SelectIssue(ctx, "alice", "a"))
	require.NoError(t, c.SelectIssue(ctx, "bob", "b"))

	task, err := c.AddTask(ctx, "bob", "for b", "")
	require.NoError(t, err)

	aliceTasks, err := c.ListTasks(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "a", aliceTasks.Issue)
	assert.Empty(t, aliceTasks.Tasks)

	bobTasks, err := c.ListTasks(ctx, "bob", "")
	require.NoError(t, err)
	require.Len(t, bobTasks.Tasks, 1)
	assert.Equal(t, task.ID, bobTasks.Tasks[0].ID)

	_, err = c.AddTask(ctx, "carol", "x", "")
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)
}

// --- update_issue_status ---

func TestUpdateIssueStatus(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)

	change, err := c.UpdateIssueStatus(ctx, sid, "x", "DONE")
	require.NoError(t, err)
	assert.Equal(t, StatusChange{Name: "x", From: backlog.StatusNew, To: backlog.StatusDone}, change)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, backlog.StatusDone, doc.Issue("x").Status)
}

func TestUpdateIssueStatus_Errors(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)

	_, err = c.UpdateIssueStatus(ctx, sid, "missing", "Done")
	var notFound *backlog.IssueNotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = c.UpdateIssueStatus(ctx, sid, "x", "finished")
	var invalid *backlog.InvalidStatusError
	assert.ErrorAs(t, err, &invalid)
}

// --- add_task ---

func TestAddTask_NoActiveIssue(t *testing.T) {
	c, _ := newTestController(t)

	_, err := c.AddTask(context.Background(), sid, "x", "")
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)
}

func TestAddTask_NoActiveIssueReportedBeforeBlankTitle(t *testing.T) {
	c, _ := newTestController(t)

	_, err := c.AddTask(context.Background(), sid, "", "")
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)

	var invalid *backlog.InvalidTaskTitleError
	assert.False(t, errors.As(err, &invalid))
}

func TestAddTask_BlankTitle(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)

	for _, title := range []string{"", "   "} {
		_, err = c.AddTask(ctx, sid, title, "")
		var invalid *backlog.InvalidTaskTitleError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestAddTask_ActiveIssueDeletedBehindSession(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "gone", "", "")
	require.NoError(t, err)

	// Another process rewrites the file without the issue.
	require.NoError(t, st.Save(backlog.NewDocument()))

	_, err = c.AddTask(ctx, sid, "x", "")
	var notFound *backlog.IssueNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "gone", notFound.Name)
}

func TestAddTask_ConcurrentCallsProduceDistinctIDs(t *testing.T) {
	c, st := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := c.AddTask(ctx, sid, fmt.Sprintf("task %d", i), "")
			if assert.NoError(t, err) {
				ids <- task.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Issue("x").Tasks, n)
}

// --- list_tasks ---

func TestListTasks_NoActiveIssue(t *testing.T) {
	c, _ := newTestController(t)

	_, err := c.ListTasks(context.Background(), sid, "")
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)
}

func TestListTasks_InvalidFilter(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)

	_, err = c.ListTasks(ctx, sid, "blocked")
	var invalid *backlog.InvalidStatusError
	assert.ErrorAs(t, err, &invalid)
}

func TestListTasks_FilterIsCaseInsensitive(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "issue desc", "")
	require.NoError(t, err)
	first, err := c.AddTask(ctx, sid, "one", "")
	require.NoError(t, err)
	_, err = c.AddTask(ctx, sid, "two", "")
	require.NoError(t, err)
	_, err = c.UpdateTaskStatus(ctx, sid, first.ID, "Done")
	require.NoError(t, err)

	listing, err := c.ListTasks(ctx, sid, "done")
	require.NoError(t, err)
	assert.Equal(t, backlog.StatusDone, listing.Filter)
	assert.Equal(t, "issue desc", listing.Description)
	require.Len(t, listing.Tasks, 1)
	assert.Equal(t, first.ID, listing.Tasks[0].ID)

	all, err := c.ListTasks(ctx, sid, "")
	require.NoError(t, err)
	assert.Len(t, all.Tasks, 2)

	again, err := c.ListTasks(ctx, sid, "")
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

// --- update_task_status ---

func TestUpdateTaskStatus_Normalizes(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)
	task, err := c.AddTask(ctx, sid, "t", "")
	require.NoError(t, err)

	for _, input := range []string{"done", "DONE", "Done"} {
		change, err := c.UpdateTaskStatus(ctx, sid, task.ID, input)
		require.NoError(t, err, input)
		assert.Equal(t, backlog.StatusDone, change.To)
		assert.Equal(t, backlog.StatusDone, change.Task.Status)
	}

	_, err = c.UpdateTaskStatus(ctx, sid, task.ID, "finished")
	var invalid *backlog.InvalidStatusError
	assert.ErrorAs(t, err, &invalid)
}

func TestUpdateTaskStatus_Errors(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.UpdateTaskStatus(ctx, sid, "abcd1234", "Done")
	var noActive *backlog.NoActiveIssueError
	require.ErrorAs(t, err, &noActive)

	_, err = c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)

	_, err = c.UpdateTaskStatus(ctx, sid, "abcd1234", "Done")
	var notFound *backlog.TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "abcd1234", notFound.ID)
	assert.Equal(t, "x", notFound.Issue)
}

func TestUpdateTaskStatus_OnlyActiveIssueTasks(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "a", "", "")
	require.NoError(t, err)
	task, err := c.AddTask(ctx, sid, "in a", "")
	require.NoError(t, err)

	_, err = c.CreateIssue(ctx, sid, "b", "", "")
	require.NoError(t, err)

	_, err = c.UpdateTaskStatus(ctx, sid, task.ID, "Done")
	var notFound *backlog.TaskNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// --- Storage failures ---

func TestCorruptFileSurfacesAsCorruptData(t *testing.T) {
	c, st := newTestController(t)
	require.NoError(t, os.WriteFile(st.Path(), []byte("garbage"), 0o644))

	_, err := c.ListIssues(context.Background(), sid)
	var corrupt *backlog.CorruptDataError
	assert.ErrorAs(t, err, &corrupt)
}

// --- End to end ---

func TestScenario_LoginFlow(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "login", "auth work", "")
	require.NoError(t, err)
	require.NoError(t, c.SelectIssue(ctx, sid, "login"))

	task, err := c.AddTask(ctx, sid, "implement oauth", "")
	require.NoError(t, err)
	assert.Len(t, task.ID, backlog.TaskIDLength)

	listing, err := c.ListTasks(ctx, sid, "")
	require.NoError(t, err)
	require.Len(t, listing.Tasks, 1)
	assert.Equal(t, backlog.StatusNew, listing.Tasks[0].Status)

	_, err = c.UpdateTaskStatus(ctx, sid, task.ID, "InWork")
	require.NoError(t, err)

	inWork, err := c.ListTasks(ctx, sid, "InWork")
	require.NoError(t, err)
	require.Len(t, inWork.Tasks, 1)
	assert.Equal(t, task.ID, inWork.Tasks[0].ID)
	assert.Equal(t, "implement oauth", inWork.Tasks[0].Title)
}

func TestEndSession_ForgetsSelection(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateIssue(ctx, sid, "x", "", "")
	require.NoError(t, err)
	require.NoError(t, c.EndSession(ctx, sid))

	_, err = c.AddTask(ctx, sid, "t", "")
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)
}

// --- registry failures after a successful write ---

// failingRegistry accepts lookups but cannot record selections.
type failingRegistry struct {
	*MemoryRegistry
}

func (failingRegistry) Select(context.Context, string, string) error {
	return errors.New("database is locked")
}

func TestCreateIssue_SelectionFailureKeepsResult(t *testing.T) {
	st := store.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
	c := NewController(st, failingRegistry{NewMemoryRegistry()}, nil)
	ctx := context.Background()

	res, err := c.CreateIssue(ctx, sid, "login", "", "")
	require.NoError(t, err)
	assert.Equal(t, "login", res.Name)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.NotNil(t, doc.Issue("login"))

	// The issue exists, so a retry is a duplicate rather than a second attempt.
	_, err = c.CreateIssue(ctx, sid, "login", "", "")
	var dup *backlog.DuplicateIssueError
	assert.ErrorAs(t, err, &dup)

	// Not selected: task operations still ask for a selection.
	_, err = c.AddTask(ctx, sid, "t", "")
	var noActive *backlog.NoActiveIssueError
	assert.ErrorAs(t, err, &noActive)
}

func TestInitializeIssue_SelectionFailureKeepsResult(t *testing.T) {
	st := store.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
	c := NewController(st, failingRegistry{NewMemoryRegistry()}, nil)

	res, err := c.InitializeIssue(context.Background(), sid, "login", "", "Done")
	require.NoError(t, err)
	assert.Equal(t, backlog.StatusDone, res.Status)
}

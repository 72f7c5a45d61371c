package board_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/validate"
)

func newDetail(e *env) *board.Detail {
	return board.NewDetail(e.board, e.client, e.rec, nil)
}

func validForm(assignee string) validate.TaskForm {
	return validate.TaskForm{
		Title:       "Write docs",
		Description: "Cover the REST contract",
		Priority:    string(models.PriorityMedium),
		Status:      string(models.StatusBacklog),
		AssigneeID:  assignee,
		DueDate:     time.Now().AddDate(0, 0, 7).Format(models.DateLayout),
	}
}

func TestDetail_OpenForCreateFetchesNothing(t *testing.T) {
	e := newEnv(t)
	d := newDetail(e)

	d.OpenForCreate()

	v := d.View()
	assert.True(t, v.Open)
	assert.True(t, v.Creating())
	assert.Nil(t, v.Task)
	assert.Empty(t, e.srv.Calls())
}

func TestDetail_OpenForEditFetchesComments(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T", Status: models.StatusBacklog})
	e.srv.AddComment(models.Comment{TaskID: task.ID, Author: models.UserRef{ID: e.user.ID}, Body: "hello"})
	d := newDetail(e)

	d.OpenForEdit(context.Background(), task)

	v := d.View()
	require.NotNil(t, v.Task)
	assert.Equal(t, task.ID, v.Task.ID)
	require.Len(t, v.Comments, 1)
	assert.Equal(t, "hello", v.Comments[0].Body)
	assert.Equal(t, "Ann", v.Comments[0].Author.Name)
	assert.Equal(t, 1, e.srv.CallsTo(http.MethodGet, "/comments/get-comment-for-task/:taskId"))
}

func TestDetail_AddCommentBlankOrWithoutTaskMakesNoCalls(t *testing.T) {
	e := newEnv(t)
	d := newDetail(e)
	ctx := context.Background()

	require.NoError(t, d.AddComment(ctx, "hi"))
	assert.Empty(t, e.srv.Calls())

	task := e.srv.AddTask(models.Task{Title: "T"})
	d.OpenForEdit(ctx, task)
	e.srv.ResetCalls()

	for _, body := range []string{"", "   ", "\n\t"} {
		require.NoError(t, d.AddComment(ctx, body))
	}
	assert.Empty(t, e.srv.Calls())
	assert.Empty(t, e.rec.All())
}

func TestDetail_AddCommentRefetchesList(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T"})
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, task)

	require.NoError(t, d.AddComment(ctx, "  first  "))

	comments := d.View().Comments
	require.Len(t, comments, 1)
	assert.Equal(t, "first", comments[0].Body)
	assert.Equal(t, 2, e.srv.CallsTo(http.MethodGet, "/comments/get-comment-for-task/:taskId"))
	assert.Equal(t, "Comment added successfully", e.rec.All()[0].Message)
}

func TestDetail_EditAndDeleteComment(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T"})
	c := e.srv.AddComment(models.Comment{TaskID: task.ID, Author: models.UserRef{ID: e.user.ID}, Body: "draft"})
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, task)

	require.NoError(t, d.EditComment(ctx, c.ID, "final"))
	require.Len(t, d.View().Comments, 1)
	assert.Equal(t, "final", d.View().Comments[0].Body)

	require.NoError(t, d.DeleteComment(ctx, c.ID))
	assert.Empty(t, d.View().Comments)
	assert.Equal(t, "Comment deleted successfully", e.rec.All()[1].Message)
}

func TestDetail_DeleteCommentByOtherUserFails(t *testing.T) {
	e := newEnv(t)
	other := e.srv.AddUser(models.User{Email: "b@x.com", Name: "Bo"}, "secret1")
	task := e.srv.AddTask(models.Task{Title: "T"})
	c := e.srv.AddComment(models.Comment{TaskID: task.ID, Author: models.UserRef{ID: other.ID}, Body: "mine"})
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, task)

	comment := d.View().Comments[0]
	assert.False(t, board.CanDeleteComment(comment, e.user.ID))
	assert.True(t, board.CanDeleteComment(comment, other.ID))

	// the backend is the authority even when the action is offered anyway
	err := d.DeleteComment(ctx, c.ID)
	require.Error(t, err)
	assert.Len(t, d.View().Comments, 1)
	assert.True(t, d.IsOpen())
	assert.Equal(t, "Failed to delete comment", e.rec.All()[0].Message)
}

func TestDetail_SaveCreatesAndCloses(t *testing.T) {
	e := newEnv(t)
	d := newDetail(e)
	d.OpenForCreate()

	require.NoError(t, d.Save(context.Background(), validForm(e.user.ID)))

	assert.False(t, d.IsOpen())
	backlog := e.board.TasksByColumn(models.StatusBacklog)
	require.Len(t, backlog, 1)
	assert.Equal(t, "Write docs", backlog[0].Title)
}

func TestDetail_SaveUpdatesSelectedTask(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "Old", Priority: models.PriorityLow, Status: models.StatusBacklog})
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, task)

	form := validForm(e.user.ID)
	form.Title = "New"
	form.Status = string(models.StatusInProgress)
	require.NoError(t, d.Save(ctx, form))

	assert.False(t, d.IsOpen())
	require.Len(t, e.srv.Tasks(), 1)
	assert.Equal(t, "New", e.srv.Tasks()[0].Title)
	assert.Equal(t, 1, e.srv.CallsTo(http.MethodPut, "/tasks/update-task/:id"))
	assert.Equal(t, "Task updated successfully", e.rec.All()[0].Message)
}

func TestDetail_SaveInvalidStaysOpenWithoutNetwork(t *testing.T) {
	e := newEnv(t)
	d := newDetail(e)
	d.OpenForCreate()

	form := validForm(e.user.ID)
	form.Title = "ab"
	err := d.Save(context.Background(), form)

	var verrs validate.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "title")
	assert.True(t, d.IsOpen())
	assert.Empty(t, e.srv.Calls())
}

func TestDetail_SaveFailureKeepsEditorOpen(t *testing.T) {
	e := newEnv(t)
	e.srv.Fail(http.MethodPost, "/tasks/create-task", http.StatusInternalServerError)
	d := newDetail(e)
	d.OpenForCreate()

	err := d.Save(context.Background(), validForm(e.user.ID))
	require.Error(t, err)
	assert.True(t, d.IsOpen())
	assert.Equal(t, []board.Notification{{Level: board.Failure, Message: "Failed to save task"}}, e.rec.All())
}

func TestDetail_SaveOnVanishedTaskCloses(t *testing.T) {
	e := newEnv(t)
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, models.Task{ID: "gone", Title: "Ghost"})

	err := d.Save(ctx, validForm(e.user.ID))
	require.Error(t, err)
	assert.False(t, d.IsOpen())
}

func TestDetail_DeleteClosesAndReloads(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T", Status: models.StatusReview})
	d := newDetail(e)
	ctx := context.Background()
	e.board.Load(ctx, models.DefaultFilters())
	d.OpenForEdit(ctx, task)

	require.NoError(t, d.Delete(ctx))

	assert.False(t, d.IsOpen())
	assert.Empty(t, e.board.Tasks())
	assert.Equal(t, "Task deleted successfully", e.rec.All()[0].Message)
}

func TestDetail_DeleteNeedsSelection(t *testing.T) {
	e := newEnv(t)
	d := newDetail(e)
	d.OpenForCreate()
	assert.ErrorIs(t, d.Delete(context.Background()), board.ErrNoTask)
	assert.Empty(t, e.srv.Calls())
}

func TestDetail_BoardDeleteClosesOnlyMatchingTask(t *testing.T) {
	e := newEnv(t)
	shown := e.srv.AddTask(models.Task{Title: "shown"})
	other := e.srv.AddTask(models.Task{Title: "other"})
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, shown)

	require.NoError(t, e.board.DeleteTask(ctx, other.ID))
	assert.True(t, d.IsOpen())

	require.NoError(t, e.board.DeleteTask(ctx, shown.ID))
	assert.False(t, d.IsOpen())
}

func TestDetail_CloseKeepsNothingSelected(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T"})
	d := newDetail(e)
	ctx := context.Background()
	d.OpenForEdit(ctx, task)

	d.Close()
	v := d.View()
	assert.False(t, v.Open)
	assert.Nil(t, v.Task)

	e.srv.ResetCalls()
	require.NoError(t, d.AddComment(ctx, "after close"))
	assert.Empty(t, e.srv.Calls())
}

func TestCanDeleteComment_EmptyViewer(t *testing.T) {
	assert.False(t, board.CanDeleteComment(models.Comment{}, ""))
}

func TestDetail_SelectIsImmediateAndFetchesNothing(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T", Status: models.StatusBacklog})
	e.srv.AddComment(models.Comment{TaskID: task.ID, Author: models.UserRef{ID: e.user.ID}, Body: "hello"})
	d := newDetail(e)
	ctx := context.Background()

	d.Select(task)

	v := d.View()
	assert.True(t, v.Open)
	assert.False(t, v.Creating())
	require.NotNil(t, v.Task)
	assert.Equal(t, task.ID, v.Task.ID)
	assert.Empty(t, v.Comments)
	assert.Empty(t, e.srv.Calls())

	require.NoError(t, d.Save(ctx, validForm(e.user.ID)))
	assert.Equal(t, 1, e.srv.CallsTo(http.MethodPut, "/tasks/update-task/:id"))
	assert.Zero(t, e.srv.CallsTo(http.MethodPost, "/tasks/create-task"))
}

func TestDetail_UnauthorizedCommentsAreNotNotified(t *testing.T) {
	e := newEnv(t)
	task := e.srv.AddTask(models.Task{Title: "T", Status: models.StatusBacklog})
	e.srv.Fail(http.MethodGet, "/comments/get-comment-for-task/:taskId", http.StatusUnauthorized)
	e.srv.Fail(http.MethodPost, "/comments/create-comment/:taskId", http.StatusUnauthorized)
	d := newDetail(e)
	ctx := context.Background()

	d.OpenForEdit(ctx, task)
	assert.True(t, d.IsOpen())
	assert.Empty(t, d.View().Comments)

	assert.Error(t, d.AddComment(ctx, "hi"))
	assert.Empty(t, e.rec.All())
}

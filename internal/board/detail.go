package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/validate"
)

// ErrNoTask is returned by operations that need a selected task
var ErrNoTask = errors.New("no task selected")

// CommentBackend is the comment half of the REST client. *api.Client satisfies it.
type CommentBackend interface {
	ListComments(ctx context.Context, taskID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, taskID, body string) error
	UpdateComment(ctx context.Context, id, body string) error
	DeleteComment(ctx context.Context, id string) error
}

// DetailView is a copy of the editor state for rendering
type DetailView struct {
	Open     bool
	Task     *models.Task // nil in create mode
	Comments []models.Comment
}

// Creating reports whether the editor is open without a task
func (v DetailView) Creating() bool { return v.Open && v.Task == nil }

// Detail is the task editor: the selected task (none means create mode),
// whether it is open, and the selected task's comments.
type Detail struct {
	board    *Controller
	comments CommentBackend
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	open     bool
	task     *models.Task
	list     []models.Comment
	fetchSeq uint64
}

// NewDetail creates a closed editor bound to the board. It closes itself
// when the board deletes the task it shows.
func NewDetail(board *Controller, comments CommentBackend, notifier Notifier, logger *zap.Logger) *Detail {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	d := &Detail{
		board:    board,
		comments: comments,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	board.OnTaskDeleted(d.closeIfShowing)
	return d
}

func (d *Detail) closeIfShowing(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task != nil && d.task.ID == id {
		d.closeLocked()
	}
}

// View returns the current editor state
func (d *Detail) View() DetailView {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := DetailView{Open: d.open, Comments: append([]models.Comment(nil), d.list...)}
	if d.task != nil {
		t := *d.task
		v.Task = &t
	}
	return v
}

// IsOpen reports whether the editor is showing
func (d *Detail) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// OpenForEdit selects a task, opens the editor and fetches its comments
func (d *Detail) OpenForEdit(ctx context.Context, task models.Task) {
	d.Select(task)
	d.RefreshComments(ctx)
}

// Select opens the editor on task without fetching anything. Follow it with
// RefreshComments.
func (d *Detail) Select(task models.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.task = &task
	d.open = true
	d.list = nil
}

// OpenForCreate opens an empty editor. There is no task, so nothing is fetched.
func (d *Detail) OpenForCreate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.task = nil
	d.open = true
}

// Close hides the editor and forgets the selection. Cached comments are
// dropped on the next open.
func (d *Detail) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Detail) closeLocked() {
	d.task = nil
	d.open = false
}

func (d *Detail) selected() (models.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task == nil {
		return models.Task{}, false
	}
	return *d.task, true
}

// RefreshComments replaces the comment list with the server's. A response
// for a task that is no longer selected is dropped.
func (d *Detail) RefreshComments(ctx context.Context) {
	d.mu.Lock()
	if d.task == nil {
		d.mu.Unlock()
		return
	}
	d.fetchSeq++
	seq, taskID := d.fetchSeq, d.task.ID
	d.mu.Unlock()

	list, err := d.comments.ListComments(ctx, taskID)
	if err != nil {
		d.fail(taskID, "load comments", "Failed to load comments", err)
		d.closeIfGone(taskID, err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.fetchSeq || d.task == nil || d.task.ID != taskID {
		return
	}
	d.list = list
}

// closeIfGone closes the editor when the backend no longer knows its task
func (d *Detail) closeIfGone(taskID string, err error) {
	if errors.Is(err, api.ErrNotFound) {
		d.closeIfShowing(taskID)
	}
}

// Save validates the form, then updates the selected task or creates a new
// one. On success the editor closes and the board has been reloaded. On
// failure the editor stays open so the input can be corrected.
func (d *Detail) Save(ctx context.Context, form validate.TaskForm) error {
	in, err := validate.Task(form, d.now())
	if err != nil {
		return err
	}
	task, editing := d.selected()
	if editing {
		err = d.board.UpdateTask(ctx, task.ID, in)
	} else {
		err = d.board.CreateTask(ctx, in)
	}
	if err != nil {
		if editing {
			d.closeIfGone(task.ID, err)
		}
		return err
	}
	d.Close()
	return nil
}

// Delete removes the selected task. The board closes the editor once the
// backend confirms.
func (d *Detail) Delete(ctx context.Context) error {
	task, ok := d.selected()
	if !ok {
		return ErrNoTask
	}
	if err := d.board.DeleteTask(ctx, task.ID); err != nil {
		d.closeIfGone(task.ID, err)
		return err
	}
	return nil
}

// AddComment posts a comment on the selected task and refetches the list.
// A blank body or no selection does nothing.
func (d *Detail) AddComment(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	task, ok := d.selected()
	if body == "" || !ok {
		return nil
	}
	if err := d.comments.CreateComment(ctx, task.ID, body); err != nil {
		d.fail(task.ID, "add comment", "Failed to add comment", err)
		d.closeIfGone(task.ID, err)
		return err
	}
	d.notifier.Notify(Notification{Level: Success, Message: "Comment added successfully"})
	d.RefreshComments(ctx)
	return nil
}

// EditComment replaces a comment's body and refetches the list
func (d *Detail) EditComment(ctx context.Context, id, body string) error {
	body = strings.TrimSpace(body)
	task, ok := d.selected()
	if body == "" || !ok {
		return nil
	}
	if err := d.comments.UpdateComment(ctx, id, body); err != nil {
		d.fail(task.ID, "update comment", "Failed to update comment", err)
		return err
	}
	d.notifier.Notify(Notification{Level: Success, Message: "Comment updated successfully"})
	d.RefreshComments(ctx)
	return nil
}

// DeleteComment deletes a comment and refetches the list. The backend
// decides whether the viewer may delete it.
func (d *Detail) DeleteComment(ctx context.Context, id string) error {
	task, ok := d.selected()
	if !ok {
		return ErrNoTask
	}
	if err := d.comments.DeleteComment(ctx, id); err != nil {
		d.fail(task.ID, "delete comment", "Failed to delete comment", err)
		return err
	}
	d.notifier.Notify(Notification{Level: Success, Message: "Comment deleted successfully"})
	d.RefreshComments(ctx)
	return nil
}

func (d *Detail) fail(taskID, op, message string, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		d.logger.Info(op+" unauthorized", zap.String("task_id", taskID))
		return
	}
	d.logger.Error(op+" failed", zap.String("task_id", taskID), zap.Error(err))
	d.notifier.Notify(Notification{Level: Failure, Message: message})
}

// CanDeleteComment reports whether to offer deleting c to the viewer.
// It only hides the action; the backend enforces the rule.
func CanDeleteComment(c models.Comment, viewerID string) bool {
	return viewerID != "" && c.Author.ID == viewerID
}

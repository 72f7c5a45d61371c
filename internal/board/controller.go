// Package board holds the client-side state machines of the task board:
// the board controller, drag-and-drop state and the task detail editor.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
)

// Backend is the slice of the REST client the board needs. *api.Client satisfies it.
type Backend interface {
	ListTasks(ctx context.Context, q api.TaskQuery) ([]models.Task, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateTask(ctx context.Context, in models.TaskInput) error
	UpdateTask(ctx context.Context, id string, in models.TaskInput) error
	DeleteTask(ctx context.Context, id string) error
	MoveTask(ctx context.Context, id string, status models.Status) error
}

// Snapshot is a consistent copy of the board state for rendering
type Snapshot struct {
	Tasks   []models.Task
	Users   []models.User
	Filters models.Filters
	Loading bool
	Loaded  bool // at least one load has committed
}

// Column returns the tasks in a column, in cache order
func (s Snapshot) Column(status models.Status) []models.Task {
	return tasksWithStatus(s.Tasks, status)
}

// Controller owns the cached tasks, users and filters. Every mutation is
// confirmed by the backend and then followed by a full reload; the cache is
// never patched locally.
type Controller struct {
	backend  Backend
	notifier Notifier
	logger   *zap.Logger

	mu      sync.Mutex
	tasks   []models.Task
	users   []models.User
	filters models.Filters
	loading bool
	loaded  bool
	// seq identifies the most recently issued load; only it may commit
	seq uint64

	deleted []func(id string)
}

// NewController creates a controller with default filters and an empty cache
func NewController(backend Backend, notifier Notifier, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Controller{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		filters:  models.DefaultFilters(),
	}
}

// OnTaskDeleted registers fn to run after a task deletion is confirmed
func (c *Controller) OnTaskDeleted(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, fn)
}

// Ticket is an issued load. Only the most recently issued ticket may commit.
type Ticket struct {
	seq     uint64
	filters models.Filters
}

// Filters returns the filter set the load will query with
func (t Ticket) Filters() models.Filters { return t.filters }

// Begin makes f the active filter set and issues a load for it. Callers that
// fetch on another goroutine must call Begin in the order the user acted;
// the order of Begin calls, not of Fetch calls, decides which load commits.
func (c *Controller) Begin(f models.Filters) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = f
	return c.issueLocked(f)
}

// BeginReload issues a load with the active filters
func (c *Controller) BeginReload() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issueLocked(c.filters)
}

func (c *Controller) issueLocked(f models.Filters) Ticket {
	c.seq++
	c.loading = true
	return Ticket{seq: c.seq, filters: f}
}

// Load fetches tasks (filtered on the server) and users concurrently and
// replaces the cache. A load whose results arrive after a newer load was
// issued is discarded.
func (c *Controller) Load(ctx context.Context, filters models.Filters) {
	c.mu.Lock()
	t := c.issueLocked(filters)
	c.mu.Unlock()
	c.Fetch(ctx, t)
}

// Fetch runs an issued load
func (c *Controller) Fetch(ctx context.Context, t Ticket) {
	filters := t.filters
	var (
		wg                 sync.WaitGroup
		tasks              []models.Task
		users              []models.User
		tasksErr, usersErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tasks, tasksErr = c.backend.ListTasks(ctx, api.QueryFor(filters))
	}()
	go func() {
		defer wg.Done()
		users, usersErr = c.backend.ListUsers(ctx)
	}()
	wg.Wait()

	c.mu.Lock()
	if t.seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale load", zap.Uint64("seq", t.seq), zap.Any("filters", filters))
		return
	}
	if tasksErr == nil {
		c.tasks = tasks
		c.loaded = true
	}
	if usersErr == nil {
		c.users = users
	}
	c.loading = false
	c.mu.Unlock()

	if tasksErr != nil {
		c.report("load tasks", "Failed to load tasks", tasksErr)
	} else {
		c.logger.Debug("tasks loaded", zap.Int("count", len(tasks)), zap.Any("filters", filters))
	}
	if usersErr != nil {
		c.report("load users", "Failed to load users", usersErr)
	}
}

// Reload loads again with the current filters
func (c *Controller) Reload(ctx context.Context) {
	c.Fetch(ctx, c.BeginReload())
}

// SetFilters replaces the filter set and loads with it
func (c *Controller) SetFilters(ctx context.Context, f models.Filters) {
	c.Fetch(ctx, c.Begin(f))
}

// Clear forgets the cache and restores default filters, as after a sign-out.
// Loads issued before Clear can no longer commit.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.tasks = nil
	c.users = nil
	c.filters = models.DefaultFilters()
	c.loading = false
	c.loaded = false
}

// Filters returns the active filter set
func (c *Controller) Filters() models.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// CreateTask submits a new task and reloads
func (c *Controller) CreateTask(ctx context.Context, in models.TaskInput) error {
	if err := c.backend.CreateTask(ctx, in); err != nil {
		return c.fail("create task", "Failed to save task", err)
	}
	c.notifier.Notify(Notification{Level: Success, Message: "Task created successfully"})
	c.Reload(ctx)
	return nil
}

// UpdateTask submits changes to a task and reloads
func (c *Controller) UpdateTask(ctx context.Context, id string, in models.TaskInput) error {
	if err := c.backend.UpdateTask(ctx, id, in); err != nil {
		return c.fail("update task", "Failed to save task", err, zap.String("task_id", id))
	}
	c.notifier.Notify(Notification{Level: Success, Message: "Task updated successfully"})
	c.Reload(ctx)
	return nil
}

// DeleteTask deletes a task, tells deletion observers and reloads
func (c *Controller) DeleteTask(ctx context.Context, id string) error {
	if err := c.backend.DeleteTask(ctx, id); err != nil {
		return c.fail("delete task", "Failed to delete task", err, zap.String("task_id", id))
	}
	c.mu.Lock()
	observers := append([]func(string){}, c.deleted...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(id)
	}
	c.notifier.Notify(Notification{Level: Success, Message: "Task deleted successfully"})
	c.Reload(ctx)
	return nil
}

// MoveTask changes a task's column. Moving a task to the column it is
// already in does nothing at all: no request, no notification, no reload.
// It reports whether a move was submitted.
func (c *Controller) MoveTask(ctx context.Context, id string, status models.Status) (bool, error) {
	task, ok := c.Task(id)
	if !ok {
		return false, nil
	}
	if task.Status == status {
		return false, nil
	}
	if !status.Valid() {
		return false, fmt.Errorf("unknown column %q", status)
	}
	if err := c.backend.MoveTask(ctx, id, status); err != nil {
		return true, c.fail("move task", "Failed to move task", err, zap.String("task_id", id))
	}
	c.notifier.Notify(Notification{Level: Success, Message: fmt.Sprintf("Task moved to %s", status)})
	c.Reload(ctx)
	return true, nil
}

func (c *Controller) fail(op, message string, err error, fields ...zap.Field) error {
	c.report(op, message, err, fields...)
	return err
}

// report logs a failure and notifies the user. A rejected token is left to
// the session expiry handler, which has its own message.
func (c *Controller) report(op, message string, err error, fields ...zap.Field) {
	if errors.Is(err, api.ErrUnauthorized) {
		c.logger.Info(op+" unauthorized", fields...)
		return
	}
	c.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	c.notifier.Notify(Notification{Level: Failure, Message: message})
}

// Task looks up a cached task by id
func (c *Controller) Task(id string) (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// TasksByColumn returns the cached tasks whose status is the given column,
// preserving the order the backend returned them in.
func (c *Controller) TasksByColumn(status models.Status) []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tasksWithStatus(c.tasks, status)
}

func tasksWithStatus(tasks []models.Task, status models.Status) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Tasks returns a copy of the cache
func (c *Controller) Tasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Task(nil), c.tasks...)
}

// Users returns a copy of the cached users
func (c *Controller) Users() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.User(nil), c.users...)
}

// Loading reports whether the latest load is still in flight
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Snapshot returns the whole state at once
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Tasks:   append([]models.Task(nil), c.tasks...),
		Users:   append([]models.User(nil), c.users...),
		Filters: c.filters,
		Loading: c.loading,
		Loaded:  c.loaded,
	}
}

package board_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
)

func TestDrag_ZeroValueIsIdle(t *testing.T) {
	var d board.Drag
	assert.Equal(t, board.Idle, d.State())
	_, ok := d.Dragged()
	assert.False(t, ok)
	_, ok = d.HoverColumn()
	assert.False(t, ok)
}

func TestDrag_HoverIgnoredWhileIdle(t *testing.T) {
	var d board.Drag
	d.Hover(models.StatusDone)
	_, ok := d.HoverColumn()
	assert.False(t, ok)
}

func TestDrag_StartHoverDrop(t *testing.T) {
	var d board.Drag
	task := models.Task{ID: "t1", Status: models.StatusBacklog}

	d.StartDrag(task)
	assert.Equal(t, board.Dragging, d.State())

	d.Hover(models.StatusReview)
	d.Hover(models.StatusReview)
	col, ok := d.HoverColumn()
	require.True(t, ok)
	assert.Equal(t, models.StatusReview, col)

	mv, ok := d.Drop(models.StatusReview)
	require.True(t, ok)
	assert.Equal(t, board.Move{TaskID: "t1", From: models.StatusBacklog, To: models.StatusReview}, mv)
	assert.Equal(t, board.Idle, d.State())
	_, ok = d.HoverColumn()
	assert.False(t, ok)
}

func TestDrag_DropOnSameColumnYieldsNoMove(t *testing.T) {
	var d board.Drag
	d.StartDrag(models.Task{ID: "t1", Status: models.StatusDone})
	d.Hover(models.StatusDone)

	_, ok := d.Drop(models.StatusDone)
	assert.False(t, ok)
	assert.Equal(t, board.Idle, d.State())
	_, ok = d.HoverColumn()
	assert.False(t, ok)
}

func TestDrag_DropWhileIdleYieldsNoMove(t *testing.T) {
	var d board.Drag
	_, ok := d.Drop(models.StatusDone)
	assert.False(t, ok)
}

func TestDrag_StartWhileDraggingReplaces(t *testing.T) {
	var d board.Drag
	d.StartDrag(models.Task{ID: "t1", Status: models.StatusBacklog})
	d.Hover(models.StatusDone)
	d.StartDrag(models.Task{ID: "t2", Status: models.StatusReview})

	task, ok := d.Dragged()
	require.True(t, ok)
	assert.Equal(t, "t2", task.ID)
	_, ok = d.HoverColumn()
	assert.False(t, ok)
}

func TestDrag_LeaveHoverChecksBounds(t *testing.T) {
	column := board.Rect{X: 10, Y: 2, Width: 20, Height: 30}
	tests := []struct {
		name    string
		pointer board.Point
		keeps   bool
	}{
		{"inside on a card", board.Point{X: 15, Y: 10}, true},
		{"top left corner", board.Point{X: 10, Y: 2}, true},
		{"right edge is outside", board.Point{X: 30, Y: 10}, false},
		{"left of column", board.Point{X: 9, Y: 10}, false},
		{"below column", board.Point{X: 15, Y: 32}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d board.Drag
			d.StartDrag(models.Task{ID: "t1", Status: models.StatusBacklog})
			d.Hover(models.StatusReview)

			d.LeaveHover(tt.pointer, column)

			_, ok := d.HoverColumn()
			assert.Equal(t, tt.keeps, ok)
			assert.Equal(t, board.Dragging, d.State())
		})
	}
}

func TestDrag_Cancel(t *testing.T) {
	var d board.Drag
	d.StartDrag(models.Task{ID: "t1"})
	d.Hover(models.StatusDone)
	d.Cancel()
	assert.Equal(t, board.Idle, d.State())
	_, ok := d.HoverColumn()
	assert.False(t, ok)
}

func TestDropAndMove_ClearsStateEvenWhenMoveFails(t *testing.T) {
	backend := newFakeBackend(sampleTasks()...)
	backend.moveErr = errors.New("offline")
	rec := &board.Recorder{}
	c := board.NewController(backend, rec, nil)
	c.Load(context.Background(), models.DefaultFilters())

	var d board.Drag
	task, _ := c.Task("t1")
	d.StartDrag(task)
	d.Hover(models.StatusDone)

	moved, err := d.DropAndMove(context.Background(), models.StatusDone, c)
	assert.True(t, moved)
	assert.Error(t, err)
	assert.Equal(t, board.Idle, d.State())
	_, ok := d.HoverColumn()
	assert.False(t, ok)
	assert.Equal(t, 1, rec.Count(board.Failure))
}

func TestDropAndMove_SameColumnMakesNoCall(t *testing.T) {
	backend := newFakeBackend(sampleTasks()...)
	c := board.NewController(backend, nil, nil)
	c.Load(context.Background(), models.DefaultFilters())
	lists := backend.listCount()

	var d board.Drag
	task, _ := c.Task("t4")
	d.StartDrag(task)

	moved, err := d.DropAndMove(context.Background(), models.StatusDone, c)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Empty(t, backend.moves)
	assert.Equal(t, lists, backend.listCount())
}

func TestScenario_DragBacklogToReview(t *testing.T) {
	e := newEnv(t)
	seeded := e.srv.AddTask(models.Task{Title: "T", Priority: models.PriorityLow, Status: models.StatusBacklog})
	ctx := context.Background()
	e.board.Load(ctx, models.DefaultFilters())
	e.srv.ResetCalls()

	var d board.Drag
	task, ok := e.board.Task(seeded.ID)
	require.True(t, ok)
	d.StartDrag(task)
	d.Hover(models.StatusReview)

	moved, err := d.DropAndMove(ctx, models.StatusReview, e.board)
	require.NoError(t, err)
	assert.True(t, moved)

	assert.Equal(t, 1, e.srv.CallsTo(http.MethodPatch, "/tasks/:id/move"))
	assert.Equal(t, 1, e.srv.CallsTo(http.MethodGet, "/tasks/get-all-tasks"))
	review := e.board.TasksByColumn(models.StatusReview)
	require.Len(t, review, 1)
	assert.Equal(t, seeded.ID, review[0].ID)
	assert.Empty(t, e.board.TasksByColumn(models.StatusBacklog))
	assert.Equal(t, []board.Notification{{Level: board.Success, Message: "Task moved to Review"}}, e.rec.All())
}

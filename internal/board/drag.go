package board

import (
	"context"
	"sync"

	"github.com/tgienger/taskboard/internal/models"
)

// DragState is the phase of a drag gesture
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Point is a pointer position in cells
type Point struct {
	X, Y int
}

// Rect is a column's bounding region in cells
type Rect struct {
	X, Y, Width, Height int
}

// Contains reports whether p lies inside r
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Move is the intent produced by a drop
type Move struct {
	TaskID string
	From   models.Status
	To     models.Status
}

// Mover applies a move. *Controller satisfies it.
type Mover interface {
	MoveTask(ctx context.Context, id string, status models.Status) (bool, error)
}

// Drag tracks the card being dragged and the column under the pointer.
// The zero value is Idle and ready to use.
type Drag struct {
	mu    sync.Mutex
	task  *models.Task
	hover *models.Status
}

// State returns Dragging while a card is held
func (d *Drag) State() DragState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task == nil {
		return Idle
	}
	return Dragging
}

// StartDrag picks up a card. Starting while already dragging replaces the
// held card and forgets the hover column.
func (d *Drag) StartDrag(task models.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.task = &task
	d.hover = nil
}

// Hover marks a column as the drop target. Ignored while Idle.
func (d *Drag) Hover(column models.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task == nil {
		return
	}
	d.hover = &column
}

// LeaveHover clears the hover column, but only when the pointer is really
// outside the column's bounds. Leaving a card inside the column keeps it.
func (d *Drag) LeaveHover(pointer Point, bounds Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bounds.Contains(pointer) {
		return
	}
	d.hover = nil
}

// Cancel abandons the drag without a move
func (d *Drag) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

func (d *Drag) reset() {
	d.task = nil
	d.hover = nil
}

// Dragged returns the held card
func (d *Drag) Dragged() (models.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.task == nil {
		return models.Task{}, false
	}
	return *d.task, true
}

// HoverColumn returns the column under the pointer while dragging
func (d *Drag) HoverColumn() (models.Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hover == nil {
		return "", false
	}
	return *d.hover, true
}

// Drop ends the drag on a column and returns to Idle. The returned move is
// valid only when a card was held and its status differs from the column.
func (d *Drag) Drop(column models.Status) (Move, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	task := d.task
	d.reset()
	if task == nil || task.Status == column {
		return Move{}, false
	}
	return Move{TaskID: task.ID, From: task.Status, To: column}, true
}

// DropAndMove drops on a column and applies the resulting move. The drag is
// already Idle when the move starts, so a failed move cannot leave it active.
func (d *Drag) DropAndMove(ctx context.Context, column models.Status, m Mover) (bool, error) {
	mv, ok := d.Drop(column)
	if !ok {
		return false, nil
	}
	return m.MoveTask(ctx, mv.TaskID, mv.To)
}

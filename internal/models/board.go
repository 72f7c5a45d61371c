package models

import "time"

// FilterAll matches every value of a filter dimension
const FilterAll = "all"

// Filters narrows the task list. Filtering happens on the server.
type Filters struct {
	Assignee string // FilterAll or a user id
	Priority string // FilterAll or a Priority
}

// DefaultFilters shows everything
func DefaultFilters() Filters {
	return Filters{Assignee: FilterAll, Priority: FilterAll}
}

// Active reports whether any dimension narrows the list
func (f Filters) Active() bool {
	return !isAll(f.Assignee) || !isAll(f.Priority)
}

// Query returns the non-trivial filter values keyed by query parameter
func (f Filters) Query() map[string]string {
	q := map[string]string{}
	if !isAll(f.Assignee) {
		q["assignee"] = f.Assignee
	}
	if !isAll(f.Priority) {
		q["priority"] = f.Priority
	}
	return q
}

func isAll(v string) bool {
	return v == "" || v == FilterAll
}

// Session is the signed-in user and their bearer token
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// UserID returns the id of the signed-in user
func (s Session) UserID() string { return s.User.ID }

// DueState is the badge derived from a task's due date
type DueState string

const (
	DueCompleted DueState = "Completed"
	DueOverdue   DueState = "Overdue"
	DueAtRisk    DueState = "At Risk"
	DueOnTrack   DueState = "On Track"
)

// atRiskWindow is how close to the due date a task turns "At Risk"
const atRiskWindow = 24 * time.Hour

// DueStateOf derives the badge for a task at the given instant
func DueStateOf(t Task, now time.Time) DueState {
	if t.Status == StatusDone {
		return DueCompleted
	}
	left := t.DueDate.Sub(now)
	switch {
	case left < 0:
		return DueOverdue
	case left <= atRiskWindow:
		return DueAtRisk
	default:
		return DueOnTrack
	}
}

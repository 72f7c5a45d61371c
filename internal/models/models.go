package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the workflow column a task sits in
type Status string

const (
	StatusBacklog    Status = "Backlog"
	StatusInProgress Status = "In Progress"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
)

// Statuses returns the board columns in display order
func Statuses() []Status {
	return []Status{StatusBacklog, StatusInProgress, StatusReview, StatusDone}
}

// Valid reports whether s is one of the four known columns
func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities returns the priorities from lowest to highest
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// User is a member of the team
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id" as the identifier
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	u.Email = raw.Email
	u.Name = raw.Name
	return nil
}

// DisplayName returns the name, the local part of the email, or a placeholder
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	if u.Email != "" {
		return u.Email
	}
	return "Unknown User"
}

// UserRef points at a user. The backend sends either the raw id or the
// populated user object, so both decode into the same shape.
type UserRef struct {
	ID    string
	Name  string
	Email string
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*r = UserRef{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UserRef{ID: cleanID(id)}
		return nil
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*r = UserRef{ID: cleanID(u.ID), Name: u.Name, Email: u.Email}
	return nil
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// IsZero reports whether the reference points nowhere
func (r UserRef) IsZero() bool { return r.ID == "" }

// Label returns a printable name for the referenced user, resolving
// bare ids against the known users.
func (r UserRef) Label(users []User) string {
	if r.Name != "" {
		return r.Name
	}
	for _, u := range users {
		if u.ID == r.ID {
			return u.DisplayName()
		}
	}
	if r.Email != "" {
		return User{Email: r.Email}.DisplayName()
	}
	return ""
}

// ids sometimes arrive wrapped in stray quotes
func cleanID(id string) string {
	return strings.TrimSpace(strings.ReplaceAll(id, `"`, ""))
}

// DateLayout is the wire and input format for due dates
const DateLayout = "2006-01-02"

// Date is a calendar day. It decodes from RFC 3339 timestamps or plain dates.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		d.Time = t
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// String formats the day as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DateLayout)
}

// Task represents a single card on the board
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	Assignee    UserRef  `json:"assigneeId"`
	DueDate     Date     `json:"dueDate"`
}

func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.plain)
	if t.ID == "" {
		t.ID = raw.MongoID
	}
	return nil
}

// TaskInput is the payload for creating or updating a task
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	AssigneeID  string   `json:"assigneeId"`
	DueDate     Date     `json:"dueDate"`
}

// Input converts the task into an update payload carrying its current fields
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		AssigneeID:  t.Assignee.ID,
		DueDate:     t.DueDate,
	}
}

// Comment represents a comment on a task
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Author    UserRef   `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	type plain Comment
	var raw struct {
		plain
		MongoID string    `json:"_id"`
		Created time.Time `json:"created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Comment(raw.plain)
	if c.ID == "" {
		c.ID = raw.MongoID
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = raw.Created
	}
	return nil
}

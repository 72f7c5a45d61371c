// Package validate holds the form schemas checked before anything is sent to the backend.
package validate

import (
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/tgienger/taskboard/internal/models"
)

const (
	minPasswordLen = 6
	minTitleLen    = 3
)

// Errors maps a form field to its message. A nil or empty Errors means valid.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, e[f])
	}
	return strings.Join(msgs, "; ")
}

// Err returns e as an error, or nil when there is nothing to report
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// LoginForm is what the login screen submits
type LoginForm struct {
	Email    string
	Password string
}

// RegisterForm is what the register screen submits. ConfirmPassword never leaves the client.
type RegisterForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// TaskForm is the editor's raw field values
type TaskForm struct {
	Title       string
	Description string
	Priority    string
	Status      string
	AssigneeID  string
	DueDate     string // YYYY-MM-DD
}

// Login checks the login form
func Login(f LoginForm) error {
	errs := Errors{}
	checkEmail(errs, f.Email)
	checkPassword(errs, f.Password)
	return errs.Err()
}

// Register checks the registration form
func Register(f RegisterForm) error {
	errs := Errors{}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Name is required"
	}
	checkEmail(errs, f.Email)
	checkPassword(errs, f.Password)
	switch {
	case f.ConfirmPassword == "":
		errs["confirmPassword"] = "Please confirm your password"
	case f.ConfirmPassword != f.Password:
		errs["confirmPassword"] = "Passwords must match"
	}
	return errs.Err()
}

// Task checks the editor form and converts it to a payload. today is the
// earliest acceptable due date.
func Task(f TaskForm, today time.Time) (models.TaskInput, error) {
	errs := Errors{}
	title := strings.TrimSpace(f.Title)
	switch {
	case title == "":
		errs["title"] = "Title is required"
	case len([]rune(title)) < minTitleLen:
		errs["title"] = "Title must be at least 3 characters"
	}
	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		errs["description"] = "Description is required"
	}

	priority := models.Priority(f.Priority)
	if f.Priority == "" {
		errs["priority"] = "Priority is required"
	} else if !priority.Valid() {
		errs["priority"] = "Invalid priority"
	}

	status := models.Status(f.Status)
	if f.Status == "" {
		errs["status"] = "Status is required"
	} else if !status.Valid() {
		errs["status"] = "Invalid status"
	}

	assignee := strings.TrimSpace(strings.ReplaceAll(f.AssigneeID, `"`, ""))
	if assignee == "" {
		errs["assigneeId"] = "Please select an assignee"
	}

	var due models.Date
	if strings.TrimSpace(f.DueDate) == "" {
		errs["dueDate"] = "Due date is required"
	} else {
		d, err := models.ParseDate(f.DueDate)
		switch {
		case err != nil:
			errs["dueDate"] = "Due date must be a date (YYYY-MM-DD)"
		case d.Before(startOfDay(today)):
			errs["dueDate"] = "Due date cannot be in the past"
		default:
			due = d
		}
	}

	if err := errs.Err(); err != nil {
		return models.TaskInput{}, err
	}
	return models.TaskInput{
		Title:       title,
		Description: desc,
		Priority:    priority,
		Status:      status,
		AssigneeID:  assignee,
		DueDate:     due,
	}, nil
}

func checkEmail(errs Errors, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		errs["email"] = "Email is required"
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		errs["email"] = "Invalid email address"
	}
}

func checkPassword(errs Errors, password string) {
	switch {
	case password == "":
		errs["password"] = "Password is required"
	case len(password) < minPasswordLen:
		errs["password"] = "Password must be at least 6 characters"
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tgienger/taskboard/internal/models"
)

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register payload
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is what login and register return
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// TaskQuery narrows the task list on the server. Empty or "all" values are omitted.
type TaskQuery struct {
	Assignee string
	Priority string
	Status   string
}

// QueryFor builds the server-side query for a filter set
func QueryFor(f models.Filters) TaskQuery {
	return TaskQuery{Assignee: f.Assignee, Priority: f.Priority}
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	add := func(key, val string) {
		if val != "" && val != models.FilterAll {
			v.Set(key, val)
		}
	}
	add("assignee", q.Assignee)
	add("priority", q.Priority)
	add("status", q.Status)
	return v
}

// Register creates an account
func (c *Client) Register(ctx context.Context, r Registration) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: r, public: true}, &out)
	return out, err
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, cr Credentials) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: cr, public: true}, &out)
	return out, err
}

// ListUsers returns every user available for assignment
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out struct {
		Users []models.User `json:"users"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/users"}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ListTasks returns tasks matching q, in the order the server sends them
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]models.Task, error) {
	var out struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/tasks/get-all-tasks", query: q.values()}, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// CreateTask creates a task
func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/tasks/create-task", body: in}, nil)
}

// UpdateTask replaces the editable fields of a task
func (c *Client) UpdateTask(ctx context.Context, id string, in models.TaskInput) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/tasks/update-task/" + url.PathEscape(id), body: in}, nil)
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/tasks/delete-task/" + url.PathEscape(id)}, nil)
}

// MoveTask changes only the status of a task
func (c *Client) MoveTask(ctx context.Context, id string, status models.Status) error {
	body := struct {
		Status models.Status `json:"status"`
	}{status}
	return c.do(ctx, request{method: http.MethodPatch, path: "/tasks/" + url.PathEscape(id) + "/move", body: body}, nil)
}

type commentBody struct {
	Body string `json:"body"`
}

// ListComments returns the comments on a task
func (c *Client) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var out struct {
		Comments []models.Comment `json:"comments"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/comments/get-comment-for-task/" + url.PathEscape(taskID)}, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// CreateComment adds a comment to a task
func (c *Client) CreateComment(ctx context.Context, taskID, body string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/comments/create-comment/" + url.PathEscape(taskID), body: commentBody{body}}, nil)
}

// UpdateComment edits a comment's body
func (c *Client) UpdateComment(ctx context.Context, id, body string) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/comments/update-comment/" + url.PathEscape(id), body: commentBody{body}}, nil)
}

// DeleteComment deletes a comment
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/comments/delete-comment/" + url.PathEscape(id)}, nil)
}

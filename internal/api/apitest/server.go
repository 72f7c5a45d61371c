// Package apitest runs an in-memory task board backend that speaks the REST
// contract, for tests of the client, session store and board.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tgienger/taskboard/internal/models"
)

// Call is one request the server received
type Call struct {
	Method string
	Route  string // the registered route, e.g. /tasks/:id/move
	Path   string
	Query  url.Values
	Auth   string
}

// Server is a fake backend. All state is guarded by mu.
type Server struct {
	*httptest.Server

	secret []byte

	mu        sync.Mutex
	users     []models.User
	passwords map[string]string // email -> password
	tasks     []models.Task
	comments  []models.Comment
	calls     []Call
	failures  map[string]int // "METHOD route" -> status
	now       func() time.Time
}

// New starts a server and stops it when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:    []byte("apitest-" + uuid.NewString()),
		passwords: map[string]string{},
		failures:  map[string]int{},
		now:       time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record)

	e.POST("/auth/register", s.register)
	e.POST("/auth/login", s.login)

	authed := e.Group("", s.authenticate)
	authed.GET("/auth/users", s.listUsers)
	authed.GET("/tasks/get-all-tasks", s.listTasks)
	authed.POST("/tasks/create-task", s.createTask)
	authed.PUT("/tasks/update-task/:id", s.updateTask)
	authed.DELETE("/tasks/delete-task/:id", s.deleteTask)
	authed.PATCH("/tasks/:id/move", s.moveTask)
	authed.GET("/comments/get-comment-for-task/:taskId", s.listComments)
	authed.POST("/comments/create-comment/:taskId", s.createComment)
	authed.PUT("/comments/update-comment/:id", s.updateComment)
	authed.DELETE("/comments/delete-comment/:id", s.deleteComment)
	return e
}

// AddUser registers a user who can log in with password
func (s *Server) AddUser(u models.User, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users = append(s.users, u)
	s.passwords[u.Email] = password
	return u
}

// AddTask seeds a task
func (s *Server) AddTask(t models.Task) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.tasks = append(s.tasks, t)
	return t
}

// AddComment seeds a comment
func (s *Server) AddComment(c models.Comment) models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.comments = append(s.comments, c)
	return c
}

// Tasks returns a copy of the stored tasks
func (s *Server) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Task(nil), s.tasks...)
}

// Comments returns a copy of the stored comments
func (s *Server) Comments() []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.comments...)
}

// Fail makes every request to route answer with status until cleared with status 0
func (s *Server) Fail(method, route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + route
	if status == 0 {
		delete(s.failures, key)
		return
	}
	s.failures[key] = status
}

// Calls returns every request received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo counts requests to a registered route
func (s *Server) CallsTo(method, route string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Route == route {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded requests
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Token mints a valid bearer token for a user id
func (s *Server) Token(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(24 * time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		call := Call{
			Method: req.Method,
			Route:  c.Path(),
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Auth:   req.Header.Get(echo.HeaderAuthorization),
		}
		s.mu.Lock()
		s.calls = append(s.calls, call)
		status, failing := s.failures[call.Method+" "+call.Route]
		s.mu.Unlock()

		if failing {
			return c.JSON(status, map[string]string{"message": http.StatusText(status)})
		}
		return next(c)
	}
}

const userKey = "userID"

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Authentication required"})
		}
		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
		}
		c.Set(userKey, claims.Subject)
		return next(c)
	}
}

// wire documents use the backend's "_id" identifiers and populated references

type userDoc struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type taskDoc struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	AssigneeID  *userDoc `json:"assigneeId"`
	DueDate     string   `json:"dueDate,omitempty"`
}

type commentDoc struct {
	ID        string    `json:"_id"`
	TaskID    string    `json:"taskId"`
	AuthorID  any       `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserDoc(u models.User) userDoc {
	return userDoc{ID: u.ID, Email: u.Email, Name: u.Name}
}

// callers hold s.mu
func (s *Server) userByID(id string) (models.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *Server) toTaskDoc(t models.Task) taskDoc {
	doc := taskDoc{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
	}
	if !t.DueDate.IsZero() {
		doc.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	if u, ok := s.userByID(t.Assignee.ID); ok {
		d := toUserDoc(u)
		doc.AssigneeID = &d
	}
	return doc
}

func (s *Server) register(c echo.Context) error {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}
	s.mu.Lock()
	if _, taken := s.passwords[body.Email]; taken {
		s.mu.Unlock()
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "User already exists"})
	}
	s.mu.Unlock()

	u := s.AddUser(models.User{Name: body.Name, Email: body.Email}, body.Password)
	return c.JSON(http.StatusCreated, map[string]any{"token": s.Token(u.ID), "user": toUserDoc(u)})
}

func (s *Server) login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request"})
	}
	s.mu.Lock()
	password, ok := s.passwords[body.Email]
	var user models.User
	for _, u := range s.users {
		if u.Email == body.Email {
			user = u
		}
	}
	s.mu.Unlock()
	if !ok || password != body.Password {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	}
	return c.JSON(http.StatusOK, map[string]any{"token": s.Token(user.ID), "user": toUserDoc(user)})
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]userDoc, 0, len(s.users))
	for _, u := range s.users {
		docs = append(docs, toUserDoc(u))
	}
	return c.JSON(http.StatusOK, map[string]any{"users": docs})
}

func (s *Server) listTasks(c echo.Context) error {
	assignee := c.QueryParam("assignee")
	priority := c.QueryParam("priority")
	status := c.QueryParam("status")

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := []taskDoc{}
	for _, t := range s.tasks {
		if assignee != "" && t.Assignee.ID != assignee {
			continue
		}
		if priority != "" && string(t.Priority) != priority {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		docs = append(docs, s.toTaskDoc(t))
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": docs})
}

func (s *Server) createTask(c echo.Context) error {
	var in models.TaskInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid task"})
	}
	t := s.AddTask(models.Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		Assignee:    models.UserRef{ID: in.AssigneeID},
		DueDate:     in.DueDate,
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusCreated, map[string]any{"task": s.toTaskDoc(t)})
}

// withTask runs fn on the stored task with the route's :id
func (s *Server) withTask(c echo.Context, fn func(i int) error) error {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return fn(i)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Task not found"})
}

func (s *Server) updateTask(c echo.Context) error {
	var in models.TaskInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid task"})
	}
	return s.withTask(c, func(i int) error {
		t := &s.tasks[i]
		t.Title = in.Title
		t.Description = in.Description
		t.Priority = in.Priority
		t.Status = in.Status
		t.Assignee = models.UserRef{ID: in.AssigneeID}
		t.DueDate = in.DueDate
		return c.JSON(http.StatusOK, map[string]any{"task": s.toTaskDoc(*t)})
	})
}

func (s *Server) deleteTask(c echo.Context) error {
	return s.withTask(c, func(i int) error {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		return c.JSON(http.StatusOK, map[string]string{"message": "Task deleted"})
	})
}

func (s *Server) moveTask(c echo.Context) error {
	var body struct {
		Status models.Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil || !body.Status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid status"})
	}
	return s.withTask(c, func(i int) error {
		s.tasks[i].Status = body.Status
		return c.JSON(http.StatusOK, map[string]any{"task": s.toTaskDoc(s.tasks[i])})
	})
}

func (s *Server) listComments(c echo.Context) error {
	taskID := c.Param("taskId")
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := []commentDoc{}
	for _, cm := range s.comments {
		if cm.TaskID != taskID {
			continue
		}
		doc := commentDoc{ID: cm.ID, TaskID: cm.TaskID, AuthorID: cm.Author.ID, Body: cm.Body, CreatedAt: cm.CreatedAt}
		if u, ok := s.userByID(cm.Author.ID); ok {
			doc.AuthorID = toUserDoc(u)
		}
		docs = append(docs, doc)
	}
	return c.JSON(http.StatusOK, map[string]any{"comments": docs})
}

func (s *Server) createComment(c echo.Context) error {
	var body struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Body) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Comment body is required"})
	}
	taskID := c.Param("taskId")
	s.mu.Lock()
	found := false
	for _, t := range s.tasks {
		if t.ID == taskID {
			found = true
		}
	}
	s.mu.Unlock()
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Task not found"})
	}
	author, _ := c.Get(userKey).(string)
	cm := s.AddComment(models.Comment{TaskID: taskID, Author: models.UserRef{ID: author}, Body: body.Body})
	return c.JSON(http.StatusCreated, map[string]any{"comment": cm})
}

// withOwnComment runs fn on the caller's comment with the route's :id
func (s *Server) withOwnComment(c echo.Context, fn func(i int) error) error {
	id := c.Param("id")
	caller, _ := c.Get(userKey).(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if s.comments[i].ID != id {
			continue
		}
		if s.comments[i].Author.ID != caller {
			return c.JSON(http.StatusForbidden, map[string]string{"message": "Not your comment"})
		}
		return fn(i)
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Comment not found"})
}

func (s *Server) updateComment(c echo.Context) error {
	var body struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid comment"})
	}
	return s.withOwnComment(c, func(i int) error {
		s.comments[i].Body = body.Body
		return c.JSON(http.StatusOK, map[string]string{"message": "Comment updated"})
	})
}

func (s *Server) deleteComment(c echo.Context) error {
	return s.withOwnComment(c, func(i int) error {
		s.comments = append(s.comments[:i], s.comments[i+1:]...)
		return c.JSON(http.StatusOK, map[string]string{"message": "Comment deleted"})
	})
}

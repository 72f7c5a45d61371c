package views

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/api/apitest"
	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeSession struct {
	sess      models.Session
	loggedOut int
}

func (f *fakeSession) Current() (models.Session, bool) {
	return f.sess, f.sess.Token != ""
}

func (f *fakeSession) Logout() {
	f.loggedOut++
	f.sess = models.Session{}
}

type harness struct {
	srv     *apitest.Server
	user    models.User
	rec     *board.Recorder
	ctrl    *board.Controller
	detail  *board.Detail
	session *fakeSession
	view    *BoardView
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	user := srv.AddUser(models.User{Email: "ann@example.com", Name: "Ann"}, "secret1")
	token := srv.Token(user.ID)
	client, err := api.New(api.Options{BaseURL: srv.URL, Timeout: 5 * time.Second, Tokens: staticToken(token)})
	require.NoError(t, err)

	rec := &board.Recorder{}
	ctrl := board.NewController(client, rec, nil)
	detail := board.NewDetail(ctrl, client, rec, nil)
	sess := &fakeSession{sess: models.Session{User: user, Token: token}}
	v := NewBoardView(context.Background(), ctrl, detail, sess)
	steadyCursors(v.editor)
	v.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &harness{srv: srv, user: user, rec: rec, ctrl: ctrl, detail: detail, session: sess, view: v}
}

// load fetches the board and resets the call log
func (h *harness) load(t *testing.T) {
	t.Helper()
	h.feed(h.view.reload())
	h.srv.ResetCalls()
}

// feed runs cmd and delivers the controller and editor results it produces.
// Timer based messages are dropped so tests never sleep.
func (h *harness) feed(cmd tea.Cmd) {
	for _, msg := range drain(cmd) {
		switch msg.(type) {
		case boardChangedMsg, editorMsg:
			_, next := h.view.Update(msg)
			h.feed(next)
		}
	}
}

func (h *harness) press(msgs ...tea.Msg) {
	for _, msg := range msgs {
		_, cmd := h.view.Update(msg)
		h.feed(cmd)
	}
}

// steadyCursors stops cursor blinking so key handling never schedules timers
func steadyCursors(e *TaskEditor) {
	e.title.Cursor.SetMode(cursor.CursorStatic)
	e.desc.Cursor.SetMode(cursor.CursorStatic)
	e.due.Cursor.SetMode(cursor.CursorStatic)
	e.commentInput.Cursor.SetMode(cursor.CursorStatic)
}

func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	ctrlS = tea.KeyMsg{Type: tea.KeyCtrlS}
)

func mouse(action tea.MouseAction, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func TestBoardView_KeyboardDragMovesTask(t *testing.T) {
	h := newHarness(t)
	task := h.srv.AddTask(models.Task{Title: "Ship it", Status: models.StatusBacklog, Priority: models.PriorityHigh})
	h.load(t)

	h.press(space)
	require.Equal(t, board.Dragging, h.view.Drag().State())
	hovered, ok := h.view.Drag().HoverColumn()
	require.True(t, ok)
	assert.Equal(t, models.StatusBacklog, hovered)

	h.press(runes("l"), runes("l"))
	hovered, _ = h.view.Drag().HoverColumn()
	assert.Equal(t, models.StatusReview, hovered)

	h.press(enter)

	assert.Equal(t, board.Idle, h.view.Drag().State())
	assert.Equal(t, 2, h.view.Column())
	assert.Equal(t, 1, h.srv.CallsTo(http.MethodPatch, "/tasks/:id/move"))
	assert.Equal(t, 1, h.srv.CallsTo(http.MethodGet, "/tasks/get-all-tasks"))
	review := h.ctrl.TasksByColumn(models.StatusReview)
	require.Len(t, review, 1)
	assert.Equal(t, task.ID, review[0].ID)
	assert.Equal(t, []board.Notification{{Level: board.Success, Message: "Task moved to Review"}}, h.rec.All())
}

func TestBoardView_EscapeCancelsDrag(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "Stay", Status: models.StatusBacklog})
	h.load(t)

	h.press(space, runes("l"), esc)

	assert.Equal(t, board.Idle, h.view.Drag().State())
	assert.Empty(t, h.srv.Calls())
	assert.Len(t, h.ctrl.TasksByColumn(models.StatusBacklog), 1)
}

func TestBoardView_DropOnOwnColumnMakesNoCall(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "Stay", Status: models.StatusBacklog})
	h.load(t)

	h.press(space, enter)

	assert.Equal(t, board.Idle, h.view.Drag().State())
	assert.Empty(t, h.srv.Calls())
	assert.Empty(t, h.rec.All())
}

func TestBoardView_GrabOnEmptyColumnDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.press(space)

	assert.Equal(t, board.Idle, h.view.Drag().State())
}

func TestBoardView_MouseDragMovesTask(t *testing.T) {
	h := newHarness(t)
	task := h.srv.AddTask(models.Task{Title: "Drag me", Status: models.StatusBacklog})
	h.load(t)

	first := h.view.ColumnRect(0)
	review := h.view.ColumnRect(2)
	cardY := first.Y + cardsOffset

	h.press(mouse(tea.MouseActionPress, first.X+2, cardY))
	require.Equal(t, board.Dragging, h.view.Drag().State())
	dragged, ok := h.view.Drag().Dragged()
	require.True(t, ok)
	assert.Equal(t, task.ID, dragged.ID)

	h.press(mouse(tea.MouseActionMotion, review.X+3, cardY+1))
	hovered, ok := h.view.Drag().HoverColumn()
	require.True(t, ok)
	assert.Equal(t, models.StatusReview, hovered)

	h.press(mouse(tea.MouseActionRelease, review.X+3, cardY+1))

	assert.Equal(t, board.Idle, h.view.Drag().State())
	assert.Equal(t, 1, h.srv.CallsTo(http.MethodPatch, "/tasks/:id/move"))
	assert.Len(t, h.ctrl.TasksByColumn(models.StatusReview), 1)
	assert.Empty(t, h.ctrl.TasksByColumn(models.StatusBacklog))
}

func TestBoardView_MotionInsideHoveredColumnKeepsHover(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "Drag me", Status: models.StatusBacklog})
	h.load(t)

	first := h.view.ColumnRect(0)
	h.press(mouse(tea.MouseActionPress, first.X+2, first.Y+cardsOffset))
	h.press(mouse(tea.MouseActionMotion, first.X+first.Width-1, first.Y+first.Height-1))

	hovered, ok := h.view.Drag().HoverColumn()
	require.True(t, ok)
	assert.Equal(t, models.StatusBacklog, hovered)
}

func TestBoardView_ReleaseOutsideColumnsCancels(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "Drag me", Status: models.StatusBacklog})
	h.load(t)

	first := h.view.ColumnRect(0)
	h.press(mouse(tea.MouseActionPress, first.X+2, first.Y+cardsOffset))
	// the header row lies above every column
	h.press(mouse(tea.MouseActionMotion, first.X+2, 0))
	_, hovering := h.view.Drag().HoverColumn()
	assert.False(t, hovering)

	h.press(mouse(tea.MouseActionRelease, first.X+2, 0))

	assert.Equal(t, board.Idle, h.view.Drag().State())
	assert.Empty(t, h.srv.Calls())
}

func TestBoardView_PressOnEmptySpaceStartsNothing(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	rect := h.view.ColumnRect(1)
	h.press(mouse(tea.MouseActionPress, rect.X+2, rect.Y+cardsOffset))

	assert.Equal(t, board.Idle, h.view.Drag().State())
}

func TestBoardView_PriorityFilterCyclesAndClears(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "low", Priority: models.PriorityLow, Status: models.StatusBacklog})
	h.srv.AddTask(models.Task{Title: "high", Priority: models.PriorityHigh, Status: models.StatusBacklog})
	h.load(t)
	require.Len(t, h.ctrl.Tasks(), 2)

	h.press(runes("p"))

	assert.Equal(t, string(models.PriorityLow), h.ctrl.Filters().Priority)
	require.Len(t, h.ctrl.Tasks(), 1)
	assert.Equal(t, "low", h.ctrl.Tasks()[0].Title)
	calls := h.srv.Calls()
	require.NotEmpty(t, calls)
	var query string
	for _, c := range calls {
		if c.Route == "/tasks/get-all-tasks" {
			query = c.Query.Get("priority")
		}
	}
	assert.Equal(t, "Low", query)

	h.press(runes("x"))

	assert.Equal(t, models.DefaultFilters(), h.ctrl.Filters())
	assert.Len(t, h.ctrl.Tasks(), 2)
}

func TestBoardView_ClearWithoutActiveFiltersMakesNoCall(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.press(runes("x"))

	assert.Empty(t, h.srv.Calls())
}

func TestBoardView_AssigneeFilterCyclesThroughUsers(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.press(runes("a"))
	assert.Equal(t, h.user.ID, h.ctrl.Filters().Assignee)

	h.press(runes("a"))
	assert.Equal(t, models.FilterAll, h.ctrl.Filters().Assignee)
}

func TestBoardView_NavigationWrapsColumns(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.press(runes("h"))
	assert.Equal(t, 3, h.view.Column())
	h.press(runes("l"))
	assert.Equal(t, 0, h.view.Column())
}

func TestBoardView_NewOpensEditorInFocusedColumn(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.press(runes("l"), runes("n"))

	ed := h.view.Editor()
	require.True(t, ed.Active())
	assert.Equal(t, string(models.StatusInProgress), ed.Form().Status)
	assert.Empty(t, h.srv.Calls())
}

func TestBoardView_LogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	h.press(runes("L"))

	assert.Equal(t, 1, h.session.loggedOut)
}

func TestBoardView_ViewShowsColumnsAndFilters(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "Visible card", Status: models.StatusDone})
	h.load(t)
	h.press(runes("p"))

	out := h.view.View()
	for _, status := range models.Statuses() {
		assert.Contains(t, out, string(status))
	}
	assert.Contains(t, out, "Filters active")
	assert.Contains(t, out, "Ann")
}

func TestBoardView_LatestFilterKeyWinsWhicheverLoadFinishesLast(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "low", Priority: models.PriorityLow, Status: models.StatusBacklog})
	h.srv.AddTask(models.Task{Title: "medium", Priority: models.PriorityMedium, Status: models.StatusBacklog})
	h.srv.AddTask(models.Task{Title: "high", Priority: models.PriorityHigh, Status: models.StatusBacklog})
	h.load(t)

	_, first := h.view.Update(runes("p"))
	_, second := h.view.Update(runes("p"))
	assert.Equal(t, string(models.PriorityMedium), h.ctrl.Filters().Priority)

	h.feed(second)
	h.feed(first)

	assert.Equal(t, string(models.PriorityMedium), h.ctrl.Filters().Priority)
	assert.Equal(t, string(models.PriorityMedium), h.view.snap.Filters.Priority)
	tasks := h.ctrl.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "medium", tasks[0].Title)
	assert.False(t, h.view.snap.Loading)
	assert.Contains(t, h.view.View(), "Priority: Medium")
	assert.Equal(t, 2, h.srv.CallsTo(http.MethodGet, "/tasks/get-all-tasks"))
}

func TestBoardView_ResetForgetsPreviousBoard(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTask(models.Task{Title: "Private card", Priority: models.PriorityHigh, Status: models.StatusBacklog})
	h.load(t)
	h.press(runes("p"), runes("p"), runes("p"))
	require.Equal(t, string(models.PriorityHigh), h.ctrl.Filters().Priority)
	require.Contains(t, h.view.View(), "Private card")

	h.view.Reset()

	assert.Empty(t, h.ctrl.Tasks())
	assert.Empty(t, h.ctrl.Users())
	assert.Equal(t, models.DefaultFilters(), h.ctrl.Filters())
	assert.Equal(t, models.DefaultFilters(), h.view.snap.Filters)
	out := h.view.View()
	assert.NotContains(t, out, "Private card")
	assert.NotContains(t, out, "Filters active")
}

func TestBoardView_HeaderShowsFilterBarAndHelp(t *testing.T) {
	h := newHarness(t)
	h.load(t)

	out := h.view.View()
	assert.Contains(t, out, "Assignee: All   Priority: All")
	assert.Contains(t, out, "quit")

	h.press(runes("p"))
	assert.Contains(t, h.view.View(), "Assignee: All   Priority: Low")
}

func TestHelpLine_PairsKeysWithDescriptions(t *testing.T) {
	out := helpLine(styles.NewStyles(), "q", "quit", "?", "help")
	assert.Contains(t, out, "q quit")
	assert.Contains(t, out, "? help")
	assert.Contains(t, out, " • ")
}

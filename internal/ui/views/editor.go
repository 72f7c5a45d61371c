package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/validate"
)

// EditorFocus is the part of the task editor receiving keys
type EditorFocus int

const (
	FocusTitle EditorFocus = iota
	FocusDescription
	FocusPriority
	FocusStatus
	FocusAssignee
	FocusDueDate
	FocusComments
	FocusCommentInput
)

// editorMsg reports the end of an editor operation
type editorMsg struct {
	err error
}

// TaskEditor is the modal for creating and editing a task and its comments
type TaskEditor struct {
	ctx    context.Context
	detail *board.Detail
	viewer func() string // id of the signed-in user
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	open     bool
	creating bool
	users    []models.User

	title    textinput.Model
	desc     textarea.Model
	due      textinput.Model
	priority int // index into models.Priorities
	status   int // index into models.Statuses
	assignee int // index into users, -1 for none

	focus    EditorFocus
	errs     validate.Errors
	busy     bool
	busyText string // shown in place of the help line while busy

	confirmingDelete bool

	commentCursor    int
	commentInput     textarea.Model
	editingCommentID string // set while the input edits an existing comment
}

// NewTaskEditor creates a closed editor
func NewTaskEditor(ctx context.Context, detail *board.Detail, viewer func() string) *TaskEditor {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200

	desc := textarea.New()
	desc.Placeholder = "Description (markdown)"
	desc.CharLimit = 5000
	desc.SetWidth(50)
	desc.SetHeight(4)
	desc.ShowLineNumbers = false

	due := textinput.New()
	due.Placeholder = models.DateLayout
	due.CharLimit = 10

	comment := textarea.New()
	comment.Placeholder = "Add a comment..."
	comment.CharLimit = 2000
	comment.SetWidth(50)
	comment.SetHeight(3)
	comment.ShowLineNumbers = false

	return &TaskEditor{
		ctx:          ctx,
		detail:       detail,
		viewer:       viewer,
		styles:       styles.NewStyles(),
		keys:         keys.DefaultKeyMap(),
		title:        title,
		desc:         desc,
		due:          due,
		commentInput: comment,
		assignee:     -1,
	}
}

// Active reports whether the editor is showing
func (e *TaskEditor) Active() bool {
	return e.open
}

// Focus returns the focused part of the editor
func (e *TaskEditor) Focus() EditorFocus {
	return e.focus
}

func (e *TaskEditor) resetForm(users []models.User) {
	e.open = true
	e.users = users
	e.errs = nil
	e.busy = false
	e.confirmingDelete = false
	e.commentCursor = 0
	e.editingCommentID = ""
	e.commentInput.Reset()
	e.title.Reset()
	e.desc.Reset()
	e.due.Reset()
	e.priority = 0
	e.status = 0
	e.assignee = -1
}

// OpenCreate shows an empty editor. The new task starts in column.
func (e *TaskEditor) OpenCreate(users []models.User, column models.Status) tea.Cmd {
	e.resetForm(users)
	e.creating = true
	e.status = indexOf(models.Statuses(), column)
	e.priority = indexOf(models.Priorities(), models.PriorityMedium)
	e.due.SetValue(time.Now().AddDate(0, 0, 7).Format(models.DateLayout))
	e.detail.OpenForCreate()
	e.setFocus(FocusTitle)
	return textinput.Blink
}

// OpenEdit shows the editor filled from task and fetches its comments
func (e *TaskEditor) OpenEdit(task models.Task, users []models.User) tea.Cmd {
	e.resetForm(users)
	e.creating = false
	e.title.SetValue(task.Title)
	e.desc.SetValue(task.Description)
	e.priority = indexOf(models.Priorities(), task.Priority)
	e.status = indexOf(models.Statuses(), task.Status)
	if !task.DueDate.IsZero() {
		e.due.SetValue(task.DueDate.String())
	}
	if !task.Assignee.IsZero() {
		e.assignee = -1
		for i, u := range e.users {
			if u.ID == task.Assignee.ID {
				e.assignee = i
			}
		}
		if e.assignee < 0 {
			e.users = append(e.users, models.User{ID: task.Assignee.ID, Name: task.Assignee.Name, Email: task.Assignee.Email})
			e.assignee = len(e.users) - 1
		}
	}
	e.setFocus(FocusTitle)
	e.detail.Select(task)
	return tea.Batch(textinput.Blink, func() tea.Msg {
		e.detail.RefreshComments(e.ctx)
		return boardChangedMsg{}
	})
}

func indexOf[T comparable](all []T, v T) int {
	for i, x := range all {
		if x == v {
			return i
		}
	}
	return 0
}

func (e *TaskEditor) close() {
	e.open = false
	e.detail.Close()
	e.title.Blur()
	e.desc.Blur()
	e.due.Blur()
	e.commentInput.Blur()
}

// sync follows changes made to the detail state outside the editor, such
// as the board deleting the task on display
func (e *TaskEditor) sync() {
	if e.open && !e.detail.IsOpen() {
		e.close()
	}
	if n := len(e.detail.View().Comments); e.commentCursor >= n {
		e.commentCursor = max(0, n-1)
	}
}

func (e *TaskEditor) focusCount() int {
	if e.creating {
		return int(FocusDueDate) + 1
	}
	return int(FocusCommentInput) + 1
}

// start marks an operation in flight; keys are ignored until it reports back
func (e *TaskEditor) start(text string) {
	e.busy = true
	e.busyText = text
}

func (e *TaskEditor) setFocus(f EditorFocus) {
	e.focus = f
	e.title.Blur()
	e.desc.Blur()
	e.due.Blur()
	e.commentInput.Blur()
	switch f {
	case FocusTitle:
		e.title.Focus()
	case FocusDescription:
		e.desc.Focus()
	case FocusDueDate:
		e.due.Focus()
	case FocusCommentInput:
		e.commentInput.Focus()
	}
}

// Form collects the editor fields for validation
func (e *TaskEditor) Form() validate.TaskForm {
	f := validate.TaskForm{
		Title:       e.title.Value(),
		Description: e.desc.Value(),
		Priority:    string(models.Priorities()[e.priority]),
		Status:      string(models.Statuses()[e.status]),
		DueDate:     e.due.Value(),
	}
	if e.assignee >= 0 && e.assignee < len(e.users) {
		f.AssigneeID = e.users[e.assignee].ID
	}
	return f
}

func (e *TaskEditor) Update(msg tea.Msg) (*TaskEditor, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.width = msg.Width
		e.height = msg.Height
		inputWidth := clamp(styles.ContentWidth(e.width)-14, 20, 60)
		e.desc.SetWidth(inputWidth)
		e.commentInput.SetWidth(inputWidth)
		return e, nil

	case editorMsg:
		e.busy = false
		var verrs validate.Errors
		if errors.As(msg.err, &verrs) {
			e.errs = verrs
		} else if msg.err == nil {
			e.errs = nil
		}
		e.sync()
		return e, nil

	case tea.KeyMsg:
		if e.busy {
			return e, nil
		}
		if e.confirmingDelete {
			return e.updateConfirmDelete(msg)
		}
		switch e.focus {
		case FocusCommentInput:
			return e.updateCommentInput(msg)
		case FocusComments:
			if cmd, ok := e.updateComments(msg); ok {
				return e, cmd
			}
		}
		return e.updateForm(msg)
	}
	return e, nil
}

func (e *TaskEditor) updateConfirmDelete(msg tea.KeyMsg) (*TaskEditor, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		e.confirmingDelete = false
		e.start("Deleting task...")
		return e, func() tea.Msg {
			return editorMsg{err: e.detail.Delete(e.ctx)}
		}
	case "n", "N", "esc":
		e.confirmingDelete = false
	}
	return e, nil
}

func (e *TaskEditor) updateForm(msg tea.KeyMsg) (*TaskEditor, tea.Cmd) {
	switch {
	case key.Matches(msg, e.keys.Back):
		e.close()
		return e, nil

	case key.Matches(msg, e.keys.Save):
		e.start("Saving...")
		form := e.Form()
		return e, func() tea.Msg {
			return editorMsg{err: e.detail.Save(e.ctx, form)}
		}

	case key.Matches(msg, e.keys.Delete):
		if !e.creating {
			e.confirmingDelete = true
		}
		return e, nil

	case key.Matches(msg, e.keys.Tab):
		e.setFocus(EditorFocus(cycle(int(e.focus), e.focusCount(), 1)))
		return e, nil

	case msg.String() == "shift+tab":
		e.setFocus(EditorFocus(cycle(int(e.focus), e.focusCount(), -1)))
		return e, nil
	}

	dir := 0
	switch {
	case key.Matches(msg, e.keys.Left):
		dir = -1
	case key.Matches(msg, e.keys.Right), msg.String() == " ":
		dir = 1
	}

	var cmd tea.Cmd
	switch e.focus {
	case FocusTitle:
		if key.Matches(msg, e.keys.Enter) {
			e.setFocus(FocusDescription)
			return e, nil
		}
		e.title, cmd = e.title.Update(msg)
	case FocusDescription:
		e.desc, cmd = e.desc.Update(msg)
	case FocusPriority:
		e.priority = cycle(e.priority, len(models.Priorities()), dir)
	case FocusStatus:
		e.status = cycle(e.status, len(models.Statuses()), dir)
	case FocusAssignee:
		// -1 (unassigned) is part of the cycle
		if dir != 0 {
			e.assignee = cycle(e.assignee+1, len(e.users)+1, dir) - 1
		}
	case FocusDueDate:
		e.due, cmd = e.due.Update(msg)
	}
	return e, cmd
}

// updateComments handles the comment list; ok is false when the key
// belongs to the form
func (e *TaskEditor) updateComments(msg tea.KeyMsg) (tea.Cmd, bool) {
	comments := e.detail.View().Comments
	switch {
	case key.Matches(msg, e.keys.Up):
		if e.commentCursor > 0 {
			e.commentCursor--
		}
		return nil, true
	case key.Matches(msg, e.keys.Down):
		if e.commentCursor < len(comments)-1 {
			e.commentCursor++
		}
		return nil, true
	case key.Matches(msg, e.keys.Comment):
		e.editingCommentID = ""
		e.commentInput.Reset()
		e.setFocus(FocusCommentInput)
		return textarea.Blink, true
	case key.Matches(msg, e.keys.EditItem):
		if c, ok := e.selectedComment(comments); ok && board.CanDeleteComment(c, e.viewer()) {
			e.editingCommentID = c.ID
			e.commentInput.SetValue(c.Body)
			e.setFocus(FocusCommentInput)
			return textarea.Blink, true
		}
		return nil, true
	case key.Matches(msg, e.keys.RemoveItem):
		c, ok := e.selectedComment(comments)
		if !ok || !board.CanDeleteComment(c, e.viewer()) {
			return nil, true
		}
		e.start("Deleting comment...")
		return func() tea.Msg {
			return editorMsg{err: e.detail.DeleteComment(e.ctx, c.ID)}
		}, true
	}
	return nil, false
}

func (e *TaskEditor) selectedComment(comments []models.Comment) (models.Comment, bool) {
	if e.commentCursor < 0 || e.commentCursor >= len(comments) {
		return models.Comment{}, false
	}
	return comments[e.commentCursor], true
}

func (e *TaskEditor) updateCommentInput(msg tea.KeyMsg) (*TaskEditor, tea.Cmd) {
	switch {
	case key.Matches(msg, e.keys.Back):
		e.editingCommentID = ""
		e.commentInput.Reset()
		e.setFocus(FocusComments)
		return e, nil

	case key.Matches(msg, e.keys.Save):
		body := e.commentInput.Value()
		id := e.editingCommentID
		e.editingCommentID = ""
		e.commentInput.Reset()
		e.setFocus(FocusComments)
		if strings.TrimSpace(body) == "" {
			return e, nil
		}
		e.start("Posting comment...")
		return e, func() tea.Msg {
			if id != "" {
				return editorMsg{err: e.detail.EditComment(e.ctx, id, body)}
			}
			return editorMsg{err: e.detail.AddComment(e.ctx, body)}
		}
	}
	var cmd tea.Cmd
	e.commentInput, cmd = e.commentInput.Update(msg)
	return e, cmd
}

// View renders the editor
func (e *TaskEditor) View() string {
	if e.confirmingDelete {
		return e.renderDeleteConfirm()
	}

	s := e.styles
	contentWidth := styles.ContentWidth(e.width)
	textWidth := clamp(contentWidth-14, 20, 60)
	label := func(text string, f EditorFocus) string {
		if e.focus == f {
			return s.HelpKey.Render("▸ " + text)
		}
		return s.TitleMuted.Render("  " + text)
	}
	input := func(view string, f EditorFocus) string {
		st := s.Input
		if e.focus == f {
			st = s.InputFocused
		}
		return st.Width(textWidth).Render(view)
	}
	choice := func(value string, color lipgloss.Color, f EditorFocus) string {
		text := lipgloss.NewStyle().Foreground(color).Bold(true).Render(value)
		if e.focus == f {
			return "  ‹ " + text + " ›"
		}
		return "  " + text
	}

	heading := "Edit task"
	if e.creating {
		heading = "New task"
	}

	desc := e.desc.View()
	if e.focus != FocusDescription && strings.TrimSpace(e.desc.Value()) != "" {
		desc = renderMarkdown(e.desc.Value(), textWidth-4)
	}

	priority := models.Priorities()[e.priority]
	status := models.Statuses()[e.status]
	assignee := "Unassigned"
	if e.assignee >= 0 && e.assignee < len(e.users) {
		assignee = e.users[e.assignee].DisplayName()
	}

	rows := []string{s.Title.Render(heading), ""}
	add := func(name string, f EditorFocus, view, errKey string) {
		rows = append(rows, label(name, f), view)
		if msg := e.errs[errKey]; msg != "" {
			rows = append(rows, s.FieldError.Render("  "+msg))
		}
	}
	add("Title", FocusTitle, input(e.title.View(), FocusTitle), "title")
	add("Description", FocusDescription, input(desc, FocusDescription), "description")
	add("Priority", FocusPriority, choice(string(priority), styles.PriorityColor(priority), FocusPriority), "priority")
	add("Status", FocusStatus, choice(string(status), styles.ColumnColor(status), FocusStatus), "status")
	add("Assignee", FocusAssignee, choice(assignee, styles.Current.Foreground, FocusAssignee), "assigneeId")
	add("Due date", FocusDueDate, input(e.due.View(), FocusDueDate), "dueDate")
	if !e.creating {
		rows = append(rows, "", label("Comments", FocusComments), e.renderComments(textWidth))
		rows = append(rows, "", input(e.commentInput.View(), FocusCommentInput))
	}
	if e.busy {
		rows = append(rows, s.Help.Render(s.FilterActive.Render(e.busyText)))
	} else {
		rows = append(rows, e.renderHelp())
	}

	content := s.Modal.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return styles.CenterView(content, e.width, e.height)
}

func (e *TaskEditor) renderComments(width int) string {
	s := e.styles
	view := e.detail.View()
	if len(view.Comments) == 0 {
		return s.TitleMuted.Render("  No comments yet")
	}
	viewer := e.viewer()
	var lines []string
	for i, c := range view.Comments {
		author := c.Author.Label(e.users)
		if board.CanDeleteComment(c, viewer) {
			author += " (you)"
		}
		header := fmt.Sprintf("%s · %s", author, c.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM"))
		st := s.ListItem
		if e.focus == FocusComments && i == e.commentCursor {
			st = s.ListSelected
		}
		lines = append(lines, lipgloss.JoinVertical(lipgloss.Left,
			st.Render(header),
			lipgloss.NewStyle().Width(width).PaddingLeft(4).Render(c.Body),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (e *TaskEditor) renderHelp() string {
	s := e.styles
	switch e.focus {
	case FocusCommentInput:
		return helpLine(s, "ctrl+s", "post", "esc", "cancel")
	case FocusComments:
		return helpLine(s, "c", "comment", "e", "edit yours", "x", "delete yours", "tab", "next", "esc", "close")
	}
	pairs := []string{"tab", "next field", "←/→", "change", "ctrl+s", "save"}
	if !e.creating {
		pairs = append(pairs, "ctrl+d", "delete")
	}
	return helpLine(s, append(pairs, "esc", "close")...)
}

func (e *TaskEditor) renderDeleteConfirm() string {
	s := e.styles
	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be removed with its comments.", e.title.Value())),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)
	placed := lipgloss.Place(styles.ContentWidth(e.width), e.height,
		lipgloss.Center, lipgloss.Center,
		s.Modal.Render(content),
	)
	return styles.CenterView(placed, e.width, e.height)
}

package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// Board layout in terminal cells. Mouse hit-testing depends on these.
const (
	headerHeight = 5 // title, bordered filter bar, blank line
	cardHeight   = 4 // border, title, badges, border
	cardsOffset  = 2 // column border and column title above the first card
	footerHeight = 4
)

// Session is the signed-in user as the board sees it. *session.Store satisfies it.
type Session interface {
	Current() (models.Session, bool)
	Logout()
}

// boardChangedMsg is sent after any controller operation finishes
type boardChangedMsg struct{}

// BoardView shows the four columns and owns keyboard and mouse drag-and-drop
type BoardView struct {
	ctx     context.Context
	ctrl    *board.Controller
	drag    *board.Drag
	editor  *TaskEditor
	session Session
	styles  *styles.Styles
	keys    keys.KeyMap
	spinner spinner.Model

	width  int
	height int

	snap   board.Snapshot
	column int   // focused column
	rows   []int // cursor per column
	scroll []int // first visible card per column

	showHelpPopup bool
}

// NewBoardView creates the board. Call Init to load it.
func NewBoardView(ctx context.Context, ctrl *board.Controller, detail *board.Detail, sess Session) *BoardView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Current.Accent)

	n := len(models.Statuses())
	v := &BoardView{
		ctx:     ctx,
		ctrl:    ctrl,
		drag:    &board.Drag{},
		session: sess,
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
		spinner: sp,
		rows:    make([]int, n),
		scroll:  make([]int, n),
		snap:    ctrl.Snapshot(),
	}
	v.editor = NewTaskEditor(ctx, detail, v.viewerID)
	return v
}

func (v *BoardView) viewerID() string {
	sess, ok := v.session.Current()
	if !ok {
		return ""
	}
	return sess.UserID()
}

// Init loads the board with default filters
func (v *BoardView) Init() tea.Cmd {
	v.snap.Loading = true
	return tea.Batch(v.spinner.Tick, v.setFilters(models.DefaultFilters()))
}

// Reset forgets everything shown for the previous session
func (v *BoardView) Reset() {
	v.ctrl.Clear()
	v.snap = v.ctrl.Snapshot()
	v.drag.Cancel()
	if v.editor.Active() {
		v.editor.close()
	}
	v.column = 0
	for i := range v.rows {
		v.rows[i] = 0
		v.scroll[i] = 0
	}
	v.showHelpPopup = false
}

// Editor returns the task editor
func (v *BoardView) Editor() *TaskEditor {
	return v.editor
}

// Drag returns the drag state
func (v *BoardView) Drag() *board.Drag {
	return v.drag
}

// Column returns the index of the focused column
func (v *BoardView) Column() int {
	return v.column
}

func (v *BoardView) run(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return boardChangedMsg{}
	}
}

// fetch runs an issued load. The ticket is taken in Update so that key
// presses, not command scheduling, order the loads.
func (v *BoardView) fetch(t board.Ticket) tea.Cmd {
	v.snap.Filters = t.Filters()
	v.snap.Loading = true
	return v.run(func() { v.ctrl.Fetch(v.ctx, t) })
}

func (v *BoardView) reload() tea.Cmd {
	return v.fetch(v.ctrl.BeginReload())
}

func (v *BoardView) setFilters(f models.Filters) tea.Cmd {
	return v.fetch(v.ctrl.Begin(f))
}

func (v *BoardView) move(mv board.Move) tea.Cmd {
	v.column = indexOf(models.Statuses(), mv.To)
	return v.run(func() {
		// errors are reported through notifications
		_, _ = v.ctrl.MoveTask(v.ctx, mv.TaskID, mv.To)
	})
}

func (v *BoardView) refresh() {
	v.snap = v.ctrl.Snapshot()
	for i, status := range models.Statuses() {
		n := len(v.snap.Column(status))
		v.rows[i] = clamp(v.rows[i], 0, max(0, n-1))
		v.ensureVisible(i)
	}
}

func (v *BoardView) columnTasks(i int) []models.Task {
	return v.snap.Column(models.Statuses()[i])
}

func (v *BoardView) selected() (models.Task, bool) {
	tasks := v.columnTasks(v.column)
	if len(tasks) == 0 {
		return models.Task{}, false
	}
	return tasks[v.rows[v.column]], true
}

// Update handles messages
func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.editor.Update(msg)
		for i := range v.rows {
			v.ensureVisible(i)
		}
		return v, nil

	case boardChangedMsg:
		v.refresh()
		v.editor.sync()
		return v, nil

	case editorMsg:
		_, cmd := v.editor.Update(msg)
		v.refresh()
		return v, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case tea.MouseMsg:
		if v.editor.Active() {
			return v, nil
		}
		return v.updateMouse(msg)

	case tea.KeyMsg:
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}
		if v.editor.Active() {
			_, cmd := v.editor.Update(msg)
			return v, cmd
		}
		if v.drag.State() == board.Dragging {
			return v.updateDragging(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *BoardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(models.Statuses())
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Left):
		v.column = cycle(v.column, n, -1)
		return v, nil

	case key.Matches(msg, v.keys.Right), key.Matches(msg, v.keys.Tab):
		v.column = cycle(v.column, n, 1)
		return v, nil

	case msg.String() == "shift+tab":
		v.column = cycle(v.column, n, -1)
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.rows[v.column] > 0 {
			v.rows[v.column]--
			v.ensureVisible(v.column)
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.rows[v.column] < len(v.columnTasks(v.column))-1 {
			v.rows[v.column]++
			v.ensureVisible(v.column)
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if task, ok := v.selected(); ok {
			return v, v.editor.OpenEdit(task, v.snap.Users)
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		return v, v.editor.OpenCreate(v.snap.Users, models.Statuses()[v.column])

	case key.Matches(msg, v.keys.Grab):
		if task, ok := v.selected(); ok {
			v.drag.StartDrag(task)
			v.drag.Hover(task.Status)
		}
		return v, nil

	case key.Matches(msg, v.keys.Refresh):
		return v, v.reload()

	case key.Matches(msg, v.keys.Assignee):
		f := v.snap.Filters
		options := []string{models.FilterAll}
		for _, u := range v.snap.Users {
			options = append(options, u.ID)
		}
		f.Assignee = options[cycle(indexOf(options, f.Assignee), len(options), 1)]
		return v, v.setFilters(f)

	case key.Matches(msg, v.keys.Priority):
		f := v.snap.Filters
		options := []string{models.FilterAll}
		for _, p := range models.Priorities() {
			options = append(options, string(p))
		}
		f.Priority = options[cycle(indexOf(options, f.Priority), len(options), 1)]
		return v, v.setFilters(f)

	case key.Matches(msg, v.keys.ClearFilters):
		if !v.snap.Filters.Active() {
			return v, nil
		}
		return v, v.setFilters(models.DefaultFilters())

	case key.Matches(msg, v.keys.Logout):
		v.Reset()
		v.session.Logout()
		return v, nil

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}
	return v, nil
}

// updateDragging moves the held card between columns from the keyboard
func (v *BoardView) updateDragging(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(models.Statuses())
	switch {
	case key.Matches(msg, v.keys.Back):
		v.drag.Cancel()
		return v, nil

	case key.Matches(msg, v.keys.Left), key.Matches(msg, v.keys.Right):
		dir := 1
		if key.Matches(msg, v.keys.Left) {
			dir = -1
		}
		target := v.column
		if col, ok := v.drag.HoverColumn(); ok {
			target = indexOf(models.Statuses(), col)
		}
		v.drag.Hover(models.Statuses()[cycle(target, n, dir)])
		return v, nil

	case key.Matches(msg, v.keys.Grab), key.Matches(msg, v.keys.Enter):
		col, ok := v.drag.HoverColumn()
		if !ok {
			v.drag.Cancel()
			return v, nil
		}
		if mv, ok := v.drag.Drop(col); ok {
			return v, v.move(mv)
		}
		return v, nil

	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

// layout returns each column's width and height in cells
func (v *BoardView) layout() (colWidth, colHeight int) {
	n := len(models.Statuses())
	colWidth = max(styles.BoardWidth(v.width)/n, 12)
	colHeight = max(v.height-headerHeight-footerHeight, cardsOffset+cardHeight+1)
	return colWidth, colHeight
}

// ColumnRect is the bounding region of column i on screen
func (v *BoardView) ColumnRect(i int) board.Rect {
	w, h := v.layout()
	return board.Rect{X: i * w, Y: headerHeight, Width: w, Height: h}
}

func (v *BoardView) visibleCards() int {
	_, h := v.layout()
	return max(1, (h-cardsOffset-1)/cardHeight)
}

func (v *BoardView) ensureVisible(i int) {
	visible := v.visibleCards()
	if v.rows[i] < v.scroll[i] {
		v.scroll[i] = v.rows[i]
	} else if v.rows[i] >= v.scroll[i]+visible {
		v.scroll[i] = v.rows[i] - visible + 1
	}
}

// columnAt finds the column under p
func (v *BoardView) columnAt(p board.Point) (int, bool) {
	for i := range models.Statuses() {
		if v.ColumnRect(i).Contains(p) {
			return i, true
		}
	}
	return 0, false
}

// cardAt finds the card under p
func (v *BoardView) cardAt(p board.Point) (col, row int, ok bool) {
	col, ok = v.columnAt(p)
	if !ok {
		return 0, 0, false
	}
	top := headerHeight + cardsOffset
	if p.Y < top {
		return 0, 0, false
	}
	row = (p.Y-top)/cardHeight + v.scroll[col]
	if row >= len(v.columnTasks(col)) || row >= v.scroll[col]+v.visibleCards() {
		return 0, 0, false
	}
	return col, row, true
}

func (v *BoardView) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	p := board.Point{X: msg.X, Y: msg.Y}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return v, nil
		}
		col, row, ok := v.cardAt(p)
		if !ok {
			return v, nil
		}
		v.column, v.rows[col] = col, row
		task := v.columnTasks(col)[row]
		v.drag.StartDrag(task)
		v.drag.Hover(task.Status)
		return v, nil

	case tea.MouseActionMotion:
		if v.drag.State() != board.Dragging {
			return v, nil
		}
		if hovered, ok := v.drag.HoverColumn(); ok {
			v.drag.LeaveHover(p, v.ColumnRect(indexOf(models.Statuses(), hovered)))
		}
		if col, ok := v.columnAt(p); ok {
			v.drag.Hover(models.Statuses()[col])
		}
		return v, nil

	case tea.MouseActionRelease:
		if v.drag.State() != board.Dragging {
			return v, nil
		}
		col, ok := v.drag.HoverColumn()
		if !ok {
			v.drag.Cancel()
			return v, nil
		}
		if mv, ok := v.drag.Drop(col); ok {
			return v, v.move(mv)
		}
		return v, nil
	}
	return v, nil
}

// View renders the board
func (v *BoardView) View() string {
	if v.editor.Active() {
		return v.editor.View()
	}
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderColumns())
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *BoardView) renderHeader() string {
	s := v.styles
	title := s.Title.Render("Team Task Board")
	if sess, ok := v.session.Current(); ok {
		title += s.TitleMuted.Render("  signed in as " + sess.User.DisplayName())
	}
	if v.snap.Loading {
		title += "  " + v.spinner.View() + s.TitleMuted.Render(" Loading...")
	}

	f := v.snap.Filters
	assignee := "All"
	if f.Assignee != models.FilterAll && f.Assignee != "" {
		assignee = models.UserRef{ID: f.Assignee}.Label(v.snap.Users)
	}
	priority := "All"
	if f.Priority != models.FilterAll && f.Priority != "" {
		priority = f.Priority
	}
	filters := fmt.Sprintf("Assignee: %s   Priority: %s", assignee, priority)
	if f.Active() {
		filters += "   " + s.FilterActive.Render("Filters active")
	}
	return title + "\n" + s.FilterBar.Render(s.TitleMuted.Render(filters))
}

func (v *BoardView) renderColumns() string {
	s := v.styles
	colWidth, colHeight := v.layout()
	inner := colWidth - 2
	hovered, hovering := v.drag.HoverColumn()
	dragged, dragging := v.drag.Dragged()
	now := time.Now()

	var cols []string
	for i, status := range models.Statuses() {
		tasks := v.columnTasks(i)
		head := s.ColumnTitle.Foreground(styles.ColumnColor(status)).
			Render(truncate(fmt.Sprintf("%s (%d)", status, len(tasks)), inner-2))

		lines := []string{head}
		end := min(v.scroll[i]+v.visibleCards(), len(tasks))
		for r := v.scroll[i]; r < end; r++ {
			task := tasks[r]
			st := s.Card
			switch {
			case dragging && task.ID == dragged.ID:
				st = s.CardDragged
			case i == v.column && r == v.rows[i]:
				st = s.CardSelected
			}
			lines = append(lines, st.Width(inner-2).Render(v.renderCard(task, inner-2, now)))
		}
		if len(tasks) == 0 {
			lines = append(lines, s.TitleMuted.Render(" No tasks"))
		}

		colStyle := s.Column
		if hovering && hovered == status {
			colStyle = s.ColumnTarget
		}
		cols = append(cols, colStyle.Width(inner).Height(colHeight-2).
			Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (v *BoardView) renderCard(task models.Task, width int, now time.Time) string {
	s := v.styles
	title := truncate(task.Title, width)

	badges := []string{
		s.Badge.Foreground(styles.PriorityColor(task.Priority)).Render(string(task.Priority)),
	}
	if !task.DueDate.IsZero() {
		due := models.DueStateOf(task, now)
		badges = append(badges, s.Badge.Foreground(styles.DueColor(due)).Render(string(due)))
	}
	if !task.Assignee.IsZero() {
		badges = append(badges, s.TitleMuted.Render(task.Assignee.Label(v.snap.Users)))
	}
	meta := strings.Join(badges, " ")
	if lipgloss.Width(meta) > width {
		meta = badges[0]
	}
	return title + "\n" + meta
}

// truncate shortens s to width cells, marking the cut with an ellipsis
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

func (v *BoardView) renderHelp() string {
	if v.drag.State() == board.Dragging {
		return helpLine(v.styles, "←/→", "choose column", "space/↵", "drop", "esc", "cancel")
	}
	if styles.BoardWidth(v.width) < 100 {
		return helpLine(v.styles, "?", "help", "q", "quit")
	}
	return helpLine(v.styles,
		"←/→", "column", "↑/↓", "task", "↵", "open", "space", "move", "n", "new",
		"a", "assignee", "p", "priority", "x", "clear", "r", "refresh", "L", "log out", "q", "quit")
}

func (v *BoardView) renderHelpPopup() string {
	s := v.styles
	items := []string{
		s.HelpKey.Render("←/→") + "    switch column",
		s.HelpKey.Render("↑/↓") + "    select task",
		s.HelpKey.Render("↵") + "      open task",
		s.HelpKey.Render("space") + "  pick up / drop task",
		s.HelpKey.Render("mouse") + "  drag a card to another column",
		s.HelpKey.Render("n") + "      new task",
		s.HelpKey.Render("a") + "      cycle assignee filter",
		s.HelpKey.Render("p") + "      cycle priority filter",
		s.HelpKey.Render("x") + "      clear filters",
		s.HelpKey.Render("r") + "      refresh",
		s.HelpKey.Render("L") + "      log out",
		s.HelpKey.Render("q") + "      quit",
		"",
		s.TitleMuted.Render("Press any key to close"),
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, items...)...,
	)
	return lipgloss.Place(styles.BoardWidth(v.width), v.height,
		lipgloss.Center, lipgloss.Center,
		s.Modal.Render(content),
	)
}

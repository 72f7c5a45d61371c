package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/session"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/ui/views"
)

// ToastDuration is how long a notification stays on screen
const ToastDuration = 3 * time.Second

// Screen is the currently active view
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenRegister
	ScreenBoard
)

// Events carries notifications and session changes from background work
// into the program. It implements board.Notifier.
type Events struct {
	ch     chan tea.Msg
	logger *zap.Logger
}

// NewEvents creates an event queue
func NewEvents(logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{ch: make(chan tea.Msg, 64), logger: logger}
}

func (e *Events) Notify(n board.Notification) {
	e.send(n)
}

// SessionChanged is a session.Store subscriber
func (e *Events) SessionChanged(c session.Change) {
	e.send(c)
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
		e.logger.Warn("event queue full, dropping event", zap.Any("event", msg))
	}
}

// wait delivers the next event as a message
func (e *Events) wait() tea.Msg {
	return <-e.ch
}

type toastExpiredMsg struct {
	id int
}

// Deps are the collaborators the app drives
type Deps struct {
	Session *session.Store
	Board   *board.Controller
	Detail  *board.Detail
	Events  *Events
	Logger  *zap.Logger
}

type App struct {
	ctx    context.Context
	deps   Deps
	styles *styles.Styles
	screen Screen

	login    *views.LoginView
	register *views.RegisterView
	board    *views.BoardView

	toast   *board.Notification
	toastID int

	width  int
	height int
}

// NewApp creates the application. The session must already be restored.
func NewApp(ctx context.Context, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &App{
		ctx:      ctx,
		deps:     deps,
		styles:   styles.NewStyles(),
		login:    views.NewLoginView(ctx, deps.Session, deps.Events),
		register: views.NewRegisterView(ctx, deps.Session, deps.Events),
		board:    views.NewBoardView(ctx, deps.Board, deps.Detail, deps.Session),
	}
	if deps.Session.Authenticated() {
		a.screen = ScreenBoard
	}
	return a
}

// Screen returns the active screen
func (a *App) Screen() Screen {
	return a.screen
}

// Toast returns the notification on display
func (a *App) Toast() (board.Notification, bool) {
	if a.toast == nil {
		return board.Notification{}, false
	}
	return *a.toast, true
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.deps.Events.wait}
	switch a.screen {
	case ScreenBoard:
		cmds = append(cmds, a.board.Init())
	default:
		cmds = append(cmds, a.login.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) resize() tea.Cmd {
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: a.width, Height: a.height}
	}
}

func (a *App) showToast(n board.Notification) tea.Cmd {
	a.toast = &n
	a.toastID++
	id := a.toastID
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// every screen keeps its size while hidden
		a.login.Update(msg)
		a.register.Update(msg)
		a.board.Update(msg)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

	case board.Notification:
		return a, tea.Batch(a.showToast(msg), a.deps.Events.wait)

	case toastExpiredMsg:
		if msg.id == a.toastID {
			a.toast = nil
		}
		return a, nil

	case session.Change:
		return a, tea.Batch(a.sessionChanged(msg), a.deps.Events.wait)

	case views.ShowRegister:
		a.screen = ScreenRegister
		return a, a.register.Init()

	case views.ShowLogin:
		a.screen = ScreenLogin
		return a, a.login.Init()
	}

	var cmd tea.Cmd
	switch a.screen {
	case ScreenLogin:
		_, cmd = a.login.Update(msg)
	case ScreenRegister:
		_, cmd = a.register.Update(msg)
	case ScreenBoard:
		_, cmd = a.board.Update(msg)
	}
	return a, cmd
}

func (a *App) sessionChanged(c session.Change) tea.Cmd {
	a.deps.Logger.Debug("session changed", zap.Stringer("reason", c.Reason))
	switch c.Reason {
	case session.SignedIn:
		a.screen = ScreenBoard
		a.login.Clear()
		a.register.Clear()
		a.board.Reset()
		return tea.Batch(a.board.Init(), a.resize())

	case session.SignedOut:
		a.board.Reset()
		a.screen = ScreenLogin
		return tea.Batch(
			a.showToast(board.Notification{Level: board.Info, Message: "Logged out successfully"}),
			a.login.Init(),
		)

	case session.Expired:
		// concurrent requests can each report the same expiry
		if a.screen != ScreenBoard {
			return nil
		}
		a.board.Reset()
		a.screen = ScreenLogin
		return tea.Batch(
			a.showToast(board.Notification{Level: board.Failure, Message: "Session expired, please log in again"}),
			a.login.Init(),
		)
	}
	return nil
}

func (a *App) View() string {
	var content string
	switch a.screen {
	case ScreenRegister:
		content = a.register.View()
	case ScreenBoard:
		content = a.board.View()
	default:
		content = a.login.View()
	}
	if a.toast == nil {
		return content
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, a.renderToast())
}

func (a *App) renderToast() string {
	st := a.styles.ToastInfo
	switch a.toast.Level {
	case board.Success:
		st = a.styles.ToastSuccess
	case board.Failure:
		st = a.styles.ToastError
	}
	return st.Render(a.toast.Message)
}

package views

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
	"github.com/tgienger/taskboard/internal/validate"
)

// Authenticator signs users in. *session.Store satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, f validate.RegisterForm) error
}

// field is one labelled input of an auth form
type field struct {
	label string
	key   string // validate.Errors key
	input textinput.Model
}

// authForm is the shared state of the login and register screens
type authForm struct {
	ctx      context.Context
	auth     Authenticator
	notifier board.Notifier
	styles   *styles.Styles
	keys     keys.KeyMap

	width  int
	height int

	fields     []field
	focus      int // len(fields) is the submit button
	errs       validate.Errors
	message    string // server-side failure, e.g. invalid credentials
	submitting bool
}

func newField(label, errKey, placeholder string, secret bool) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 200
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return field{label: label, key: errKey, input: in}
}

func (f *authForm) value(i int) string {
	return f.fields[i].input.Value()
}

func (f *authForm) setFocus(i int) tea.Cmd {
	f.focus = cycle(i, len(f.fields)+1, 0)
	for j := range f.fields {
		f.fields[j].input.Blur()
	}
	if f.focus < len(f.fields) {
		f.fields[f.focus].input.Focus()
		return textinput.Blink
	}
	return nil
}

// Clear empties the form
func (f *authForm) Clear() {
	f.reset()
}

func (f *authForm) reset() {
	for i := range f.fields {
		f.fields[i].input.Reset()
	}
	f.errs = nil
	f.message = ""
	f.submitting = false
	f.setFocus(0)
}

// update handles navigation; it reports true when the form should submit
func (f *authForm) update(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, f.keys.Tab), msg.String() == "down":
		return f.setFocus(f.focus + 1), false
	case msg.String() == "shift+tab", msg.String() == "up":
		return f.setFocus(f.focus + len(f.fields)), false
	case key.Matches(msg, f.keys.Enter):
		if f.focus < len(f.fields)-1 {
			return f.setFocus(f.focus + 1), false
		}
		return nil, true
	}
	if f.focus >= len(f.fields) {
		return nil, false
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd, false
}

// failed records a submission error for display
func (f *authForm) failed(err error) {
	f.submitting = false
	var verrs validate.Errors
	if errors.As(err, &verrs) {
		f.errs = verrs
		f.message = ""
		return
	}
	f.errs = nil
	f.message = err.Error()
}

func (f *authForm) render(title, submit string, help string) string {
	s := f.styles
	width := clamp(styles.ContentWidth(f.width)-10, 20, 50)

	rows := []string{s.Title.Render(title), ""}
	for i, fl := range f.fields {
		inputStyle := s.Input
		if f.focus == i {
			inputStyle = s.InputFocused
		}
		rows = append(rows, s.TitleMuted.Render(fl.label), inputStyle.Width(width).Render(fl.input.View()))
		if msg := f.errs[fl.key]; msg != "" {
			rows = append(rows, s.FieldError.Render(msg))
		}
	}
	rows = append(rows, "")

	btn := s.Button
	if f.focus == len(f.fields) {
		btn = s.ButtonFocused
	}
	label := submit
	if f.submitting {
		label = "Please wait..."
	}
	rows = append(rows, btn.Render(label))
	if f.message != "" {
		rows = append(rows, "", s.FieldError.Render(f.message))
	}
	rows = append(rows, help)

	content := s.Modal.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	placed := lipgloss.Place(styles.ContentWidth(f.width), f.height, lipgloss.Center, lipgloss.Center, content)
	return styles.CenterView(placed, f.width, f.height)
}

type authResultMsg struct {
	err error
}

// LoginView is the sign-in form
type LoginView struct {
	authForm
}

// NewLoginView creates the sign-in form
func NewLoginView(ctx context.Context, auth Authenticator, notifier board.Notifier) *LoginView {
	v := &LoginView{authForm{
		ctx:      ctx,
		auth:     auth,
		notifier: notifier,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		fields: []field{
			newField("Email", "email", "you@example.com", false),
			newField("Password", "password", "Password", true),
		},
	}}
	v.setFocus(0)
	return v
}

func (v *LoginView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case authResultMsg:
		if msg.err != nil {
			v.failed(msg.err)
			return v, nil
		}
		v.reset()
		return v, nil

	case tea.KeyMsg:
		if v.submitting {
			return v, nil
		}
		if key.Matches(msg, v.keys.SwitchForm) {
			return v, func() tea.Msg { return ShowRegister{} }
		}
		cmd, submit := v.update(msg)
		if submit {
			return v, v.submit()
		}
		return v, cmd
	}
	return v, nil
}

func (v *LoginView) submit() tea.Cmd {
	email := strings.TrimSpace(v.value(0))
	password := v.value(1)
	if err := validate.Login(validate.LoginForm{Email: email, Password: password}); err != nil {
		v.failed(err)
		return nil
	}
	v.errs = nil
	v.message = ""
	v.submitting = true
	return func() tea.Msg {
		err := v.auth.Login(v.ctx, email, password)
		if err == nil {
			v.notifier.Notify(board.Notification{Level: board.Success, Message: "Login successful!"})
		}
		return authResultMsg{err: err}
	}
}

func (v *LoginView) View() string {
	return v.render("Sign in", "Sign in",
		helpLine(v.styles, "tab", "next", "↵", "submit", "ctrl+r", "create account", "ctrl+c", "quit"))
}

// RegisterView is the account creation form
type RegisterView struct {
	authForm
}

// NewRegisterView creates the registration form
func NewRegisterView(ctx context.Context, auth Authenticator, notifier board.Notifier) *RegisterView {
	v := &RegisterView{authForm{
		ctx:      ctx,
		auth:     auth,
		notifier: notifier,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		fields: []field{
			newField("Name", "name", "Your name", false),
			newField("Email", "email", "you@example.com", false),
			newField("Password", "password", "At least 6 characters", true),
			newField("Confirm password", "confirmPassword", "Repeat password", true),
		},
	}}
	v.setFocus(0)
	return v
}

func (v *RegisterView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *RegisterView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case authResultMsg:
		if msg.err != nil {
			v.failed(msg.err)
			return v, nil
		}
		v.reset()
		return v, nil

	case tea.KeyMsg:
		if v.submitting {
			return v, nil
		}
		if key.Matches(msg, v.keys.SwitchForm) || key.Matches(msg, v.keys.Back) {
			return v, func() tea.Msg { return ShowLogin{} }
		}
		cmd, submit := v.update(msg)
		if submit {
			return v, v.submit()
		}
		return v, cmd
	}
	return v, nil
}

func (v *RegisterView) form() validate.RegisterForm {
	return validate.RegisterForm{
		Name:            strings.TrimSpace(v.value(0)),
		Email:           strings.TrimSpace(v.value(1)),
		Password:        v.value(2),
		ConfirmPassword: v.value(3),
	}
}

func (v *RegisterView) submit() tea.Cmd {
	form := v.form()
	if err := validate.Register(form); err != nil {
		v.failed(err)
		return nil
	}
	v.errs = nil
	v.message = ""
	v.submitting = true
	return func() tea.Msg {
		err := v.auth.Register(v.ctx, form)
		if err == nil {
			v.notifier.Notify(board.Notification{Level: board.Success, Message: "Registration successful!"})
		}
		return authResultMsg{err: err}
	}
}

func (v *RegisterView) View() string {
	return v.render("Create account", "Register",
		helpLine(v.styles, "tab", "next", "↵", "submit", "esc", "back to sign in", "ctrl+c", "quit"))
}

package views

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/validate"
)

type fakeAuth struct {
	logins    []validate.LoginForm
	registers []validate.RegisterForm
	err       error
}

func (f *fakeAuth) Login(_ context.Context, email, password string) error {
	f.logins = append(f.logins, validate.LoginForm{Email: email, Password: password})
	return f.err
}

func (f *fakeAuth) Register(_ context.Context, form validate.RegisterForm) error {
	f.registers = append(f.registers, form)
	return f.err
}

// fill types each value into successive fields and returns the submit command
func fill(m tea.Model, values ...string) tea.Cmd {
	var cmd tea.Cmd
	for i, v := range values {
		if v != "" {
			m.Update(runes(v))
		}
		if i < len(values)-1 {
			m.Update(tab)
		}
	}
	_, cmd = m.Update(enter)
	return cmd
}

func TestLoginView_InvalidFormMakesNoCall(t *testing.T) {
	auth := &fakeAuth{}
	v := NewLoginView(context.Background(), auth, &board.Recorder{})

	cmd := fill(v, "not-an-email", "123")

	assert.Nil(t, cmd)
	assert.Empty(t, auth.logins)
	assert.NotEmpty(t, v.errs["email"])
	assert.NotEmpty(t, v.errs["password"])
	assert.False(t, v.submitting)
}

func TestLoginView_SubmitSignsIn(t *testing.T) {
	auth := &fakeAuth{}
	rec := &board.Recorder{}
	v := NewLoginView(context.Background(), auth, rec)

	cmd := fill(v, " ann@example.com ", "secret1")
	require.NotNil(t, cmd)
	assert.True(t, v.submitting)
	assert.Contains(t, v.View(), "Please wait...")

	v.Update(cmd())

	require.Len(t, auth.logins, 1)
	assert.Equal(t, validate.LoginForm{Email: "ann@example.com", Password: "secret1"}, auth.logins[0])
	assert.Equal(t, []board.Notification{{Level: board.Success, Message: "Login successful!"}}, rec.All())
	assert.False(t, v.submitting)
	assert.Empty(t, v.value(0))
	assert.Empty(t, v.value(1))
}

func TestLoginView_ServerFailureIsShown(t *testing.T) {
	auth := &fakeAuth{err: errors.New("Invalid credentials")}
	rec := &board.Recorder{}
	v := NewLoginView(context.Background(), auth, rec)

	cmd := fill(v, "ann@example.com", "wrongpw")
	require.NotNil(t, cmd)
	v.Update(cmd())

	assert.Contains(t, v.View(), "Invalid credentials")
	assert.Empty(t, rec.All())
	assert.Equal(t, "ann@example.com", v.value(0))
}

func TestLoginView_SwitchToRegister(t *testing.T) {
	v := NewLoginView(context.Background(), &fakeAuth{}, &board.Recorder{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlR})

	require.NotNil(t, cmd)
	assert.Equal(t, ShowRegister{}, cmd())
}

func TestRegisterView_MismatchedPasswordsMakeNoCall(t *testing.T) {
	auth := &fakeAuth{}
	v := NewRegisterView(context.Background(), auth, &board.Recorder{})

	cmd := fill(v, "Ann", "ann@example.com", "secret1", "secret2")

	assert.Nil(t, cmd)
	assert.Empty(t, auth.registers)
	assert.Equal(t, "Passwords must match", v.errs["confirmPassword"])
}

func TestRegisterView_SubmitRegisters(t *testing.T) {
	auth := &fakeAuth{}
	rec := &board.Recorder{}
	v := NewRegisterView(context.Background(), auth, rec)

	cmd := fill(v, "Ann", "ann@example.com", "secret1", "secret1")
	require.NotNil(t, cmd)
	v.Update(cmd())

	require.Len(t, auth.registers, 1)
	assert.Equal(t, "Ann", auth.registers[0].Name)
	assert.Equal(t, []board.Notification{{Level: board.Success, Message: "Registration successful!"}}, rec.All())
}

func TestRegisterView_EscapeReturnsToLogin(t *testing.T) {
	v := NewRegisterView(context.Background(), &fakeAuth{}, &board.Recorder{})

	_, cmd := v.Update(esc)

	require.NotNil(t, cmd)
	assert.Equal(t, ShowLogin{}, cmd())
}

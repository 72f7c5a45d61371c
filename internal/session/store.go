// Package session owns the signed-in user and bearer token and keeps them in durable storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/models"
	"github.com/tgienger/taskboard/internal/validate"
)

// Keys of the persisted session
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Storage is durable key/value storage. *db.DB satisfies it.
type Storage interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// Authenticator talks to the auth endpoints. *api.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, c api.Credentials) (api.AuthResult, error)
	Register(ctx context.Context, r api.Registration) (api.AuthResult, error)
}

// Reason says why the session changed
type Reason int

const (
	SignedIn Reason = iota
	SignedOut
	Expired
)

func (r Reason) String() string {
	switch r {
	case SignedIn:
		return "signed in"
	case SignedOut:
		return "signed out"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Change is delivered to subscribers after every transition
type Change struct {
	Reason  Reason
	Session *models.Session // nil unless signed in
}

// Store is the single owner of the session. Pass it to whoever needs the
// token or the current user.
type Store struct {
	storage Storage
	auth    Authenticator
	logger  *zap.Logger

	mu          sync.RWMutex
	current     *models.Session
	subscribers []func(Change)
}

// New creates an empty, unauthenticated store. Call Restore before first use.
func New(storage Storage, auth Authenticator, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{storage: storage, auth: auth, logger: logger}
}

// Restore hydrates the session from storage without a network call.
// It reports whether a session was found.
func (s *Store) Restore() (bool, error) {
	token, err := s.storage.GetSetting(KeyToken)
	if err != nil {
		return false, fmt.Errorf("read token: %w", err)
	}
	rawUser, err := s.storage.GetSetting(KeyUser)
	if err != nil {
		return false, fmt.Errorf("read user: %w", err)
	}
	if token == "" || rawUser == "" {
		return false, nil
	}

	var user models.User
	if err := sonic.ConfigStd.UnmarshalFromString(rawUser, &user); err != nil {
		s.logger.Warn("discarding unreadable stored user", zap.Error(err))
		return false, nil
	}

	s.mu.Lock()
	s.current = &models.Session{User: user, Token: token}
	s.mu.Unlock()
	s.logger.Info("session restored", zap.String("user_id", user.ID))
	return true, nil
}

// Login authenticates and persists the session. On failure the existing
// session, if any, is left alone and the error carries a readable message.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if err := validate.Login(validate.LoginForm{Email: email, Password: password}); err != nil {
		return err
	}
	res, err := s.auth.Login(ctx, api.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		s.logger.Info("login failed", zap.Error(err))
		return errors.New(api.Message(err, "Login failed"))
	}
	return s.begin(res)
}

// Register creates an account and signs in. The confirmation password is
// checked here and never sent.
func (s *Store) Register(ctx context.Context, f validate.RegisterForm) error {
	if err := validate.Register(f); err != nil {
		return err
	}
	res, err := s.auth.Register(ctx, api.Registration{
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
	})
	if err != nil {
		s.logger.Info("registration failed", zap.Error(err))
		return errors.New(api.Message(err, "Registration failed"))
	}
	return s.begin(res)
}

func (s *Store) begin(res api.AuthResult) error {
	if res.Token == "" {
		return errors.New("server returned no token")
	}
	rawUser, err := sonic.ConfigStd.MarshalToString(res.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.SetSetting(KeyToken, res.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.storage.SetSetting(KeyUser, rawUser); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	sess := &models.Session{User: res.User, Token: res.Token}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("signed in", zap.String("user_id", res.User.ID))
	copied := *sess
	s.publish(Change{Reason: SignedIn, Session: &copied})
	return nil
}

// Logout clears the session everywhere. It always succeeds and may be called repeatedly.
func (s *Store) Logout() {
	s.end(SignedOut)
}

// Expire ends the session because the backend rejected the token. The REST
// client calls it on any 401.
func (s *Store) Expire() {
	s.end(Expired)
}

func (s *Store) end(reason Reason) {
	for _, key := range []string{KeyToken, KeyUser} {
		if err := s.storage.DeleteSetting(key); err != nil {
			s.logger.Error("failed to clear stored session", zap.String("key", key), zap.Error(err))
		}
	}
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if had {
		s.logger.Info("session ended", zap.Stringer("reason", reason))
	}
	s.publish(Change{Reason: reason})
}

// Subscribe registers fn for every session change
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) publish(c Change) {
	s.mu.RLock()
	subs := append([]func(Change){}, s.subscribers...)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

// Token returns the bearer token, or "" when signed out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Current returns a copy of the session and whether one exists
func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Authenticated reports whether a session exists
func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// ExpiresAt reads the token's exp claim without verifying the signature.
// It is for display only.
func ExpiresAt(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

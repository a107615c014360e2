// Package account defines the narrow account service the onboarding steps
// depend on, and a Session that folds service outcomes into the session state
// read by skip rules.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dlovans/surveytask/pkg/task"
)

// Service is implemented by the study's account backend.
type Service interface {
	RegisterUser(ctx context.Context, email, password string) error
	LoginUser(ctx context.Context, email, password string) error
	VerifyRegistration(ctx context.Context) error
	SetExternalID(ctx context.Context, externalID string) error
	ChangeUserEmailAddress(ctx context.Context, email string) error
}

// Code classifies an account failure.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeAccountExists      Code = "account_exists"
	CodeNotVerified        Code = "not_verified"
	CodeNotRegistered      Code = "not_registered"
	CodeNetwork            Code = "network"
	CodeUnknown            Code = "unknown"
)

var messages = map[Code]string{
	CodeInvalidInput:       "Please check the information you entered.",
	CodeInvalidCredentials: "The email or password is incorrect.",
	CodeAccountExists:      "An account with this email already exists.",
	CodeNotVerified:        "Please confirm your email address before continuing.",
	CodeNotRegistered:      "You need to register before you can do this.",
	CodeNetwork:            "We couldn't reach the server. Check your connection and try again.",
	CodeUnknown:            "Something went wrong. Please try again.",
}

// Error is an account failure carrying a participant-facing message.
type Error struct {
	Op      string
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with the default message for code.
func NewError(op string, code Code, err error) *Error {
	msg, ok := messages[code]
	if !ok {
		msg = messages[CodeUnknown]
	}
	return &Error{Op: op, Code: code, Message: msg, Err: err}
}

// IsCode reports whether err is an account Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Message returns the participant-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return messages[CodeUnknown]
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

// Session runs account operations and records their outcome in a SessionState.
type Session struct {
	mu      sync.Mutex
	service Service
	state   task.SessionState
	logger  *zap.Logger
}

// NewSession starts from a copy of state.
func NewSession(service Service, state *task.SessionState, logger *zap.Logger) *Session {
	s := &Session{service: service, logger: logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if state != nil {
		s.state = *state
	}
	return s
}

// State returns a snapshot of the session state for navigation.
func (s *Session) State() *task.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if s.state.Permissions != nil {
		st.Permissions = make(map[string]bool, len(s.state.Permissions))
		for k, v := range s.state.Permissions {
			st.Permissions[k] = v
		}
	}
	st.DataGroups = append([]string(nil), s.state.DataGroups...)
	return &st
}

func (s *Session) Register(ctx context.Context, email, password string) error {
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return NewError("register", CodeInvalidInput, err)
	}
	if err := s.call(ctx, "register", func(ctx context.Context) error {
		return s.service.RegisterUser(ctx, email, password)
	}); err != nil {
		return err
	}
	s.update(func(st *task.SessionState) { st.Registered = true })
	return nil
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	if err := validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return NewError("login", CodeInvalidInput, err)
	}
	if err := s.call(ctx, "login", func(ctx context.Context) error {
		return s.service.LoginUser(ctx, email, password)
	}); err != nil {
		return err
	}
	s.update(func(st *task.SessionState) {
		st.Registered = true
		st.LoggedIn = true
	})
	return nil
}

// VerifyRegistration confirms the emailed verification and signs the participant in.
func (s *Session) VerifyRegistration(ctx context.Context) error {
	if err := s.call(ctx, "verify", s.service.VerifyRegistration); err != nil {
		return err
	}
	s.update(func(st *task.SessionState) {
		st.Registered = true
		st.LoggedIn = true
	})
	return nil
}

// SetExternalID registers the participant by an externally issued identifier.
func (s *Session) SetExternalID(ctx context.Context, externalID string) error {
	if err := validate.Var(externalID, "required,printascii"); err != nil {
		return NewError("external id", CodeInvalidInput, err)
	}
	if err := s.call(ctx, "external id", func(ctx context.Context) error {
		return s.service.SetExternalID(ctx, externalID)
	}); err != nil {
		return err
	}
	s.update(func(st *task.SessionState) {
		st.ExternalID = externalID
		st.Registered = true
		st.LoggedIn = true
	})
	return nil
}

func (s *Session) ChangeEmail(ctx context.Context, email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return NewError("change email", CodeInvalidInput, err)
	}
	if !s.State().Registered {
		return NewError("change email", CodeNotRegistered, nil)
	}
	return s.call(ctx, "change email", func(ctx context.Context) error {
		return s.service.ChangeUserEmailAddress(ctx, email)
	})
}

// CompleteConsent records a signed consent review.
func (s *Session) CompleteConsent() {
	s.update(func(st *task.SessionState) {
		st.ConsentVerified = true
		st.Reconsent = false
	})
}

// RequireReconsent asks for the consent review to be shown again.
func (s *Session) RequireReconsent() {
	s.update(func(st *task.SessionState) { st.Reconsent = true })
}

func (s *Session) GrantPermission(permission string) {
	s.update(func(st *task.SessionState) {
		if st.Permissions == nil {
			st.Permissions = make(map[string]bool)
		}
		st.Permissions[permission] = true
	})
}

func (s *Session) SetDataGroups(groups []string) {
	s.update(func(st *task.SessionState) { st.DataGroups = append([]string(nil), groups...) })
}

func (s *Session) update(fn func(*task.SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// call runs a service operation, classifying plain errors as network or unknown failures.
func (s *Session) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return NewError(op, CodeNetwork, err)
	}
	err := fn(ctx)
	if err == nil {
		return nil
	}

	var ae *Error
	if !errors.As(err, &ae) {
		code := CodeUnknown
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			code = CodeNetwork
		}
		ae = NewError(op, code, err)
	}
	s.logger.Warn("account operation failed",
		zap.String("op", op),
		zap.String("code", string(ae.Code)),
		zap.Error(err),
	)
	return ae
}

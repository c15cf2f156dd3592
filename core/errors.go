package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeFrame is returned for unknown leaderboard timeframes.
	ErrInvalidTimeFrame = errors.New("invalid timeframe")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoSession is returned by auth operations that need a signed-in user.
	ErrNoSession = errors.New("no active session")
)

// AuthErrorCode classifies an AuthError.
type AuthErrorCode string

const (
	AuthCodeValidation  AuthErrorCode = "validation"
	AuthCodeUnavailable AuthErrorCode = "unavailable"
	AuthCodeNoSession   AuthErrorCode = "no_session"
	AuthCodeNotFound    AuthErrorCode = "not_found"
)

// AuthError is the only error kind the auth service reports.
type AuthError struct {
	Op   string
	Code AuthErrorCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("auth %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err, classifying ErrNoSession and ErrNotFound automatically.
func NewAuthError(op string, code AuthErrorCode, err error) *AuthError {
	switch {
	case errors.Is(err, ErrNoSession):
		code = AuthCodeNoSession
	case errors.Is(err, ErrNotFound):
		code = AuthCodeNotFound
	}
	return &AuthError{Op: op, Code: code, Err: err}
}

// IsAuthCode reports whether err is an AuthError with the given code.
func IsAuthCode(err error, code AuthErrorCode) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}

// Package identity holds the credential provider the services authenticate
// against, and a local implementation backed by the document store.
package identity

import (
	"context"
	"errors"
)

// Provider error codes. Callers branch on these to pick user-facing messages.
const (
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUserDisabled      = "auth/user-disabled"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeNoSession         = "auth/no-session"
)

// Error is returned by a Provider for every failure it can classify.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrorCode extracts the provider code from err, or "" when err is not an *Error.
func ErrorCode(err error) string {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Code
	}
	return ""
}

// Session is the identity currently signed in on a Provider.
type Session struct {
	UID        string
	Email      string
	Disposable bool
}

// Provider is the credential service consumed by the core. A Provider holds
// at most one current session.
type Provider interface {
	// CreateAccount registers the credentials and signs the new account in.
	CreateAccount(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	SignOut(ctx context.Context) error
	// CreateDisposableSession signs in a fresh anonymous identity.
	CreateDisposableSession(ctx context.Context) (string, error)
	// DeleteCurrentSessionIfDisposable removes the current identity when it
	// is anonymous and leaves any other session untouched.
	DeleteCurrentSessionIfDisposable(ctx context.Context) error
	// CurrentSession returns nil when nobody is signed in.
	CurrentSession() *Session
}

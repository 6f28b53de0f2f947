package vcs

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrUnresolvableBranch    = errors.New("unresolvable branch")
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrCheckoutFailure       = errors.New("checkout failure")
)

// Error is a typed failure of a detection or checkout.
type Error struct {
	Kind    error
	Message string
	Err     error

	// Set for checkout failures.
	Revision Revision
	Dir      string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UnresolvableBranch reports that a branch head or a required revision cannot be determined.
func UnresolvableBranch(format string, args ...any) error {
	return &Error{Kind: ErrUnresolvableBranch, Message: fmt.Sprintf(format, args...)}
}

// RepositoryUnavailable reports a transport, authentication or local cache failure.
func RepositoryUnavailable(err error, format string, args ...any) error {
	return &Error{Kind: ErrRepositoryUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// CheckoutFailure reports that a working directory could not be prepared or populated.
func CheckoutFailure(rev Revision, dir string, err error) error {
	return &Error{
		Kind:     ErrCheckoutFailure,
		Message:  fmt.Sprintf("cannot check out revision %s into %s", rev, dir),
		Err:      err,
		Revision: rev,
		Dir:      dir,
	}
}

// IsTyped reports whether err already carries one of the error kinds.
func IsTyped(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

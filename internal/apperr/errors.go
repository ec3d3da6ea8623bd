// Package apperr defines the error kinds shared by the vault store and its transports.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrPathTraversal = errors.New("path escapes vault root")
	ErrInvalidPath   = errors.New("invalid path")
	ErrEncoding      = errors.New("invalid text encoding")
	ErrIO            = errors.New("io error")
)

// Error carries the operation and vault path that failed alongside its kind.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind.
func New(kind error, op, path string, err error) error {
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

// IO wraps err as an ErrIO failure unless it already carries a kind.
func IO(op, path string, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: ErrIO, Err: err}
}

// KindOf returns the kind of err, or ErrIO for errors that carry none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrPathTraversal, ErrInvalidPath, ErrEncoding} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrIO
}

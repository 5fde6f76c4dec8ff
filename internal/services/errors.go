package services

import (
	"errors"
	"fmt"

	"github.com/cvdreamjob/apiserver/types"
)

// Error is a failed service operation classified by kind.
type Error struct {
	Kind types.ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels such as ErrNotFound regardless of Op and Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized    = &Error{Kind: types.KindUnauthorized}
	ErrInvalidArgument = &Error{Kind: types.KindInvalidArgument}
	ErrNotFound        = &Error{Kind: types.KindNotFound}
	ErrStorage         = &Error{Kind: types.KindStorage}
)

// KindOf reports the kind of err. Unclassified errors are storage errors.
func KindOf(err error) types.ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return types.KindStorage
}

// PublicMessage is the text safe to show a caller. Storage faults are not
// described beyond their kind.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == types.KindStorage {
		return "database error"
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func newError(kind types.ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func invalidArgument(op, msg string) *Error {
	return newError(types.KindInvalidArgument, op, errors.New(msg))
}

package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the registry reports to a caller.
type Kind int

const (
	KindNone Kind = iota
	Unauthorized
	NotFound
	InvalidInput
	NotForSale
	InsufficientPayment
	StorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case Unauthorized:
		return "Unauthorized"
	case NotFound:
		return "NotFound"
	case InvalidInput:
		return "InvalidInput"
	case NotForSale:
		return "NotForSale"
	case InsufficientPayment:
		return "InsufficientPayment"
	case StorageFailure:
		return "StorageFailure"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the typed failure returned by stores and the registry.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind. A target carrying a Msg only matches errors
// with that exact Msg, so ErrRetired stays distinguishable from other InvalidInput failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

var (
	ErrUnauthorized        = &Error{Kind: Unauthorized}
	ErrNotFound            = &Error{Kind: NotFound}
	ErrInvalidInput        = &Error{Kind: InvalidInput}
	ErrNotForSale          = &Error{Kind: NotForSale}
	ErrInsufficientPayment = &Error{Kind: InsufficientPayment}
	ErrStorageFailure      = &Error{Kind: StorageFailure}

	// ErrRetired rejects mutations aimed at a record that has been split.
	ErrRetired = &Error{Kind: InvalidInput, Msg: "record retired by split"}
)

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. Errors that already carry a kind keep it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err. Anything without a kind is a storage failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return StorageFailure
}

// Retired returns the error for a mutation aimed at a split record.
func Retired(op string, id uint64) error {
	return &Error{Kind: InvalidInput, Op: op, Msg: ErrRetired.Msg, Err: fmt.Errorf("property %d", id)}
}

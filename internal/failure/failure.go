package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	Navigation     Kind = "navigation_failure"
	Authentication Kind = "authentication_failure"
	TableNotFound  Kind = "table_not_found"
	RowParse       Kind = "row_parse_error"
	DateParse      Kind = "date_parse_failure"
	SnapshotWrite  Kind = "snapshot_write_error"
)

// Error is a classified pipeline failure
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind with a short diagnostic message
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsStage reports whether the kind aborts a run (as opposed to row/record-local kinds).
func (k Kind) IsStage() bool {
	switch k {
	case Navigation, Authentication, TableNotFound:
		return true
	default:
		return false
	}
}

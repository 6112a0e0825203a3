package msx

import "fmt"

// Code is an error taxonomy code from spec.md §7: input errors in the
// 401-409 range, runtime errors in the 501-524 range, setter errors in the
// 500 range (reported but non-fatal to the project).
type Code int

const (
	// Input errors (401-409): collected up to 100 per file during Open.
	ErrLineTooLong Code = 401 + iota
	ErrTooFewItems
	ErrBadKeyword
	ErrBadNumber
	ErrUndefinedRef
	ErrReservedName
	ErrDuplicateName
	ErrDuplicateExpr
	ErrIllegalMathExpr
)

const (
	// Runtime errors (501-524).
	ErrInsufficientMemory Code = 501 + iota
	ErrNoEPANETFile
	ErrOpenMSXFile
	ErrOpenHydFile
	ErrOpenOutFile
	ErrOpenRptFile
	ErrReadHyd
	ErrIntegratorOpen
	ErrNewtonOpen
	ErrIntegratorFailed
	ErrNewtonFailed
	ErrInvalidObjectType
	ErrInvalidIndex
	ErrUndefinedID
	ErrInvalidProperty
	ErrProjectNotOpened
	ErrProjectAlreadyOpened
	ErrIllegalMathEval
)

// Error is a project-level error carrying a taxonomy Code alongside the
// Go error chain. Runtime codes above 500 poison further Step calls;
// setter-originated codes (still >= 500 but raised outside Step/Init) are
// reported to the caller without poisoning project state.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("msx: [%d] %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("msx: [%d] %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr constructs an *Error, optionally wrapping a lower-level cause.
func newErr(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Err: cause}
}

// fatal reports whether code poisons the project: a runtime error (501+)
// raised while advancing the simulation, per spec.md §7's CALL(err,f)
// macro in the original implementation, where any such error short
// circuits every later call against the same project handle. Input
// errors (401-409) never reach here; they only ever occur during Open,
// before a project handle exists to poison.
func (c Code) fatal() bool { return int(c) >= 501 }

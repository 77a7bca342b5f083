// Package celesta holds the error taxonomy shared by every core package:
// the in-memory schema model, the expression tree, and the updater state
// machine all return *celesta.Error (or the *celesta.ParseError subtype)
// rather than ad hoc error values.
package celesta

import "fmt"

// Kind enumerates the error taxonomy of the schema-update engine.
type Kind string

const (
	// Schema validation kinds (raised while building/finalizing the model).
	KindUnresolvedField       Kind = "UNRESOLVED_FIELD"
	KindAmbiguousField        Kind = "AMBIGUOUS_FIELD"
	KindTypeMismatch          Kind = "TYPE_MISMATCH"
	KindDuplicateColumn       Kind = "DUPLICATE_COLUMN"
	KindUnknownColumn         Kind = "UNKNOWN_COLUMN"
	KindMissingPK             Kind = "MISSING_PK"
	KindFKReferencedColsNotPK Kind = "FK_REFERENCED_COLUMNS_NOT_PK"
	KindCyclicGrainDependency Kind = "CYCLIC_GRAIN_DEPENDENCY"
	KindVersionInconsistent   Kind = "VERSION_INCONSISTENT"
	KindVersionDowngrade      Kind = "VERSION_DOWNGRADE"
	KindIllegalState          Kind = "ILLEGAL_STATE"

	// Upgrade runtime kinds (raised while running updateDb).
	KindNonEmptyDB     Kind = "NON_EMPTY_DB"
	KindUnexpectedState Kind = "UNEXPECTED_STATE"
	KindDDLFailed      Kind = "DDL_FAILED"
)

// Error is the single domain error kind for the schema-update engine.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, wrapping a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// ParseError distinguishes schema-time (construction/finalization) failures
// from runtime upgrade failures raised while running updateDb. It always
// wraps an *Error so callers can inspect Kind uniformly.
type ParseError struct {
	*parseBase
}

// parseBase names the *Error embedded in ParseError, so that Error's
// Error method is promoted instead of being shadowed by a field of the
// same name.
type parseBase = Error

// NewParse builds a *ParseError of the given kind.
func NewParse(kind Kind, format string, args ...any) *ParseError {
	return &ParseError{parseBase: New(kind, format, args...)}
}

// IsKind reports whether err is a *celesta.Error (directly or wrapped via a
// *ParseError) of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if pe, ok := err.(*ParseError); ok {
		e = pe.parseBase
	} else if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}

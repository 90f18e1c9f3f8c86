package shared

import "errors"

// Error kinds. Domain sentinels wrap exactly one of these so transports can map
// failures without knowing every package.
var (
	// ErrValidation indicates malformed input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates an expected business conflict (closed period, wrong status).
	ErrConflict = errors.New("state conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrIntegrity indicates a broken ledger or stock invariant.
	ErrIntegrity = errors.New("integrity violation")
	// ErrTransient indicates lock contention or timeouts; the caller may retry.
	ErrTransient = errors.New("transient failure")
)

// Kind names an error class.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindIntegrity  Kind = "integrity"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

// KindOf classifies err by the kind sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}

// kindError is a sentinel that unwraps to its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewError builds a sentinel error of the given kind.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

package subscription

import "fmt"

// ErrKind classifies orchestrator failures so the API layer can map them
// to status codes without inspecting error strings.
type ErrKind int

const (
	// ErrKindValidation means the caller's input was rejected before any
	// side effect happened.
	ErrKindValidation ErrKind = iota
	// ErrKindPersistence means the database work failed and was rolled
	// back; no subscriber state changed.
	ErrKindPersistence
	// ErrKindDispatch means the subscriber state is durably committed but
	// the confirmation email could not be sent.
	ErrKindDispatch
	// ErrKindNotFound means the referenced token or subscriber does not
	// exist.
	ErrKindNotFound
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindValidation:
		return "validation"
	case ErrKindPersistence:
		return "persistence"
	case ErrKindDispatch:
		return "dispatch"
	case ErrKindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error carries the failure kind alongside the underlying cause.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationErr(err error) *Error {
	return &Error{Kind: ErrKindValidation, Err: err}
}

func persistenceErr(err error) *Error {
	return &Error{Kind: ErrKindPersistence, Err: err}
}

func dispatchErr(err error) *Error {
	return &Error{Kind: ErrKindDispatch, Err: err}
}

func notFoundErr(err error) *Error {
	return &Error{Kind: ErrKindNotFound, Err: err}
}

package model

import "errors"

// Kind classifies an error according to the service's error taxonomy.
type Kind string

// Error kinds.
const (
	KindValidation Kind = "ValidationError"
	KindNotFound   Kind = "NotFoundError"
	KindConflict   Kind = "ConflictError"
	KindEngine     Kind = "EngineError"
	KindIO         Kind = "IOError"
	KindInternal   Kind = "InternalError"
)

// Sentinels for errors.Is matching against any *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrEngine     = &Error{Kind: KindEngine}
	ErrIO         = &Error{Kind: KindIO}
)

// Error is a classified error. Message is shown to clients verbatim.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError builds a classified error wrapping err.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or KindInternal when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

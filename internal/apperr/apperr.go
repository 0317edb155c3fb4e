// Package apperr defines the error kinds shared by the pipeline and the
// table that maps each kind to an HTTP status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for reporting at the API boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindExtraction
	KindImageProcessing
	KindUnsupportedModel
	KindUpstream
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindExtraction:
		return "extraction"
	case KindImageProcessing:
		return "image_processing"
	case KindUnsupportedModel:
		return "unsupported_model"
	case KindUpstream:
		return "upstream"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// statusByKind is the single place where error kinds become status codes.
var statusByKind = map[Kind]int{
	KindInvalidInput:     http.StatusBadRequest,
	KindExtraction:       http.StatusBadRequest,
	KindImageProcessing:  http.StatusBadRequest,
	KindUnsupportedModel: http.StatusBadRequest,
	KindUpstream:         http.StatusBadGateway,
	KindConfiguration:    http.StatusInternalServerError,
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.String() + " error"
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so sentinel values such as
// ErrUnsupportedModel work with errors.Is regardless of Op and Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrExtraction       = &Error{Kind: KindExtraction}
	ErrImageProcessing  = &Error{Kind: KindImageProcessing}
	ErrUnsupportedModel = &Error{Kind: KindUnsupportedModel}
	ErrUpstream         = &Error{Kind: KindUpstream}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
)

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err to a status code. Unclassified errors are 500.
func HTTPStatus(err error) int {
	if status, ok := statusByKind[KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

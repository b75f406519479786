// Package apperr classifies pipeline failures so each transport can decide
// whether to reply, end the pipeline instance, or close silently.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind int

const (
	// KindUnknown is any error that was never classified.
	KindUnknown Kind = iota
	// KindInput covers malformed metadata, empty or undecodable images and missing uploads.
	KindInput
	// KindResource covers capture devices and containers that cannot be opened or written.
	KindResource
	// KindInference covers failures raised by the detection model.
	KindInference
	// KindTransport covers clients that went away mid-operation.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindResource:
		return "resource"
	case KindInference:
		return "inference"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Input wraps err as an input error.
func Input(op string, err error) error { return newError(KindInput, op, err) }

// Resource wraps err as a resource error.
func Resource(op string, err error) error { return newError(KindResource, op, err) }

// Inference wraps err as an inference error.
func Inference(op string, err error) error { return newError(KindInference, op, err) }

// Transport wraps err as a transport error.
func Transport(op string, err error) error { return newError(KindTransport, op, err) }

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err was classified with the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

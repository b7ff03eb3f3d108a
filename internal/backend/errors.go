package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a backend failure for retry purposes.
type Kind uint8

const (
	// KindTransient failures may succeed if the same request is repeated.
	KindTransient Kind = iota + 1
	// KindPermanent failures will not succeed without different input.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation that fails. Callers classify
// it through Transient; transport failures, timeouts included, are transient.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is retry-eligible.
func (e *Error) Transient() bool { return e.Kind == KindTransient }

func kindForStatus(code int) Kind {
	switch {
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return KindTransient
	default:
		return KindPermanent
	}
}

func transportError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTransient, Err: err}
}

func statusError(op string, code int, body string) *Error {
	return &Error{Op: op, Kind: kindForStatus(code), StatusCode: code, Err: errors.New(body)}
}

func decodeError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindPermanent, Err: fmt.Errorf("decode response: %w", err)}
}

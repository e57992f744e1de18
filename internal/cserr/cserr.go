// Package cserr defines the error taxonomy shared across the indexing and
// query engine: IO, Parse, Config, NotReady, NotFound, Internal. Every
// fallible core-path operation returns one of these wrapped errors instead of
// panicking; recovery policy per kind is documented beside each constructor.
package cserr

import (
	"errors"
	"fmt"
)

// Kind classifies a core-path failure.
type Kind int

const (
	// IO covers file/directory read and walk failures. Recovery: log and
	// skip the single offending file or directory; never abort a build.
	IO Kind = iota
	// Parse covers AST/regex-compile/JSON-decode failures. Recovery: count
	// and skip (parse_errors), surfaced via search_info.
	Parse
	// Config covers request/flag validation failures (mutually exclusive
	// modes, dir outside root). Recovery: reject with an isError tool result.
	Config
	// NotReady means an index has not finished its initial build/load.
	// Recovery: a non-isError tool response carrying a retry message.
	NotReady
	// NotFound means no on-disk index exists for a read-only query command.
	NotFound
	// Internal covers unexpected invariant violations. No core-path function
	// returns this kind yet, and panics in builder goroutines are not
	// recovered into it.
	Internal
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case Parse:
		return "Parse"
	case Config:
		return "Config"
	case NotReady:
		return "NotReady"
	case NotFound:
		return "NotFound"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged wrapped error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind-tagged error with no underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap tags an existing error with a Kind and operation context.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var ce *Error
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Kind == kind {
			return true
		}
		err = ce.Err
	}
	return false
}

// Package errors provides structured error handling for tabavro.
//
// Every failure surfaced by the library is an *Error carrying a Kind from
// the fixed taxonomy below, an optional wrapped cause, and a details map
// with the offending path, field, or value where one is known. Callers
// discriminate with IsKind or errors.As; nothing is retried internally.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Kind is the category of a tabavro error.
type Kind string

const (
	// KindNoFiles indicates that no filesystem entry matched any of the
	// given path patterns.
	KindNoFiles Kind = "no_files"
	// KindNoAvroFiles indicates that paths matched, but none of the matched
	// files carried the container magic bytes.
	KindNoAvroFiles Kind = "no_avro_files"
	// KindUnsupportedType indicates a schema type outside the mapped subset.
	KindUnsupportedType Kind = "unsupported_type"
	// KindUnsupportedUnionShape indicates a union that is neither [null, T]
	// nor a recognized value union.
	KindUnsupportedUnionShape Kind = "unsupported_union_shape"
	// KindFixedSizeMismatch indicates a fixed value whose byte length does
	// not equal the declared size.
	KindFixedSizeMismatch Kind = "fixed_size_mismatch"
	// KindDecimalParse indicates malformed decimal text on decode.
	KindDecimalParse Kind = "decimal_parse"
	// KindNullabilityViolation indicates a null value against a non-nullable
	// schema position during encode.
	KindNullabilityViolation Kind = "nullability_violation"
	// KindCorruptSyncMarker indicates a block trailer that does not match the
	// header's sync marker.
	KindCorruptSyncMarker Kind = "corrupt_sync_marker"
	// KindCorruptContainer indicates an unreadable header or truncated block.
	KindCorruptContainer Kind = "corrupt_container"
	// KindIO indicates a propagated filesystem failure.
	KindIO Kind = "io"
	// KindInternal indicates a bug in tabavro itself.
	KindInternal Kind = "internal"
)

// Error is a structured error with a kind, an optional cause, and context
// details.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame captured at construction time.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithPath attaches the offending file path.
func (e *Error) WithPath(path string) *Error {
	return e.WithDetail("path", path)
}

// WithField attaches the offending field name.
func (e *Error) WithField(field string) *Error {
	return e.WithDetail("field", field)
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with a kind and message. Returns nil when
// err is nil. If err is already an *Error its stack is preserved.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Kind:    kind,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// AsError unwraps err into target when it is (or wraps) an *Error. It
// exists so callers of this package do not also need the stdlib errors
// import for the common case.
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

// captureStack captures the current call stack, skipping runtime internals.
func captureStack(skip int) []StackFrame {
	const maxFrames = 16
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if strings.HasPrefix(name, "runtime.") {
			continue
		}
		frames = append(frames, StackFrame{
			Function: name,
			File:     file,
			Line:     line,
		})
	}

	return frames
}

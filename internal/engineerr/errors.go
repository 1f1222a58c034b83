// Package engineerr provides the typed error result used across every
// fallible public boundary of the engine (§7 of the design spec). The core
// never relies on panics or bare errors crossing a component boundary: every
// fallible operation returns an *Error with a stable Kind.
package engineerr

import (
	"errors"
	"fmt"
	"maps"
	"sync"
)

// Kind categorizes a failure the way control-thread callers need to branch
// on it. It deliberately mirrors §7 exactly; nothing is added or renamed.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not-found"
	KindAccessDenied     Kind = "access-denied"
	KindIO               Kind = "io"
	KindUnsupportedFormat Kind = "unsupported-format"
	KindCorruptChunk     Kind = "corrupt-chunk"
	KindHeaderNotFound   Kind = "header-not-found"
	KindDuplicateRequest Kind = "duplicate-request"
	KindObjectDisposed   Kind = "object-disposed"
	KindHost             Kind = "host"
	KindInvalidOperation Kind = "invalid-operation"
)

// Error wraps an underlying error with a Kind, an originating component and
// structured context, matching the fluent builder the teacher's
// internal/errors package uses.
type Error struct {
	err       error
	component string
	kind      Kind
	context   map[string]any
	mu        sync.RWMutex
}

func (e *Error) Error() string {
	if e.err == nil {
		return string(e.kind)
	}
	return e.err.Error()
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is an *Error with the same Kind, or delegates
// to the wrapped error otherwise.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.kind == other.kind
	}
	return errors.Is(e.err, target)
}

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Component returns the originating component name, e.g. "wsola", "mixer".
func (e *Error) Component() string { return e.component }

// Context returns a copy of the structured context attached to the error.
func (e *Error) Context() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.context == nil {
		return nil
	}
	out := make(map[string]any, len(e.context))
	maps.Copy(out, e.context)
	return out
}

// Builder is the fluent constructor mirrored from the teacher's
// internal/errors.ErrorBuilder.
type Builder struct {
	err       error
	component string
	kind      Kind
	context   map[string]any
}

// New starts building an *Error around an existing error (nil is allowed;
// Build will then carry only the Kind/component/context).
func New(err error) *Builder {
	return &Builder{err: err}
}

// Newf builds a formatted error in one step.
func Newf(format string, args ...any) *Builder {
	return New(fmt.Errorf(format, args...))
}

func (b *Builder) Component(c string) *Builder {
	b.component = c
	return b
}

func (b *Builder) Kind(k Kind) *Builder {
	b.kind = k
	return b
}

func (b *Builder) Context(key string, value any) *Builder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the error.
func (b *Builder) Build() *Error {
	return &Error{
		err:       b.err,
		component: b.component,
		kind:      b.kind,
		context:   b.context,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == k
	}
	return false
}

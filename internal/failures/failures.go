// Package failures defines the tagged error kinds raised by browser actions,
// page objects and the runner. Callers branch on Kind instead of matching
// error strings.
package failures

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is reported for errors that carry no tag.
	KindUnknown Kind = iota
	// KindNavigation means the page never reached the content-parsed state in time.
	KindNavigation
	// KindAction means an element was not clickable, editable or visible within the bound.
	KindAction
	// KindInputVerification means typed text failed read-back after all retries.
	KindInputVerification
	// KindPrecondition means the requested result index exceeds the rendered count.
	KindPrecondition
	// KindDependency means a required tool is missing and could not be installed.
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindNavigation:
		return "navigation"
	case KindAction:
		return "action"
	case KindInputVerification:
		return "input_verification"
	case KindPrecondition:
		return "precondition"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with its Kind, the operation that raised it and,
// for element actions, the locator involved.
type Error struct {
	Kind    Kind
	Op      string
	Locator string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Locator != "" {
		fmt.Fprintf(&b, " (locator %q)", e.Locator)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on another attempt.
// Precondition and dependency failures are permanent.
func (e *Error) Retryable() bool {
	return e.Kind == KindAction || e.Kind == KindNavigation
}

// Timeout reports whether the failure belongs to the timeout class.
func (e *Error) Timeout() bool {
	return e.Kind == KindInputVerification
}

// Is matches another *Error of the same Kind, so errors.Is(err, failures.ErrPrecondition) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Locator == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNavigation        = &Error{Kind: KindNavigation}
	ErrAction            = &Error{Kind: KindAction}
	ErrInputVerification = &Error{Kind: KindInputVerification}
	ErrPrecondition      = &Error{Kind: KindPrecondition}
	ErrDependency        = &Error{Kind: KindDependency}
)

// Navigation wraps err as a navigation failure for url.
func Navigation(url string, err error) *Error {
	return &Error{Kind: KindNavigation, Op: "navigate", Msg: url, Err: err}
}

// Action wraps err as an element action failure.
func Action(op, locator string, err error) *Error {
	return &Error{Kind: KindAction, Op: op, Locator: locator, Err: err}
}

// InputVerification reports text that could not be typed into locator after attempts tries.
func InputVerification(locator, text string, attempts int, last error) *Error {
	return &Error{
		Kind:    KindInputVerification,
		Op:      "fill",
		Locator: locator,
		Msg:     fmt.Sprintf("timed out filling %q after %d attempts", text, attempts),
		Err:     last,
	}
}

// Precondition reports a failed precondition; it is never retried.
func Precondition(op, format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Dependency reports a missing dependency that could not be installed.
func Dependency(name string, err error) *Error {
	return &Error{Kind: KindDependency, Op: "dependency " + name, Err: err}
}

// KindOf returns the Kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is tagged with a retryable kind.
func IsRetryable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Retryable()
}

// Tag wraps err as an action failure unless it already carries a kind.
func Tag(op, locator string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return Action(op, locator, err)
}

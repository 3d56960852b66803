// Package pricingerr defines the error taxonomy shared by every stage of
// the pricing pipeline (§7 of the specification). It is intentionally a
// leaf package with no dependencies so every other domain package can
// import it without risk of a cycle.
package pricingerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error. Kind is a taxonomy, not a type
// hierarchy: callers branch on Kind, never on the concrete Go type.
type Kind string

const (
	InvalidInput       Kind = "INVALID_INPUT"
	InvalidMargin      Kind = "INVALID_MARGIN"
	ResourceLimit      Kind = "RESOURCE_LIMIT"
	RuleCompileError   Kind = "RULE_COMPILE_ERROR"
	RuleEvalError      Kind = "RULE_EVAL_ERROR"
	DataFetchError     Kind = "DATA_FETCH_ERROR"
	DatabaseError      Kind = "DATABASE_ERROR"
	IdempotencyReplay  Kind = "IDEMPOTENCY_REPLAY"
	EventPublishError  Kind = "EVENT_PUBLISH_ERROR"
	WebhookError       Kind = "WEBHOOK_ERROR"
	Internal           Kind = "INTERNAL"
)

// Error is the single structured error type returned across stage
// boundaries. A caller receives either a complete result or exactly one
// Error, with Violations populated only for input errors.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with no violations.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithViolations attaches specific violations to an input error.
func WithViolations(kind Kind, message string, violations []string) *Error {
	return &Error{Kind: kind, Message: message, Violations: violations}
}

// Is allows errors.Is(err, pricingerr.InvalidInput) to work by comparing
// Kind when the target is itself an *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the Kind of err if it is, or wraps, a *Error; otherwise
// returns Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Sentinel values for errors.Is(err, pricingerr.ErrX) comparisons where
// only the kind matters and no message/violations are meaningful.
var (
	ErrInvalidInput      = &Error{Kind: InvalidInput}
	ErrInvalidMargin     = &Error{Kind: InvalidMargin}
	ErrResourceLimit     = &Error{Kind: ResourceLimit}
	ErrRuleCompileError  = &Error{Kind: RuleCompileError}
	ErrRuleEvalError     = &Error{Kind: RuleEvalError}
	ErrDataFetchError    = &Error{Kind: DataFetchError}
	ErrDatabaseError     = &Error{Kind: DatabaseError}
	ErrIdempotencyReplay = &Error{Kind: IdempotencyReplay}
	ErrEventPublishError = &Error{Kind: EventPublishError}
	ErrWebhookError      = &Error{Kind: WebhookError}
	ErrInternal          = &Error{Kind: Internal}
)

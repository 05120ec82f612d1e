// Package apperrors holds the error taxonomy shared by the generator,
// planner and execution engine. Every error carries a location, the issue
// and a concrete hint so the CLI can print something the user can act on.
package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindGeneration Kind = "generation"
	KindExecution  Kind = "execution"
	KindCancelled  Kind = "cancelled"
)

// ErrCancelled marks a run that stopped because the caller asked it to.
var ErrCancelled = errors.New("run cancelled")

type Error struct {
	Kind     Kind
	Location string
	Issue    string
	Hint     string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	b.WriteString(e.Issue)
	if e.Hint != "" {
		b.WriteString(". Fix: ")
		b.WriteString(strings.TrimSuffix(e.Hint, "."))
	}
	b.WriteString(".")
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == KindCancelled && target == ErrCancelled
}

func Validation(location, issue, hint string) *Error {
	return &Error{Kind: KindValidation, Location: location, Issue: issue, Hint: hint}
}

func Validationf(location, hint, format string, args ...any) *Error {
	return Validation(location, fmt.Sprintf(format, args...), hint)
}

func Generation(location, issue, hint string) *Error {
	return &Error{Kind: KindGeneration, Location: location, Issue: issue, Hint: hint}
}

func Generationf(location, hint, format string, args ...any) *Error {
	return Generation(location, fmt.Sprintf(format, args...), hint)
}

func Execution(location, issue, hint string, err error) *Error {
	return &Error{Kind: KindExecution, Location: location, Issue: issue, Hint: hint, Err: err}
}

// Cancelled reports a cooperative stop observed at the given location.
func Cancelled(location string) *Error {
	return &Error{
		Kind:     KindCancelled,
		Location: location,
		Issue:    "run cancelled by request",
		Hint:     "re-run with the same ledger to resume unfinished partitions",
		Err:      ErrCancelled,
	}
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var c *CycleError
	if errors.As(err, &c) {
		return KindValidation
	}
	var b *BoundsError
	if errors.As(err, &b) {
		return KindGeneration
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsGeneration(err error) bool { return KindOf(err) == KindGeneration }
func IsExecution(err error) bool  { return KindOf(err) == KindExecution }
func IsCancelled(err error) bool  { return errors.Is(err, ErrCancelled) }

// CycleError is returned when a dependency graph cannot be fully ordered.
// Scope is "tables" or "table '<name>' columns".
type CycleError struct {
	Scope      string
	Unresolved []string
}

func (e *CycleError) Error() string {
	names := append([]string(nil), e.Unresolved...)
	sort.Strings(names)
	return fmt.Sprintf("%s: dependency cycle detected among [%s]. Fix: remove one dependency edge so the graph is acyclic.",
		e.Scope, strings.Join(names, ", "))
}

// BoundsError reports a child table whose row count cannot satisfy the
// cardinality bounds of one of its incoming foreign keys.
type BoundsError struct {
	Table    string
	FK       string
	Min, Max int
	Actual   int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("Table '%s': row count %d is outside the range [%d, %d] required by foreign key %s. Fix: set row_count inside that range or relax min_children/max_children.",
		e.Table, e.Actual, e.Min, e.Max, e.FK)
}

// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type (
	// ActionableError is what the CLI prints when a project operation fails.
	// The short form names the step and the package or path it touched; the
	// suggestions and catalog entry tell the user how to get the build going
	// again.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("enable package").
	//		WithResource(pkg.Name()).
	//		WithSuggestion("Remove one of the two bindings of " + bt.Name).
	//		WithIssue(issue.DuplicateBindingTypeId).
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase completing "failed to", such as
		// "build repository".
		Operation string
		// Resource is a package name or project path. May be empty.
		Resource string
		// Suggestions are printed one per line below the message.
		Suggestions []string
		// IssueId selects the catalog entry shown in verbose mode. Zero means none.
		IssueId Id
		Cause   error
	}

	// ErrorContext accumulates the parts of an ActionableError. A context can
	// be prepared before the failing call and finished once the cause is known:
	//
	//	ec := issue.NewErrorContext().WithOperation("remove binding").WithResource(id.String())
	//	if err := p.updateRoot(edit); err != nil {
	//		return ec.Wrap(err).BuildError()
	//	}
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		issueId     Id
		cause       error
	}
)

// NewErrorContext returns an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithContext attaches an operation and resource to err. A nil err stays nil.
func WrapWithContext(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Resource: resource, Cause: err}
}

// Error renders "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Issue returns the catalog entry attached to the error, or nil.
func (e *ActionableError) Issue() *Issue {
	if e.IssueId == 0 {
		return nil
	}
	return Get(e.IssueId)
}

// HasSuggestions reports whether Format will print a "Try:" block.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// Format renders the error for the terminal. Suggestions follow the message
// under a "Try:" heading. In verbose mode each error of the cause chain is
// listed under "Caused by:", trimmed to its first line since conflict reports
// span several.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if e.HasSuggestions() {
		b.WriteString("\n\nTry:")
		for _, s := range e.Suggestions {
			b.WriteString("\n  - ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nCaused by:")
		for depth, err := 1, e.Cause; err != nil; depth, err = depth+1, errors.Unwrap(err) {
			fmt.Fprintf(&b, "\n  %d. %s", depth, firstLine(err.Error()))
		}
	}

	return b.String()
}

func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends a hint. Empty hints and repeats are dropped, so
// callers reporting several conflicts of the same kind can add freely.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	if sug != "" && !slices.Contains(c.suggestions, sug) {
		c.suggestions = append(c.suggestions, sug)
	}
	return c
}

// WithSuggestions is WithSuggestion applied to each hint in order.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	for _, s := range sugs {
		c.WithSuggestion(s)
	}
	return c
}

func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issueId = id
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build returns nil while no operation has been set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: slices.Clone(c.suggestions),
		IssueId:     c.issueId,
		Cause:       c.cause,
	}
}

// BuildError is Build typed as error, returning an untyped nil when Build
// would return nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

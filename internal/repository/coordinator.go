// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/resmerge/resmerge/internal/dag"
	"github.com/resmerge/resmerge/internal/issue"
	"github.com/resmerge/resmerge/internal/override"
)

type (
	// Option configures a Coordinator.
	Option func(*Coordinator)

	// Result describes a finished build.
	Result struct {
		View    *View
		Skipped bool
	}

	// Coordinator runs builds: resolve, notify, then materialize.
	Coordinator struct {
		source       Source
		materializer Materializer
		listeners    []Listener
		logger       *log.Logger
	}
)

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithListener registers a listener at construction.
func WithListener(l Listener) Option {
	return func(c *Coordinator) {
		c.listeners = append(c.listeners, l)
	}
}

// NewCoordinator creates a coordinator building src into m.
func NewCoordinator(src Source, m Materializer, opts ...Option) *Coordinator {
	c := &Coordinator{source: src, materializer: m, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnBeforeBuild registers a listener called before each build.
func (c *Coordinator) OnBeforeBuild(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Build merges the enabled packages and materializes the result unless a
// listener skips it. Resolution errors are returned as *issue.ActionableError
// wrapping the *override.ConflictError.
func (c *Coordinator) Build(ctx context.Context) (Result, error) {
	view, err := NewView(c.source)
	if err != nil {
		return Result{}, conflictError(err)
	}

	event := &BuildEvent{view: view}
	for _, l := range c.listeners {
		l(event)
	}
	if event.IsSkipped() {
		c.logger.Info("Build skipped", "mappings", view.Len())
		return Result{View: view, Skipped: true}, nil
	}

	if err := c.materializer.Materialize(ctx, view); err != nil {
		return Result{}, issue.NewErrorContext().
			WithOperation("build repository").
			WithSuggestion("Check that the repository directory is writable").
			WithIssue(issue.BuildFailedId).
			Wrap(err).
			BuildError()
	}

	c.logger.Info("Build finished", "mappings", view.Len())
	return Result{View: view}, nil
}

func conflictError(err error) error {
	var conflict *override.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}

	id := issue.PackageConflictId
	var cycle *dag.CycleError
	if errors.As(err, &cycle) {
		id = issue.OverrideCycleId
	}
	return issue.NewErrorContext().
		WithOperation("resolve repository").
		WithResource(conflict.Conflict.Path).
		WithSuggestion("Run 'resmerge conflicts' to list every unresolved path").
		WithIssue(id).
		Wrap(err).
		BuildError()
}

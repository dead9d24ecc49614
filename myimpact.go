// Package myimpact is the entry point of the goal generation client. It
// re-exports the session orchestrator so callers can start with a single
// import.
package myimpact

import (
	"context"

	"github.com/goliatone/go-myimpact/pkg/orchestrator"
	"github.com/goliatone/go-myimpact/pkg/presenter"
)

// Session aliases the orchestrator that owns one client session.
type Session = orchestrator.Orchestrator

// Option customises a Session.
type Option = orchestrator.Option

// New builds a Session. Metadata is not fetched until Start.
func New(options ...Option) *Session {
	return orchestrator.New(options...)
}

// Generate runs a one-shot session: it loads metadata, lets fill populate the
// form and submits once. The returned View is valid only on success.
func Generate(ctx context.Context, fill func(*Session) error, options ...Option) (presenter.View, error) {
	session := New(options...)
	defer session.Close()

	if _, err := session.Start(ctx); err != nil {
		return presenter.View{}, err
	}
	if fill != nil {
		if err := fill(session); err != nil {
			return presenter.View{}, err
		}
	}
	if _, err := session.Submit(ctx); err != nil {
		return presenter.View{}, err
	}
	view, _ := session.View()
	return view, nil
}

// WithBaseURL re-exports orchestrator.WithBaseURL.
func WithBaseURL(base string) Option {
	return orchestrator.WithBaseURL(base)
}

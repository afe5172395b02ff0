package tui

import (
	"context"

	"github.com/hylla/kalend/internal/app"
)

// Option configures a Model.
type Option func(*Model)

// WithKeyConfig applies key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithDefaultProject sets the project new tasks land in outside project mode.
func WithDefaultProject(projectID string) Option {
	return func(m *Model) {
		m.defaultProjectID = projectID
	}
}

// WithContext sets the context remote calls run under.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithShowDetails opens the detail pane on start.
func WithShowDetails(show bool) Option {
	return func(m *Model) {
		m.showDetails = show
	}
}

// WithEvents wakes the model whenever the store reports a mutation event.
func WithEvents(events <-chan app.MutationEvent) Option {
	return func(m *Model) {
		m.events = events
	}
}

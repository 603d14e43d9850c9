package feed

import (
	"context"
	"time"
)

// Fetcher retrieves the rendered content of a feed page. A failed fetch
// returns an error; callers treat that as zero posts for the source.
type Fetcher interface {
	Fetch(ctx context.Context, source Source) (PageContent, error)
}

// Channel delivers a plain-text notification. Implementations for an
// unconfigured endpoint should no-op rather than error.
type Channel interface {
	Send(ctx context.Context, message string) error
}

// Mailer is the optional secondary notification channel.
type Mailer interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// StateStore loads and persists notification state between runs.
type StateStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

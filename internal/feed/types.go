// Package feed defines core types shared across subsystems.
package feed

// Source identifies one monitored feed page by URL. The set of sources is
// fixed for the lifetime of a run.
type Source string

// Post is a single normalized post extracted from a feed page.
// Text and Published may be empty strings but are never absent.
type Post struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Published string `json:"published"`
}

// Verdict is the result of testing one source's newest post against the
// configured keyword. It is derived per run and never persisted.
type Verdict struct {
	Source  Source
	Post    Post
	Matched bool
}

// PageContent is what a fetcher hands back for one source: an optional
// pre-materialized global value (already parsed by the render step) plus
// every inline script body in document order.
type PageContent struct {
	Global  any
	Scripts []string
}

// State is the notification bookkeeping persisted between runs.
// LastNotified maps each source URL to the id of the last post for which a
// match notification was dispatched. LastNoMatchNotified is epoch millis of
// the last aggregate no-match notice, 0 if never; it only moves forward.
type State struct {
	LastNotified        map[string]string `json:"last_notified"`
	LastNoMatchNotified int64             `json:"last_no_match_notified"`
}

// NewState returns a zero-valued state with an initialized map.
func NewState() *State {
	return &State{LastNotified: make(map[string]string)}
}

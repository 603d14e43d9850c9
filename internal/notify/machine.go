package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/metrics"
)

const millisPerHour = float64(time.Hour / time.Millisecond)

// Config controls Machine behavior.
type Config struct {
	Keyword string
	// MinNoMatchHours is the quiet period between aggregate no-match
	// notices, in hours.
	MinNoMatchHours float64
	// SnippetMaxChars bounds the post text included in a match message.
	SnippetMaxChars int
}

// Machine owns the persisted notification state for one run. Per source it
// is either never-notified or notified(lastId); it transitions, and sends a
// match notification, exactly when a matched post carries an id different
// from the recorded one. After all sources have been fed through Update,
// Finalize decides the rate-limited aggregate no-match notice.
type Machine struct {
	cfg        Config
	state      *feed.State
	matchCh    feed.Channel
	noMatchCh  feed.Channel
	mailer     feed.Mailer
	recipients []string
	clock      feed.Clock
	logger     *zap.Logger

	anyMatch    bool
	sourcesSeen int
}

// NewMachine constructs a Machine over loaded state. Channels and mailer
// may be no-op implementations; the machine never treats a send failure as
// fatal.
func NewMachine(
	cfg Config,
	st *feed.State,
	matchCh feed.Channel,
	noMatchCh feed.Channel,
	mailer feed.Mailer,
	recipients []string,
	clock feed.Clock,
	logger *zap.Logger,
) *Machine {
	if cfg.MinNoMatchHours <= 0 {
		cfg.MinNoMatchHours = 24
	}
	if cfg.SnippetMaxChars <= 0 {
		cfg.SnippetMaxChars = 200
	}
	return &Machine{
		cfg:        cfg,
		state:      st,
		matchCh:    matchCh,
		noMatchCh:  noMatchCh,
		mailer:     mailer,
		recipients: recipients,
		clock:      clock,
		logger:     logger,
	}
}

// Update feeds one source's verdict through the state machine.
//
// A match is considered handled once it is detected, not once delivery is
// confirmed: the new lastId is committed even when the channel reports
// failure. That loses at most one notification and prevents re-notification
// storms on a persistently failing channel.
func (m *Machine) Update(ctx context.Context, v feed.Verdict) {
	m.sourcesSeen++
	if !v.Matched {
		m.logger.Debug("No match for source", zap.String("source", string(v.Source)), zap.String("post_id", v.Post.ID))
		return
	}
	m.anyMatch = true

	last := m.state.LastNotified[string(v.Source)]
	if last == v.Post.ID {
		m.logger.Info("Duplicate match suppressed",
			zap.String("source", string(v.Source)),
			zap.String("post_id", v.Post.ID))
		metrics.ObserveNotification("match", "suppressed")
		return
	}

	message := m.matchMessage(v)
	if err := m.matchCh.Send(ctx, message); err != nil {
		m.logger.Warn("Match notification delivery failed, state advances anyway",
			zap.String("source", string(v.Source)),
			zap.String("post_id", v.Post.ID),
			zap.Error(err))
		metrics.ObserveNotification("match", "failed")
	} else {
		metrics.ObserveNotification("match", "sent")
	}
	if m.mailer != nil {
		subject := fmt.Sprintf("feedwatch: %q matched on %s", m.cfg.Keyword, v.Source)
		if err := m.mailer.Send(ctx, subject, message, m.recipients); err != nil {
			m.logger.Warn("Match mail delivery failed", zap.Error(err))
		}
	}

	m.state.LastNotified[string(v.Source)] = v.Post.ID
	m.logger.Info("Match notified",
		zap.String("source", string(v.Source)),
		zap.String("post_id", v.Post.ID),
		zap.String("previous_id", last))
}

// Finalize runs the aggregate no-match decision. It does nothing if any
// source matched this run, duplicates included. Otherwise a notice goes out
// only when the configured quiet period has elapsed, and the timestamp only
// ever moves forward.
func (m *Machine) Finalize(ctx context.Context) {
	if m.anyMatch {
		m.logger.Debug("At least one source matched, skipping no-match notice")
		return
	}

	now := m.clock.Now()
	hoursSinceLast := float64(now.UnixMilli()-m.state.LastNoMatchNotified) / millisPerHour
	if hoursSinceLast < m.cfg.MinNoMatchHours {
		m.logger.Info("No-match notice suppressed by quiet period",
			zap.Float64("hours_since_last", hoursSinceLast),
			zap.Float64("min_hours", m.cfg.MinNoMatchHours))
		return
	}

	message := fmt.Sprintf("No post matching %q across %d sources.", m.cfg.Keyword, m.sourcesSeen)
	if err := m.noMatchCh.Send(ctx, message); err != nil {
		m.logger.Warn("No-match notification delivery failed", zap.Error(err))
		metrics.ObserveNotification("no_match", "failed")
	} else {
		metrics.ObserveNotification("no_match", "sent")
	}
	if ts := now.UnixMilli(); ts > m.state.LastNoMatchNotified {
		m.state.LastNoMatchNotified = ts
	}
}

func (m *Machine) matchMessage(v feed.Verdict) string {
	snippet := truncate(v.Post.Text, m.cfg.SnippetMaxChars)
	return fmt.Sprintf("Keyword %q matched on %s\nPublished: %s\nPost id: %s\n\n%s",
		m.cfg.Keyword, v.Source, v.Post.Published, v.Post.ID, snippet)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

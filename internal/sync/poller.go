package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/source"
)

// DefaultInterval is the delay between two mailbox checks when none is
// configured.
const DefaultInterval = 5 * time.Second

// Mailbox is the single-shot check the poller repeats.
type Mailbox interface {
	PollOnce(ctx context.Context, cursor model.Cursor) (source.PollResult, error)
}

// Poller repeats Mailbox.PollOnce at a fixed interval until messages
// arrive. It owns the mail cursor: the cursor only moves on successful
// checks and never moves backwards. There is no overall deadline; the
// caller stops the poller by cancelling the context.
type Poller struct {
	mailbox  Mailbox
	interval time.Duration
	cursor   model.Cursor
	polls    int
	lastPoll time.Time
	logger   *slog.Logger
}

// New creates a Poller starting at cursor start.
func New(mb Mailbox, interval time.Duration, start model.Cursor, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{
		mailbox:  mb,
		interval: interval,
		cursor:   start,
		logger:   logger,
	}
}

// Cursor returns the current cursor.
func (p *Poller) Cursor() model.Cursor {
	return p.cursor
}

// Polls returns how many checks have been issued so far.
func (p *Poller) Polls() int {
	return p.polls
}

// Next checks the mailbox once per interval until a check returns at
// least one message. The first check of a Poller is immediate; later
// calls keep the interval measured from the previous check. It returns ctx.Err() once the
// context is cancelled and never starts a check after that. Provider
// errors end the wait and are returned unchanged.
func (p *Poller) Next(ctx context.Context) ([]model.MessageSummary, error) {
	timer := time.NewTimer(p.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		// The timer and cancellation can be ready at the same time.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgs, err := p.pollOnce(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}

		timer.Reset(p.interval)
	}
}

// untilNext returns how long to wait before the next check may start.
func (p *Poller) untilNext() time.Duration {
	if p.lastPoll.IsZero() {
		return 0
	}
	return max(p.interval-time.Since(p.lastPoll), 0)
}

// pollOnce performs one check and advances the cursor on success.
func (p *Poller) pollOnce(ctx context.Context) ([]model.MessageSummary, error) {
	p.polls++
	p.lastPoll = time.Now()
	result, err := p.mailbox.PollOnce(ctx, p.cursor)
	if err != nil {
		p.logger.Debug("mailbox check failed", "poll", p.polls, "cursor", p.cursor, "error", err)
		return nil, err
	}

	p.cursor = p.cursor.Advance(int64(result.Next))
	p.logger.Debug("mailbox checked",
		"poll", p.polls,
		"messages", len(result.Messages),
		"cursor", p.cursor,
	)
	return result.Messages, nil
}

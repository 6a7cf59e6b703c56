package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
)

const (
	// DefaultPollInterval is the fixed delay between status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxAttempts bounds the overall client-side wait at roughly two
	// minutes. Independent from the server-side session TTL.
	DefaultMaxAttempts = 60
)

// PollFunc queries the current login status for one token.
type PollFunc func(ctx context.Context) (*PollResult, error)

// PollOutcome is the definitive result a poller surfaces to its caller.
// Exactly one of the terminal Status values is set, or TimedOut is true when
// the attempt budget ran out while the session was still pending.
type PollOutcome struct {
	Status   Status
	UserID   *uuid.UUID
	Account  *users.User
	TimedOut bool
}

// Succeeded reports whether the login completed with an approved session.
func (o *PollOutcome) Succeeded() bool {
	return o != nil && o.Status == StatusApproved
}

// Poller drives a login status poll on a fixed schedule until the session
// reaches a terminal state, the attempt budget is exhausted, or the caller
// cancels the context.
type Poller struct {
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

func NewPoller(interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "login-poller"),
	}
}

// Run polls until a definitive outcome. Cancellation returns ctx.Err() with a
// nil outcome: an abandoned poll resolves neither success nor failure.
// A transient poll error consumes the attempt and the loop continues; an
// unknown token ends the poll immediately.
func (p *Poller) Run(ctx context.Context, poll PollFunc) (*PollOutcome, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		result, err := poll(ctx)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("Login poll attempt failed",
				"attempt", attempt,
				"error", err.Error())
			continue
		}

		switch result.Status {
		case StatusApproved:
			return &PollOutcome{Status: StatusApproved, UserID: result.UserID, Account: result.Account}, nil
		case StatusRejected, StatusExpired:
			return &PollOutcome{Status: result.Status}, nil
		}
	}

	p.logger.Info("Login poll timed out", "attempts", p.maxAttempts)
	return &PollOutcome{TimedOut: true}, nil
}

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/internal/core/auth"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/stretchr/testify/require"
)

func newTestPoller(maxAttempts int) *auth.Poller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewPoller(time.Millisecond, maxAttempts, logger)
}

func TestPollerReturnsApprovedOutcome(t *testing.T) {
	userID := uuid.New()
	account := &users.User{ID: userID, FirstName: "Jamol"}
	attempts := 0
	poll := func(context.Context) (*auth.PollResult, error) {
		attempts++
		if attempts < 3 {
			return &auth.PollResult{Status: auth.StatusPending}, nil
		}
		return &auth.PollResult{Status: auth.StatusApproved, UserID: &userID, Account: account}, nil
	}

	outcome, err := newTestPoller(10).Run(context.Background(), poll)
	require.NoError(t, err)
	require.True(t, outcome.Succeeded())
	require.Equal(t, userID, *outcome.UserID)
	require.Same(t, account, outcome.Account)
	require.Equal(t, 3, attempts)
}

func TestPollerReturnsRejectedOutcome(t *testing.T) {
	poll := func(context.Context) (*auth.PollResult, error) {
		return &auth.PollResult{Status: auth.StatusRejected}, nil
	}

	outcome, err := newTestPoller(10).Run(context.Background(), poll)
	require.NoError(t, err)
	require.Equal(t, auth.StatusRejected, outcome.Status)
	require.False(t, outcome.Succeeded())
	require.False(t, outcome.TimedOut)
}

func TestPollerTimesOutAfterMaxAttempts(t *testing.T) {
	attempts := 0
	poll := func(context.Context) (*auth.PollResult, error) {
		attempts++
		return &auth.PollResult{Status: auth.StatusPending}, nil
	}

	outcome, err := newTestPoller(5).Run(context.Background(), poll)
	require.NoError(t, err)
	require.True(t, outcome.TimedOut)
	require.False(t, outcome.Succeeded())
	require.Equal(t, 5, attempts)
}

func TestPollerCancellationYieldsNoOutcome(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poll := func(context.Context) (*auth.PollResult, error) {
		cancel()
		return &auth.PollResult{Status: auth.StatusPending}, nil
	}

	outcome, err := newTestPoller(100).Run(ctx, poll)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, outcome)
}

func TestPollerTransientErrorConsumesAttempt(t *testing.T) {
	transient := errors.New("connection reset")
	attempts := 0
	poll := func(context.Context) (*auth.PollResult, error) {
		attempts++
		if attempts == 1 {
			return nil, transient
		}
		return &auth.PollResult{Status: auth.StatusApproved}, nil
	}

	outcome, err := newTestPoller(3).Run(context.Background(), poll)
	require.NoError(t, err)
	require.Equal(t, auth.StatusApproved, outcome.Status)
	require.Equal(t, 2, attempts)
}

func TestPollerOnlyTransientErrorsTimeOut(t *testing.T) {
	poll := func(context.Context) (*auth.PollResult, error) {
		return nil, errors.New("connection reset")
	}

	outcome, err := newTestPoller(4).Run(context.Background(), poll)
	require.NoError(t, err)
	require.True(t, outcome.TimedOut)
}

func TestPollerStopsOnUnknownToken(t *testing.T) {
	attempts := 0
	poll := func(context.Context) (*auth.PollResult, error) {
		attempts++
		return nil, auth.ErrSessionNotFound
	}

	outcome, err := newTestPoller(10).Run(context.Background(), poll)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
	require.Nil(t, outcome)
	require.Equal(t, 1, attempts)
}

func TestPollerExpiredStatusEndsPolling(t *testing.T) {
	poll := func(context.Context) (*auth.PollResult, error) {
		return &auth.PollResult{Status: auth.StatusExpired}, nil
	}

	outcome, err := newTestPoller(10).Run(context.Background(), poll)
	require.NoError(t, err)
	require.Equal(t, auth.StatusExpired, outcome.Status)
	require.False(t, outcome.TimedOut)
}

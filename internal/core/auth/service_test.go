package auth_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jamolstroy/jamolstroy-service/internal/core/auth"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/stretchr/testify/require"
)

const testClientID = "web"

// fakeStore is an in-memory Store with the same conditional-update semantics
// as the postgres implementation.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*auth.LoginSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*auth.LoginSession)}
}

func (f *fakeStore) Insert(_ context.Context, session *auth.LoginSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := *session
	f.sessions[session.Token] = &clone
	return nil
}

func (f *fakeStore) GetByToken(_ context.Context, token string) (*auth.LoginSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	clone := *session
	return &clone, nil
}

func (f *fakeStore) MarkTerminal(_ context.Context, token, clientID string, status auth.Status, userID *uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[token]
	if !ok || session.ClientID != clientID || session.Status != auth.StatusPending || !session.ExpiresAt.After(at) {
		return false, nil
	}

	session.Status = status
	session.UserID = userID
	session.ApprovedAt = &at
	return true, nil
}

func (f *fakeStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var removed int64
	for token, session := range f.sessions {
		if session.CreatedAt.Before(cutoff) && (session.Status != auth.StatusPending || !time.Now().Before(session.ExpiresAt)) {
			delete(f.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// expire rewinds a stored session's expiry so reads observe it as expired.
func (f *fakeStore) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sessions[token].ExpiresAt = time.Now().UTC().Add(-time.Second)
}

type fakeIdentities struct {
	accounts map[int64]uuid.UUID
	profiles map[uuid.UUID]*users.User
}

func (f *fakeIdentities) AccountIDByTelegramID(_ context.Context, telegramID int64) (uuid.UUID, error) {
	id, ok := f.accounts[telegramID]
	if !ok {
		return uuid.Nil, auth.ErrAccountNotLinked
	}
	return id, nil
}

func (f *fakeIdentities) GetUserByID(_ context.Context, userID uuid.UUID) (*users.User, error) {
	return f.profiles[userID], nil
}

type testFixture struct {
	store      *fakeStore
	identities *fakeIdentities
	service    *auth.Service
	accountID  uuid.UUID
	telegramID int64
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store := newFakeStore()
	accountID := uuid.New()
	telegramID := int64(990011)
	identities := &fakeIdentities{
		accounts: map[int64]uuid.UUID{telegramID: accountID},
		profiles: map[uuid.UUID]*users.User{
			accountID: {ID: accountID, TelegramID: &telegramID, FirstName: "Jamol", Locale: "uz"},
		},
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	service := auth.NewService(store, identities, "jamolstroy_bot", logger)

	return &testFixture{
		store:      store,
		identities: identities,
		service:    service,
		accountID:  accountID,
		telegramID: telegramID,
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func TestCreateReturnsPendingSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	result, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Len(t, result.Token, 32)
	require.Contains(t, result.DeepLink, "https://t.me/jamolstroy_bot?start=login_"+result.Token)
	require.True(t, result.ExpiresAt.After(time.Now()))

	poll, err := f.service.Poll(ctx, result.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusPending, poll.Status)
	require.Nil(t, poll.UserID)
	require.Nil(t, poll.Account)
}

func TestCreateRejectsInvalidClientID(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	for _, clientID := range []string{"", "under_score", "way-too-long-client-id", "sp ace", "uni¢ode"} {
		_, err := f.service.Create(ctx, clientID)
		require.ErrorIs(t, err, auth.ErrInvalidClientID, "client id %q", clientID)
	}

	require.Empty(t, f.store.sessions)
}

func TestTokensAreUnique(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		result, err := f.service.Create(ctx, testClientID)
		require.NoError(t, err)
		require.False(t, seen[result.Token])
		seen[result.Token] = true
	}
}

func TestApproveFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	resolved, err := f.service.Resolve(ctx, auth.ActionApprove, created.Token, testClientID, f.telegramID)
	require.NoError(t, err)
	require.Equal(t, auth.StatusApproved, resolved.Status)
	require.NotNil(t, resolved.UserID)
	require.Equal(t, f.accountID, *resolved.UserID)

	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusApproved, poll.Status)
	require.NotNil(t, poll.UserID)
	require.Equal(t, f.accountID, *poll.UserID)

	// The approved poll carries the account record the web client signs
	// the user in with, not just the bare id.
	require.NotNil(t, poll.Account)
	require.Equal(t, f.accountID, poll.Account.ID)
	require.Equal(t, "Jamol", poll.Account.FirstName)
	require.NotNil(t, poll.Account.TelegramID)
	require.Equal(t, f.telegramID, *poll.Account.TelegramID)
}

func TestRejectFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	resolved, err := f.service.Resolve(ctx, auth.ActionReject, created.Token, testClientID, f.telegramID)
	require.NoError(t, err)
	require.Equal(t, auth.StatusRejected, resolved.Status)
	require.Nil(t, resolved.UserID)

	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusRejected, poll.Status)
	require.Nil(t, poll.UserID)
	require.Nil(t, poll.Account)
}

func TestDuplicateCallbackIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	_, err = f.service.Resolve(ctx, auth.ActionApprove, created.Token, testClientID, f.telegramID)
	require.NoError(t, err)

	// A second callback, even with the opposite action, must not change the
	// stored outcome.
	_, err = f.service.Resolve(ctx, auth.ActionReject, created.Token, testClientID, f.telegramID)
	require.ErrorIs(t, err, auth.ErrAlreadyResolved)

	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusApproved, poll.Status)
}

func TestClientIDMismatchReadsAsNotFound(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	_, err = f.service.Resolve(ctx, auth.ActionApprove, created.Token, "other", f.telegramID)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)

	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusPending, poll.Status)
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Poll(ctx, "deadbeefdeadbeefdeadbeefdeadbeef")
	require.ErrorIs(t, err, auth.ErrSessionNotFound)

	_, err = f.service.Resolve(ctx, auth.ActionApprove, "deadbeefdeadbeefdeadbeefdeadbeef", testClientID, f.telegramID)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestExpiredSessionRefusesCallback(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	f.store.expire(created.Token)

	_, err = f.service.Resolve(ctx, auth.ActionApprove, created.Token, testClientID, f.telegramID)
	require.ErrorIs(t, err, auth.ErrSessionExpired)

	// Expiry is derived on read; the stored row stays pending.
	session, err := f.store.GetByToken(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusPending, session.Status)

	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusExpired, poll.Status)
	require.Nil(t, poll.UserID)
}

func TestApprovedSessionDoesNotExpire(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	_, err = f.service.Resolve(ctx, auth.ActionApprove, created.Token, testClientID, f.telegramID)
	require.NoError(t, err)

	// Even past expires_at a resolved session keeps its terminal status.
	f.store.mu.Lock()
	f.store.sessions[created.Token].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	f.store.mu.Unlock()

	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusApproved, poll.Status)
}

func TestApproveWithoutLinkedAccountFails(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	_, err = f.service.Resolve(ctx, auth.ActionApprove, created.Token, testClientID, 42)
	require.ErrorIs(t, err, auth.ErrAccountNotLinked)

	// The failed approval must not consume the session.
	poll, err := f.service.Poll(ctx, created.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusPending, poll.Status)
}

func TestRejectDoesNotNeedLinkedAccount(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	resolved, err := f.service.Resolve(ctx, auth.ActionReject, created.Token, testClientID, 42)
	require.NoError(t, err)
	require.Equal(t, auth.StatusRejected, resolved.Status)
}

func TestPruneTerminalKeepsLivePendingSessions(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	live, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)

	resolved, err := f.service.Create(ctx, testClientID)
	require.NoError(t, err)
	_, err = f.service.Resolve(ctx, auth.ActionReject, resolved.Token, testClientID, f.telegramID)
	require.NoError(t, err)

	// Age both sessions past the retention cutoff.
	f.store.mu.Lock()
	for _, session := range f.store.sessions {
		session.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	}
	f.store.mu.Unlock()

	removed, err := f.service.PruneTerminal(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	poll, err := f.service.Poll(ctx, live.Token)
	require.NoError(t, err)
	require.Equal(t, auth.StatusPending, poll.Status)

	_, err = f.service.Poll(ctx, resolved.Token)
	require.ErrorIs(t, err, auth.ErrSessionNotFound)
}

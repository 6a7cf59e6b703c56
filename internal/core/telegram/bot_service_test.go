package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/stretchr/testify/require"
)

const promptTestToken = "a3f1c9d2e8b74065a1b2c3d4e5f60718"

// memoryState replaces the Redis-backed StateManager in handler tests.
type memoryState struct {
	values map[string]string
}

func newMemoryState() *memoryState {
	return &memoryState{values: make(map[string]string)}
}

func (m *memoryState) Set(_ context.Context, telegramID int64, state, value string) {
	m.values[stateKey(telegramID, state)] = value
}

func (m *memoryState) Get(_ context.Context, telegramID int64, state string) (string, bool) {
	value, ok := m.values[stateKey(telegramID, state)]
	return value, ok
}

func (m *memoryState) Clear(_ context.Context, telegramID int64, state string) {
	delete(m.values, stateKey(telegramID, state))
}

func newPromptBot(state conversationState, send func(tgbotapi.Chattable) (tgbotapi.Message, error)) *BotService {
	return &BotService{
		send:         send,
		stateManager: state,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func loginStartPayload(token string) string {
	return fmt.Sprintf("login_%s_%d_web", token, time.Now().Unix())
}

func TestLoginPromptRepeatTapIsSuppressed(t *testing.T) {
	sent := 0
	bot := newPromptBot(newMemoryState(), func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		sent++
		return tgbotapi.Message{}, nil
	})
	user := &users.User{FirstName: "Jamol", Locale: "uz"}
	payload := loginStartPayload(promptTestToken)

	bot.handleLoginStart(context.Background(), 7, 7, user, payload)
	bot.handleLoginStart(context.Background(), 7, 7, user, payload)

	require.Equal(t, 1, sent)
}

func TestLoginPromptSendFailureAllowsRetap(t *testing.T) {
	ctx := context.Background()
	state := newMemoryState()
	attempts := 0
	bot := newPromptBot(state, func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		attempts++
		if attempts == 1 {
			return tgbotapi.Message{}, errors.New("bad gateway")
		}
		return tgbotapi.Message{}, nil
	})
	user := &users.User{FirstName: "Jamol", Locale: "uz"}
	payload := loginStartPayload(promptTestToken)

	// A prompt that never reached the chat must not be marked delivered.
	bot.handleLoginStart(ctx, 7, 7, user, payload)
	require.Empty(t, state.values)

	// The next tap retries the send instead of being swallowed.
	bot.handleLoginStart(ctx, 7, 7, user, payload)
	require.Equal(t, 2, attempts)

	value, ok := state.Get(ctx, 7, "login:"+promptTestToken)
	require.True(t, ok)
	require.Equal(t, "web", value)
}

func TestLoginPromptMalformedPayloadSendsNothingStateful(t *testing.T) {
	ctx := context.Background()
	state := newMemoryState()
	sent := 0
	bot := newPromptBot(state, func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		sent++
		return tgbotapi.Message{}, nil
	})
	user := &users.User{FirstName: "Jamol", Locale: "uz"}

	bot.handleLoginStart(ctx, 7, 7, user, "login_only-two-parts")

	require.Equal(t, 1, sent)
	require.Empty(t, state.values)
}

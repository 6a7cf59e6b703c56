package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const stateTTL = 30 * time.Minute

// StateManager keeps short-lived conversation state in Redis so a bot restart
// or a second replica does not lose in-flight flows.
type StateManager struct {
	client *redis.Client
	logger *slog.Logger
}

func NewStateManager(client *redis.Client, logger *slog.Logger) *StateManager {
	return &StateManager{
		client: client,
		logger: logger.With("component", "bot-state"),
	}
}

func stateKey(telegramID int64, state string) string {
	return fmt.Sprintf("bot:state:%d:%s", telegramID, state)
}

func (sm *StateManager) Set(ctx context.Context, telegramID int64, state, value string) {
	if sm.client == nil {
		return
	}

	if err := sm.client.Set(ctx, stateKey(telegramID, state), value, stateTTL).Err(); err != nil {
		sm.logger.Warn("Failed to set conversation state",
			"telegram_id", telegramID,
			"state", state,
			"error", err.Error())
	}
}

func (sm *StateManager) Get(ctx context.Context, telegramID int64, state string) (string, bool) {
	if sm.client == nil {
		return "", false
	}

	value, err := sm.client.Get(ctx, stateKey(telegramID, state)).Result()
	if err != nil {
		if err != redis.Nil {
			sm.logger.Warn("Failed to get conversation state",
				"telegram_id", telegramID,
				"state", state,
				"error", err.Error())
		}
		return "", false
	}

	return value, true
}

func (sm *StateManager) Clear(ctx context.Context, telegramID int64, state string) {
	if sm.client == nil {
		return
	}

	if err := sm.client.Del(ctx, stateKey(telegramID, state)).Err(); err != nil {
		sm.logger.Warn("Failed to clear conversation state",
			"telegram_id", telegramID,
			"state", state,
			"error", err.Error())
	}
}

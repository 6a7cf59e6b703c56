package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jamolstroy/jamolstroy-service/internal/core/auth"
	"github.com/jamolstroy/jamolstroy-service/internal/core/orders"
	"github.com/jamolstroy/jamolstroy-service/internal/core/users"
	"github.com/jamolstroy/jamolstroy-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// conversationState is the slice of StateManager the update handlers touch.
type conversationState interface {
	Set(ctx context.Context, telegramID int64, state, value string)
	Get(ctx context.Context, telegramID int64, state string) (string, bool)
	Clear(ctx context.Context, telegramID int64, state string)
}

// BotService runs the Telegram side of the storefront: login approvals,
// order notifications and the small command surface.
type BotService struct {
	bot           *tgbotapi.BotAPI
	send          func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	usersService  *users.Service
	authService   *auth.Service
	ordersService *orders.Service
	stateManager  conversationState
	logger        *slog.Logger
}

func NewBotService(token string, debug bool, usersService *users.Service, authService *auth.Service, ordersService *orders.Service, stateManager *StateManager, logger *slog.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot.Debug = debug

	return &BotService{
		bot:           bot,
		send:          bot.Send,
		usersService:  usersService,
		authService:   authService,
		ordersService: ordersService,
		stateManager:  stateManager,
		logger:        logger.With("component", "telegram_bot"),
	}, nil
}

// Username returns the bot account name deep links are built against.
func (s *BotService) Username() string {
	return s.bot.Self.UserName
}

func (s *BotService) Start(ctx context.Context) error {
	s.logger.Info("Starting Telegram bot", "bot_username", s.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := s.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Bot context cancelled, stopping")
			s.bot.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message != nil {
				go s.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				go s.handleCallbackQuery(ctx, update.CallbackQuery)
			}
		}
	}
}

func (s *BotService) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	from := message.From
	chatID := message.Chat.ID

	if telemetry.TelegramMessagesTotal != nil {
		telemetry.TelegramMessagesTotal.Add(ctx, 1)
	}

	s.logger.Info("Received message",
		"user_id", from.ID,
		"username", from.UserName,
		"chat_id", chatID,
		"is_command", message.IsCommand())

	user, err := s.usersService.GetOrCreateFromTelegram(ctx, users.TelegramProfile{
		TelegramID:   from.ID,
		Username:     optional(from.UserName),
		FirstName:    from.FirstName,
		LastName:     optional(from.LastName),
		LanguageCode: optional(from.LanguageCode),
	})
	if err != nil {
		s.logger.Error("Failed to resolve user", "error", err.Error())
		s.countError(ctx, "user_resolution")
		s.sendMessage(chatID, msg("en", "internal_error"))
		return
	}

	if message.IsCommand() {
		s.handleCommand(ctx, message, user)
		return
	}

	s.sendMessage(chatID, msg(user.Locale, "unknown_command"))
}

func (s *BotService) handleCommand(ctx context.Context, message *tgbotapi.Message, user *users.User) {
	command := message.Command()
	args := message.CommandArguments()
	chatID := message.Chat.ID

	if telemetry.TelegramCommandsTotal != nil {
		telemetry.TelegramCommandsTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("command", command)))
	}

	switch command {
	case "start":
		if args != "" {
			s.handleLoginStart(ctx, chatID, message.From.ID, user, args)
			return
		}
		s.sendMessage(chatID, msg(user.Locale, "welcome", user.FirstName))
	case "help":
		s.sendMessage(chatID, msg(user.Locale, "help"))
	case "myid":
		s.sendMessage(chatID, fmt.Sprintf("🆔 <code>%d</code>", message.From.ID))
	case "orders":
		s.handleOrdersCommand(ctx, chatID, user)
	case "status":
		s.handleStatusCommand(ctx, chatID, user)
	case "allorders":
		if !s.usersService.IsAdmin(message.From.ID) {
			s.sendMessage(chatID, msg(user.Locale, "not_admin"))
			return
		}
		s.handleAllOrdersCommand(ctx, chatID, user)
	default:
		s.sendMessage(chatID, msg(user.Locale, "unknown_command"))
	}
}

// handleLoginStart answers a login deep link with an approve/reject prompt.
// The session is not touched yet; only pressing a button resolves it.
func (s *BotService) handleLoginStart(ctx context.Context, chatID, telegramID int64, user *users.User, payload string) {
	parsed, err := auth.ParseStartPayload(payload)
	if err != nil {
		s.logger.Warn("Malformed login deep link",
			"chat_id", chatID,
			"payload_len", len(payload))
		s.sendMessage(chatID, msg(user.Locale, "login_bad_payload"))
		return
	}

	// Tapping the same deep link twice should not stack prompts.
	if _, prompted := s.stateManager.Get(ctx, telegramID, "login:"+parsed.Token); prompted {
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Tasdiqlash",
				auth.BuildCallbackData(auth.ActionApprove, parsed.Token, parsed.ClientID)),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Rad etish",
				auth.BuildCallbackData(auth.ActionReject, parsed.Token, parsed.ClientID)),
		),
	)

	prompt := tgbotapi.NewMessage(chatID, msg(user.Locale, "login_prompt", parsed.ClientID))
	prompt.ParseMode = tgbotapi.ModeHTML
	prompt.ReplyMarkup = keyboard

	if _, err := s.send(prompt); err != nil {
		s.logger.Error("Failed to send login prompt", "error", err.Error(), "chat_id", chatID)
		s.countError(ctx, "send_login_prompt")
		return
	}

	// Mark the prompt as delivered only once it actually reached the chat,
	// so a failed send does not swallow the user's next tap.
	s.stateManager.Set(ctx, telegramID, "login:"+parsed.Token, parsed.ClientID)
}

func (s *BotService) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	s.logger.Info("Received callback query",
		"user_id", callback.From.ID,
		"data", callback.Data)

	parts := strings.Split(callback.Data, "_")
	if len(parts) < 2 {
		s.answerCallback(callback.ID, msg("en", "login_bad_payload"))
		return
	}

	switch parts[0] {
	case "login":
		s.handleLoginCallback(ctx, callback, parts)
	default:
		s.answerCallback(callback.ID, msg("en", "unknown_command"))
	}
}

// handleLoginCallback resolves the login session and rewrites the prompt
// message so the buttons cannot be pressed twice from the same chat.
func (s *BotService) handleLoginCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, parts []string) {
	locale := "uz"
	if user, err := s.usersService.GetUserByTelegramID(ctx, callback.From.ID); err == nil && user != nil {
		locale = user.Locale
	}

	payload, err := auth.ParseCallbackPayload(parts)
	if err != nil {
		s.answerCallback(callback.ID, msg(locale, "login_bad_payload"))
		return
	}

	result, err := s.authService.Resolve(ctx, payload.Action, payload.Token, payload.ClientID, callback.From.ID)
	if err != nil {
		var answer string
		switch {
		case errors.Is(err, auth.ErrAlreadyResolved):
			answer = msg(locale, "login_already_done")
		case errors.Is(err, auth.ErrSessionExpired):
			answer = msg(locale, "login_expired")
		case errors.Is(err, auth.ErrSessionNotFound):
			answer = msg(locale, "login_not_found")
		default:
			s.logger.Error("Failed to resolve login session", "error", err.Error())
			s.countError(ctx, "login_resolve")
			answer = msg(locale, "internal_error")
		}
		s.answerCallback(callback.ID, answer)
		return
	}

	s.stateManager.Clear(ctx, callback.From.ID, "login:"+payload.Token)

	outcome := msg(locale, "login_rejected")
	if result.Status == auth.StatusApproved {
		outcome = msg(locale, "login_approved")
	}

	if callback.Message != nil {
		edit := tgbotapi.NewEditMessageText(callback.Message.Chat.ID, callback.Message.MessageID, outcome)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := s.send(edit); err != nil {
			s.logger.Error("Failed to edit login prompt", "error", err.Error())
		}
	}

	s.answerCallback(callback.ID, outcome)
}

func (s *BotService) handleOrdersCommand(ctx context.Context, chatID int64, user *users.User) {
	orderList, err := s.ordersService.ListOrders(ctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to list orders", "error", err.Error())
		s.countError(ctx, "list_orders")
		s.sendMessage(chatID, msg(user.Locale, "internal_error"))
		return
	}

	if len(orderList) == 0 {
		s.sendMessage(chatID, msg(user.Locale, "no_orders"))
		return
	}

	var b strings.Builder
	b.WriteString("📦 <b>Buyurtmalar:</b>\n\n")
	for i, order := range orderList {
		if i >= 10 {
			break
		}
		b.WriteString(fmt.Sprintf("• <code>%s</code> | %s | %s\n",
			shortID(order.ID.String()),
			formatAmount(order.Total),
			order.Status))
	}

	s.sendMessage(chatID, b.String())
}

func (s *BotService) handleStatusCommand(ctx context.Context, chatID int64, user *users.User) {
	orderList, err := s.ordersService.ListOrders(ctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to list orders", "error", err.Error())
		s.countError(ctx, "order_status")
		s.sendMessage(chatID, msg(user.Locale, "internal_error"))
		return
	}

	if len(orderList) == 0 {
		s.sendMessage(chatID, msg(user.Locale, "no_orders"))
		return
	}

	latest := orderList[0]
	s.sendMessage(chatID, msg(user.Locale, "order_status",
		shortID(latest.ID.String()), string(latest.Status)))
}

func (s *BotService) handleAllOrdersCommand(ctx context.Context, chatID int64, user *users.User) {
	orderList, err := s.ordersService.ListAllOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to list open orders", "error", err.Error())
		s.countError(ctx, "list_all_orders")
		s.sendMessage(chatID, msg(user.Locale, "internal_error"))
		return
	}

	if len(orderList) == 0 {
		s.sendMessage(chatID, msg(user.Locale, "no_orders"))
		return
	}

	var b strings.Builder
	b.WriteString("📦 <b>Ochiq buyurtmalar:</b>\n\n")
	for _, order := range orderList {
		b.WriteString(fmt.Sprintf("• <code>%s</code> | %s | %s\n",
			shortID(order.ID.String()),
			formatAmount(order.Total),
			order.Status))
	}

	s.sendMessage(chatID, b.String())
}

// NotifyOrderPlaced tells the user in Telegram that their web order landed.
// Best effort: a user with no Telegram link is skipped silently.
func (s *BotService) NotifyOrderPlaced(ctx context.Context, order *orders.Order) {
	locale, chatID, ok := s.notifyTarget(ctx, order)
	if !ok {
		return
	}

	s.sendMessage(chatID, msg(locale, "order_placed",
		shortID(order.ID.String()),
		formatAmount(order.Total),
		string(order.Status)))
}

// NotifyOrderStatus tells the user their order moved to a new status.
func (s *BotService) NotifyOrderStatus(ctx context.Context, order *orders.Order) {
	locale, chatID, ok := s.notifyTarget(ctx, order)
	if !ok {
		return
	}

	s.sendMessage(chatID, msg(locale, "order_status",
		shortID(order.ID.String()), string(order.Status)))
}

func (s *BotService) notifyTarget(ctx context.Context, order *orders.Order) (string, int64, bool) {
	user, err := s.usersService.GetUserByID(ctx, order.UserID)
	if err != nil {
		s.logger.Error("Failed to load user for notification",
			"user_id", order.UserID.String(),
			"error", err.Error())
		return "", 0, false
	}
	if user == nil || user.TelegramID == nil {
		return "", 0, false
	}
	return user.Locale, *user.TelegramID, true
}

func (s *BotService) sendMessage(chatID int64, text string) {
	message := tgbotapi.NewMessage(chatID, text)
	message.ParseMode = tgbotapi.ModeHTML
	message.DisableWebPagePreview = true

	if _, err := s.send(message); err != nil {
		s.logger.Error("Failed to send message", "error", err.Error(), "chat_id", chatID)
	}
}

func (s *BotService) answerCallback(callbackQueryID, text string) {
	callback := tgbotapi.NewCallback(callbackQueryID, text)
	if _, err := s.bot.Request(callback); err != nil {
		s.logger.Error("Failed to answer callback query", "error", err.Error())
	}
}

func (s *BotService) countError(ctx context.Context, kind string) {
	if telemetry.TelegramErrorsTotal != nil {
		telemetry.TelegramErrorsTotal.Add(ctx, 1,
			api.WithAttributes(attribute.String("kind", kind)))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

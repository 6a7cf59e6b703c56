package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jamolstroy/jamolstroy-service/internal/infra/postgres"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("users-service")

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TelegramID *int64    `json:"telegram_id" db:"telegram_id"`
	Username   *string   `json:"username" db:"username"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   *string   `json:"last_name" db:"last_name"`
	Phone      *string   `json:"phone" db:"phone"`
	Locale     string    `json:"locale" db:"locale"`
	IsAdmin    bool      `json:"is_admin" db:"is_admin"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TelegramProfile carries the identity fields delivered with every bot update.
type TelegramProfile struct {
	TelegramID   int64
	Username     *string
	FirstName    string
	LastName     *string
	LanguageCode *string
}

// ProfileUpdate holds the user-editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Locale    *string
}

type Service struct {
	db     postgres.DB
	admins map[int64]bool
}

func NewService(db postgres.DB, adminIDs []int64) *Service {
	admins := make(map[int64]bool)
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &Service{
		db:     db,
		admins: admins,
	}
}

func (s *Service) IsAdmin(telegramID int64) bool {
	return s.admins[telegramID]
}

const userColumns = `id, telegram_id, username, first_name, last_name, phone, locale, is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Locale,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	ctx, span := tracer.Start(ctx, "users.GetUserByTelegramID")
	defer span.End()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE telegram_id = $1
	`

	user, err := scanUser(s.db.QueryRow(ctx, query, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user by telegram_id %d: %w", telegramID, err)
	}

	return user, nil
}

// GetOrCreateFromTelegram resolves the account linked to a Telegram user,
// creating it on first contact.
func (s *Service) GetOrCreateFromTelegram(ctx context.Context, profile TelegramProfile) (*User, error) {
	ctx, span := tracer.Start(ctx, "users.GetOrCreateFromTelegram")
	defer span.End()

	user, err := s.GetUserByTelegramID(ctx, profile.TelegramID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	locale := "uz"
	if profile.LanguageCode != nil {
		locale = normalizeLocale(*profile.LanguageCode)
	}

	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, locale, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + userColumns

	user, err = scanUser(s.db.QueryRow(ctx, query,
		profile.TelegramID,
		profile.Username,
		profile.FirstName,
		profile.LastName,
		locale,
		s.admins[profile.TelegramID],
	))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// AccountIDByTelegramID implements the identity resolution the login session
// manager binds user_id through at approval time.
func (s *Service) AccountIDByTelegramID(ctx context.Context, telegramID int64) (uuid.UUID, error) {
	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return uuid.Nil, err
	}
	if user == nil {
		return uuid.Nil, ErrUserNotFound
	}
	return user.ID, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	ctx, span := tracer.Start(ctx, "users.GetUserByID")
	defer span.End()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	user, err := scanUser(s.db.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user by ID %s: %w", userID.String(), err)
	}

	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*User, error) {
	ctx, span := tracer.Start(ctx, "users.UpdateProfile")
	defer span.End()

	query := `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    phone = COALESCE($4, phone),
		    locale = COALESCE($5, locale),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRow(ctx, query,
		userID,
		update.FirstName,
		update.LastName,
		update.Phone,
		update.Locale,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update user %s: %w", userID.String(), err)
	}

	return user, nil
}

func (s *Service) GetAllUsers(ctx context.Context) ([]*User, error) {
	ctx, span := tracer.Start(ctx, "users.GetAllUsers")
	defer span.End()

	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY first_name, last_name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating over users: %w", err)
	}

	return users, nil
}

// normalizeLocale converts language codes to supported locales
func normalizeLocale(languageCode string) string {
	switch languageCode {
	case "uz", "uz-UZ":
		return "uz"
	case "ru", "ru-RU":
		return "ru"
	case "en", "en-US", "en-GB":
		return "en"
	default:
		return "uz" // Default to Uzbek
	}
}

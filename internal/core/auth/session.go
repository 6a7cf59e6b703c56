package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a login session. The stored column only
// ever holds pending, approved or rejected; expired is derived at read time
// from the expires_at timestamp.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Action is the approval decision carried in a bot callback.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// SessionTTL is how long a login session stays answerable after creation.
const SessionTTL = 10 * time.Minute

// LoginSession correlates a web login request with a Telegram approval.
// The row is written twice in its lifetime: once on insert and once on the
// terminal transition. Polling reads it arbitrarily many times.
type LoginSession struct {
	Token      string     `json:"token" db:"token"`
	ClientID   string     `json:"client_id" db:"client_id"`
	Status     Status     `json:"status" db:"status"`
	UserID     *uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	ApprovedAt *time.Time `json:"approved_at" db:"approved_at"`
}

// ExpiredAt reports whether the session is expired when observed at t while
// still stored as pending. Approved and rejected sessions never flip back.
func (s *LoginSession) ExpiredAt(t time.Time) bool {
	return s.Status == StatusPending && !t.Before(s.ExpiresAt)
}

// EffectiveStatus computes the status a reader at t must report.
func (s *LoginSession) EffectiveStatus(t time.Time) Status {
	if s.ExpiredAt(t) {
		return StatusExpired
	}
	return s.Status
}

var (
	// ErrSessionNotFound covers both an unknown token and a client_id that
	// does not match the session the token belongs to.
	ErrSessionNotFound = errors.New("login session not found")

	// ErrSessionExpired is returned when a callback arrives at or after
	// expires_at while the stored status is still pending.
	ErrSessionExpired = errors.New("login session expired")

	// ErrAlreadyResolved is returned for a callback on a session that has
	// already made its terminal transition.
	ErrAlreadyResolved = errors.New("login session already resolved")

	// ErrMalformedPayload is returned when a start or callback payload does
	// not parse into the expected fields.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidClientID is returned by Create for a client id that cannot
	// be embedded in a deep link payload.
	ErrInvalidClientID = errors.New("invalid client id")

	// ErrAccountNotLinked is returned when an approval cannot be bound to an
	// application account for the acting Telegram user.
	ErrAccountNotLinked = errors.New("telegram user has no linked account")
)

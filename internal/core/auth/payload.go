package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	payloadDiscriminator = "login"

	// Telegram caps both the ?start= payload and callback data at 64 bytes,
	// so the client id has to stay short enough to fit next to the token.
	maxClientIDLen = 12
)

// StartPayload is the parsed form of a login deep-link start parameter:
// login_<token>_<unix-ts>_<client-id>.
type StartPayload struct {
	Token    string
	IssuedAt time.Time
	ClientID string
}

// CallbackPayload is the parsed form of an approval button callback:
// login_<action>_<token>_<client-id>.
type CallbackPayload struct {
	Action   Action
	Token    string
	ClientID string
}

// validClientID reports whether id can be embedded in deep-link and callback
// payloads. The underscore is the payload delimiter and is not allowed.
func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// BuildDeepLink constructs the bot deep link that carries the login token and
// client id into the bot conversation.
func BuildDeepLink(botUsername, token, clientID string, issuedAt time.Time) string {
	payload := fmt.Sprintf("%s_%s_%d_%s", payloadDiscriminator, token, issuedAt.Unix(), clientID)
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, payload)
}

// ParseStartPayload parses a /start deep-link payload. Anything that does not
// match the expected shape is rejected with ErrMalformedPayload so the bot
// conversation can answer generically and move on.
func ParseStartPayload(payload string) (*StartPayload, error) {
	parts := strings.Split(payload, "_")
	if len(parts) != 4 || parts[0] != payloadDiscriminator {
		return nil, ErrMalformedPayload
	}

	token := parts[1]
	if token == "" {
		return nil, ErrMalformedPayload
	}

	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	clientID := parts[3]
	if !validClientID(clientID) {
		return nil, ErrMalformedPayload
	}

	return &StartPayload{
		Token:    token,
		IssuedAt: time.Unix(ts, 0),
		ClientID: clientID,
	}, nil
}

// BuildCallbackData constructs the callback data for an approval button.
func BuildCallbackData(action Action, token, clientID string) string {
	return fmt.Sprintf("%s_%s_%s_%s", payloadDiscriminator, action, token, clientID)
}

// ParseCallbackPayload parses approval button callback data that has already
// been split on underscores by the callback router.
func ParseCallbackPayload(parts []string) (*CallbackPayload, error) {
	if len(parts) != 4 || parts[0] != payloadDiscriminator {
		return nil, ErrMalformedPayload
	}

	action := Action(parts[1])
	if action != ActionApprove && action != ActionReject {
		return nil, ErrMalformedPayload
	}

	token := parts[2]
	if token == "" {
		return nil, ErrMalformedPayload
	}

	clientID := parts[3]
	if !validClientID(clientID) {
		return nil, ErrMalformedPayload
	}

	return &CallbackPayload{
		Action:   action,
		Token:    token,
		ClientID: clientID,
	}, nil
}

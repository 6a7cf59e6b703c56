package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jamolstroy/jamolstroy-service/internal/core/auth"
	"github.com/stretchr/testify/require"
)

const testToken = "a3f1c9d2e8b74065a1b2c3d4e5f60718"

func TestDeepLinkRoundTrip(t *testing.T) {
	issuedAt := time.Unix(1756700000, 0)
	link := auth.BuildDeepLink("jamolstroy_bot", testToken, "web", issuedAt)
	require.Equal(t, "https://t.me/jamolstroy_bot?start=login_"+testToken+"_1756700000_web", link)

	payload := strings.TrimPrefix(link, "https://t.me/jamolstroy_bot?start=")
	parsed, err := auth.ParseStartPayload(payload)
	require.NoError(t, err)
	require.Equal(t, testToken, parsed.Token)
	require.Equal(t, "web", parsed.ClientID)
	require.Equal(t, issuedAt.Unix(), parsed.IssuedAt.Unix())
}

func TestParseStartPayloadRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":                "",
		"wrong discriminator":  "signup_" + testToken + "_1756700000_web",
		"missing client id":    "login_" + testToken + "_1756700000",
		"extra segment":        "login_" + testToken + "_1756700000_web_x",
		"empty token":          "login__1756700000_web",
		"non-numeric ts":       "login_" + testToken + "_soon_web",
		"empty client id":      "login_" + testToken + "_1756700000_",
		"client id too long":   "login_" + testToken + "_1756700000_abcdefghijklm",
		"client id bad symbol": "login_" + testToken + "_1756700000_web!",
	}

	for name, payload := range cases {
		_, err := auth.ParseStartPayload(payload)
		require.ErrorIs(t, err, auth.ErrMalformedPayload, name)
	}
}

func TestCallbackDataRoundTrip(t *testing.T) {
	for _, action := range []auth.Action{auth.ActionApprove, auth.ActionReject} {
		data := auth.BuildCallbackData(action, testToken, "web")
		parsed, err := auth.ParseCallbackPayload(strings.Split(data, "_"))
		require.NoError(t, err)
		require.Equal(t, action, parsed.Action)
		require.Equal(t, testToken, parsed.Token)
		require.Equal(t, "web", parsed.ClientID)
	}
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	// Telegram rejects callback data over 64 bytes, so the longest legal
	// client id still has to fit next to a 32-char token.
	data := auth.BuildCallbackData(auth.ActionApprove, testToken, "windows-3000")
	require.LessOrEqual(t, len(data), 64)
}

func TestParseCallbackPayloadRejectsMalformedInput(t *testing.T) {
	cases := map[string][]string{
		"empty":               {},
		"wrong discriminator": {"order", "approve", testToken, "web"},
		"unknown action":      {"login", "maybe", testToken, "web"},
		"missing client id":   {"login", "approve", testToken},
		"empty token":         {"login", "approve", "", "web"},
		"bad client id":       {"login", "reject", testToken, "w b"},
	}

	for name, parts := range cases {
		_, err := auth.ParseCallbackPayload(parts)
		require.ErrorIs(t, err, auth.ErrMalformedPayload, name)
	}
}

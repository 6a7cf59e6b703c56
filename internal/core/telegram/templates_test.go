package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMsgResolvesLocale(t *testing.T) {
	require.Equal(t, "🚫 Kirish rad etildi.", msg("uz", "login_rejected"))
	require.Equal(t, "🚫 Вход отклонён.", msg("ru", "login_rejected"))
	require.Equal(t, "🚫 Login rejected.", msg("en", "login_rejected"))
}

func TestMsgFallsBackToEnglish(t *testing.T) {
	require.Equal(t, msg("en", "help"), msg("de", "help"))
	require.Equal(t, msg("en", "help"), msg("", "help"))
}

func TestMsgFormatsArguments(t *testing.T) {
	text := msg("en", "welcome", "Jamol")
	require.Contains(t, text, "Hello, Jamol!")
}

func TestEveryLocaleCoversEveryMessage(t *testing.T) {
	for id := range messages["en"] {
		for locale, catalog := range messages {
			_, ok := catalog[id]
			require.True(t, ok, "locale %s missing %s", locale, id)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "0 so'm", formatAmount(0))
	require.Equal(t, "950 so'm", formatAmount(95000))
	require.Equal(t, "1 000 so'm", formatAmount(100000))
	require.Equal(t, "25 500 so'm", formatAmount(2550000))
	require.Equal(t, "1 250 000 so'm", formatAmount(125000000))
}

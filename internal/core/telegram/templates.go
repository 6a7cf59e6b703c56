package telegram

import "fmt"

// messages is the localized bot text catalog keyed by locale then message id.
// Uzbek is the primary audience; Russian and English cover the rest.
var messages = map[string]map[string]string{
	"uz": {
		"welcome":            "👋 Assalomu alaykum, %s!\n\nJamolStroy botiga xush kelibsiz. Qurilish mollari va ustalar shu yerda.\n\nBuyruqlar uchun /help yozing.",
		"help":               "📋 Buyruqlar:\n/start - botni ishga tushirish\n/orders - buyurtmalarim\n/status - oxirgi buyurtma holati\n/myid - Telegram ID raqamim\n/help - yordam",
		"login_prompt":       "🔐 <b>%s</b> saytiga kirishni tasdiqlaysizmi?\n\nAgar bu so'rovni siz yubormagan bo'lsangiz, rad eting.",
		"login_approved":     "✅ Kirish tasdiqlandi. Saytga qayting.",
		"login_rejected":     "🚫 Kirish rad etildi.",
		"login_expired":      "⌛ So'rov muddati tugagan. Saytda qaytadan urinib ko'ring.",
		"login_already_done": "Bu so'rov allaqachon hal qilingan.",
		"login_not_found":    "So'rov topilmadi.",
		"login_bad_payload":  "❌ Noto'g'ri havola.",
		"no_orders":          "Sizda hali buyurtmalar yo'q.",
		"internal_error":     "❌ Ichki xatolik. Keyinroq urinib ko'ring.",
		"unknown_command":    "❓ Noma'lum buyruq. /help yozing.",
		"not_admin":          "❌ Bu buyruq faqat adminlar uchun.",
		"order_placed":       "🛒 Buyurtma qabul qilindi!\nRaqam: %s\nSumma: %s\nHolat: %s",
		"order_status":       "📦 Buyurtma %s holati: %s",
	},
	"ru": {
		"welcome":            "👋 Здравствуйте, %s!\n\nДобро пожаловать в бот JamolStroy. Стройматериалы и мастера здесь.\n\nНаберите /help для списка команд.",
		"help":               "📋 Команды:\n/start - запустить бота\n/orders - мои заказы\n/status - статус последнего заказа\n/myid - мой Telegram ID\n/help - помощь",
		"login_prompt":       "🔐 Подтвердить вход на сайт <b>%s</b>?\n\nЕсли это были не вы, отклоните запрос.",
		"login_approved":     "✅ Вход подтверждён. Вернитесь на сайт.",
		"login_rejected":     "🚫 Вход отклонён.",
		"login_expired":      "⌛ Запрос устарел. Попробуйте снова на сайте.",
		"login_already_done": "Этот запрос уже обработан.",
		"login_not_found":    "Запрос не найден.",
		"login_bad_payload":  "❌ Некорректная ссылка.",
		"no_orders":          "У вас пока нет заказов.",
		"internal_error":     "❌ Внутренняя ошибка. Попробуйте позже.",
		"unknown_command":    "❓ Неизвестная команда. Наберите /help.",
		"not_admin":          "❌ Команда доступна только администраторам.",
		"order_placed":       "🛒 Заказ принят!\nНомер: %s\nСумма: %s\nСтатус: %s",
		"order_status":       "📦 Статус заказа %s: %s",
	},
	"en": {
		"welcome":            "👋 Hello, %s!\n\nWelcome to the JamolStroy bot. Construction materials and workers, right here.\n\nType /help for commands.",
		"help":               "📋 Commands:\n/start - start the bot\n/orders - my orders\n/status - latest order status\n/myid - my Telegram ID\n/help - help",
		"login_prompt":       "🔐 Approve login to <b>%s</b>?\n\nIf this wasn't you, reject the request.",
		"login_approved":     "✅ Login approved. Return to the site.",
		"login_rejected":     "🚫 Login rejected.",
		"login_expired":      "⌛ The request has expired. Try again on the site.",
		"login_already_done": "This request was already handled.",
		"login_not_found":    "Request not found.",
		"login_bad_payload":  "❌ Invalid link.",
		"no_orders":          "You have no orders yet.",
		"internal_error":     "❌ Internal error. Please try again later.",
		"unknown_command":    "❓ Unknown command. Type /help.",
		"not_admin":          "❌ This command is for admins only.",
		"order_placed":       "🛒 Order received!\nNumber: %s\nTotal: %s\nStatus: %s",
		"order_status":       "📦 Order %s status: %s",
	},
}

// msg looks up a message for the locale, falling back to English.
func msg(locale, id string, args ...interface{}) string {
	catalog, ok := messages[locale]
	if !ok {
		catalog = messages["en"]
	}
	text, ok := catalog[id]
	if !ok {
		text = messages["en"][id]
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// formatAmount renders a minor-unit price as whole som, grouped in thousands.
func formatAmount(minor int64) string {
	value := minor / 100
	if value < 1000 {
		return fmt.Sprintf("%d so'm", value)
	}

	var out []byte
	s := fmt.Sprintf("%d", value)
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, byte(r))
	}
	return string(out) + " so'm"
}

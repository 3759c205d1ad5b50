package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// UI texts in English
const (
	welcomeText = "Hello! I am F1ScheduleTelegramBot. I am currently mostly hardcoded, " +
		"but more features will be coming soon!\n\n" +
		"Your chat has been registered successfully 🏁"
	alreadyRegisteredText    = "Your chat has already been registered! 🚩🚩🚩"
	standingsUnavailableText = "Standings are unavailable right now, please try again later."
	scheduleTitle            = "Scheduled jobs: \n"
	chatsTitle               = "Registered chats: \n"
)

// Commands is the public command menu. /schedule and /chats are operator-only
// and stay hidden.
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Register this chat for session reminders"},
		{Command: "standings", Description: "Current driver and constructor standings"},
	}
}

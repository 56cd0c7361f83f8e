// Package telegram provides the Telegram Bot API transport the bot delivers
// notices through. It is hand-rolled over net/http; the bot only needs
// sendMessage, sendPhoto and setWebhook.
package telegram

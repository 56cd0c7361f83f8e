// Package webhook serves the Telegram webhook endpoint. User commands and
// alert notices arrive as updates on a secret URL path and are routed to
// the bot.
package webhook

// Package bot is the notification dispatcher. It reacts to alert notices
// (preliminary, update, retraction) and user commands, keeps the event store
// fresh, and fans enriched event records out to every durable subscriber,
// isolating per-subscriber delivery failures.
package bot

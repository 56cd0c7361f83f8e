package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Roald87/GraceDB/internal/detector"
	"github.com/Roald87/GraceDB/internal/events"
	"github.com/Roald87/GraceDB/internal/subscribers"
	"github.com/Roald87/GraceDB/internal/telegram"
)

// Transport delivers notices to a chat. *telegram.Client satisfies it.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, path string) error
}

// EventStore is the slice of the event store the bot needs.
type EventStore interface {
	UpdateAll(ctx context.Context) error
	UpdateSingle(ctx context.Context, eventID string) error
	Latest() string
	Get(eventID string) *events.Event
	All() []*events.Event
}

// PictureCache materializes event sky-map images on disk.
type PictureCache interface {
	Picture(ctx context.Context, eventID string) (string, error)
}

// DetectorStatuser reports the current state of the detectors.
type DetectorStatuser interface {
	Statuses(ctx context.Context) ([]detector.Status, error)
}

// Bot reacts to alert notices and user commands, and fans enriched event
// records out to every subscriber.
type Bot struct {
	store       EventStore
	pictures    PictureCache
	subscribers *subscribers.Set[int64]
	announced   *subscribers.Set[string]
	transport   Transport
	detectors   DetectorStatuser
	log         zerolog.Logger
}

// New creates a Bot. detectors may be nil; the /status command then reports
// the status page as unavailable.
func New(
	store EventStore,
	pictures PictureCache,
	subs *subscribers.Set[int64],
	announced *subscribers.Set[string],
	transport Transport,
	detectors DetectorStatuser,
	log zerolog.Logger,
) *Bot {
	return &Bot{
		store:       store,
		pictures:    pictures,
		subscribers: subs,
		announced:   announced,
		transport:   transport,
		detectors:   detectors,
		log:         log.With().Str("component", "bot").Logger(),
	}
}

// HandlePreliminary reacts to a "new event" notice: refresh everything, then
// announce the freshest event unless it was announced before. The announce
// ledger guarantees at most one "new event" fan-out per event id, even when
// the periodic refresh reprocesses it.
func (b *Bot) HandlePreliminary(ctx context.Context) error {
	if err := b.store.UpdateAll(ctx); err != nil {
		return fmt.Errorf("handling preliminary notice: %w", err)
	}

	eventID := b.store.Latest()
	if eventID == "" {
		b.log.Warn().Msg("preliminary notice but event cache is empty")
		return nil
	}
	if b.announced.Contains(eventID) {
		b.log.Info().Str("event_id", eventID).Msg("event already announced, skipping fan-out")
		return nil
	}
	if err := b.announced.Add(eventID); err != nil {
		// The in-memory ledger still holds the id, so this run won't
		// double-announce; a restart might.
		b.log.Error().Err(err).Msg("persisting announce ledger failed")
	}

	b.fanOut(ctx, "A new event has been measured!", eventID)
	return nil
}

// HandleUpdate reacts to an "event updated" notice for one event id.
func (b *Bot) HandleUpdate(ctx context.Context, eventID string) error {
	eventID = events.NormalizeID(eventID)
	if err := b.store.UpdateSingle(ctx, eventID); err != nil {
		return fmt.Errorf("handling update notice: %w", err)
	}

	b.fanOut(ctx, fmt.Sprintf("Event %s has been updated.", eventID), eventID)
	return nil
}

// HandleRetraction reacts to a retraction notice. The notice goes out with
// the record as it was cached before the retraction, then the cache is
// reconciled.
func (b *Bot) HandleRetraction(ctx context.Context, eventID string) error {
	eventID = events.NormalizeID(eventID)
	b.fanOut(ctx, fmt.Sprintf("Event %s has been retracted. The event details were:", eventID), eventID)

	if err := b.store.UpdateAll(ctx); err != nil {
		return fmt.Errorf("reconciling after retraction: %w", err)
	}
	return nil
}

// fanOut delivers a notice plus the enriched event record to every
// subscriber. One recipient's failure never aborts delivery to the rest.
func (b *Bot) fanOut(ctx context.Context, text, eventID string) {
	for _, chatID := range b.subscribers.Members() {
		if err := b.transport.SendMessage(ctx, chatID, text); err != nil {
			if errors.Is(err, telegram.ErrBlocked) {
				b.log.Info().Int64("chat_id", chatID).Msg("subscriber has blocked the bot, skipping")
			} else {
				b.log.Error().Int64("chat_id", chatID).Err(err).Msg("failed to notify subscriber")
			}
			continue
		}
		b.sendEventInfo(ctx, chatID, eventID)
	}
}

// sendEventInfo sends the enriched record of an event to one chat. A
// missing picture or missing enrichment never blocks the base notice.
func (b *Bot) sendEventInfo(ctx context.Context, chatID int64, eventID string) {
	ev := b.store.Get(eventID)
	if ev == nil {
		b.log.Warn().Str("event_id", eventID).Msg("no cached record to send")
		return
	}

	if err := b.transport.SendMessage(ctx, chatID, formatEventInfo(ev)); err != nil {
		b.log.Error().Int64("chat_id", chatID).Err(err).Msg("failed to send event info")
		return
	}

	path, err := b.pictures.Picture(ctx, ev.ID)
	if err != nil {
		b.log.Error().Str("event_id", ev.ID).Err(err).Msg("couldn't find the event image")
		return
	}
	if err := b.transport.SendPhoto(ctx, chatID, path); err != nil {
		b.log.Error().Int64("chat_id", chatID).Err(err).Msg("failed to send event image")
	}
}

// SendLatest sends the details of the most recent event to one chat.
func (b *Bot) SendLatest(ctx context.Context, chatID int64) error {
	eventID := b.store.Latest()
	if eventID == "" {
		return b.transport.SendMessage(ctx, chatID, "No events found, try again later.")
	}
	b.sendEventInfo(ctx, chatID, eventID)
	return nil
}

// SendWelcome greets a new user.
func (b *Bot) SendWelcome(ctx context.Context, chatID int64) error {
	text := "Get information on LIGO/Virgo gravitational wave events.\n\n" +
		"Use /latest to see the latest event, or see an overview of all " +
		"O3 events with /stats. Use /subscribe to receive a message when " +
		"a new event is measured."
	return b.transport.SendMessage(ctx, chatID, text)
}

// SendStats sends an overview of the current observation run to one chat.
func (b *Bot) SendStats(ctx context.Context, chatID int64) error {
	return b.transport.SendMessage(ctx, chatID, formatStats(b.store.All()))
}

// SendDetectorStatus sends the current state of all detectors to one chat.
func (b *Bot) SendDetectorStatus(ctx context.Context, chatID int64) error {
	if b.detectors == nil {
		return b.transport.SendMessage(ctx, chatID, "Detector status is currently unavailable.")
	}

	statuses, err := b.detectors.Statuses(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("fetching detector status failed")
		return b.transport.SendMessage(ctx, chatID, "Detector status is currently unavailable.")
	}
	return b.transport.SendMessage(ctx, chatID, formatDetectorStatus(statuses))
}

// Subscribe adds the chat to the subscriber set.
func (b *Bot) Subscribe(ctx context.Context, chatID int64) error {
	if b.subscribers.Contains(chatID) {
		return b.transport.SendMessage(ctx, chatID, "You are already subscribed.")
	}
	if err := b.subscribers.Add(chatID); err != nil {
		b.log.Error().Int64("chat_id", chatID).Err(err).Msg("persisting subscriber failed")
	}
	return b.transport.SendMessage(ctx, chatID, "You will now receive the latest event updates.")
}

// Unsubscribe removes the chat from the subscriber set.
func (b *Bot) Unsubscribe(ctx context.Context, chatID int64) error {
	if !b.subscribers.Contains(chatID) {
		return b.transport.SendMessage(ctx, chatID, "You are not subscribed.")
	}
	if err := b.subscribers.Remove(chatID); err != nil {
		b.log.Error().Int64("chat_id", chatID).Err(err).Msg("persisting unsubscribe failed")
	}
	return b.transport.SendMessage(ctx, chatID, "You will no longer receive the latest event updates.")
}

package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Roald87/GraceDB/internal/gracedb"
	"github.com/Roald87/GraceDB/internal/skymap"
	"github.com/Roald87/GraceDB/internal/voevent"
)

// errVetoed marks an event excluded by the ADVNO label.
var errVetoed = errors.New("event vetoed by advocate")

// API is the slice of the GraceDB client the store needs.
type API interface {
	Superevents(ctx context.Context, query string) ([]gracedb.Superevent, error)
	Superevent(ctx context.Context, eventID string) (*gracedb.Superevent, error)
}

// Resolver resolves the newest retrievable alert document of an event.
type Resolver interface {
	Resolve(ctx context.Context, eventID string) (*voevent.Document, error)
}

// Enricher extracts a distance estimate from a sky-map URL.
type Enricher interface {
	Enrich(ctx context.Context, url string) (skymap.Distance, error)
}

// Store is the authoritative in-process cache of enriched superevents. All
// mutation goes through its methods; iteration order is always descending by
// creation time.
type Store struct {
	api      API
	resolver Resolver
	enricher Enricher
	query    string
	log      zerolog.Logger

	mu     sync.RWMutex
	events map[string]*Event
	order  []string
}

// NewStore creates an empty store that fills itself from api using the given
// search query.
func NewStore(api API, resolver Resolver, enricher Enricher, query string, log zerolog.Logger) *Store {
	return &Store{
		api:      api,
		resolver: resolver,
		enricher: enricher,
		query:    query,
		log:      log.With().Str("component", "events").Logger(),
		events:   make(map[string]*Event),
	}
}

// UpdateAll reconciles the cache against a fresh remote listing. The cache
// is replaced wholesale, so ids gone from the listing disappear. Enrichment
// failures of single events are logged and do not abort the rest.
func (s *Store) UpdateAll(ctx context.Context) error {
	listing, err := s.api.Superevents(ctx, s.query)
	if err != nil {
		return fmt.Errorf("updating all events: %w", err)
	}

	fresh := make(map[string]*Event, len(listing))
	for _, summary := range listing {
		ev, err := s.buildEvent(ctx, summary.ID)
		if err != nil {
			if !errors.Is(err, errVetoed) {
				s.log.Error().Str("event_id", summary.ID).Err(err).Msg("skipping event during full refresh")
			}
			continue
		}
		fresh[ev.ID] = ev
	}

	s.mu.Lock()
	s.events = fresh
	s.order = orderedIDs(fresh)
	s.mu.Unlock()

	s.log.Info().Int("events", len(fresh)).Msg("refreshed event cache")
	return nil
}

// UpdateSingle re-fetches and re-enriches one event. A remote not-found is
// logged and leaves any previously cached record untouched.
func (s *Store) UpdateSingle(ctx context.Context, eventID string) error {
	eventID = NormalizeID(eventID)

	ev, err := s.buildEvent(ctx, eventID)
	if errors.Is(err, gracedb.ErrNotFound) {
		s.log.Warn().Str("event_id", eventID).Msg("event not found remotely, keeping cached value")
		return nil
	}
	if errors.Is(err, errVetoed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("updating event %s: %w", eventID, err)
	}

	s.mu.Lock()
	s.events[ev.ID] = ev
	s.order = orderedIDs(s.events)
	s.mu.Unlock()

	return nil
}

// buildEvent fetches one event and runs the full enrichment pipeline over
// it, returning a complete record ready to be swapped into the cache.
func (s *Store) buildEvent(ctx context.Context, eventID string) (*Event, error) {
	remote, err := s.api.Superevent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for _, label := range remote.Labels {
		if label == vetoLabel {
			return nil, errVetoed
		}
	}

	ev := &Event{
		ID:     NormalizeID(remote.ID),
		Labels: remote.Labels,
	}

	created, err := time.Parse(createdLayout, remote.Created)
	if err != nil {
		s.log.Warn().Str("event_id", ev.ID).Str("created", remote.Created).Msg("unparseable creation time")
	} else {
		ev.Created = created
	}

	s.enrich(ctx, ev)
	return ev, nil
}

// enrich populates classification, instruments and distance. Any failure
// leaves the corresponding fields unset; a partially enriched record is
// still usable for notification.
func (s *Store) enrich(ctx context.Context, ev *Event) {
	doc, err := s.resolver.Resolve(ctx, ev.ID)
	if err != nil {
		s.log.Warn().Str("event_id", ev.ID).Err(err).Msg("no alert document, event stays unenriched")
		return
	}

	probs := doc.Probabilities()
	ev.EventTypes = probs
	ev.MostLikely = voevent.MostLikely(probs)
	ev.InstrumentsShort = doc.Instruments()
	ev.InstrumentsLong = longInstrumentNames(ev.InstrumentsShort)

	url, err := doc.SkyMapURL()
	if err != nil {
		s.log.Debug().Str("event_id", ev.ID).Msg("alert document carries no sky-map")
		return
	}
	dist, err := s.enricher.Enrich(ctx, url)
	if err != nil {
		s.log.Warn().Str("event_id", ev.ID).Err(err).Msg("distance unknown")
		return
	}
	ev.Distance = &dist
}

// Get returns the cached record of an event, or nil if the id is unknown.
func (s *Store) Get(eventID string) *Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.events[NormalizeID(eventID)]
}

// Latest returns the id of the most recently created cached event, or an
// empty string when the cache is empty.
func (s *Store) Latest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return ""
	}
	return s.order[0]
}

// All returns the cached events, freshest first.
func (s *Store) All() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Event, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.events[id])
	}
	return all
}

// Len returns the number of cached events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.events)
}

// RunPeriodicRefresh runs UpdateAll on a fixed delay until ctx is canceled.
// A failed cycle is logged and never stops the loop.
func (s *Store) RunPeriodicRefresh(ctx context.Context, interval time.Duration) {
	for {
		s.log.Info().Msg("refreshing event database")
		if err := s.UpdateAll(ctx); err != nil {
			s.log.Error().Err(err).Msg("periodic refresh failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// orderedIDs sorts ids descending by creation time, ties broken by id, so
// the freshest event always iterates first.
func orderedIDs(events map[string]*Event) []string {
	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := events[ids[i]], events[ids[j]]
		if !a.Created.Equal(b.Created) {
			return a.Created.After(b.Created)
		}
		return a.ID > b.ID
	})
	return ids
}

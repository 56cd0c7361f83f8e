package voevent

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Roald87/GraceDB/internal/gracedb"
)

// Lister provides the version listing and raw file fetches the resolver
// needs. *gracedb.Client satisfies it.
type Lister interface {
	VOEvents(ctx context.Context, eventID string) ([]gracedb.VOEventEntry, error)
	Get(ctx context.Context, url string) ([]byte, error)
}

// Resolver retrieves the most recent parseable alert document of an event.
type Resolver struct {
	client Lister
	log    zerolog.Logger
}

// NewResolver creates a resolver backed by client.
func NewResolver(client Lister, log zerolog.Logger) *Resolver {
	return &Resolver{
		client: client,
		log:    log.With().Str("component", "voevent").Logger(),
	}
}

// Resolve fetches the newest retrievable alert document of an event.
//
// The version listing has been observed to reference versions whose file
// 404s, so versions are tried newest first and a failure falls back to the
// next older one. Version 1 is guaranteed to exist for any real event, so a
// failure there is escalated to the caller.
func (r *Resolver) Resolve(ctx context.Context, eventID string) (*Document, error) {
	entries, err := r.client.VOEvents(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("resolving VOEvent of %s: %w", eventID, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("resolving VOEvent of %s: %w", eventID, gracedb.ErrNotFound)
	}

	// Sort by version number, not creation time; clocks are not guaranteed
	// monotonic across versions.
	sort.Slice(entries, func(i, j int) bool { return entries[i].N > entries[j].N })

	for _, entry := range entries {
		doc, err := r.fetchOne(ctx, entry.Links.File)
		if err == nil {
			return doc, nil
		}

		if entry.N == 1 {
			r.log.Error().Str("event_id", eventID).Err(err).Msg("can't find any VOEvent version")
			return nil, fmt.Errorf("resolving VOEvent of %s: %w", eventID, err)
		}
		r.log.Warn().Str("event_id", eventID).Int("version", entry.N).Err(err).
			Msg("failed to get VOEvent version, falling back to older one")
	}

	// Unreachable while the listing contains a version 1, which GraceDB
	// guarantees for existing events.
	return nil, fmt.Errorf("resolving VOEvent of %s: %w", eventID, gracedb.ErrNotFound)
}

func (r *Resolver) fetchOne(ctx context.Context, url string) (*Document, error) {
	data, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(data, r.log)
}

package voevent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Roald87/GraceDB/internal/gracedb"
)

type fakeLister struct {
	entries []gracedb.VOEventEntry
	files   map[string][]byte
	fetched []string
}

func (f *fakeLister) VOEvents(ctx context.Context, eventID string) ([]gracedb.VOEventEntry, error) {
	return f.entries, nil
}

func (f *fakeLister) Get(ctx context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, gracedb.ErrNotFound)
	}
	return data, nil
}

func entry(n int, url string) gracedb.VOEventEntry {
	e := gracedb.VOEventEntry{N: n}
	e.Links.File = url
	return e
}

func validXML(id string) []byte {
	return []byte(fmt.Sprintf(`<VOEvent><What><Param name="GraceID" value=%q/></What></VOEvent>`, id))
}

func TestResolve(t *testing.T) {
	t.Run("prefers newest version", func(t *testing.T) {
		lister := &fakeLister{
			// Listing deliberately unsorted.
			entries: []gracedb.VOEventEntry{
				entry(1, "https://example.org/1"),
				entry(3, "https://example.org/3"),
				entry(2, "https://example.org/2"),
			},
			files: map[string][]byte{
				"https://example.org/1": validXML("v1"),
				"https://example.org/2": validXML("v2"),
				"https://example.org/3": validXML("v3"),
			},
		}
		resolver := NewResolver(lister, zerolog.Nop())

		doc, err := resolver.Resolve(context.Background(), "S190521r")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.ID() != "v3" {
			t.Errorf("expected newest version v3, got %q", doc.ID())
		}
		if len(lister.fetched) != 1 {
			t.Errorf("expected exactly one fetch, got %v", lister.fetched)
		}
	})

	t.Run("falls back over missing versions", func(t *testing.T) {
		lister := &fakeLister{
			entries: []gracedb.VOEventEntry{
				entry(1, "https://example.org/1"),
				entry(2, "https://example.org/2"),
				entry(3, "https://example.org/3"),
			},
			files: map[string][]byte{
				"https://example.org/1": validXML("v1"),
			},
		}
		resolver := NewResolver(lister, zerolog.Nop())

		doc, err := resolver.Resolve(context.Background(), "S190517h")
		if err != nil {
			t.Fatalf("expected fallback to succeed, got %v", err)
		}
		if doc.ID() != "v1" {
			t.Errorf("expected v1 after fallback, got %q", doc.ID())
		}
		if len(lister.fetched) != 3 {
			t.Errorf("expected 3 fetch attempts, got %v", lister.fetched)
		}
	})

	t.Run("escalates when version one fails", func(t *testing.T) {
		lister := &fakeLister{
			entries: []gracedb.VOEventEntry{
				entry(1, "https://example.org/1"),
				entry(2, "https://example.org/2"),
			},
			files: map[string][]byte{},
		}
		resolver := NewResolver(lister, zerolog.Nop())

		_, err := resolver.Resolve(context.Background(), "S190521r")
		if !errors.Is(err, gracedb.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("corrupt newer version falls back", func(t *testing.T) {
		lister := &fakeLister{
			entries: []gracedb.VOEventEntry{
				entry(1, "https://example.org/1"),
				entry(2, "https://example.org/2"),
			},
			files: map[string][]byte{
				"https://example.org/1": validXML("v1"),
				"https://example.org/2": []byte("<VOEvent"),
			},
		}
		resolver := NewResolver(lister, zerolog.Nop())

		doc, err := resolver.Resolve(context.Background(), "S190521r")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.ID() != "v1" {
			t.Errorf("expected v1, got %q", doc.ID())
		}
	})

	t.Run("empty listing is not found", func(t *testing.T) {
		resolver := NewResolver(&fakeLister{}, zerolog.Nop())

		_, err := resolver.Resolve(context.Background(), "S000000x")
		if !errors.Is(err, gracedb.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

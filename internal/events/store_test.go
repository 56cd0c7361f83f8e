package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Roald87/GraceDB/internal/gracedb"
	"github.com/Roald87/GraceDB/internal/skymap"
	"github.com/Roald87/GraceDB/internal/voevent"
)

type fakeAPI struct {
	listing []gracedb.Superevent
	details map[string]*gracedb.Superevent
}

func (f *fakeAPI) Superevents(ctx context.Context, query string) ([]gracedb.Superevent, error) {
	return f.listing, nil
}

func (f *fakeAPI) Superevent(ctx context.Context, eventID string) (*gracedb.Superevent, error) {
	ev, ok := f.details[eventID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", eventID, gracedb.ErrNotFound)
	}
	return ev, nil
}

type fakeResolver struct {
	docs map[string]*voevent.Document
}

func (f *fakeResolver) Resolve(ctx context.Context, eventID string) (*voevent.Document, error) {
	doc, ok := f.docs[eventID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", eventID, gracedb.ErrNotFound)
	}
	return doc, nil
}

type fakeEnricher struct {
	distances map[string]skymap.Distance
}

func (f *fakeEnricher) Enrich(ctx context.Context, url string) (skymap.Distance, error) {
	dist, ok := f.distances[url]
	if !ok {
		return skymap.Distance{}, skymap.ErrNoDistance
	}
	return dist, nil
}

func mustParse(t *testing.T, xml string) *voevent.Document {
	t.Helper()
	doc, err := voevent.Parse([]byte(xml), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func summary(id, created string, labels ...string) gracedb.Superevent {
	if labels == nil {
		labels = []string{}
	}
	return gracedb.Superevent{ID: id, Created: created, Labels: labels}
}

func testStore(t *testing.T) (*Store, *fakeAPI, *fakeResolver, *fakeEnricher) {
	t.Helper()

	api := &fakeAPI{details: make(map[string]*gracedb.Superevent)}
	resolver := &fakeResolver{docs: make(map[string]*voevent.Document)}
	enricher := &fakeEnricher{distances: make(map[string]skymap.Distance)}
	return NewStore(api, resolver, enricher, "Production", zerolog.Nop()), api, resolver, enricher
}

func TestNormalizeID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"s190521R", "S190521r"},
		{"S190521r", "S190521r"},
		{"MS181101AB", "Ms181101ab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeID(tt.in); got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpdateAll(t *testing.T) {
	t.Run("filters vetoed events and keeps the rest", func(t *testing.T) {
		store, api, resolver, enricher := testStore(t)

		// A created later than B; B carries the ADVNO veto.
		api.listing = []gracedb.Superevent{
			summary("S190521r", "2019-05-21 07:43:59 UTC"),
			summary("S190517h", "2019-05-17 05:51:01 UTC", "ADVNO"),
		}
		api.details["S190521r"] = &gracedb.Superevent{ID: "S190521r", Created: "2019-05-21 07:43:59 UTC", Labels: []string{}}
		api.details["S190517h"] = &gracedb.Superevent{ID: "S190517h", Created: "2019-05-17 05:51:01 UTC", Labels: []string{"ADVNO"}}

		resolver.docs["S190521r"] = mustParse(t, `<VOEvent><What>
			<Param name="GraceID" value="S190521r"/>
			<Param name="BBH" value="0.9993323440548098"/>
			<Param name="Terrestrial" value="0.0006676559451902493"/>
			<Param name="Instruments" value="H1,L1"/>
			<Param name="skymap_fits" value="https://example.org/map.fits"/>
		</What></VOEvent>`)
		enricher.distances["https://example.org/map.fits"] = skymap.Distance{MeanMly: 3708, StdMly: 911}

		if err := store.UpdateAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if store.Len() != 1 {
			t.Fatalf("expected 1 cached event, got %d", store.Len())
		}
		if store.Get("S190517h") != nil {
			t.Error("vetoed event must not be cached")
		}
		if got := store.Latest(); got != "S190521r" {
			t.Errorf("expected latest S190521r, got %q", got)
		}

		ev := store.Get("S190521r")
		if ev.MostLikely != "BBH" {
			t.Errorf("expected BBH, got %q", ev.MostLikely)
		}
		if ev.Distance == nil || ev.Distance.MeanMly != 3708 {
			t.Errorf("expected enriched distance, got %+v", ev.Distance)
		}
		if len(ev.InstrumentsShort) != 2 || ev.InstrumentsShort[0] != "H1" {
			t.Errorf("unexpected instruments: %v", ev.InstrumentsShort)
		}
		if ev.InstrumentsLong[0] != "LIGO Hanford" || ev.InstrumentsLong[1] != "LIGO Livingston" {
			t.Errorf("unexpected long names: %v", ev.InstrumentsLong)
		}
	})

	t.Run("replaces the cache wholesale", func(t *testing.T) {
		store, api, _, _ := testStore(t)

		api.listing = []gracedb.Superevent{summary("S190521r", "2019-05-21 07:43:59 UTC")}
		api.details["S190521r"] = &gracedb.Superevent{ID: "S190521r", Created: "2019-05-21 07:43:59 UTC"}
		if err := store.UpdateAll(context.Background()); err != nil {
			t.Fatal(err)
		}

		// The remote listing no longer carries the event.
		api.listing = nil
		if err := store.UpdateAll(context.Background()); err != nil {
			t.Fatal(err)
		}
		if store.Len() != 0 {
			t.Errorf("expected empty cache, got %d events", store.Len())
		}
		if store.Latest() != "" {
			t.Errorf("expected no latest event, got %q", store.Latest())
		}
	})

	t.Run("one failing event does not abort the others", func(t *testing.T) {
		store, api, _, _ := testStore(t)

		api.listing = []gracedb.Superevent{
			summary("S190521r", "2019-05-21 07:43:59 UTC"),
			summary("S190425z", "2019-04-25 08:18:05 UTC"),
		}
		// Only one detail fetch succeeds.
		api.details["S190425z"] = &gracedb.Superevent{ID: "S190425z", Created: "2019-04-25 08:18:05 UTC"}

		if err := store.UpdateAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.Len() != 1 {
			t.Fatalf("expected 1 event, got %d", store.Len())
		}
		if store.Get("S190425z") == nil {
			t.Error("expected surviving event to be cached")
		}
	})
}

func TestOrdering(t *testing.T) {
	store, api, _, _ := testStore(t)

	api.listing = []gracedb.Superevent{
		summary("S190425z", "2019-04-25 08:18:05 UTC"),
		summary("S190521r", "2019-05-21 07:43:59 UTC"),
		summary("S190517h", "2019-05-17 05:51:01 UTC"),
	}
	for _, s := range api.listing {
		detail := s
		api.details[s.ID] = &detail
	}

	if err := store.UpdateAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	all := store.All()
	want := []string{"S190521r", "S190517h", "S190425z"}
	for i, id := range want {
		if all[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, all[i].ID)
		}
	}
	if store.Latest() != "S190521r" {
		t.Errorf("expected latest S190521r, got %q", store.Latest())
	}
}

func TestUpdateSingle(t *testing.T) {
	t.Run("normalizes the id", func(t *testing.T) {
		store, api, _, _ := testStore(t)
		api.details["S190521r"] = &gracedb.Superevent{ID: "S190521r", Created: "2019-05-21 07:43:59 UTC"}

		if err := store.UpdateSingle(context.Background(), "s190521R"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.Get("S190521r") == nil {
			t.Error("expected event under normalized id")
		}
	})

	t.Run("remote not-found keeps the cached value", func(t *testing.T) {
		store, api, _, _ := testStore(t)
		api.details["S190521r"] = &gracedb.Superevent{ID: "S190521r", Created: "2019-05-21 07:43:59 UTC"}
		if err := store.UpdateSingle(context.Background(), "S190521r"); err != nil {
			t.Fatal(err)
		}

		delete(api.details, "S190521r")
		if err := store.UpdateSingle(context.Background(), "S190521r"); err != nil {
			t.Fatalf("not-found must not be an error: %v", err)
		}
		if store.Get("S190521r") == nil {
			t.Error("cached value must survive a remote not-found")
		}
	})

	t.Run("unenriched event is still cached", func(t *testing.T) {
		store, api, _, _ := testStore(t)
		api.details["S190521r"] = &gracedb.Superevent{ID: "S190521r", Created: "2019-05-21 07:43:59 UTC"}

		if err := store.UpdateSingle(context.Background(), "S190521r"); err != nil {
			t.Fatal(err)
		}
		ev := store.Get("S190521r")
		if ev == nil {
			t.Fatal("expected cached event")
		}
		if ev.Distance != nil || ev.MostLikely != "" {
			t.Errorf("expected unenriched record, got %+v", ev)
		}
	})
}

func TestRunPeriodicRefresh(t *testing.T) {
	store, api, _, _ := testStore(t)
	api.listing = []gracedb.Superevent{summary("S190521r", "2019-05-21 07:43:59 UTC")}
	api.details["S190521r"] = &gracedb.Superevent{ID: "S190521r", Created: "2019-05-21 07:43:59 UTC"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunPeriodicRefresh(ctx, time.Hour)
		close(done)
	}()

	// The first refresh runs immediately; poll until it lands.
	deadline := time.After(2 * time.Second)
	for store.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("refresh never populated the store")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not stop on cancellation")
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"modscout/config"
	"modscout/processor"
	"modscout/reader"
)

const catalogJSON = `[
	{"name":"Hornet Strike","drops":[{"location":"Hydron (Sedna) - Rank 6"}]},
	{"name":"Vigor","drops":[{"location":"Hydron (Sedna) - Rank 6"},{"location":"Arbiters of Hexis, Rank 2"}]},
	{"name":"Serration","drops":[{"location":"Mercury/Apollodorus"}]},
	{"name":"Unlisted","drops":[{"location":"Hydron (Sedna)"}]}
]`

const itemsJSON = `{"payload":{"items":[
	{"item_name":"Hornet Strike","url_name":"hornet_strike"},
	{"item_name":"Vigor","url_name":"vigor"},
	{"item_name":"Serration","url_name":"serration"}
]}}`

type market struct {
	server        *httptest.Server
	catalogHits   int32
	catalogDelay  atomic.Int64
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	ordersFailing map[string]bool
}

// serveCatalog records how many catalog downloads overlap.
func (m *market) serveCatalog(w http.ResponseWriter) {
	atomic.AddInt32(&m.catalogHits, 1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if d := time.Duration(m.catalogDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	fmt.Fprint(w, catalogJSON)
}

func newMarket(t *testing.T, failing ...string) *market {
	t.Helper()
	m := &market{ordersFailing: map[string]bool{}}
	for _, slug := range failing {
		m.ordersFailing[slug] = true
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/mods.json":
			m.serveCatalog(w)
		case r.URL.Path == "/v1/items":
			fmt.Fprint(w, itemsJSON)
		case strings.HasPrefix(r.URL.Path, "/v1/items/"):
			slug := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/items/"), "/orders")
			if m.ordersFailing[slug] {
				http.Error(w, "internal", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, ordersFor(slug))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(m.server.Close)
	return m
}

func ordersFor(slug string) string {
	switch slug {
	case "hornet_strike":
		return `{"payload":{"orders":[
			{"visible":true,"order_type":"buy","platinum":80,"user":{"ingame_name":"A","status":"ingame"}},
			{"visible":true,"order_type":"sell","platinum":500,"user":{"ingame_name":"Seller","status":"ingame"}}
		]}}`
	case "vigor":
		return `{"payload":{"orders":[
			{"visible":true,"order_type":"buy","platinum":100,"user":{"ingame_name":"B","status":"ingame"}},
			{"visible":true,"order_type":"buy","platinum":80,"user":{"ingame_name":"C","status":"ingame"}},
			{"visible":true,"order_type":"buy","platinum":900,"user":{"ingame_name":"Away","status":"offline"}}
		]}}`
	default:
		return `{"payload":{"orders":[]}}`
	}
}

func (m *market) pipeline(t *testing.T, ttl time.Duration) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Catalog.URL = m.server.URL + "/mods.json"
	cfg.Source.Market.ItemsURL = m.server.URL + "/v1/items"
	cfg.Source.Market.OrdersURL = m.server.URL + "/v1/items/%s/orders"
	cfg.Source.SnapshotTTL = ttl
	cfg.Reader.RateLimit.RequestsPerSecond = 0
	cfg.Reader.Timeout = 2 * time.Second

	return New(&cfg, reader.NewCatalogReader(&cfg), reader.NewMarketReader(&cfg), cfg.Aliases.Locations)
}

func TestSearchRanksAcrossMods(t *testing.T) {
	p := newMarket(t).pipeline(t, 0)

	result, err := p.SearchQuery(context.Background(), "hydron")
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}

	var got []string
	for _, o := range result.Orders {
		got = append(got, o.User.IngameName)
	}
	// Hornet Strike sorts before Vigor, so A(80) precedes C(80).
	if want := []string{"B", "A", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ranked = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(result.Unresolved, []string{"Unlisted"}) {
		t.Fatalf("unresolved = %v", result.Unresolved)
	}
	for _, o := range result.Orders {
		if _, ok := result.Mods[o.ModName]; !ok {
			t.Fatalf("order for unmatched mod %q", o.ModName)
		}
		if !reflect.DeepEqual(o.MatchedLocations, []string{"Hydron (Sedna) - Rank 6"}) {
			t.Fatalf("order carries %v", o.MatchedLocations)
		}
	}
	if result.RunID == "" || result.Query != "hydron" {
		t.Fatalf("unexpected metadata: %q %q", result.RunID, result.Query)
	}
}

func TestSearchSiblingSurvivesFailure(t *testing.T) {
	p := newMarket(t, "hornet_strike").pipeline(t, 0)

	result, err := p.Search(context.Background(), []string{"hydron"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, ok := result.Failed["Hornet Strike"]; !ok {
		t.Fatalf("expected Hornet Strike failure, got %v", result.Failed)
	}
	for _, o := range result.Orders {
		if o.ModName != "Vigor" {
			t.Fatalf("unexpected order from %s", o.ModName)
		}
	}
	if len(result.Orders) != 2 {
		t.Fatalf("expected Vigor's 2 eligible orders, got %d", len(result.Orders))
	}
}

func TestSearchAliasAndFreeText(t *testing.T) {
	p := newMarket(t).pipeline(t, 0)

	result, err := p.SearchQuery(context.Background(), "1, apollodorus")
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}
	if want := []string{"Serration", "Vigor"}; !reflect.DeepEqual(result.Mods.Names(), want) {
		t.Fatalf("mods = %v, want %v", result.Mods.Names(), want)
	}
	if got := result.ModsFound()["Vigor"]; !reflect.DeepEqual(got, []string{"Arbiters of Hexis, Rank 2"}) {
		t.Fatalf("Vigor locations = %v", got)
	}
}

func TestSearchErrors(t *testing.T) {
	p := newMarket(t).pipeline(t, 0)

	for _, raw := range []string{"", "   ", " , ,"} {
		if _, err := p.SearchQuery(context.Background(), raw); !errors.Is(err, processor.ErrNoInputLocations) {
			t.Fatalf("SearchQuery(%q) err = %v", raw, err)
		}
	}

	_, err := p.SearchQuery(context.Background(), "nowhere")
	if !errors.Is(err, ErrNoMatchingMods) {
		t.Fatalf("expected ErrNoMatchingMods, got %v", err)
	}
	if err.Error() != "no mods found for the selected location(s)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsInputError(err) {
		t.Fatal("no matching mods should be an input error")
	}
}

func TestSearchNoSellers(t *testing.T) {
	p := newMarket(t).pipeline(t, 0)

	result, err := p.SearchQuery(context.Background(), "mercury")
	if err != nil {
		t.Fatalf("SearchQuery: %v", err)
	}
	if !result.NoSellers() {
		t.Fatalf("expected no sellers, got %d orders", len(result.Orders))
	}
}

func TestSearchCatalogFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	m := &market{server: server}
	_, err := m.pipeline(t, 0).SearchQuery(context.Background(), "hydron")
	if !errors.Is(err, reader.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSnapshotReuse(t *testing.T) {
	m := newMarket(t)

	fresh := m.pipeline(t, 0)
	for i := 0; i < 2; i++ {
		if _, err := fresh.SearchQuery(context.Background(), "hydron"); err != nil {
			t.Fatalf("SearchQuery: %v", err)
		}
	}
	if hits := atomic.LoadInt32(&m.catalogHits); hits != 2 {
		t.Fatalf("without ttl expected 2 catalog fetches, got %d", hits)
	}

	cached := m.pipeline(t, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := cached.SearchQuery(context.Background(), "hydron"); err != nil {
			t.Fatalf("SearchQuery: %v", err)
		}
	}
	if hits := atomic.LoadInt32(&m.catalogHits); hits != 3 {
		t.Fatalf("with ttl expected a single extra catalog fetch, got %d total", hits)
	}
}

func searchConcurrently(t *testing.T, p *Pipeline, n int) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.SearchQuery(context.Background(), "hydron"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("SearchQuery: %v", err)
	}
}

func TestConcurrentSearchesLoadInParallel(t *testing.T) {
	m := newMarket(t)
	m.catalogDelay.Store(int64(300 * time.Millisecond))
	p := m.pipeline(t, 0)

	const searches = 4
	start := time.Now()
	searchConcurrently(t, p, searches)
	elapsed := time.Since(start)

	if hits := atomic.LoadInt32(&m.catalogHits); hits != searches {
		t.Fatalf("without ttl expected %d catalog fetches, got %d", searches, hits)
	}
	if peak := m.maxInFlight.Load(); peak < 2 {
		t.Fatalf("catalog downloads never overlapped (peak %d)", peak)
	}
	if elapsed >= searches*300*time.Millisecond {
		t.Fatalf("searches ran one after another: %v", elapsed)
	}
}

func TestConcurrentRefreshSharesOneLoad(t *testing.T) {
	m := newMarket(t)
	m.catalogDelay.Store(int64(300 * time.Millisecond))
	p := m.pipeline(t, time.Minute)

	searchConcurrently(t, p, 4)

	if hits := atomic.LoadInt32(&m.catalogHits); hits != 1 {
		t.Fatalf("expected one shared catalog fetch, got %d", hits)
	}
}

func TestSnapshotHonoursCallerContext(t *testing.T) {
	m := newMarket(t)
	m.catalogDelay.Store(int64(300 * time.Millisecond))
	p := m.pipeline(t, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Snapshot(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The abandoned load still completes and is reused.
	snap, err := p.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Catalog) != 4 {
		t.Fatalf("catalog size = %d", len(snap.Catalog))
	}
	if hits := atomic.LoadInt32(&m.catalogHits); hits != 1 {
		t.Fatalf("expected the refresh to be shared, got %d fetches", hits)
	}
}

func TestSearchReportsProgress(t *testing.T) {
	p := newMarket(t).pipeline(t, 0)

	var stages []string
	_, err := p.SearchQueryWithProgress(context.Background(), "hydron", func(ev ProgressEvent) {
		if ev.RunID == "" {
			t.Error("progress event without run id")
		}
		stages = append(stages, ev.Stage)
	})
	if err != nil {
		t.Fatalf("SearchQueryWithProgress: %v", err)
	}
	want := []string{StageMatched, StageOrderBook, StageOrderBook, StageDone}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
}

func TestAliasesIsACopy(t *testing.T) {
	p := newMarket(t).pipeline(t, 0)
	a := p.Aliases()
	a["1"] = "changed"
	if p.Aliases()["1"] != "Arbiters of Hexis" {
		t.Fatal("Aliases leaked internal map")
	}
}

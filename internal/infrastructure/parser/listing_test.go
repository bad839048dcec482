package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"SmartphoneRanker/internal/extract"
)

const testBaseURL = "https://www.amazon.in"

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func defaultChain(t *testing.T) *extract.Chain {
	t.Helper()
	chain, err := DefaultRegistry(testBaseURL).Chain([]string{StrategyDirectLink, StrategyContainer})
	if err != nil {
		t.Fatalf("build chain: %v", err)
	}
	return chain
}

func TestDirectLinkStrategy(t *testing.T) {
	t.Parallel()

	html := `
	<div class="grid">
	  <div class="card">
	    <div><a href="/Apple-iPhone-15-Black/dp/B0CHX1W1XY/ref=zg_1">Apple iPhone 15 (128 GB) - Black</a></div>
	    <span class="p13n-sc-price">₹69,900</span>
	  </div>
	  <div class="card">
	    <a href="/dp/B0SHORT">Phone</a>
	  </div>
	  <div class="card">
	    <a href="/Boat-Airdopes/dp/B0EARBUD">boAt Airdopes 141 Bluetooth Earbuds</a>
	  </div>
	  <div class="card">
	    <a>Samsung Galaxy M14 5G without href</a>
	  </div>
	  <div class="card">
	    <a href="https://www.amazon.in/Samsung-Galaxy-M14/dp/B0C7QFS1Z2">Samsung Galaxy M14 5G (Smoky Teal, 6GB)</a>
	    <span class="p13n-sc-price">₹10,999</span>
	  </div>
	  <div class="card">
	    <a href="/Redmi-13C-5G/dp/B0CQPGDP5B">Redmi 13C 5G (Starfrost White, 4GB RAM)</a>
	    <span class="a-price"><span class="a-offscreen">₹9,999</span><span aria-hidden="true"><span class="a-price-symbol">₹</span><span class="a-price-whole">9,999</span></span></span>
	  </div>
	</div>`

	res := NewDirectLinkStrategy(testBaseURL).Extract(mustDoc(t, html), 20)
	if res.Kind != extract.Found {
		t.Fatalf("expected found, got %s", res.Kind)
	}
	if len(res.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(res.Candidates), res.Candidates)
	}

	first := res.Candidates[0]
	if first.Rank != 1 || first.Name != "Apple iPhone 15 (128 GB) - Black" {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.Link != "https://www.amazon.in/Apple-iPhone-15-Black/dp/B0CHX1W1XY/ref=zg_1" {
		t.Fatalf("unexpected link: %s", first.Link)
	}
	if first.Price == nil || *first.Price != "₹69,900" {
		t.Fatalf("expected ancestor price, got %v", first.Price)
	}
	if first.Rating != nil {
		t.Fatalf("direct-link strategy should not set rating")
	}

	second := res.Candidates[1]
	if second.Rank != 2 || second.Link != "https://www.amazon.in/Samsung-Galaxy-M14/dp/B0C7QFS1Z2" {
		t.Fatalf("unexpected second candidate: %+v", second)
	}
	if second.Price == nil || *second.Price != "₹10,999" {
		t.Fatalf("expected nearest price, got %v", second.Price)
	}

	third := res.Candidates[2]
	if third.Price == nil || *third.Price != "₹9,999" {
		t.Fatalf("expected the offscreen price only, got %v", third.Price)
	}
}

func TestDirectLinkStrategyRespectsLimit(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(`<a href="/x/dp/B00000000">Redmi Note 13 5G Arctic White</a>`)
	}

	res := NewDirectLinkStrategy(testBaseURL).Extract(mustDoc(t, b.String()), 4)
	if len(res.Candidates) != 4 {
		t.Fatalf("expected 4 candidates, got %d", len(res.Candidates))
	}
	for i, c := range res.Candidates {
		if c.Rank != i+1 {
			t.Fatalf("candidate %d has rank %d", i, c.Rank)
		}
	}
}

func TestContainerStrategy(t *testing.T) {
	t.Parallel()

	html := `
	<div id="gridItemRoot-1">
	  <a href="/OnePlus-Nord/dp/B0BY8JZ22K"><span>OnePlus Nord CE 3 Lite 5G (Pastel Lime)</span></a>
	  <span class="a-icon-star-small"><span class="a-icon-alt">4.2 out of 5 stars</span></span>
	  <span class="a-price"><span class="a-price-symbol">₹</span><span class="a-price-whole">17,999</span></span>
	</div>
	<div id="gridItemRoot-2">
	  <a href="/Motorola/dp/B0CMOTO">Motorola G84 5G smartphone Viva Magenta</a>
	  <span class="review-rating">9.0</span>
	  <span class="price-label">Currently unavailable</span>
	</div>
	<div id="gridItemRoot-3">
	  <span>No link here</span>
	</div>`

	res := NewContainerStrategy(testBaseURL).Extract(mustDoc(t, html), 20)
	if res.Kind != extract.Found || len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", res)
	}

	first := res.Candidates[0]
	if first.Name != "OnePlus Nord CE 3 Lite 5G (Pastel Lime)" {
		t.Fatalf("unexpected name: %q", first.Name)
	}
	if first.Rating == nil || *first.Rating != 4.2 {
		t.Fatalf("expected rating 4.2, got %v", first.Rating)
	}
	if first.Price == nil || *first.Price != "₹17,999" {
		t.Fatalf("expected price ₹17,999, got %v", first.Price)
	}

	second := res.Candidates[1]
	if second.Rating == nil || *second.Rating != 4.5 {
		t.Fatalf("expected rescaled rating 4.5, got %v", second.Rating)
	}
	if second.Price != nil {
		t.Fatalf("expected no price without currency mark, got %q", *second.Price)
	}
	if second.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", second.Rank)
	}
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "4.3 out of 5 stars", want: 4.3, ok: true},
		{in: "8", want: 4, ok: true},
		{in: "5", want: 5, ok: true},
		{in: "no stars", ok: false},
	}

	for _, tc := range cases {
		got := parseRating(tc.in)
		if !tc.ok {
			if got != nil {
				t.Fatalf("parseRating(%q) expected nil, got %v", tc.in, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("parseRating(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestListingSourceStrategyOrder(t *testing.T) {
	t.Parallel()

	html := `
	<div data-asin="B2">
	  <a href="/dp/B2">Vivo T3x 5G (Celestial Green, 128 GB)</a>
	  <span class="a-icon-star">4.1 out of 5 stars</span>
	  <span class="a-price">₹12,999</span>
	</div>`

	direct := NewListingSource(nil, defaultChain(t), "", nil).Extract(mustDoc(t, html), 20)
	if len(direct) != 1 || direct[0].Rating != nil {
		t.Fatalf("expected direct-link result without rating, got %+v", direct)
	}

	chain, err := DefaultRegistry(testBaseURL).Chain([]string{StrategyContainer, StrategyDirectLink})
	if err != nil {
		t.Fatalf("build chain: %v", err)
	}
	containerFirst := NewListingSource(nil, chain, "", nil).Extract(mustDoc(t, html), 20)
	if len(containerFirst) != 1 || containerFirst[0].Rating == nil || *containerFirst[0].Rating != 4.1 {
		t.Fatalf("expected container result with rating, got %+v", containerFirst)
	}
}

func TestListingSourceContainerFallback(t *testing.T) {
	t.Parallel()

	// Only the container strategy is able to see candidates when direct links are disabled.
	chain, err := DefaultRegistry(testBaseURL).Chain([]string{StrategyContainer})
	if err != nil {
		t.Fatalf("build chain: %v", err)
	}
	html := `<div class="zg-item-immersion"><a href="/dp/B3">POCO X6 Pro 5G (Racing Grey)</a></div>`
	got := NewListingSource(nil, chain, "", nil).Extract(mustDoc(t, html), 20)
	if len(got) != 1 || got[0].Rank != 1 {
		t.Fatalf("expected one container candidate, got %+v", got)
	}
}

func TestListingSourceEmptyDocument(t *testing.T) {
	t.Parallel()

	src := NewListingSource(nil, defaultChain(t), "", nil)
	got := src.Extract(mustDoc(t, `<html><body><p>Nothing to see</p></body></html>`), 20)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestListingSourceFetchListings(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<a href="/p/dp/B0A">Realme Narzo 70 Pro 5G (Glass Green)</a>`))
	}))
	defer server.Close()

	src := NewListingSource(NewFetcher(server.Client(), ""), defaultChain(t), server.URL+"/bestsellers", nil)
	got, err := src.FetchListings(context.Background(), 20)
	if err != nil {
		t.Fatalf("FetchListings: %v", err)
	}
	if len(got) != 1 || got[0].Link != testBaseURL+"/p/dp/B0A" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestListingSourceFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewListingSource(NewFetcher(server.Client(), ""), defaultChain(t), server.URL, nil)
	if _, err := src.FetchListings(context.Background(), 20); err == nil {
		t.Fatal("expected error on 503")
	}
}

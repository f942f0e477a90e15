package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"emlak-scraper/internal/domain"
)

// fakeFetcher serves canned pages keyed by URL and records the order of
// requested URLs.
type fakeFetcher struct {
	pages    map[string]string
	requests []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ ...string) (string, error) {
	f.requests = append(f.requests, url)
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("fetch failed")
	}
	return html, nil
}

// fakePageExtractor decodes the fixture mini-format: "listings=N;next=true".
type fakePageExtractor struct{}

func (fakePageExtractor) Summaries(html string) []domain.RawListing {
	var n int
	var next bool
	fmt.Sscanf(html, "listings=%d;next=%t", &n, &next)
	listings := make([]domain.RawListing, 0, n)
	for i := 0; i < n; i++ {
		listings = append(listings, domain.RawListing{Title: "t", URL: fmt.Sprintf("u%d", i)})
	}
	return listings
}

func (fakePageExtractor) HasNextPage(html string) bool {
	return strings.Contains(html, "next=true")
}

const walkBase = "https://www.hepsiemlak.com/kadikoy-satilik"

func newTestWalker(f Fetcher) *Walker {
	return NewWalker(f, fakePageExtractor{}, 20, 0, 0, zap.NewNop())
}

func TestWalkStopsOnEmptyPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		walkBase:             "listings=3;next=true",
		walkBase + "?page=2": "listings=2;next=true",
		walkBase + "?page=3": "listings=0;next=true",
	}}

	got, err := newTestWalker(f).Walk(context.Background(), walkBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 listings from pages 1-2, got %d", len(got))
	}
	if len(f.requests) != 3 {
		t.Errorf("expected 3 fetches, got %v", f.requests)
	}
}

func TestWalkStopsWithoutNextControl(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		walkBase:             "listings=4;next=true",
		walkBase + "?page=2": "listings=4;next=false",
	}}

	got, err := newTestWalker(f).Walk(context.Background(), walkBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 8 {
		t.Errorf("expected 8 listings, got %d", len(got))
	}
	if len(f.requests) != 2 {
		t.Errorf("expected walk to stop after page 2, got %v", f.requests)
	}
}

func TestWalkHonorsPageCap(t *testing.T) {
	pages := map[string]string{walkBase: "listings=1;next=true"}
	for p := 2; p <= 30; p++ {
		pages[fmt.Sprintf("%s?page=%d", walkBase, p)] = "listings=1;next=true"
	}
	f := &fakeFetcher{pages: pages}

	w := NewWalker(f, fakePageExtractor{}, 5, 0, 0, zap.NewNop())
	got, err := w.Walk(context.Background(), walkBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 listings at cap, got %d", len(got))
	}
	if len(f.requests) != 5 {
		t.Errorf("expected 5 fetches at cap, got %d", len(f.requests))
	}
}

func TestWalkReturnsPartialOnMidWalkFailure(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		walkBase:             "listings=3;next=true",
		walkBase + "?page=2": "listings=3;next=true",
		// page 3 missing: fetch fails
	}}

	got, err := newTestWalker(f).Walk(context.Background(), walkBase)
	if err != nil {
		t.Fatalf("mid-walk failure must not surface as error, got %v", err)
	}
	if len(got) != 6 {
		t.Errorf("expected 6 listings from the pages that succeeded, got %d", len(got))
	}
}

func TestWalkFirstPageFailure(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}

	got, err := newTestWalker(f).Walk(context.Background(), walkBase)
	if err == nil {
		t.Fatal("expected error when page 1 cannot be fetched")
	}
	if len(got) != 0 {
		t.Errorf("expected no listings, got %d", len(got))
	}
}

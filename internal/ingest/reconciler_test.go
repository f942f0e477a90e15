package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"emlak-scraper/internal/domain"
	"emlak-scraper/internal/storage"
)

// fakeCatalogStore keeps the catalog in memory and records batch sizes.
// failBatch, when positive, fails the Nth ApplyBatch call.
type fakeCatalogStore struct {
	*fakeFeatureStore
	properties map[string]*domain.Property
	nextPropID int64
	batches    []int
	failBatch  int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		fakeFeatureStore: newFakeFeatureStore(),
		properties:       make(map[string]*domain.Property),
		nextPropID:       1,
	}
}

func (s *fakeCatalogStore) FindPropertyByURL(_ context.Context, url string) (*domain.Property, error) {
	if p, ok := s.properties[url]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, storage.ErrNotFound
}

func (s *fakeCatalogStore) ApplyBatch(_ context.Context, writes []domain.StagedWrite) error {
	s.batches = append(s.batches, len(writes))
	if s.failBatch > 0 && len(s.batches) == s.failBatch {
		return errors.New("commit failed")
	}
	for _, w := range writes {
		p := *w.Property
		if w.Kind == domain.WriteCreate {
			p.ID = s.nextPropID
			s.nextPropID++
		}
		s.properties[p.URL] = &p
	}
	return nil
}

func newTestReconciler(store *fakeCatalogStore, batchSize int) *Reconciler {
	return NewReconciler(store, NewRegistry(store), batchSize, zap.NewNop())
}

func rawListing(url, title, price string) domain.RawListing {
	return domain.RawListing{
		Title:     title,
		PriceText: price,
		URL:       url,
		Location:  "Kadıköy Moda Mah.",
	}
}

func TestReconcileCreateThenUnchanged(t *testing.T) {
	store := newFakeCatalogStore()
	rec := newTestReconciler(store, 10)

	listings := []domain.RawListing{
		rawListing("https://example.com/ilan/1", "Satılık Daire", "4.250.000 TL"),
	}

	totals, err := rec.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Created != 1 || totals.Updated != 0 || totals.Unchanged != 0 {
		t.Fatalf("first run totals = %+v", totals)
	}

	stored := store.properties["https://example.com/ilan/1"]
	if stored == nil {
		t.Fatal("property not persisted")
	}
	if stored.Price != 4250000 || stored.Currency != "TL" {
		t.Errorf("price normalization failed: %.2f %s", stored.Price, stored.Currency)
	}

	totals, err = rec.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Unchanged != 1 || totals.Created != 0 || totals.Updated != 0 {
		t.Errorf("second run totals = %+v; want unchanged only", totals)
	}
}

func TestReconcileUpdatesOnPriceChange(t *testing.T) {
	store := newFakeCatalogStore()
	rec := newTestReconciler(store, 10)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return base }

	url := "https://example.com/ilan/7"
	seed := rawListing(url, "Satılık Daire", "4.000.000 TL")
	seed.Thumbnail = "https://img.example.com/old.jpg"
	if _, err := rec.Run(context.Background(), []domain.RawListing{seed}); err != nil {
		t.Fatalf("seed run failed: %v", err)
	}
	created := store.properties[url]

	rec.now = func() time.Time { return base.Add(24 * time.Hour) }
	next := rawListing(url, "Satılık Daire", "3.750.000 TL")
	next.Thumbnail = "https://img.example.com/new.jpg"
	totals, err := rec.Run(context.Background(), []domain.RawListing{next})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Updated != 1 || totals.Created != 0 {
		t.Fatalf("totals = %+v; want one update", totals)
	}

	updated := store.properties[url]
	if updated.Price != 3750000 {
		t.Errorf("price = %.2f", updated.Price)
	}
	if updated.ID != created.ID {
		t.Errorf("identity not preserved: %d vs %d", updated.ID, created.ID)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at rewritten: %v vs %v", updated.CreatedAt, created.CreatedAt)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updated_at not advanced: %v", updated.UpdatedAt)
	}
	if len(updated.Images) != 1 || updated.Images[0].URL != "https://img.example.com/new.jpg" {
		t.Errorf("image set not replaced wholesale: %v", updated.Images)
	}
}

func TestReconcileBatchBoundaries(t *testing.T) {
	store := newFakeCatalogStore()
	rec := newTestReconciler(store, 2)

	var listings []domain.RawListing
	for i := 0; i < 5; i++ {
		listings = append(listings, rawListing(
			fmt.Sprintf("https://example.com/ilan/%d", i), "Daire", "1.000.000 TL"))
	}

	totals, err := rec.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Created != 5 {
		t.Errorf("created = %d", totals.Created)
	}
	want := []int{2, 2, 1}
	if len(store.batches) != len(want) {
		t.Fatalf("batches = %v; want %v", store.batches, want)
	}
	for i, n := range want {
		if store.batches[i] != n {
			t.Errorf("batch %d size = %d; want %d", i, store.batches[i], n)
		}
	}
}

func TestReconcileBatchFailureKeepsEarlierTotals(t *testing.T) {
	store := newFakeCatalogStore()
	store.failBatch = 2
	rec := newTestReconciler(store, 2)

	var listings []domain.RawListing
	for i := 0; i < 5; i++ {
		listings = append(listings, rawListing(
			fmt.Sprintf("https://example.com/ilan/%d", i), "Daire", "1.000.000 TL"))
	}

	totals, err := rec.Run(context.Background(), listings)
	if err == nil {
		t.Fatal("expected batch failure to surface")
	}
	if totals.Created != 2 {
		t.Errorf("expected only the committed batch counted, got %+v", totals)
	}
}

func TestReconcileSkipsUnusableListings(t *testing.T) {
	store := newFakeCatalogStore()
	rec := newTestReconciler(store, 10)

	listings := []domain.RawListing{
		{Title: "Daire", PriceText: "1.000.000 TL"}, // no URL, skipped
		{URL: "https://example.com/ilan/9"},         // no signal, silently dropped
		rawListing("https://example.com/ilan/8", "Daire", "1.000.000 TL"),
	}

	totals, err := rec.Run(context.Background(), listings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Created != 1 || totals.Skipped != 1 {
		t.Errorf("totals = %+v; want 1 created, 1 skipped", totals)
	}
}

func TestReconcileInternsFeatures(t *testing.T) {
	store := newFakeCatalogStore()
	rec := newTestReconciler(store, 10)

	l := rawListing("https://example.com/ilan/3", "Daire", "2.000.000 TL")
	l.Features = []string{"Asansör", "Otopark", "Asansör"}

	if _, err := rec.Run(context.Background(), []domain.RawListing{l}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.creates != 2 {
		t.Errorf("expected 2 features interned, got %d", store.creates)
	}
}

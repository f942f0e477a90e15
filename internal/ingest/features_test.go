package ingest

import (
	"context"
	"testing"

	"emlak-scraper/internal/storage"
)

// fakeFeatureStore is an in-memory FeatureStore. raceWith, when set,
// inserts the name behind the caller's back so CreateFeature reports a
// duplicate, mimicking a concurrent run.
type fakeFeatureStore struct {
	features map[string]int64
	nextID   int64
	creates  int
	raceWith map[string]bool
}

func newFakeFeatureStore() *fakeFeatureStore {
	return &fakeFeatureStore{features: make(map[string]int64), nextID: 1}
}

func (s *fakeFeatureStore) FeatureIDByName(_ context.Context, name string) (int64, error) {
	if id, ok := s.features[name]; ok {
		return id, nil
	}
	return 0, storage.ErrNotFound
}

func (s *fakeFeatureStore) CreateFeature(_ context.Context, name string) (int64, error) {
	if s.raceWith[name] {
		s.features[name] = s.nextID
		s.nextID++
		delete(s.raceWith, name)
		return 0, storage.ErrDuplicate
	}
	if _, ok := s.features[name]; ok {
		return 0, storage.ErrDuplicate
	}
	s.creates++
	id := s.nextID
	s.nextID++
	s.features[name] = id
	return id, nil
}

func TestInternCreatesAndNormalizes(t *testing.T) {
	store := newFakeFeatureStore()
	reg := NewRegistry(store)

	ids, err := reg.Intern(context.Background(), []string{
		"  Oda Sayısı: 3 + 1 ", "Asansör", "Oda Sayısı: 3 + 1", "", "Asansör",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 interned features after dedup, got %v", ids)
	}
	if store.creates != 2 {
		t.Errorf("expected 2 creates, got %d", store.creates)
	}
	if _, ok := ids["Oda Sayısı: 3 + 1"]; !ok {
		t.Errorf("expected whitespace-cleaned name as key, got %v", ids)
	}
}

func TestInternIdempotent(t *testing.T) {
	store := newFakeFeatureStore()
	reg := NewRegistry(store)

	first, err := reg.Intern(context.Background(), []string{"Balkon", "Otopark"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := reg.Intern(context.Background(), []string{"Otopark", "Balkon"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, id := range first {
		if second[name] != id {
			t.Errorf("id for %q changed between runs: %d vs %d", name, id, second[name])
		}
	}
	if store.creates != 2 {
		t.Errorf("expected no new creates on second intern, got %d total", store.creates)
	}
}

func TestInternResolvesCreateRace(t *testing.T) {
	store := newFakeFeatureStore()
	store.raceWith = map[string]bool{"Klima": true}
	reg := NewRegistry(store)

	ids, err := reg.Intern(context.Background(), []string{"Klima"})
	if err != nil {
		t.Fatalf("expected race to resolve via re-fetch, got %v", err)
	}
	if ids["Klima"] != store.features["Klima"] {
		t.Errorf("expected the winner's id %d, got %d", store.features["Klima"], ids["Klima"])
	}
}

func TestInternEmptyInput(t *testing.T) {
	reg := NewRegistry(newFakeFeatureStore())
	ids, err := reg.Intern(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty mapping, got %v", ids)
	}
}

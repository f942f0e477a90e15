package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"emlak-scraper/internal/scraper"
	"emlak-scraper/internal/storage"
)

// FeatureStore is the slice of the catalog store the registry needs.
type FeatureStore interface {
	FeatureIDByName(ctx context.Context, name string) (int64, error)
	CreateFeature(ctx context.Context, name string) (int64, error)
}

// Registry interns free-text feature labels into stable feature IDs,
// creating missing features on first sighting. Interning is idempotent;
// a uniqueness violation on create means another run got there first
// and is resolved by re-fetching.
type Registry struct {
	store FeatureStore
}

func NewRegistry(store FeatureStore) *Registry {
	return &Registry{store: store}
}

// Intern resolves every name in the set to a feature ID, creating
// features as needed. Newly created features are committed by the store
// before the mapping is returned, so subsequent property writes can
// reference them without dangling.
func (r *Registry) Intern(ctx context.Context, names []string) (map[string]int64, error) {
	unique := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name = scraper.CleanText(name); name != "" {
			unique[name] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(unique))
	for name := range unique {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	ids := make(map[string]int64, len(ordered))
	for _, name := range ordered {
		id, err := r.intern(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("intern feature %q: %w", name, err)
		}
		ids[name] = id
	}
	return ids, nil
}

func (r *Registry) intern(ctx context.Context, name string) (int64, error) {
	id, err := r.store.FeatureIDByName(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	id, err = r.store.CreateFeature(ctx, name)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, storage.ErrDuplicate) {
		// Concurrent run created it between our lookup and insert.
		return r.store.FeatureIDByName(ctx, name)
	}
	return 0, err
}

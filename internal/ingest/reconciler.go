package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"emlak-scraper/internal/domain"
	"emlak-scraper/internal/scraper"
	"emlak-scraper/internal/storage"
)

// CatalogStore is the slice of the catalog store the reconciler needs.
type CatalogStore interface {
	FindPropertyByURL(ctx context.Context, url string) (*domain.Property, error)
	ApplyBatch(ctx context.Context, writes []domain.StagedWrite) error
}

// Totals summarizes one reconciliation run.
type Totals struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
}

// Reconciler turns a stream of raw listings into catalog writes. Each
// listing becomes a create, an update or a no-op keyed on its canonical
// URL; writes are staged and flushed in per-batch transactions so a
// mid-run failure loses at most one batch.
type Reconciler struct {
	store     CatalogStore
	registry  *Registry
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

func NewReconciler(store CatalogStore, registry *Registry, batchSize int, logger *zap.Logger) *Reconciler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Reconciler{
		store:     store,
		registry:  registry,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run processes listings in arrival order. Per-listing failures are
// logged and skipped; only a batch-commit failure ends the run early,
// and even then the totals through the last successful batch are
// returned alongside the error.
func (r *Reconciler) Run(ctx context.Context, listings []domain.RawListing) (Totals, error) {
	var totals, pending Totals
	var staged []domain.StagedWrite

	flush := func() error {
		if len(staged) == 0 {
			return nil
		}
		if err := r.store.ApplyBatch(ctx, staged); err != nil {
			return fmt.Errorf("apply batch of %d: %w", len(staged), err)
		}
		totals.Created += pending.Created
		totals.Updated += pending.Updated
		staged = staged[:0]
		pending = Totals{}
		return nil
	}

	for i := range listings {
		raw := &listings[i]
		if !raw.HasSignal() {
			continue
		}

		write, outcome, err := r.stage(ctx, raw)
		if err != nil {
			r.logger.Warn("listing skipped", zap.String("url", raw.URL), zap.Error(err))
			totals.Skipped++
			continue
		}

		switch outcome {
		case outcomeUnchanged:
			totals.Unchanged++
			continue
		case outcomeCreate:
			pending.Created++
		case outcomeUpdate:
			pending.Updated++
		}
		staged = append(staged, *write)

		if len(staged) >= r.batchSize {
			if err := flush(); err != nil {
				r.logger.Error("batch commit failed, ending run early", zap.Error(err))
				return totals, err
			}
		}
	}

	if err := flush(); err != nil {
		r.logger.Error("final batch commit failed", zap.Error(err))
		return totals, err
	}
	return totals, nil
}

type outcome int

const (
	outcomeCreate outcome = iota
	outcomeUpdate
	outcomeUnchanged
)

// stage decides create/update/no-op for one listing and prepares the
// write. Feature names are interned before the write references them.
func (r *Reconciler) stage(ctx context.Context, raw *domain.RawListing) (*domain.StagedWrite, outcome, error) {
	prop := r.buildProperty(raw)
	if prop.URL == "" {
		return nil, 0, errors.New("listing has no canonical URL")
	}

	featureIDs, err := r.internFeatures(ctx, raw.Features)
	if err != nil {
		return nil, 0, err
	}

	existing, err := r.store.FindPropertyByURL(ctx, prop.URL)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		now := r.now()
		prop.CreatedAt = now
		prop.UpdatedAt = now
		return &domain.StagedWrite{Kind: domain.WriteCreate, Property: prop, FeatureIDs: featureIDs}, outcomeCreate, nil
	case err != nil:
		return nil, 0, fmt.Errorf("lookup %s: %w", prop.URL, err)
	}

	if !changed(existing, prop) {
		return nil, outcomeUnchanged, nil
	}

	prop.ID = existing.ID
	prop.CreatedAt = existing.CreatedAt
	prop.UpdatedAt = r.now()
	return &domain.StagedWrite{Kind: domain.WriteUpdate, Property: prop, FeatureIDs: featureIDs}, outcomeUpdate, nil
}

// changed compares the normalized scalar fields only. The raw payload
// is archival and deliberately excluded from the diff: its ordering and
// whitespace would produce false "changed" signals.
func changed(old, next *domain.Property) bool {
	return old.Price != next.Price ||
		old.Title != next.Title ||
		old.Location != next.Location ||
		old.Category != next.Category
}

func (r *Reconciler) internFeatures(ctx context.Context, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	mapping, err := r.registry.Intern(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(mapping))
	for _, id := range mapping {
		ids = append(ids, id)
	}
	return ids, nil
}

// buildProperty normalizes a raw listing into a catalog entry. A price
// that cannot be parsed becomes 0 and is logged, never an error.
func (r *Reconciler) buildProperty(raw *domain.RawListing) *domain.Property {
	price, currency := ParsePrice(raw.PriceText)
	if price == 0 && raw.PriceText != "" {
		r.logger.Warn("unparseable price coerced to zero",
			zap.String("url", raw.URL), zap.String("price_text", raw.PriceText))
	}
	if currency == "" {
		currency = raw.Currency
	}
	if currency == "" {
		currency = "TL"
	}

	prop := &domain.Property{
		URL:         raw.URL,
		Title:       scraper.CleanText(raw.Title),
		Price:       price,
		Currency:    currency,
		Location:    scraper.CleanText(raw.Location),
		Description: raw.Description,
		RawData:     rawPayload(raw),
	}

	d := raw.Details
	prop.RoomCount = pick(d, "oda_sayisi", "oda_salon_sayisi")
	prop.Size = pick(d, "metrekare", "brut_metrekare", "net_metrekare", "brut_net_m2")
	prop.Floor = pick(d, "kat", "bulundugu_kat")
	prop.BuildingAge = pick(d, "bina_yasi")
	prop.HeatingType = pick(d, "isitma_tipi", "isitma")
	prop.BathroomCnt = pick(d, "banyo_sayisi")
	prop.Balcony = pick(d, "balkon")
	prop.Furnished = pick(d, "esyali", "esya_durumu")
	prop.Category = pick(d, "ilan_tipi", "kategori")

	prop.Images = buildImages(raw)
	if raw.Seller != nil {
		prop.Seller = &domain.Seller{
			Name:       raw.Seller.Name,
			Company:    raw.Seller.Company,
			Membership: raw.Seller.Membership,
			ProfileURL: raw.Seller.ProfileURL,
		}
		if prop.Seller.Company == "" {
			prop.Seller.Company = raw.OfficeName
		}
		if len(raw.Seller.Phones) > 0 {
			prop.Seller.Phone = raw.Seller.Phones[0]
		}
	} else if raw.OfficeName != "" {
		prop.Seller = &domain.Seller{Name: raw.OfficeName, Company: raw.OfficeName}
	}
	return prop
}

// buildImages converts the extracted image URLs into the owned image
// set; the first detail image (or the card thumbnail) is primary.
func buildImages(raw *domain.RawListing) []domain.Image {
	if len(raw.Images) > 0 {
		images := make([]domain.Image, 0, len(raw.Images))
		for i, u := range raw.Images {
			images = append(images, domain.Image{URL: u, Primary: i == 0})
		}
		return images
	}
	if raw.Thumbnail != "" {
		return []domain.Image{{URL: raw.Thumbnail, Primary: true}}
	}
	return nil
}

func pick(details map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := details[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// rawPayload keeps the complete extracted field set as an opaque blob
// for fields not yet promoted to typed columns.
func rawPayload(raw *domain.RawListing) map[string]any {
	payload := map[string]any{
		"title":      raw.Title,
		"price_text": raw.PriceText,
		"currency":   raw.Currency,
		"location":   raw.Location,
		"url":        raw.URL,
	}
	if raw.Thumbnail != "" {
		payload["thumbnail"] = raw.Thumbnail
	}
	if raw.OfficeName != "" {
		payload["office_name"] = raw.OfficeName
	}
	if raw.PostedAt != "" {
		payload["posted_at"] = raw.PostedAt
	}
	if raw.Description != "" {
		payload["description"] = raw.Description
	}
	if len(raw.Features) > 0 {
		payload["features"] = raw.Features
	}
	if len(raw.Details) > 0 {
		payload["details"] = raw.Details
	}
	if len(raw.Images) > 0 {
		payload["images"] = raw.Images
	}
	if raw.Seller != nil {
		payload["seller"] = map[string]any{
			"name":              raw.Seller.Name,
			"membership_status": raw.Seller.Membership,
			"phones":            raw.Seller.Phones,
			"profile_url":       raw.Seller.ProfileURL,
		}
	}
	return payload
}

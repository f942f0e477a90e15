package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"emlak-scraper/internal/browser"
	"emlak-scraper/internal/config"
	"emlak-scraper/internal/domain"
	"emlak-scraper/internal/ingest"
	"emlak-scraper/internal/monitoring"
	"emlak-scraper/internal/scraper"
	"emlak-scraper/internal/storage"
)

// ErrRecentlySearched signals that the identical canonical search URL
// was crawled within the suppression window and no new run was started.
var ErrRecentlySearched = errors.New("search recently crawled")

// Selectors matched before a detail page is considered loaded.
var detailReadySelectors = []string{".realty-name", ".detail-title", ".detail-price-wrap", "h1.fontRB"}

// Runner owns the crawl lifecycle: one browser session, one walk, one
// reconciliation pass and one audit record per run. Runs share nothing
// mutable with each other except the catalog store.
type Runner struct {
	cfg        *config.Config
	pg         *storage.PostgresStore
	rd         *storage.RedisStore
	identities *browser.IdentityPool
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewRunner(cfg *config.Config, pg *storage.PostgresStore, rd *storage.RedisStore, m *monitoring.Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		pg:         pg,
		rd:         rd,
		identities: browser.NewIdentityPool(),
		metrics:    m,
		logger:     logger,
	}
}

// Trigger validates a crawl request, records the SearchRun audit row
// and launches the run asynchronously. It returns immediately; run
// failures are observable only via logs and the audit record.
func (r *Runner) Trigger(ctx context.Context, req domain.CrawlRequest) (*domain.CrawlResponse, error) {
	if req.District == "" {
		return nil, errors.New("district is required")
	}
	if !scraper.ValidStatus(req.Status) {
		return nil, fmt.Errorf("unknown listing status %q", req.Status)
	}

	searchURL := scraper.SearchURL(r.cfg.BaseURL, req.District, req.Status, req.Category, req.Neighborhoods)

	ttl := time.Duration(r.cfg.SearchTTLHours) * time.Hour
	if !req.Force {
		recent, err := r.rd.RecentlySearched(ctx, searchURL)
		if err != nil {
			r.logger.Error("could not check search suppression", zap.Error(err))
		}
		if recent {
			return &domain.CrawlResponse{SearchURL: searchURL}, ErrRecentlySearched
		}
	}

	params := map[string]any{
		"district": req.District,
		"status":   req.Status,
	}
	if req.Category != "" {
		params["category"] = req.Category
	}
	if len(req.Neighborhoods) > 0 {
		params["neighborhoods"] = req.Neighborhoods
	}

	runID, err := r.pg.CreateSearchRun(ctx, searchURL, params)
	if err != nil {
		return nil, fmt.Errorf("create search run: %w", err)
	}

	if err := r.rd.SetRunState(ctx, runID, domain.RunRunning, 24*time.Hour); err != nil {
		r.logger.Warn("could not publish run state", zap.Int64("run_id", runID), zap.Error(err))
	}
	if err := r.rd.MarkSearched(ctx, searchURL, ttl); err != nil {
		r.logger.Warn("could not mark search URL", zap.Error(err))
	}

	go r.execute(context.Background(), runID, searchURL)

	return &domain.CrawlResponse{RunID: runID, SearchURL: searchURL, Message: "crawl accepted"}, nil
}

// execute performs one complete crawl run. The browser session is
// released on every exit path.
func (r *Runner) execute(ctx context.Context, runID int64, searchURL string) {
	start := time.Now()
	status := domain.RunFailed
	resultCount := 0

	defer func() {
		if err := r.pg.FinishSearchRun(ctx, runID, resultCount, status); err != nil {
			r.logger.Error("could not finish search run", zap.Int64("run_id", runID), zap.Error(err))
		}
		if err := r.rd.SetRunState(ctx, runID, status, 24*time.Hour); err != nil {
			r.logger.Warn("could not publish run state", zap.Int64("run_id", runID), zap.Error(err))
		}
		r.metrics.ObserveRunDuration(time.Since(start))
		r.logger.Info("run finished",
			zap.Int64("run_id", runID), zap.String("status", status),
			zap.Int("results", resultCount), zap.Duration("took", time.Since(start)))
	}()

	session := browser.NewSession(r.cfg, r.identities, r.metrics, r.logger)
	defer session.Close()

	if err := session.Warmup(ctx); err != nil {
		r.logger.Error("session warmup failed", zap.Int64("run_id", runID), zap.Error(err))
		return
	}

	extractor := scraper.NewExtractor(r.cfg.BaseURL, r.logger)
	walker := scraper.NewWalker(session, extractor, r.cfg.MaxPages,
		time.Duration(r.cfg.PageDelayMin)*time.Second,
		time.Duration(r.cfg.PageDelayMax)*time.Second,
		r.logger)

	listings, err := walker.Walk(ctx, searchURL)
	if err != nil {
		r.logger.Error("walk failed before any results", zap.Int64("run_id", runID), zap.Error(err))
		return
	}
	resultCount = len(listings)
	r.metrics.AddListingsExtracted(len(listings))

	if r.cfg.FetchDetails {
		r.enrich(ctx, session, extractor, listings)
	}

	registry := ingest.NewRegistry(r.pg)
	reconciler := ingest.NewReconciler(r.pg, registry, r.cfg.BatchSize, r.logger)

	totals, err := reconciler.Run(ctx, listings)
	r.metrics.AddReconcile("created", totals.Created)
	r.metrics.AddReconcile("updated", totals.Updated)
	r.metrics.AddReconcile("unchanged", totals.Unchanged)
	r.metrics.AddReconcile("skipped", totals.Skipped)

	r.logger.Info("reconciliation totals",
		zap.Int64("run_id", runID),
		zap.Int("created", totals.Created), zap.Int("updated", totals.Updated),
		zap.Int("unchanged", totals.Unchanged), zap.Int("skipped", totals.Skipped))

	if err != nil {
		r.logger.Error("reconciliation ended early", zap.Int64("run_id", runID), zap.Error(err))
		return
	}
	status = domain.RunCompleted
}

// enrich fetches detail pages and merges their fields over the card
// summaries. Detail failures leave the summary record usable as-is.
func (r *Runner) enrich(ctx context.Context, session *browser.Session, extractor *scraper.Extractor, listings []domain.RawListing) {
	for i := range listings {
		l := &listings[i]
		if l.URL == "" {
			continue
		}
		html, err := session.Fetch(ctx, l.URL, detailReadySelectors...)
		if err != nil {
			r.logger.Warn("detail fetch failed", zap.String("url", l.URL), zap.Error(err))
			continue
		}
		detail := extractor.Detail(html, l.URL)
		if detail == nil {
			continue
		}
		mergeDetail(l, detail)
	}
}

// mergeDetail overlays non-empty detail fields onto the summary record.
func mergeDetail(summary, detail *domain.RawListing) {
	if detail.Title != "" {
		summary.Title = detail.Title
	}
	if detail.PriceText != "" {
		summary.PriceText = detail.PriceText
	}
	if detail.Currency != "" {
		summary.Currency = detail.Currency
	}
	if detail.Location != "" {
		summary.Location = detail.Location
	}
	if detail.Description != "" {
		summary.Description = detail.Description
	}
	if len(detail.Features) > 0 {
		summary.Features = detail.Features
	}
	if len(detail.Details) > 0 {
		summary.Details = detail.Details
	}
	if len(detail.Images) > 0 {
		summary.Images = detail.Images
	}
	if detail.Seller != nil {
		summary.Seller = detail.Seller
	}
}

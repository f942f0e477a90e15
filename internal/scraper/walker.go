package scraper

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"emlak-scraper/internal/domain"
)

// Fetcher acquires the rendered HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, readySelectors ...string) (string, error)
}

// PageExtractor is the slice of Extractor the walker needs.
type PageExtractor interface {
	Summaries(html string) []domain.RawListing
	HasNextPage(html string) bool
}

// readySelector matched before a results page is considered loaded.
var resultsReadySelectors = []string{"li.listing-item", "ul.list-items-container"}

// Walker drives the fetcher and extractor across consecutive result
// pages until the results run out, the next control disappears or the
// page cap is reached. A fetch failure mid-walk stops the walk and
// returns whatever was accumulated; partial results beat total loss.
type Walker struct {
	fetcher   Fetcher
	extractor PageExtractor
	maxPages  int
	delayMin  time.Duration
	delayMax  time.Duration
	logger    *zap.Logger
}

func NewWalker(f Fetcher, e PageExtractor, maxPages int, delayMin, delayMax time.Duration, logger *zap.Logger) *Walker {
	if maxPages <= 0 {
		maxPages = 20
	}
	return &Walker{
		fetcher:   f,
		extractor: e,
		maxPages:  maxPages,
		delayMin:  delayMin,
		delayMax:  delayMax,
		logger:    logger,
	}
}

// Walk collects raw listings from page 1 through the first terminal
// condition. The returned error is non-nil only when even the first
// page could not be fetched.
func (w *Walker) Walk(ctx context.Context, searchURL string) ([]domain.RawListing, error) {
	var all []domain.RawListing

	for page := 1; page <= w.maxPages; page++ {
		pageURL := PageURL(searchURL, page)

		html, err := w.fetcher.Fetch(ctx, pageURL, resultsReadySelectors...)
		if err != nil {
			w.logger.Warn("page fetch failed, returning partial results",
				zap.String("url", pageURL), zap.Int("page", page), zap.Error(err))
			if page == 1 {
				return nil, err
			}
			return all, nil
		}

		listings := w.extractor.Summaries(html)
		if len(listings) == 0 {
			w.logger.Info("empty results page, stopping", zap.Int("page", page))
			return all, nil
		}

		all = append(all, listings...)
		w.logger.Info("page extracted",
			zap.Int("page", page), zap.Int("listings", len(listings)), zap.Int("total", len(all)))

		if !w.extractor.HasNextPage(html) {
			w.logger.Info("no next page control, stopping", zap.Int("page", page))
			return all, nil
		}

		if page < w.maxPages {
			w.sleep(ctx)
		}
	}

	w.logger.Info("page cap reached", zap.Int("max_pages", w.maxPages), zap.Int("total", len(all)))
	return all, nil
}

// sleep waits a randomized inter-page delay, separate from the
// per-request delay inside the fetcher.
func (w *Walker) sleep(ctx context.Context) {
	if w.delayMax <= 0 {
		return
	}
	d := w.delayMin
	if w.delayMax > w.delayMin {
		d += time.Duration(rand.Int63n(int64(w.delayMax - w.delayMin)))
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

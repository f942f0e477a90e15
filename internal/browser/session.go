package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"emlak-scraper/internal/config"
	"emlak-scraper/internal/monitoring"
)

// consentButton is the OneTrust accept control shown on first visit.
const consentButton = `#onetrust-accept-btn-handler`

// stealthScript masks the most common automation tells before any page
// script runs its checks.
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['tr-TR', 'tr', 'en-US', 'en'] });
`

// FetchError reports a page that could not be acquired. It aborts only
// the current page, never a whole run.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Session owns one headless browser for the duration of a crawl run.
// It is not safe for concurrent use; each run acquires its own session
// and releases it on every exit path.
type Session struct {
	baseURL    string
	allocCtx   context.Context
	browserCtx context.Context
	cancels    []context.CancelFunc
	limiter    *rate.Limiter
	delayMin   time.Duration
	delayMax   time.Duration
	timeout    time.Duration
	minBytes   int
	dumpPath   string
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewSession(cfg *config.Config, identities *IdentityPool, m *monitoring.Metrics, logger *zap.Logger) *Session {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(identities.UserAgent()),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	delayMin := time.Duration(cfg.FetchDelayMin) * time.Second
	delayMax := time.Duration(cfg.FetchDelayMax) * time.Second

	return &Session{
		baseURL:    cfg.BaseURL,
		allocCtx:   allocCtx,
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{cancelBrowser, cancelAlloc},
		limiter:    rate.NewLimiter(rate.Every(delayMin), 1),
		delayMin:   delayMin,
		delayMax:   delayMax,
		timeout:    time.Duration(cfg.FetchTimeout) * time.Second,
		minBytes:   cfg.MinBodyBytes,
		dumpPath:   cfg.DebugDumpPath,
		metrics:    m,
		logger:     logger,
	}
}

// Close releases the browser and allocator. Safe to call on every exit path.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// Warmup visits the site root once per session: establishes cookies,
// accepts the consent prompt when shown and installs the stealth
// script. Consent absence is not an error.
func (s *Session) Warmup(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(s.baseURL),
		chromedp.Sleep(3*time.Second),
	)
	if err != nil {
		return &FetchError{URL: s.baseURL, Reason: "warmup", Err: err}
	}

	cctx, cancelConsent := context.WithTimeout(s.browserCtx, 5*time.Second)
	defer cancelConsent()
	if err := chromedp.Run(cctx, chromedp.Click(consentButton, chromedp.ByID, chromedp.NodeVisible)); err != nil {
		s.logger.Debug("consent prompt not shown", zap.Error(err))
	}

	return nil
}

// Fetch acquires the rendered HTML for one URL. It waits the rate
// floor plus a randomized extra delay before navigating, polls until
// any ready selector matches, and rejects bodies below the minimum
// byte threshold as interstitial pages.
func (s *Session) Fetch(ctx context.Context, url string, readySelectors ...string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", &FetchError{URL: url, Reason: "canceled", Err: err}
	}
	s.jitter(ctx)

	tctx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()
	tctx, cancelTimeout := context.WithTimeout(tctx, s.timeout)
	defer cancelTimeout()

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if len(readySelectors) > 0 {
		tasks = append(tasks, chromedp.Poll(anySelectorExpr(readySelectors), nil,
			chromedp.WithPollingTimeout(s.timeout)))
	} else {
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	tasks = append(tasks,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(time.Second),
	)

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tctx, tasks); err != nil {
		s.metrics.IncFetchErrors("navigate")
		return "", &FetchError{URL: url, Reason: "navigate", Err: err}
	}

	s.dump(html)

	if len(html) < s.minBytes {
		s.metrics.IncFetchErrors("short_body")
		return "", &FetchError{URL: url, Reason: fmt.Sprintf("body too short (%d bytes)", len(html))}
	}

	s.metrics.IncPagesFetched()
	return html, nil
}

// jitter sleeps the randomized extra delay on top of the rate floor.
func (s *Session) jitter(ctx context.Context) {
	if s.delayMax <= s.delayMin {
		return
	}
	d := time.Duration(rand.Int63n(int64(s.delayMax - s.delayMin)))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// dump persists the last fetched body for diagnostic replay. Failure to
// write is logged and otherwise ignored.
func (s *Session) dump(html string) {
	if s.dumpPath == "" {
		return
	}
	if err := os.WriteFile(s.dumpPath, []byte(html), 0o644); err != nil {
		s.logger.Warn("could not write debug dump", zap.String("path", s.dumpPath), zap.Error(err))
	}
}

// anySelectorExpr builds the poll expression that resolves once any of
// the given selectors matches the document.
func anySelectorExpr(selectors []string) string {
	encoded, _ := json.Marshal(selectors)
	return fmt.Sprintf(`%s.some(sel => document.querySelector(sel) !== null)`, encoded)
}

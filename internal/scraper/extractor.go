package scraper

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"emlak-scraper/internal/domain"
)

// Extractor parses rendered listing pages into RawListings. Every field
// lookup walks an ordered selector strategy list, so a site redesign
// that breaks the primary selector degrades to the fallback instead of
// dropping the field outright.
type Extractor struct {
	baseURL string
	logger  *zap.Logger
}

func NewExtractor(baseURL string, logger *zap.Logger) *Extractor {
	return &Extractor{baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Selector strategies per field, primary first. The second entry of
// each list matches the markup variant the site shipped before the
// card redesign.
var (
	summaryItemSelectors = []string{"ul.list-items-container li.listing-item", "li[class*=\"listing-item\"]", "div.listing-item"}
	titleSelectors       = []string{"div.list-view-title h3", "h3", "h3.list-item-title"}
	priceSelectors       = []string{"span.list-view-price", "div.list-item-price", "span.price"}
	currencySelectors    = []string{"span.currency"}
	dateSelectors        = []string{"span.list-view-date", "div.list-item-date"}
	locationSelectors    = []string{"span.list-view-location", "div.list-item-location"}
	linkSelectors        = []string{"a.card-link", "a.listing-link", "a[href]"}
	thumbSelectors       = []string{"img.list-view-image", "img.list-item-image"}
	officeSelectors      = []string{"p.listing-card--owner-info__firm-name", "div.list-item-owner"}
	categoryTagSelectors = []string{"span.left"}
	roomCountSelectors   = []string{"span.houseRoomCount"}
	squareMeterSelectors = []string{"span.squareMeter"}
	buildingAgeSelectors = []string{"span.buildingAge"}
	floorTypeSelectors   = []string{"span.floortype"}
	nextPageSelectors    = []string{"a.he-pagination__navigate-text--next", "a[rel=\"next\"]"}

	detailTitleSelectors = []string{".realty-name h1.fontRB", "h1.fontRB", "h1.detail-title"}
	detailPriceSelectors = []string{".detail-price-wrap .price", "p.price", ".fz24-text.price"}
	detailDescSelectors  = []string{".description-content", ".description"}
	locationPartSelects  = []string{".detail-info-location li", "ul.detail-location li"}
	specItemSelectors    = []string{".adv-info-list .spec-item", "ul.adv-info-list li"}
	galleryImgSelectors  = []string{".img-wrapper img", "div.image-gallery img", "div.gallery-img img"}

	sellerNameSelectors  = []string{".firm-card-detail .firm-link", ".owner-info .name", "div.broker-name"}
	memberTypeSelectors  = []string{".member-type"}
	memberBadgeSelectors = []string{".member-badge"}
	sellerPhoneSelectors = []string{".owner-phone-numbers-list li", "ul.list-phone-numbers li"}
	sellerLinkSelectors  = []string{".firm-card-detail .card-link"}
)

// firstText returns the trimmed text of the first selector that matches.
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			if text := CleanText(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// firstAttr returns the named attribute from the first matching
// selector, checking data-src after src for lazily loaded images.
func firstAttr(s *goquery.Selection, selectors []string, attrs ...string) string {
	for _, sel := range selectors {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		for _, attr := range attrs {
			if v, ok := found.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// Summaries extracts all listing cards from one search-results page.
// Cards with neither title nor price are dropped.
func (e *Extractor) Summaries(html string) []domain.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("could not parse results page", zap.Error(err))
		return nil
	}

	var items *goquery.Selection
	for _, sel := range summaryItemSelectors {
		items = doc.Find(sel)
		if items.Length() > 0 {
			break
		}
	}
	if items == nil || items.Length() == 0 {
		return nil
	}

	var listings []domain.RawListing
	items.Each(func(_ int, card *goquery.Selection) {
		l := domain.RawListing{
			Title:      firstText(card, titleSelectors),
			PriceText:  firstText(card, priceSelectors),
			Currency:   firstText(card, currencySelectors),
			PostedAt:   firstText(card, dateSelectors),
			Location:   firstText(card, locationSelectors),
			URL:        e.absoluteURL(firstAttr(card, linkSelectors, "href")),
			Thumbnail:  firstAttr(card, thumbSelectors, "src", "data-src"),
			OfficeName: firstText(card, officeSelectors),
		}

		for _, sels := range [][]string{
			categoryTagSelectors, roomCountSelectors, squareMeterSelectors,
			buildingAgeSelectors, floorTypeSelectors,
		} {
			if v := firstText(card, sels); v != "" {
				l.Features = append(l.Features, v)
			}
		}

		if !l.HasSignal() {
			return
		}
		listings = append(listings, l)
	})

	return listings
}

// productLD is the subset of the embedded JSON-LD Product document the
// detail extractor cares about.
type productLD struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Offers      struct {
		Price         json.Number `json:"price"`
		PriceCurrency string      `json:"priceCurrency"`
	} `json:"offers"`
	Address struct {
		AddressLocality string `json:"addressLocality"`
	} `json:"address"`
	Image []struct {
		ContentURL string `json:"contentUrl"`
	} `json:"image"`
}

// Detail extracts one listing-detail page. The structured JSON-LD block
// is preferred when present and well-formed; markup selectors fill in
// whatever the block does not carry. Returns nil when both strategies
// leave title and price empty — an unusable page, not an error.
func (e *Extractor) Detail(html, pageURL string) *domain.RawListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("could not parse detail page", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	l := &domain.RawListing{URL: pageURL}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var p productLD
		if err := json.Unmarshal([]byte(s.Text()), &p); err != nil || p.Type != "Product" {
			return true
		}
		l.Title = CleanText(p.Name)
		l.PriceText = p.Offers.Price.String()
		l.Currency = p.Offers.PriceCurrency
		l.Description = CleanText(p.Description)
		l.Location = CleanText(p.Address.AddressLocality)
		for _, img := range p.Image {
			if img.ContentURL != "" {
				l.Images = append(l.Images, img.ContentURL)
			}
		}
		return false
	})

	// Markup fallbacks for the core fields.
	root := doc.Selection
	if l.Title == "" {
		l.Title = firstText(root, detailTitleSelectors)
	}
	if l.PriceText == "" {
		l.PriceText = firstText(root, detailPriceSelectors)
	}
	if l.Description == "" {
		l.Description = firstText(root, detailDescSelectors)
	}
	if loc := e.extractLocation(doc); loc != "" {
		l.Location = loc
	}

	l.Features = e.extractFeatures(doc)
	l.Details = e.extractDetails(doc)
	if len(l.Images) == 0 {
		l.Images = e.extractImages(doc)
	} else {
		l.Images = dedupe(l.Images)
	}
	l.Seller = e.extractSeller(doc)

	if !l.HasSignal() {
		e.logger.Warn("detail page missing title and price", zap.String("url", pageURL))
		return nil
	}
	return l
}

// extractLocation joins the breadcrumb location parts
// (province, district, neighborhood) into a single string.
func (e *Extractor) extractLocation(doc *goquery.Document) string {
	for _, sel := range locationPartSelects {
		items := doc.Find(sel)
		if items.Length() == 0 {
			continue
		}
		var parts []string
		items.Each(func(_ int, s *goquery.Selection) {
			if part := CleanText(s.Text()); part != "" {
				parts = append(parts, part)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

func (e *Extractor) extractFeatures(doc *goquery.Document) []string {
	var features []string
	for _, sel := range specItemSelectors {
		items := doc.Find(sel)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, s *goquery.Selection) {
			label := CleanText(s.Find(".txt").First().Text())
			value := CleanText(s.Find(".value-txt").First().Text())
			switch {
			case label != "" && value != "":
				features = append(features, label+": "+value)
			case label == "" && value == "":
				if text := CleanText(s.Text()); text != "" {
					features = append(features, text)
				}
			}
		})
		if len(features) > 0 {
			break
		}
	}
	return features
}

// extractDetails builds the label→value map with keys normalized to
// ASCII snake_case, e.g. "Isıtma Tipi" → "isitma_tipi".
func (e *Extractor) extractDetails(doc *goquery.Document) map[string]string {
	details := make(map[string]string)
	for _, sel := range specItemSelectors {
		items := doc.Find(sel)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, s *goquery.Selection) {
			label := CleanText(s.Find(".txt").First().Text())
			value := CleanText(s.Find(".value-txt").First().Text())
			if label == "" {
				label = CleanText(s.Find("span.spec-item-name").First().Text())
				value = CleanText(s.Find("span.spec-item-value").First().Text())
			}
			if label != "" && value != "" {
				details[SnakeKey(label)] = value
			}
		})
		if len(details) > 0 {
			break
		}
	}
	return details
}

func (e *Extractor) extractImages(doc *goquery.Document) []string {
	var images []string
	for _, sel := range galleryImgSelectors {
		items := doc.Find(sel)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || src == "" {
				src, _ = s.Attr("data-src")
			}
			if src != "" {
				images = append(images, src)
			}
		})
		if len(images) > 0 {
			break
		}
	}
	return dedupe(images)
}

func (e *Extractor) extractSeller(doc *goquery.Document) *domain.SellerSnapshot {
	root := doc.Selection
	seller := &domain.SellerSnapshot{
		Name:       firstText(root, sellerNameSelectors),
		ProfileURL: e.absoluteURL(firstAttr(root, sellerLinkSelectors, "href")),
	}

	memberType := firstText(root, memberTypeSelectors)
	memberBadge := firstText(root, memberBadgeSelectors)
	switch {
	case memberType != "" && memberBadge != "":
		seller.Membership = memberType + " (" + memberBadge + ")"
	case memberType != "":
		seller.Membership = memberType
	}

	for _, sel := range sellerPhoneSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if phone := CleanText(s.Text()); phone != "" {
				seller.Phones = append(seller.Phones, phone)
			}
		})
		if len(seller.Phones) > 0 {
			break
		}
	}

	if seller.Name == "" && seller.Membership == "" && len(seller.Phones) == 0 {
		return nil
	}
	return seller
}

// HasNextPage reports whether the page carries an enabled "next"
// pagination control.
func (e *Extractor) HasNextPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	for _, sel := range nextPageSelectors {
		next := doc.Find(sel).First()
		if next.Length() == 0 {
			continue
		}
		if cls, _ := next.Attr("class"); strings.Contains(cls, "disabled") {
			return false
		}
		return true
	}
	return false
}

// absoluteURL resolves a possibly relative href against the site base.
func (e *Extractor) absoluteURL(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(e.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

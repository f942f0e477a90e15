package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// Listing status segments understood by the origin site.
const (
	StatusForSale = "satilik"
	StatusForRent = "kiralik"
)

// Property categories. CategoryHousing is the site default and is
// omitted from the URL path entirely.
const (
	CategoryHousing   = "konut"
	CategoryLand      = "arsa"
	CategoryWorkplace = "isyeri"
	CategoryTimeshare = "devremulk"
	CategoryTouristic = "turistik-isletme"
)

// ValidStatus reports whether s is a known listing status.
func ValidStatus(s string) bool {
	return s == StatusForSale || s == StatusForRent
}

// SearchURL composes the canonical search URL for a district, listing
// status, optional category and optional neighborhood list. The output
// is deterministic and side-effect-free, so identical searches produce
// identical URLs and can be deduplicated by string comparison.
//
// Shape: base/{district}-{status}[/{category}]?districts={district}-{hood},...
func SearchURL(baseURL, district, status, category string, neighborhoods []string) string {
	district = Slugify(district)

	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s-%s", strings.TrimRight(baseURL, "/"), district, status)

	if category != "" && category != CategoryHousing {
		b.WriteString("/" + Slugify(category))
	}

	if len(neighborhoods) > 0 {
		pairs := make([]string, 0, len(neighborhoods))
		for _, hood := range neighborhoods {
			pairs = append(pairs, url.QueryEscape(district+"-"+Slugify(hood)))
		}
		b.WriteString("?districts=" + strings.Join(pairs, ","))
	}

	return b.String()
}

// PageURL appends the page number to a search URL. Page 1 is the bare
// search URL itself.
func PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	sep := "?"
	if strings.Contains(searchURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", searchURL, sep, page)
}

package domain

import "time"

// RawListing is the transient output of the extractor. Every field is
// best-effort text exactly as it appeared on the page; normalization
// happens later in the ingest pipeline. A RawListing lives only for the
// duration of one crawl run and is never persisted as-is.
type RawListing struct {
	Title       string
	PriceText   string
	Currency    string
	Location    string
	URL         string
	Thumbnail   string
	OfficeName  string
	PostedAt    string
	Description string
	Features    []string
	Details     map[string]string
	Images      []string
	Seller      *SellerSnapshot
}

// HasSignal reports whether the listing carries enough data to be worth
// keeping. Listings with neither title nor price are unusable.
func (r *RawListing) HasSignal() bool {
	return r.Title != "" || r.PriceText != ""
}

// SellerSnapshot is the seller block as observed on a detail page.
// Sellers are attached per listing and not deduplicated against each other.
type SellerSnapshot struct {
	Name       string
	Company    string
	Membership string
	Phones     []string
	ProfileURL string
}

// Property is a durable catalog entry. The canonical detail-page URL is
// the natural key; ExternalID exists but is not reliably populated.
type Property struct {
	ID          int64          `json:"id"`
	ExternalID  string         `json:"external_id,omitempty"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Price       float64        `json:"price"`
	Currency    string         `json:"currency"`
	Location    string         `json:"location"`
	Category    string         `json:"category,omitempty"`
	Size        string         `json:"size,omitempty"`
	RoomCount   string         `json:"room_count,omitempty"`
	Floor       string         `json:"floor,omitempty"`
	BuildingAge string         `json:"building_age,omitempty"`
	HeatingType string         `json:"heating_type,omitempty"`
	BathroomCnt string         `json:"bathroom_count,omitempty"`
	Balcony     string         `json:"balcony,omitempty"`
	Furnished   string         `json:"furnished,omitempty"`
	Description string         `json:"description,omitempty"`
	RawData     map[string]any `json:"raw_data,omitempty"`
	Features    []string       `json:"features"`
	Images      []Image        `json:"images"`
	Seller      *Seller        `json:"seller,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Image belongs to exactly one property. The set is replaced wholesale
// on every update, never merged.
type Image struct {
	ID      int64  `json:"id,omitempty"`
	URL     string `json:"url"`
	Primary bool   `json:"is_primary"`
}

// Seller is a stored seller snapshot referenced by a property.
type Seller struct {
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Membership string `json:"membership_status,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// SearchRun is the audit record for one crawl invocation.
type SearchRun struct {
	ID          int64          `json:"id"`
	SearchURL   string         `json:"search_url"`
	Params      map[string]any `json:"search_params,omitempty"`
	ResultCount int            `json:"results_count"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Run states recorded in search_runs and mirrored in Redis.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// WriteKind distinguishes staged catalog writes.
type WriteKind int

const (
	WriteCreate WriteKind = iota
	WriteUpdate
)

// StagedWrite is one pending catalog mutation, buffered by the
// reconciler and applied by the store in per-batch transactions.
type StagedWrite struct {
	Kind       WriteKind
	Property   *Property
	FeatureIDs []int64
}

// PropertyFilter is the catalog query surface exposed to the API.
type PropertyFilter struct {
	Title    string
	Location string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Offset   int
	Limit    int
}

// CrawlRequest is the payload of the crawl-trigger endpoint.
type CrawlRequest struct {
	District      string   `json:"district"`
	Status        string   `json:"status"`
	Category      string   `json:"category,omitempty"`
	Neighborhoods []string `json:"neighborhoods,omitempty"`
	Force         bool     `json:"force,omitempty"`
}

// CrawlResponse acknowledges an accepted crawl run.
type CrawlResponse struct {
	RunID     int64  `json:"run_id"`
	SearchURL string `json:"search_url"`
	Message   string `json:"message"`
}

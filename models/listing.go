package models

import (
	"strings"
	"time"
)

// District is one of the fixed Hong Kong areas the pipeline partitions by.
type District string

const (
	KwunTong    District = "Kwun Tong"
	MongKok     District = "Mong Kok"
	ShaTin      District = "Sha Tin"
	TuenMun     District = "Tuen Mun"
	ShamShuiPo  District = "Sham Shui Po"
	YauTsimMong District = "Yau Tsim Mong"
	WongTaiSin  District = "Wong Tai Sin"
	KowloonCity District = "Kowloon City"
)

// AllDistricts lists every supported district in orchestration order.
var AllDistricts = []District{
	KwunTong, MongKok, ShaTin, TuenMun,
	ShamShuiPo, YauTsimMong, WongTaiSin, KowloonCity,
}

// ParseDistrict matches a district name (case-insensitive, hyphen or space
// separated) against the supported set. Returns false outside the closed enum.
func ParseDistrict(name string) (District, bool) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "-", " ")
	for _, d := range AllDistricts {
		if strings.EqualFold(string(d), name) {
			return d, true
		}
	}
	return "", false
}

// Slug returns the district's cache-file form: lowercase, spaces → hyphens.
func (d District) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(d)), " ", "-")
}

// ListingSource identifies which adapter produced a listing.
type ListingSource string

const (
	Source28Hse    ListingSource = "28hse"
	SourceHouse730 ListingSource = "house730"
	SourceCentanet ListingSource = "centanet"
	SourceMock     ListingSource = "mock"
)

// ListingStatus classifies a listing as a sale or rental record.
type ListingStatus string

const (
	StatusForSale ListingStatus = "for_sale"
	StatusForRent ListingStatus = "for_rent"
	StatusSold    ListingStatus = "sold"
	StatusUnknown ListingStatus = "unknown"
)

// MarketListing is one observed unit-for-sale-or-rent record. Created fresh
// on every scrape and never mutated; the next scrape of the same district
// replaces the whole cached collection.
type MarketListing struct {
	ID        string        `json:"id"`
	Source    ListingSource `json:"source"`
	URL       string        `json:"url"`
	ScrapedAt time.Time     `json:"scrapedAt"`

	Address  string   `json:"address"`
	District District `json:"district"`
	Rooms    int      `json:"rooms"`
	SizeSqft int      `json:"size_sqft"`
	Floor    *string  `json:"floor"`

	PriceHKD        int64    `json:"price_hkd"`
	PricePerSqftHKD int64    `json:"price_per_sqft_hkd"`
	MonthlyRentHKD  *int64   `json:"monthly_rent_hkd"`
	GrossYieldPct   *float64 `json:"gross_yield_pct"`

	// Reserved for transit enrichment; always null today.
	MTRStation     *string `json:"mtr_station"`
	MTRDistanceMin *int    `json:"mtr_distance_min"`

	ListingStatus ListingStatus `json:"listing_status"`
}

// PriceRange is the min/max sale price across a snapshot.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// MarketStats is the aggregate derived from one district snapshot. Always
// recomputed from the listings it is stored beside, never independently.
type MarketStats struct {
	AvgPricePerSqftHKD   int64      `json:"avg_price_per_sqft_hkd"`
	AvgGrossYieldPct     float64    `json:"avg_gross_yield_pct"`
	MedianPriceHKD       int64      `json:"median_price_hkd"`
	TotalListingsScraped int        `json:"total_listings_scraped"`
	PriceRange           PriceRange `json:"price_range"`
}

// DistrictCache is the persisted market snapshot for one district. Fully
// replaced on each successful scrape; read-only for every other component.
type DistrictCache struct {
	District    District         `json:"district"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Listings    []*MarketListing `json:"listings"`
	MarketStats MarketStats      `json:"market_stats"`
}

// ScrapeResult reports the outcome of one orchestrated district cycle.
// Transient; returned to the trigger surface and never persisted.
type ScrapeResult struct {
	Success       bool     `json:"success"`
	District      District `json:"district"`
	ListingsFound int      `json:"listingsFound"`
	Error         string   `json:"error,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
}

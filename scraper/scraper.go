package scraper

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"hk-market-scraper/models"
)

// Source is one listing-site adapter. Scrape re-fetches the district page on
// every call and returns at most maxListings normalized records.
//
// Failure contract: zero results is not an error — a missing selector, an
// empty page, or a blocked request all yield an empty slice and a nil error.
// Live adapters also catch their own fatal browser faults, log them, and
// return empty; a non-nil error should never escape a well-behaved Source,
// but the orchestrator still defends against one.
type Source interface {
	Name() models.ListingSource
	// Covers reports whether the site has listing coverage for the district.
	Covers(district models.District) bool
	Scrape(ctx context.Context, district models.District, maxListings int) ([]*models.MarketListing, error)
}

// RawCard is the untyped card data lifted out of a rendered listing page
// before field parsing. One card may still be rejected by parsing or the
// plausibility floor.
type RawCard struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Area  string `json:"area"`
	Addr  string `json:"addr"`
	Floor string `json:"floor"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewBrowserContext creates a headless browser context with a realistic user
// agent and Hong Kong locale (the target sites vary markup by locale). The
// returned cancel func tears down the whole allocator; callers must invoke it
// on every exit path — browser processes are expensive and leak-prone.
func NewBrowserContext(parent context.Context, chromeBin string) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("lang", "zh-HK"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin == "" {
		chromeBin = FindChromeBinary()
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)

	// Suppress chromedp log noise
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelCtx()
		cancelAlloc()
	}
	return ctx, cancel
}

// Plausible applies the minimum-plausibility floor: values below it indicate
// a parsing failure, not a real Hong Kong listing. minSalePrice is
// site-specific (the sites render prices in different unit conventions, so
// their failure modes differ).
func Plausible(l *models.MarketListing, minSalePrice int64) bool {
	if l.SizeSqft < 100 {
		return false
	}
	switch l.ListingStatus {
	case models.StatusForSale:
		return l.PriceHKD >= minSalePrice
	case models.StatusForRent:
		return l.MonthlyRentHKD != nil && *l.MonthlyRentHKD >= 3_000
	default:
		return false
	}
}

// Finalize fills the derived economic fields on a parsed listing.
func Finalize(l *models.MarketListing) *models.MarketListing {
	if l.SizeSqft > 0 && l.PriceHKD > 0 {
		l.PricePerSqftHKD = l.PriceHKD / int64(l.SizeSqft)
	}
	if l.PriceHKD > 0 && l.MonthlyRentHKD != nil && *l.MonthlyRentHKD > 0 {
		y := float64(*l.MonthlyRentHKD) * 12 / float64(l.PriceHKD) * 100
		y = float64(int64(y*10+0.5)) / 10
		l.GrossYieldPct = &y
	}
	return l
}

// FindChromeBinary locates a Chrome/Chromium binary.
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// NavSleep is how long adapters wait after navigation for the sites'
// client-side rendering to settle.
const NavSleep = 5 * time.Second

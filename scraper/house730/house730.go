// Package house730 scrapes sale and rental listings from House730, the
// secondary fallback site. It covers every supported district, which makes
// it the live source of last resort before mock data.
package house730

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"time"

	"github.com/chromedp/chromedp"

	"hk-market-scraper/models"
	"hk-market-scraper/scraper"
	"hk-market-scraper/scraper/textparse"
	"hk-market-scraper/utils"
)

// House730 renders full dollar figures rather than 萬 units, so its parse
// failures skew lower than 28Hse's.
const minSalePriceHKD = 300_000

var districtSlugs = map[models.District]string{
	models.KwunTong:    "kwun-tong",
	models.MongKok:     "mong-kok",
	models.ShaTin:      "sha-tin",
	models.TuenMun:     "tuen-mun",
	models.ShamShuiPo:  "sham-shui-po",
	models.YauTsimMong: "yau-tsim-mong",
	models.WongTaiSin:  "wong-tai-sin",
	models.KowloonCity: "kowloon-city",
}

var listingIDRegexp = regexp.MustCompile(`-d(\d+)\.html`)

// Scraper drives a headless browser against House730 district search pages.
type Scraper struct {
	chromeBin  string
	navTimeout time.Duration
	logger     *utils.Logger
	retry      *utils.RetryConfig
	parser     textparse.FieldParser
	newBrowser func(ctx context.Context, chromeBin string) (context.Context, context.CancelFunc)
}

// New creates a ready-to-use House730 Scraper.
func New(chromeBin string, navTimeoutSec, maxRetries int, logger *utils.Logger) *Scraper {
	return &Scraper{
		chromeBin:  chromeBin,
		navTimeout: time.Duration(navTimeoutSec) * time.Second,
		logger:     logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		parser:     textparse.HK,
		newBrowser: scraper.NewBrowserContext,
	}
}

func (s *Scraper) Name() models.ListingSource { return models.SourceHouse730 }

func (s *Scraper) Covers(district models.District) bool {
	_, ok := districtSlugs[district]
	return ok
}

// Scrape fetches the district's buy page, then its rent page, and returns up
// to maxListings normalized records. Zero results and browser faults both
// surface as an empty slice.
func (s *Scraper) Scrape(ctx context.Context, district models.District, maxListings int) ([]*models.MarketListing, error) {
	slug, ok := districtSlugs[district]
	if !ok {
		return nil, nil
	}

	buyURL := "https://www.house730.com/en-us/buy/" + slug + "/"
	rentURL := "https://www.house730.com/en-us/rent/" + slug + "/"

	s.logger.Info("[house730] Scraping %s", district)

	saleCards, err := s.fetchCards(ctx, buyURL)
	if err != nil {
		s.logger.Error("[house730] Buy page for %s failed: %v", district, err)
	}
	rentCards, err := s.fetchCards(ctx, rentURL)
	if err != nil {
		s.logger.Error("[house730] Rent page for %s failed: %v", district, err)
	}

	listings := s.parseCards(saleCards, rentCards, district, maxListings)
	s.logger.Info("[house730] %s: %d sale + %d rent cards → %d listings",
		district, len(saleCards), len(rentCards), len(listings))
	return listings, nil
}

// fetchCards owns the full browser lifecycle for one page fetch. Each retry
// attempt starts from a fresh browser, so a crashed one is never reused.
func (s *Scraper) fetchCards(ctx context.Context, pageURL string) ([]scraper.RawCard, error) {
	var cards []scraper.RawCard

	err := s.retry.Do("house730-page", func() error {
		browserCtx, cancel := s.newBrowser(ctx, s.chromeBin)
		defer cancel()

		runCtx, cancelTimeout := context.WithTimeout(browserCtx, s.navTimeout)
		defer cancelTimeout()

		var extracted []scraper.RawCard

		err := chromedp.Run(runCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(scraper.NavSleep),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(extractCardsJS, &extracted),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		cards = extracted
		return nil
	})

	return cards, err
}

// parseCards validates sale cards then rental cards, in scrape order, capped
// at maxListings across both. Pure and fixture-testable.
func (s *Scraper) parseCards(saleCards, rentCards []scraper.RawCard, district models.District, maxListings int) []*models.MarketListing {
	seen := utils.NewURLSet()
	now := time.Now()

	var listings []*models.MarketListing

	for _, c := range saleCards {
		if len(listings) >= maxListings {
			return listings
		}
		if l := s.parseOne(c, district, models.StatusForSale, seen, now); l != nil {
			listings = append(listings, l)
		}
	}
	for _, c := range rentCards {
		if len(listings) >= maxListings {
			return listings
		}
		if l := s.parseOne(c, district, models.StatusForRent, seen, now); l != nil {
			listings = append(listings, l)
		}
	}

	return listings
}

func (s *Scraper) parseOne(c scraper.RawCard, district models.District, status models.ListingStatus, seen *utils.URLSet, now time.Time) *models.MarketListing {
	if c.URL == "" {
		return nil
	}

	text := c.Text
	if text == "" {
		text = c.Title + " " + c.Price + " " + c.Area
	}
	if !textparse.HasAreaUnit(text) {
		return nil
	}

	size, ok := s.parser.SizeSqft(c.Area + " " + text)
	if !ok {
		s.logger.Debug("[house730] Unparseable size, card dropped: %q", c.Area)
		return nil
	}

	l := &models.MarketListing{
		Source:        models.SourceHouse730,
		URL:           c.URL,
		ScrapedAt:     now,
		Address:       firstNonEmpty(c.Addr, c.Title),
		District:      district,
		Rooms:         s.parser.Rooms(text),
		SizeSqft:      size,
		ListingStatus: status,
	}

	switch status {
	case models.StatusForSale:
		if !textparse.LooksLikeSaleCard(text) {
			return nil
		}
		price, ok := s.parser.PriceHKD(c.Price + " " + text)
		if !ok {
			s.logger.Debug("[house730] Unparseable price, card dropped: %q", c.Price)
			return nil
		}
		l.PriceHKD = price
	case models.StatusForRent:
		if !textparse.LooksLikeRentalCard(text) {
			return nil
		}
		rent, ok := s.parser.RentHKD(c.Price + " " + text)
		if !ok {
			s.logger.Debug("[house730] Unparseable rent, card dropped: %q", c.Price)
			return nil
		}
		l.MonthlyRentHKD = &rent
	}

	if c.Floor != "" {
		f := c.Floor
		l.Floor = &f
	}

	l.ID = listingID(c.URL, status)
	if !seen.Add(l.ID) {
		return nil
	}

	scraper.Finalize(l)
	if !scraper.Plausible(l, minSalePriceHKD) {
		s.logger.Debug("[house730] Implausible listing dropped: %s", l.ID)
		return nil
	}
	return l
}

// listingID prefers the site's stable -d<id>.html identifier; cards reached
// through the generic selector path carry plain URLs, so the fallback hashes
// the URL to keep distinct cards distinct.
func listingID(url string, status models.ListingStatus) string {
	if m := listingIDRegexp.FindStringSubmatch(url); len(m) == 2 {
		return "house730-" + m[1]
	}
	h := fnv.New32a()
	h.Write([]byte(url))
	return fmt.Sprintf("house730-%s-u%08x", status, h.Sum32())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

const extractCardsJS = `
(function() {
	var results = [];

	var cardSelectors = [
		'.house-item',
		'[class*="list-item"]',
		'li[class*="item"]'
	];

	var cards = [];
	for (var si = 0; si < cardSelectors.length; si++) {
		cards = document.querySelectorAll(cardSelectors[si]);
		if (cards.length > 0) break;
	}

	if (cards.length === 0) {
		var links = document.querySelectorAll('a[href*=".html"]');
		var seen = {};
		for (var li = 0; li < links.length; li++) {
			var href = links[li].href;
			if (!href || !href.match(/-d\d+\.html/) || seen[href]) continue;
			seen[href] = true;
			var div = links[li].closest('li') || links[li].closest('div');
			results.push({
				title: links[li].innerText.trim().split('\n')[0] || '',
				price: '',
				area: '',
				addr: '',
				floor: '',
				url: href,
				text: div ? div.innerText : links[li].innerText
			});
		}
		return results;
	}

	for (var i = 0; i < cards.length; i++) {
		var card = cards[i];
		var linkEl = card.querySelector('a[href*=".html"]');
		var url = linkEl ? linkEl.href : '';

		var priceEl = card.querySelector('[class*="price"]');
		var areaEl = card.querySelector('[class*="area"], [class*="acreage"]');
		var addrEl = card.querySelector('[class*="address"], [class*="name"]');
		var floorEl = card.querySelector('[class*="floor"]');
		var titleEl = card.querySelector('h2, h3, [class*="title"]');

		results.push({
			title: titleEl ? titleEl.innerText.trim() : '',
			price: priceEl ? priceEl.innerText.trim() : '',
			area: areaEl ? areaEl.innerText.trim() : '',
			addr: addrEl ? addrEl.innerText.trim() : '',
			floor: floorEl ? floorEl.innerText.trim() : '',
			url: url,
			text: card.innerText || ''
		});
	}

	return results;
})()
`

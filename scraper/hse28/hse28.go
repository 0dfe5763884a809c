// Package hse28 scrapes residential sale listings from 28Hse, the primary
// listing site. Coverage is limited to the four districts the site exposes
// dedicated search pages for.
package hse28

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

// Sale prices on 28Hse render in 萬 units; anything parsing below this is a
// mangled card, not a listing.
const minSalePriceHKD = 500_000

var districtURLs = map[models.District]string{
	models.KwunTong: "https://www.28hse.com/en/buy/residential/dist-kwun-tong",
	models.MongKok:  "https://www.28hse.com/en/buy/residential/dist-mong-kok",
	models.ShaTin:   "https://www.28hse.com/en/buy/residential/dist-sha-tin",
	models.TuenMun:  "https://www.28hse.com/en/buy/residential/dist-tuen-mun",
}

var listingIDRegexp = regexp.MustCompile(`property-(\d+)`)

// Scraper drives a headless browser against 28Hse district search pages.
type Scraper struct {
	chromeBin  string
	navTimeout time.Duration
	logger     *utils.Logger
	retry      *utils.RetryConfig
	parser     textparse.FieldParser
}

// New creates a ready-to-use 28Hse Scraper.
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
		parser: textparse.HK,
	}
}

func (s *Scraper) Name() models.ListingSource { return models.Source28Hse }

func (s *Scraper) Covers(district models.District) bool {
	_, ok := districtURLs[district]
	return ok
}

// Scrape fetches the district search page and returns up to maxListings
// normalized sale records. Zero results and browser faults both surface as
// an empty slice with a nil error.
func (s *Scraper) Scrape(ctx context.Context, district models.District, maxListings int) ([]*models.MarketListing, error) {
	pageURL, ok := districtURLs[district]
	if !ok {
		s.logger.Debug("[28hse] No coverage for %s", district)
		return nil, nil
	}

	s.logger.Info("[28hse] Scraping %s — %s", district, pageURL)

	cards, err := s.fetchCards(ctx, pageURL)
	if err != nil {
		s.logger.Error("[28hse] Scrape of %s failed: %v — returning empty", district, err)
		return nil, nil
	}

	listings := s.parseCards(cards, district, maxListings)
	s.logger.Info("[28hse] %s: %d cards → %d listings", district, len(cards), len(listings))
	return listings, nil
}

// fetchCards owns the full browser lifecycle for one page fetch.
func (s *Scraper) fetchCards(ctx context.Context, pageURL string) ([]scraper.RawCard, error) {
	var cards []scraper.RawCard

	err := s.retry.Do("28hse-page", func() error {
		browserCtx, cancel := scraper.NewBrowserContext(ctx, s.chromeBin)
		defer cancel()

		runCtx, cancelTimeout := context.WithTimeout(browserCtx, s.navTimeout)
		defer cancelTimeout()

		var extracted []scraper.RawCard

		err := chromedp.Run(runCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(scraper.NavSleep),

			// Scroll so lazy-loaded cards render
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
			chromedp.Sleep(2*time.Second),
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

// parseCards turns raw card text into validated listings. Pure, so it is
// testable against fixed card fixtures without a browser.
func (s *Scraper) parseCards(cards []scraper.RawCard, district models.District, maxListings int) []*models.MarketListing {
	seen := utils.NewURLSet()
	now := time.Now()

	var listings []*models.MarketListing
	for _, c := range cards {
		if len(listings) >= maxListings {
			break
		}
		if c.URL == "" {
			continue
		}

		text := c.Text
		if text == "" {
			text = c.Title + " " + c.Price + " " + c.Area
		}

		// Promotional and navigation cards share the listing containers;
		// only keep cards carrying both a sale marker and an area unit.
		if !textparse.LooksLikeSaleCard(text) || !textparse.HasAreaUnit(text) {
			continue
		}

		price, ok := s.parser.PriceHKD(c.Price + " " + text)
		if !ok {
			s.logger.Debug("[28hse] Unparseable price, card dropped: %q", c.Price)
			continue
		}
		size, ok := s.parser.SizeSqft(c.Area + " " + text)
		if !ok {
			s.logger.Debug("[28hse] Unparseable size, card dropped: %q", c.Area)
			continue
		}

		id := listingID(c.URL)
		if !seen.Add(id) {
			continue
		}

		var floor *string
		if c.Floor != "" {
			f := c.Floor
			floor = &f
		}

		l := &models.MarketListing{
			ID:            id,
			Source:        models.Source28Hse,
			URL:           c.URL,
			ScrapedAt:     now,
			Address:       firstNonEmpty(c.Addr, c.Title),
			District:      district,
			Rooms:         s.parser.Rooms(text),
			SizeSqft:      size,
			Floor:         floor,
			PriceHKD:      price,
			ListingStatus: models.StatusForSale,
		}
		scraper.Finalize(l)

		if !scraper.Plausible(l, minSalePriceHKD) {
			s.logger.Debug("[28hse] Implausible listing dropped: price=%d size=%d", l.PriceHKD, l.SizeSqft)
			continue
		}

		listings = append(listings, l)
	}

	return listings
}

// listingID extracts the site's stable listing identifier from the URL, so
// repeated scrapes of the same unit produce the same id. Falls back to a
// synthetic id hashed from the URL when it carries none, so distinct URLs
// never share an id.
func listingID(url string) string {
	if m := listingIDRegexp.FindStringSubmatch(url); len(m) == 2 {
		return "28hse-" + m[1]
	}
	h := fnv.New32a()
	h.Write([]byte(url))
	return fmt.Sprintf("28hse-u%08x", h.Sum32())
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
		'.property_item',
		'[class*="detail_page_link"]',
		'div[class*="item"] a[href*="property-"]'
	];

	var cards = [];
	for (var si = 0; si < cardSelectors.length; si++) {
		cards = document.querySelectorAll(cardSelectors[si]);
		if (cards.length > 0) break;
	}

	// Fallback: walk listing links and take their card containers
	if (cards.length === 0) {
		var links = document.querySelectorAll('a[href*="property-"]');
		var seen = {};
		for (var li = 0; li < links.length; li++) {
			var href = links[li].href;
			if (!href || seen[href]) continue;
			seen[href] = true;
			var div = links[li].closest('div');
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
		var linkEl = card.querySelector('a[href*="property-"]') ||
		             (card.tagName === 'A' ? card : null);
		var url = linkEl ? linkEl.href : '';

		var priceEl = card.querySelector('[class*="price"]');
		var areaEl = card.querySelector('[class*="area"], [class*="size"]');
		var addrEl = card.querySelector('[class*="address"], [class*="location"]');
		var floorEl = card.querySelector('[class*="floor"]');
		var titleEl = card.querySelector('h3, [class*="title"]');

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

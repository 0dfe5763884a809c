package hse28

import (
	"fmt"
	"testing"

	"hk-market-scraper/models"
	"hk-market-scraper/scraper"
	"hk-market-scraper/utils"
)

func newTestScraper() *Scraper {
	return New("", 45, 2, utils.NewLogger())
}

func saleCard(id, price, area string) scraper.RawCard {
	return scraper.RawCard{
		Title: "海景兩房",
		Price: price,
		Area:  area,
		Addr:  "Laguna City Block 5, Kwun Tong",
		URL:   "https://www.28hse.com/en/buy/residential/property-" + id,
		Text:  "售 " + price + " " + area + " 2房",
	}
}

func TestParseCardsValidListing(t *testing.T) {
	s := newTestScraper()
	cards := []scraper.RawCard{saleCard("1001", "$568萬", "670呎")}

	listings := s.parseCards(cards, models.KwunTong, 10)
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}

	l := listings[0]
	if l.ID != "28hse-1001" {
		t.Errorf("id: got %q, want 28hse-1001", l.ID)
	}
	if l.PriceHKD != 5_680_000 {
		t.Errorf("price: got %d, want 5680000", l.PriceHKD)
	}
	if l.SizeSqft != 670 {
		t.Errorf("size: got %d, want 670", l.SizeSqft)
	}
	if l.PricePerSqftHKD != 5_680_000/670 {
		t.Errorf("price/sqft: got %d", l.PricePerSqftHKD)
	}
	if l.Rooms != 2 {
		t.Errorf("rooms: got %d, want 2", l.Rooms)
	}
	if l.ListingStatus != models.StatusForSale {
		t.Errorf("status: got %s", l.ListingStatus)
	}
	if l.Source != models.Source28Hse || l.District != models.KwunTong {
		t.Errorf("provenance: %+v", l)
	}
}

func TestParseCardsRejectsPromotionalCard(t *testing.T) {
	s := newTestScraper()
	cards := []scraper.RawCard{
		{
			Title: "限時優惠",
			URL:   "https://www.28hse.com/en/promo",
			Text:  "限時優惠！立即登記",
		},
		saleCard("1002", "$620萬", "540呎"),
	}

	listings := s.parseCards(cards, models.KwunTong, 10)
	if len(listings) != 1 {
		t.Fatalf("promotional card should be filtered: got %d listings", len(listings))
	}
}

func TestParseCardsRejectsUnparseableFields(t *testing.T) {
	s := newTestScraper()
	cards := []scraper.RawCard{
		// Sale marker present but price text is garbage: reject, don't zero-fill.
		{URL: "https://www.28hse.com/en/buy/residential/property-2001",
			Price: "議價", Area: "670呎", Text: "售 議價 670呎"},
		// Price fine, size missing.
		{URL: "https://www.28hse.com/en/buy/residential/property-2002",
			Price: "$568萬", Area: "", Text: "售 $568萬 sea view"},
	}

	if listings := s.parseCards(cards, models.KwunTong, 10); len(listings) != 0 {
		t.Errorf("unparseable cards must be dropped: got %d listings", len(listings))
	}
}

func TestParseCardsAppliesPlausibilityFloor(t *testing.T) {
	s := newTestScraper()
	cards := []scraper.RawCard{
		// Parses to 200,000 HKD, below the sale floor — a mangled card.
		saleCard("3001", "$20萬", "500呎"),
		// Parses but the size is below the floor.
		saleCard("3002", "$568萬", "99呎"),
	}

	if listings := s.parseCards(cards, models.KwunTong, 10); len(listings) != 0 {
		t.Errorf("implausible listings must be dropped: got %d", len(listings))
	}
}

func TestParseCardsDeduplicatesByListingID(t *testing.T) {
	s := newTestScraper()
	cards := []scraper.RawCard{
		saleCard("4001", "$568萬", "670呎"),
		saleCard("4001", "$568萬", "670呎"),
	}

	if listings := s.parseCards(cards, models.KwunTong, 10); len(listings) != 1 {
		t.Errorf("duplicate listing ids should collapse: got %d", len(listings))
	}
}

func TestParseCardsCapsAtMaxListings(t *testing.T) {
	s := newTestScraper()
	var cards []scraper.RawCard
	for i := 0; i < 10; i++ {
		cards = append(cards, saleCard(fmt.Sprintf("%d", 5000+i), "$568萬", "670呎"))
	}

	if listings := s.parseCards(cards, models.KwunTong, 3); len(listings) != 3 {
		t.Errorf("cap violated: got %d listings", len(listings))
	}
}

func TestParseCardsSyntheticIDsDistinctPerURL(t *testing.T) {
	s := newTestScraper()
	a := saleCard("", "$568萬", "670呎")
	a.URL = "https://www.28hse.com/en/buy/residential/new-estate-a"
	b := saleCard("", "$620萬", "540呎")
	b.URL = "https://www.28hse.com/en/buy/residential/new-estate-b"

	listings := s.parseCards([]scraper.RawCard{a, b}, models.KwunTong, 10)
	if len(listings) != 2 {
		t.Fatalf("distinct URLs without a site id must not collapse: got %d listings, want 2", len(listings))
	}
	if listings[0].ID == listings[1].ID {
		t.Errorf("synthetic ids collided: %q", listings[0].ID)
	}

	// The same URL still collapses, synthetic or not.
	if listings := s.parseCards([]scraper.RawCard{a, a}, models.KwunTong, 10); len(listings) != 1 {
		t.Errorf("same URL should dedup: got %d listings", len(listings))
	}
}

func TestCoverage(t *testing.T) {
	s := newTestScraper()
	for _, d := range []models.District{models.KwunTong, models.MongKok, models.ShaTin, models.TuenMun} {
		if !s.Covers(d) {
			t.Errorf("%s should be covered", d)
		}
	}
	for _, d := range []models.District{models.ShamShuiPo, models.WongTaiSin} {
		if s.Covers(d) {
			t.Errorf("%s should not be covered by the primary site", d)
		}
	}
}

package services

import (
	"fmt"
	"time"

	"hk-market-scraper/models"
)

// mockProfile is the hand-authored market shape for one district: typical
// price per sqft, typical rent per sqft, and well-known estates to attribute
// sample units to. Values track late-2024 secondary-market levels.
type mockProfile struct {
	ppsfHKD    int64
	rentPsfHKD float64
	estates    [3]string
}

var mockProfiles = map[models.District]mockProfile{
	models.KwunTong:    {13_500, 38.5, [3]string{"Laguna City", "Sceneway Garden", "Grand Central"}},
	models.MongKok:     {15_200, 44.0, [3]string{"Langham Place Residences", "Park Ivy", "Skypark"}},
	models.ShaTin:      {14_100, 37.0, [3]string{"City One Shatin", "Royal Ascot", "Garden Rivera"}},
	models.TuenMun:     {10_400, 31.5, [3]string{"Tuen Mun Town Plaza", "Waldorf Garden", "Parkland Villas"}},
	models.ShamShuiPo:  {12_600, 39.0, [3]string{"Cullinan West", "Trinity Towers", "Golden Building"}},
	models.YauTsimMong: {14_800, 42.5, [3]string{"The Victoria Towers", "Harbour Green", "Olympian City"}},
	models.WongTaiSin:  {12_100, 35.0, [3]string{"Lions Rise", "Galaxia", "Tsz Wan Shan Centre"}},
	models.KowloonCity: {13_200, 36.5, [3]string{"Kadoorie Hill", "Celestial Heights", "Sky Tower"}},
}

// Unit mixes shared by every district profile: five sale units and three
// rentals, small-to-large, matching the stock the live sites typically list.
var (
	mockSaleSizes = [5]int{362, 441, 528, 617, 705}
	mockSaleAdj   = [5]float64{0.94, 0.98, 1.00, 1.03, 1.07}
	mockRentSizes = [3]int{355, 428, 503}
)

// GenerateMockCache builds the deterministic fallback snapshot for a
// district. Pure apart from the timestamps; used only when live scraping
// yields nothing and no prior cache exists, so downstream consumers never
// observe a total absence of data.
func GenerateMockCache(district models.District) *models.DistrictCache {
	profile, ok := mockProfiles[district]
	if !ok {
		// Closed enum upstream; a sane midpoint keeps this total anyway.
		profile = mockProfile{12_500, 37.0, [3]string{"Harbour View Court", "Metro Residence", "Central Park Towers"}}
	}

	now := time.Now()
	var listings []*models.MarketListing

	for i, size := range mockSaleSizes {
		ppsf := int64(float64(profile.ppsfHKD) * mockSaleAdj[i])
		price := ppsf * int64(size)
		floor := mockFloor(i)
		listings = append(listings, &models.MarketListing{
			ID:              fmt.Sprintf("mock-%s-sale-%d", district.Slug(), i+1),
			Source:          models.SourceMock,
			URL:             "",
			ScrapedAt:       now,
			Address:         fmt.Sprintf("%s, %s", profile.estates[i%3], district),
			District:        district,
			Rooms:           roomsForSize(size),
			SizeSqft:        size,
			Floor:           &floor,
			PriceHKD:        price,
			PricePerSqftHKD: ppsf,
			ListingStatus:   models.StatusForSale,
		})
	}

	for i, size := range mockRentSizes {
		rent := int64(profile.rentPsfHKD * float64(size))
		rent = rent / 100 * 100
		r := rent
		listings = append(listings, &models.MarketListing{
			ID:             fmt.Sprintf("mock-%s-rent-%d", district.Slug(), i+1),
			Source:         models.SourceMock,
			URL:            "",
			ScrapedAt:      now,
			Address:        fmt.Sprintf("%s, %s", profile.estates[i%3], district),
			District:       district,
			Rooms:          roomsForSize(size),
			SizeSqft:       size,
			MonthlyRentHKD: &r,
			ListingStatus:  models.StatusForRent,
		})
	}

	return &models.DistrictCache{
		District:    district,
		UpdatedAt:   now,
		Listings:    listings,
		MarketStats: ComputeStats(listings),
	}
}

func roomsForSize(sqft int) int {
	switch {
	case sqft < 400:
		return 1
	case sqft < 550:
		return 2
	default:
		return 3
	}
}

func mockFloor(i int) string {
	floors := [5]string{"Low", "Middle", "Middle", "High", "High"}
	return floors[i]
}

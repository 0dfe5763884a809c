package services

import (
	"fmt"
	"strings"

	"hk-market-scraper/models"
)

// FormatForAgent renders a district snapshot as the bounded prompt fragment
// handed to the external analysis service. At most five sale and five rental
// examples are included regardless of snapshot size — the stats block carries
// the aggregate signal, the examples only ground it.
func FormatForAgent(cache *models.DistrictCache) string {
	var b strings.Builder

	source := "live scrape"
	if len(cache.Listings) > 0 && cache.Listings[0].Source == models.SourceMock {
		source = "reference dataset"
	}

	fmt.Fprintf(&b, "Market snapshot — %s (updated %s, source: %s)\n",
		cache.District, cache.UpdatedAt.Format("2006-01-02 15:04"), source)

	st := cache.MarketStats
	fmt.Fprintf(&b, "Listings analysed: %d\n", st.TotalListingsScraped)
	fmt.Fprintf(&b, "Average price: HK$%s/sqft\n", formatHKD(st.AvgPricePerSqftHKD))
	fmt.Fprintf(&b, "Median sale price: HK$%s\n", formatHKD(st.MedianPriceHKD))
	fmt.Fprintf(&b, "Sale price range: HK$%s – HK$%s\n",
		formatHKD(st.PriceRange.Min), formatHKD(st.PriceRange.Max))
	fmt.Fprintf(&b, "Estimated gross rental yield: %.1f%%\n", st.AvgGrossYieldPct)

	var sale, rent []*models.MarketListing
	for _, l := range cache.Listings {
		switch l.ListingStatus {
		case models.StatusForSale:
			if len(sale) < 5 {
				sale = append(sale, l)
			}
		case models.StatusForRent:
			if len(rent) < 5 {
				rent = append(rent, l)
			}
		}
	}

	if len(sale) > 0 {
		b.WriteString("\nExample sale listings:\n")
		for _, l := range sale {
			fmt.Fprintf(&b, "- %s: %d sqft, %d room(s), HK$%s (HK$%s/sqft)\n",
				l.Address, l.SizeSqft, l.Rooms,
				formatHKD(l.PriceHKD), formatHKD(l.PricePerSqftHKD))
		}
	}

	if len(rent) > 0 {
		b.WriteString("\nExample rental listings:\n")
		for _, l := range rent {
			rentHKD := int64(0)
			if l.MonthlyRentHKD != nil {
				rentHKD = *l.MonthlyRentHKD
			}
			fmt.Fprintf(&b, "- %s: %d sqft, %d room(s), HK$%s/month\n",
				l.Address, l.SizeSqft, l.Rooms, formatHKD(rentHKD))
		}
	}

	return b.String()
}

// formatHKD renders a whole-dollar amount with thousands separators.
func formatHKD(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

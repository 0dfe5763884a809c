package services

import (
	"sort"

	"hk-market-scraper/models"
)

// ComputeStats derives the aggregate market view from one district snapshot.
// Pure; O(n log n) from the median sort.
//
// Sale and rental records are partitioned before any averaging — mixing the
// two in one mean would be meaningless. The average yield is computed from
// the aggregate average rent against the aggregate average price rather than
// averaging per-listing yields: per-listing yield is usually unavailable
// (each record carries either a price or a rent), while the aggregate
// averages stay stable with partial data.
func ComputeStats(listings []*models.MarketListing) models.MarketStats {
	var stats models.MarketStats
	stats.TotalListingsScraped = len(listings)

	var salePrices []int64
	var ppsfSum, ppsfCount int64
	var priceSum int64
	var rentSum, rentCount int64

	for _, l := range listings {
		switch l.ListingStatus {
		case models.StatusForSale:
			if l.PriceHKD <= 0 {
				continue
			}
			salePrices = append(salePrices, l.PriceHKD)
			priceSum += l.PriceHKD
			if l.PricePerSqftHKD > 0 {
				ppsfSum += l.PricePerSqftHKD
				ppsfCount++
			}
		case models.StatusForRent:
			if l.MonthlyRentHKD != nil && *l.MonthlyRentHKD > 0 {
				rentSum += *l.MonthlyRentHKD
				rentCount++
			}
		}
	}

	if ppsfCount > 0 {
		stats.AvgPricePerSqftHKD = ppsfSum / ppsfCount
	}

	if len(salePrices) > 0 {
		sort.Slice(salePrices, func(i, j int) bool { return salePrices[i] < salePrices[j] })
		// floor(n/2) on the ascending list; no averaging on even length.
		stats.MedianPriceHKD = salePrices[len(salePrices)/2]
		stats.PriceRange = models.PriceRange{
			Min: salePrices[0],
			Max: salePrices[len(salePrices)-1],
		}
	}

	if rentCount > 0 && len(salePrices) > 0 {
		avgRent := float64(rentSum) / float64(rentCount)
		avgPrice := float64(priceSum) / float64(len(salePrices))
		yield := avgRent * 12 / avgPrice * 100
		stats.AvgGrossYieldPct = round1(yield)
	}

	return stats
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}

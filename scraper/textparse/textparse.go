// Package textparse extracts numeric listing fields from the mixed-language,
// mixed-unit text Hong Kong listing sites render, e.g. "售 $568萬",
// "HKD$5.68 Millions", "670 呎", "租 $18,000/月". Parsers are pure so
// adapters can be tested against fixed card text without a live browser.
package textparse

import (
	"regexp"
	"strconv"
	"strings"
)

// FieldParser is the per-source parsing strategy. Both live sites share the
// Hong Kong conventions below; a new source with different conventions plugs
// in its own implementation.
type FieldParser interface {
	// PriceHKD extracts a sale price in whole HKD. ok is false when no
	// plausible price is present — callers must reject the card, not
	// zero-fill it.
	PriceHKD(text string) (price int64, ok bool)
	// RentHKD extracts a monthly rent in whole HKD.
	RentHKD(text string) (rent int64, ok bool)
	// SizeSqft extracts a saleable/built area in square feet.
	SizeSqft(text string) (sqft int, ok bool)
	// Rooms extracts a bedroom count, defaulting to 1 when unparseable.
	Rooms(text string) int
}

// HK is the shared Hong Kong field parser used by the live adapters.
var HK FieldParser = hkParser{}

var (
	// "售$568萬", "$1,200萬", "568萬", "1.2億"
	cjkPriceRegexp = regexp.MustCompile(`\$?\s*([\d,]+(?:\.\d+)?)\s*(萬|億)`)
	// "HKD$5.68 Millions", "HK$ 6.2M", "$5.68 million"
	enMillionRegexp = regexp.MustCompile(`(?i)(?:hkd?\$?|\$)\s*([\d,]+(?:\.\d+)?)\s*(?:m\b|millions?)`)
	// plain "$5,680,000"
	plainPriceRegexp = regexp.MustCompile(`(?i)(?:hkd?\$?|\$)\s*([\d,]+(?:\.\d+)?)`)
	// "670呎", "670 呎", "建築670呎", "670 sq.ft.", "670 sqft", "670 ft²"
	sizeRegexp = regexp.MustCompile(`(?i)([\d,]+)\s*(?:呎|尺|sq\.?\s?ft\.?|sqft|ft²)`)
	// "租$18,000", "租金 $18,000/月", "$18,000 /month"
	rentMarkerRegexp = regexp.MustCompile(`(?i)(?:租金?|rent)\s*[:：]?\s*(?:hkd?\$?|\$)\s*([\d,]+)`)
	perMonthRegexp   = regexp.MustCompile(`(?i)(?:hkd?\$?|\$)\s*([\d,]+)\s*/?\s*(?:月|mo\b|month)`)
	// "3房", "3 房", "3睡房", "3 bedrooms", "2 beds"
	roomsRegexp = regexp.MustCompile(`(?i)(\d+)\s*(?:睡?房|bed(?:room)?s?\b)`)
)

type hkParser struct{}

func (hkParser) PriceHKD(text string) (int64, bool) {
	// CJK unit form first: 萬 = 10^4, 億 = 10^8.
	if m := cjkPriceRegexp.FindStringSubmatch(text); len(m) == 3 {
		val, err := parseNumber(m[1])
		if err == nil {
			switch m[2] {
			case "萬":
				return int64(val*10_000 + 0.5), true
			case "億":
				return int64(val*100_000_000 + 0.5), true
			}
		}
	}

	if m := enMillionRegexp.FindStringSubmatch(text); len(m) == 2 {
		val, err := parseNumber(m[1])
		if err == nil {
			return int64(val*1_000_000 + 0.5), true
		}
	}

	if m := plainPriceRegexp.FindStringSubmatch(text); len(m) == 2 {
		val, err := parseNumber(m[1])
		// A bare dollar figure this small is a rent or a parse artifact,
		// never a Hong Kong sale price.
		if err == nil && val >= 100_000 {
			return int64(val + 0.5), true
		}
	}

	return 0, false
}

func (hkParser) RentHKD(text string) (int64, bool) {
	if m := rentMarkerRegexp.FindStringSubmatch(text); len(m) == 2 {
		if val, err := parseNumber(m[1]); err == nil && val > 0 {
			return int64(val + 0.5), true
		}
	}
	if m := perMonthRegexp.FindStringSubmatch(text); len(m) == 2 {
		if val, err := parseNumber(m[1]); err == nil && val > 0 {
			return int64(val + 0.5), true
		}
	}
	return 0, false
}

func (hkParser) SizeSqft(text string) (int, bool) {
	m := sizeRegexp.FindStringSubmatch(text)
	if len(m) != 2 {
		return 0, false
	}
	val, err := parseNumber(m[1])
	if err != nil || val <= 0 {
		return 0, false
	}
	return int(val + 0.5), true
}

func (hkParser) Rooms(text string) int {
	m := roomsRegexp.FindStringSubmatch(text)
	if len(m) == 2 {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 {
			return n
		}
	}
	return 1
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

var (
	saleMarkerRegexp = regexp.MustCompile(`(?i)售|for sale|\$\s*[\d,.]+\s*(?:萬|億|m\b|millions?)`)
	rentMarkerTest   = regexp.MustCompile(`(?i)租|for rent|/\s*(?:月|mo\b|month)`)
	areaUnitRegexp   = regexp.MustCompile(`(?i)呎|尺|sq\.?\s?ft|sqft|ft²`)
)

// LooksLikeSaleCard reports whether card text carries a sale/price marker.
// Used with HasAreaUnit to separate real listing cards from promotional and
// navigation blocks that share the same DOM containers.
func LooksLikeSaleCard(text string) bool {
	return saleMarkerRegexp.MatchString(text)
}

// LooksLikeRentalCard reports whether card text carries a rental marker.
func LooksLikeRentalCard(text string) bool {
	return rentMarkerTest.MatchString(text)
}

// HasAreaUnit reports whether card text mentions an area unit.
func HasAreaUnit(text string) bool {
	return areaUnitRegexp.MatchString(text)
}

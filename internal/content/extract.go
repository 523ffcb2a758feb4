// Package content turns fetched listing pages into planner-readable text and
// partial listing records. Extraction is plain pattern matching over the page
// source: listing pages are too inconsistent for structural parsing to pay off.
package content

import (
	"regexp"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
)

var (
	mlsPattern     = regexp.MustCompile(`\bMLS\s*(?:®|™|&reg;|&#174;|&trade;)?\s*#?\s*:?\s*([A-Za-z0-9][A-Za-z0-9-]*)`)
	centrisPattern = regexp.MustCompile(`(?i)\bCentris\s*(?:®|&reg;)?\s*#\s*([0-9][0-9-]*)`)
	pricePattern   = regexp.MustCompile(`\$\s?\d[\d,.]*(?:[ \x{00A0}]\d{3}(?:[.,]\d+)?)*`)

	bedroomsField     = regexp.MustCompile(`"bedrooms"\s*:\s*"?(\d+)`)
	bedroomsText      = regexp.MustCompile(`(?i)\b(\d+)\s*(?:beds?|bedrooms?|chambres?)\b`)
	bathroomsField    = regexp.MustCompile(`"bathrooms"\s*:\s*"?(\d+(?:\.\d+)?)`)
	bathroomsText     = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:baths?|bathrooms?|salles?\s+de\s+bains?)\b`)
	digitInIdentifier = regexp.MustCompile(`\d`)
)

// ExtractListing scans one page for an MLS number, a price and room counts.
// It never fails: anything it cannot find stays empty, and a page without an
// identifier gets listing.MissingMLS. Address, type and notes are not
// attempted.
func ExtractListing(url *string, html string) listing.Fragment {
	f := listing.Fragment{
		Identifiers: []string{extractMLS(html)},
		URL:         url,
	}
	if m := pricePattern.FindString(html); m != "" {
		if p := listing.ParsePrice(m); p != nil {
			f.Price = *p
		}
	}
	if beds := firstGroup(html, bedroomsField, bedroomsText); beds != "" {
		if n := listing.CoerceCount(beds); n != nil {
			f.Beds = *n
		}
	}
	if baths := firstGroup(html, bathroomsField, bathroomsText); baths != "" {
		if n := listing.CoerceCount(baths); n != nil {
			f.Baths = *n
		}
	}
	return f
}

func extractMLS(html string) string {
	for _, m := range mlsPattern.FindAllStringSubmatch(html, -1) {
		if digitInIdentifier.MatchString(m[1]) {
			return m[1]
		}
	}
	if m := centrisPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return listing.MissingMLS
}

func firstGroup(s string, patterns ...*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// PriceTokens returns every dollar amount in html, in document order.
func PriceTokens(html string) []int64 {
	var out []int64
	for _, m := range pricePattern.FindAllString(html, -1) {
		if p := listing.ParsePrice(m); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// Identifiers returns every MLS or Centris number the extraction patterns
// find in html, in document order and without duplicates.
func Identifiers(html string) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, m := range mlsPattern.FindAllStringSubmatch(html, -1) {
		if digitInIdentifier.MatchString(m[1]) {
			add(m[1])
		}
	}
	for _, m := range centrisPattern.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	return out
}

// RoomCounts returns every bedroom and bathroom count the extraction
// patterns capture in html. A number that is not labelled as a room count
// is not reported.
func RoomCounts(html string) (beds, baths []int) {
	return allCounts(html, bedroomsField, bedroomsText), allCounts(html, bathroomsField, bathroomsText)
}

func allCounts(s string, patterns ...*regexp.Regexp) []int {
	var out []int
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(s, -1) {
			if n := listing.CoerceCount(m[1]); n != nil {
				out = append(out, *n)
			}
		}
	}
	return out
}

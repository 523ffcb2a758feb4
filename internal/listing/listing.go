// Package listing holds the canonical listing model and the normalization
// pipeline that turns loosely shaped fragments into a deduplicated batch.
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MissingMLS is the identifier used when no MLS or listing id could be found.
const MissingMLS = "MLS not found / MLS non trouvé"

// MaxListings is the largest batch the pipeline will ever return.
const MaxListings = 12

// Listing is a normalized, schema-valid listing. Nil pointers are JSON nulls.
type Listing struct {
	MLS     string  `json:"mls"`
	URL     *string `json:"url"`
	Address *string `json:"address"`
	Price   *int64  `json:"price"`
	Beds    *int    `json:"beds"`
	Baths   *int    `json:"baths"`
	Type    *string `json:"type"`
	NoteFR  *string `json:"note_fr"`
	NoteEN  *string `json:"note_en"`
}

// HasIdentifier reports whether the listing carries a real MLS number.
func (l Listing) HasIdentifier() bool {
	return l.MLS != "" && l.MLS != MissingMLS
}

// WellFormed reports whether the listing can be pointed at by a reader:
// it has either a real identifier or a url.
func (l Listing) WellFormed() bool {
	return l.HasIdentifier() || (l.URL != nil && strings.TrimSpace(*l.URL) != "")
}

// Key returns the dedup key for the listing, or "" when none applies.
func (l Listing) Key() string {
	return dedupKey(l.MLS, l.URL)
}

// Batch is the wire shape of a result.
type Batch struct {
	Listings []Listing `json:"listings"`
}

// Fragment is a partial, unvalidated listing record. Values that may arrive
// as either numbers or text (price, beds, baths) are kept as supplied and
// coerced during normalization.
type Fragment struct {
	// Identifiers are the candidate ids in alias priority order.
	Identifiers []string
	URL         *string
	Address     *string
	// Price is the value of the "price" attribute: a number or a string.
	Price any
	// PriceText holds price-like text aliases in priority order.
	PriceText []string
	Beds      any
	Baths     any
	Type      *string
	NoteFR    *string
	NoteEN    *string
}

var (
	identifierAliases = []string{"mls", "MLS", "Mls", "listingId", "listing_id", "listingID"}
	urlAliases        = []string{"url", "URL", "link"}
	priceTextAliases  = []string{"price_text", "priceText", "prix"}
	bedsAliases       = []string{"beds", "bedrooms", "chambres"}
	bathsAliases      = []string{"baths", "bathrooms", "salles_de_bain"}
	addressAliases    = []string{"address", "adresse"}
	typeAliases       = []string{"type", "property_type"}
)

// UnmarshalJSON decodes a fragment from an object, consulting the accepted
// aliases for every field in a fixed order. Unknown keys are ignored.
func (f *Fragment) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode fragment: %w", err)
	}
	*f = FragmentFromMap(raw)
	return nil
}

// FragmentFromMap builds a fragment from a decoded attribute bag.
func FragmentFromMap(raw map[string]any) Fragment {
	var f Fragment
	for _, alias := range identifierAliases {
		if id := scalarText(raw[alias]); id != "" {
			f.Identifiers = append(f.Identifiers, id)
		}
	}
	f.URL = firstText(raw, urlAliases, true)
	f.Address = firstText(raw, addressAliases, false)
	f.Type = firstText(raw, typeAliases, false)
	f.NoteFR = firstText(raw, []string{"note_fr"}, false)
	f.NoteEN = firstText(raw, []string{"note_en"}, false)

	f.Price = raw["price"]
	for _, alias := range priceTextAliases {
		if s, ok := raw[alias].(string); ok && strings.TrimSpace(s) != "" {
			f.PriceText = append(f.PriceText, s)
		}
	}
	f.Beds = firstValue(raw, bedsAliases)
	f.Baths = firstValue(raw, bathsAliases)
	return f
}

// FromListing turns a canonical listing back into a fragment.
func FromListing(l Listing) Fragment {
	f := Fragment{
		URL:     l.URL,
		Address: l.Address,
		Type:    l.Type,
		NoteFR:  l.NoteFR,
		NoteEN:  l.NoteEN,
	}
	if l.HasIdentifier() {
		f.Identifiers = []string{l.MLS}
	}
	if l.Price != nil {
		f.Price = *l.Price
	}
	if l.Beds != nil {
		f.Beds = *l.Beds
	}
	if l.Baths != nil {
		f.Baths = *l.Baths
	}
	return f
}

func dedupKey(mls string, url *string) string {
	if mls != "" && mls != MissingMLS {
		return "MLS:" + mls
	}
	if url != nil && strings.TrimSpace(*url) != "" {
		return "URL:" + *url
	}
	return ""
}

func firstText(raw map[string]any, aliases []string, skipBlank bool) *string {
	for _, alias := range aliases {
		s, ok := raw[alias].(string)
		if !ok {
			continue
		}
		if skipBlank && strings.TrimSpace(s) == "" {
			continue
		}
		return &s
	}
	return nil
}

func firstValue(raw map[string]any, aliases []string) any {
	for _, alias := range aliases {
		if v, ok := raw[alias]; ok && v != nil {
			return v
		}
	}
	return nil
}

// scalarText renders identifier-like values; numbers keep their digits.
func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", t))
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	}
	return ""
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Identifier returns the first non-blank candidate id, or MissingMLS.
func (f Fragment) Identifier() string {
	return resolveIdentifier(f)
}

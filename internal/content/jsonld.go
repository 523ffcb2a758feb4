package content

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Hints are descriptive facts a page publishes as schema.org JSON-LD. They
// are shown to the planner next to the page text and count as observed
// content when its answer is checked.
type Hints struct {
	Address string `json:"address,omitempty"`
	Type    string `json:"type,omitempty"`
}

func (h Hints) Empty() bool {
	return h.Address == "" && h.Type == ""
}

var residenceTypes = map[string]struct{}{
	"Accommodation":           {},
	"Apartment":               {},
	"House":                   {},
	"Residence":               {},
	"SingleFamilyResidence":   {},
	"ApartmentComplex":        {},
	"GatedResidenceCommunity": {},
}

// StructuredHints reads every application/ld+json block of doc and returns
// the first address and residence type found.
func StructuredHints(doc string) Hints {
	var h Hints
	if !strings.Contains(doc, "ld+json") {
		return h
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return h
	}
	d.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}
		walkJSONLD(payload, &h)
		return h.Address == "" || h.Type == ""
	})
	return h
}

func walkJSONLD(payload any, h *Hints) {
	switch t := payload.(type) {
	case map[string]any:
		if h.Type == "" {
			h.Type = residenceType(t["@type"])
		}
		if h.Address == "" {
			h.Address = postalAddress(t["address"])
		}
		for _, key := range []string{"@graph", "mainEntity", "itemOffered", "about", "object"} {
			if nested, ok := t[key]; ok {
				walkJSONLD(nested, h)
			}
		}
	case []any:
		for _, item := range t {
			walkJSONLD(item, h)
		}
	}
}

func residenceType(t any) string {
	switch v := t.(type) {
	case string:
		if _, ok := residenceTypes[v]; ok {
			return v
		}
	case []any:
		for _, item := range v {
			if s := residenceType(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func postalAddress(v any) string {
	switch a := v.(type) {
	case string:
		return collapse(a)
	case map[string]any:
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if s, ok := a[key].(string); ok {
				if s = collapse(s); s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

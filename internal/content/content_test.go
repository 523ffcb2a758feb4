package content

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
)

func TestSanitize(t *testing.T) {
	raw := `<html><head>
<SCRIPT type="text/javascript">var price = "$1";</SCRIPT>
<style>.a { color: red }</style>
</head>
<body>
  <!-- MLS# 000000 hidden -->
  <h1>Maison   à vendre</h1>
  <script>window.x = 1</script><p>MLS# 12345</p>
</body></html>`

	got := Sanitize(raw)
	for _, gone := range []string{"var price", "color: red", "000000", "window.x"} {
		if strings.Contains(got, gone) {
			t.Errorf("sanitized output still contains %q: %q", gone, got)
		}
	}
	if !strings.Contains(got, "<h1>Maison à vendre</h1>") {
		t.Errorf("expected collapsed heading, got %q", got)
	}
	if strings.Contains(got, "  ") || strings.TrimSpace(got) != got {
		t.Errorf("expected collapsed and trimmed whitespace, got %q", got)
	}
}

func TestSanitizeRemovesBlocksWithoutGaps(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`a<script>x</script>b<!--c-->d`, "abd"},
		{`<p>1</p><style>p{}</style><p>2</p>`, "<p>1</p><p>2</p>"},
		{"a <script>x</script> b", "a b"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("é", MaxSanitizedChars+500)
	got := Sanitize(long)
	if n := utf8.RuneCountInString(got); n != MaxSanitizedChars {
		t.Errorf("expected %d runes, got %d", MaxSanitizedChars, n)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a multi-byte rune")
	}
	if Sanitize("") != "" {
		t.Error("expected empty output for empty input")
	}
}

func TestExtractListingMLS(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"mls hash", `<div>MLS# 12345-AB</div>`, "12345-AB"},
		{"mls registered", `<span>MLS® 28765432</span>`, "28765432"},
		{"mls entity", `<span>MLS&reg; #E4567</span>`, "E4567"},
		{"skips words", `<p>Search MLS listings. MLS #998877</p>`, "998877"},
		{"centris fallback", `<p>Centris # 9876543</p>`, "9876543"},
		{"mls beats centris", `<p>Centris # 111 MLS# 222</p>`, "222"},
		{"none", `<p>Beautiful home</p>`, listing.MissingMLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractListing(nil, tt.html)
			if id := got.Identifier(); id != tt.want {
				t.Errorf("identifier = %q; want %q", id, tt.want)
			}
		})
	}
}

func TestExtractListingFields(t *testing.T) {
	url := "https://www.centris.ca/fr/condo~a-vendre~quebec/12345"
	html := `<html><body>
<script type="application/json">{"bedrooms": 3, "bathrooms": 2.5}</script>
<h1>Condo</h1><p>Prix: $450,000</p><p>4 beds, 1 bath</p>
</body></html>`

	f := ExtractListing(&url, html)
	if f.URL == nil || *f.URL != url {
		t.Errorf("expected url echoed, got %v", f.URL)
	}
	if f.Price != int64(450000) {
		t.Errorf("price = %v; want 450000", f.Price)
	}
	if f.Beds != 3 {
		t.Errorf("beds = %v; want 3 from structured field", f.Beds)
	}
	if f.Baths != 2 {
		t.Errorf("baths = %v; want 2 (fraction truncated)", f.Baths)
	}
	if f.Address != nil || f.Type != nil || f.NoteFR != nil || f.NoteEN != nil {
		t.Errorf("expected text fields left empty, got %+v", f)
	}
}

func TestExtractListingTextFallbacks(t *testing.T) {
	f := ExtractListing(nil, `<li>2 beds</li><li>1.5 baths</li><li>$ 389 900</li>`)
	if f.Beds != 2 || f.Baths != 1 {
		t.Errorf("beds/baths = %v/%v; want 2/1", f.Beds, f.Baths)
	}
	if f.Price != int64(389900) {
		t.Errorf("price = %v; want 389900", f.Price)
	}

	fr := ExtractListing(nil, `<li>3 chambres</li><li>2 salles de bain</li>`)
	if fr.Beds != 3 || fr.Baths != 2 {
		t.Errorf("french beds/baths = %v/%v; want 3/2", fr.Beds, fr.Baths)
	}
}

func TestExtractListingEmptyPage(t *testing.T) {
	f := ExtractListing(nil, "")
	if f.Identifier() != listing.MissingMLS {
		t.Errorf("identifier = %q; want sentinel", f.Identifier())
	}
	if f.Price != nil || f.Beds != nil || f.Baths != nil {
		t.Errorf("expected nil numeric fields, got %+v", f)
	}

	got := listing.Normalize([]listing.Fragment{f})
	if len(got) != 1 || got[0].Price != nil || got[0].Beds != nil || got[0].Baths != nil {
		t.Errorf("normalized empty page = %+v", got)
	}
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		doc  string
		want string
	}{
		{`<html><head><title>  Condo   à vendre </title></head></html>`, "Condo à vendre"},
		{`<head><meta property="og:title" content="Maison Lévis"></head><body></body>`, "Maison Lévis"},
		{`<p>no title</p>`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := PageTitle(tt.doc); got != tt.want {
			t.Errorf("PageTitle(%q) = %q; want %q", tt.doc, got, tt.want)
		}
	}
}

func TestStructuredHints(t *testing.T) {
	doc := `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList"}</script>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"RealEstateListing","mainEntity":{
    "@type":"SingleFamilyResidence",
    "address":{"@type":"PostalAddress","streetAddress":"12 Rue  des Érables","addressLocality":"Lévis","addressRegion":"QC","postalCode":"G6V 1A1"}
  }}
]}
</script></head><body></body></html>`

	h := StructuredHints(doc)
	if h.Type != "SingleFamilyResidence" {
		t.Errorf("type = %q", h.Type)
	}
	if h.Address != "12 Rue des Érables, Lévis, QC, G6V 1A1" {
		t.Errorf("address = %q", h.Address)
	}

	if got := StructuredHints(`<script type="application/ld+json">{broken</script>`); !got.Empty() {
		t.Errorf("expected no hints from invalid JSON-LD, got %+v", got)
	}
	if got := StructuredHints("<p>plain</p>"); !got.Empty() {
		t.Errorf("expected no hints, got %+v", got)
	}
}

func TestPriceTokens(t *testing.T) {
	got := PriceTokens(`<p>Prix demandé: $450,000</p><p>Taxes $3 250</p><p>no price</p>`)
	if len(got) != 2 || got[0] != 450000 || got[1] != 3250 {
		t.Errorf("PriceTokens = %v", got)
	}
	if PriceTokens("") != nil {
		t.Error("expected nil for empty page")
	}
}

func TestIdentifiersAndRoomCounts(t *testing.T) {
	page := `<p>12 rue des Érables, app. 7</p><p>MLS® 11111111</p><p>Centris # 22222222</p>
<p>MLS 11111111</p><p>3 chambres</p><p>2 salles de bain</p><span>"bathrooms": "1.5"</span><p>Construit en 1987</p>`

	ids := Identifiers(page)
	if len(ids) != 2 || ids[0] != "11111111" || ids[1] != "22222222" {
		t.Errorf("Identifiers = %v", ids)
	}

	beds, baths := RoomCounts(page)
	if len(beds) != 1 || beds[0] != 3 {
		t.Errorf("beds = %v; want [3]", beds)
	}
	if len(baths) != 2 || baths[0] != 1 || baths[1] != 2 {
		t.Errorf("baths = %v; want [1 2]", baths)
	}

	if ids := Identifiers(""); len(ids) != 0 {
		t.Errorf("empty page gave %v", ids)
	}
}

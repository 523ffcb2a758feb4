package core

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/content"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/urlutil"
	"golang.org/x/text/cases"
)

// evidence is everything a run actually observed: URLs returned by search
// or fetched, the text of fetched pages, and the identifiers, amounts and
// room counts the extraction patterns capture on them. Values the planner
// supplies are only kept when evidence backs them.
type evidence struct {
	urls   map[string]struct{}
	pages  []string
	ids    map[string]struct{}
	prices map[int64]struct{}
	beds   map[int]struct{}
	baths  map[int]struct{}
}

func newEvidence() *evidence {
	return &evidence{
		urls:   map[string]struct{}{},
		ids:    map[string]struct{}{},
		prices: map[int64]struct{}{},
		beds:   map[int]struct{}{},
		baths:  map[int]struct{}{},
	}
}

func (e *evidence) addURL(raw string) {
	if key, _, err := urlutil.Normalize(raw); err == nil {
		e.urls[key] = struct{}{}
	}
}

func (e *evidence) addPage(raw string, hints content.Hints) {
	if raw == "" {
		return
	}
	e.pages = append(e.pages, foldText(html.UnescapeString(raw)))
	if !hints.Empty() {
		e.pages = append(e.pages, foldText(hints.Address+" "+hints.Type))
	}
	for _, id := range content.Identifiers(raw) {
		e.ids[foldText(id)] = struct{}{}
	}
	for _, p := range content.PriceTokens(raw) {
		e.prices[p] = struct{}{}
	}
	beds, baths := content.RoomCounts(raw)
	for _, n := range beds {
		e.beds[n] = struct{}{}
	}
	for _, n := range baths {
		e.baths[n] = struct{}{}
	}
}

func (e *evidence) hasURL(raw string) bool {
	key, _, err := urlutil.Normalize(raw)
	if err != nil {
		return false
	}
	_, ok := e.urls[key]
	return ok
}

func (e *evidence) hasID(id string) bool {
	_, ok := e.ids[foldText(id)]
	return ok
}

// hasText reports whether s occurs on a fetched page as whole words: a match
// that continues into a neighbouring letter or digit does not count.
func (e *evidence) hasText(s string) bool {
	needle := foldText(s)
	if needle == "" {
		return false
	}
	for _, page := range e.pages {
		if containsToken(page, needle) {
			return true
		}
	}
	return false
}

func containsToken(haystack, needle string) bool {
	for from := 0; from <= len(haystack)-len(needle); {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		before, _ := utf8.DecodeLastRuneInString(haystack[:start])
		after, _ := utf8.DecodeRuneInString(haystack[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// ground nulls every field of l that the evidence does not back. Notes are
// the planner's own words and pass through.
func (e *evidence) ground(l listing.Listing) listing.Listing {
	if l.HasIdentifier() && !e.hasID(l.MLS) {
		l.MLS = listing.MissingMLS
	}
	if l.URL != nil && !e.hasURL(*l.URL) {
		l.URL = nil
	}
	if l.Address != nil && !e.hasText(*l.Address) {
		l.Address = nil
	}
	if l.Type != nil && !e.hasText(*l.Type) {
		l.Type = nil
	}
	if l.Price != nil {
		if _, ok := e.prices[*l.Price]; !ok {
			l.Price = nil
		}
	}
	if l.Beds != nil {
		if _, ok := e.beds[*l.Beds]; !ok {
			l.Beds = nil
		}
	}
	if l.Baths != nil {
		if _, ok := e.baths[*l.Baths]; !ok {
			l.Baths = nil
		}
	}
	return l
}

// foldText case-folds and collapses whitespace so comparisons ignore both.
func foldText(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

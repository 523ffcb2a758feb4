package listing

import (
	"log/slog"
	"strings"
)

// Normalizer turns fragments into a deduplicated, capped batch. It keeps no
// state between calls and is safe for concurrent use.
type Normalizer struct {
	limit  int
	logger *slog.Logger
}

// NewNormalizer builds a normalizer that returns at most limit listings.
// Limits outside (0, MaxListings] fall back to MaxListings.
func NewNormalizer(limit int, logger *slog.Logger) *Normalizer {
	if limit <= 0 || limit > MaxListings {
		limit = MaxListings
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{limit: limit, logger: logger}
}

// Normalize processes fragments in input order. The first fragment seen for
// a key wins; later duplicates are dropped, never merged. Processing stops
// once the batch is full.
func (n *Normalizer) Normalize(fragments []Fragment) []Listing {
	seen := make(map[string]struct{}, len(fragments))
	out := make([]Listing, 0, min(len(fragments), n.limit))
	dropped := 0

	for _, f := range fragments {
		if len(out) >= n.limit {
			break
		}
		mls := resolveIdentifier(f)
		key := dedupKey(mls, f.URL)
		if key != "" {
			if _, dup := seen[key]; dup {
				dropped++
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, Listing{
			MLS:     mls,
			URL:     f.URL,
			Address: f.Address,
			Price:   normalizePrice(f),
			Beds:    CoerceCount(f.Beds),
			Baths:   CoerceCount(f.Baths),
			Type:    f.Type,
			NoteFR:  f.NoteFR,
			NoteEN:  f.NoteEN,
		})
	}

	n.logger.Debug("listings normalized",
		"in", len(fragments),
		"out", len(out),
		"duplicates", dropped,
	)
	return out
}

// Normalize runs a default normalizer over fragments.
func Normalize(fragments []Fragment) []Listing {
	return NewNormalizer(MaxListings, nil).Normalize(fragments)
}

func resolveIdentifier(f Fragment) string {
	for _, id := range f.Identifiers {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return MissingMLS
}

func normalizePrice(f Fragment) *int64 {
	if isNumeric(f.Price) {
		if p := ParsePrice(f.Price); p != nil {
			return p
		}
	}
	if s, ok := f.Price.(string); ok {
		if p := ParsePrice(s); p != nil {
			return p
		}
	}
	for _, text := range f.PriceText {
		if p := ParsePrice(text); p != nil {
			return p
		}
	}
	return nil
}

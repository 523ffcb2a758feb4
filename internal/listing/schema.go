package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SchemaError lists every way a batch breaks the listing schema.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "listing schema violation: " + strings.Join(e.Problems, "; ")
}

// Validate checks a batch against the canonical schema: bounded size,
// non-empty identifiers, unique keys and non-negative numbers.
func Validate(listings []Listing) error {
	var problems []string
	if len(listings) > MaxListings {
		problems = append(problems, fmt.Sprintf("batch has %d listings, max %d", len(listings), MaxListings))
	}
	seen := make(map[string]int, len(listings))
	for i, l := range listings {
		if strings.TrimSpace(l.MLS) == "" {
			problems = append(problems, fmt.Sprintf("listings[%d].mls is empty", i))
		}
		if key := l.Key(); key != "" {
			if first, dup := seen[key]; dup {
				problems = append(problems, fmt.Sprintf("listings[%d] duplicates listings[%d] (%s)", i, first, key))
			} else {
				seen[key] = i
			}
		}
		if l.Price != nil && *l.Price < 0 {
			problems = append(problems, fmt.Sprintf("listings[%d].price is negative", i))
		}
		if l.Beds != nil && *l.Beds < 0 {
			problems = append(problems, fmt.Sprintf("listings[%d].beds is negative", i))
		}
		if l.Baths != nil && *l.Baths < 0 {
			problems = append(problems, fmt.Sprintf("listings[%d].baths is negative", i))
		}
	}
	if len(problems) > 0 {
		return &SchemaError{Problems: problems}
	}
	return nil
}

// DecodeBatch strictly parses a batch document: unknown fields and
// mistyped values are rejected, and the result must pass Validate.
func DecodeBatch(data []byte) (Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(data)))
	dec.DisallowUnknownFields()

	var b Batch
	if err := dec.Decode(&b); err != nil {
		return Batch{}, &SchemaError{Problems: []string{err.Error()}}
	}
	if dec.More() {
		return Batch{}, &SchemaError{Problems: []string{"trailing data after batch"}}
	}
	if b.Listings == nil {
		return Batch{}, &SchemaError{Problems: []string{"missing listings array"}}
	}
	if err := Validate(b.Listings); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// IsSchemaError reports whether err carries a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

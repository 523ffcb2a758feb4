package listing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice turns a loosely formatted amount into whole dollars.
//
// Text keeps only its digits: separators, currency symbols and decimal points
// are all discarded, so "$450,000" is 450000 and "450 000,00 $" is 45000000.
// Numbers are truncated toward zero. Missing, empty, digit-free, negative or
// out-of-range input yields nil.
func ParsePrice(v any) *int64 {
	if n, ok := integerValue(v); ok {
		if n < 0 {
			return nil
		}
		return &n
	}
	if n, ok := numericValue(v); ok {
		return truncInt64(n)
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	digits := digitsOnly(s)
	if digits == "" {
		return nil
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// CoerceCount turns a bedroom or bathroom count into an integer. A decimal
// part is dropped rather than folded into the digits, so "2.5" and "2,5"
// both give 2. Other non-digit characters are discarded.
func CoerceCount(v any) *int {
	if n, ok := integerValue(v); ok {
		if n < 0 || n > math.MaxInt32 {
			return nil
		}
		c := int(n)
		return &c
	}
	if n, ok := numericValue(v); ok {
		p := truncInt64(n)
		if p == nil || *p > math.MaxInt32 {
			return nil
		}
		c := int(*p)
		return &c
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if i := strings.IndexAny(s, ".,"); i >= 0 {
		s = s[:i]
	}
	digits := digitsOnly(s)
	if digits == "" {
		return nil
	}
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return nil
	}
	c := int(n)
	return &c
}

func isNumeric(v any) bool {
	_, ok := numericValue(v)
	return ok
}

// integerValue reports whole numbers exactly; float64 cannot hold every
// int64.
func integerValue(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func truncInt64(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return nil
	}
	n := int64(math.Trunc(f))
	return &n
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

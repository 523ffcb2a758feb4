package guardrail

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\b[2-9]\d{2}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)
	sinPattern   = regexp.MustCompile(`\b\d{3}[\s-]?\d{3}[\s-]?\d{3}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
)

var jailbreakPhrases = []string{
	"ignore previous instructions",
	"ignore all previous",
	"ignore your instructions",
	"disregard your instructions",
	"reveal your system prompt",
	"print your system prompt",
	"developer mode",
	"you are now dan",
	"jailbreak",
	"ignore les instructions",
	"ignorez les instructions",
	"ignore tes instructions",
	"oublie tes instructions",
	"oubliez vos instructions",
	"révèle ton prompt",
	"invite système",
	"mode développeur",
}

// LocalChecks detects personal data and prompt-injection phrasing without
// any network call.
type LocalChecks struct {
	phrases []string
}

func NewLocalChecks() *LocalChecks {
	fold := cases.Fold()
	phrases := make([]string, 0, len(jailbreakPhrases))
	for _, p := range jailbreakPhrases {
		phrases = append(phrases, fold.String(p))
	}
	return &LocalChecks{phrases: phrases}
}

func (l *LocalChecks) Name() string { return "local" }

func (l *LocalChecks) Check(_ context.Context, input string) ([]CheckResult, error) {
	return []CheckResult{l.checkPII(input), l.checkJailbreak(input)}, nil
}

func (l *LocalChecks) checkPII(input string) CheckResult {
	r := CheckResult{Name: "pii", Category: "pii"}
	var found []string
	if emailPattern.MatchString(input) {
		found = append(found, "email")
	}
	if phonePattern.MatchString(input) {
		found = append(found, "phone")
	}
	for _, m := range sinPattern.FindAllString(input, -1) {
		if luhn(m) {
			found = append(found, "sin")
			break
		}
	}
	for _, m := range cardPattern.FindAllString(input, -1) {
		if luhn(m) {
			found = append(found, "card")
			break
		}
	}
	if len(found) > 0 {
		r.Tripwire = true
		r.Severity = SeverityHigh
		r.Detail = strings.Join(found, ",")
	}
	return r
}

func (l *LocalChecks) checkJailbreak(input string) CheckResult {
	r := CheckResult{Name: "jailbreak", Category: "jailbreak"}
	// A Caser is stateful; each call gets its own.
	folded := strings.Join(strings.Fields(cases.Fold().String(input)), " ")
	for _, p := range l.phrases {
		if strings.Contains(folded, p) {
			r.Tripwire = true
			r.Severity = SeverityHigh
			r.Detail = "instruction override"
			return r
		}
	}
	return r
}

// luhn validates the check digit of s, ignoring separators.
func luhn(s string) bool {
	var digits []int
	for _, c := range s {
		if c >= '0' && c <= '9' {
			digits = append(digits, int(c-'0'))
		}
	}
	if len(digits) < 9 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

package guardrail

import (
	"golang.org/x/text/language"
)

const (
	BlockedMessageFR = "Votre demande ne peut pas être traitée. Retirez les renseignements personnels ou les instructions inhabituelles et décrivez seulement la propriété recherchée."
	BlockedMessageEN = "Your request cannot be processed. Remove personal information or unusual instructions and describe only the property you are looking for."
)

var messageMatcher = language.NewMatcher([]language.Tag{
	language.CanadianFrench,
	language.English,
})

// BlockedMessage picks the French or English block message for an
// Accept-Language header. French is the default.
func BlockedMessage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return BlockedMessageFR
	}
	_, idx, conf := messageMatcher.Match(tags...)
	if conf == language.No || idx == 0 {
		return BlockedMessageFR
	}
	return BlockedMessageEN
}

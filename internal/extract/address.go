package extract

import (
	"regexp"
	"strings"

	"order-agent/internal/domain"
)

// Address sub-patterns are matched independently; only the sub-fields found
// are returned.
var (
	streetRe = regexp.MustCompile(`(?i)\b(rua|avenida|av\.?|alameda|travessa|estrada|rodovia|r\.)\s+([^,\n\d]{2,40})`)
	numberRe = regexp.MustCompile(`(?i)\b(?:n[º°o]?\.?\s*|numero\s+|número\s+|number\s+)(\d{1,5})\b`)
	// house number right after the street name: "Rua das Flores, 123"
	afterStreetNumRe = regexp.MustCompile(`^\s*,?\s*(?:n[º°o]?\.?\s*)?(\d{1,5})\b`)
	neighborhoodRe   = regexp.MustCompile(`(?i)\b(?:bairro|neighborhood)\s+([^\n,\d]{2,40})`)
	cityRe           = regexp.MustCompile(`(?i)\bcidade(?:\s+de)?\s+([^\n,\d]{2,40})`)
	cityStateRe      = regexp.MustCompile(`(?i)\b([\p{L}][\p{L} ]{2,30})\s*/\s*([a-z]{2})\b`)
	cepRe            = regexp.MustCompile(`\b(\d{5})-?(\d{3})\b`)
)

// nonInformative values mean "you already have it" and carry no data.
var nonInformative = []string{
	"mesmo endereco", "endereco de sempre", "como da outra vez",
	"o de sempre", "ja falei", "like i said before", "same as before",
	"same address", "you have it",
}

// ExtractAddress recognizes street, number, neighborhood, city/state and
// postal-code sub-patterns independently and returns only what it found.
func ExtractAddress(raw string) domain.AddressUpdate {
	var upd domain.AddressUpdate

	if m := streetRe.FindStringSubmatchIndex(raw); m != nil {
		kind := raw[m[2]:m[3]]
		name := strings.TrimSpace(raw[m[4]:m[5]])
		name = strings.TrimRight(name, " -,")
		if name != "" {
			upd.Street = strings.TrimSpace(kind + " " + name)
		}
		if n := afterStreetNumRe.FindStringSubmatch(raw[m[1]:]); n != nil {
			upd.Number = n[1]
		}
	}
	if upd.Number == "" {
		if m := numberRe.FindStringSubmatch(raw); m != nil {
			upd.Number = m[1]
		}
	}
	if m := neighborhoodRe.FindStringSubmatch(raw); m != nil {
		upd.Neighborhood = strings.TrimSpace(strings.TrimRight(m[1], " -,"))
	}
	if m := cityRe.FindStringSubmatch(raw); m != nil {
		upd.City = strings.TrimSpace(strings.TrimRight(m[1], " -,"))
	}
	if m := cityStateRe.FindStringSubmatch(raw); m != nil {
		if upd.City == "" {
			upd.City = strings.TrimSpace(m[1])
		}
		upd.State = strings.ToUpper(m[2])
	}
	if m := cepRe.FindStringSubmatch(raw); m != nil {
		upd.PostalCode = m[1] + "-" + m[2]
	}
	return upd
}

// IsNonInformativeAddress reports values like "same as before" that should
// be ignored by the merge rather than overwrite stored sub-fields.
func IsNonInformativeAddress(norm string) bool {
	for _, p := range nonInformative {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

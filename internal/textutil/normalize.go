// Package textutil provides the locale-aware text primitives every
// extraction and resolution step builds on: normalization, tokenization,
// singularization and edit-distance near matching.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining diacritical marks after NFD decomposition.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// synonyms rewrites domain abbreviations onto their canonical token. Applied
// after case folding and diacritics stripping.
var synonyms = map[string]string{
	"refri":   "refrigerante",
	"lt":      "litro",
	"lts":     "litros",
	"kg":      "quilo",
	"un":      "unidade",
	"qto":     "quanto",
	"vc":      "voce",
	"pf":      "por favor",
	"obg":     "obrigado",
	"blz":     "beleza",
	"c/":      "com",
	"s/":      "sem",
	"p/":      "para",
	"coca":    "coca-cola",
	"hamb":    "hamburguer",
	"sanduba": "sanduiche",
}

// Normalize case-folds, strips diacritics and punctuation, collapses
// whitespace and applies the domain synonym table.
func Normalize(text string) string {
	folded := strings.ToLower(strings.TrimSpace(text))
	if stripped, _, err := transform.String(stripMarks, folded); err == nil {
		folded = stripped
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '/' || r == '-':
			// kept so "c/" and hyphenated names survive the synonym pass
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	for i, f := range fields {
		if s, ok := synonyms[f]; ok {
			fields[i] = s
		}
	}
	return strings.Join(fields, " ")
}

// Tokenize returns the ordered tokens of the normalized text.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

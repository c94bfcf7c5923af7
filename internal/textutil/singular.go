package textutil

import "strings"

// Singularize reduces a plural token to its singular via a suffix-rule
// cascade. Rules are conditioned on minimum token length so short words are
// never over-stemmed ("mais" stays "mais" is handled by callers' stopword
// tables; "gas" stays "gas" here).
func Singularize(token string) string {
	n := len(token)
	switch {
	case n >= 4 && (strings.HasSuffix(token, "oes") || strings.HasSuffix(token, "aes")):
		// pães/portões (diacritics already stripped): -ões/-ães → -ão
		return token[:n-3] + "ao"
	case n >= 5 && strings.HasSuffix(token, "is") && !strings.HasSuffix(token, "eis"):
		// funis → funil
		return token[:n-2] + "il"
	case n >= 5 && strings.HasSuffix(token, "res"):
		// sabores → sabor
		return token[:n-2]
	case n >= 5 && strings.HasSuffix(token, "es"):
		return token[:n-2]
	case n >= 5 && strings.HasSuffix(token, "s"):
		return token[:n-1]
	}
	return token
}

// SingularizeAll maps Singularize over a token slice.
func SingularizeAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = Singularize(t)
	}
	return out
}

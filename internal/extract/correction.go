package extract

import (
	"regexp"
	"strconv"
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/textutil"
)

// qtyToken matches a numeral or spelled-out quantity inside correction
// phrasing.
const qtyToken = `(\d{1,3}|um|uma|one|dois|duas|two|tres|three|quatro|four|cinco|five|seis|six|sete|seven|oito|eight|nove|nine|dez|ten)`

// Correction phrasings, tried in order against the normalized text. The
// first group is the new quantity; the optional second group references the
// cart line being corrected. The bare-quantifier forms anchor to the start
// of the message so order phrasings like "quero so 1 pizza" stay orders.
var correctionRes = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:corrige|corrigir|muda|mudar|altera|alterar|troca|trocar|change|correct)\s+(?:para|pra|to)\s+` + qtyToken + `(?:\s+(.+))?$`),
	regexp.MustCompile(`\bna verdade\s+(?:e\s+)?(?:so\s+|sao\s+)?` + qtyToken + `(?:\s+(.+))?$`),
	regexp.MustCompile(`\bactually\s+(?:only\s+|just\s+)?` + qtyToken + `(?:\s+(.+))?$`),
	regexp.MustCompile(`^(?:e\s+)?(?:so|somente|apenas|only|just)\s+` + qtyToken + `(?:\s+(.+))?$`),
	regexp.MustCompile(`^era\s+(?:so\s+)?` + qtyToken + `(?:\s+(.+))?$`),
}

// DetectCorrection runs before any fallback extraction and recognizes
// quantity-correction phrasing as a distinct signal that bypasses normal
// merge semantics. Returns nil when the message is not a correction.
func DetectCorrection(text string) *domain.Correction {
	norm := textutil.Normalize(text)
	if norm == "" {
		return nil
	}
	for _, re := range correctionRes {
		m := re.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		qty := parseQuantityToken(m[1])
		if qty < 1 {
			continue
		}
		target := ""
		if len(m) > 2 {
			target = cleanTarget(m[2])
		}
		return &domain.Correction{Kind: domain.CorrectionQuantity, NewQty: qty, Target: target}
	}
	return nil
}

func parseQuantityToken(tok string) int {
	if v, err := strconv.Atoi(tok); err == nil {
		return v
	}
	return numberWords[tok]
}

// cleanTarget strips filler and singularizes so the target can be matched
// against cart line names by substring.
func cleanTarget(s string) string {
	var out []string
	for _, t := range strings.Fields(s) {
		if fillerWords[t] {
			continue
		}
		out = append(out, textutil.Singularize(t))
	}
	return strings.Join(out, " ")
}

package extract

import (
	"regexp"
	"strconv"
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/textutil"
)

// chunkSplit separates a grouped message into item candidates on commas and
// conjunctions.
var chunkSplit = regexp.MustCompile(`(?i)\s+e\s+|\s+and\s+|,|;`)

var digitQty = regexp.MustCompile(`^(\d{1,3})x?$`)

// modeNoise is stripped from chunks before the remainder is read as an item
// name, so "1 pizza para entrega" still yields the pizza.
var modeNoise = []string{
	"para entrega", "para entregar", "para retirada", "para retirar",
	"for delivery", "for pickup", "delivery", "pickup", "entrega", "retirada",
	"entregar", "retirar", "retiro", "buscar", "pegar",
}

var paymentNoise = map[string]bool{
	"pix": true, "cartao": true, "card": true, "credito": true, "debito": true,
	"credit": true, "debit": true, "dinheiro": true, "cash": true,
	"pagar": true, "pagamento": true, "pago": true, "pay": true, "paying": true,
	"no": true, "com": true, "with": true, "in": true,
}

// extractItems finds item mentions in the raw grouped text. Quantity comes
// only from an explicit numeral or number word in the same chunk; with no
// multiplicity marker the quantity is 1, never inferred from repetition or
// context.
func extractItems(raw string) []domain.ItemUpdate {
	var items []domain.ItemUpdate
	for _, chunk := range chunkSplit.Split(raw, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || strings.HasSuffix(chunk, "?") {
			continue
		}
		if IsGreetingOnly(chunk) || IsFinish(chunk) || IsCancel(chunk) || WantsHuman(chunk) ||
			IsYes(chunk) || IsNo(chunk) {
			continue
		}
		// address and introduction fragments are handled by their own
		// extractors, never as items
		if streetRe.MatchString(chunk) || neighborhoodRe.MatchString(chunk) ||
			cepRe.MatchString(chunk) || cityRe.MatchString(chunk) ||
			cityStateRe.MatchString(chunk) || nameRe.MatchString(chunk) {
			continue
		}
		norm := textutil.Normalize(chunk)
		if IsNonInformativeAddress(norm) || containsAny(norm, []string{"endereco", "address"}) {
			continue
		}
		for _, p := range modeNoise {
			norm = strings.TrimSpace(strings.ReplaceAll(" "+norm+" ", " "+p+" ", " "))
		}
		if containsAny(norm, paymentDonePhrases) {
			continue
		}

		qty := 0
		var name []string
		for _, tok := range strings.Fields(norm) {
			// A plain numeral or number word counts as quantity only before
			// the item name starts; "pizza 4 queijos" keeps its 4. The "2x"
			// form counts anywhere.
			if qty == 0 {
				if m := digitQty.FindStringSubmatch(tok); m != nil && (len(name) == 0 || strings.HasSuffix(tok, "x")) {
					qty, _ = strconv.Atoi(m[1])
					continue
				}
				if v, ok := numberWords[tok]; ok && len(name) == 0 {
					qty = v
					continue
				}
			}
			if fillerWords[tok] || paymentNoise[tok] {
				continue
			}
			name = append(name, tok)
		}
		if len(name) == 0 {
			continue
		}
		if qty < 1 {
			qty = 1
		}
		items = append(items, domain.ItemUpdate{Name: strings.Join(name, " "), Quantity: qty})
	}
	return items
}

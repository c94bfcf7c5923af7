package extract

import (
	"regexp"
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/textutil"
)

var nameRe = regexp.MustCompile(`(?i)\b(?:meu nome e|meu nome é|me chamo|aqui e o|aqui é o|aqui e a|aqui é a|my name is)\s+([\p{L}]+(?:\s+[\p{L}]+)?)`)

var notesRe = regexp.MustCompile(`(?i)\b(sem|without)\s+([\p{L}]+)`)

var obsRe = regexp.MustCompile(`(?i)\b(?:obs|observacao|observação|note)[:\s]+(.{3,80})`)

// Extract produces the deterministic partial update for one grouped message.
// It never fails; fields it cannot find are simply absent.
func Extract(raw string) domain.PartialUpdate {
	var upd domain.PartialUpdate
	norm := textutil.Normalize(raw)
	if norm == "" {
		return upd
	}

	upd.Items = extractItems(raw)
	upd.Incremental = len(upd.Items) > 0 && HasIncrementalCue(raw)

	switch {
	case containsAny(norm, takeoutPhrases):
		upd.Mode = domain.ModeTakeout
	case containsAny(norm, deliveryPhrases):
		upd.Mode = domain.ModeDelivery
	}

	upd.Payment = extractPayment(norm)

	if m := nameRe.FindStringSubmatch(raw); m != nil {
		upd.CustomerName = strings.TrimSpace(m[1])
	}

	upd.Notes = extractNotes(raw)

	if !IsNonInformativeAddress(norm) {
		upd.Address = ExtractAddress(raw)
	}
	return upd
}

func extractPayment(norm string) string {
	padded := " " + norm + " "
	switch {
	case strings.Contains(padded, " pix "):
		return domain.PaymentPix
	case strings.Contains(padded, " cartao ") || strings.Contains(padded, " card ") ||
		strings.Contains(padded, " credito ") || strings.Contains(padded, " debito ") ||
		strings.Contains(padded, " credit ") || strings.Contains(padded, " debit ") ||
		strings.Contains(padded, " maquininha "):
		return domain.PaymentCard
	case strings.Contains(padded, " dinheiro ") || strings.Contains(padded, " cash ") ||
		strings.Contains(padded, " especie ") || strings.Contains(norm, "troco para") ||
		strings.Contains(norm, "troco pra"):
		return domain.PaymentCash
	}
	return ""
}

func extractNotes(raw string) string {
	var notes []string
	if m := obsRe.FindStringSubmatch(raw); m != nil {
		notes = append(notes, strings.TrimSpace(m[1]))
	}
	for _, m := range notesRe.FindAllStringSubmatch(raw, 3) {
		note := textutil.Normalize(m[1] + " " + m[2])
		// "sem troco" is payment talk, not a preparation note
		if strings.HasSuffix(note, "troco") {
			continue
		}
		notes = append(notes, note)
	}
	return strings.Join(notes, "; ")
}

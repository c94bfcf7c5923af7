package extract

import (
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/textutil"
)

func containsAny(norm string, phrases []string) bool {
	padded := " " + norm + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// IsYes reports a short affirmative answer.
func IsYes(text string) bool {
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}
	if !yesWords[tokens[0]] {
		return false
	}
	for _, t := range tokens[1:] {
		if !yesWords[t] && t != "por" && t != "favor" && t != "please" && t != "obrigado" && t != "obrigada" {
			return false
		}
	}
	return true
}

// IsNo reports a short negative answer.
func IsNo(text string) bool {
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}
	if !noWords[tokens[0]] {
		return false
	}
	for _, t := range tokens[1:] {
		if !noWords[t] && t != "obrigado" && t != "obrigada" && t != "valeu" && t != "thanks" {
			return false
		}
	}
	return true
}

// IsGreetingOnly reports a message that is nothing but a salutation.
func IsGreetingOnly(text string) bool {
	norm := textutil.Normalize(text)
	if norm == "" {
		return false
	}
	for _, p := range greetingPhrases {
		norm = strings.TrimSpace(strings.ReplaceAll(norm, p, " "))
	}
	if norm == "" {
		return true
	}
	for _, t := range strings.Fields(norm) {
		if !greetingWords[t] {
			return false
		}
	}
	return true
}

// IsFinish reports the "finished selecting items" signal.
func IsFinish(text string) bool {
	return containsAny(textutil.Normalize(text), finishPhrases)
}

// IsCancel reports explicit cancel phrasing.
func IsCancel(text string) bool {
	return containsAny(textutil.Normalize(text), cancelPhrases)
}

// WantsHuman reports an explicit human-attendant request.
func WantsHuman(text string) bool {
	return containsAny(textutil.Normalize(text), humanPhrases)
}

// HasFrustration reports detected frustration markers.
func HasFrustration(text string) bool {
	return containsAny(textutil.Normalize(text), frustrationPhrases)
}

// IsPaymentDone reports payment-confirmation language.
func IsPaymentDone(text string) bool {
	return containsAny(textutil.Normalize(text), paymentDonePhrases)
}

// WantsNewOrder reports new-order phrasing after a confirmed order.
func WantsNewOrder(text string) bool {
	return containsAny(textutil.Normalize(text), newOrderPhrases)
}

// IsQuestion reports an interrogative message: trailing question mark or a
// leading question word.
func IsQuestion(text string) bool {
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		return true
	}
	norm := textutil.Normalize(text)
	for _, q := range questionStarters {
		if strings.HasPrefix(norm, q) {
			return true
		}
	}
	return false
}

// HasIncrementalCue reports an explicit additive cue anywhere in the
// message. Detection is message-level and applies to all items extracted
// from it.
func HasIncrementalCue(text string) bool {
	return containsAny(textutil.Normalize(text), incrementalCues)
}

// orderVerbs signal an ordering intent even without digits.
var orderVerbs = []string{
	"quero", "queria", "gostaria", "manda", "traz", "me ve", "pedir",
	"i want", "i would like", "i ll have", "send me", "bring me",
}

// DetectIntent is the deterministic rule classifier used whenever the LLM
// capability is absent or fails. Confidence is 1.0 for a firm rule hit and
// 0.5 for unknown, so the rule path never trips the low-confidence handoff.
func DetectIntent(state domain.State, text string) domain.Classification {
	norm := textutil.Normalize(text)
	if norm == "" {
		return domain.Classification{Intent: domain.IntentUnknown, Confidence: 0.5}
	}
	switch {
	case IsCancel(text):
		return domain.Classification{Intent: domain.IntentCancel, Confidence: 1}
	case WantsHuman(text):
		return domain.Classification{Intent: domain.IntentHuman, Confidence: 1}
	case state == domain.StateWaitingPayment && IsPaymentDone(text):
		return domain.Classification{Intent: domain.IntentPaymentDone, Confidence: 1}
	case state == domain.StateConfirmed && WantsNewOrder(text):
		return domain.Classification{Intent: domain.IntentNewOrder, Confidence: 1}
	case IsFinish(text):
		return domain.Classification{Intent: domain.IntentFinish, Confidence: 1}
	case IsYes(text):
		return domain.Classification{Intent: domain.IntentConfirm, Confidence: 1}
	case IsNo(text):
		return domain.Classification{Intent: domain.IntentDeny, Confidence: 1}
	case IsGreetingOnly(text):
		return domain.Classification{Intent: domain.IntentGreeting, Confidence: 1}
	case IsQuestion(text):
		return domain.Classification{Intent: domain.IntentQuestion, RequiresExtraction: true, Confidence: 0.9}
	case containsAny(norm, orderVerbs) || strings.IndexFunc(norm, isDigit) >= 0:
		return domain.Classification{Intent: domain.IntentOrder, RequiresExtraction: true, Confidence: 0.9}
	default:
		return domain.Classification{Intent: domain.IntentUnknown, RequiresExtraction: true, Confidence: 0.5}
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

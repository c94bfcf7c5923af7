package usecase

import (
	"fmt"
	"strings"

	"order-agent/internal/domain"
	"order-agent/internal/tenant"
)

// formatBRL renders cents as Brazilian currency.
func formatBRL(cents int) string {
	return fmt.Sprintf("R$ %d,%02d", cents/100, cents%100)
}

var fieldLabels = map[domain.Field]string{
	domain.FieldItems:        "os itens do pedido",
	domain.FieldMode:         "entrega ou retirada",
	domain.FieldStreet:       "rua",
	domain.FieldNumber:       "número",
	domain.FieldNeighborhood: "bairro",
	domain.FieldCity:         "cidade",
	domain.FieldPayment:      "forma de pagamento",
	domain.FieldName:         "seu nome",
}

var validationMessages = map[string]string{
	"empty_cart":         "Seu pedido está vazio. O que você gostaria de pedir?",
	"invalid_quantity":   "Alguma quantidade ficou estranha. Pode me dizer de novo quantos de cada item?",
	"missing_mode":       "Ainda preciso saber: é para entrega ou retirada?",
	"incomplete_address": "O endereço ficou incompleto. Pode me passar rua, número, bairro e cidade?",
	"invalid_payment":    "Qual a forma de pagamento? Aceitamos pix, cartão ou dinheiro.",
	"total_mismatch":     "Tive que recalcular o total do pedido. Vou te mostrar o resumo de novo.",
}

// renderCart produces the line-by-line order summary used in the review and
// the repeat-order preview.
func renderCart(txn *domain.Transaction) string {
	var b strings.Builder
	for _, it := range txn.Items {
		b.WriteString(fmt.Sprintf("%dx %s", it.Quantity, it.Name))
		if it.UnitPriceCents > 0 {
			b.WriteString(" - " + formatBRL(it.Quantity*it.UnitPriceCents))
		}
		b.WriteString("\n")
	}
	if txn.Mode == domain.ModeDelivery {
		b.WriteString("Entrega")
		if txn.Address.Street != "" {
			b.WriteString(": " + txn.Address.Street)
			if txn.Address.Number != "" {
				b.WriteString(", " + txn.Address.Number)
			}
		}
		b.WriteString("\n")
		if txn.DeliveryFeeCents > 0 {
			b.WriteString("Taxa de entrega: " + formatBRL(txn.DeliveryFeeCents) + "\n")
		}
	} else if txn.Mode == domain.ModeTakeout {
		b.WriteString("Retirada no balcão\n")
	}
	if txn.Payment != "" {
		b.WriteString("Pagamento: " + strings.ToLower(txn.Payment) + "\n")
	}
	total := txn.ItemsTotalCents() + txn.DeliveryFeeCents
	b.WriteString("Total: " + formatBRL(total))
	return b.String()
}

// Render maps an action to the outgoing message text. Every ActionKind the
// engine can emit has a template here; the LLM only rephrases, never decides.
func Render(a domain.Action, conv *domain.Conversation, cfg tenant.Tenant) string {
	txn := &conv.Transaction
	switch a.Kind {
	case domain.ActionGreet:
		name := cfg.Name
		if name == "" {
			name = "nossa loja"
		}
		return fmt.Sprintf("Olá! Bem-vindo a %s. O que você gostaria de pedir hoje?", name)
	case domain.ActionClarify:
		return "Desculpa, não entendi. Pode me dizer de outro jeito?"
	case domain.ActionAskItems:
		if len(txn.Items) > 0 {
			return "Pode falar! O que mais você quer adicionar? Se já estiver completo, é só dizer \"só isso\"."
		}
		return "O que você gostaria de pedir?"
	case domain.ActionUpsellSuggest:
		return "Anotado! Vai querer uma bebida ou sobremesa para acompanhar?"
	case domain.ActionAskMode:
		return "É para entrega ou retirada?"
	case domain.ActionAskAddress:
		labels := make([]string, 0, len(a.Missing))
		for _, f := range a.Missing {
			labels = append(labels, fieldLabels[f])
		}
		if len(labels) == 0 {
			return "Qual o endereço de entrega?"
		}
		return "Para a entrega, me passa " + strings.Join(labels, ", ") + ", por favor."
	case domain.ActionAskPayment:
		return "Como você prefere pagar? Pix, cartão ou dinheiro?"
	case domain.ActionConfirmField:
		if a.Field == domain.FieldMode {
			return "Vi que você passou um endereço. O pedido é para entrega, certo?"
		}
		return fmt.Sprintf("Só confirmando %s, certo?", fieldLabels[a.Field])
	case domain.ActionReaskConfirmation:
		return fmt.Sprintf("Só preciso de um sim ou não: confirma %s?", fieldLabels[a.Field])
	case domain.ActionOrderReview:
		return "Aqui está o resumo do seu pedido:\n" + renderCart(txn) + "\nPosso confirmar?"
	case domain.ActionAskAdjustment:
		return "Sem problema! O que você quer mudar no pedido?"
	case domain.ActionCommitOrder:
		return fmt.Sprintf("Pedido confirmado! Número %s, total %s. Obrigado!",
			txn.OrderID, formatBRL(txn.TotalAmountCents))
	case domain.ActionCommitAwaitPayment:
		msg := fmt.Sprintf("Pedido anotado! Total %s.", formatBRL(txn.TotalAmountCents))
		if cfg.PixKey != "" {
			msg += " Chave pix: " + cfg.PixKey + "."
		}
		return msg + " Me avisa quando fizer o pagamento."
	case domain.ActionPaymentReminder:
		return "Seu pedido está aguardando o pagamento via pix. Me avisa quando pagar, tá?"
	case domain.ActionPaymentReceived:
		return fmt.Sprintf("Pagamento recebido! Pedido %s confirmado. Obrigado!", txn.OrderID)
	case domain.ActionFlowCancelled:
		return "Tudo bem, pedido cancelado. Quando quiser pedir de novo, é só chamar!"
	case domain.ActionHandoff:
		return "Vou te passar para um atendente. Um momento, por favor!"
	case domain.ActionRejectNewOrder:
		return "Seu pedido atual já foi confirmado. Para um novo pedido, aguarda ele ser finalizado, por favor."
	case domain.ActionPostConfirmSupport:
		return "Seu pedido está confirmado e em preparo. Posso ajudar com mais alguma coisa?"
	case domain.ActionOfferRepeat:
		return "Que bom te ver de novo! Quer repetir seu último pedido?\n" + a.Preview
	case domain.ActionItemNotFound:
		return "Não encontrei no cardápio: " + strings.Join(a.Names, ", ") + ". Pode conferir o nome?"
	case domain.ActionValidationFailed:
		if msg, ok := validationMessages[a.Reason]; ok {
			return msg
		}
		return "Faltou alguma coisa no pedido. Vamos conferir juntos?"
	case domain.ActionTransientFailure:
		return "Tive um problema para enviar seu pedido agora. Já tento de novo, só me confirma mais uma vez em instantes."
	case domain.ActionRetry:
		return "Pode confirmar de novo, por favor?"
	case domain.ActionStillThere:
		return "Você ainda está aí? Seu pedido está quase pronto para fechar."
	case domain.ActionAutoCancelled:
		return "Como não tive mais notícias, cancelei o pedido em aberto. Quando quiser, é só começar de novo!"
	}
	return "Desculpa, não entendi. Pode repetir?"
}

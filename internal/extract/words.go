// Package extract turns free text into deterministic partial updates. It
// never throws and never defaults a field it did not find. Wordlists cover
// the pt-BR locale plus the English variants seen in mixed traffic.
package extract

var yesWords = map[string]bool{
	"sim": true, "s": true, "yes": true, "y": true, "yep": true, "yeah": true,
	"isso": true, "ok": true, "okay": true, "claro": true, "pode": true,
	"confirmo": true, "confirmado": true, "beleza": true, "certo": true,
	"certinho": true, "perfeito": true, "aham": true, "uhum": true,
	"right": true, "sure": true, "correto": true,
}

var noWords = map[string]bool{
	"nao": true, "n": true, "no": true, "nope": true, "negativo": true,
}

var greetingWords = map[string]bool{
	"oi": true, "ola": true, "hello": true, "hi": true, "hey": true,
	"opa": true, "eai": true,
}

var greetingPhrases = []string{
	"bom dia", "boa tarde", "boa noite", "good morning", "good afternoon",
	"good evening", "tudo bem", "tudo bom",
}

var finishPhrases = []string{
	"so isso", "e so", "so esses", "so essas", "mais nada", "nada mais",
	"that s all", "thats all", "that s it", "thats it", "only that",
	"nothing else", "no more", "pode fechar", "fechar pedido", "fecha o pedido",
	"finalizar", "finaliza", "encerrar pedido",
}

var cancelPhrases = []string{
	"cancelar", "cancela", "cancel", "desistir", "desisto", "deixa pra la",
	"esquece", "nevermind", "never mind", "forget it", "nao quero mais",
	"don t want it anymore",
}

var humanPhrases = []string{
	"atendente", "falar com humano", "falar com alguem", "falar com uma pessoa",
	"human", "talk to a person", "talk to someone", "agent", "representative",
	"gerente", "manager",
}

var frustrationPhrases = []string{
	"absurdo", "ridiculo", "pessimo", "horrivel", "droga", "porcaria",
	"nao funciona", "voce nao entende", "you don t understand", "terrible",
	"awful", "useless", "inutil", "que raiva",
}

var paymentDonePhrases = []string{
	"paguei", "ja paguei", "pago", "pix feito", "fiz o pix", "mandei o pix",
	"transferi", "comprovante", "paid", "payment sent", "sent the pix",
	"just paid",
}

var newOrderPhrases = []string{
	"novo pedido", "outro pedido", "pedir de novo", "quero pedir mais",
	"new order", "another order", "order again",
}

var deliveryPhrases = []string{
	"entrega", "entregar", "entregue", "delivery", "para entrega",
	"leva ai", "traz aqui", "deliver",
}

var takeoutPhrases = []string{
	"retirada", "retirar", "vou buscar", "vou pegar", "passo ai",
	"takeout", "take out", "pickup", "pick up", "balcao", "para retirar",
	"retiro ai",
}

var questionStarters = []string{
	"qual", "quais", "quanto", "quanta", "quando", "onde", "como", "tem ",
	"voces tem", "what", "which", "how", "when", "where", "do you have",
	"is there",
}

var incrementalCues = []string{
	"mais um", "mais uma", "mais dois", "mais duas", "mais tres",
	"adiciona", "acrescenta", "coloca mais", "tambem quero", "faltou",
	"esqueci", "add", "also", "one more", "missed", "alem disso",
}

// numberWords maps spelled-out quantities onto values. Words valued ≥2 are
// multiplicity markers; "um"/"uma"/"one" are explicit but still mean one.
var numberWords = map[string]int{
	"um": 1, "uma": 1, "one": 1,
	"dois": 2, "duas": 2, "two": 2,
	"tres": 3, "three": 3,
	"quatro": 4, "four": 4,
	"cinco": 5, "five": 5,
	"seis": 6, "six": 6,
	"sete": 7, "seven": 7,
	"oito": 8, "eight": 8,
	"nove": 9, "nine": 9,
	"dez": 10, "ten": 10,
	"duzia": 12, "dozen": 12,
}

// fillerWords are stripped from item chunks before the remainder is taken
// as the item name.
var fillerWords = map[string]bool{
	"quero": true, "queria": true, "gostaria": true, "vou": true, "ve": true,
	"me": true, "de": true, "do": true, "da": true, "dos": true, "das": true,
	"o": true, "a": true, "os": true, "as": true, "por": true, "favor": true,
	"pedir": true, "peco": true, "manda": true, "traz": true, "mais": true,
	"adiciona": true, "acrescenta": true, "coloca": true, "tambem": true,
	"faltou": true, "esqueci": true, "pra": true, "para": true, "mim": true,
	"vai": true, "ser": true, "sera": true, "eu": true, "ja": true,
	"ai": true, "la": true, "aqui": true, "hoje": true, "agora": true,
	"entao": true, "em": true, "na": true, "e": true,
	"so": true, "somente": true, "apenas": true, "only": true, "just": true,
	"i": true, "want": true, "would": true, "like": true, "order": true,
	"the": true, "some": true, "of": true, "to": true, "have": true,
	"get": true, "can": true, "you": true, "send": true, "please": true,
	"add": true, "also": true, "more": true,
}

package render

import "golang.org/x/text/language"

func init() {
	set(language.BrazilianPortuguese, map[string]string{
		"notification.generic.title":                       "Notificação",
		"notification.generic.body":                        "Você tem uma nova notificação.",
		"notification.account.welcome.title":               "Boas-vindas ao AutomateHub",
		"notification.account.welcome.body":                "Sua conta está pronta.",
		"notification.project.proposal_received.title":     "Nova proposta",
		"notification.project.proposal_received.body":      "Um especialista enviou uma proposta para %s.",
		"notification.project.proposal_accepted.title":     "Proposta aceita",
		"notification.project.proposal_accepted.body":      "Sua proposta para %s foi aceita.",
		"notification.project.completed.title":             "Projeto concluído",
		"notification.project.completed.body":              "%s foi marcado como concluído.",
		"notification.project.cancelled.title":             "Projeto cancelado",
		"notification.project.cancelled.body":              "%s foi cancelado.",
		"notification.review.received.title":               "Nova avaliação",
		"notification.review.received.body":                "Um cliente avaliou seu trabalho com %s de 5.",
		"notification.conversation.message_received.title": "Nova mensagem",
		"notification.conversation.message_received.body":  "%s",
	})
}

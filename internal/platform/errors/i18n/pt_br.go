package i18n

var ptBR = map[string]string{
	"UNKNOWN":          "Algo deu errado. Tente novamente.",
	"INVALID_ARGUMENT": "A requisição é inválida.",
	"UNAUTHENTICATED":  "Entre na sua conta para continuar.",
	"FORBIDDEN":        "Você não tem acesso a este recurso.",
	"NOT_FOUND":        "O recurso solicitado não foi encontrado.",
	"CONFLICT":         "O recurso já existe.",
	"RATE_LIMITED":     "Muitas requisições. Aguarde e tente novamente.",
	"UNAVAILABLE":      "O serviço está temporariamente indisponível.",

	"ACCOUNT_EMAIL_INVALID":       "Informe um email válido.",
	"ACCOUNT_EMAIL_TAKEN":         "Já existe uma conta com este email.",
	"ACCOUNT_PASSWORD_INVALID":    "A senha deve ter entre {{.Min}} e {{.Max}} caracteres.",
	"ACCOUNT_NAME_REQUIRED":       "O nome é obrigatório.",
	"ACCOUNT_INVALID_CREDENTIALS": "Email ou senha incorretos.",
	"ACCOUNT_SUSPENDED":           "Esta conta está suspensa.",
	"AUTH_TOKEN_INVALID":          "Sua sessão é inválida. Entre novamente.",
	"AUTH_TOKEN_EXPIRED":          "Sua sessão expirou. Entre novamente.",
	"AUTH_ROLE_REQUIRED":          "Esta ação exige uma conta do tipo {{.Role}}.",
	"ACCOUNT_USER_NOT_FOUND":      "Usuário não encontrado.",

	"EXPERT_NOT_FOUND":      "Especialista não encontrado.",
	"EXPERT_FILTER_INVALID": "O filtro de busca é inválido.",

	"PROJECT_NOT_FOUND":                 "Projeto não encontrado.",
	"PROJECT_TITLE_REQUIRED":            "O título do projeto é obrigatório.",
	"PROJECT_NOT_OPEN":                  "Este projeto não aceita mais alterações.",
	"PROJECT_INVALID_STATUS_TRANSITION": "Um projeto não pode passar de {{.From}} para {{.To}}.",
	"PROJECT_NOT_OWNER":                 "Somente o dono do projeto pode fazer isso.",
	"PROPOSAL_ALREADY_PENDING":          "Você já tem uma proposta pendente para este projeto.",

	"REVIEW_RATING_INVALID": "A nota deve estar entre 1 e 5.",
	"REVIEW_ALREADY_EXISTS": "Este projeto já foi avaliado.",

	"CONVERSATION_NOT_FOUND":       "Conversa não encontrada.",
	"CONVERSATION_NOT_PARTICIPANT": "Você não faz parte desta conversa.",
	"MESSAGE_BODY_INVALID":         "As mensagens devem ter entre 1 e {{.Max}} caracteres.",

	"PAYMENT_NOT_FOUND":         "Pagamento não encontrado.",
	"PAYMENT_PROCESSOR_FAILURE": "O processador de pagamentos recusou a requisição.",
}

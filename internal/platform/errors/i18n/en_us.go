package i18n

// Codes mirror internal/platform/errors; they are plain strings here to avoid
// an import cycle.
var enUS = map[string]string{
	"UNKNOWN":          "Something went wrong. Please try again.",
	"INVALID_ARGUMENT": "The request is invalid.",
	"UNAUTHENTICATED":  "Please sign in to continue.",
	"FORBIDDEN":        "You do not have access to this resource.",
	"NOT_FOUND":        "The requested resource was not found.",
	"CONFLICT":         "The resource already exists.",
	"RATE_LIMITED":     "Too many requests. Slow down and try again.",
	"UNAVAILABLE":      "The service is temporarily unavailable.",

	"ACCOUNT_EMAIL_INVALID":       "Enter a valid email address.",
	"ACCOUNT_EMAIL_TAKEN":         "An account with this email already exists.",
	"ACCOUNT_PASSWORD_INVALID":    "Passwords must be between {{.Min}} and {{.Max}} characters.",
	"ACCOUNT_NAME_REQUIRED":       "Name is required.",
	"ACCOUNT_ROLE_INVALID":        "Choose a valid account type.",
	"ACCOUNT_STATUS_INVALID":      "Choose a valid account status.",
	"ACCOUNT_INVALID_CREDENTIALS": "Email or password is incorrect.",
	"ACCOUNT_SUSPENDED":           "This account is suspended.",
	"AUTH_TOKEN_INVALID":          "Your session is invalid. Please sign in again.",
	"AUTH_TOKEN_EXPIRED":          "Your session has expired. Please sign in again.",
	"AUTH_ROLE_REQUIRED":          "This action requires a {{.Role}} account.",
	"ACCOUNT_USER_NOT_FOUND":      "User not found.",
	"ACCOUNT_AVATAR_URL_INVALID":  "Avatar URL must be an absolute http(s) URL.",
	"ACCOUNT_PASSWORD_MISMATCH":   "Current password is incorrect.",

	"EXPERT_NOT_FOUND":             "Expert not found.",
	"EXPERT_HEADLINE_TOO_LONG":     "Headline must be at most {{.Max}} characters.",
	"EXPERT_BIO_TOO_LONG":          "Bio must be at most {{.Max}} characters.",
	"EXPERT_TOO_MANY_SKILLS":       "List at most {{.Max}} skills.",
	"EXPERT_PLATFORM_INVALID":      "Unknown automation platform {{.Platform}}.",
	"EXPERT_RATE_INVALID":          "Hourly rate must not be negative.",
	"EXPERT_AVAILABILITY_INVALID":  "Choose a valid availability.",
	"EXPERT_FILTER_INVALID":        "The search filter is invalid.",
	"EXPERT_ORDER_BY_INVALID":      "Unsupported sort order {{.OrderBy}}.",
	"EXPERT_PAGE_TOKEN_INVALID":    "The page token is invalid.",

	"PROJECT_NOT_FOUND":                 "Project not found.",
	"PROJECT_TITLE_REQUIRED":            "Project title is required.",
	"PROJECT_TITLE_TOO_LONG":            "Project title must be at most {{.Max}} characters.",
	"PROJECT_DESCRIPTION_LENGTH":        "Project description must be between {{.Min}} and {{.Max}} characters.",
	"PROJECT_BUDGET_INVALID":            "Budget must be greater than zero.",
	"PROJECT_NOT_OPEN":                  "This project is no longer accepting changes.",
	"PROJECT_INVALID_STATUS_TRANSITION": "A project cannot move from {{.From}} to {{.To}}.",
	"PROJECT_NOT_OWNER":                 "Only the project owner can do this.",
	"PROPOSAL_NOT_FOUND":                "Proposal not found.",
	"PROPOSAL_ALREADY_PENDING":          "You already have a pending proposal for this project.",
	"PROPOSAL_NOT_PENDING":              "This proposal is no longer pending.",
	"PROPOSAL_OWN_PROJECT":              "You cannot bid on your own project.",
	"PROPOSAL_BID_INVALID":              "Bid and estimate must be greater than zero.",
	"PROPOSAL_COVER_LETTER_LENGTH":      "Cover letter must be at most {{.Max}} characters.",

	"REVIEW_RATING_INVALID":   "Rating must be between 1 and 5.",
	"REVIEW_COMMENT_TOO_LONG": "Review must be at most {{.Max}} characters.",
	"REVIEW_NOT_ALLOWED":      "Only the client of a completed project can leave a review.",
	"REVIEW_ALREADY_EXISTS":   "This project has already been reviewed.",

	"CONVERSATION_NOT_FOUND":            "Conversation not found.",
	"CONVERSATION_PARTICIPANTS_INVALID": "Conversations need two different participants.",
	"CONVERSATION_NOT_PARTICIPANT":      "You are not part of this conversation.",
	"MESSAGE_BODY_INVALID":              "Messages must be between 1 and {{.Max}} characters.",
	"MESSAGE_CLIENT_ID_INVALID":         "client_message_id is required and must be at most {{.Max}} characters.",

	"PAYMENT_NOT_FOUND":           "Payment not found.",
	"PAYMENT_NOT_ALLOWED":         "You cannot pay for this project.",
	"PAYMENT_AMOUNT_INVALID":      "Payment amount must be greater than zero.",
	"PAYMENT_NOT_REFUNDABLE":      "Only succeeded payments can be refunded.",
	"PAYMENT_PROJECT_NOT_PAYABLE": "Payments open once an expert is working on the project.",
	"PAYMENT_PROCESSOR_FAILURE":   "The payment processor rejected the request.",
	"PAYMENT_WEBHOOK_INVALID":     "Webhook signature verification failed.",

	"NOTIFICATION_NOT_FOUND": "Notification not found.",
}

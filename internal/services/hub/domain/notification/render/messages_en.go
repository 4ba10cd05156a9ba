package render

import "golang.org/x/text/language"

func init() {
	set(language.AmericanEnglish, map[string]string{
		"notification.generic.title":                       defaultGenericTitle,
		"notification.generic.body":                        defaultGenericBody,
		"notification.account.welcome.title":               "Welcome to AutomateHub",
		"notification.account.welcome.body":                "Your account is ready.",
		"notification.project.proposal_received.title":     "New proposal",
		"notification.project.proposal_received.body":      "An expert sent a proposal for %s.",
		"notification.project.proposal_accepted.title":     "Proposal accepted",
		"notification.project.proposal_accepted.body":      "Your proposal for %s was accepted.",
		"notification.project.completed.title":             "Project completed",
		"notification.project.completed.body":              "%s was marked as completed.",
		"notification.project.cancelled.title":             "Project cancelled",
		"notification.project.cancelled.body":              "%s was cancelled.",
		"notification.review.received.title":               "New review",
		"notification.review.received.body":                "A client rated your work %s out of 5.",
		"notification.conversation.message_received.title": "New message",
		"notification.conversation.message_received.body":  "%s",
		"notification.payment.received.title":              "Payment started",
		"notification.payment.received.body":               "A client started a payment (%s).",
		"notification.payment.status_changed.title":        "Payment updated",
		"notification.payment.status_changed.body":         "A payment is now %s.",
	})
}

// Package errors provides structured application errors with HTTP mapping and
// localized user messages.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Generic request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeUnavailable     Code = "UNAVAILABLE"

	// Account errors
	CodeEmailInvalid         Code = "ACCOUNT_EMAIL_INVALID"
	CodeEmailTaken           Code = "ACCOUNT_EMAIL_TAKEN"
	CodePasswordInvalid      Code = "ACCOUNT_PASSWORD_INVALID"
	CodeNameRequired         Code = "ACCOUNT_NAME_REQUIRED"
	CodeRoleInvalid          Code = "ACCOUNT_ROLE_INVALID"
	CodeStatusInvalid        Code = "ACCOUNT_STATUS_INVALID"
	CodeInvalidCredentials   Code = "ACCOUNT_INVALID_CREDENTIALS"
	CodeAccountSuspended     Code = "ACCOUNT_SUSPENDED"
	CodeTokenInvalid         Code = "AUTH_TOKEN_INVALID"
	CodeTokenExpired         Code = "AUTH_TOKEN_EXPIRED"
	CodeRoleRequired         Code = "AUTH_ROLE_REQUIRED"
	CodeUserNotFound         Code = "ACCOUNT_USER_NOT_FOUND"
	CodeAvatarURLInvalid     Code = "ACCOUNT_AVATAR_URL_INVALID"
	CodePasswordUnchangeable Code = "ACCOUNT_PASSWORD_MISMATCH"

	// Expert errors
	CodeExpertNotFound         Code = "EXPERT_NOT_FOUND"
	CodeExpertHeadlineTooLong  Code = "EXPERT_HEADLINE_TOO_LONG"
	CodeExpertBioTooLong       Code = "EXPERT_BIO_TOO_LONG"
	CodeExpertTooManySkills    Code = "EXPERT_TOO_MANY_SKILLS"
	CodeExpertPlatformInvalid  Code = "EXPERT_PLATFORM_INVALID"
	CodeExpertRateInvalid      Code = "EXPERT_RATE_INVALID"
	CodeExpertAvailability     Code = "EXPERT_AVAILABILITY_INVALID"
	CodeExpertFilterInvalid    Code = "EXPERT_FILTER_INVALID"
	CodeExpertOrderByInvalid   Code = "EXPERT_ORDER_BY_INVALID"
	CodeExpertPageTokenInvalid Code = "EXPERT_PAGE_TOKEN_INVALID"

	// Project errors
	CodeProjectNotFound          Code = "PROJECT_NOT_FOUND"
	CodeProjectTitleRequired     Code = "PROJECT_TITLE_REQUIRED"
	CodeProjectTitleTooLong      Code = "PROJECT_TITLE_TOO_LONG"
	CodeProjectDescriptionLength Code = "PROJECT_DESCRIPTION_LENGTH"
	CodeProjectBudgetInvalid     Code = "PROJECT_BUDGET_INVALID"
	CodeProjectNotOpen           Code = "PROJECT_NOT_OPEN"
	CodeProjectTransition        Code = "PROJECT_INVALID_STATUS_TRANSITION"
	CodeProjectNotOwner          Code = "PROJECT_NOT_OWNER"
	CodeProposalNotFound         Code = "PROPOSAL_NOT_FOUND"
	CodeProposalExists           Code = "PROPOSAL_ALREADY_PENDING"
	CodeProposalNotPending       Code = "PROPOSAL_NOT_PENDING"
	CodeProposalOwnProject       Code = "PROPOSAL_OWN_PROJECT"
	CodeProposalBidInvalid       Code = "PROPOSAL_BID_INVALID"
	CodeProposalCoverLetter      Code = "PROPOSAL_COVER_LETTER_LENGTH"

	// Review errors
	CodeReviewRatingInvalid  Code = "REVIEW_RATING_INVALID"
	CodeReviewCommentTooLong Code = "REVIEW_COMMENT_TOO_LONG"
	CodeReviewNotAllowed     Code = "REVIEW_NOT_ALLOWED"
	CodeReviewExists         Code = "REVIEW_ALREADY_EXISTS"

	// Conversation errors
	CodeConversationNotFound     Code = "CONVERSATION_NOT_FOUND"
	CodeConversationParticipants Code = "CONVERSATION_PARTICIPANTS_INVALID"
	CodeConversationForbidden    Code = "CONVERSATION_NOT_PARTICIPANT"
	CodeMessageBodyInvalid       Code = "MESSAGE_BODY_INVALID"
	CodeMessageClientIDInvalid   Code = "MESSAGE_CLIENT_ID_INVALID"

	// Payment errors
	CodePaymentNotFound      Code = "PAYMENT_NOT_FOUND"
	CodePaymentNotAllowed    Code = "PAYMENT_NOT_ALLOWED"
	CodePaymentAmountInvalid Code = "PAYMENT_AMOUNT_INVALID"
	CodePaymentNotRefundable Code = "PAYMENT_NOT_REFUNDABLE"
	CodePaymentProjectState  Code = "PAYMENT_PROJECT_NOT_PAYABLE"
	CodeProcessorFailure     Code = "PAYMENT_PROCESSOR_FAILURE"
	CodeWebhookInvalid       Code = "PAYMENT_WEBHOOK_INVALID"

	// Notification errors
	CodeNotificationNotFound Code = "NOTIFICATION_NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument,
		CodeEmailInvalid,
		CodePasswordInvalid,
		CodeNameRequired,
		CodeRoleInvalid,
		CodeStatusInvalid,
		CodeAvatarURLInvalid,
		CodeExpertHeadlineTooLong,
		CodeExpertBioTooLong,
		CodeExpertTooManySkills,
		CodeExpertPlatformInvalid,
		CodeExpertRateInvalid,
		CodeExpertAvailability,
		CodeExpertFilterInvalid,
		CodeExpertOrderByInvalid,
		CodeExpertPageTokenInvalid,
		CodeProjectTitleRequired,
		CodeProjectTitleTooLong,
		CodeProjectDescriptionLength,
		CodeProjectBudgetInvalid,
		CodeProposalBidInvalid,
		CodeProposalCoverLetter,
		CodeReviewRatingInvalid,
		CodeReviewCommentTooLong,
		CodeConversationParticipants,
		CodeMessageBodyInvalid,
		CodeMessageClientIDInvalid,
		CodePaymentAmountInvalid,
		CodeWebhookInvalid:
		return http.StatusBadRequest

	case CodeUnauthenticated,
		CodeInvalidCredentials,
		CodeTokenInvalid,
		CodeTokenExpired:
		return http.StatusUnauthorized

	case CodeForbidden,
		CodeAccountSuspended,
		CodeRoleRequired,
		CodeProjectNotOwner,
		CodeProposalOwnProject,
		CodeConversationForbidden,
		CodePaymentNotAllowed,
		CodePasswordUnchangeable:
		return http.StatusForbidden

	case CodeNotFound,
		CodeUserNotFound,
		CodeExpertNotFound,
		CodeProjectNotFound,
		CodeProposalNotFound,
		CodeConversationNotFound,
		CodePaymentNotFound,
		CodeNotificationNotFound:
		return http.StatusNotFound

	case CodeConflict,
		CodeEmailTaken,
		CodeProposalExists,
		CodeReviewExists:
		return http.StatusConflict

	case CodeProjectNotOpen,
		CodeProjectTransition,
		CodeProposalNotPending,
		CodeReviewNotAllowed,
		CodePaymentNotRefundable,
		CodePaymentProjectState:
		return http.StatusUnprocessableEntity

	case CodeRateLimited:
		return http.StatusTooManyRequests

	case CodeProcessorFailure:
		return http.StatusBadGateway

	case CodeUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

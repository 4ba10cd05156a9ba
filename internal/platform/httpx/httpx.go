// Package httpx provides JSON helpers and middleware shared by HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/automatehub/automatehub/internal/platform/errors"
	"github.com/automatehub/automatehub/internal/platform/errors/i18n"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code and localized message of an error.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON decodes a single JSON object from r into target, rejecting
// unknown fields, trailing data, and bodies over MaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.New(apperrors.CodeInvalidArgument, "request body too large")
		case errors.Is(err, io.EOF):
			return apperrors.New(apperrors.CodeInvalidArgument, "request body is required")
		default:
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "decode request body", err)
		}
	}
	if decoder.More() {
		return apperrors.New(apperrors.CodeInvalidArgument, "request body must contain a single object")
	}
	return nil
}

// WriteError maps err to a status and localized JSON body. Server-side
// failures are logged; client errors are not.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	code := apperrors.CodeOf(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	locale := i18n.Negotiate(r.Header.Get("Accept-Language"))
	detail := ErrorDetail{
		Code:    string(code),
		Message: apperrors.LocalizedMessage(err, locale),
	}
	if appErr, ok := apperrors.As(err); ok && len(appErr.Metadata) > 0 {
		detail.Details = appErr.Metadata
	}
	WriteJSON(w, status, ErrorBody{Error: detail})
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "invalid integer query parameter", map[string]string{"Param": name})
	}
	return value, nil
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"iara/internal/approvals"
	"iara/internal/auth"
	"iara/internal/cases"
	"iara/internal/extract"
	"iara/internal/storage"
)

var (
	errBadRequest       = errors.New("bad request")
	errMethodNotAllowed = errors.New("method not allowed")
	errUnavailable      = errors.New("service not configured")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFail picks the status from the error kind.
func writeFail(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(err), err)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest),
		errors.Is(err, cases.ErrValidation),
		errors.Is(err, approvals.ErrInvalidAction),
		errors.Is(err, approvals.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, cases.ErrForbidden), errors.Is(err, approvals.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, cases.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, cases.ErrConflict), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, cases.ErrPayloadTooLarge), errors.Is(err, extract.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, cases.ErrUnsupportedMedia), errors.Is(err, extract.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, cases.ErrUpstreamProvider):
		return http.StatusBadGateway
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	if status >= 500 {
		switch {
		case status == http.StatusBadGateway:
			return apiError{Code: "IARA-AI-5020", Message: "AI analysis failed. The case was marked failed; retry with a new case or check provider settings."}
		case status == http.StatusServiceUnavailable:
			return apiError{Code: "IARA-API-5030", Message: "This feature is not configured on the server."}
		case strings.Contains(raw, "no such table"),
			strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{Code: "IARA-DB-5001", Message: "Database schema is not initialized. Run migrations and retry."}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "IARA-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		default:
			return apiError{Code: "IARA-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	}

	code := "IARA-API-4000"
	msg := "Request failed."
	switch status {
	case http.StatusBadRequest:
		code = "IARA-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case http.StatusUnauthorized:
		code = "IARA-AUTH-4011"
		msg = "Authentication required."
	case http.StatusForbidden:
		code = "IARA-AUTH-4031"
		msg = "You do not have permission to perform this action."
	case http.StatusNotFound:
		code = "IARA-API-4004"
		msg = "Requested resource was not found."
	case http.StatusMethodNotAllowed:
		code = "IARA-API-4005"
		msg = "This endpoint does not support the requested method."
	case http.StatusConflict:
		code = "IARA-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case http.StatusRequestEntityTooLarge:
		code = "IARA-API-4013"
		msg = "File is too large."
	case http.StatusUnsupportedMediaType:
		code = "IARA-API-4015"
		msg = "File type is not supported. Use PDF, DOC, DOCX, TXT, JPEG, PNG or GIF."
	}

	// validation detail is user-safe
	if err != nil && (status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge) {
		if detail := detailOf(err); detail != "" {
			msg = detail
		}
	}
	return apiError{Code: code, Message: msg}
}

// detailOf strips the sentinel prefix from a wrapped error message.
func detailOf(err error) string {
	s := err.Error()
	for _, prefix := range []string{cases.ErrValidation.Error() + ": ", errBadRequest.Error() + ": "} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimPrefix(s, prefix)
		}
	}
	if errors.Is(err, cases.ErrPayloadTooLarge) || errors.Is(err, extract.ErrTooLarge) {
		return s
	}
	return ""
}

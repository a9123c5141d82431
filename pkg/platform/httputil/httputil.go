package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "scoring/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// Envelope is the body of every method response. Exactly one of Response
// and Error is set.
type Envelope struct {
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     int    `json:"code"`
}

// WriteResponse writes a 200 envelope around payload.
func WriteResponse(w http.ResponseWriter, payload any) {
	WriteJSON(w, http.StatusOK, Envelope{Response: payload, Code: http.StatusOK})
}

// WriteError centralizes domain error translation to HTTP responses.
// Only validation failures expose their message; every other code gets its
// fixed default text so internal detail never reaches the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := DomainCodeToHTTPStatus(code)
	msg := ErrorMessage(status)

	var domainErr *dErrors.Error
	if code == dErrors.CodeValidation && errors.As(err, &domainErr) && domainErr.Message != "" {
		msg = domainErr.Message
	}
	WriteJSON(w, status, Envelope{Error: msg, Code: status})
}

// WriteStatus writes an error envelope with the default text of status.
func WriteStatus(w http.ResponseWriter, status int) {
	WriteJSON(w, status, Envelope{Error: ErrorMessage(status), Code: status})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage is the default error text for status.
func ErrorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case http.StatusRequestEntityTooLarge:
		return "Request Entity Too Large"
	case http.StatusUnsupportedMediaType:
		return "Unsupported Media Type"
	case http.StatusUnprocessableEntity:
		return "Invalid Request"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	case http.StatusGatewayTimeout:
		return "Gateway Timeout"
	default:
		return "Internal Server Error"
	}
}

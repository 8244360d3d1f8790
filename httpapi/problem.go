package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	gateAuth "github.com/MrEthical07/gateAuth"
)

const (
	typeBadRequest     = "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.1"
	typeUnauthorized   = "https://tools.ietf.org/html/rfc7235#section-3.1"
	typeNotFound       = "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.4"
	typeConflict       = "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.8"
	typeTooMany        = "https://datatracker.ietf.org/doc/html/rfc6585#section-4"
	typeInternal       = "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.1"
	typeNotImplemented = "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.2"
)

// Problem is an RFC 7807 error body.
type Problem struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, typ, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:    typ,
		Title:   title,
		Status:  status,
		Detail:  detail,
		TraceID: RequestIDFromContext(r.Context()),
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, typeBadRequest, "BadRequest", detail)
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	writeProblem(w, r, http.StatusUnauthorized, typeUnauthorized, "Unauthorized", "")
}

// writeError maps engine sentinels to status codes. Anything unrecognized
// is reported as a generic server error without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateAuth.ErrInvalidCredentials),
		errors.Is(err, gateAuth.ErrTokenNotFound),
		errors.Is(err, gateAuth.ErrTokenInactive),
		errors.Is(err, gateAuth.ErrTokenInvalid),
		errors.Is(err, gateAuth.ErrUnauthorized):
		writeProblem(w, r, http.StatusUnauthorized, typeUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, gateAuth.ErrLoginRateLimited),
		errors.Is(err, gateAuth.ErrRefreshRateLimited):
		writeProblem(w, r, http.StatusTooManyRequests, typeTooMany, "TooManyRequests", err.Error())
	case errors.Is(err, gateAuth.ErrUserInvalid),
		errors.Is(err, gateAuth.ErrRoleInvalid),
		errors.Is(err, gateAuth.ErrPasswordPolicy):
		badRequest(w, r, err.Error())
	case errors.Is(err, gateAuth.ErrUserNotFound),
		errors.Is(err, gateAuth.ErrRoleNotFound):
		writeProblem(w, r, http.StatusNotFound, typeNotFound, "NotFound", err.Error())
	case errors.Is(err, gateAuth.ErrUserExists),
		errors.Is(err, gateAuth.ErrRoleExists):
		writeProblem(w, r, http.StatusConflict, typeConflict, "Conflict", err.Error())
	case errors.Is(err, gateAuth.ErrDirectoryNeeded):
		writeProblem(w, r, http.StatusNotImplemented, typeNotImplemented, "NotImplemented", err.Error())
	default:
		writeProblem(w, r, http.StatusInternalServerError, typeInternal, "InternalServerError", "Error on server.")
	}
}

// decodeJSON reads a JSON body into dst and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		badRequest(w, r, "request body required")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		badRequest(w, r, "malformed JSON body")
		return false
	}
	return true
}

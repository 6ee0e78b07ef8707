package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Codes written by the middleware chain in addition to the resolver codes.
const (
	CodeNoToken          = "NO_TOKEN"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenRevoked     = "TOKEN_REVOKED"
	CodeAccountSuspended = "ACCOUNT_SUSPENDED"
	CodeAccountInactive  = "ACCOUNT_INACTIVE"
	CodeForbidden        = "FORBIDDEN"
	CodeTenantRequired   = "TENANT_REQUIRED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorBody is the JSON body of every middleware rejection. It never carries
// the offending input.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorBody{Message: message, Code: code}); err != nil {
		log.Debug().Err(err).Msg("middleware: write error body")
	}
}

func writeInternal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

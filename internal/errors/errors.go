// Package errors turns service, token and transport errors into HTTP responses.
//
// Every error response has the same flat body:
//
//	{"error": "<safe message>", "code": "<CODE>", "request_id": "<X-Request-Id>"}
//
// The code is stable and machine readable; clients key their behavior on it
// (TOKEN_EXPIRED is worth a refresh, TOKEN_INVALID is not). Messages never
// carry internal details.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/training-center/internal/service"
	"github.com/pribylovaa/training-center/internal/tokens"
)

// StatusClientClosedRequest is the non-standard "client went away" status.
const StatusClientClosedRequest = 499

// Transport-level sentinels.
var (
	// ErrTokenMissing: no usable Authorization: Bearer header.
	ErrTokenMissing = stderrors.New("authorization token required")
	// ErrBadRequest: the body or a parameter does not parse.
	ErrBadRequest = stderrors.New("invalid request")
	// ErrRateLimited: too many requests from this client.
	ErrRateLimited = stderrors.New("too many requests")
)

// Codes.
const (
	CodeTokenMissing       = "TOKEN_MISSING"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountDisabled    = "ACCOUNT_DISABLED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeCanceled           = "CANCELED"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// APIError is the error body.
type APIError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type rule struct {
	target error
	status int
	code   string
	msg    string // empty: use target.Error()
}

// Checked in order; the first errors.Is match wins.
var rules = []rule{
	{ErrTokenMissing, http.StatusUnauthorized, CodeTokenMissing, ""},
	{service.ErrTokenExpired, http.StatusUnauthorized, CodeTokenExpired, ""},
	{tokens.ErrTokenExpired, http.StatusUnauthorized, CodeTokenExpired, ""},
	{service.ErrTokenRevoked, http.StatusUnauthorized, CodeTokenRevoked, ""},
	{service.ErrInvalidToken, http.StatusUnauthorized, CodeTokenInvalid, ""},
	{tokens.ErrInvalidToken, http.StatusUnauthorized, CodeTokenInvalid, ""},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, ""},
	{service.ErrAccountDisabled, http.StatusForbidden, CodeAccountDisabled, ""},
	{service.ErrForbidden, http.StatusForbidden, CodeForbidden, "insufficient role"},
	{service.ErrEmailTaken, http.StatusConflict, CodeAlreadyExists, ""},
	{service.ErrInvalidEmail, http.StatusBadRequest, CodeInvalidArgument, ""},
	{service.ErrWeakPassword, http.StatusBadRequest, CodeInvalidArgument, ""},
	{service.ErrEmptyPassword, http.StatusBadRequest, CodeInvalidArgument, ""},
	{service.ErrMaxDepthExceeded, http.StatusBadRequest, CodeInvalidArgument, ""},
	{service.ErrInvalidCursor, http.StatusBadRequest, CodeInvalidArgument, ""},
	{service.ErrInvalidArgument, http.StatusBadRequest, CodeInvalidArgument, ""},
	{ErrBadRequest, http.StatusBadRequest, CodeInvalidArgument, ""},
	{service.ErrParentNotFound, http.StatusNotFound, CodeNotFound, ""},
	{service.ErrNotFound, http.StatusNotFound, CodeNotFound, ""},
	{ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited, ""},
	{service.ErrUnavailable, http.StatusServiceUnavailable, CodeUnavailable, "service unavailable"},
	{context.Canceled, StatusClientClosedRequest, CodeCanceled, "canceled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeDeadlineExceeded, "deadline exceeded"},
}

// ToHTTP maps err to a status and a body. Unknown errors, and nil, are 500 INTERNAL.
func ToHTTP(err error) (int, APIError) {
	if err != nil {
		for _, r := range rules {
			if stderrors.Is(err, r.target) {
				msg := r.msg
				if msg == "" {
					msg = r.target.Error()
				}

				return r.status, APIError{Error: msg, Code: r.code}
			}
		}
	}

	return http.StatusInternalServerError, APIError{Error: "internal error", Code: CodeInternal}
}

// WriteError writes the JSON error with the request id taken from X-Request-Id.
// 401 and 403 responses carry a Bearer challenge.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		body.RequestID = rid
	}

	switch {
	case status == http.StatusUnauthorized && body.Code != CodeInvalidCredentials:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	case status == http.StatusForbidden && body.Code == CodeForbidden:
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

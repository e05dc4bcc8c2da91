package httpapi

import (
	"net/http"

	"bloodbank/internal/domain"
	"bloodbank/internal/service"
)

// Result response envelope shared by every JSON route.
// - code: ResultSuccess = 2000, ResultError = -1, ResultSessionExpired with HTTP 401
// - error / details only on failure
type Result[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess        = 2000
	ResultError          = -1
	ResultSessionExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Success: true, Code: ResultSuccess, Result: result}
}

func Fail(message, details string) Result[any] {
	return Result[any]{Code: ResultError, Error: message, Details: details}
}

// statusFor maps the error taxonomy onto HTTP status codes. Authentication failures on
// an established session are ownership failures (403).
func statusFor(kind domain.ErrorKind, hasSession bool) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		if hasSession {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDatabaseConnection:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	_, hasSession := claimsFrom(r.Context())
	writeJSON(w, statusFor(domain.KindOf(err), hasSession), Fail(domain.MessageOf(err), ""))
}

// writeMutation renders a guarded mutation outcome; failures keep their envelope and
// only pick the status from the kind.
func writeMutation(w http.ResponseWriter, status int, res service.MutationResult) {
	if res.Success {
		writeJSON(w, status, Ok(res.Donation))
		return
	}
	writeJSON(w, statusFor(res.Kind, true), Fail(res.Error, res.Details))
}

package transport

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/alanyoungcy/questbot/internal/domain"
)

const (
	serverErrorBodyLimit = 200
	clientErrorBodyLimit = 500
)

// APIError is an unrecoverable non-2xx response. It unwraps to the domain
// sentinel matching its status class, so callers can use errors.Is.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if isServerError(e.Status) {
		return e.Body
	}
	return fmt.Sprintf("API Error %d: %s", e.Status, e.Body)
}

// Unwrap maps the status to the error taxonomy.
func (e *APIError) Unwrap() []error {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return []error{domain.ErrRateLimited}
	case isServerError(e.Status):
		return []error{domain.ErrServerUnavailable}
	case e.Status == http.StatusNotFound:
		return []error{domain.ErrClientOrAuth, domain.ErrNotFound}
	case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
		return []error{domain.ErrClientOrAuth, domain.ErrUnauthorized}
	default:
		return []error{domain.ErrClientOrAuth}
	}
}

func isServerError(status int) bool {
	return status >= http.StatusBadGateway && status <= http.StatusGatewayTimeout
}

// serverErrorMessage collapses HTML error pages so markup never reaches logs.
func serverErrorMessage(status int, body []byte) string {
	text := string(body)
	if strings.TrimSpace(text) == "" || strings.Contains(text, "<!DOCTYPE html>") {
		return fmt.Sprintf("Server error %d", status)
	}
	return truncate(text, serverErrorBodyLimit)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sashabaranov/go-openai"
)

// IsTransient returns true if the error is safe to retry: a rate-limited or
// server-side Azure OpenAI API error, a network timeout, or a connection
// failure. Malformed-response and auth errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Azure OpenAI API errors carry an HTTP status.
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return IsTransientHTTPStatus(apiErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for errors wrapped beyond recognition by HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"rate limit",
		"status 429",
		"status 502",
		"status 503",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true for statuses that indicate a transient
// server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

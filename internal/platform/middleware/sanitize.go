package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxHeaderValueSize caps any single header value.
const maxHeaderValueSize = 8192

var (
	// Logged as a warning, not blocked: all queries go through
	// parameterized pgx statements.
	sqlPattern = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)

	scriptPattern = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize returns request validation middleware with logging disabled.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger returns middleware that rejects requests carrying
// common injection payloads in the path, headers, or query string.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if reason := inspectRequest(c, logger); reason != "" {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": reason})
			}
			return next(c)
		}
	}
}

// inspectRequest returns a rejection reason, or "" when the request is
// acceptable.
func inspectRequest(c echo.Context, logger zerolog.Logger) string {
	req := c.Request()
	path := req.URL.Path
	rawPath := req.URL.RawPath
	if rawPath == "" {
		rawPath = path
	}

	for _, p := range []string{path, rawPath} {
		if hasTraversal(p) {
			return "Path traversal detected"
		}
		if hasNullByte(p) {
			return "Null byte injection detected"
		}
	}

	for name, values := range req.Header {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "Header value exceeds maximum size: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "Header injection detected: " + name
			}
		}
	}

	for key, values := range req.URL.Query() {
		if hasNullByte(key) {
			return "Null byte injection detected in query parameter"
		}
		if scriptPattern.MatchString(key) {
			return "Script injection detected in query parameter"
		}
		for _, v := range values {
			if hasNullByte(v) {
				return "Null byte injection detected in query parameter"
			}
			if scriptPattern.MatchString(v) {
				return "Script injection detected in query parameter"
			}
			if sqlPattern.MatchString(v) {
				logger.Warn().
					Str("param", key).
					Str("path", path).
					Str("remote_ip", c.RealIP()).
					Msg("potential SQL injection pattern detected in query parameter")
			}
		}
	}

	return ""
}

// hasTraversal matches ".." in raw, encoded, and double-encoded forms.
func hasTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

// SanitizeString strips null bytes and control characters (except tab,
// newline, and carriage return) and trims surrounding whitespace. Handlers
// use it for field-level cleanup of free-text input.
func SanitizeString(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\x00':
		case unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t':
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

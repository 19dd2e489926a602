package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit returns middleware capping the request body size. The limit is
// a human-readable string: "1M", "512K", "2G", or a bare byte count.
// Requests with an oversized Content-Length are rejected up front; bodies
// without a declared length are capped while being read.
func BodyLimit(limit string) echo.MiddlewareFunc {
	max := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body := c.Request().Body
			if body == nil || body == http.NoBody {
				return next(c)
			}

			if c.Request().ContentLength > max {
				return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
					"error": fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", max),
				})
			}

			c.Request().Body = &cappedBody{inner: body, remaining: max}
			return next(c)
		}
	}
}

// cappedBody fails the read once more than the allowed bytes have been
// consumed, covering requests that lie about (or omit) Content-Length.
type cappedBody struct {
	inner     io.ReadCloser
	remaining int64
	tripped   bool
}

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.tripped {
		return 0, errBodyTooLarge
	}

	// Read one byte past the budget so overflow is detectable.
	if limit := b.remaining + 1; int64(len(p)) > limit {
		p = p[:limit]
	}

	n, err := b.inner.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		b.tripped = true
		return 0, errBodyTooLarge
	}
	return n, err
}

func (b *cappedBody) Close() error {
	return b.inner.Close()
}

const defaultBodyLimit = 1 << 20 // 1 MB

// parseLimit converts "1M"-style size strings to bytes, defaulting to 1 MB
// for empty or unparseable input.
func parseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))

	var shift uint
	switch {
	case strings.HasSuffix(s, "G"), strings.HasSuffix(s, "GB"):
		shift, s = 30, strings.TrimRight(s, "GB")
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "MB"):
		shift, s = 20, strings.TrimRight(s, "MB")
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "KB"):
		shift, s = 10, strings.TrimRight(s, "KB")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n << shift
}

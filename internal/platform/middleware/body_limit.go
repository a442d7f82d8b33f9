package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DefaultJSONBodyLimit bounds non-upload request bodies (1 MB).
const DefaultJSONBodyLimit int64 = 1 << 20

// multipartOverhead is headroom for form fields and boundaries around a file.
const multipartOverhead int64 = 1 << 20

// BodyLimit caps request bodies. Multipart requests (plan attachments, lab
// reports) may carry up to uploadLimit bytes of file plus form overhead; every
// other body is held to jsonLimit.
func BodyLimit(jsonLimit, uploadLimit int64) echo.MiddlewareFunc {
	if jsonLimit <= 0 {
		jsonLimit = DefaultJSONBodyLimit
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := jsonLimit
			if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				limit = uploadLimit + multipartOverhead
			}

			// Reject early on an honest Content-Length.
			if req.ContentLength > limit {
				return payloadTooLarge(limit)
			}
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: limit, limit: limit}
			return next(c)
		}
	}
}

// limitedReadCloser fails reads once more than limit bytes have been consumed.
type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	limit     int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	if r.exceeded {
		return 0, payloadTooLarge(r.limit)
	}
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.exceeded = true
		return 0, payloadTooLarge(r.limit)
	}
	return n, err
}

func payloadTooLarge(limit int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds the maximum of %d bytes", limit))
}

package security

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/noah-isme/autoparts-api/internal/common"
)

// RouteLimit caps request bodies for paths under Prefix.
type RouteLimit struct {
	Prefix string
	Max    int64
}

// BodyLimit enforces a maximum request payload size. Routes override Max for
// matching paths; the longest matching prefix wins.
type BodyLimit struct {
	Max    int64
	Routes []RouteLimit
}

// Limit returns the body limit that applies to path.
func (b BodyLimit) Limit(path string) int64 {
	limit, matched := b.Max, -1
	for _, rl := range b.Routes {
		if len(rl.Prefix) > matched && strings.HasPrefix(path, rl.Prefix) {
			limit, matched = rl.Max, len(rl.Prefix)
		}
	}
	return limit
}

// Middleware rejects requests exceeding the applicable limit with HTTP 413.
// Accepted bodies are buffered so handlers can decode them freely.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := b.Limit(r.URL.Path)
		if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > limit && r.ContentLength != -1 {
			tooLarge(w, limit)
			return
		}

		limited := io.LimitReader(r.Body, limit+1)
		buf, err := io.ReadAll(limited)
		if err != nil && !errors.Is(err, io.EOF) {
			common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body", nil)
			return
		}
		if int64(len(buf)) > limit {
			tooLarge(w, limit)
			return
		}

		_ = r.Body.Close()

		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}

func tooLarge(w http.ResponseWriter, limit int64) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", map[string]any{"limit_bytes": limit})
}

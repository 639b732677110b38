package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/common"
)

// Entry is one recorded administrative action.
type Entry struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Method     string
	Path       string
	Status     int
	RequestID  string
	At         time.Time
}

// Sink persists audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// LogSink writes entries as structured log lines.
type LogSink struct {
	Logger zerolog.Logger
}

// Record implements Sink.
func (s LogSink) Record(_ context.Context, e Entry) error {
	s.Logger.Info().
		Str("actor_id", e.ActorID).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("resource_id", e.ResourceID).
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Str("request_id", e.RequestID).
		Time("at", e.At).
		Msg("audit")
	return nil
}

// HTTPRecorder records mutating HTTP requests after they have been handled.
type HTTPRecorder struct {
	Sink    Sink
	OnError func(error)
	Now     func() time.Time
}

// HTTPConfig customises how the audit entry is produced for a route group.
type HTTPConfig struct {
	Resource        string
	ResourceIDParam string
}

// Middleware returns a chi-compatible middleware. Safe methods pass through
// unrecorded. The action is derived from the method and the resource name,
// e.g. "promotion.update".
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Sink == nil || isSafe(req.Method) {
				next.ServeHTTP(w, req)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, req)

			entry := Entry{
				Action:    cfg.Resource + "." + verb(req),
				Resource:  cfg.Resource,
				Method:    req.Method,
				Path:      req.URL.Path,
				Status:    recorder.Status(),
				RequestID: middleware.GetReqID(req.Context()),
				At:        r.now(),
			}
			if userID, ok := common.UserID(req.Context()); ok {
				entry.ActorID = userID
			}
			if cfg.ResourceIDParam != "" {
				entry.ResourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if err := r.Sink.Record(req.Context(), entry); err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func (r HTTPRecorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func isSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func verb(req *http.Request) string {
	sub := ""
	if strings.Contains(req.URL.Path, "/items") {
		sub = "items."
	}
	switch req.Method {
	case http.MethodPost:
		if sub != "" {
			return sub + "link"
		}
		return "create"
	case http.MethodPut, http.MethodPatch:
		return sub + "update"
	case http.MethodDelete:
		if sub != "" {
			return sub + "unlink"
		}
		return "delete"
	}
	return strings.ToLower(req.Method)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

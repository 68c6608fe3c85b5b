package log

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddlewareEnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{
		Component: ComponentHTTP,
		Handler:   slog.NewJSONHandler(&buf, nil),
	})

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "handled")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req_42"`) || !strings.Contains(out, `"component":"http"`) {
		t.Fatalf("expected request id and component on the handler log line: %s", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if FromContext(req.Context()) == nil {
		t.Fatalf("expected a default logger")
	}
}

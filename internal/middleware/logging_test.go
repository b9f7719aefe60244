package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := chiMiddleware.RequestID(WithRequestLogging(zap.New(core))(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		})))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-property", nil)
	req.RemoteAddr = "203.0.113.50:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.77")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status = %v", fields["status"])
	}
	if fields["bytes"] != int64(len("short and stout")) {
		t.Errorf("bytes = %v", fields["bytes"])
	}
	if fields["path"] != "/api/analyze-property" {
		t.Errorf("path = %v", fields["path"])
	}
	if id, _ := fields["request_id"].(string); id == "" {
		t.Error("request_id missing")
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && (strings.Contains(s, "203.0.113.50") || strings.Contains(s, "198.51.100.77")) {
			t.Errorf("field %s leaks client address", k)
		}
	}
}

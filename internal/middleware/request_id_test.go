package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDGeneratesUUID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-Id")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("request id not propagated to the handler")
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", seen, err)
	}
	if rec.Header().Get("X-Request-Id") != seen {
		t.Fatal("response header does not match the request id")
	}
}

func TestRequestIDHonorsCallerHeaders(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"request id header", "X-Request-Id"},
		{"correlation id header", "X-Correlation-Id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			r := httptest.NewRequest("GET", "/", nil)
			r.Header.Set(tc.header, "upstream-7")

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			if got := rec.Header().Get("X-Request-Id"); got != "upstream-7" {
				t.Fatalf("expected the supplied id to be kept, got %q", got)
			}
		})
	}
}

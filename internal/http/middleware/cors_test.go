package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		method      string
		preflight   bool
		wantAllow   string
		wantCode    int
		wantHandler bool
	}{
		{"listed origin", []string{"https://ui.example.com"}, "https://ui.example.com", http.MethodGet, false, "https://ui.example.com", http.StatusOK, true},
		{"unknown origin", []string{"https://ui.example.com"}, "https://evil.example.com", http.MethodGet, false, "", http.StatusOK, true},
		{"wildcard", []string{" * "}, "https://any.example.com", http.MethodGet, false, "https://any.example.com", http.StatusOK, true},
		{"no origin header", []string{"*"}, "", http.MethodGet, false, "", http.StatusOK, true},
		{"preflight", []string{"https://ui.example.com"}, "https://ui.example.com", http.MethodOptions, true, "https://ui.example.com", http.StatusNoContent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(tt.method, "/v1/sessions/abc", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()
			CORS(tt.origins)(okHandler(&called)).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if called != tt.wantHandler {
				t.Fatalf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

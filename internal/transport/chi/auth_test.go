package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		method string
		path   string
		header string
		want   int
	}{
		{"no keys configured", nil, http.MethodPost, "/analyze", "", http.StatusOK},
		{"only empty keys configured", []string{"", ""}, http.MethodPost, "/analyze", "", http.StatusOK},
		{"missing header", []string{"secret"}, http.MethodPost, "/analyze", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, http.MethodPost, "/analyze", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, http.MethodPost, "/analyze", "Bearer wrong-key", http.StatusUnauthorized},
		{"key prefix", []string{"secret"}, http.MethodPost, "/analyze", "Bearer secre", http.StatusUnauthorized},
		{"valid key", []string{"secret"}, http.MethodPost, "/analyze", "Bearer secret", http.StatusOK},
		{"lowercase scheme", []string{"secret"}, http.MethodPost, "/analyze", "bearer secret", http.StatusOK},
		{"second of two keys", []string{"key1", "key2"}, http.MethodGet, "/usage", "Bearer key2", http.StatusOK},
		{"empty token with empty key configured", []string{"", "secret"}, http.MethodPost, "/analyze", "Bearer ", http.StatusUnauthorized},
		{"health exempt", []string{"secret"}, http.MethodGet, "/health", "", http.StatusOK},
		{"metrics exempt", []string{"secret"}, http.MethodGet, "/metrics", "", http.StatusOK},
		{"preflight", []string{"secret"}, http.MethodOptions, "/analyze", "", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := BearerAuthMiddleware(tc.keys)(okHandler())

			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestBearerAuthMiddleware_RejectionBody(t *testing.T) {
	h := BearerAuthMiddleware([]string{"secret"})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/analyze", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate header")
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != CodeUnauthorized {
		t.Errorf("code = %q, want %q", resp.Code, CodeUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
	}
	for _, tc := range tests {
		token, ok := bearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

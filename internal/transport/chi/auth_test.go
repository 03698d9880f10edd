package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		keys       []string
		path       string
		authHeader string
		wantStatus int
	}{
		{"no keys configured passes through", nil, "/v1/search", "", http.StatusOK},
		{"valid token", []string{"key1", "key2"}, "/v1/search", "Bearer key2", http.StatusOK},
		{"missing header", []string{"key1"}, "/v1/search", "", http.StatusUnauthorized},
		{"wrong scheme", []string{"key1"}, "/v1/search", "Basic key1", http.StatusUnauthorized},
		{"invalid token", []string{"key1"}, "/v1/search", "Bearer nope", http.StatusUnauthorized},
		{"healthz exempt", []string{"key1"}, "/healthz", "", http.StatusOK},
		{"metrics exempt", []string{"key1"}, "/metrics", "", http.StatusOK},
		{"empty keys ignored", []string{""}, "/v1/search", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(next)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

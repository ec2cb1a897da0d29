package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)

	tests := []struct {
		name   string
		method string
		target string
		header string
		want   int
	}{
		{"public healthz", "GET", "/healthz", "", http.StatusNoContent},
		{"public metrics", "GET", "/metrics", "", http.StatusNoContent},
		{"missing token", "POST", "/api/v1/eclipse/merge", "", http.StatusUnauthorized},
		{"wrong token", "POST", "/api/v1/eclipse/merge", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "POST", "/api/v1/eclipse/merge", "Basic s3cret", http.StatusUnauthorized},
		{"valid token", "POST", "/api/v1/eclipse/merge", "Bearer s3cret", http.StatusNoContent},
		{"stream query token", "GET", "/api/v1/stop/stream/25544?access_token=s3cret", "", http.StatusNoContent},
		{"query token only for streams", "POST", "/api/v1/stop/search?access_token=s3cret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/eclipse/merge", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

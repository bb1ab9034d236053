package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminKeyMatches(t *testing.T) {
	tests := []struct {
		name   string
		header string
		key    string
		want   bool
	}{
		{"一致", "secret", "secret", true},
		{"不一致", "wrong", "secret", false},
		{"ヘッダーなし", "", "secret", false},
		{"設定値が空", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			if got := AdminKeyMatches(req, tt.key); got != tt.want {
				t.Errorf("AdminKeyMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdminAuthMiddleware_RejectsMissingKey(t *testing.T) {
	called := false
	handler := NewAdminAuthMiddleware("secret", discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/sources", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if called {
		t.Error("認証失敗時に後続ハンドラーを呼び出してはならない")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", body.Code)
	}
}

func TestAdminAuthMiddleware_PassesWithKey(t *testing.T) {
	handler := NewAdminAuthMiddleware("secret", discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sources", nil)
	req.Header.Set("x-api-key", "secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/execdash/internal/model"
)

// AdminKeyHeader は管理APIキーを渡すリクエストヘッダー名。
const AdminKeyHeader = "x-api-key"

// AdminKeyMatches はリクエストの管理APIキーが設定値と完全一致するかを返す。
// 設定値が空の場合は常にfalseを返す。
func AdminKeyMatches(r *http.Request, apiKey string) bool {
	if apiKey == "" {
		return false
	}
	got := r.Header.Get(AdminKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) == 1
}

// NewAdminAuthMiddleware は管理APIキーを検証するミドルウェアを返す。
// キーが一致しない場合は401を返す。
func NewAdminAuthMiddleware(apiKey string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !AdminKeyMatches(r, apiKey) {
				logger.Warn("管理APIキーの検証に失敗しました",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

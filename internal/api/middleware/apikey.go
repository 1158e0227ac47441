// apikey.go — программный путь допуска: API-ключ в заголовке + allow-list.
package middleware

import (
	"context"
	"net/http"

	"github.com/bigkaa/passlink/internal/domain/model"
)

const contextKeyCredential contextKey = "api_credential"

// CredentialAuthenticator проверяет ключ и адрес источника
// (реализуется service.AccessGate).
type CredentialAuthenticator interface {
	AuthenticateAPIKey(ctx context.Context, rawKey, sourceIP string) (*model.APICredential, error)
}

// ErrorWriter пишет ответ об ошибке допуска в формате конкретного endpoint.
type ErrorWriter func(w http.ResponseWriter, err error)

// APIKeyAuth читает ключ из header, проверяет его через auth и кладёт
// APICredential в контекст. Ошибки отдаются через writeErr.
func APIKeyAuth(header string, auth CredentialAuthenticator, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := auth.AuthenticateAPIKey(r.Context(), r.Header.Get(header), ClientIP(r))
			if err != nil {
				writeErr(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyCredential, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CredentialFromContext возвращает APICredential или nil.
func CredentialFromContext(ctx context.Context) *model.APICredential {
	cred, _ := ctx.Value(contextKeyCredential).(*model.APICredential)
	return cred
}

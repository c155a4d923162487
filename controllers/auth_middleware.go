package controllers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// Principal é o resultado da autenticação: o escopo de tenant das operações.
type Principal struct {
	TenantID string
}

// AuthProvider é o colaborador externo de autenticação. O core só precisa do
// tenant do token; emissão/CRUD de credenciais fica fora deste serviço.
type AuthProvider interface {
	Verify(credential string) (Principal, error)
}

var ErrInvalidCredential = errors.New("invalid credential")

// StaticAuthProvider mapeia token -> tenant. Carregado da env AUTH_TOKENS no
// formato "token:tenant,token2:tenant2" (dev) ou montado direto nos testes.
type StaticAuthProvider map[string]string

func (s StaticAuthProvider) Verify(credential string) (Principal, error) {
	tenant, ok := s[credential]
	if !ok {
		return Principal{}, ErrInvalidCredential
	}
	return Principal{TenantID: tenant}, nil
}

func StaticAuthProviderFromEnv() StaticAuthProvider {
	out := StaticAuthProvider{}
	for _, pair := range strings.Split(os.Getenv("AUTH_TOKENS"), ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

const ctxPrincipalKey = "auth_principal"

// AuthRequired valida o Bearer token e guarda o principal no contexto.
func AuthRequired(provider AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			RespondError(c, "missing bearer token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		token := strings.TrimSpace(h[len("Bearer "):])

		principal, err := provider.Verify(token)
		if err != nil {
			RespondError(c, "invalid or expired credential", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ctxPrincipalKey, principal)
		c.Next()
	}
}

// GetPrincipal devolve o principal carregado pelo AuthRequired.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

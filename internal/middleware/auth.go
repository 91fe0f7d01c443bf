package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/auditctx"
	iauth "github.com/charlesng35/gatepass/internal/auth"
	"github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxOperatorKey = "operator"

	// AuthCookieName carries the operator token for browser clients.
	AuthCookieName = "gatepass_token"
)

// TokenAuthenticator validates operator access tokens.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*iauth.Claims, error)
}

// Auth rejects requests without a valid operator token.
func Auth(authn TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		attachOperator(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the operator when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(authn TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ExtractToken(c); token != "" {
			if claims, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				attachOperator(c, claims)
			}
		}
		c.Next()
	}
}

// ExtractToken reads a bearer token from the Authorization header, falling back to the auth cookie.
func ExtractToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func attachOperator(c *gin.Context, claims *iauth.Claims) {
	c.Set(CtxClaimsKey, claims)
	c.Set(CtxOperatorKey, claims.Operator)

	ctx := auditctx.WithOperator(c.Request.Context(), auditctx.Operator{
		Username:  claims.Operator,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.Request = c.Request.WithContext(ctx)
}

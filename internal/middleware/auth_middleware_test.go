package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatepass/internal/auditctx"
	iauth "github.com/charlesng35/gatepass/internal/auth"
)

func newTestOperators(t *testing.T) (*iauth.OperatorService, string) {
	t.Helper()

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	operators, err := iauth.NewOperatorService(iauth.OperatorConfig{Username: "gate", Password: "pw"}, jwtSvc, nil)
	require.NoError(t, err)

	issued, err := operators.Login("gate", "pw")
	require.NoError(t, err)
	return operators, issued.Token
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	operators, token := newTestOperators(t)

	r := gin.New()
	r.GET("/secure", Auth(operators), func(c *gin.Context) {
		operator, _ := auditctx.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"operator": c.GetString(CtxOperatorKey),
			"ctx":      operator.Username,
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "gate", payload["operator"])
	require.Equal(t, "gate", payload["ctx"])
}

func TestAuthMiddlewareAcceptsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	operators, token := newTestOperators(t)

	r := gin.New()
	r.GET("/secure", Auth(operators), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxOperatorKey))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token})
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gate", w.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	operators, token := newTestOperators(t)

	r := gin.New()
	r.GET("/status", OptionalAuth(operators), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxOperatorKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, "gate", w.Body.String())
}

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/gatepass/internal/auth"
	"github.com/charlesng35/gatepass/internal/middleware"
	appErrors "github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/metrics"
	"github.com/charlesng35/gatepass/pkg/response"
)

// AuthHandler manages operator login, logout and status.
type AuthHandler struct {
	operators *iauth.OperatorService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(operators *iauth.OperatorService) (*AuthHandler, error) {
	if operators == nil {
		return nil, errors.New("auth handler: operator service is required")
	}
	return &AuthHandler{operators: operators}, nil
}

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message     string    `json:"message"`
	Username    string    `json:"username"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)

	issued, err := h.operators.Login(username, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, iauth.ErrInvalidCredentials) {
			logger.WithModule("auth").Info("operator login rejected",
				zap.String("username", username),
				zap.String("client_ip", c.ClientIP()),
			)
			response.Error(c, appErrors.ErrInvalidCredentials)
			return
		}
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	setAuthCookie(c, issued.Token, time.Until(issued.ExpiresAt))

	response.Success(c, http.StatusOK, loginResponse{
		Message:     "Login successful",
		Username:    username,
		AccessToken: issued.Token,
		ExpiresAt:   issued.ExpiresAt.UTC(),
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if claims, ok := operatorClaims(c); ok {
		if err := h.operators.Logout(requestContext(c), claims); err != nil {
			logger.WithModule("auth").Warn("token revocation failed", zap.Error(err))
		}
	}
	clearAuthCookie(c)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GET /api/auth/status
func (h *AuthHandler) Status(c *gin.Context) {
	claims, ok := operatorClaims(c)
	if !ok {
		response.Success(c, http.StatusOK, gin.H{"authenticated": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"authenticated": true,
		"username":      claims.Operator,
	})
}

func setAuthCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isSecureRequest(c.Request),
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(c *gin.Context) {
	setAuthCookie(c, "", 0)
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/internal/ticket"
	"github.com/charlesng35/gatepass/pkg/mail"
	"github.com/charlesng35/gatepass/pkg/response"
)

const (
	credentialConfigured = "***configured***"
	credentialMissing    = "NOT SET"
	testEmailPayload     = "gatepass smtp test"
)

// EmailHandler lets operators confirm outbound email delivery.
type EmailHandler struct {
	dispatcher *services.DispatchService
	renderer   *ticket.Renderer
	settings   mail.SMTPSettings
}

// NewEmailHandler constructs the handler. A nil renderer uses the defaults.
func NewEmailHandler(dispatcher *services.DispatchService, renderer *ticket.Renderer, settings mail.SMTPSettings) (*EmailHandler, error) {
	if dispatcher == nil {
		return nil, errors.New("email handler: dispatcher is required")
	}
	if renderer == nil {
		renderer = ticket.NewRenderer()
	}
	return &EmailHandler{dispatcher: dispatcher, renderer: renderer, settings: settings}, nil
}

type emailTestRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

type smtpSummary struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	TLS      bool   `json:"tls"`
	Username string `json:"user"`
	Password string `json:"pass"`
}

type emailTestResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Hint    string      `json:"hint,omitempty"`
	Config  smtpSummary `json:"config"`
}

// POST /api/test-email
func (h *EmailHandler) Test(c *gin.Context) {
	var req emailTestRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validatePayload(c, &req) {
		return
	}

	payload := emailTestResponse{Config: h.summary()}

	png, err := h.renderer.PNG([]byte(testEmailPayload))
	if err != nil {
		png = nil
	}

	err = h.dispatcher.SendTest(requestContext(c), req.Email, png)
	switch {
	case err == nil:
		payload.Success = true
		payload.Message = "Email configuration is correct"
		response.Result(c, http.StatusOK, payload)
	case errors.Is(err, mail.ErrSMTPDisabled):
		payload.Message = "Email delivery is disabled"
		payload.Error = err.Error()
		payload.Hint = "Set email.smtp.enabled to true"
		response.Result(c, http.StatusServiceUnavailable, payload)
	default:
		payload.Message = "Email delivery failed"
		payload.Error = err.Error()
		payload.Hint = "Check the SMTP credentials in the email.smtp settings"
		response.Result(c, http.StatusBadGateway, payload)
	}
}

func (h *EmailHandler) summary() smtpSummary {
	return smtpSummary{
		Enabled:  h.settings.Enabled,
		Host:     h.settings.Host,
		Port:     h.settings.Port,
		TLS:      h.settings.UseTLS,
		Username: maskCredential(h.settings.Username),
		Password: maskCredential(h.settings.Password),
	}
}

func maskCredential(value string) string {
	if strings.TrimSpace(value) == "" {
		return credentialMissing
	}
	return credentialConfigured
}

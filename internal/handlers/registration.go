package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/services"
	appErrors "github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/response"
)

const registrationMessage = "Form submitted successfully! Check your email for the QR code."

// RegistrationHandler accepts public registration submissions.
type RegistrationHandler struct {
	registrations *services.RegistrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(registrations *services.RegistrationService) (*RegistrationHandler, error) {
	if registrations == nil {
		return nil, errors.New("registration handler: service is required")
	}
	return &RegistrationHandler{registrations: registrations}, nil
}

type registrationRequest struct {
	Name  string `json:"name" validate:"required,notblank,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}

type registrationResponse struct {
	Success    bool      `json:"success"`
	AttendeeID string    `json:"attendee_id"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
	Message    string    `json:"message"`
}

// POST /api/submit
func (h *RegistrationHandler) Submit(c *gin.Context) {
	var req registrationRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if !validatePayload(c, &req) {
		return
	}

	result, err := h.registrations.Register(requestContext(c), services.RegistrationInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateRegistration):
			response.Error(c, appErrors.ErrDuplicateRegistration)
		default:
			response.Error(c, appErrors.ErrIssuanceFailed.WithInternal(err))
		}
		return
	}

	response.Success(c, http.StatusCreated, registrationResponse{
		Success:    true,
		AttendeeID: result.Attendee.ID,
		Code:       result.Code,
		ExpiresAt:  result.Attendee.ExpiresAt.UTC(),
		Message:    registrationMessage,
	})
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/services"
	appErrors "github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/response"
)

// VerificationHandler redeems and inspects scanned codes at the gate.
type VerificationHandler struct {
	redemptions *services.RedemptionService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(redemptions *services.RedemptionService) (*VerificationHandler, error) {
	if redemptions == nil {
		return nil, errors.New("verification handler: service is required")
	}
	return &VerificationHandler{redemptions: redemptions}, nil
}

// codeRequest accepts the scanned text under either field name. The value may
// be the bare code or the full JSON payload printed in the QR image.
type codeRequest struct {
	Code   string `json:"code"`
	QRCode string `json:"qr_code"`
}

func (r codeRequest) raw() string {
	if r.Code != "" {
		return r.Code
	}
	return r.QRCode
}

type attendeeView struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type verificationResponse struct {
	Valid    bool          `json:"valid"`
	Used     bool          `json:"used"`
	Expired  bool          `json:"expired"`
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Attendee *attendeeView `json:"attendee,omitempty"`
}

// POST /api/verify
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req codeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.redemptions.Redeem(requestContext(c), req.raw())
	if err != nil {
		writeRedemptionError(c, err)
		return
	}

	payload := verificationResponse{
		Status:  string(result.Status),
		Message: result.Message(),
	}

	switch result.Status {
	case services.StatusNotFound:
		response.Result(c, http.StatusNotFound, payload)
		return
	case services.StatusUsed:
		payload.Used = true
		payload.Attendee = &attendeeView{
			Name:   result.Attendee.Name,
			Email:  result.Attendee.Email,
			UsedAt: result.UsedAt,
		}
	case services.StatusExpired:
		payload.Expired = true
		expiresAt := result.Attendee.ExpiresAt
		payload.Attendee = &attendeeView{
			Name:      result.Attendee.Name,
			Email:     result.Attendee.Email,
			ExpiresAt: &expiresAt,
		}
	case services.StatusRedeemed:
		payload.Valid = true
		payload.Attendee = &attendeeView{
			Name:  result.Attendee.Name,
			Email: result.Attendee.Email,
			Phone: result.Attendee.Phone,
		}
	}

	response.Result(c, http.StatusOK, payload)
}

// POST /api/check
func (h *VerificationHandler) Check(c *gin.Context) {
	var req codeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.redemptions.Inspect(requestContext(c), req.raw())
	if err != nil {
		writeRedemptionError(c, err)
		return
	}

	payload := verificationResponse{
		Valid:   result.Status == services.StatusValid,
		Used:    result.Status == services.StatusUsed,
		Expired: result.Status == services.StatusExpired,
		Status:  string(result.Status),
		Message: result.Message(),
	}
	if result.Attendee != nil {
		payload.Attendee = fullAttendeeView(result.Attendee)
	}

	response.Result(c, http.StatusOK, payload)
}

func fullAttendeeView(attendee *models.Attendee) *attendeeView {
	createdAt := attendee.CreatedAt
	expiresAt := attendee.ExpiresAt
	return &attendeeView{
		ID:        attendee.ID,
		Name:      attendee.Name,
		Email:     attendee.Email,
		Phone:     attendee.Phone,
		UsedAt:    attendee.UsedAt,
		CreatedAt: &createdAt,
		ExpiresAt: &expiresAt,
	}
}

func writeRedemptionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCodeRequired):
		response.Error(c, appErrors.ErrCodeRequired)
	case errors.Is(err, services.ErrStorageUnavailable):
		response.Error(c, appErrors.ErrStorageUnavailable.WithInternal(err))
	default:
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}

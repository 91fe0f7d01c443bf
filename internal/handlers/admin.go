package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/internal/ticket"
	appErrors "github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/response"
)

// AdminHandler serves the operator dashboard: stats, attendee list, QR
// re-rendering and scan history.
type AdminHandler struct {
	attendees *services.AttendeeStore
	scans     *services.ScanLogService
	renderer  *ticket.Renderer
}

// NewAdminHandler constructs the handler. A nil renderer uses the defaults.
func NewAdminHandler(attendees *services.AttendeeStore, scans *services.ScanLogService, renderer *ticket.Renderer) (*AdminHandler, error) {
	if attendees == nil {
		return nil, errors.New("admin handler: attendee store is required")
	}
	if scans == nil {
		return nil, errors.New("admin handler: scan log service is required")
	}
	if renderer == nil {
		renderer = ticket.NewRenderer()
	}
	return &AdminHandler{attendees: attendees, scans: scans, renderer: renderer}, nil
}

type statsResponse struct {
	Total  int64 `json:"total"`
	Used   int64 `json:"used"`
	Unused int64 `json:"unused"`
}

type attendeeSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Code      string     `json:"code"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// GET /api/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.attendees.Stats(requestContext(c))
	if err != nil {
		response.Error(c, appErrors.ErrStorageUnavailable.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, statsResponse{Total: stats.Total, Used: stats.Used, Unused: stats.Unused})
}

// GET /api/attendees
func (h *AdminHandler) Attendees(c *gin.Context) {
	attendees, err := h.attendees.List(requestContext(c))
	if err != nil {
		response.Error(c, appErrors.ErrStorageUnavailable.WithInternal(err))
		return
	}

	out := make([]attendeeSummary, 0, len(attendees))
	for i := range attendees {
		out = append(out, summarizeAttendee(&attendees[i]))
	}
	response.Success(c, http.StatusOK, out)
}

// GET /api/attendees/:id/qrcode
func (h *AdminHandler) QRCode(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	attendee, err := h.attendees.FindByID(requestContext(c), id)
	if err != nil {
		if errors.Is(err, services.ErrAttendeeNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrStorageUnavailable.WithInternal(err))
		return
	}

	png, err := h.renderer.PNG(attendee.CodePayload)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	if c.Query("download") != "" {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%s.png"`, attendee.ID))
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// GET /api/scans
func (h *AdminHandler) Scans(c *gin.Context) {
	opts := services.ScanListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Filters: services.ScanFilters{
			Status: strings.ToUpper(strings.TrimSpace(c.Query("status"))),
			Mode:   strings.ToLower(strings.TrimSpace(c.Query("mode"))),
		},
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("since must be an RFC3339 timestamp"))
			return
		}
		opts.Filters.Since = &since
	}

	logs, total, err := h.scans.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, appErrors.ErrStorageUnavailable.WithInternal(err))
		return
	}

	page, perPage := opts.Paging()
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

func summarizeAttendee(a *models.Attendee) attendeeSummary {
	return attendeeSummary{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Code:      a.Code,
		Used:      a.Used,
		UsedAt:    a.UsedAt,
		ExpiresAt: a.ExpiresAt,
		CreatedAt: a.CreatedAt,
	}
}

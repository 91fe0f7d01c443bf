package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/security"
	"github.com/charlesng35/gatepass/pkg/response"
)

// SecurityHandler exposes the configuration audit to operators.
type SecurityHandler struct {
	audit *security.AuditService
}

// NewSecurityHandler constructs the handler.
func NewSecurityHandler(audit *security.AuditService) (*SecurityHandler, error) {
	if audit == nil {
		return nil, errors.New("security handler: audit service is required")
	}
	return &SecurityHandler{audit: audit}, nil
}

// GET /api/security/audit
func (h *SecurityHandler) Audit(c *gin.Context) {
	response.Success(c, http.StatusOK, h.audit.Run(requestContext(c)))
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
)

func registerCheckinRoutes(api *gin.RouterGroup, handler *handlers.VerificationHandler) {
	api.POST("/verify", handler.Verify)
	api.POST("/check", handler.Check)
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
)

func registerSecurityRoutes(api *gin.RouterGroup, handler *handlers.SecurityHandler) {
	security := api.Group("/security")
	{
		security.GET("/audit", handler.Audit)
	}
}

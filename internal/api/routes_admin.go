package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
)

func registerAdminRoutes(api *gin.RouterGroup, handler *handlers.AdminHandler) {
	api.GET("/stats", handler.Stats)
	api.GET("/scans", handler.Scans)

	attendees := api.Group("/attendees")
	{
		attendees.GET("", handler.Attendees)
		attendees.GET("/:id/qrcode", handler.QRCode)
	}
}

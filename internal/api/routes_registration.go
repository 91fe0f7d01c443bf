package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
)

func registerRegistrationRoutes(api *gin.RouterGroup, handler *handlers.RegistrationHandler) {
	api.POST("/submit", handler.Submit)
}

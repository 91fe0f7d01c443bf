package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
)

func registerEmailRoutes(api *gin.RouterGroup, handler *handlers.EmailHandler) {
	api.POST("/test-email", handler.Test)
}

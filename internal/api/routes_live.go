package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
)

// The live handler authenticates on its own so the token can travel as a query parameter.
func registerLiveRoutes(api *gin.RouterGroup, handler *handlers.LiveHandler) {
	api.GET("/live", handler.Stream)
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatepass/internal/handlers"
	"github.com/charlesng35/gatepass/internal/middleware"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, authn middleware.TokenAuthenticator) {
	auth := api.Group("/auth")
	{
		auth.POST("/login", handler.Login)
		auth.POST("/logout", middleware.OptionalAuth(authn), handler.Logout)
		auth.GET("/status", middleware.OptionalAuth(authn), handler.Status)
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/gatepass/internal/auditctx"
	appErrors "github.com/charlesng35/gatepass/pkg/errors"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/response"
)

const unmatchedRoute = "unmatched"

// Recovery converts panics into the standard 500 envelope and logs the
// recovered value with the request's route and operator.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("route", routeLabel(c)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			}
			if operator, ok := auditctx.FromContext(c.Request.Context()); ok {
				fields = append(fields, zap.String("operator", operator.Username))
			}
			logger.WithModule("http").Error("panic recovered", fields...)

			response.Error(c, appErrors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the standard error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, appErrors.New(
		"ROUTE_NOT_FOUND",
		fmt.Sprintf("route %s %s not found", c.Request.Method, c.Request.URL.Path),
		http.StatusNotFound,
	))
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatepass/internal/database"
	"github.com/charlesng35/gatepass/internal/monitoring"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/response"
)

const healthPingTimeout = 2 * time.Second

// Health returns a status payload useful for readiness checks. The database is
// pinged when a handle is provided.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), healthPingTimeout)
			defer cancel()
			if err := database.Ping(ctx, db); err != nil {
				logger.WithModule("health").Warn("database ping failed", zap.Error(err))
				response.Result(c, http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness evaluates the registered dependency probes. Degraded dependencies
// still report 200; any down probe turns the response into a 503.
func Readiness(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))
		status := http.StatusOK
		if !report.Ready() {
			status = http.StatusServiceUnavailable
		}
		response.Result(c, status, report)
	}
}

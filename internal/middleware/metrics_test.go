package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatepass/pkg/metrics"
)

func TestMetricsObservesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/attendees/:id/qrcode", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	before := testutil.CollectAndCount(metrics.APILatency)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/attendees/abc/qrcode", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	require.Equal(t, before+1, testutil.CollectAndCount(metrics.APILatency))
}

func TestMetricsCollapsesUnknownRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.NoRoute(NotFoundHandler)

	before := testutil.CollectAndCount(metrics.APILatency)
	for _, path := range []string{"/.env", "/wp-login.php", "/admin/config.php"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, path, nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	require.Equal(t, before+1, testutil.CollectAndCount(metrics.APILatency))
}

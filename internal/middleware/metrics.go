package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/service"
)

var probePaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// Metrics records request count and latency per route template. Probe
// routes are not recorded, and a known page in a /:page route is spelled
// out so each page gets its own series.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, probe := probePaths[c.FullPath()]; probe {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		return "unmatched"
	}
	if !strings.Contains(path, ":page") {
		return path
	}
	page := c.Param("page")
	if _, known := service.PageRoles[page]; !known {
		return path
	}
	return strings.Replace(path, ":page", page, 1)
}

package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/logging"
)

// saveEvery is how many audit requests pass between statistics saves
const saveEvery = 100

// auditRoute is the only route whose latency and target are tracked
const auditRoute = "/api/audit"

// AuditTargetKey is the gin context key under which handlers publish the
// audited URL.
const AuditTargetKey = "auditTarget"

// Stats tracks visitors on every request and audit latency, target and
// outcome on audit requests.
func Stats(stats *logging.Statistics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		stats.TrackVisitor(c.ClientIP())

		c.Next()

		if c.Request.Method != http.MethodPost || c.FullPath() != auditRoute {
			return
		}

		target, _ := c.Get(AuditTargetKey)
		targetURL, _ := target.(string)
		loadTime := float64(time.Since(start).Milliseconds())
		stats.TrackAudit(targetURL, loadTime, c.Writer.Status() >= http.StatusBadRequest)

		if stats.TotalRequests()%saveEvery == 0 {
			go func() {
				if err := stats.Save(); err != nil {
					logging.Log.Error("Failed to save statistics", zap.Error(err))
				}
			}()
		}
	}
}

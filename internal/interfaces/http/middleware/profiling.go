package middleware

import (
	"context"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingLabels tags the request's CPU samples with its route, method and
// tenant. Place it after Authenticate; it is a pass-through when disabled.
func ProfilingLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		labels := map[string]string{
			telemetry.ProfilingLabelMethod: c.Request.Method,
			telemetry.ProfilingLabelRoute:  c.FullPath(),
		}
		if op, ok := GetOpContext(c); ok {
			labels[telemetry.ProfilingLabelTenantID] = op.TenantID.String()
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

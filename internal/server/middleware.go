package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	appconfig "github.com/brightpane/brightpane/internal/config"
	"github.com/brightpane/brightpane/internal/tenantctx"
)

// TenantMiddleware resolves the active tenant from the X-Tenant-ID header,
// falling back to the configured default tenant.
func TenantMiddleware(cfg appconfig.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := snowflake.ID(cfg.DefaultTenantID)
		if header := strings.TrimSpace(c.GetHeader("X-Tenant-ID")); header != "" {
			parsed, err := snowflake.ParseString(header)
			if err != nil {
				AbortWithError(c, newValidationError("tenant_id", "invalid_tenant_id", "invalid tenant id"))
				return
			}
			tenantID = parsed
		}
		if tenantID == 0 {
			AbortWithError(c, newValidationError("tenant_id", "missing_tenant_id", "tenant id is required"))
			return
		}

		ctx := tenantctx.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

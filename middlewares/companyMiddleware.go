package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/gin-gonic/gin"
)

// CompanyMiddleware resolves the tenant from the :companyGuid path segment
// and stamps it into the request context so the tenant guard can scope every
// query downstream.
func CompanyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyGuid := strings.TrimSpace(c.Param("companyGuid"))
		if companyGuid == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "companyGuid is required"})
			c.Abort()
			return
		}

		ctx := utils.SetCompanyGuidInContext(c.Request.Context(), companyGuid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

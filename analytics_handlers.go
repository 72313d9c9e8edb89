package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/cache"
	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/models"
	"bitbucket.org/mmdatafocus/tally_backend/models/reports"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/gin-gonic/gin"
)

// entityTypeParam resolves ?entity_type. Defaults to customer; "all" selects
// the combined receivable+payable view, passed down as the empty filter.
func entityTypeParam(c *gin.Context) string {
	switch entityType := strings.TrimSpace(c.Query("entity_type")); entityType {
	case "":
		return string(models.EntityTypeCustomer)
	case "all":
		return ""
	default:
		return entityType
	}
}

func writeAnalyticsError(c *gin.Context, err error) {
	var cfgErr *utils.ConfigurationError
	if errors.As(err, &cfgErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// agingSummaryHandler serves the bucketed outstanding report. Cached and
// materialized answers are served as-is; ?force=true bypasses staleness
// detection and recomputes synchronously.
func agingSummaryHandler(ac *cache.AnalyticsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)
		force := strings.EqualFold(c.Query("force"), "true")

		summary, err := models.GetAgingSummary(ctx, config.GetDB(), ac, companyGuid, entityTypeParam(c), force)
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func agingRefreshHandler(ac *cache.AnalyticsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "analytics.aging.refresh")
		defer span.End()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)
		db := config.GetDB()

		result, err := models.ComputeOutstandingAging(ctx, db, companyGuid)
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}
		if err := models.RebuildDashboardMetrics(ctx, db, companyGuid); err != nil {
			writeAnalyticsError(c, err)
			return
		}
		if err := ac.InvalidateCompany(ctx, companyGuid); err != nil {
			config.LogError(config.GetLogger(), "server.go", "agingRefreshHandler", "cache invalidation", companyGuid, err)
		}
		c.JSON(http.StatusOK, result)
	}
}

func agingPartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)
		partyName := strings.TrimSpace(c.Query("party"))
		if partyName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "party is required"})
			return
		}

		detail, err := models.GetPartyAgingDetail(ctx, config.GetDB(), companyGuid, partyName, entityTypeParam(c))
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func agingExportHandler(ac *cache.AnalyticsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)
		entityType := entityTypeParam(c)

		summary, err := models.GetAgingSummary(ctx, config.GetDB(), ac, companyGuid, entityType, false)
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}

		f, err := reports.BuildAgingWorkbook(summary, entityType)
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}

		filename := fmt.Sprintf("aging_%s_%s.xlsx", entityType, time.Now().Format("20060102"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "agingExportHandler", "workbook write", filename, err)
		}
	}
}

func cyclesRefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)

		if err := models.ComputePaymentCycles(ctx, config.GetDB(), companyGuid); err != nil {
			writeAnalyticsError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func scoresRefreshHandler(ac *cache.AnalyticsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)
		db := config.GetDB()

		// Scores read the cycle rows; keep them in lockstep.
		if err := models.ComputePaymentCycles(ctx, db, companyGuid); err != nil {
			writeAnalyticsError(c, err)
			return
		}
		if err := models.ComputeVendorScores(ctx, db, companyGuid); err != nil {
			writeAnalyticsError(c, err)
			return
		}
		if err := ac.Invalidate(ctx, cache.ScoresKey(companyGuid)); err != nil {
			config.LogError(config.GetLogger(), "server.go", "scoresRefreshHandler", "cache invalidation", companyGuid, err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func scoresHandler(ac *cache.AnalyticsCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)
		logger := config.GetLogger()
		cacheKey := cache.ScoresKey(companyGuid)

		var cached []models.VendorScore
		ok, err := ac.Get(ctx, cacheKey, &cached)
		if err != nil {
			config.LogError(logger, "server.go", "scoresHandler", "cache read", cacheKey, err)
		} else if ok {
			c.JSON(http.StatusOK, gin.H{"data": cached, "source": cache.SourceCache})
			return
		}

		scores, err := models.GetVendorScores(ctx, config.GetDB(), companyGuid)
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}
		if err := ac.Set(ctx, cacheKey, scores, ac.TTL()); err != nil {
			config.LogError(logger, "server.go", "scoresHandler", "cache write", cacheKey, err)
		}
		c.JSON(http.StatusOK, gin.H{"data": scores, "source": cache.SourceMaterialized})
	}
}

func dashboardMetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		companyGuid, _ := utils.GetCompanyGuidFromContext(ctx)

		metric, err := models.CurrentDashboardMetric(ctx, config.GetDB(), companyGuid)
		if err != nil {
			writeAnalyticsError(c, err)
			return
		}
		c.JSON(http.StatusOK, metric)
	}
}

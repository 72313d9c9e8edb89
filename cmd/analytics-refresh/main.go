package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/cache"
	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/models"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
)

// analytics-refresh recomputes the derived analytics for one company (or all
// active companies) without going through the sync coordinator. Useful after
// a manual database fix or when cached answers need to be forced out.
func main() {
	companyGuid := flag.String("company", "", "Optional: refresh only one company guid. If empty, refreshes all active companies.")
	skipCache := flag.Bool("skip-cache", false, "Skip cache invalidation (leave stale cached answers in place).")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	var guids []string
	if strings.TrimSpace(*companyGuid) != "" {
		guids = []string{strings.TrimSpace(*companyGuid)}
	} else {
		var err error
		guids, err = models.ActiveCompanyGuids(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list companies: %v\n", err)
			os.Exit(1)
		}
	}
	if len(guids) == 0 {
		fmt.Fprintln(os.Stderr, "no companies to refresh")
		return
	}

	var ac *cache.AnalyticsCache
	if !*skipCache {
		config.ConnectRedisWithRetry()
		ac = cache.NewAnalyticsCache(config.GetRedisDB(), config.CacheLifespan(), config.GetLogger())
	}

	exitCode := 0
	for _, guid := range guids {
		start := time.Now()
		cctx := utils.SetCompanyGuidInContext(ctx, guid)

		result, err := models.ComputeOutstandingAging(cctx, db, guid)
		if err == nil {
			err = models.RebuildDashboardMetrics(cctx, db, guid)
		}
		if err == nil {
			err = models.ComputePaymentCycles(cctx, db, guid)
		}
		if err == nil {
			err = models.ComputeVendorScores(cctx, db, guid)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "company %s: refresh failed: %v\n", guid, err)
			exitCode = 1
			continue
		}

		if ac != nil {
			if err := ac.InvalidateCompany(cctx, guid); err != nil {
				fmt.Fprintf(os.Stderr, "company %s: cache invalidation failed: %v\n", guid, err)
			}
		}
		fmt.Printf("company %s: %d parties, %d receivables, %d payables in %s\n",
			guid, result.PartyCount, result.ReceivablesCount, result.PayablesCount,
			time.Since(start).Round(time.Millisecond))
	}
	os.Exit(exitCode)
}

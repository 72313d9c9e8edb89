package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DashboardFastPathEnabled gates the materialized dashboard_metrics read path.
// When disabled, aging reads always go through the legacy recompute-then-query
// path.
//
// Set via env:
// - DASHBOARD_FAST_PATH=false to disable (default enabled)
func DashboardFastPathEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DASHBOARD_FAST_PATH")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoRefreshInterval is how often the background scheduler kicks off
// auto-trigger sync runs over active companies.
//
// Set via env:
// - AUTO_REFRESH_MINUTES (default 5)
func AutoRefreshInterval() time.Duration {
	minutes, err := strconv.Atoi(strings.TrimSpace(os.Getenv("AUTO_REFRESH_MINUTES")))
	if err != nil || minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}

// CacheLifespan is the TTL for cached analytics payloads.
//
// Set via env:
// - CACHE_LIFESPAN_MINUTES (default 60)
func CacheLifespan() time.Duration {
	minutes, err := strconv.Atoi(strings.TrimSpace(os.Getenv("CACHE_LIFESPAN_MINUTES")))
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

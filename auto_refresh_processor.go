package main

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/models"
	"bitbucket.org/mmdatafocus/tally_backend/tallysync"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutoRefreshProcessor periodically triggers a full sync for every active
// company. Triggers go through the coordinator so a company with a manual
// sync in flight gets a deferred retry instead of a concurrent run.
type AutoRefreshProcessor struct {
	DB          *gorm.DB
	Coordinator *tallysync.Coordinator
	Logger      *logrus.Logger
	Interval    time.Duration
}

func NewAutoRefreshProcessor(db *gorm.DB, coord *tallysync.Coordinator, logger *logrus.Logger) *AutoRefreshProcessor {
	return &AutoRefreshProcessor{
		DB:          db,
		Coordinator: coord,
		Logger:      logger,
		Interval:    config.AutoRefreshInterval(),
	}
}

func shouldRunAutoRefresh() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_REFRESH_ENABLED")))
	if val == "false" {
		return false
	}
	return true
}

// Run fires one pass immediately, then again every Interval until ctx ends.
func (p *AutoRefreshProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil || p.Coordinator == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *AutoRefreshProcessor) processOnce(ctx context.Context) {
	guids, err := models.ActiveCompanyGuids(ctx, p.DB)
	if err != nil {
		config.LogError(p.Logger, "auto_refresh_processor.go", "processOnce", "list active companies", nil, err)
		return
	}
	for _, guid := range guids {
		resp, err := p.Coordinator.StartSync(ctx, guid, tallysync.SyncTriggerAuto)
		if err != nil {
			config.LogError(p.Logger, "auto_refresh_processor.go", "processOnce", "start auto sync", guid, err)
			continue
		}
		if !resp.Accepted {
			p.Logger.WithFields(logrus.Fields{
				"company_guid": guid,
				"reason":       resp.Reason,
			}).Debug("auto sync deferred")
		}
	}
}

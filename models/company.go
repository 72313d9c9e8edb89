package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"gorm.io/gorm"
)

// Company is an isolated accounting entity synced from the desktop Tally
// connector. Everything downstream is scoped by Guid.
type Company struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	Guid              string     `gorm:"uniqueIndex;size:64;not null" json:"guid"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Active            bool       `gorm:"default:true" json:"active"`
	LastFullRefreshAt *time.Time `json:"last_full_refresh_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActiveCompanyGuids lists companies eligible for the auto-refresh loop.
func ActiveCompanyGuids(ctx context.Context, db *gorm.DB) ([]string, error) {
	// Companies are platform-level rows, not tenant-scoped.
	ctx = utils.SetSkipTenantScope(ctx)
	var guids []string
	if err := db.WithContext(ctx).Model(&Company{}).
		Where("active = ?", true).
		Pluck("guid", &guids).Error; err != nil {
		return nil, err
	}
	return guids, nil
}

func MarkCompanyRefreshed(ctx context.Context, db *gorm.DB, companyGuid string, at time.Time) error {
	ctx = utils.SetSkipTenantScope(ctx)
	return db.WithContext(ctx).Model(&Company{}).
		Where("guid = ?", companyGuid).
		Update("last_full_refresh_at", at).Error
}

package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is a debtor ledger synced from Tally. Same shape and uniqueness
// rules as Vendor; the two stay separate tables because the connector syncs
// them as distinct master lists.
type Customer struct {
	ID             uint            `gorm:"primary_key" json:"id"`
	Guid           string          `gorm:"uniqueIndex:idx_customer_guid_company,priority:1;size:64;not null" json:"guid"`
	CompanyGuid    string          `gorm:"uniqueIndex:idx_customer_guid_company,priority:2;index;size:64;not null" json:"company_guid"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	LastSyncAt     *time.Time      `gorm:"index" json:"last_sync_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func CustomerIdsByNormalizedName(ctx context.Context, db *gorm.DB, companyGuid string) (map[string]uint, error) {
	type row struct {
		ID   uint
		Name string
	}
	var rows []row
	if err := db.WithContext(ctx).Model(&Customer{}).
		Select("id", "name").
		Where("company_guid = ?", companyGuid).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(rows))
	for _, r := range rows {
		out[utils.NormalizePartyName(r.Name)] = r.ID
	}
	return out, nil
}

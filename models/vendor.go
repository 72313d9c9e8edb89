package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vendor is a supplier ledger synced from Tally. One row per
// (guid, company_guid); names are unique per company only after
// case-insensitive normalization, which is handled at lookup time.
type Vendor struct {
	ID             uint            `gorm:"primary_key" json:"id"`
	Guid           string          `gorm:"uniqueIndex:idx_vendor_guid_company,priority:1;size:64;not null" json:"guid"`
	CompanyGuid    string          `gorm:"uniqueIndex:idx_vendor_guid_company,priority:2;index;size:64;not null" json:"company_guid"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	LastSyncAt     *time.Time      `gorm:"index" json:"last_sync_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// VendorIdsByNormalizedName maps normalized vendor names to surrogate ids for
// the aging join. Tally voucher rows reference parties by name, not id.
func VendorIdsByNormalizedName(ctx context.Context, db *gorm.DB, companyGuid string) (map[string]uint, error) {
	type row struct {
		ID   uint
		Name string
	}
	var rows []row
	if err := db.WithContext(ctx).Model(&Vendor{}).
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

package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutstandingAging is derived data: one row per (company, party, entity type)
// holding the four non-overlapping bucket amounts plus their total. Rebuilt
// by full replace per company; never patched incrementally, so a voucher
// reclassification can never leave drift behind.
type OutstandingAging struct {
	ID               uint            `gorm:"primary_key" json:"id"`
	CompanyGuid      string          `gorm:"uniqueIndex:idx_aging_company_party,priority:1;size:64;not null" json:"company_guid"`
	PartyId          uint            `gorm:"uniqueIndex:idx_aging_company_party,priority:2;not null" json:"party_id"`
	EntityType       EntityType      `gorm:"uniqueIndex:idx_aging_company_party,priority:3;size:16;not null" json:"entity_type"`
	PartyName        string          `gorm:"size:255;not null" json:"party_name"`
	Current0To30     decimal.Decimal `gorm:"column:current_0_30_days;type:decimal(20,4);default:0" json:"current_0_30_days"`
	Current31To60    decimal.Decimal `gorm:"column:current_31_60_days;type:decimal(20,4);default:0" json:"current_31_60_days"`
	Current61To90    decimal.Decimal `gorm:"column:current_61_90_days;type:decimal(20,4);default:0" json:"current_61_90_days"`
	CurrentOver90    decimal.Decimal `gorm:"column:current_over_90_days;type:decimal(20,4);default:0" json:"current_over_90_days"`
	TotalOutstanding decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_outstanding"`
	Method           AgingMethod     `gorm:"size:32;not null" json:"method"`
	CalculatedAt     time.Time       `gorm:"not null" json:"calculated_at"`
}

// AgingItem is one eligible line item feeding the aging aggregation.
type AgingItem struct {
	PartyName   string
	EntityType  EntityType
	Date        time.Time
	DueDate     *time.Time
	Outstanding decimal.Decimal
}

// AgingAggregate is the per-party accumulation before persistence.
type AgingAggregate struct {
	PartyName  string
	EntityType EntityType
	Buckets    [4]decimal.Decimal
	Total      decimal.Decimal
}

// AgingResult summarises one recompute.
type AgingResult struct {
	PartyCount       int                        `json:"party_count"`
	ReceivablesCount int                        `json:"receivables_count"`
	PayablesCount    int                        `json:"payables_count"`
	TotalsByEntity   map[EntityType]decimal.Decimal `json:"totals_by_entity"`
	Method           AgingMethod                `json:"method"`
	DurationMs       int64                      `json:"duration_ms"`
	CalculatedAt     time.Time                  `json:"calculated_at"`
}

// AgingAgeDays returns how many whole days overdue the item is as of asOf,
// using the due date when present and the item date otherwise. Future-dated
// items age as 0, they do not go negative.
func AgingAgeDays(asOf time.Time, item AgingItem) int {
	ref := utils.DereferencePtr(item.DueDate, item.Date)
	days := utils.DaysBetween(ref, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// AgingBucketIndex maps an age in days onto the half-open partition
// [0,30], (30,60], (60,90], (90,inf). Every age lands in exactly one bucket.
func AgingBucketIndex(ageDays int) int {
	switch {
	case ageDays <= 30:
		return 0
	case ageDays <= 60:
		return 1
	case ageDays <= 90:
		return 2
	default:
		return 3
	}
}

// AggregateAgingItems groups eligible items by normalized party name and
// entity type, adding each item's outstanding amount to exactly one bucket.
// Items with non-positive outstanding are skipped. The result is sorted by
// entity type then party name so reruns are deterministic.
func AggregateAgingItems(items []AgingItem, asOf time.Time) []AgingAggregate {
	type key struct {
		name   string
		entity EntityType
	}
	accum := make(map[key]*AgingAggregate)
	for _, item := range items {
		if !item.Outstanding.IsPositive() {
			continue
		}
		k := key{name: utils.NormalizePartyName(item.PartyName), entity: item.EntityType}
		agg, ok := accum[k]
		if !ok {
			agg = &AgingAggregate{PartyName: item.PartyName, EntityType: item.EntityType}
			accum[k] = agg
		}
		idx := AgingBucketIndex(AgingAgeDays(asOf, item))
		agg.Buckets[idx] = agg.Buckets[idx].Add(item.Outstanding)
		agg.Total = agg.Total.Add(item.Outstanding)
	}

	out := make([]AgingAggregate, 0, len(accum))
	for _, agg := range accum {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return utils.NormalizePartyName(out[i].PartyName) < utils.NormalizePartyName(out[j].PartyName)
	})
	return out
}

// ComputeOutstandingAging rebuilds the outstanding_aging rows for one
// company. Source selection is two-tier: the voucher table when it has any
// rows for the company, else the coarse transaction table. The delete and
// inserts run in one transaction, so a mid-failure leaves the prior rows
// intact.
func ComputeOutstandingAging(ctx context.Context, db *gorm.DB, companyGuid string) (*AgingResult, error) {
	if strings.TrimSpace(companyGuid) == "" {
		return nil, utils.NewConfigurationError("companyGuid")
	}
	logger := config.GetLogger()
	started := time.Now()
	asOf := started.UTC()

	items, method, err := loadAgingItems(ctx, db, companyGuid)
	if err != nil {
		return nil, utils.NewRecalculationError("aging source query", err)
	}

	aggregates := AggregateAgingItems(items, asOf)

	vendorIds, err := VendorIdsByNormalizedName(ctx, db, companyGuid)
	if err != nil {
		return nil, utils.NewRecalculationError("vendor lookup", err)
	}
	customerIds, err := CustomerIdsByNormalizedName(ctx, db, companyGuid)
	if err != nil {
		return nil, utils.NewRecalculationError("customer lookup", err)
	}

	rows := make([]OutstandingAging, 0, len(aggregates))
	result := &AgingResult{
		TotalsByEntity: map[EntityType]decimal.Decimal{
			EntityTypeCustomer: decimal.Zero,
			EntityTypeVendor:   decimal.Zero,
		},
		Method:       method,
		CalculatedAt: asOf,
	}
	for _, agg := range aggregates {
		if !agg.Total.IsPositive() {
			continue
		}
		var partyId uint
		var ok bool
		switch agg.EntityType {
		case EntityTypeCustomer:
			partyId, ok = customerIds[utils.NormalizePartyName(agg.PartyName)]
		case EntityTypeVendor:
			partyId, ok = vendorIds[utils.NormalizePartyName(agg.PartyName)]
		}
		if !ok {
			// Data-quality signal: a voucher names a party the master sync
			// never delivered. Dropped, never invented as a new party.
			logger.WithFields(logrus.Fields{
				"module":      "models",
				"funcName":    "ComputeOutstandingAging",
				"companyGuid": companyGuid,
				"partyName":   agg.PartyName,
				"entityType":  agg.EntityType,
			}).Warn("aging party not found in masters; dropping")
			continue
		}
		rows = append(rows, OutstandingAging{
			CompanyGuid:      companyGuid,
			PartyId:          partyId,
			EntityType:       agg.EntityType,
			PartyName:        agg.PartyName,
			Current0To30:     agg.Buckets[0],
			Current31To60:    agg.Buckets[1],
			Current61To90:    agg.Buckets[2],
			CurrentOver90:    agg.Buckets[3],
			TotalOutstanding: agg.Total,
			Method:           method,
			CalculatedAt:     asOf,
		})
		result.TotalsByEntity[agg.EntityType] = result.TotalsByEntity[agg.EntityType].Add(agg.Total)
		switch agg.EntityType {
		case EntityTypeCustomer:
			result.ReceivablesCount++
		case EntityTypeVendor:
			result.PayablesCount++
		}
	}
	result.PartyCount = len(rows)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_guid = ?", companyGuid).Delete(&OutstandingAging{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return nil, utils.NewRecalculationError("aging replace", err)
	}

	result.DurationMs = time.Since(started).Milliseconds()
	return result, nil
}

// loadAgingItems picks the source and loads eligible items.
//
// Fallback rule: age off the transaction's own date, never the sync
// timestamp. An earlier build aged fallback rows from their import time,
// which collapsed every historic balance into the 0-30 bucket on first sync.
func loadAgingItems(ctx context.Context, db *gorm.DB, companyGuid string) ([]AgingItem, AgingMethod, error) {
	var voucherCount int64
	if err := db.WithContext(ctx).Model(&Voucher{}).
		Where("company_guid = ?", companyGuid).
		Count(&voucherCount).Error; err != nil {
		return nil, "", err
	}

	allTypes := append(append([]VoucherType{}, receivableVoucherTypes...), payableVoucherTypes...)

	if voucherCount > 0 {
		var vouchers []Voucher
		if err := db.WithContext(ctx).
			Where("company_guid = ?", companyGuid).
			Where("is_cancelled = ?", false).
			Where("payment_status IN ?", []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPartial}).
			Where("amount_outstanding > 0").
			Where("voucher_type IN ?", allTypes).
			Find(&vouchers).Error; err != nil {
			return nil, "", err
		}
		items := make([]AgingItem, 0, len(vouchers))
		for _, v := range vouchers {
			items = append(items, AgingItem{
				PartyName:   v.PartyName,
				EntityType:  entityTypeForVoucherType(v.VoucherType),
				Date:        v.Date,
				DueDate:     v.DueDate,
				Outstanding: v.AmountOutstanding,
			})
		}
		return items, AgingMethodLineItem, nil
	}

	var txns []Transaction
	if err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Where("amount > 0").
		Where("transaction_type IN ?", allTypes).
		Find(&txns).Error; err != nil {
		return nil, "", err
	}
	items := make([]AgingItem, 0, len(txns))
	for _, t := range txns {
		items = append(items, AgingItem{
			PartyName:   t.PartyName,
			EntityType:  entityTypeForVoucherType(t.TransactionType),
			Date:        t.Date,
			Outstanding: t.Amount,
		})
	}
	return items, AgingMethodTransactionDate, nil
}

func entityTypeForVoucherType(vt VoucherType) EntityType {
	for _, t := range receivableVoucherTypes {
		if vt == t {
			return EntityTypeCustomer
		}
	}
	return EntityTypeVendor
}

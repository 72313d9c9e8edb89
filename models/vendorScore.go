package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Neutral on-time percentage used when a vendor has no settlement cycle row.
const neutralOnTimePct = 50.0

// VendorScore is derived data: one row per vendor combining reliability,
// payment-history and volume components. Overall score is the arithmetic
// mean of the three. Risk level is thresholded on a separate blended metric,
// NOT on the overall score - scoring and risk classification deliberately
// answer different questions, so their boundaries differ.
type VendorScore struct {
	ID                  uint            `gorm:"primary_key" json:"id"`
	CompanyGuid         string          `gorm:"uniqueIndex:idx_score_company_vendor,priority:1;size:64;not null" json:"company_guid"`
	VendorId            uint            `gorm:"uniqueIndex:idx_score_company_vendor,priority:2;not null" json:"vendor_id"`
	VendorName          string          `gorm:"size:255;not null" json:"vendor_name"`
	ReliabilityScore    decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"reliability_score"`
	PaymentHistoryScore decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"payment_history_score"`
	VolumeScore         decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"volume_score"`
	OverallScore        decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"overall_score"`
	OnTimePct           decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"on_time_pct"`
	TransactionCount    int             `gorm:"default:0" json:"transaction_count"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	RiskLevel           RiskLevel       `gorm:"size:16;not null" json:"risk_level"`
	CalculatedAt        time.Time       `gorm:"not null" json:"calculated_at"`
}

// ReliabilityScore maps an on-time percentage through a fixed step function.
func ReliabilityScore(onTimePct float64) float64 {
	switch {
	case onTimePct >= 90:
		return 100
	case onTimePct >= 75:
		return 80
	case onTimePct >= 50:
		return 60
	case onTimePct >= 25:
		return 40
	default:
		return 20
	}
}

// PaymentHistoryScore buckets the vendor's transaction count.
func PaymentHistoryScore(transactionCount int) float64 {
	switch {
	case transactionCount >= 100:
		return 100
	case transactionCount >= 50:
		return 80
	case transactionCount >= 20:
		return 60
	case transactionCount >= 5:
		return 40
	default:
		return 20
	}
}

// VolumeScore buckets the vendor's total transacted amount.
func VolumeScore(totalAmount decimal.Decimal) float64 {
	switch {
	case totalAmount.GreaterThanOrEqual(decimal.NewFromInt(10_000_000)):
		return 100
	case totalAmount.GreaterThanOrEqual(decimal.NewFromInt(1_000_000)):
		return 80
	case totalAmount.GreaterThanOrEqual(decimal.NewFromInt(100_000)):
		return 60
	case totalAmount.GreaterThanOrEqual(decimal.NewFromInt(10_000)):
		return 40
	default:
		return 20
	}
}

// OverallScore is the arithmetic mean of the three components, 2dp.
func OverallScore(reliability, history, volume float64) decimal.Decimal {
	return utils.Round2(decimal.NewFromFloat((reliability + history + volume) / 3))
}

// ComputeRiskLevel classifies the vendor from a blend of the raw on-time
// percentage and the volume component midpoint. This is intentionally NOT a
// function of the overall score: a vendor can score well overall on history
// volume and still classify as higher risk on poor on-time behavior.
func ComputeRiskLevel(onTimePct float64, volumeScore float64) RiskLevel {
	blended := 0.6*onTimePct + 0.4*volumeScore
	switch {
	case blended >= 70:
		return RiskLevelLow
	case blended >= 40:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// ComputeVendorScores rebuilds the vendor_scores rows for one company.
// Inputs per vendor: on-time percentage from the cycle row when present
// (neutral default otherwise), transaction count, and total transacted
// amount. Full replace per company; idempotent per invocation.
func ComputeVendorScores(ctx context.Context, db *gorm.DB, companyGuid string) error {
	if strings.TrimSpace(companyGuid) == "" {
		return utils.NewConfigurationError("companyGuid")
	}
	now := time.Now().UTC()

	var vendors []Vendor
	if err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Find(&vendors).Error; err != nil {
		return utils.NewRecalculationError("vendor query", err)
	}
	if len(vendors) == 0 {
		// Still clear any orphaned scores.
		if err := db.WithContext(ctx).
			Where("company_guid = ?", companyGuid).
			Delete(&VendorScore{}).Error; err != nil {
			return utils.NewRecalculationError("vendor score replace", err)
		}
		return nil
	}

	var cycles []PaymentCycle
	if err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Find(&cycles).Error; err != nil {
		return utils.NewRecalculationError("payment cycle query", err)
	}
	cycleByVendor := make(map[uint]PaymentCycle, len(cycles))
	for _, c := range cycles {
		cycleByVendor[c.VendorId] = c
	}

	activity, err := loadVendorActivity(ctx, db, companyGuid)
	if err != nil {
		return utils.NewRecalculationError("vendor activity query", err)
	}

	sort.Slice(vendors, func(i, j int) bool { return vendors[i].ID < vendors[j].ID })

	rows := make([]VendorScore, 0, len(vendors))
	for _, vendor := range vendors {
		act := activity[utils.NormalizePartyName(vendor.Name)]

		onTimePct := neutralOnTimePct
		if cycle, ok := cycleByVendor[vendor.ID]; ok {
			total := cycle.OnTimeCount + cycle.DelayedCount
			if total > 0 {
				onTimePct = float64(cycle.OnTimeCount) / float64(total) * 100
			}
		}

		reliability := ReliabilityScore(onTimePct)
		history := PaymentHistoryScore(act.count)
		volume := VolumeScore(act.total)

		rows = append(rows, VendorScore{
			CompanyGuid:         companyGuid,
			VendorId:            vendor.ID,
			VendorName:          vendor.Name,
			ReliabilityScore:    decimal.NewFromFloat(reliability),
			PaymentHistoryScore: decimal.NewFromFloat(history),
			VolumeScore:         decimal.NewFromFloat(volume),
			OverallScore:        OverallScore(reliability, history, volume),
			OnTimePct:           utils.Round2(decimal.NewFromFloat(onTimePct)),
			TransactionCount:    act.count,
			TotalAmount:         act.total,
			RiskLevel:           ComputeRiskLevel(onTimePct, volume),
			CalculatedAt:        now,
		})
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_guid = ?", companyGuid).Delete(&VendorScore{}).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return utils.NewRecalculationError("vendor score replace", err)
	}
	return nil
}

// GetVendorScores lists the current scores ordered best-first.
func GetVendorScores(ctx context.Context, db *gorm.DB, companyGuid string) ([]VendorScore, error) {
	if strings.TrimSpace(companyGuid) == "" {
		return nil, utils.NewConfigurationError("companyGuid")
	}
	var rows []VendorScore
	if err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Order("overall_score DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type vendorActivity struct {
	count int
	total decimal.Decimal
}

// loadVendorActivity aggregates payable-side transaction count and absolute
// amount per vendor name, from vouchers when present else from coarse
// transactions.
func loadVendorActivity(ctx context.Context, db *gorm.DB, companyGuid string) (map[string]vendorActivity, error) {
	vendorTypes := append(append([]VoucherType{}, payableVoucherTypes...), VoucherTypePayment)

	type aggRow struct {
		PartyName string
		Cnt       int
		Total     decimal.Decimal
	}

	var voucherCount int64
	if err := db.WithContext(ctx).Model(&Voucher{}).
		Where("company_guid = ?", companyGuid).
		Count(&voucherCount).Error; err != nil {
		return nil, err
	}

	var rows []aggRow
	if voucherCount > 0 {
		if err := db.WithContext(ctx).Model(&Voucher{}).
			Select("party_name", "COUNT(*) AS cnt", "SUM(ABS(total_amount)) AS total").
			Where("company_guid = ?", companyGuid).
			Where("is_cancelled = ?", false).
			Where("voucher_type IN ?", vendorTypes).
			Group("party_name").
			Find(&rows).Error; err != nil {
			return nil, err
		}
	} else {
		if err := db.WithContext(ctx).Model(&Transaction{}).
			Select("party_name", "COUNT(*) AS cnt", "SUM(ABS(amount)) AS total").
			Where("company_guid = ?", companyGuid).
			Where("transaction_type IN ?", vendorTypes).
			Group("party_name").
			Find(&rows).Error; err != nil {
			return nil, err
		}
	}

	out := make(map[string]vendorActivity, len(rows))
	for _, r := range rows {
		key := utils.NormalizePartyName(r.PartyName)
		act := out[key]
		act.count += r.Cnt
		act.total = act.total.Add(r.Total)
		out[key] = act
	}
	return out, nil
}

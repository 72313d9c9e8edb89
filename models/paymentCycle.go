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

// Settlement gaps at or under this many days count as on-time.
const onTimeThresholdDays = 30

// PaymentCycle is derived data: one row per vendor summarising the elapsed
// days between that vendor's consecutive payments. Vendors with fewer than
// two payments get no row - an average over zero samples is undefined and is
// never reported as 0.
type PaymentCycle struct {
	ID           uint            `gorm:"primary_key" json:"id"`
	CompanyGuid  string          `gorm:"uniqueIndex:idx_cycle_company_vendor,priority:1;size:64;not null" json:"company_guid"`
	VendorId     uint            `gorm:"uniqueIndex:idx_cycle_company_vendor,priority:2;not null" json:"vendor_id"`
	VendorName   string          `gorm:"size:255;not null" json:"vendor_name"`
	AvgDays      decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"avg_days"`
	MinDays      int             `gorm:"default:0" json:"min_days"`
	MaxDays      int             `gorm:"default:0" json:"max_days"`
	CycleCount   int             `gorm:"default:0" json:"cycle_count"`
	OnTimeCount  int             `gorm:"default:0" json:"on_time_count"`
	DelayedCount int             `gorm:"default:0" json:"delayed_count"`
	CalculatedAt time.Time       `gorm:"not null" json:"calculated_at"`
}

// CycleStats is the pure aggregation over one vendor's ordered payment dates.
type CycleStats struct {
	AvgDays      decimal.Decimal
	MinDays      int
	MaxDays      int
	CycleCount   int
	OnTimeCount  int
	DelayedCount int
}

// ComputeCycleStats derives settlement statistics from a vendor's payment
// dates. The first payment contributes no sample (no predecessor). Returns
// ok=false when fewer than two payments exist.
func ComputeCycleStats(dates []time.Time) (CycleStats, bool) {
	if len(dates) < 2 {
		return CycleStats{}, false
	}
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var stats CycleStats
	sum := 0
	for i := 1; i < len(sorted); i++ {
		gap := utils.DaysBetween(sorted[i-1], sorted[i])
		if gap < 0 {
			gap = 0
		}
		if stats.CycleCount == 0 || gap < stats.MinDays {
			stats.MinDays = gap
		}
		if gap > stats.MaxDays {
			stats.MaxDays = gap
		}
		if gap <= onTimeThresholdDays {
			stats.OnTimeCount++
		} else {
			stats.DelayedCount++
		}
		sum += gap
		stats.CycleCount++
	}
	stats.AvgDays = utils.Round2(decimal.NewFromInt(int64(sum)).
		Div(decimal.NewFromInt(int64(stats.CycleCount))))
	return stats, true
}

// ComputePaymentCycles rebuilds the payment_cycles rows for one company from
// its payment-type line items. Full replace per company in one transaction;
// idempotent per invocation.
func ComputePaymentCycles(ctx context.Context, db *gorm.DB, companyGuid string) error {
	if strings.TrimSpace(companyGuid) == "" {
		return utils.NewConfigurationError("companyGuid")
	}
	logger := config.GetLogger()
	now := time.Now().UTC()

	paymentDates, err := loadVendorPaymentDates(ctx, db, companyGuid)
	if err != nil {
		return utils.NewRecalculationError("payment cycle source query", err)
	}

	vendorIds, err := VendorIdsByNormalizedName(ctx, db, companyGuid)
	if err != nil {
		return utils.NewRecalculationError("vendor lookup", err)
	}

	names := make([]string, 0, len(paymentDates))
	for name := range paymentDates {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]PaymentCycle, 0, len(names))
	for _, name := range names {
		stats, ok := ComputeCycleStats(paymentDates[name].dates)
		if !ok {
			continue
		}
		vendorId, found := vendorIds[name]
		if !found {
			logger.WithFields(logrus.Fields{
				"module":      "models",
				"funcName":    "ComputePaymentCycles",
				"companyGuid": companyGuid,
				"partyName":   paymentDates[name].displayName,
			}).Warn("payment cycle party not found in vendor masters; dropping")
			continue
		}
		rows = append(rows, PaymentCycle{
			CompanyGuid:  companyGuid,
			VendorId:     vendorId,
			VendorName:   paymentDates[name].displayName,
			AvgDays:      stats.AvgDays,
			MinDays:      stats.MinDays,
			MaxDays:      stats.MaxDays,
			CycleCount:   stats.CycleCount,
			OnTimeCount:  stats.OnTimeCount,
			DelayedCount: stats.DelayedCount,
			CalculatedAt: now,
		})
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_guid = ?", companyGuid).Delete(&PaymentCycle{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return utils.NewRecalculationError("payment cycle replace", err)
	}
	return nil
}

type vendorPayments struct {
	displayName string
	dates       []time.Time
}

// loadVendorPaymentDates groups payment dates by normalized vendor name,
// reading vouchers when present and falling back to coarse transactions for
// degraded companies.
func loadVendorPaymentDates(ctx context.Context, db *gorm.DB, companyGuid string) (map[string]*vendorPayments, error) {
	out := make(map[string]*vendorPayments)

	var voucherCount int64
	if err := db.WithContext(ctx).Model(&Voucher{}).
		Where("company_guid = ?", companyGuid).
		Where("voucher_type = ?", VoucherTypePayment).
		Count(&voucherCount).Error; err != nil {
		return nil, err
	}

	if voucherCount > 0 {
		var vouchers []Voucher
		if err := db.WithContext(ctx).
			Select("party_name", "date").
			Where("company_guid = ?", companyGuid).
			Where("voucher_type = ?", VoucherTypePayment).
			Where("is_cancelled = ?", false).
			Order("date ASC").
			Find(&vouchers).Error; err != nil {
			return nil, err
		}
		for _, v := range vouchers {
			appendPayment(out, v.PartyName, v.Date)
		}
		return out, nil
	}

	var txns []Transaction
	if err := db.WithContext(ctx).
		Select("party_name", "date").
		Where("company_guid = ?", companyGuid).
		Where("transaction_type = ?", VoucherTypePayment).
		Order("date ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	for _, t := range txns {
		appendPayment(out, t.PartyName, t.Date)
	}
	return out, nil
}

func appendPayment(m map[string]*vendorPayments, partyName string, date time.Time) {
	key := utils.NormalizePartyName(partyName)
	if key == "" {
		return
	}
	vp, ok := m[key]
	if !ok {
		vp = &vendorPayments{displayName: strings.TrimSpace(partyName)}
		m[key] = vp
	}
	vp.dates = append(vp.dates, date)
}

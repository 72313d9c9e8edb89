package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/cache"
	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AgingTotals struct {
	Current0To30     decimal.Decimal `json:"current_0_30_days"`
	Current31To60    decimal.Decimal `json:"current_31_60_days"`
	Current61To90    decimal.Decimal `json:"current_61_90_days"`
	CurrentOver90    decimal.Decimal `json:"current_over_90_days"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

func (t *AgingTotals) add(row OutstandingAging) {
	t.Current0To30 = t.Current0To30.Add(row.Current0To30)
	t.Current31To60 = t.Current31To60.Add(row.Current31To60)
	t.Current61To90 = t.Current61To90.Add(row.Current61To90)
	t.CurrentOver90 = t.CurrentOver90.Add(row.CurrentOver90)
	t.TotalOutstanding = t.TotalOutstanding.Add(row.TotalOutstanding)
}

// AgingSummary is the read-path payload. Source reports where it came from:
// cache, materialized (dashboard_metrics fast path) or recomputed (legacy
// query over outstanding_aging).
type AgingSummary struct {
	Data         []OutstandingAging `json:"data"`
	Totals       AgingTotals        `json:"totals"`
	Source       string             `json:"source"`
	CalculatedAt time.Time          `json:"calculated_at"`
}

// MaxSyncTimestamp returns the newest last_sync_at across every ingested
// entity table for the company. Zero time when nothing has synced yet.
func MaxSyncTimestamp(ctx context.Context, db *gorm.DB, companyGuid string) (time.Time, error) {
	var maxAt time.Time
	queries := []struct {
		model interface{}
	}{
		{&Vendor{}},
		{&Customer{}},
		{&Voucher{}},
		{&Transaction{}},
	}
	for _, q := range queries {
		var t *time.Time
		if err := db.WithContext(ctx).Model(q.model).
			Select("MAX(last_sync_at)").
			Where("company_guid = ?", companyGuid).
			Scan(&t).Error; err != nil {
			return time.Time{}, err
		}
		if t != nil && t.After(maxAt) {
			maxAt = *t
		}
	}
	return maxAt, nil
}

// GetAgingSummary serves the aging report cache-first. A recompute only runs
// when the live max sync timestamp is strictly newer than the cached
// metadata, when no metadata exists, or on forceRefresh; otherwise readers
// get the cached or previously materialized answer. Best effort by design:
// the read path never blocks on a fresh recompute unless forced.
func GetAgingSummary(ctx context.Context, db *gorm.DB, ac *cache.AnalyticsCache, companyGuid string, entityType string, forceRefresh bool) (*AgingSummary, error) {
	if strings.TrimSpace(companyGuid) == "" {
		return nil, utils.NewConfigurationError("companyGuid")
	}
	if !ValidEntityType(entityType) {
		return nil, utils.NewConfigurationError("entityType")
	}
	logger := config.GetLogger()

	liveMax, err := MaxSyncTimestamp(ctx, db, companyGuid)
	if err != nil {
		return nil, utils.NewRecalculationError("sync timestamp query", err)
	}
	cachedMax, err := ac.GetSyncMeta(ctx, companyGuid)
	if err != nil {
		// Cache trouble is not a read failure; fall through to the store.
		config.LogError(logger, "models", "GetAgingSummary", "sync meta read", companyGuid, err)
		cachedMax = nil
	}

	stale := cache.NeedsRefresh(liveMax, cachedMax, forceRefresh)
	cacheKey := cache.AgingKey(companyGuid, entityType)

	if !stale {
		var cached AgingSummary
		ok, err := ac.Get(ctx, cacheKey, &cached)
		if err != nil {
			config.LogError(logger, "models", "GetAgingSummary", "cache read", cacheKey, err)
		} else if ok {
			cached.Source = cache.SourceCache
			return &cached, nil
		}
	}

	if stale {
		if _, err := ComputeOutstandingAging(ctx, db, companyGuid); err != nil {
			return nil, err
		}
		// The materialized totals must track the rows just written, or the
		// fast path below would serve pre-recompute totals over fresh rows.
		if err := RebuildDashboardMetrics(ctx, db, companyGuid); err != nil {
			return nil, err
		}
	}

	summary, err := queryAgingSummary(ctx, db, companyGuid, entityType)
	if err != nil {
		return nil, err
	}

	if err := ac.Set(ctx, cacheKey, summary, ac.TTL()); err != nil {
		config.LogError(logger, "models", "GetAgingSummary", "cache write", cacheKey, err)
	}
	if stale && !liveMax.IsZero() {
		if err := ac.SetSyncMeta(ctx, companyGuid, liveMax); err != nil {
			config.LogError(logger, "models", "GetAgingSummary", "sync meta write", companyGuid, err)
		}
	}
	return summary, nil
}

// queryAgingSummary builds the payload from the derived rows, preferring the
// materialized dashboard metrics for the grand totals when the fast path is
// available. A broken fast path is logged and silently recovered; callers
// only ever see the Source tag change.
func queryAgingSummary(ctx context.Context, db *gorm.DB, companyGuid string, entityType string) (*AgingSummary, error) {
	logger := config.GetLogger()

	q := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Order("total_outstanding DESC")
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	var rows []OutstandingAging
	if err := q.Find(&rows).Error; err != nil {
		return nil, utils.NewRecalculationError("aging query", err)
	}

	summary := &AgingSummary{
		Data:         rows,
		Source:       cache.SourceRecomputed,
		CalculatedAt: time.Now().UTC(),
	}
	for _, row := range rows {
		summary.Totals.add(row)
	}
	if len(rows) > 0 {
		summary.CalculatedAt = rows[0].CalculatedAt
	}

	// The dashboard_metrics fast path only materializes the receivable side.
	if config.DashboardFastPathEnabled() && entityType == string(EntityTypeCustomer) {
		metric, err := CurrentDashboardMetric(ctx, db, companyGuid)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			// No row materialized for today; the legacy totals stand.
		} else if err != nil {
			srcErr := utils.NewSourceUnavailableError("dashboard_metrics", err)
			logger.WithFields(logrus.Fields{
				"module":      "models",
				"funcName":    "queryAgingSummary",
				"companyGuid": companyGuid,
			}).Warn(srcErr.Error())
		} else if metric != nil {
			summary.Totals = AgingTotals{
				Current0To30:     metric.Receivable0To30,
				Current31To60:    metric.Receivable31To60,
				Current61To90:    metric.Receivable61To90,
				CurrentOver90:    metric.ReceivableOver90,
				TotalOutstanding: metric.TotalReceivable,
			}
			summary.Source = cache.SourceMaterialized
			summary.CalculatedAt = metric.CalculatedAt
		}
	}
	return summary, nil
}

// PartyAgingLine is one open item in a party drill-down.
type PartyAgingLine struct {
	VoucherNumber     string          `json:"voucher_number"`
	VoucherType       VoucherType     `json:"voucher_type"`
	Date              time.Time       `json:"date"`
	DueDate           *time.Time      `json:"due_date"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AmountOutstanding decimal.Decimal `json:"amount_outstanding"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	AgeDays           int             `json:"age_days"`
	Bucket            string          `json:"bucket"`
}

type PartyAgingSummary struct {
	ByBucket         map[string]decimal.Decimal `json:"by_bucket"`
	TotalOutstanding decimal.Decimal            `json:"total_outstanding"`
	OldestInvoice    *time.Time                 `json:"oldest_invoice"`
	NewestInvoice    *time.Time                 `json:"newest_invoice"`
}

type PartyAgingDetail struct {
	PartyName string             `json:"party_name"`
	Summary   PartyAgingSummary  `json:"summary"`
	LineItems []PartyAgingLine   `json:"line_items"`
}

var bucketLabels = [4]string{"0-30", "31-60", "61-90", "90+"}

// GetPartyAgingDetail returns the open items behind one party's aging row.
func GetPartyAgingDetail(ctx context.Context, db *gorm.DB, companyGuid string, partyName string, entityType string) (*PartyAgingDetail, error) {
	if strings.TrimSpace(companyGuid) == "" {
		return nil, utils.NewConfigurationError("companyGuid")
	}
	if strings.TrimSpace(partyName) == "" {
		return nil, utils.NewConfigurationError("partyName")
	}
	if !ValidEntityType(entityType) || entityType == "" {
		return nil, utils.NewConfigurationError("entityType")
	}

	types := AgingVoucherTypesFor(EntityType(entityType))
	asOf := time.Now().UTC()

	var vouchers []Voucher
	if err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Where("LOWER(party_name) = ?", utils.NormalizePartyName(partyName)).
		Where("is_cancelled = ?", false).
		Where("payment_status IN ?", []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPartial}).
		Where("amount_outstanding > 0").
		Where("voucher_type IN ?", types).
		Order("date DESC").
		Find(&vouchers).Error; err != nil {
		return nil, utils.NewRecalculationError("party aging query", err)
	}

	detail := &PartyAgingDetail{
		PartyName: partyName,
		Summary: PartyAgingSummary{
			ByBucket: map[string]decimal.Decimal{
				bucketLabels[0]: decimal.Zero,
				bucketLabels[1]: decimal.Zero,
				bucketLabels[2]: decimal.Zero,
				bucketLabels[3]: decimal.Zero,
			},
		},
		LineItems: make([]PartyAgingLine, 0, len(vouchers)),
	}
	for _, v := range vouchers {
		age := AgingAgeDays(asOf, AgingItem{Date: v.Date, DueDate: v.DueDate})
		bucket := bucketLabels[AgingBucketIndex(age)]
		detail.LineItems = append(detail.LineItems, PartyAgingLine{
			VoucherNumber:     v.VoucherNumber,
			VoucherType:       v.VoucherType,
			Date:              v.Date,
			DueDate:           v.DueDate,
			TotalAmount:       v.TotalAmount,
			AmountOutstanding: v.AmountOutstanding,
			PaymentStatus:     v.PaymentStatus,
			AgeDays:           age,
			Bucket:            bucket,
		})
		detail.Summary.ByBucket[bucket] = detail.Summary.ByBucket[bucket].Add(v.AmountOutstanding)
		detail.Summary.TotalOutstanding = detail.Summary.TotalOutstanding.Add(v.AmountOutstanding)
		d := v.Date
		if detail.Summary.OldestInvoice == nil || d.Before(*detail.Summary.OldestInvoice) {
			dd := d
			detail.Summary.OldestInvoice = &dd
		}
		if detail.Summary.NewestInvoice == nil || d.After(*detail.Summary.NewestInvoice) {
			dd := d
			detail.Summary.NewestInvoice = &dd
		}
	}
	return detail, nil
}

package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DashboardMetric is the materialized fast-read form of the receivable
// analytics: one row per (company, as-of date), upserted after every
// recompute. Readers probe it before falling back to the legacy query path.
type DashboardMetric struct {
	ID                   uint            `gorm:"primary_key" json:"id"`
	CompanyGuid          string          `gorm:"uniqueIndex:idx_dm_company_date,priority:1;size:64;not null" json:"company_guid"`
	DataAsOfDate         time.Time       `gorm:"uniqueIndex:idx_dm_company_date,priority:2;type:date;not null" json:"data_as_of_date"`
	TotalReceivable      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_receivable"`
	TotalPayable         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_payable"`
	Receivable0To30      decimal.Decimal `gorm:"column:receivable_0_30;type:decimal(20,4);default:0" json:"receivable_0_30"`
	Receivable31To60     decimal.Decimal `gorm:"column:receivable_31_60;type:decimal(20,4);default:0" json:"receivable_31_60"`
	Receivable61To90     decimal.Decimal `gorm:"column:receivable_61_90;type:decimal(20,4);default:0" json:"receivable_61_90"`
	ReceivableOver90     decimal.Decimal `gorm:"column:receivable_90_plus;type:decimal(20,4);default:0" json:"receivable_90_plus"`
	CustomerCount        int             `gorm:"default:0" json:"customer_count"`
	OverdueCustomerCount int             `gorm:"default:0" json:"overdue_customer_count"`
	TopOverdueCustomers  []byte          `gorm:"type:json" json:"top_overdue_customers"`
	IsValid              bool            `gorm:"default:true" json:"is_valid"`
	CalculatedAt         time.Time       `gorm:"not null" json:"calculated_at"`
}

type overdueCustomer struct {
	Name    string          `json:"name"`
	Overdue decimal.Decimal `json:"overdue"`
}

// RebuildDashboardMetrics materializes today's dashboard row from the
// freshly written outstanding_aging rows. Runs after the aging replace
// commits; the sync coordinator sequences cache invalidation after this.
func RebuildDashboardMetrics(ctx context.Context, db *gorm.DB, companyGuid string) error {
	var rows []OutstandingAging
	if err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Find(&rows).Error; err != nil {
		return utils.NewRecalculationError("dashboard metrics query", err)
	}

	now := time.Now().UTC()
	metric := DashboardMetric{
		CompanyGuid:  companyGuid,
		DataAsOfDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		IsValid:      true,
		CalculatedAt: now,
	}

	var topOverdue []overdueCustomer
	for _, row := range rows {
		switch row.EntityType {
		case EntityTypeCustomer:
			metric.TotalReceivable = metric.TotalReceivable.Add(row.TotalOutstanding)
			metric.Receivable0To30 = metric.Receivable0To30.Add(row.Current0To30)
			metric.Receivable31To60 = metric.Receivable31To60.Add(row.Current31To60)
			metric.Receivable61To90 = metric.Receivable61To90.Add(row.Current61To90)
			metric.ReceivableOver90 = metric.ReceivableOver90.Add(row.CurrentOver90)
			metric.CustomerCount++
			overdue := row.Current61To90.Add(row.CurrentOver90)
			if overdue.IsPositive() {
				metric.OverdueCustomerCount++
				topOverdue = append(topOverdue, overdueCustomer{Name: row.PartyName, Overdue: overdue})
			}
		case EntityTypeVendor:
			metric.TotalPayable = metric.TotalPayable.Add(row.TotalOutstanding)
		}
	}

	// Keep only the five largest overdue balances for the dashboard card.
	for i := 0; i < len(topOverdue); i++ {
		for j := i + 1; j < len(topOverdue); j++ {
			if topOverdue[j].Overdue.GreaterThan(topOverdue[i].Overdue) {
				topOverdue[i], topOverdue[j] = topOverdue[j], topOverdue[i]
			}
		}
	}
	if len(topOverdue) > 5 {
		topOverdue = topOverdue[:5]
	}
	if len(topOverdue) > 0 {
		b, err := json.Marshal(topOverdue)
		if err != nil {
			return err
		}
		metric.TopOverdueCustomers = b
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_guid"}, {Name: "data_as_of_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_receivable", "total_payable",
			"receivable_0_30", "receivable_31_60", "receivable_61_90", "receivable_90_plus",
			"customer_count", "overdue_customer_count", "top_overdue_customers",
			"is_valid", "calculated_at",
		}),
	}).Create(&metric).Error
	if err != nil {
		return utils.NewRecalculationError("dashboard metrics upsert", err)
	}
	return nil
}

// CurrentDashboardMetric returns today's valid materialized row, or
// utils.ErrorRecordNotFound when none exists (callers then use the legacy
// path, or surface 404).
func CurrentDashboardMetric(ctx context.Context, db *gorm.DB, companyGuid string) (*DashboardMetric, error) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var metric DashboardMetric
	err := db.WithContext(ctx).
		Where("company_guid = ?", companyGuid).
		Where("data_as_of_date = ?", today).
		Where("is_valid = ?", true).
		Order("calculated_at DESC").
		First(&metric).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &metric, nil
}

package tallysync

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ingestBatchSize = 500

// dateLayout is what the connector emits for voucher and transaction dates.
const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseAmount(n json.Number) decimal.Decimal {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ingester runs the data steps of a sync: fetch from the connector, upsert
// into MySQL, stamp last_sync_at. One method per step so the coordinator can
// report per-step counts.
type ingester struct {
	db     *gorm.DB
	client Client
	logger *logrus.Logger
}

func (ig *ingester) runStep(ctx context.Context, step SyncStep, companyGuid string, syncedAt time.Time, progress func(done, total int)) (int, error) {
	switch step {
	case StepMasters:
		return ig.ingestMasters(ctx, companyGuid)
	case StepVendors:
		return ig.ingestVendors(ctx, companyGuid, syncedAt)
	case StepCustomers:
		return ig.ingestCustomers(ctx, companyGuid, syncedAt)
	case StepVouchers:
		return ig.ingestVouchers(ctx, companyGuid, syncedAt, progress)
	case StepTransactions:
		return ig.ingestTransactions(ctx, companyGuid, syncedAt)
	default:
		return 0, nil
	}
}

func (ig *ingester) ingestMasters(ctx context.Context, companyGuid string) (int, error) {
	company, err := ig.client.FetchCompany(ctx, companyGuid)
	if err != nil {
		return 0, err
	}
	if company.Guid == "" {
		company.Guid = companyGuid
	}
	row := models.Company{Guid: company.Guid, Name: company.Name, Active: true}
	err = ig.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "active", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (ig *ingester) ingestVendors(ctx context.Context, companyGuid string, syncedAt time.Time) (int, error) {
	parties, err := ig.client.FetchVendors(ctx, companyGuid)
	if err != nil {
		return 0, err
	}
	rows := make([]models.Vendor, 0, len(parties))
	for _, p := range parties {
		if p.Guid == "" || p.Name == "" {
			continue
		}
		rows = append(rows, models.Vendor{
			Guid:           p.Guid,
			CompanyGuid:    companyGuid,
			Name:           p.Name,
			OpeningBalance: parseAmount(p.OpeningBalance),
			CurrentBalance: parseAmount(p.CurrentBalance),
			LastSyncAt:     &syncedAt,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err = ig.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}, {Name: "company_guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "opening_balance", "current_balance", "last_sync_at", "updated_at"}),
	}).CreateInBatches(rows, ingestBatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (ig *ingester) ingestCustomers(ctx context.Context, companyGuid string, syncedAt time.Time) (int, error) {
	parties, err := ig.client.FetchCustomers(ctx, companyGuid)
	if err != nil {
		return 0, err
	}
	rows := make([]models.Customer, 0, len(parties))
	for _, p := range parties {
		if p.Guid == "" || p.Name == "" {
			continue
		}
		rows = append(rows, models.Customer{
			Guid:           p.Guid,
			CompanyGuid:    companyGuid,
			Name:           p.Name,
			OpeningBalance: parseAmount(p.OpeningBalance),
			CurrentBalance: parseAmount(p.CurrentBalance),
			LastSyncAt:     &syncedAt,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err = ig.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}, {Name: "company_guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "opening_balance", "current_balance", "last_sync_at", "updated_at"}),
	}).CreateInBatches(rows, ingestBatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (ig *ingester) ingestVouchers(ctx context.Context, companyGuid string, syncedAt time.Time, progress func(done, total int)) (int, error) {
	vouchers, err := ig.client.FetchVouchers(ctx, companyGuid)
	if err != nil {
		return 0, err
	}
	rows := make([]models.Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		date, ok := parseDate(v.Date)
		if !ok || v.Guid == "" {
			ig.logger.WithFields(logrus.Fields{
				"company_guid": companyGuid,
				"voucher_guid": v.Guid,
				"date":         v.Date,
			}).Warn("skipping voucher with missing guid or unparseable date")
			continue
		}
		row := models.Voucher{
			Guid:              v.Guid,
			CompanyGuid:       companyGuid,
			PartyName:         v.PartyName,
			VoucherType:       models.VoucherType(v.VoucherType),
			VoucherNumber:     v.VoucherNumber,
			Date:              date,
			TotalAmount:       parseAmount(v.TotalAmount),
			AmountOutstanding: parseAmount(v.AmountOutstanding),
			PaymentStatus:     models.PaymentStatus(v.PaymentStatus),
			IsCancelled:       v.IsCancelled,
			LastSyncAt:        &syncedAt,
		}
		if due, ok := parseDate(v.DueDate); ok {
			row.DueDate = &due
		}
		rows = append(rows, row)
	}
	if progress != nil {
		progress(0, len(rows))
	}
	done := 0
	for start := 0; start < len(rows); start += ingestBatchSize {
		end := start + ingestBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		err = ig.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "guid"}, {Name: "company_guid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"party_name", "voucher_type", "voucher_number", "date", "due_date",
				"total_amount", "amount_outstanding", "payment_status", "is_cancelled",
				"last_sync_at", "updated_at",
			}),
		}).Create(&batch).Error
		if err != nil {
			return done, err
		}
		done = end
		if progress != nil {
			progress(done, len(rows))
		}
	}
	return len(rows), nil
}

func (ig *ingester) ingestTransactions(ctx context.Context, companyGuid string, syncedAt time.Time) (int, error) {
	txns, err := ig.client.FetchTransactions(ctx, companyGuid)
	if err != nil {
		return 0, err
	}
	rows := make([]models.Transaction, 0, len(txns))
	for _, t := range txns {
		date, ok := parseDate(t.Date)
		if !ok || t.Guid == "" {
			continue
		}
		rows = append(rows, models.Transaction{
			Guid:            t.Guid,
			CompanyGuid:     companyGuid,
			PartyName:       t.PartyName,
			TransactionType: models.VoucherType(t.TransactionType),
			Date:            date,
			Amount:          parseAmount(t.Amount),
			LastSyncAt:      &syncedAt,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err = ig.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guid"}, {Name: "company_guid"}},
		DoUpdates: clause.AssignmentColumns([]string{"party_name", "transaction_type", "date", "amount", "last_sync_at", "updated_at"}),
	}).CreateInBatches(rows, ingestBatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

package models_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/models"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/shopspring/decimal"
)

func TestOutstandingAgingEndToEnd(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "tally_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatal("db is nil after ConnectDatabaseWithRetry")
	}

	const companyGuid = "co-aging-1"
	ctx = utils.SetCompanyGuidInContext(ctx, companyGuid)
	now := time.Now().UTC()
	syncedAt := now

	if err := db.WithContext(ctx).Create(&models.Company{Guid: companyGuid, Name: "Aging Test Co", Active: true}).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	acme := models.Customer{Guid: "cust-1", CompanyGuid: companyGuid, Name: "Acme Corp", LastSyncAt: &syncedAt}
	if err := db.WithContext(ctx).Create(&acme).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	omega := models.Vendor{Guid: "vend-1", CompanyGuid: companyGuid, Name: "Omega Supplies", LastSyncAt: &syncedAt}
	if err := db.WithContext(ctx).Create(&omega).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	due10 := now.AddDate(0, 0, -10)
	due120 := now.AddDate(0, 0, -120)
	due45 := now.AddDate(0, 0, -45)
	vouchers := []models.Voucher{
		// Two open receivables for Acme: 100 at 10 days, 50 at 120 days.
		{Guid: "v-1", CompanyGuid: companyGuid, PartyName: "Acme Corp", VoucherType: models.VoucherTypeSales,
			Date: due10.AddDate(0, 0, -15), DueDate: &due10, TotalAmount: decimal.NewFromInt(100),
			AmountOutstanding: decimal.NewFromInt(100), PaymentStatus: models.PaymentStatusUnpaid, LastSyncAt: &syncedAt},
		{Guid: "v-2", CompanyGuid: companyGuid, PartyName: "acme corp", VoucherType: models.VoucherTypeSales,
			Date: due120.AddDate(0, 0, -15), DueDate: &due120, TotalAmount: decimal.NewFromInt(50),
			AmountOutstanding: decimal.NewFromInt(50), PaymentStatus: models.PaymentStatusPartial, LastSyncAt: &syncedAt},
		// Paid and cancelled vouchers contribute nothing.
		{Guid: "v-3", CompanyGuid: companyGuid, PartyName: "Acme Corp", VoucherType: models.VoucherTypeSales,
			Date: due45, DueDate: &due45, TotalAmount: decimal.NewFromInt(900),
			AmountOutstanding: decimal.Zero, PaymentStatus: models.PaymentStatusPaid, LastSyncAt: &syncedAt},
		{Guid: "v-4", CompanyGuid: companyGuid, PartyName: "Acme Corp", VoucherType: models.VoucherTypeSales,
			Date: due45, DueDate: &due45, TotalAmount: decimal.NewFromInt(70),
			AmountOutstanding: decimal.NewFromInt(70), PaymentStatus: models.PaymentStatusUnpaid, IsCancelled: true, LastSyncAt: &syncedAt},
		// One open payable for the vendor, 45 days old.
		{Guid: "v-5", CompanyGuid: companyGuid, PartyName: "Omega Supplies", VoucherType: models.VoucherTypePurchase,
			Date: due45.AddDate(0, 0, -10), DueDate: &due45, TotalAmount: decimal.NewFromInt(30),
			AmountOutstanding: decimal.NewFromInt(30), PaymentStatus: models.PaymentStatusUnpaid, LastSyncAt: &syncedAt},
		// A voucher naming a party the master sync never delivered: dropped.
		{Guid: "v-6", CompanyGuid: companyGuid, PartyName: "Ghost Traders", VoucherType: models.VoucherTypeSales,
			Date: due10, DueDate: &due10, TotalAmount: decimal.NewFromInt(10),
			AmountOutstanding: decimal.NewFromInt(10), PaymentStatus: models.PaymentStatusUnpaid, LastSyncAt: &syncedAt},
	}
	if err := db.WithContext(ctx).Create(&vouchers).Error; err != nil {
		t.Fatalf("seed vouchers: %v", err)
	}

	result, err := models.ComputeOutstandingAging(ctx, db, companyGuid)
	if err != nil {
		t.Fatalf("ComputeOutstandingAging: %v", err)
	}
	if result.Method != models.AgingMethodLineItem {
		t.Errorf("method = %s, want line_item_based", result.Method)
	}
	if result.PartyCount != 2 {
		t.Errorf("party count = %d, want 2 (ghost party must be dropped)", result.PartyCount)
	}

	var acmeRow models.OutstandingAging
	if err := db.WithContext(ctx).
		Where("company_guid = ? AND party_id = ? AND entity_type = ?", companyGuid, acme.ID, models.EntityTypeCustomer).
		First(&acmeRow).Error; err != nil {
		t.Fatalf("load acme aging row: %v", err)
	}
	if !acmeRow.Current0To30.Equal(decimal.NewFromInt(100)) {
		t.Errorf("acme 0-30 = %s, want 100", acmeRow.Current0To30)
	}
	if !acmeRow.CurrentOver90.Equal(decimal.NewFromInt(50)) {
		t.Errorf("acme over-90 = %s, want 50", acmeRow.CurrentOver90)
	}
	if !acmeRow.TotalOutstanding.Equal(decimal.NewFromInt(150)) {
		t.Errorf("acme total = %s, want 150", acmeRow.TotalOutstanding)
	}

	var omegaRow models.OutstandingAging
	if err := db.WithContext(ctx).
		Where("company_guid = ? AND party_id = ? AND entity_type = ?", companyGuid, omega.ID, models.EntityTypeVendor).
		First(&omegaRow).Error; err != nil {
		t.Fatalf("load omega aging row: %v", err)
	}
	if !omegaRow.Current31To60.Equal(decimal.NewFromInt(30)) {
		t.Errorf("omega 31-60 = %s, want 30", omegaRow.Current31To60)
	}

	// Recompute is a full replace: running it again must not duplicate rows.
	if _, err := models.ComputeOutstandingAging(ctx, db, companyGuid); err != nil {
		t.Fatalf("second ComputeOutstandingAging: %v", err)
	}
	var rowCount int64
	if err := db.WithContext(ctx).Model(&models.OutstandingAging{}).
		Where("company_guid = ?", companyGuid).Count(&rowCount).Error; err != nil {
		t.Fatalf("count aging rows: %v", err)
	}
	if rowCount != 2 {
		t.Errorf("aging rows after recompute = %d, want 2", rowCount)
	}
}

// Companies without vouchers fall back to the coarse transaction table, and
// fallback rows must age off the transaction's own date. An earlier build
// aged them from import time, collapsing every historic balance into 0-30 on
// first sync.
func TestOutstandingAgingTransactionFallback(t *testing.T) {
	skipUnlessIntegration(t)

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "tally_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	const companyGuid = "co-fallback-1"
	ctx = utils.SetCompanyGuidInContext(ctx, companyGuid)
	now := time.Now().UTC()

	if err := db.WithContext(ctx).Create(&models.Company{Guid: companyGuid, Name: "Fallback Co", Active: true}).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	cust := models.Customer{Guid: "cust-f1", CompanyGuid: companyGuid, Name: "Legacy Buyer", LastSyncAt: &now}
	if err := db.WithContext(ctx).Create(&cust).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	// Only transactions, synced just now but dated 120 days back.
	txn := models.Transaction{
		Guid: "t-1", CompanyGuid: companyGuid, PartyName: "Legacy Buyer",
		TransactionType: models.VoucherTypeSales,
		Date:            now.AddDate(0, 0, -120),
		Amount:          decimal.NewFromInt(500),
		LastSyncAt:      &now,
	}
	if err := db.WithContext(ctx).Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	result, err := models.ComputeOutstandingAging(ctx, db, companyGuid)
	if err != nil {
		t.Fatalf("ComputeOutstandingAging: %v", err)
	}
	if result.Method != models.AgingMethodTransactionDate {
		t.Errorf("method = %s, want transaction_date_based", result.Method)
	}

	var row models.OutstandingAging
	if err := db.WithContext(ctx).
		Where("company_guid = ? AND party_id = ?", companyGuid, cust.ID).
		First(&row).Error; err != nil {
		t.Fatalf("load aging row: %v", err)
	}
	if !row.CurrentOver90.Equal(decimal.NewFromInt(500)) {
		t.Errorf("over-90 = %s, want 500 (aged from transaction date, not sync time)", row.CurrentOver90)
	}
	if !row.Current0To30.IsZero() {
		t.Errorf("0-30 = %s, want 0", row.Current0To30)
	}
}

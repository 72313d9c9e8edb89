package models

import (
	"bitbucket.org/mmdatafocus/tally_backend/config"
	"bitbucket.org/mmdatafocus/tally_backend/utils"
)

// MigrateTable creates/updates every table this service owns. The ingested
// entity tables (vendors, customers, vouchers, transactions) are written by
// the sync coordinator; the derived tables are owned by the analytics
// engines.
func MigrateTable() {
	db := config.GetDB()
	utils.ErrorPanic(db.AutoMigrate(
		&Company{},
		&Vendor{},
		&Customer{},
		&Voucher{},
		&Transaction{},
		&OutstandingAging{},
		&PaymentCycle{},
		&VendorScore{},
		&DashboardMetric{},
	))
}

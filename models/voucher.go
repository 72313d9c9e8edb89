package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher is the authoritative line item: a single dated financial document
// (invoice, payment, credit/debit note) with an amount and payment status.
type Voucher struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	Guid              string          `gorm:"uniqueIndex:idx_voucher_guid_company,priority:1;size:64;not null" json:"guid"`
	CompanyGuid       string          `gorm:"uniqueIndex:idx_voucher_guid_company,priority:2;index:idx_voucher_company_type,priority:1;size:64;not null" json:"company_guid"`
	PartyName         string          `gorm:"size:255;index" json:"party_name"`
	VoucherType       VoucherType     `gorm:"index:idx_voucher_company_type,priority:2;size:32;not null" json:"voucher_type"`
	VoucherNumber     string          `gorm:"size:64" json:"voucher_number"`
	Date              time.Time       `gorm:"index;not null" json:"date"`
	DueDate           *time.Time      `json:"due_date"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	AmountOutstanding decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount_outstanding"`
	PaymentStatus     PaymentStatus   `gorm:"size:16;default:'UNPAID'" json:"payment_status"`
	IsCancelled       bool            `gorm:"default:false" json:"is_cancelled"`
	LastSyncAt        *time.Time      `gorm:"index" json:"last_sync_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Transaction is the coarse fallback line item kept for companies whose
// early connector versions never synced full vouchers. It carries its own
// transaction date but no due date and no outstanding amount.
type Transaction struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	Guid            string          `gorm:"uniqueIndex:idx_txn_guid_company,priority:1;size:64;not null" json:"guid"`
	CompanyGuid     string          `gorm:"uniqueIndex:idx_txn_guid_company,priority:2;index;size:64;not null" json:"company_guid"`
	PartyName       string          `gorm:"size:255;index" json:"party_name"`
	TransactionType VoucherType     `gorm:"size:32;not null" json:"transaction_type"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	LastSyncAt      *time.Time      `gorm:"index" json:"last_sync_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

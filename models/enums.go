package models

type VoucherType string

const (
	VoucherTypeSales      VoucherType = "Sales"
	VoucherTypePurchase   VoucherType = "Purchase"
	VoucherTypeReceipt    VoucherType = "Receipt"
	VoucherTypePayment    VoucherType = "Payment"
	VoucherTypeCreditNote VoucherType = "CreditNote"
	VoucherTypeDebitNote  VoucherType = "DebitNote"
	VoucherTypeJournal    VoucherType = "Journal"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "UNPAID"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

type EntityType string

const (
	EntityTypeCustomer EntityType = "customer"
	EntityTypeVendor   EntityType = "vendor"
)

// AgingMethod records which source an aging recompute ran against.
type AgingMethod string

const (
	// AgingMethodLineItem: the authoritative voucher table, including due dates.
	AgingMethodLineItem AgingMethod = "line_item_based"
	// AgingMethodTransactionDate: degraded fallback for companies whose early
	// syncs only carried coarse transactions. Ages off the transaction's own
	// date so old items do not collapse into the 0-30 bucket on first import.
	AgingMethodTransactionDate AgingMethod = "transaction_date_based"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Voucher kinds that generate receivables/payables, keyed by entity type.
// This is a fixed, statically known classification: caller input selects one
// of these lists, it is never interpolated into SQL.
var (
	receivableVoucherTypes = []VoucherType{VoucherTypeSales, VoucherTypeDebitNote}
	payableVoucherTypes    = []VoucherType{VoucherTypePurchase, VoucherTypeCreditNote}
)

// AgingVoucherTypesFor returns the voucher kinds contributing to aging for
// the given entity type. Unknown entity types return nil.
func AgingVoucherTypesFor(entityType EntityType) []VoucherType {
	switch entityType {
	case EntityTypeCustomer:
		return receivableVoucherTypes
	case EntityTypeVendor:
		return payableVoucherTypes
	default:
		return nil
	}
}

// ValidEntityType reports whether s names a known entity type.
// Empty string is valid and means "both".
func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityTypeCustomer, EntityTypeVendor, "":
		return true
	default:
		return false
	}
}

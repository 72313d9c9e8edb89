package tallysync

import (
	"encoding/json"
	"time"
)

type SyncTrigger string

const (
	SyncTriggerManual SyncTrigger = "manual"
	SyncTriggerAuto   SyncTrigger = "auto"
)

type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

type SyncStep string

const (
	StepMasters      SyncStep = "masters"
	StepVendors      SyncStep = "vendors"
	StepCustomers    SyncStep = "customers"
	StepVouchers     SyncStep = "vouchers"
	StepTransactions SyncStep = "transactions"
	StepAnalytics    SyncStep = "analytics"
)

// StepOrder is fixed: reference data, then masters, then line items, then the
// analytics recompute. A step failure aborts everything after it.
var StepOrder = []SyncStep{
	StepMasters,
	StepVendors,
	StepCustomers,
	StepVouchers,
	StepTransactions,
	StepAnalytics,
}

// SyncRun is the transient record of one refresh attempt. Owned exclusively
// by the Coordinator; overwritten when the next run for the company starts.
type SyncRun struct {
	CompanyGuid     string             `json:"company_guid"`
	Trigger         SyncTrigger        `json:"trigger"`
	Status          SyncStatus         `json:"status"`
	CurrentStep     SyncStep           `json:"current_step"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      *time.Time         `json:"finished_at"`
	StepCounts      map[SyncStep]int   `json:"step_counts"`
	FailedStep      SyncStep           `json:"failed_step,omitempty"`
	Error           string             `json:"error,omitempty"`
	ProgressCurrent int                `json:"progress_current"`
	ProgressTotal   int                `json:"progress_total"`
	stepStartedAt   time.Time
}

// ProgressResponse is the poll payload for long-running imports.
type ProgressResponse struct {
	IsRunning            bool             `json:"is_running"`
	Trigger              SyncTrigger      `json:"trigger,omitempty"`
	Status               SyncStatus       `json:"status"`
	CurrentStep          SyncStep         `json:"current_step,omitempty"`
	ElapsedMs            int64            `json:"elapsed_ms"`
	PerStepCounts        map[SyncStep]int `json:"per_step_counts"`
	ProgressCurrent      int              `json:"progress_current"`
	ProgressTotal        int              `json:"progress_total"`
	EstimatedRemainingMs int64            `json:"estimated_remaining_ms"`
	FailedStep           SyncStep         `json:"failed_step,omitempty"`
	LastError            string           `json:"last_error,omitempty"`
}

type StartSyncResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Connector payloads. The desktop connector exports Tally's XML as JSON;
// amounts arrive as json.Number because older connector builds quote them.

type tallyCompany struct {
	Guid string `json:"guid"`
	Name string `json:"name"`
}

type tallyParty struct {
	Guid           string      `json:"guid"`
	Name           string      `json:"name"`
	OpeningBalance json.Number `json:"opening_balance"`
	CurrentBalance json.Number `json:"current_balance"`
}

type tallyVoucher struct {
	Guid              string      `json:"guid"`
	PartyName         string      `json:"party_name"`
	VoucherType       string      `json:"voucher_type"`
	VoucherNumber     string      `json:"voucher_number"`
	Date              string      `json:"date"`
	DueDate           string      `json:"due_date"`
	TotalAmount       json.Number `json:"total_amount"`
	AmountOutstanding json.Number `json:"amount_outstanding"`
	PaymentStatus     string      `json:"payment_status"`
	IsCancelled       bool        `json:"is_cancelled"`
}

type tallyTransaction struct {
	Guid            string      `json:"guid"`
	PartyName       string      `json:"party_name"`
	TransactionType string      `json:"transaction_type"`
	Date            string      `json:"date"`
	Amount          json.Number `json:"amount"`
}

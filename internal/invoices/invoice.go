// Package invoices implements the invoice domain for Remit.
// It provides types, data access, and business logic for the invoice
// lifecycle: extraction results, validation findings, approval decisions,
// and export bookkeeping.
package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the central aggregate carried through the processing pipeline.
// Extraction, validation, currency, approval, and export fields are populated
// progressively as the invoice advances through its lifecycle statuses.
type Invoice struct {
	ID       uuid.UUID `json:"id"`
	IntakeID uuid.UUID `json:"intake_id"`

	CreatedBy string `json:"created_by"`
	Status    Status `json:"status"`

	IssuerName         *string    `json:"issuer_name"`
	RecipientName      *string    `json:"recipient_name"`
	InvoiceNumber      *string    `json:"invoice_number"`
	RegistrationNumber *string    `json:"registration_number"`
	IssueDate          *time.Time `json:"issue_date"`
	DueDate            *time.Time `json:"due_date"`

	Currency          string              `json:"currency"`
	TotalInclusiveTax decimal.NullDecimal `json:"total_amount_tax_included"`
	TotalExclusiveTax decimal.NullDecimal `json:"total_amount_tax_excluded"`
	ExchangeRate      decimal.NullDecimal `json:"exchange_rate"`
	HomeAmount        decimal.NullDecimal `json:"home_amount"`

	ExtractedData []byte  `json:"extracted_data,omitempty"`
	RawResponse   *string `json:"raw_response,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`

	IsValid            bool                `json:"is_valid"`
	ValidationErrors   []string            `json:"validation_errors"`
	ValidationWarnings []string            `json:"validation_warnings"`
	CompletenessScore  decimal.NullDecimal `json:"completeness_score"`

	ApprovedBy      *string    `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	ApprovalComment *string    `json:"approval_comment"`
	RejectionReason *string    `json:"rejection_reason"`

	Exported      bool       `json:"exported"`
	ExportedAt    *time.Time `json:"exported_at"`
	ExportBatchID *string    `json:"export_batch_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is a single invoice detail line, owned by exactly one invoice
// and removed with it. LineNumber is unique within an invoice; gaps are
// permitted, duplicates are not.
type LineItem struct {
	ID              uuid.UUID           `json:"id"`
	InvoiceID       uuid.UUID           `json:"invoice_id"`
	LineNumber      int                 `json:"line_number"`
	ItemDescription string              `json:"item_description"`
	Quantity        decimal.NullDecimal `json:"quantity"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	Amount          decimal.NullDecimal `json:"amount"`
	TaxRate         decimal.NullDecimal `json:"tax_rate"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ExtractionCommand carries the data persisted when extraction succeeds.
// RawResponse is stored verbatim alongside the structured fields.
type ExtractionCommand struct {
	IssuerName         *string
	RecipientName      *string
	InvoiceNumber      *string
	RegistrationNumber *string
	IssueDate          *time.Time
	DueDate            *time.Time
	Currency           string
	TotalInclusiveTax  decimal.NullDecimal
	TotalExclusiveTax  decimal.NullDecimal
	ExtractedData      []byte
	RawResponse        string
	LineItems          []LineItemCommand
}

// LineItemCommand carries one extracted detail line. TaxRate is expected
// to be pre-normalized to the [0,100] percentage range.
type LineItemCommand struct {
	LineNumber      int
	ItemDescription string
	Quantity        decimal.NullDecimal
	UnitPrice       decimal.NullDecimal
	Amount          decimal.NullDecimal
	TaxRate         decimal.NullDecimal
}

// ValidationCommand carries a validation outcome onto the invoice.
type ValidationCommand struct {
	IsValid           bool
	Errors            []string
	Warnings          []string
	CompletenessScore decimal.Decimal
}

// CurrencyCommand carries the derived home-currency conversion.
// Both fields are set together or not at all.
type CurrencyCommand struct {
	ExchangeRate decimal.Decimal
	HomeAmount   decimal.Decimal
}

// DecisionCommand carries a human approval or rejection decision.
// Actor identity is mandatory; Comment is optional context.
type DecisionCommand struct {
	Actor   string `json:"actor"`
	Comment string `json:"comment"`
}

// ExportCommand identifies the approved invoices included in one export batch.
type ExportCommand struct {
	InvoiceIDs []uuid.UUID `json:"invoice_ids"`
}

// ExportResult reports the outcome of an export batch: the correlation id
// assigned by the accounting target and the invoices it covered.
type ExportResult struct {
	BatchID  string      `json:"batch_id"`
	Invoices []uuid.UUID `json:"invoices"`
}

// DuplicateKey is the triple used for duplicate detection. Collisions are
// surfaced as validation warnings, never hard blocks; recurring fixed-amount
// invoices from one issuer collide legitimately.
type DuplicateKey struct {
	Issuer        string
	InvoiceNumber string
	Total         decimal.Decimal
}

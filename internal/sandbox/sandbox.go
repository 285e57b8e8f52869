// Package sandbox implements the experimentation surface for trying
// extraction prompts and models against sample documents without touching
// production invoices. Experiment results deliberately mirror the invoice
// shape so findings transfer; the parity check keeps the two shapes from
// drifting apart unnoticed.
package sandbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Experiment is one extraction trial within a named batch. The extraction
// and validation fields mirror Invoice; batch, model, and file metadata
// exist only here.
type Experiment struct {
	ID           uuid.UUID `json:"id"`
	BatchName    string    `json:"batch_name"`
	ModelName    string    `json:"model_name"`
	SourceFileID *string   `json:"source_file_id"`
	Filename     string    `json:"filename"`
	FileSize     *int64    `json:"file_size"`

	IssuerName         *string    `json:"issuer_name"`
	RecipientName      *string    `json:"recipient_name"`
	InvoiceNumber      *string    `json:"invoice_number"`
	RegistrationNumber *string    `json:"registration_number"`
	IssueDate          *time.Time `json:"issue_date"`
	DueDate            *time.Time `json:"due_date"`

	Currency          string              `json:"currency"`
	TotalInclusiveTax decimal.NullDecimal `json:"total_amount_tax_included"`
	TotalExclusiveTax decimal.NullDecimal `json:"total_amount_tax_excluded"`

	RawResponse *string `json:"raw_response,omitempty"`

	IsValid            bool                `json:"is_valid"`
	ValidationErrors   []string            `json:"validation_errors"`
	ValidationWarnings []string            `json:"validation_warnings"`
	CompletenessScore  decimal.NullDecimal `json:"completeness_score"`

	CreatedAt time.Time `json:"created_at"`
}

// ExperimentLineItem mirrors an invoice line item for one experiment.
type ExperimentLineItem struct {
	ID              uuid.UUID           `json:"id"`
	ExperimentID    uuid.UUID           `json:"experiment_id"`
	LineNumber      int                 `json:"line_number"`
	ItemDescription string              `json:"item_description"`
	Quantity        decimal.NullDecimal `json:"quantity"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	Amount          decimal.NullDecimal `json:"amount"`
	TaxRate         decimal.NullDecimal `json:"tax_rate"`
	CreatedAt       time.Time           `json:"created_at"`
}

// CreateCommand carries one experiment result to persist.
type CreateCommand struct {
	BatchName    string  `json:"batch_name"`
	ModelName    string  `json:"model_name"`
	SourceFileID *string `json:"source_file_id"`
	Filename     string  `json:"filename"`
	FileSize     *int64  `json:"file_size"`

	IssuerName         *string    `json:"issuer_name"`
	RecipientName      *string    `json:"recipient_name"`
	InvoiceNumber      *string    `json:"invoice_number"`
	RegistrationNumber *string    `json:"registration_number"`
	IssueDate          *time.Time `json:"issue_date"`
	DueDate            *time.Time `json:"due_date"`

	Currency          string              `json:"currency"`
	TotalInclusiveTax decimal.NullDecimal `json:"total_amount_tax_included"`
	TotalExclusiveTax decimal.NullDecimal `json:"total_amount_tax_excluded"`

	RawResponse *string `json:"raw_response"`

	IsValid            bool                `json:"is_valid"`
	ValidationErrors   []string            `json:"validation_errors"`
	ValidationWarnings []string            `json:"validation_warnings"`
	CompletenessScore  decimal.NullDecimal `json:"completeness_score"`

	LineItems []LineItemCommand `json:"line_items"`
}

// LineItemCommand carries one experiment line item.
type LineItemCommand struct {
	LineNumber      int                 `json:"line_number"`
	ItemDescription string              `json:"item_description"`
	Quantity        decimal.NullDecimal `json:"quantity"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	Amount          decimal.NullDecimal `json:"amount"`
	TaxRate         decimal.NullDecimal `json:"tax_rate"`
}

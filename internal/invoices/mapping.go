package invoices

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/query"
	"github.com/JaimeStill/remit/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "invoices", "i").
	Project("id", "ID").
	Project("intake_id", "IntakeID").
	Project("created_by", "CreatedBy").
	Project("status", "Status").
	Project("issuer_name", "IssuerName").
	Project("recipient_name", "RecipientName").
	Project("invoice_number", "InvoiceNumber").
	Project("registration_number", "RegistrationNumber").
	Project("issue_date", "IssueDate").
	Project("due_date", "DueDate").
	Project("currency", "Currency").
	Project("total_inclusive_tax", "TotalInclusiveTax").
	Project("total_exclusive_tax", "TotalExclusiveTax").
	Project("exchange_rate", "ExchangeRate").
	Project("home_amount", "HomeAmount").
	Project("extracted_data", "ExtractedData").
	Project("raw_response", "RawResponse").
	Project("failure_reason", "FailureReason").
	Project("is_valid", "IsValid").
	Project("validation_errors", "ValidationErrors").
	Project("validation_warnings", "ValidationWarnings").
	Project("completeness_score", "CompletenessScore").
	Project("approved_by", "ApprovedBy").
	Project("approved_at", "ApprovedAt").
	Project("approval_comment", "ApprovalComment").
	Project("rejection_reason", "RejectionReason").
	Project("exported", "Exported").
	Project("exported_at", "ExportedAt").
	Project("export_batch_id", "ExportBatchID").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var lineProjection = query.
	NewProjectionMap("public", "invoice_line_items", "li").
	Project("id", "ID").
	Project("invoice_id", "InvoiceID").
	Project("line_number", "LineNumber").
	Project("item_description", "ItemDescription").
	Project("quantity", "Quantity").
	Project("unit_price", "UnitPrice").
	Project("amount", "Amount").
	Project("tax_rate", "TaxRate").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var lineSort = query.SortField{
	Field: "LineNumber",
}

// Filters contains optional filtering criteria for invoice queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	Status     *string    `json:"status,omitempty"`
	Currency   *string    `json:"currency,omitempty"`
	IntakeID   *uuid.UUID `json:"intake_id,omitempty"`
	CreatedBy  *string    `json:"created_by,omitempty"`
	IsValid    *bool      `json:"is_valid,omitempty"`
	Exported   *bool      `json:"exported,omitempty"`
	ApprovedBy *string    `json:"approved_by,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Currency", f.Currency).
		WhereEquals("IntakeID", f.IntakeID).
		WhereEquals("CreatedBy", f.CreatedBy).
		WhereEquals("IsValid", f.IsValid).
		WhereEquals("Exported", f.Exported).
		WhereEquals("ApprovedBy", f.ApprovedBy)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if c := values.Get("currency"); c != "" {
		f.Currency = &c
	}

	if i := values.Get("intake_id"); i != "" {
		if id, err := uuid.Parse(i); err == nil {
			f.IntakeID = &id
		}
	}

	if c := values.Get("created_by"); c != "" {
		f.CreatedBy = &c
	}

	if v := values.Get("is_valid"); v == "true" || v == "false" {
		valid := v == "true"
		f.IsValid = &valid
	}

	if e := values.Get("exported"); e == "true" || e == "false" {
		exported := e == "true"
		f.Exported = &exported
	}

	if a := values.Get("approved_by"); a != "" {
		f.ApprovedBy = &a
	}

	return f
}

func scanInvoice(s repository.Scanner) (Invoice, error) {
	var inv Invoice
	var errorsRaw, warningsRaw []byte

	err := s.Scan(
		&inv.ID,
		&inv.IntakeID,
		&inv.CreatedBy,
		&inv.Status,
		&inv.IssuerName,
		&inv.RecipientName,
		&inv.InvoiceNumber,
		&inv.RegistrationNumber,
		&inv.IssueDate,
		&inv.DueDate,
		&inv.Currency,
		&inv.TotalInclusiveTax,
		&inv.TotalExclusiveTax,
		&inv.ExchangeRate,
		&inv.HomeAmount,
		&inv.ExtractedData,
		&inv.RawResponse,
		&inv.FailureReason,
		&inv.IsValid,
		&errorsRaw,
		&warningsRaw,
		&inv.CompletenessScore,
		&inv.ApprovedBy,
		&inv.ApprovedAt,
		&inv.ApprovalComment,
		&inv.RejectionReason,
		&inv.Exported,
		&inv.ExportedAt,
		&inv.ExportBatchID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)

	if err != nil {
		return inv, err
	}

	if len(errorsRaw) > 0 {
		if err := json.Unmarshal(errorsRaw, &inv.ValidationErrors); err != nil {
			return inv, fmt.Errorf("unmarshal validation_errors: %w", err)
		}
	}

	if len(warningsRaw) > 0 {
		if err := json.Unmarshal(warningsRaw, &inv.ValidationWarnings); err != nil {
			return inv, fmt.Errorf("unmarshal validation_warnings: %w", err)
		}
	}

	if inv.ValidationErrors == nil {
		inv.ValidationErrors = []string{}
	}

	if inv.ValidationWarnings == nil {
		inv.ValidationWarnings = []string{}
	}

	return inv, nil
}

func scanLineItem(s repository.Scanner) (LineItem, error) {
	var li LineItem

	err := s.Scan(
		&li.ID,
		&li.InvoiceID,
		&li.LineNumber,
		&li.ItemDescription,
		&li.Quantity,
		&li.UnitPrice,
		&li.Amount,
		&li.TaxRate,
		&li.CreatedAt,
	)

	return li, err
}

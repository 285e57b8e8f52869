package sandbox

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/remit/pkg/query"
	"github.com/JaimeStill/remit/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "experiment_results", "e").
	Project("id", "ID").
	Project("batch_name", "BatchName").
	Project("model_name", "ModelName").
	Project("source_file_id", "SourceFileID").
	Project("filename", "Filename").
	Project("file_size", "FileSize").
	Project("issuer_name", "IssuerName").
	Project("recipient_name", "RecipientName").
	Project("invoice_number", "InvoiceNumber").
	Project("registration_number", "RegistrationNumber").
	Project("issue_date", "IssueDate").
	Project("due_date", "DueDate").
	Project("currency", "Currency").
	Project("total_inclusive_tax", "TotalInclusiveTax").
	Project("total_exclusive_tax", "TotalExclusiveTax").
	Project("raw_response", "RawResponse").
	Project("is_valid", "IsValid").
	Project("validation_errors", "ValidationErrors").
	Project("validation_warnings", "ValidationWarnings").
	Project("completeness_score", "CompletenessScore").
	Project("created_at", "CreatedAt")

var lineProjection = query.
	NewProjectionMap("public", "experiment_line_items", "el").
	Project("id", "ID").
	Project("experiment_id", "ExperimentID").
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

// Filters contains optional filtering criteria for experiment queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	BatchName *string `json:"batch_name,omitempty"`
	ModelName *string `json:"model_name,omitempty"`
	Currency  *string `json:"currency,omitempty"`
	IsValid   *bool   `json:"is_valid,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("BatchName", f.BatchName).
		WhereEquals("ModelName", f.ModelName).
		WhereEquals("Currency", f.Currency).
		WhereEquals("IsValid", f.IsValid)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if b := values.Get("batch_name"); b != "" {
		f.BatchName = &b
	}

	if m := values.Get("model_name"); m != "" {
		f.ModelName = &m
	}

	if c := values.Get("currency"); c != "" {
		f.Currency = &c
	}

	if v := values.Get("is_valid"); v == "true" || v == "false" {
		valid := v == "true"
		f.IsValid = &valid
	}

	return f
}

func scanExperiment(s repository.Scanner) (Experiment, error) {
	var e Experiment
	var errorsRaw, warningsRaw []byte

	err := s.Scan(
		&e.ID,
		&e.BatchName,
		&e.ModelName,
		&e.SourceFileID,
		&e.Filename,
		&e.FileSize,
		&e.IssuerName,
		&e.RecipientName,
		&e.InvoiceNumber,
		&e.RegistrationNumber,
		&e.IssueDate,
		&e.DueDate,
		&e.Currency,
		&e.TotalInclusiveTax,
		&e.TotalExclusiveTax,
		&e.RawResponse,
		&e.IsValid,
		&errorsRaw,
		&warningsRaw,
		&e.CompletenessScore,
		&e.CreatedAt,
	)

	if err != nil {
		return e, err
	}

	if len(errorsRaw) > 0 {
		if err := json.Unmarshal(errorsRaw, &e.ValidationErrors); err != nil {
			return e, fmt.Errorf("unmarshal validation_errors: %w", err)
		}
	}

	if len(warningsRaw) > 0 {
		if err := json.Unmarshal(warningsRaw, &e.ValidationWarnings); err != nil {
			return e, fmt.Errorf("unmarshal validation_warnings: %w", err)
		}
	}

	if e.ValidationErrors == nil {
		e.ValidationErrors = []string{}
	}

	if e.ValidationWarnings == nil {
		e.ValidationWarnings = []string{}
	}

	return e, nil
}

func scanExperimentLineItem(s repository.Scanner) (ExperimentLineItem, error) {
	var li ExperimentLineItem

	err := s.Scan(
		&li.ID,
		&li.ExperimentID,
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

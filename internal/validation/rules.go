package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/remit/internal/invoices"
)

// subject bundles the invoice and its line items for rule evaluation.
type subject struct {
	invoice *invoices.Invoice
	items   []invoices.LineItem
}

type rule struct {
	name     string
	severity Severity
	check    func(subject) string
}

// knownCurrencies are the codes the pipeline converts reliably. Anything
// else still flows through but is flagged for a reviewer.
var knownCurrencies = map[string]bool{
	"JPY": true, "USD": true, "EUR": true, "GBP": true, "AUD": true,
	"CAD": true, "CHF": true, "CNY": true, "HKD": true, "SGD": true,
}

// rules is the complete validation table. Order determines the order of
// messages on the invoice.
var rules = []rule{
	{
		name:     "issuer_required",
		severity: SeverityError,
		check: func(s subject) string {
			if s.invoice.IssuerName == nil {
				return "issuer name is missing"
			}
			return ""
		},
	},
	{
		name:     "total_required",
		severity: SeverityError,
		check: func(s subject) string {
			if !s.invoice.TotalInclusiveTax.Valid {
				return "total amount including tax is missing"
			}
			return ""
		},
	},
	{
		name:     "currency_required",
		severity: SeverityError,
		check: func(s subject) string {
			if s.invoice.Currency == "" {
				return "currency is missing"
			}
			return ""
		},
	},
	{
		name:     "invoice_number_required",
		severity: SeverityError,
		check: func(s subject) string {
			if s.invoice.InvoiceNumber == nil {
				return "invoice number is missing"
			}
			return ""
		},
	},
	{
		name:     "issue_date_required",
		severity: SeverityError,
		check: func(s subject) string {
			if s.invoice.IssueDate == nil {
				return "issue date is missing"
			}
			return ""
		},
	},
	{
		name:     "total_positive",
		severity: SeverityError,
		check: func(s subject) string {
			if s.invoice.TotalInclusiveTax.Valid &&
				!s.invoice.TotalInclusiveTax.Decimal.IsPositive() {
				return "total amount including tax must be positive"
			}
			return ""
		},
	},
	{
		name:     "recipient_missing",
		severity: SeverityWarning,
		check: func(s subject) string {
			if s.invoice.RecipientName == nil {
				return "recipient name is missing"
			}
			return ""
		},
	},
	{
		name:     "currency_unknown",
		severity: SeverityWarning,
		check: func(s subject) string {
			if c := s.invoice.Currency; c != "" && !knownCurrencies[c] {
				return fmt.Sprintf("unrecognized currency code %q", c)
			}
			return ""
		},
	},
	{
		name:     "exclusive_exceeds_inclusive",
		severity: SeverityWarning,
		check: func(s subject) string {
			inc := s.invoice.TotalInclusiveTax
			exc := s.invoice.TotalExclusiveTax
			if inc.Valid && exc.Valid && exc.Decimal.GreaterThan(inc.Decimal) {
				return "tax-exclusive total exceeds tax-inclusive total"
			}
			return ""
		},
	},
	{
		name:     "due_before_issue",
		severity: SeverityWarning,
		check: func(s subject) string {
			issue := s.invoice.IssueDate
			due := s.invoice.DueDate
			if issue != nil && due != nil && due.Before(*issue) {
				return "due date precedes issue date"
			}
			return ""
		},
	},
}

// fieldClass buckets fields by how strongly their absence degrades the
// completeness score.
type fieldClass int

const (
	classRequired fieldClass = iota
	classImportant
	classOptional
)

type completenessField struct {
	name   string
	class  fieldClass
	filled func(subject) bool
}

var completenessFields = []completenessField{
	{"issuer_name", classRequired, func(s subject) bool { return s.invoice.IssuerName != nil }},
	{"invoice_number", classRequired, func(s subject) bool { return s.invoice.InvoiceNumber != nil }},
	{"total_inclusive_tax", classRequired, func(s subject) bool { return s.invoice.TotalInclusiveTax.Valid }},
	{"issue_date", classRequired, func(s subject) bool { return s.invoice.IssueDate != nil }},
	{"currency", classRequired, func(s subject) bool { return s.invoice.Currency != "" }},
	{"recipient_name", classImportant, func(s subject) bool { return s.invoice.RecipientName != nil }},
	{"due_date", classImportant, func(s subject) bool { return s.invoice.DueDate != nil }},
	{"registration_number", classOptional, func(s subject) bool { return s.invoice.RegistrationNumber != nil }},
	{"total_exclusive_tax", classOptional, func(s subject) bool { return s.invoice.TotalExclusiveTax.Valid }},
	{"line_items", classOptional, func(s subject) bool { return len(s.items) > 0 }},
	{"key_info", classOptional, func(s subject) bool { return len(s.invoice.ExtractedData) > 0 }},
}

// lineSumRule is evaluated by the engine with its configured tolerance,
// so it lives outside the static table.
func lineSumMismatch(s subject, tolerance decimal.Decimal) string {
	if len(s.items) == 0 {
		return ""
	}

	target := s.invoice.TotalExclusiveTax
	if !target.Valid {
		target = s.invoice.TotalInclusiveTax
	}
	if !target.Valid {
		return ""
	}

	sum := decimal.Zero
	counted := 0
	for _, li := range s.items {
		if li.Amount.Valid {
			sum = sum.Add(li.Amount.Decimal)
			counted++
		}
	}
	if counted == 0 {
		return ""
	}

	diff := sum.Sub(target.Decimal).Abs()
	if diff.GreaterThan(tolerance) {
		return fmt.Sprintf(
			"line item amounts sum to %s but invoice total is %s",
			sum.String(), target.Decimal.String(),
		)
	}
	return ""
}

package sandbox

import (
	"maps"
	"slices"
)

// Field parity between the production invoice shape and the sandbox
// experiment shape. The two are allowed to differ only in the documented
// exclusive sets below; anything else is drift and fails the check.

// Shape describes a storage shape as field name to column type.
type Shape map[string]string

// invoiceShape is the production invoice storage shape.
var invoiceShape = Shape{
	"id":                  "uuid",
	"intake_id":           "uuid",
	"created_by":          "text",
	"status":              "text",
	"issuer_name":         "text",
	"recipient_name":      "text",
	"invoice_number":      "text",
	"registration_number": "text",
	"issue_date":          "date",
	"due_date":            "date",
	"currency":            "text",
	"total_inclusive_tax": "numeric(15,2)",
	"total_exclusive_tax": "numeric(15,2)",
	"exchange_rate":       "numeric(15,6)",
	"home_amount":         "numeric(15,2)",
	"extracted_data":      "jsonb",
	"raw_response":        "text",
	"failure_reason":      "text",
	"is_valid":            "boolean",
	"validation_errors":   "jsonb",
	"validation_warnings": "jsonb",
	"completeness_score":  "numeric(5,2)",
	"approved_by":         "text",
	"approved_at":         "timestamptz",
	"approval_comment":    "text",
	"rejection_reason":    "text",
	"exported":            "boolean",
	"exported_at":         "timestamptz",
	"export_batch_id":     "text",
	"created_at":          "timestamptz",
	"updated_at":          "timestamptz",
}

// experimentShape is the sandbox experiment storage shape.
var experimentShape = Shape{
	"id":                  "uuid",
	"batch_name":          "text",
	"model_name":          "text",
	"source_file_id":      "text",
	"filename":            "text",
	"file_size":           "bigint",
	"issuer_name":         "text",
	"recipient_name":      "text",
	"invoice_number":      "text",
	"registration_number": "text",
	"issue_date":          "date",
	"due_date":            "date",
	"currency":            "text",
	"total_inclusive_tax": "numeric(15,2)",
	"total_exclusive_tax": "numeric(15,2)",
	"raw_response":        "text",
	"is_valid":            "boolean",
	"validation_errors":   "jsonb",
	"validation_warnings": "jsonb",
	"completeness_score":  "numeric(5,2)",
	"created_at":          "timestamptz",
}

// productionOnly are invoice fields with no sandbox counterpart: workflow
// tracking, currency normalization, and approval/export bookkeeping have
// no meaning for throwaway experiments.
var productionOnly = []string{
	"intake_id",
	"created_by",
	"status",
	"exchange_rate",
	"home_amount",
	"extracted_data",
	"failure_reason",
	"approved_by",
	"approved_at",
	"approval_comment",
	"rejection_reason",
	"exported",
	"exported_at",
	"export_batch_id",
	"updated_at",
}

// sandboxOnly are experiment fields with no production counterpart: batch
// organization and per-trial file and model metadata.
var sandboxOnly = []string{
	"batch_name",
	"model_name",
	"source_file_id",
	"filename",
	"file_size",
}

// invoiceLineShape is the production line item storage shape.
var invoiceLineShape = Shape{
	"id":               "uuid",
	"invoice_id":       "uuid",
	"line_number":      "integer",
	"item_description": "text",
	"quantity":         "numeric(10,3)",
	"unit_price":       "numeric(15,2)",
	"amount":           "numeric(15,2)",
	"tax_rate":         "numeric(5,2)",
	"created_at":       "timestamptz",
}

// experimentLineShape is the sandbox line item storage shape.
var experimentLineShape = Shape{
	"id":               "uuid",
	"experiment_id":    "uuid",
	"line_number":      "integer",
	"item_description": "text",
	"quantity":         "numeric(10,3)",
	"unit_price":       "numeric(15,2)",
	"amount":           "numeric(15,2)",
	"tax_rate":         "numeric(5,2)",
	"created_at":       "timestamptz",
}

// Line items differ only in which parent record they hang off.
var productionLineOnly = []string{"invoice_id"}

var sandboxLineOnly = []string{"experiment_id"}

// Mismatch reports a shared field whose types differ between shapes.
type Mismatch struct {
	Field      string `json:"field"`
	Production string `json:"production"`
	Sandbox    string `json:"sandbox"`
}

// ShapeReport is the outcome of comparing one production shape against
// its sandbox counterpart.
type ShapeReport struct {
	InParity       bool       `json:"in_parity"`
	SharedFields   []string   `json:"shared_fields"`
	Mismatches     []Mismatch `json:"mismatches"`
	ProductionOnly []string   `json:"production_only"`
	SandboxOnly    []string   `json:"sandbox_only"`
	// Undocumented fields exist in only one shape without appearing in
	// its documented exclusive set. Their presence is drift.
	UndocumentedProduction []string `json:"undocumented_production,omitempty"`
	UndocumentedSandbox    []string `json:"undocumented_sandbox,omitempty"`
}

// ParityReport covers every production and sandbox shape pair.
type ParityReport struct {
	InParity  bool        `json:"in_parity"`
	Invoices  ShapeReport `json:"invoices"`
	LineItems ShapeReport `json:"line_items"`
}

// CheckParity compares the production and sandbox shape pairs. The
// comparison is order-insensitive: only names, types, and the documented
// exclusive sets matter.
func CheckParity() ParityReport {
	invoices := compareShapes(invoiceShape, experimentShape, productionOnly, sandboxOnly)
	lines := compareShapes(invoiceLineShape, experimentLineShape, productionLineOnly, sandboxLineOnly)

	return ParityReport{
		InParity:  invoices.InParity && lines.InParity,
		Invoices:  invoices,
		LineItems: lines,
	}
}

func compareShapes(prod, sand Shape, prodOnly, sandOnly []string) ShapeReport {
	report := ShapeReport{
		SharedFields:   []string{},
		Mismatches:     []Mismatch{},
		ProductionOnly: slices.Sorted(slices.Values(prodOnly)),
		SandboxOnly:    slices.Sorted(slices.Values(sandOnly)),
	}

	for _, field := range slices.Sorted(maps.Keys(prod)) {
		prodType := prod[field]

		sandType, shared := sand[field]
		if !shared {
			if !slices.Contains(prodOnly, field) {
				report.UndocumentedProduction = append(report.UndocumentedProduction, field)
			}
			continue
		}

		report.SharedFields = append(report.SharedFields, field)
		if prodType != sandType {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Field:      field,
				Production: prodType,
				Sandbox:    sandType,
			})
		}
	}

	for _, field := range slices.Sorted(maps.Keys(sand)) {
		if _, shared := prod[field]; shared {
			continue
		}
		if !slices.Contains(sandOnly, field) {
			report.UndocumentedSandbox = append(report.UndocumentedSandbox, field)
		}
	}

	report.InParity = len(report.Mismatches) == 0 &&
		len(report.UndocumentedProduction) == 0 &&
		len(report.UndocumentedSandbox) == 0

	return report
}

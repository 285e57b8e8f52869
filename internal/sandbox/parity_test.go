package sandbox

import (
	"slices"
	"testing"
)

func TestCheckParity(t *testing.T) {
	report := CheckParity()

	if !report.InParity {
		t.Errorf("InParity = false: invoices %+v, line items %+v", report.Invoices, report.LineItems)
	}

	t.Run("invoices", func(t *testing.T) {
		inv := report.Invoices
		if !inv.InParity {
			t.Errorf("InParity = false: mismatches %v, undocumented prod %v, undocumented sandbox %v",
				inv.Mismatches, inv.UndocumentedProduction, inv.UndocumentedSandbox)
		}
		if len(inv.SharedFields) == 0 {
			t.Fatal("SharedFields is empty")
		}
		if !slices.IsSorted(inv.SharedFields) {
			t.Errorf("SharedFields not sorted: %v", inv.SharedFields)
		}

		for _, field := range []string{"issuer_name", "total_inclusive_tax", "completeness_score"} {
			if !slices.Contains(inv.SharedFields, field) {
				t.Errorf("SharedFields missing %s", field)
			}
		}
	})

	t.Run("line items", func(t *testing.T) {
		lines := report.LineItems
		if !lines.InParity {
			t.Errorf("InParity = false: mismatches %v, undocumented prod %v, undocumented sandbox %v",
				lines.Mismatches, lines.UndocumentedProduction, lines.UndocumentedSandbox)
		}

		for _, field := range []string{"line_number", "item_description", "quantity", "unit_price", "amount", "tax_rate"} {
			if !slices.Contains(lines.SharedFields, field) {
				t.Errorf("SharedFields missing %s", field)
			}
		}
		if !slices.Contains(lines.ProductionOnly, "invoice_id") {
			t.Errorf("ProductionOnly = %v, want invoice_id", lines.ProductionOnly)
		}
		if !slices.Contains(lines.SandboxOnly, "experiment_id") {
			t.Errorf("SandboxOnly = %v, want experiment_id", lines.SandboxOnly)
		}
	})
}

func TestCompareShapes(t *testing.T) {
	prod := Shape{
		"id":     "uuid",
		"amount": "numeric(15,2)",
		"status": "text",
	}
	sand := Shape{
		"id":     "uuid",
		"amount": "numeric(15,2)",
		"batch":  "text",
	}

	t.Run("documented exclusives pass", func(t *testing.T) {
		report := compareShapes(prod, sand, []string{"status"}, []string{"batch"})
		if !report.InParity {
			t.Errorf("InParity = false: %+v", report)
		}
		if len(report.SharedFields) != 2 {
			t.Errorf("SharedFields = %v, want [amount id]", report.SharedFields)
		}
	})

	t.Run("type drift reported", func(t *testing.T) {
		drifted := Shape{
			"id":     "uuid",
			"amount": "numeric(10,2)",
			"batch":  "text",
		}

		report := compareShapes(prod, drifted, []string{"status"}, []string{"batch"})
		if report.InParity {
			t.Error("InParity = true, want false")
		}
		if len(report.Mismatches) != 1 {
			t.Fatalf("Mismatches = %v, want one", report.Mismatches)
		}
		m := report.Mismatches[0]
		if m.Field != "amount" || m.Production != "numeric(15,2)" || m.Sandbox != "numeric(10,2)" {
			t.Errorf("Mismatch = %+v", m)
		}
	})

	t.Run("undocumented production field is drift", func(t *testing.T) {
		report := compareShapes(prod, sand, nil, []string{"batch"})
		if report.InParity {
			t.Error("InParity = true, want false")
		}
		if !slices.Contains(report.UndocumentedProduction, "status") {
			t.Errorf("UndocumentedProduction = %v, want status", report.UndocumentedProduction)
		}
	})

	t.Run("undocumented sandbox field is drift", func(t *testing.T) {
		report := compareShapes(prod, sand, []string{"status"}, nil)
		if report.InParity {
			t.Error("InParity = true, want false")
		}
		if !slices.Contains(report.UndocumentedSandbox, "batch") {
			t.Errorf("UndocumentedSandbox = %v, want batch", report.UndocumentedSandbox)
		}
	})
}

package extraction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestToString(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  *string
	}{
		{"nil", nil, nil},
		{"plain string", "Acme Corp", ptr("Acme Corp")},
		{"whitespace trimmed", "  Acme Corp  ", ptr("Acme Corp")},
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"null literal", "null", nil},
		{"none literal", "None", nil},
		{"list collapses to first", []any{"first", "second"}, ptr("first")},
		{"empty list", []any{}, nil},
		{"number formatted", float64(42), ptr("42")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toString(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("toString(%v) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("toString(%v) = %q, want %q", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		valid bool
	}{
		{"nil", nil, "", false},
		{"float", float64(1234.5), "1234.5", true},
		{"plain string", "1234.50", "1234.5", true},
		{"thousands separators", "1,234,567", "1234567", true},
		{"yen symbol", "¥12,000", "12000", true},
		{"fullwidth yen symbol", "￥12,000", "12000", true},
		{"dollar symbol", "$99.99", "99.99", true},
		{"euro symbol", "€50", "50", true},
		{"yen suffix", "12000円", "12000", true},
		{"embedded spaces", "1 234", "1234", true},
		{"garbage string", "twelve", "", false},
		{"empty string", "", "", false},
		{"list collapses to first", []any{"100", "200"}, "100", true},
		{"unsupported type", true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toDecimal(tt.input)
			if got.Valid != tt.valid {
				t.Fatalf("toDecimal(%v).Valid = %v, want %v", tt.input, got.Valid, tt.valid)
			}
			if tt.valid && got.Decimal.String() != tt.want {
				t.Errorf("toDecimal(%v) = %s, want %s", tt.input, got.Decimal.String(), tt.want)
			}
		})
	}
}

func TestToDate(t *testing.T) {
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  *time.Time
	}{
		{"iso", "2026-03-15", &want},
		{"slashes", "2026/03/15", &want},
		{"dots", "2026.03.15", &want},
		{"kanji padded", "2026年03月15日", &want},
		{"kanji unpadded", "2026年3月15日", &want},
		{"long form", "March 15, 2026", &want},
		{"day first long form", "15 March 2026", &want},
		{"unparseable", "sometime in spring", nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toDate(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("toDate(%v) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("toDate(%v) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestToTaxRate(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		valid bool
	}{
		{"percentage", float64(10), "10", true},
		{"percentage string", "10%", "10", true},
		{"fraction scaled up", float64(0.1), "10", true},
		{"fraction boundary", float64(1), "100", true},
		{"above one left alone", float64(8), "8", true},
		{"negative clamped", float64(-5), "0", true},
		{"over hundred clamped", float64(250), "100", true},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toTaxRate(tt.input)
			if got.Valid != tt.valid {
				t.Fatalf("toTaxRate(%v).Valid = %v, want %v", tt.input, got.Valid, tt.valid)
			}
			if tt.valid && got.Decimal.String() != tt.want {
				t.Errorf("toTaxRate(%v) = %s, want %s", tt.input, got.Decimal.String(), tt.want)
			}
		})
	}
}

func TestToCurrency(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"uppercased", "usd", "USD"},
		{"already upper", "JPY", "JPY"},
		{"absent uses fallback", nil, "JPY"},
		{"empty uses fallback", "", "JPY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toCurrency(tt.input, "JPY"); got != tt.want {
				t.Errorf("toCurrency(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	p := payload{
		Issuer:             []any{"株式会社サンプル"},
		Payer:              "Acme KK",
		MainInvoiceNumber:  "INV-2026-001",
		TNumber:            "T1234567890123",
		IssueDate:          "2026年1月31日",
		DueDate:            "2026-02-28",
		Currency:           "jpy",
		AmountInclusiveTax: "¥110,000",
		AmountExclusiveTax: float64(100000),
		KeyInfo:            map[string]any{"payment_terms": "net 30"},
		LineItems: []lineItemPayload{
			{
				Description: "Consulting",
				Quantity:    float64(2),
				UnitPrice:   "50,000",
				Amount:      "100,000",
				TaxRate:     float64(0.1),
			},
			{Description: nil, Amount: "999"},
		},
	}

	f := coerce(p, "JPY")

	if f.Issuer == nil || *f.Issuer != "株式会社サンプル" {
		t.Errorf("Issuer = %v, want 株式会社サンプル", f.Issuer)
	}
	if f.Currency != "JPY" {
		t.Errorf("Currency = %q, want JPY", f.Currency)
	}
	if !f.AmountInclusiveTax.Valid || f.AmountInclusiveTax.Decimal.String() != "110000" {
		t.Errorf("AmountInclusiveTax = %v, want 110000", f.AmountInclusiveTax)
	}
	if !f.AmountExclusiveTax.Valid || f.AmountExclusiveTax.Decimal.String() != "100000" {
		t.Errorf("AmountExclusiveTax = %v, want 100000", f.AmountExclusiveTax)
	}
	if f.IssueDate == nil || !f.IssueDate.Equal(time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("IssueDate = %v, want 2026-01-31", f.IssueDate)
	}

	if len(f.LineItems) != 1 {
		t.Fatalf("LineItems = %d, want 1 (nil description skipped)", len(f.LineItems))
	}
	li := f.LineItems[0]
	if li.Description != "Consulting" {
		t.Errorf("Description = %q, want Consulting", li.Description)
	}
	if !li.TaxRate.Valid || !li.TaxRate.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("TaxRate = %v, want 10", li.TaxRate)
	}
	if !li.UnitPrice.Valid || li.UnitPrice.Decimal.String() != "50000" {
		t.Errorf("UnitPrice = %v, want 50000", li.UnitPrice)
	}
}

func ptr[T any](v T) *T { return &v }

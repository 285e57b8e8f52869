package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coercion rules, one per target field type. Model responses are not
// trusted to match the schema: strings arrive as lists, numbers as
// formatted strings with currency symbols and separators, and dates in
// whatever format the document used.

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006年01月02日",
	"2006年1月2日",
	"January 2, 2006",
	"2 January 2006",
	"02-01-2006",
}

var numericCleaner = strings.NewReplacer(
	",", "",
	"¥", "",
	"￥", "",
	"$", "",
	"€", "",
	"£", "",
	"%", "",
	" ", "",
	"円", "",
)

// toString coerces a value to a trimmed string. Lists collapse to their
// first element; numbers are formatted; empty results become nil.
func toString(v any) *string {
	var s string

	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case []any:
		if len(t) == 0 {
			return nil
		}
		return toString(t[0])
	case float64:
		s = decimal.NewFromFloat(t).String()
	default:
		s = fmt.Sprintf("%v", t)
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	return &s
}

// toDecimal coerces a value to a decimal, stripping currency symbols,
// thousands separators, and percent signs from string forms.
func toDecimal(v any) decimal.NullDecimal {
	switch t := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case float64:
		return decimal.NullDecimal{Decimal: decimal.NewFromFloat(t), Valid: true}
	case string:
		cleaned := numericCleaner.Replace(strings.TrimSpace(t))
		if cleaned == "" {
			return decimal.NullDecimal{}
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}
	case []any:
		if len(t) == 0 {
			return decimal.NullDecimal{}
		}
		return toDecimal(t[0])
	default:
		return decimal.NullDecimal{}
	}
}

// toDate coerces a value to a date, trying each supported format in order.
func toDate(v any) *time.Time {
	s := toString(v)
	if s == nil {
		return nil
	}

	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, *s); err == nil {
			return &parsed
		}
	}
	return nil
}

// toTaxRate coerces a value to a percentage in [0, 100]. Fractional rates
// (0.1 for 10%) are scaled up; out-of-range values are clamped.
func toTaxRate(v any) decimal.NullDecimal {
	d := toDecimal(v)
	if !d.Valid {
		return d
	}

	rate := d.Decimal
	if rate.GreaterThan(decimal.Zero) && rate.LessThanOrEqual(decimal.NewFromInt(1)) {
		rate = rate.Mul(decimal.NewFromInt(100))
	}

	if rate.LessThan(decimal.Zero) {
		rate = decimal.Zero
	}
	if rate.GreaterThan(decimal.NewFromInt(100)) {
		rate = decimal.NewFromInt(100)
	}

	return decimal.NullDecimal{Decimal: rate, Valid: true}
}

// toCurrency coerces a value to an upper-cased currency code, defaulting
// to the provided fallback when absent.
func toCurrency(v any, fallback string) string {
	s := toString(v)
	if s == nil {
		return fallback
	}
	return strings.ToUpper(*s)
}

// coerce applies the rule table to a parsed payload.
func coerce(p payload, fallbackCurrency string) fields {
	f := fields{
		Issuer:             toString(p.Issuer),
		Payer:              toString(p.Payer),
		InvoiceNumber:      toString(p.MainInvoiceNumber),
		RegistrationNumber: toString(p.TNumber),
		IssueDate:          toDate(p.IssueDate),
		DueDate:            toDate(p.DueDate),
		Currency:           toCurrency(p.Currency, fallbackCurrency),
		AmountInclusiveTax: toDecimal(p.AmountInclusiveTax),
		AmountExclusiveTax: toDecimal(p.AmountExclusiveTax),
		KeyInfo:            p.KeyInfo,
	}

	for _, li := range p.LineItems {
		desc := toString(li.Description)
		if desc == nil {
			continue
		}

		f.LineItems = append(f.LineItems, lineFields{
			Description: *desc,
			Quantity:    toDecimal(li.Quantity),
			UnitPrice:   toDecimal(li.UnitPrice),
			Amount:      toDecimal(li.Amount),
			TaxRate:     toTaxRate(li.TaxRate),
		})
	}

	return f
}

// Package extraction implements the model-backed field extraction stage.
// It renders an intake document to page images, sends them to a vision
// model with a structured extraction prompt, and coerces the loosely-typed
// response into the strongly-typed command persisted on the invoice.
package extraction

import (
	"time"

	"github.com/shopspring/decimal"
)

// payload mirrors the JSON object the extraction prompt instructs the model
// to produce. Scalar fields are deliberately untyped; models return numbers
// as strings, strings as lists, and dates in assorted formats, so every
// field passes through the coercion rules before anything is persisted.
type payload struct {
	Issuer             any               `json:"issuer"`
	Payer              any               `json:"payer"`
	MainInvoiceNumber  any               `json:"main_invoice_number"`
	TNumber            any               `json:"t_number"`
	IssueDate          any               `json:"issue_date"`
	DueDate            any               `json:"due_date"`
	Currency           any               `json:"currency"`
	AmountInclusiveTax any               `json:"amount_inclusive_tax"`
	AmountExclusiveTax any               `json:"amount_exclusive_tax"`
	KeyInfo            map[string]any    `json:"key_info"`
	LineItems          []lineItemPayload `json:"line_items"`
}

type lineItemPayload struct {
	Description any `json:"description"`
	Quantity    any `json:"quantity"`
	UnitPrice   any `json:"unit_price"`
	Amount      any `json:"amount"`
	TaxRate     any `json:"tax_rate"`
}

// fields is the coerced, typed form of a payload.
type fields struct {
	Issuer             *string
	Payer              *string
	InvoiceNumber      *string
	RegistrationNumber *string
	IssueDate          *time.Time
	DueDate            *time.Time
	Currency           string
	AmountInclusiveTax decimal.NullDecimal
	AmountExclusiveTax decimal.NullDecimal
	KeyInfo            map[string]any
	LineItems          []lineFields
}

type lineFields struct {
	Description string
	Quantity    decimal.NullDecimal
	UnitPrice   decimal.NullDecimal
	Amount      decimal.NullDecimal
	TaxRate     decimal.NullDecimal
}

const extractionPrompt = `You are an invoice data extraction engine.
Analyze the provided invoice document images and extract the following
fields. Respond with a single JSON object and nothing else.

{
  "issuer": "name of the company or person issuing the invoice",
  "payer": "name of the company or person being billed",
  "main_invoice_number": "the primary invoice number",
  "t_number": "the tax registration number (e.g. T followed by 13 digits), if present",
  "issue_date": "issue date in YYYY-MM-DD format",
  "due_date": "payment due date in YYYY-MM-DD format",
  "currency": "three-letter ISO 4217 currency code, JPY if not stated",
  "amount_inclusive_tax": "total amount including tax, numeric",
  "amount_exclusive_tax": "total amount excluding tax, numeric",
  "key_info": { "any other notable fields": "as key-value pairs" },
  "line_items": [
    {
      "description": "line item description",
      "quantity": "numeric quantity",
      "unit_price": "numeric unit price",
      "amount": "numeric line amount",
      "tax_rate": "tax rate as a percentage"
    }
  ]
}

Use null for any field that is not present on the document. Do not guess
values. Preserve the original language of names and descriptions.`

package currency_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/remit/internal/currency"
	"github.com/JaimeStill/remit/internal/invoices"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nd(value string) decimal.NullDecimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func invoice(code string, total decimal.NullDecimal) *invoices.Invoice {
	return &invoices.Invoice{
		ID:                uuid.New(),
		Currency:          code,
		TotalInclusiveTax: total,
	}
}

func TestNormalize(t *testing.T) {
	provider := currency.StaticProvider{
		"USD:JPY": decimal.RequireFromString("150.1234"),
	}
	n := currency.NewNormalizer("JPY", provider, discard(), 0)

	t.Run("home currency gets rate of one", func(t *testing.T) {
		conv := n.Normalize(context.Background(), invoice("JPY", nd("110000")))
		if conv.Command == nil {
			t.Fatalf("Command = nil, warning = %q", conv.Warning)
		}
		if !conv.Command.ExchangeRate.Equal(decimal.NewFromInt(1)) {
			t.Errorf("ExchangeRate = %s, want 1", conv.Command.ExchangeRate)
		}
		if conv.Command.HomeAmount.String() != "110000" {
			t.Errorf("HomeAmount = %s, want 110000", conv.Command.HomeAmount)
		}
	})

	t.Run("foreign currency converted and rounded", func(t *testing.T) {
		conv := n.Normalize(context.Background(), invoice("USD", nd("1000")))
		if conv.Command == nil {
			t.Fatalf("Command = nil, warning = %q", conv.Warning)
		}
		if conv.Command.HomeAmount.String() != "150123.4" {
			t.Errorf("HomeAmount = %s, want 150123.4", conv.Command.HomeAmount)
		}
	})

	t.Run("half up rounding", func(t *testing.T) {
		conv := n.Normalize(context.Background(), invoice("USD", nd("0.1")))
		if conv.Command == nil {
			t.Fatalf("Command = nil, warning = %q", conv.Warning)
		}
		// 0.1 * 150.1234 = 15.01234, rounds to 15.01.
		if conv.Command.HomeAmount.String() != "15.01" {
			t.Errorf("HomeAmount = %s, want 15.01", conv.Command.HomeAmount)
		}
	})

	t.Run("missing rate yields warning", func(t *testing.T) {
		conv := n.Normalize(context.Background(), invoice("EUR", nd("500")))
		if conv.Command != nil {
			t.Fatalf("Command = %+v, want nil", conv.Command)
		}
		if conv.Warning != "no exchange rate available for EUR" {
			t.Errorf("Warning = %q", conv.Warning)
		}
	})

	t.Run("no total yields empty conversion", func(t *testing.T) {
		conv := n.Normalize(context.Background(), invoice("USD", decimal.NullDecimal{}))
		if conv.Command != nil || conv.Warning != "" {
			t.Errorf("Conversion = %+v, want zero value", conv)
		}
	})
}

type countingProvider struct {
	calls int
	rate  decimal.Decimal
	err   error
}

func (p *countingProvider) Rate(context.Context, string, string) (decimal.Decimal, bool, error) {
	p.calls++
	if p.err != nil {
		return decimal.Decimal{}, false, p.err
	}
	return p.rate, true, nil
}

func TestNormalizeCaching(t *testing.T) {
	t.Run("cached rate reused within ttl", func(t *testing.T) {
		provider := &countingProvider{rate: decimal.NewFromInt(150)}
		n := currency.NewNormalizer("JPY", provider, discard(), time.Hour)

		for range 3 {
			conv := n.Normalize(context.Background(), invoice("USD", nd("100")))
			if conv.Command == nil {
				t.Fatalf("Command = nil, warning = %q", conv.Warning)
			}
		}

		if provider.calls != 1 {
			t.Errorf("provider calls = %d, want 1", provider.calls)
		}
	})

	t.Run("zero ttl disables caching", func(t *testing.T) {
		provider := &countingProvider{rate: decimal.NewFromInt(150)}
		n := currency.NewNormalizer("JPY", provider, discard(), 0)

		n.Normalize(context.Background(), invoice("USD", nd("100")))
		n.Normalize(context.Background(), invoice("USD", nd("100")))

		if provider.calls != 2 {
			t.Errorf("provider calls = %d, want 2", provider.calls)
		}
	})

	t.Run("provider failure surfaces warning", func(t *testing.T) {
		provider := &countingProvider{err: errors.New("rate service down")}
		n := currency.NewNormalizer("JPY", provider, discard(), time.Hour)

		conv := n.Normalize(context.Background(), invoice("USD", nd("100")))
		if conv.Command != nil {
			t.Fatalf("Command = %+v, want nil", conv.Command)
		}
		if conv.Warning != "exchange rate lookup failed for USD" {
			t.Errorf("Warning = %q", conv.Warning)
		}
	})
}

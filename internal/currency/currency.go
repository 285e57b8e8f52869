// Package currency derives home-currency amounts for invoices issued in
// foreign currencies. Rates come from a pluggable provider with a small
// in-memory cache; a missing rate is reported as a warning on the invoice,
// never a pipeline failure.
package currency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/remit/internal/invoices"
)

// RateProvider resolves the exchange rate from one currency to another.
// The boolean result reports whether a rate was available; absence is not
// an error.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, bool, error)
}

// Conversion is the outcome of normalizing one invoice. Warning carries
// the reviewer-facing message when no conversion was possible.
type Conversion struct {
	Command *invoices.CurrencyCommand
	Warning string
}

// Normalizer converts invoice totals into the home currency.
type Normalizer struct {
	home     string
	provider RateProvider
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedRate
	ttl   time.Duration
}

type cachedRate struct {
	rate    decimal.Decimal
	fetched time.Time
}

// NewNormalizer creates a Normalizer converting into home using the given
// provider. Rates are cached for ttl; zero disables caching.
func NewNormalizer(home string, provider RateProvider, logger *slog.Logger, ttl time.Duration) *Normalizer {
	return &Normalizer{
		home:     home,
		provider: provider,
		logger:   logger.With("system", "currency"),
		cache:    make(map[string]cachedRate),
		ttl:      ttl,
	}
}

// Home returns the home currency code.
func (n *Normalizer) Home() string {
	return n.home
}

// Normalize computes the home-currency amount for an invoice. Invoices
// already in the home currency get a rate of 1 with the total carried
// over unchanged. The result amount is always rounded to two decimal
// places, half up.
func (n *Normalizer) Normalize(ctx context.Context, inv *invoices.Invoice) Conversion {
	if !inv.TotalInclusiveTax.Valid {
		return Conversion{}
	}

	total := inv.TotalInclusiveTax.Decimal

	if inv.Currency == n.home {
		return Conversion{
			Command: &invoices.CurrencyCommand{
				ExchangeRate: decimal.NewFromInt(1),
				HomeAmount:   total.Round(2),
			},
		}
	}

	rate, ok, err := n.lookup(ctx, inv.Currency)
	if err != nil {
		n.logger.Warn("rate lookup failed",
			"id", inv.ID,
			"currency", inv.Currency,
			"error", err,
		)
		return Conversion{Warning: "exchange rate lookup failed for " + inv.Currency}
	}
	if !ok {
		return Conversion{Warning: "no exchange rate available for " + inv.Currency}
	}

	return Conversion{
		Command: &invoices.CurrencyCommand{
			ExchangeRate: rate,
			HomeAmount:   total.Mul(rate).Round(2),
		},
	}
}

func (n *Normalizer) lookup(ctx context.Context, from string) (decimal.Decimal, bool, error) {
	if n.ttl > 0 {
		n.mu.Lock()
		if cached, ok := n.cache[from]; ok && time.Since(cached.fetched) < n.ttl {
			n.mu.Unlock()
			return cached.rate, true, nil
		}
		n.mu.Unlock()
	}

	rate, ok, err := n.provider.Rate(ctx, from, n.home)
	if err != nil || !ok {
		return decimal.Decimal{}, ok, err
	}

	if n.ttl > 0 {
		n.mu.Lock()
		n.cache[from] = cachedRate{rate: rate, fetched: time.Now()}
		n.mu.Unlock()
	}

	return rate, true, nil
}

package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// httpProvider fetches rates from an exchange-rate API serving the common
// `{"rates": {"JPY": 150.12, ...}}` shape keyed by base currency.
type httpProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a RateProvider backed by an HTTP rate API.
// baseURL is joined with the source currency code, e.g.
// https://api.example.com/v4/latest/USD.
func NewHTTPProvider(baseURL string, timeout time.Duration) RateProvider {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &httpProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type ratesResponse struct {
	Rates map[string]json.Number `json:"rates"`
}

func (p *httpProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, bool, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, from)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("fetch rates for %s: %w", from, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Decimal{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, false, fmt.Errorf("rate API returned %d for %s", resp.StatusCode, from)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("decode rate response: %w", err)
	}

	raw, ok := body.Rates[to]
	if !ok {
		return decimal.Decimal{}, false, nil
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("parse rate %q: %w", raw, err)
	}

	return rate, true, nil
}

// StaticProvider serves rates from a fixed table. Useful for tests and for
// deployments without an external rate source.
type StaticProvider map[string]decimal.Decimal

func (p StaticProvider) Rate(_ context.Context, from, to string) (decimal.Decimal, bool, error) {
	rate, ok := p[from+":"+to]
	return rate, ok, nil
}

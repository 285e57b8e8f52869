package exporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/internal/invoices"
)

// LedgerConnector posts export batches to an accounting system's HTTP
// endpoint and reads the batch id from its response.
type LedgerConnector struct {
	endpoint string
	client   *http.Client
}

// NewLedgerConnector creates a connector targeting the given endpoint.
func NewLedgerConnector(endpoint string, timeout time.Duration) *LedgerConnector {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &LedgerConnector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ledgerResponse struct {
	BatchID string `json:"batch_id"`
}

func (c *LedgerConnector) SubmitBatch(ctx context.Context, batch []invoices.Invoice) (string, error) {
	body, err := json.Marshal(map[string]any{"invoices": batch})
	if err != nil {
		return "", fmt.Errorf("marshal export batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit export batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("accounting target returned %d", resp.StatusCode)
	}

	var parsed ledgerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode export response: %w", err)
	}

	if parsed.BatchID == "" {
		return "", fmt.Errorf("accounting target returned no batch id")
	}

	return parsed.BatchID, nil
}

// LocalConnector assigns batch ids locally without leaving the process.
// It serves deployments with no accounting target configured.
type LocalConnector struct{}

func (LocalConnector) SubmitBatch(_ context.Context, _ []invoices.Invoice) (string, error) {
	return uuid.NewString(), nil
}

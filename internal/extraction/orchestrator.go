package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"github.com/JaimeStill/document-context/pkg/image"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/remit/internal/intakes"
	"github.com/JaimeStill/remit/internal/invoices"
	"github.com/JaimeStill/remit/pkg/formatting"
)

const sourcePDF = "source.pdf"

// Options tunes retry behavior and the currency assumed when the document
// does not state one.
type Options struct {
	MaxAttempts      uint64
	RetryInterval    time.Duration
	FallbackCurrency string
}

// System defines the public contract for the extraction stage.
// Extract returns the command to persist on the invoice; failures that
// carry a model response wrap FailedError so the raw text survives.
type System interface {
	Extract(ctx context.Context, intakeID uuid.UUID) (*invoices.ExtractionCommand, error)
}

type orchestrator struct {
	agent   gaconfig.AgentConfig
	intakes intakes.System
	logger  *slog.Logger
	opts    Options
}

// New creates an extraction orchestrator implementing the System interface.
func New(
	agentCfg gaconfig.AgentConfig,
	intakeSys intakes.System,
	logger *slog.Logger,
	opts Options,
) System {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 2 * time.Second
	}
	if opts.FallbackCurrency == "" {
		opts.FallbackCurrency = "JPY"
	}

	return &orchestrator{
		agent:   agentCfg,
		intakes: intakeSys,
		logger:  logger.With("system", "extraction"),
		opts:    opts,
	}
}

func (o *orchestrator) Extract(ctx context.Context, intakeID uuid.UUID) (*invoices.ExtractionCommand, error) {
	data, contentType, err := o.intakes.Download(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("load intake %s: %w", intakeID, err)
	}

	uris, err := encodePages(ctx, data, contentType)
	if err != nil {
		return nil, &FailedError{Err: fmt.Errorf("%w: %w", ErrExtractFailed, err)}
	}

	raw, err := o.callModel(ctx, uris)
	if err != nil {
		return nil, &FailedError{Err: fmt.Errorf("%w: %w", ErrExtractFailed, err)}
	}

	parsed, err := formatting.Parse[payload](raw)
	if err != nil {
		return nil, &FailedError{Raw: raw, Err: fmt.Errorf("%w: %w", ErrExtractFailed, err)}
	}

	f := coerce(parsed, o.opts.FallbackCurrency)

	extractedData, err := json.Marshal(parsed)
	if err != nil {
		return nil, &FailedError{Raw: raw, Err: fmt.Errorf("marshal extracted data: %w", err)}
	}

	cmd := &invoices.ExtractionCommand{
		IssuerName:         f.Issuer,
		RecipientName:      f.Payer,
		InvoiceNumber:      f.InvoiceNumber,
		RegistrationNumber: f.RegistrationNumber,
		IssueDate:          f.IssueDate,
		DueDate:            f.DueDate,
		Currency:           f.Currency,
		TotalInclusiveTax:  f.AmountInclusiveTax,
		TotalExclusiveTax:  f.AmountExclusiveTax,
		ExtractedData:      extractedData,
		RawResponse:        raw,
	}

	for i, li := range f.LineItems {
		cmd.LineItems = append(cmd.LineItems, invoices.LineItemCommand{
			LineNumber:      i + 1,
			ItemDescription: li.Description,
			Quantity:        li.Quantity,
			UnitPrice:       li.UnitPrice,
			Amount:          li.Amount,
			TaxRate:         li.TaxRate,
		})
	}

	o.logger.Info("extraction complete",
		"intake_id", intakeID,
		"currency", cmd.Currency,
		"line_items", len(cmd.LineItems),
	)
	return cmd, nil
}

// callModel sends the page images to the vision model, retrying transient
// failures with exponential backoff. Context cancellation stops the retry
// loop but never interrupts a call already in flight.
func (o *orchestrator) callModel(ctx context.Context, uris []string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.opts.RetryInterval

	operation := func() (string, error) {
		a, err := agent.New(&o.agent)
		if err != nil {
			return "", backoff.Permanent(fmt.Errorf("create agent: %w", err))
		}

		resp, err := a.Vision(ctx, extractionPrompt, uris)
		if err != nil {
			return "", fmt.Errorf("vision call: %w", err)
		}

		content := resp.Content()
		if content == "" {
			return "", ErrEmptyResponse
		}

		return content, nil
	}

	return backoff.RetryWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, o.opts.MaxAttempts-1), ctx),
	)
}

// encodePages converts the document into one data URI per page. PDFs are
// rendered to PNG page images via ImageMagick; raster images pass through.
func encodePages(ctx context.Context, data []byte, contentType string) ([]string, error) {
	switch contentType {
	case "application/pdf":
		return renderPDF(ctx, data)
	case "image/png":
		uri, err := encoding.EncodeImageDataURI(data, document.PNG)
		if err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		return []string{uri}, nil
	case "image/jpeg":
		uri, err := encoding.EncodeImageDataURI(data, document.JPEG)
		if err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		return []string{uri}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}
}

func renderPDF(ctx context.Context, data []byte) ([]string, error) {
	tempDir, err := os.MkdirTemp("", "remit-extract-*")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, sourcePDF)
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	pdfDoc, err := document.OpenPDF(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(config.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	allPages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}

	uris := make([]string, len(allPages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renderWorkerCount(len(allPages)))

	for i, page := range allPages {
		pageNum := i + 1
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			imgData, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", pageNum, err)
			}

			uri, err := encoding.EncodeImageDataURI(imgData, document.PNG)
			if err != nil {
				return fmt.Errorf("encode page %d: %w", pageNum, err)
			}

			uris[i] = uri
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return uris, nil
}

func renderWorkerCount(pageCount int) int {
	return max(min(runtime.NumCPU(), pageCount), 1)
}

package invoices

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/pagination"
	"github.com/JaimeStill/remit/pkg/query"
	"github.com/JaimeStill/remit/pkg/repository"
)

const invoiceColumns = `id, intake_id, created_by, status, issuer_name, recipient_name,
	invoice_number, registration_number, issue_date, due_date, currency,
	total_inclusive_tax, total_exclusive_tax, exchange_rate, home_amount,
	extracted_data, raw_response, failure_reason, is_valid, validation_errors,
	validation_warnings, completeness_score, approved_by, approved_at,
	approval_comment, rejection_reason, exported, exported_at, export_batch_id,
	created_at, updated_at`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an invoice repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "invoices"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Invoice], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "IssuerName", "RecipientName", "InvoiceNumber")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanInvoice)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	inv, err := repository.QueryOne(ctx, r.db, q, args, scanInvoice)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &inv, nil
}

func (r *repo) FindByIntake(ctx context.Context, intakeID uuid.UUID) (*Invoice, error) {
	q, args := query.NewBuilder(projection).BuildSingle("IntakeID", intakeID)

	inv, err := repository.QueryOne(ctx, r.db, q, args, scanInvoice)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &inv, nil
}

func (r *repo) LineItems(ctx context.Context, invoiceID uuid.UUID) ([]LineItem, error) {
	qb := query.NewBuilder(lineProjection, lineSort).
		WhereEquals("InvoiceID", &invoiceID)

	q, args := qb.BuildPage(1, 1000)
	items, err := repository.QueryMany(ctx, r.db, q, args, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	return items, nil
}

func (r *repo) FindPending(ctx context.Context, limit int) ([]Invoice, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM invoices WHERE status = 'uploaded' ORDER BY created_at ASC LIMIT $1",
		invoiceColumns,
	)

	items, err := repository.QueryMany(ctx, r.db, q, []any{limit}, scanInvoice)
	if err != nil {
		return nil, fmt.Errorf("query pending invoices: %w", err)
	}
	return items, nil
}

// lockInvoice loads an invoice inside a transaction with a row lock, so
// the status read and the subsequent update are not subject to races.
func lockInvoice(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Invoice, error) {
	q := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1 FOR UPDATE", invoiceColumns)
	return repository.QueryOne(ctx, tx, q, []any{id}, scanInvoice)
}

// advance applies an event to a locked invoice, updating its status with
// the supplied extra SET clauses and arguments. Argument placeholders in
// sets start at $3 ($1 is the new status, $2 the invoice id).
func advance(
	ctx context.Context,
	tx *sql.Tx,
	inv Invoice,
	event Event,
	sets string,
	args ...any,
) (Invoice, error) {
	next, err := NextStatus(inv.Status, event)
	if err != nil {
		return Invoice{}, err
	}

	clause := "status = $1, updated_at = NOW()"
	if sets != "" {
		clause += ", " + sets
	}

	q := fmt.Sprintf(
		"UPDATE invoices SET %s WHERE id = $2 RETURNING %s",
		clause, invoiceColumns,
	)

	full := append([]any{next, inv.ID}, args...)
	updated, err := repository.QueryOne(ctx, tx, q, full, scanInvoice)
	if err != nil {
		return Invoice{}, fmt.Errorf("advance invoice to %s: %w", next, err)
	}
	return updated, nil
}

func (r *repo) MarkProcessing(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Invoice, error) {
		current, err := lockInvoice(ctx, tx, id)
		if err != nil {
			return Invoice{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		return advance(ctx, tx, current, EventExtractionStarted, "")
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("invoice processing", "id", inv.ID)
	return &inv, nil
}

func (r *repo) StoreExtraction(ctx context.Context, id uuid.UUID, cmd ExtractionCommand) (*Invoice, error) {
	sets := strings.Join([]string{
		"issuer_name = $3",
		"recipient_name = $4",
		"invoice_number = $5",
		"registration_number = $6",
		"issue_date = $7",
		"due_date = $8",
		"currency = $9",
		"total_inclusive_tax = $10",
		"total_exclusive_tax = $11",
		"extracted_data = $12",
		"raw_response = $13",
	}, ", ")

	args := []any{
		cmd.IssuerName,
		cmd.RecipientName,
		cmd.InvoiceNumber,
		cmd.RegistrationNumber,
		cmd.IssueDate,
		cmd.DueDate,
		cmd.Currency,
		cmd.TotalInclusiveTax,
		cmd.TotalExclusiveTax,
		cmd.ExtractedData,
		cmd.RawResponse,
	}

	inv, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Invoice, error) {
		current, err := lockInvoice(ctx, tx, id)
		if err != nil {
			return Invoice{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		updated, err := advance(ctx, tx, current, EventExtractionSucceeded, sets, args...)
		if err != nil {
			return Invoice{}, err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM invoice_line_items WHERE invoice_id = $1", id,
		); err != nil {
			return Invoice{}, fmt.Errorf("clear line items: %w", err)
		}

		for _, li := range cmd.LineItems {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO invoice_line_items(
					invoice_id, line_number, item_description,
					quantity, unit_price, amount, tax_rate
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, li.LineNumber, li.ItemDescription,
				li.Quantity, li.UnitPrice, li.Amount, li.TaxRate,
			); err != nil {
				return Invoice{}, fmt.Errorf("insert line item %d: %w", li.LineNumber, err)
			}
		}

		return updated, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("extraction stored",
		"id", inv.ID,
		"currency", inv.Currency,
		"line_items", len(cmd.LineItems),
	)
	return &inv, nil
}

func (r *repo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, raw *string) (*Invoice, error) {
	inv, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Invoice, error) {
		current, err := lockInvoice(ctx, tx, id)
		if err != nil {
			return Invoice{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		return advance(ctx, tx, current, EventExtractionFailed,
			"failure_reason = $3, raw_response = COALESCE($4, raw_response)",
			reason, raw,
		)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Warn("invoice failed", "id", inv.ID, "reason", reason)
	return &inv, nil
}

func (r *repo) StoreValidation(ctx context.Context, id uuid.UUID, cmd ValidationCommand) (*Invoice, error) {
	errorsJSON, err := json.Marshal(cmd.Errors)
	if err != nil {
		return nil, fmt.Errorf("marshal validation errors: %w", err)
	}

	warningsJSON, err := json.Marshal(cmd.Warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal validation warnings: %w", err)
	}

	sets := "is_valid = $3, validation_errors = $4, validation_warnings = $5, completeness_score = $6"
	args := []any{cmd.IsValid, errorsJSON, warningsJSON, cmd.CompletenessScore}

	inv, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Invoice, error) {
		current, err := lockInvoice(ctx, tx, id)
		if err != nil {
			return Invoice{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		updated, err := advance(ctx, tx, current, EventValidationCompleted, sets, args...)
		if err != nil {
			return Invoice{}, err
		}

		// Invalid invoices move straight to requires_review; a human
		// decision is needed before they can progress further.
		if !cmd.IsValid {
			return advance(ctx, tx, updated, EventReviewFlagged, "")
		}

		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("validation stored",
		"id", inv.ID,
		"status", inv.Status,
		"valid", cmd.IsValid,
		"errors", len(cmd.Errors),
		"warnings", len(cmd.Warnings),
	)
	return &inv, nil
}

func (r *repo) StoreCurrency(ctx context.Context, id uuid.UUID, cmd CurrencyCommand) (*Invoice, error) {
	q := fmt.Sprintf(`
		UPDATE invoices
		SET exchange_rate = $1, home_amount = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING %s`, invoiceColumns)

	inv, err := repository.QueryOne(ctx, r.db, q,
		[]any{cmd.ExchangeRate, cmd.HomeAmount, id},
		scanInvoice,
	)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("currency stored",
		"id", inv.ID,
		"rate", cmd.ExchangeRate.String(),
		"home_amount", cmd.HomeAmount.String(),
	)
	return &inv, nil
}

func (r *repo) Approve(ctx context.Context, id uuid.UUID, cmd DecisionCommand) (*Invoice, error) {
	if cmd.Actor == "" {
		return nil, ErrMissingActor
	}

	inv, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Invoice, error) {
		current, err := lockInvoice(ctx, tx, id)
		if err != nil {
			return Invoice{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		replay, err := ResolveDecisionReplay(&current, StatusApproved, cmd.Actor)
		if err != nil {
			return Invoice{}, err
		}
		if replay {
			return current, nil
		}

		var comment *string
		if cmd.Comment != "" {
			comment = &cmd.Comment
		}

		return advance(ctx, tx, current, EventApproved,
			"approved_by = $3, approved_at = NOW(), approval_comment = $4",
			cmd.Actor, comment,
		)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("invoice approved", "id", inv.ID, "approved_by", cmd.Actor)
	return &inv, nil
}

func (r *repo) Reject(ctx context.Context, id uuid.UUID, cmd DecisionCommand) (*Invoice, error) {
	if cmd.Actor == "" {
		return nil, ErrMissingActor
	}
	if cmd.Comment == "" {
		return nil, ErrMissingReason
	}

	inv, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Invoice, error) {
		current, err := lockInvoice(ctx, tx, id)
		if err != nil {
			return Invoice{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		replay, err := ResolveDecisionReplay(&current, StatusRejected, cmd.Actor)
		if err != nil {
			return Invoice{}, err
		}
		if replay {
			return current, nil
		}

		return advance(ctx, tx, current, EventRejected,
			"approved_by = $3, approved_at = NOW(), rejection_reason = $4",
			cmd.Actor, cmd.Comment,
		)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("invoice rejected", "id", inv.ID, "rejected_by", cmd.Actor)
	return &inv, nil
}

func (r *repo) MarkExported(ctx context.Context, ids []uuid.UUID, batchID string) ([]Invoice, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}

	exported, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Invoice, error) {
		results := make([]Invoice, 0, len(ids))

		for _, id := range ids {
			current, err := lockInvoice(ctx, tx, id)
			if err != nil {
				return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
			}

			replay, err := ResolveExportReplay(&current, batchID)
			if err != nil {
				return nil, err
			}
			if replay {
				results = append(results, current)
				continue
			}

			updated, err := advance(ctx, tx, current, EventExported,
				"exported = TRUE, exported_at = NOW(), export_batch_id = $3",
				batchID,
			)
			if err != nil {
				return nil, err
			}

			results = append(results, updated)
		}

		return results, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("invoices exported", "batch_id", batchID, "count", len(exported))
	return exported, nil
}

func (r *repo) CountDuplicates(ctx context.Context, key DuplicateKey, exclude uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE issuer_name = $1
		  AND invoice_number = $2
		  AND total_inclusive_tax = $3
		  AND id <> $4`,
		key.Issuer, key.InvoiceNumber, key.Total, exclude,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count duplicates: %w", err)
	}
	return count, nil
}

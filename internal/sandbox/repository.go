package sandbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/pagination"
	"github.com/JaimeStill/remit/pkg/query"
	"github.com/JaimeStill/remit/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a sandbox repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "sandbox"),
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
) (*pagination.PageResult[Experiment], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "BatchName", "Filename", "IssuerName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count experiments: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanExperiment)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Experiment, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanExperiment)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) LineItems(ctx context.Context, experimentID uuid.UUID) ([]ExperimentLineItem, error) {
	qb := query.NewBuilder(lineProjection, lineSort).
		WhereEquals("ExperimentID", &experimentID)

	q, args := qb.BuildPage(1, 1000)
	items, err := repository.QueryMany(ctx, r.db, q, args, scanExperimentLineItem)
	if err != nil {
		return nil, fmt.Errorf("query experiment line items: %w", err)
	}
	return items, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Experiment, error) {
	if cmd.BatchName == "" {
		return nil, ErrMissingBatch
	}
	if cmd.ModelName == "" {
		return nil, ErrMissingModel
	}

	errorsJSON, err := json.Marshal(orEmpty(cmd.ValidationErrors))
	if err != nil {
		return nil, fmt.Errorf("marshal validation errors: %w", err)
	}

	warningsJSON, err := json.Marshal(orEmpty(cmd.ValidationWarnings))
	if err != nil {
		return nil, fmt.Errorf("marshal validation warnings: %w", err)
	}

	insertQ := `
		INSERT INTO experiment_results(
			batch_name, model_name, source_file_id, filename, file_size,
			issuer_name, recipient_name, invoice_number, registration_number,
			issue_date, due_date, currency, total_inclusive_tax,
			total_exclusive_tax, raw_response, is_valid, validation_errors,
			validation_warnings, completeness_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19)
		RETURNING id, batch_name, model_name, source_file_id, filename, file_size,
				  issuer_name, recipient_name, invoice_number, registration_number,
				  issue_date, due_date, currency, total_inclusive_tax,
				  total_exclusive_tax, raw_response, is_valid, validation_errors,
				  validation_warnings, completeness_score, created_at`

	insertArgs := []any{
		cmd.BatchName,
		cmd.ModelName,
		cmd.SourceFileID,
		cmd.Filename,
		cmd.FileSize,
		cmd.IssuerName,
		cmd.RecipientName,
		cmd.InvoiceNumber,
		cmd.RegistrationNumber,
		cmd.IssueDate,
		cmd.DueDate,
		cmd.Currency,
		cmd.TotalInclusiveTax,
		cmd.TotalExclusiveTax,
		cmd.RawResponse,
		cmd.IsValid,
		errorsJSON,
		warningsJSON,
		cmd.CompletenessScore,
	}

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Experiment, error) {
		created, err := repository.QueryOne(ctx, tx, insertQ, insertArgs, scanExperiment)
		if err != nil {
			return Experiment{}, fmt.Errorf("insert experiment: %w", err)
		}

		for _, li := range cmd.LineItems {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO experiment_line_items(
					experiment_id, line_number, item_description,
					quantity, unit_price, amount, tax_rate
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				created.ID, li.LineNumber, li.ItemDescription,
				li.Quantity, li.UnitPrice, li.Amount, li.TaxRate,
			); err != nil {
				return Experiment{}, fmt.Errorf("insert experiment line item %d: %w", li.LineNumber, err)
			}
		}

		return created, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("experiment recorded",
		"id", e.ID,
		"batch_name", e.BatchName,
		"model_name", e.ModelName,
	)
	return &e, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM experiment_results WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("experiment deleted", "id", id)
	return nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

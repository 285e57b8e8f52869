package intakes

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JaimeStill/remit/pkg/pagination"
	"github.com/JaimeStill/remit/pkg/query"
	"github.com/JaimeStill/remit/pkg/repository"
	"github.com/JaimeStill/remit/pkg/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an intake repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "intakes"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Intake], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "SubmittedBy")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count intakes: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanIntake)
	if err != nil {
		return nil, fmt.Errorf("query intakes: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Intake, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	n, err := repository.QueryOne(ctx, r.db, q, args, scanIntake)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &n, nil
}

func (r *repo) Submit(ctx context.Context, cmd SubmitCommand) (*SubmitResult, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(cmd.Data)
	checksum := hex.EncodeToString(sum[:])

	// Resubmission of the same document through the same source returns
	// the original registration unchanged.
	if existing, invoiceID, err := r.findByChecksum(ctx, checksum, cmd.SourceKind); err == nil {
		r.logger.Info("intake resubmission",
			"id", existing.ID,
			"checksum", checksum,
			"source_kind", cmd.SourceKind,
		)
		return &SubmitResult{Intake: existing, InvoiceID: invoiceID, Existing: true}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := uuid.New()
	invoiceID := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload intake blob: %w", err)
	}

	insertQ := `
		INSERT INTO intakes(
			id, source_kind, drive_file_id, mail_message_id,
			mail_attachment_id, sender, filename, content_type,
			size_bytes, page_count, storage_key, checksum, submitted_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, source_kind, drive_file_id, mail_message_id,
				  mail_attachment_id, sender, filename, content_type,
				  size_bytes, page_count, storage_key, checksum, submitted_by,
				  received_at, created_at, updated_at`

	insertArgs := []any{
		id,
		cmd.SourceKind,
		optional(cmd.DriveFileID),
		optional(cmd.MailMessageID),
		optional(cmd.MailAttachmentID),
		optional(cmd.Sender),
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		checksum,
		cmd.SubmittedBy,
	}

	n, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Intake, error) {
		created, err := repository.QueryOne(ctx, tx, insertQ, insertArgs, scanIntake)
		if err != nil {
			return Intake{}, fmt.Errorf("insert intake: %w", err)
		}

		// The invoice stub is seeded in the same transaction so an intake
		// never exists without its tracking invoice.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoices(id, intake_id, created_by, status)
			VALUES ($1, $2, $3, 'uploaded')`,
			invoiceID, id, cmd.SubmittedBy,
		); err != nil {
			return Intake{}, fmt.Errorf("seed invoice: %w", err)
		}

		return created, nil
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("intake registered",
		"id", n.ID,
		"invoice_id", invoiceID,
		"filename", n.Filename,
		"source_kind", n.SourceKind,
	)
	return &SubmitResult{Intake: &n, InvoiceID: invoiceID}, nil
}

func (r *repo) Download(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	n, err := r.Find(ctx, id)
	if err != nil {
		return nil, "", err
	}

	reader, err := r.storage.Download(ctx, n.StorageKey)
	if err != nil {
		return nil, "", fmt.Errorf("download intake blob: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read intake blob: %w", err)
	}

	return data, n.ContentType, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM intakes WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, n.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", n.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("intake deleted", "id", id)
	return nil
}

func (r *repo) findByChecksum(ctx context.Context, checksum, sourceKind string) (*Intake, uuid.UUID, error) {
	qb := query.NewBuilder(projection).
		WhereEquals("Checksum", &checksum).
		WhereEquals("SourceKind", &sourceKind)

	q, args := qb.BuildPage(1, 1)
	items, err := repository.QueryMany(ctx, r.db, q, args, scanIntake)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("query intake by checksum: %w", err)
	}
	if len(items) == 0 {
		return nil, uuid.Nil, ErrNotFound
	}

	var invoiceID uuid.UUID
	err = r.db.QueryRowContext(ctx,
		"SELECT id FROM invoices WHERE intake_id = $1", items[0].ID,
	).Scan(&invoiceID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("query seeded invoice: %w", err)
	}

	return &items[0], invoiceID, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("intakes/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}

// Package intakes implements the document intake domain for Remit.
// It normalizes invoice documents arriving from local upload, shared drive
// sync, or mail ingestion into a single intake record with blob storage,
// and seeds the invoice that tracks the document through the pipeline.
package intakes

import (
	"time"

	"github.com/google/uuid"
)

// Source kinds accepted by the intake normalizer.
const (
	SourceLocal       = "local"
	SourceSharedDrive = "shared_drive"
	SourceMail        = "mail"
)

// Intake represents a normalized invoice document with its metadata and
// blob storage reference. Checksum is the SHA-256 of the raw bytes and
// anchors idempotent resubmission within a source kind. The source kind
// determines which reference fields are populated: shared drive intakes
// carry DriveFileID, mail intakes carry the message and attachment ids
// plus the sender, and local uploads carry none.
type Intake struct {
	ID               uuid.UUID `json:"id"`
	SourceKind       string    `json:"source_kind"`
	DriveFileID      *string   `json:"drive_file_id"`
	MailMessageID    *string   `json:"mail_message_id"`
	MailAttachmentID *string   `json:"mail_attachment_id"`
	Sender           *string   `json:"sender"`
	Filename         string    `json:"filename"`
	ContentType      string    `json:"content_type"`
	SizeBytes        int64     `json:"size_bytes"`
	PageCount        *int      `json:"page_count"`
	StorageKey       string    `json:"storage_key"`
	Checksum         string    `json:"checksum"`
	SubmittedBy      string    `json:"submitted_by"`
	ReceivedAt       time.Time `json:"received_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SubmitCommand carries the data needed to register a new intake. The
// reference fields are bound to their source kind: DriveFileID only with
// shared drive submissions, and the mail message, attachment, and sender
// identifiers only with mail submissions.
type SubmitCommand struct {
	Data             []byte `validate:"required"`
	Filename         string `validate:"required"`
	ContentType      string
	SourceKind       string `validate:"required,oneof=local shared_drive mail"`
	DriveFileID      string `validate:"required_if=SourceKind shared_drive,excluded_unless=SourceKind shared_drive"`
	MailMessageID    string `validate:"required_if=SourceKind mail,excluded_unless=SourceKind mail"`
	MailAttachmentID string `validate:"required_if=SourceKind mail,excluded_unless=SourceKind mail"`
	Sender           string `validate:"required_if=SourceKind mail,excluded_unless=SourceKind mail"`
	SubmittedBy      string `validate:"required"`
	PageCount        *int
}

// SubmitResult pairs the intake with the invoice seeded for it.
// Existing reports whether the submission matched a previously registered
// document and returned it unchanged.
type SubmitResult struct {
	Intake    *Intake   `json:"intake"`
	InvoiceID uuid.UUID `json:"invoice_id"`
	Existing  bool      `json:"existing"`
}

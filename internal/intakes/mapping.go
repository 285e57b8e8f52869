package intakes

import (
	"net/url"

	"github.com/JaimeStill/remit/pkg/query"
	"github.com/JaimeStill/remit/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "intakes", "n").
	Project("id", "ID").
	Project("source_kind", "SourceKind").
	Project("drive_file_id", "DriveFileID").
	Project("mail_message_id", "MailMessageID").
	Project("mail_attachment_id", "MailAttachmentID").
	Project("sender", "Sender").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("checksum", "Checksum").
	Project("submitted_by", "SubmittedBy").
	Project("received_at", "ReceivedAt").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "ReceivedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for intake queries.
// Nil fields are ignored. All fields use exact matching.
type Filters struct {
	SourceKind  *string `json:"source_kind,omitempty"`
	Sender      *string `json:"sender,omitempty"`
	SubmittedBy *string `json:"submitted_by,omitempty"`
	ContentType *string `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("SourceKind", f.SourceKind).
		WhereEquals("Sender", f.Sender).
		WhereEquals("SubmittedBy", f.SubmittedBy).
		WhereEquals("ContentType", f.ContentType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("source_kind"); s != "" {
		f.SourceKind = &s
	}

	if s := values.Get("sender"); s != "" {
		f.Sender = &s
	}

	if s := values.Get("submitted_by"); s != "" {
		f.SubmittedBy = &s
	}

	if c := values.Get("content_type"); c != "" {
		f.ContentType = &c
	}

	return f
}

func scanIntake(s repository.Scanner) (Intake, error) {
	var n Intake

	err := s.Scan(
		&n.ID,
		&n.SourceKind,
		&n.DriveFileID,
		&n.MailMessageID,
		&n.MailAttachmentID,
		&n.Sender,
		&n.Filename,
		&n.ContentType,
		&n.SizeBytes,
		&n.PageCount,
		&n.StorageKey,
		&n.Checksum,
		&n.SubmittedBy,
		&n.ReceivedAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)

	return n, err
}

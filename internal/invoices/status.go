package invoices

import "fmt"

// Status is the lifecycle state of an invoice. Transitions are restricted
// to the table below; anything else is a state conflict.
type Status string

const (
	StatusUploaded       Status = "uploaded"
	StatusProcessing     Status = "processing"
	StatusExtracted      Status = "extracted"
	StatusValidated      Status = "validated"
	StatusRequiresReview Status = "requires_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusExported       Status = "exported"
	StatusFailed         Status = "failed"
)

// Event identifies what drives an invoice from one status to the next.
type Event string

const (
	EventExtractionStarted   Event = "extraction_started"
	EventExtractionSucceeded Event = "extraction_succeeded"
	EventExtractionFailed    Event = "extraction_failed"
	EventValidationCompleted Event = "validation_completed"
	EventReviewFlagged       Event = "review_flagged"
	EventApproved            Event = "approved"
	EventRejected            Event = "rejected"
	EventExported            Event = "exported"
)

type transition struct {
	from  Status
	event Event
	to    Status
}

// transitions is the complete set of legal status moves. failed is terminal:
// a document that needs another pass is resubmitted as a new intake.
var transitions = []transition{
	{StatusUploaded, EventExtractionStarted, StatusProcessing},
	{StatusProcessing, EventExtractionSucceeded, StatusExtracted},
	{StatusProcessing, EventExtractionFailed, StatusFailed},
	{StatusExtracted, EventValidationCompleted, StatusValidated},
	{StatusExtracted, EventExtractionFailed, StatusFailed},
	{StatusValidated, EventReviewFlagged, StatusRequiresReview},
	{StatusValidated, EventApproved, StatusApproved},
	{StatusValidated, EventRejected, StatusRejected},
	{StatusRequiresReview, EventApproved, StatusApproved},
	{StatusRequiresReview, EventRejected, StatusRejected},
	{StatusApproved, EventExported, StatusExported},
}

// NextStatus resolves the status an invoice moves to when event fires in the
// given status. Illegal combinations return ErrStateConflict with the
// attempted move preserved in the error message.
func NextStatus(from Status, event Event) (Status, error) {
	for _, t := range transitions {
		if t.from == from && t.event == event {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s on %s", ErrStateConflict, event, from)
}

// CanDecide reports whether an invoice in the given status accepts a human
// approval or rejection decision.
func CanDecide(s Status) bool {
	return s == StatusValidated || s == StatusRequiresReview
}

// ResolveDecisionReplay resolves a repeated approval or rejection against
// the invoice's recorded decision. When the invoice already sits in the
// decided status, a repeat by the recording actor replays the original
// decision untouched; any other actor gets ErrDecisionTaken. Invoices not
// yet in the decided status proceed normally.
func ResolveDecisionReplay(current *Invoice, decided Status, actor string) (bool, error) {
	if current.Status != decided {
		return false, nil
	}
	if current.ApprovedBy != nil && *current.ApprovedBy == actor {
		return true, nil
	}
	return false, ErrDecisionTaken
}

// ResolveExportReplay resolves a repeated export mark. An invoice already
// exported under the same batch id replays silently; a different batch id
// is a state conflict.
func ResolveExportReplay(current *Invoice, batchID string) (bool, error) {
	if current.Status != StatusExported {
		return false, nil
	}
	if current.ExportBatchID != nil && *current.ExportBatchID == batchID {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s already exported", ErrStateConflict, current.ID)
}

// Terminal reports whether the status admits no further transitions.
func Terminal(s Status) bool {
	switch s {
	case StatusRejected, StatusExported, StatusFailed:
		return true
	}
	return false
}

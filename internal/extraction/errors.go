package extraction

import "errors"

// Domain errors for extraction operations.
var (
	ErrExtractFailed = errors.New("extraction failed")
	ErrUnsupported   = errors.New("unsupported document type")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// FailedError carries the verbatim model response alongside the failure so
// callers can persist it for diagnosis. Raw is empty when the failure
// occurred before any response was received.
type FailedError struct {
	Raw string
	Err error
}

func (e *FailedError) Error() string {
	return e.Err.Error()
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig    = fmt.Errorf("configuration not found")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
	ErrUnknownProvider  = fmt.Errorf("unknown provider")
	ErrUnknownEncoding  = fmt.Errorf("unknown request encoding")
	ErrUnknownTransport = fmt.Errorf("unknown push transport")

	// Import protocol errors
	ErrJobSubmission         = fmt.Errorf("job submission failed")
	ErrSubmissionInProgress  = fmt.Errorf("an import is already running for this form")
	ErrMalformedProgress     = fmt.Errorf("malformed progress message")
	ErrJobReported           = fmt.Errorf("import reported an error")
	ErrTransportDisconnected = fmt.Errorf("lost connection to progress stream")

	// Persistence errors
	ErrRunNotFound = fmt.Errorf("import run not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// JobSubmissionError is returned when the import endpoint rejects a submission or cannot be reached.
//
// StatusCode and Status are set for HTTP-level rejections; Err is set for network and decode failures.
type JobSubmissionError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *JobSubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to start import: %v", e.Err)
	}
	return fmt.Sprintf("failed to start import: %s", e.Status)
}

func (e *JobSubmissionError) Unwrap() error { return e.Err }

// Label is the user-facing description, e.g. "Failed to start import: Internal Server Error".
func (e *JobSubmissionError) Label() string {
	if e.Err != nil {
		return "Failed to start import: " + e.Err.Error()
	}
	return "Failed to start import: " + e.Status
}

func (e *JobSubmissionError) Is(target error) bool { return target == ErrJobSubmission }

// MalformedProgressError wraps a progress frame that could not be decoded into an event.
type MalformedProgressError struct {
	Payload string
	Err     error
}

func (e *MalformedProgressError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMalformedProgress, e.Err)
}

func (e *MalformedProgressError) Unwrap() error { return e.Err }

func (e *MalformedProgressError) Is(target error) bool { return target == ErrMalformedProgress }

// JobReportedError carries the message of an import that ended with status "error".
//
// Message is empty when the server did not say why.
type JobReportedError struct {
	JobID   string
	Message string
}

func (e *JobReportedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (job %s)", ErrJobReported, e.JobID)
	}
	return fmt.Sprintf("%v (job %s): %s", ErrJobReported, e.JobID, e.Message)
}

func (e *JobReportedError) Is(target error) bool { return target == ErrJobReported }

// TransportError signals that the progress stream ended before a terminal event.
//
// The import may still be running server-side.
type TransportError struct {
	JobID string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (job %s)", ErrTransportDisconnected, e.JobID)
	}
	return fmt.Sprintf("%v (job %s): %v", ErrTransportDisconnected, e.JobID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransportDisconnected }

// IsTerminalImportError reports whether err ends an import run (server-side error or lost stream).
func IsTerminalImportError(err error) bool {
	return errors.Is(err, ErrJobReported) || errors.Is(err, ErrTransportDisconnected)
}

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	// ErrUnsupportedFileType is returned for files that are neither .json nor .png.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrMalformedJSON is returned when the workflow text is not valid JSON.
	ErrMalformedJSON = errors.New("malformed json")

	// ErrNotAPNG is returned when a .png file fails the signature check.
	ErrNotAPNG = errors.New("not a valid png file")

	// ErrNoWorkflowFound is returned when a PNG carries no recoverable workflow.
	ErrNoWorkflowFound = errors.New("no workflow data found in the image")

	// ErrLinkResolutionSkipped marks a link dropped during projection. It is never fatal.
	ErrLinkResolutionSkipped = errors.New("link resolution skipped")

	// ErrHistoryNotFound is returned when a filename is not in the history store.
	ErrHistoryNotFound = errors.New("history entry not found")

	// ErrNoGraphLoaded is returned when the viewer has nothing to show yet.
	ErrNoGraphLoaded = errors.New("no graph loaded")
)

// ExtractionError reports why a file could not be turned into a workflow.
// It matches both its Kind and its underlying cause with errors.Is.
type ExtractionError struct {
	Kind     error  // One of the sentinels above
	Filename string // File being extracted
	Err      error  // Optional underlying error (e.g., from json.Unmarshal)
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Filename != "" {
		msg = fmt.Sprintf("%s: %s", e.Filename, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

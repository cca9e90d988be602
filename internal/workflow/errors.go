package workflow

import "errors"

// Validation rejections. The request is never sent and the log is untouched.
var (
	ErrEmptySubmission   = errors.New("nothing to submit")
	ErrBusy              = errors.New("a request is already in progress")
	ErrNoSession         = errors.New("Please initialize a session first.")
	ErrEmptyQuery        = errors.New("Please enter a query.")
	ErrNoFiles           = errors.New("no files selected")
	ErrUploadUnsupported = errors.New("this flow does not upload files separately")
	ErrNoBenchmarkFiles  = errors.New("Please upload at least one file for analysis.")
)

// User-facing texts.
const (
	NoResponsePlaceholder = "No response from AI"
	RequestFailedMessage  = "Error processing request"
	UploadSucceededNotice = "Files uploaded successfully."
	SessionReadyNotice    = "Session initialized successfully."
	UploadFailedNotice    = "File upload failed."
	AnalysisFailedNotice  = "Process failed. Please try again."
)

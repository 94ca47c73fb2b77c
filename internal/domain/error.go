package domain

import "errors"

var (
	// Workflow error taxonomy
	ErrAuthentication  = errors.New("authentication failed")
	ErrTransport       = errors.New("transport error")
	ErrUpload          = errors.New("source upload failed")
	ErrOperationFailed = errors.New("operation reported a terminal failure")
	ErrPollTimeout     = errors.New("operation did not reach a terminal state before the deadline")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("entity not found")
)

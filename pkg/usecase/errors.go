package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrStatusReportNotFound = errors.New("status report not found")
	ErrStatusPageNotFound   = errors.New("status page not found")

	// Validation errors
	ErrInvalidPageComponents = errors.New("invalid page components")
	ErrPageMismatch          = errors.New("page does not match components")
)

// Context keys for error values
const (
	WorkspaceIDKey     = "workspace_id"
	StatusReportIDKey  = "status_report_id"
	PendingActionIDKey = "pending_action_id"
)

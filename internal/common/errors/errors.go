// Package errors provides standardized error handling for the onboarding workflow.
package errors

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Codes
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrCodeIncompleteApplication ErrorCode = "INCOMPLETE_APPLICATION"
	ErrCodeApplicationNotFound   ErrorCode = "APPLICATION_NOT_FOUND"

	ErrCodeRepositoryFailure      ErrorCode = "REPOSITORY_FAILURE"
	ErrCodeDraftStoreFailure      ErrorCode = "DRAFT_STORE_FAILURE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeRoleGrantFailed        ErrorCode = "ROLE_GRANT_FAILED"
	ErrCodeSearchIndexFailed      ErrorCode = "SEARCH_INDEX_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Typed Result Errors
// ==========================

// ValidationError carries per-field messages for one wizard step or one
// workflow operation. It is recoverable: the caller re-renders the form.
type ValidationError struct {
	StepID string            `json:"stepId,omitempty"`
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

// NewValidationError creates a field-level validation error.
func NewValidationError(stepID string, fields map[string]string) *ValidationError {
	return &ValidationError{StepID: stepID, Fields: fields}
}

// NewFieldError creates a validation error for a single field.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// InvalidTransitionError reports an approval-status transition that is not
// legal from the application's current status. Recoverable by re-fetching
// current state; typically "already approved by someone else".
type InvalidTransitionError struct {
	ApplicationID string `json:"applicationId"`
	From          string `json:"from"`
	Attempted     string `json:"attempted"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s application %s from status %q",
		e.Attempted, e.ApplicationID, e.From)
}

// NewInvalidTransitionError creates a state-machine transition error.
func NewInvalidTransitionError(applicationID, from, attempted string) *InvalidTransitionError {
	return &InvalidTransitionError{ApplicationID: applicationID, From: from, Attempted: attempted}
}

// IncompleteApplicationError reports a finalize attempt with required fields
// missing. The wizard session is preserved so the user can fix and retry.
type IncompleteApplicationError struct {
	Missing []string `json:"missing"`
}

func (e *IncompleteApplicationError) Error() string {
	return fmt.Sprintf("incomplete application: missing required fields: %s",
		strings.Join(e.Missing, ", "))
}

// NewIncompleteApplicationError creates an incomplete-application error.
func NewIncompleteApplicationError(missing []string) *IncompleteApplicationError {
	return &IncompleteApplicationError{Missing: missing}
}

// NotificationDeliveryError reports a failed notification dispatch. It is
// logged only and never rolls back a committed transition.
type NotificationDeliveryError struct {
	Event     string `json:"event"`
	Recipient string `json:"recipient"`
	Err       error  `json:"-"`
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notification delivery failed: event=%s recipient=%s: %v",
		e.Event, e.Recipient, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }

// NewNotificationDeliveryError creates a non-fatal delivery error.
func NewNotificationDeliveryError(event, recipient string, err error) *NotificationDeliveryError {
	return &NotificationDeliveryError{Event: event, Recipient: recipient, Err: err}
}

// RepositoryError reports a persistence-layer failure. Fatal for the current
// operation; atomic writes mean no partial state is left behind.
type RepositoryError struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository error in %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepositoryError wraps a persistence failure.
func NewRepositoryError(op string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Err: err}
}

// ==========================
// 3. Standard Constructors
// ==========================

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDraftStoreFailedError creates a retryable session-store error.
func NewDraftStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftStoreFailure,
		Message:   "Draft store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeRepositoryFailure,
		ErrCodeDraftStoreFailure,
		ErrCodeNotificationSendFailed,
		ErrCodeRoleGrantFailed,
		ErrCodeSearchIndexFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INCOMPLETE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TRANSITION"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "REPOSITORY") || strings.Contains(codeStr, "DRAFT_STORE"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "ROLE") || strings.Contains(codeStr, "SEARCH"):
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := NewValidationError("details", map[string]string{
		"details_name":    "too short",
		"details_cuisine": "unknown",
	})
	// Field names are sorted so the message does not depend on map order.
	assert.Equal(t, "validation failed: details_cuisine, details_name", err.Error())
}

func TestInvalidTransitionError(t *testing.T) {
	err := NewInvalidTransitionError("app-1", "approved", "rejected")
	assert.Contains(t, err.Error(), "app-1")
	assert.Contains(t, err.Error(), `"approved"`)
}

func TestRepositoryErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewRepositoryError("create application", cause)
	assert.ErrorIs(t, err, cause)
}

func TestNotificationDeliveryErrorUnwraps(t *testing.T) {
	cause := errors.New("throttled")
	err := NewNotificationDeliveryError("application_approved", "mario@example.com", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeDraftStoreFailure))
	assert.True(t, IsRetryableErrorCode(ErrCodeNotificationSendFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidationFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidTransition))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeIncompleteApplication))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeInvalidTransition))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeRepositoryFailure))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeRoleGrantFailed))
}

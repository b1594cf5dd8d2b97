// internal/notify/notify.go
package notify

import (
	"context"

	"restaurant-onboarding/internal/models"
)

// Event names the lifecycle moment a notification announces.
type Event string

const (
	EventSubmittedConfirmation Event = "application_submitted"
	EventReviewRequested       Event = "review_requested"
	EventApproved              Event = "application_approved"
	EventRejected              Event = "application_rejected"
	EventSuspended             Event = "application_suspended"
	EventReactivated           Event = "application_reactivated"
	EventExpired               Event = "application_expired"
)

// Message is one notification to dispatch. Recipient is an email address for
// owner-facing events and ignored for manager broadcasts.
type Message struct {
	Event       Event
	Recipient   string
	Application *models.RestaurantApplication
	Reason      string
}

// Dispatcher delivers notifications. Dispatch is fire-and-forget from the
// workflow's point of view: callers log failures but never roll back a
// committed transition because of one.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

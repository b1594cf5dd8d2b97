// internal/models/application.go
package models

import "time"

// ApprovalStatus is the lifecycle status of a restaurant application.
type ApprovalStatus string

const (
	StatusDraft       ApprovalStatus = "draft"
	StatusSubmitted   ApprovalStatus = "submitted"
	StatusPending     ApprovalStatus = "pending"
	StatusUnderReview ApprovalStatus = "under_review"
	StatusApproved    ApprovalStatus = "approved"
	StatusRejected    ApprovalStatus = "rejected"
	StatusActive      ApprovalStatus = "active"
	StatusSuspended   ApprovalStatus = "suspended"
	StatusExpired     ApprovalStatus = "expired"
)

// Reviewable reports whether a manager decision (approve/reject) is legal
// from this status.
func (s ApprovalStatus) Reviewable() bool {
	switch s {
	case StatusSubmitted, StatusPending, StatusUnderReview:
		return true
	default:
		return false
	}
}

// RestaurantApplication is the persisted application created from a finalized
// wizard draft. The owner reference is immutable after creation.
type RestaurantApplication struct {
	ID              string            `json:"id" db:"id"`
	OwnerID         string            `json:"ownerId" db:"owner_id"`
	SubmissionToken string            `json:"submissionToken" db:"submission_token"`
	Fields          map[string]string `json:"fields" db:"fields"`

	RestaurantName string `json:"restaurantName" db:"restaurant_name"`
	CuisineType    string `json:"cuisineType" db:"cuisine_type"`
	Phone          string `json:"phone" db:"phone"`
	Address        string `json:"address" db:"address"`

	ApprovalStatus ApprovalStatus `json:"approvalStatus" db:"approval_status"`
	IsApproved     bool           `json:"isApproved" db:"is_approved"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	Vouched        bool           `json:"vouched" db:"vouched"`

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty" db:"submitted_at"`

	ApprovedAt *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	ApprovedBy string     `json:"approvedBy,omitempty" db:"approved_by"`

	RejectedAt      *time.Time `json:"rejectedAt,omitempty" db:"rejected_at"`
	RejectedBy      string     `json:"rejectedBy,omitempty" db:"rejected_by"`
	RejectionReason string     `json:"rejectionReason,omitempty" db:"rejection_reason"`

	SuspendedAt      *time.Time `json:"suspendedAt,omitempty" db:"suspended_at"`
	SuspendedBy      string     `json:"suspendedBy,omitempty" db:"suspended_by"`
	SuspensionReason string     `json:"suspensionReason,omitempty" db:"suspension_reason"`
}

// Field returns a submitted field value, or "" when absent.
func (a *RestaurantApplication) Field(name string) string {
	if a.Fields == nil {
		return ""
	}
	return a.Fields[name]
}

// OwnerProfile carries the owner attributes the trust engine reads.
type OwnerProfile struct {
	UserID   string `json:"userId" db:"user_id"`
	Email    string `json:"email" db:"email"`
	Phone    string `json:"phone" db:"phone"`
	Active   bool   `json:"active" db:"active"`
	Verified bool   `json:"verified" db:"verified"`
}

// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"restaurant-onboarding/internal/models"
)

var (
	// ErrNotFound is returned when no application matches the lookup.
	ErrNotFound = errors.New("application not found")

	// ErrStatusConflict is returned when a lifecycle update found the row in
	// a status its transition does not allow. The caller refetches to learn
	// the current status.
	ErrStatusConflict = errors.New("application status conflict")
)

// ApplicationRepository is the persistence boundary for restaurant
// applications. Every lifecycle method applies its status check and update
// atomically, so concurrent reviewers cannot both win the same transition.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.RestaurantApplication) error
	GetByID(ctx context.Context, id string) (*models.RestaurantApplication, error)
	FindBySubmissionToken(ctx context.Context, token string) (*models.RestaurantApplication, error)

	MarkSubmitted(ctx context.Context, id, actor string) error
	MarkApproved(ctx context.Context, id, actor string) error
	MarkRejected(ctx context.Context, id, actor, reason string) error
	MarkSuspended(ctx context.Context, id, actor, reason string) error
	MarkReactivated(ctx context.Context, id, actor string) error
	MarkExpired(ctx context.Context, id, actor string) error

	FindPending(ctx context.Context) ([]*models.RestaurantApplication, error)
	FindStalePending(ctx context.Context, submittedBefore time.Time) ([]*models.RestaurantApplication, error)

	CountOwnerApproved(ctx context.Context, ownerID string) (int, error)
	OwnerAverageRating(ctx context.Context, ownerID string) (float64, error)
	GetOwnerProfile(ctx context.Context, ownerID string) (*models.OwnerProfile, error)

	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

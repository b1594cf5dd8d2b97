// internal/roles/granter.go
package roles

import (
	"context"

	"restaurant-onboarding/internal/models"
)

// Granter manages platform roles in the identity provider. Both operations
// are idempotent: granting a role a user already holds and revoking a role a
// user does not hold both succeed.
type Granter interface {
	Grant(ctx context.Context, userID string, role models.Role) error
	Revoke(ctx context.Context, userID string, role models.Role) error
}

// Noop satisfies Granter without an identity provider. Used in tests and in
// deployments where role sync is handled elsewhere.
type Noop struct{}

func (Noop) Grant(ctx context.Context, userID string, role models.Role) error {
	return nil
}

func (Noop) Revoke(ctx context.Context, userID string, role models.Role) error {
	return nil
}

// internal/draftstore/store.go
package draftstore

import (
	"context"

	"restaurant-onboarding/internal/models"
)

// Store holds in-progress wizard sessions keyed by session key. Entries are
// transient: they expire on their own and are cleared on finalization or
// abandonment.
type Store interface {
	// Get returns the stored session state, or (nil, nil) when no draft
	// exists for the key.
	Get(ctx context.Context, key string) (*models.WizardSessionState, error)

	// Set stores the session state, resetting its expiry.
	Set(ctx context.Context, key string, state *models.WizardSessionState) error

	// Clear removes the draft. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

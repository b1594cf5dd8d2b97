// internal/search/indexer.go
package search

import (
	"context"

	"restaurant-onboarding/internal/models"
)

// Indexer maintains the customer-facing restaurant index. Only approved,
// active restaurants belong in it.
type Indexer interface {
	Index(ctx context.Context, app *models.RestaurantApplication) error
	Remove(ctx context.Context, applicationID string) error
}

// Noop satisfies Indexer when search is disabled.
type Noop struct{}

func (Noop) Index(ctx context.Context, app *models.RestaurantApplication) error { return nil }
func (Noop) Remove(ctx context.Context, applicationID string) error             { return nil }

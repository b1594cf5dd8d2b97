// internal/workflow/engine.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/common/metrics"
	"restaurant-onboarding/internal/models"
	"restaurant-onboarding/internal/notify"
	"restaurant-onboarding/internal/repository"
	"restaurant-onboarding/internal/roles"
	"restaurant-onboarding/internal/search"
)

// Engine drives the approval lifecycle of restaurant applications. Every
// transition is applied atomically by the repository; the engine layers the
// side effects on top: role grants, search index maintenance, and
// notifications. Side effects run only after the transition committed and
// never undo it.
type Engine struct {
	repo     repository.ApplicationRepository
	notifier notify.Dispatcher
	granter  roles.Granter
	indexer  search.Indexer
	log      logger.Logger
}

func NewEngine(repo repository.ApplicationRepository, notifier notify.Dispatcher, granter roles.Granter, indexer search.Indexer, log logger.Logger) *Engine {
	return &Engine{
		repo:     repo,
		notifier: notifier,
		granter:  granter,
		indexer:  indexer,
		log:      log,
	}
}

// SubmitResult reports the outcome of a Submit call.
type SubmitResult struct {
	Application      *models.RestaurantApplication
	AlreadySubmitted bool
}

// Submit moves a draft application to submitted. Submitting an application
// that is already past draft is a no-op reported via AlreadySubmitted, so
// duplicate submit requests cannot double-notify.
func (e *Engine) Submit(ctx context.Context, id, actor string) (*SubmitResult, error) {
	app, err := e.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	if app.ApprovalStatus != models.StatusDraft {
		return &SubmitResult{Application: app, AlreadySubmitted: true}, nil
	}

	if err := e.repo.MarkSubmitted(ctx, id, actor); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Lost the race to another submit: treat as already submitted.
			current, gerr := e.getApplication(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return &SubmitResult{Application: current, AlreadySubmitted: true}, nil
		}
		return nil, commonerrors.NewRepositoryError("submit application", err)
	}

	metrics.WorkflowTransitions.WithLabelValues(string(app.ApprovalStatus), string(models.StatusSubmitted)).Inc()
	metrics.ApplicationsSubmitted.Inc()

	updated, err := e.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	e.dispatch(ctx, notify.Message{
		Event:       notify.EventSubmittedConfirmation,
		Recipient:   updated.Field("account_email"),
		Application: updated,
	})
	e.dispatch(ctx, notify.Message{
		Event:       notify.EventReviewRequested,
		Application: updated,
	})

	return &SubmitResult{Application: updated}, nil
}

// Approve grants the application. On success the owner receives the
// restaurant_owner role, the restaurant enters the customer-facing search
// index, and the owner is notified. Role grant and indexing failures are
// logged, not fatal: the approval stands and the sync is repaired out of
// band.
func (e *Engine) Approve(ctx context.Context, id, actor string) error {
	app, err := e.transition(ctx, id, models.StatusApproved, func() error {
		return e.repo.MarkApproved(ctx, id, actor)
	})
	if err != nil {
		return err
	}

	if err := e.granter.Grant(ctx, app.OwnerID, models.RoleRestaurantOwner); err != nil {
		e.log.WithError(err).Error("Failed to grant owner role after approval", map[string]interface{}{
			"application_id": id,
			"owner_id":       app.OwnerID,
		})
	}

	if err := e.indexer.Index(ctx, app); err != nil {
		e.log.WithError(err).Error("Failed to index restaurant after approval", map[string]interface{}{
			"application_id": id,
		})
	}

	e.dispatch(ctx, notify.Message{
		Event:       notify.EventApproved,
		Recipient:   app.Field("account_email"),
		Application: app,
	})
	return nil
}

// Reject declines the application. A non-empty reason is required; it is
// persisted and included in the owner notification.
func (e *Engine) Reject(ctx context.Context, id, actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return commonerrors.NewFieldError("reason", "rejection reason is required")
	}

	app, err := e.transition(ctx, id, models.StatusRejected, func() error {
		return e.repo.MarkRejected(ctx, id, actor, reason)
	})
	if err != nil {
		return err
	}

	e.removeFromIndex(ctx, id)
	e.revokeOwnerRoleIfUnused(ctx, app.OwnerID)

	e.dispatch(ctx, notify.Message{
		Event:       notify.EventRejected,
		Recipient:   app.Field("account_email"),
		Application: app,
		Reason:      reason,
	})
	return nil
}

// Suspend takes an approved restaurant off the platform without destroying
// its approval history.
func (e *Engine) Suspend(ctx context.Context, id, actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return commonerrors.NewFieldError("reason", "suspension reason is required")
	}

	app, err := e.transition(ctx, id, models.StatusSuspended, func() error {
		return e.repo.MarkSuspended(ctx, id, actor, reason)
	})
	if err != nil {
		return err
	}

	e.removeFromIndex(ctx, id)

	e.dispatch(ctx, notify.Message{
		Event:       notify.EventSuspended,
		Recipient:   app.Field("account_email"),
		Application: app,
		Reason:      reason,
	})
	return nil
}

// Reactivate returns a suspended restaurant to approved and restores it in
// the search index.
func (e *Engine) Reactivate(ctx context.Context, id, actor string) error {
	app, err := e.transition(ctx, id, models.StatusApproved, func() error {
		return e.repo.MarkReactivated(ctx, id, actor)
	})
	if err != nil {
		return err
	}

	if err := e.indexer.Index(ctx, app); err != nil {
		e.log.WithError(err).Error("Failed to re-index restaurant after reactivation", map[string]interface{}{
			"application_id": id,
		})
	}

	e.dispatch(ctx, notify.Message{
		Event:       notify.EventReactivated,
		Recipient:   app.Field("account_email"),
		Application: app,
	})
	return nil
}

// ExpireStale expires every reviewable application submitted before the
// cutoff. Individual failures are logged and skipped so one bad row cannot
// stall the sweep. Returns the number of applications expired.
func (e *Engine) ExpireStale(ctx context.Context, olderThan time.Duration, actor string) (int, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("expiry").Observe(time.Since(start).Seconds())
	}()

	cutoff := time.Now().Add(-olderThan)
	stale, err := e.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, commonerrors.NewRepositoryError("find stale applications", err)
	}

	expired := 0
	for _, app := range stale {
		if err := e.repo.MarkExpired(ctx, app.ID, actor); err != nil {
			// Conflicts just mean a reviewer got there first.
			if !errors.Is(err, repository.ErrStatusConflict) {
				e.log.WithError(err).Error("Failed to expire application", map[string]interface{}{
					"application_id": app.ID,
				})
			}
			continue
		}

		metrics.WorkflowTransitions.WithLabelValues(string(app.ApprovalStatus), string(models.StatusExpired)).Inc()
		expired++

		e.removeFromIndex(ctx, app.ID)
		e.dispatch(ctx, notify.Message{
			Event:       notify.EventExpired,
			Recipient:   app.Field("account_email"),
			Application: app,
		})
	}

	e.log.Info("Expiry sweep finished", map[string]interface{}{
		"candidates": len(stale),
		"expired":    expired,
	})
	return expired, nil
}

// transition runs a repository lifecycle update and translates its failure
// modes. On a status conflict it refetches the row so the returned error
// names the actual current status.
func (e *Engine) transition(ctx context.Context, id string, to models.ApprovalStatus, update func() error) (*models.RestaurantApplication, error) {
	app, err := e.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	from := app.ApprovalStatus

	if err := update(); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			metrics.WorkflowTransitionConflicts.WithLabelValues(string(to)).Inc()
			current, gerr := e.getApplication(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return nil, commonerrors.NewInvalidTransitionError(id, string(current.ApprovalStatus), string(to))
		case errors.Is(err, repository.ErrNotFound):
			return nil, commonerrors.NewApplicationNotFoundError(id)
		default:
			return nil, commonerrors.NewRepositoryError(fmt.Sprintf("transition to %s", to), err)
		}
	}

	metrics.WorkflowTransitions.WithLabelValues(string(from), string(to)).Inc()

	return e.getApplication(ctx, id)
}

func (e *Engine) getApplication(ctx context.Context, id string) (*models.RestaurantApplication, error) {
	app, err := e.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, commonerrors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, commonerrors.NewRepositoryError("load application", err)
	}
	return app, nil
}

// revokeOwnerRoleIfUnused drops the owner role after a rejection unless the
// owner still runs another approved restaurant. Failures are logged, not
// fatal.
func (e *Engine) revokeOwnerRoleIfUnused(ctx context.Context, ownerID string) {
	count, err := e.repo.CountOwnerApproved(ctx, ownerID)
	if err != nil {
		e.log.WithError(err).Warn("Could not check remaining approved applications", map[string]interface{}{
			"owner_id": ownerID,
		})
		return
	}
	if count > 0 {
		return
	}
	if err := e.granter.Revoke(ctx, ownerID, models.RoleRestaurantOwner); err != nil {
		e.log.WithError(err).Error("Failed to revoke owner role after rejection", map[string]interface{}{
			"owner_id": ownerID,
		})
	}
}

func (e *Engine) removeFromIndex(ctx context.Context, id string) {
	if err := e.indexer.Remove(ctx, id); err != nil {
		e.log.WithError(err).Error("Failed to remove restaurant from index", map[string]interface{}{
			"application_id": id,
		})
	}
}

// dispatch sends a notification and swallows the error: delivery failures
// are logged by the dispatcher and must never affect a committed transition.
func (e *Engine) dispatch(ctx context.Context, msg notify.Message) {
	if err := e.notifier.Dispatch(ctx, msg); err != nil {
		e.log.WithError(err).Warn("Notification not delivered", map[string]interface{}{
			"event":          string(msg.Event),
			"application_id": applicationID(msg),
		})
	}
}

func applicationID(msg notify.Message) string {
	if msg.Application == nil {
		return ""
	}
	return msg.Application.ID
}

// internal/trust/autoapprove.go
package trust

import (
	"context"
	"errors"
	"time"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/common/metrics"
	"restaurant-onboarding/internal/models"
	"restaurant-onboarding/internal/repository"
	"restaurant-onboarding/internal/workflow"
)

// AutoApprovalConfig controls the auto-approval gates.
type AutoApprovalConfig struct {
	// Enabled is the feature flag. When false nothing is ever auto-approved.
	Enabled bool

	// MinOwnerRating is the average rating across the owner's approved
	// restaurants required for the track-record gate.
	MinOwnerRating float64

	// SystemActor is stamped as approved_by on auto-approved applications.
	SystemActor string
}

// AutoApprovalEngine decides which pending applications can skip manual
// review and applies those approvals through the workflow engine, so
// auto-approval takes exactly the same transition path as a manager click.
type AutoApprovalEngine struct {
	cfg    AutoApprovalConfig
	repo   repository.ApplicationRepository
	engine *workflow.Engine
	log    logger.Logger
}

func NewAutoApprovalEngine(cfg AutoApprovalConfig, repo repository.ApplicationRepository, engine *workflow.Engine, log logger.Logger) *AutoApprovalEngine {
	return &AutoApprovalEngine{cfg: cfg, repo: repo, engine: engine, log: log}
}

// CanAutoApprove evaluates the gates for one application. Gates run in
// order and the first failing gate decides:
//
//  1. the feature flag is on
//  2. the owner account is active
//  3. the owner identity is verified
//  4. the owner has a track record (at least one other approved application
//     with an average rating at or above the threshold), or a staff member
//     vouched for the application
func (a *AutoApprovalEngine) CanAutoApprove(ctx context.Context, app *models.RestaurantApplication) (bool, error) {
	if !a.cfg.Enabled {
		return false, nil
	}

	profile, err := a.repo.GetOwnerProfile(ctx, app.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, commonerrors.NewRepositoryError("load owner profile", err)
	}

	if !profile.Active || !profile.Verified {
		return false, nil
	}

	if app.Vouched {
		return true, nil
	}

	approvedCount, err := a.repo.CountOwnerApproved(ctx, app.OwnerID)
	if err != nil {
		return false, commonerrors.NewRepositoryError("count approved applications", err)
	}
	if approvedCount < 1 {
		return false, nil
	}

	rating, err := a.repo.OwnerAverageRating(ctx, app.OwnerID)
	if err != nil {
		return false, commonerrors.NewRepositoryError("load owner rating", err)
	}
	return rating >= a.cfg.MinOwnerRating, nil
}

// SweepResult summarizes one EvaluateAllPending run.
type SweepResult struct {
	Evaluated      int
	AutoApproved   int
	RequiresReview int
	Errors         int
}

// EvaluateAllPending walks every reviewable application and auto-approves
// the ones that pass the gates. Per-application failures are counted and
// skipped, never aborting the sweep. An application approved by a manager
// mid-sweep surfaces as an invalid transition and is counted as already
// handled, not as an error.
func (a *AutoApprovalEngine) EvaluateAllPending(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("auto_approval").Observe(time.Since(start).Seconds())
	}()

	pending, err := a.repo.FindPending(ctx)
	if err != nil {
		return nil, commonerrors.NewRepositoryError("find pending applications", err)
	}

	result := &SweepResult{}
	for _, app := range pending {
		result.Evaluated++

		ok, err := a.CanAutoApprove(ctx, app)
		if err != nil {
			result.Errors++
			metrics.AutoApprovalSweeps.WithLabelValues("error").Inc()
			a.log.WithError(err).Error("Auto-approval evaluation failed", map[string]interface{}{
				"application_id": app.ID,
			})
			continue
		}
		if !ok {
			result.RequiresReview++
			metrics.AutoApprovalSweeps.WithLabelValues("requires_review").Inc()
			continue
		}

		if err := a.engine.Approve(ctx, app.ID, a.cfg.SystemActor); err != nil {
			var transitionErr *commonerrors.InvalidTransitionError
			if errors.As(err, &transitionErr) {
				// Someone reviewed it between the fetch and the approve.
				result.RequiresReview++
				metrics.AutoApprovalSweeps.WithLabelValues("requires_review").Inc()
				continue
			}
			result.Errors++
			metrics.AutoApprovalSweeps.WithLabelValues("error").Inc()
			a.log.WithError(err).Error("Auto-approval failed", map[string]interface{}{
				"application_id": app.ID,
			})
			continue
		}

		result.AutoApproved++
		metrics.AutoApprovalSweeps.WithLabelValues("auto_approved").Inc()
		a.log.Info("Application auto-approved", map[string]interface{}{
			"application_id": app.ID,
			"owner_id":       app.OwnerID,
		})
	}

	a.log.Info("Auto-approval sweep finished", map[string]interface{}{
		"evaluated":       result.Evaluated,
		"auto_approved":   result.AutoApproved,
		"requires_review": result.RequiresReview,
		"errors":          result.Errors,
	})
	return result, nil
}

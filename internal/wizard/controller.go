// internal/wizard/controller.go
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/common/metrics"
	"restaurant-onboarding/internal/draftstore"
	"restaurant-onboarding/internal/models"
	"restaurant-onboarding/internal/notify"
	"restaurant-onboarding/internal/repository"
)

// ErrNoDraft is returned when an operation references a session that has no
// stored draft (expired, abandoned, or never started).
var ErrNoDraft = errors.New("no draft for session")

// Controller drives a wizard session across requests. All session state
// lives in the draft store; the controller itself is stateless and safe for
// concurrent use across sessions.
type Controller struct {
	store    draftstore.Store
	repo     repository.ApplicationRepository
	notifier notify.Dispatcher
	log      logger.Logger
}

func NewController(store draftstore.Store, repo repository.ApplicationRepository, notifier notify.Dispatcher, log logger.Logger) *Controller {
	return &Controller{
		store:    store,
		repo:     repo,
		notifier: notifier,
		log:      log,
	}
}

// StepOutcome reports the session position after a successful Advance or
// Retreat. Application is set when a final-step Advance finalized the draft.
type StepOutcome struct {
	CurrentStep    string
	CompletedSteps []string
	Finished       bool
	Application    *models.RestaurantApplication
}

// Advance validates the submitted fields for a step and, on success, merges
// them into the draft and moves the session forward; advancing the final
// step finalizes the draft into a submitted application. Resubmitting an
// already completed step revalidates and overwrites that step's data without
// moving the session backward. On validation failure the draft keeps its
// last valid data and the rejected fields are cached for re-display only.
func (c *Controller) Advance(ctx context.Context, sessionKey string, opts Options, stepID string, fields map[string]string) (*StepOutcome, error) {
	steps := Steps(opts)
	stepIdx := StepIndex(steps, stepID)
	if stepIdx < 0 {
		return nil, commonerrors.NewFieldError("step", fmt.Sprintf("unknown step: %s", stepID))
	}

	state, err := c.loadOrCreate(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	if stepIdx > state.CurrentStep {
		return nil, commonerrors.NewFieldError("step", fmt.Sprintf("step %s is not reachable yet", stepID))
	}

	result := Validate(stepID, fields)
	if result.Valid && stepID == StepAccount {
		c.checkUniqueness(ctx, fields, result)
	}

	if !result.Valid {
		metrics.WizardValidationFailures.WithLabelValues(stepID).Inc()

		if state.PendingData == nil {
			state.PendingData = make(map[string]map[string]string)
		}
		state.PendingData[stepID] = fields
		if err := c.save(ctx, sessionKey, state); err != nil {
			return nil, err
		}
		return nil, commonerrors.NewValidationError(stepID, result.Errors)
	}

	state.MergeStep(stepID, fields)
	state.MarkCompleted(stepIdx)
	delete(state.PendingData, stepID)

	if stepIdx == state.CurrentStep && state.CurrentStep < len(steps)-1 {
		state.CurrentStep++
	}

	if err := c.save(ctx, sessionKey, state); err != nil {
		return nil, err
	}

	metrics.WizardStepsCompleted.WithLabelValues(stepID).Inc()

	outcome := c.outcome(state, steps)

	// Advancing the final step is the submit action.
	if stepIdx == len(steps)-1 {
		app, err := c.Finalize(ctx, sessionKey, opts.OwnerID, opts)
		if err != nil {
			return nil, err
		}
		outcome.Application = app
	}

	return outcome, nil
}

// checkUniqueness folds username/email collisions into the validation
// result. The rules themselves stay pure; only the controller touches the
// repository.
func (c *Controller) checkUniqueness(ctx context.Context, fields map[string]string, result *Result) {
	if username := strings.TrimSpace(fields["account_username"]); username != "" {
		taken, err := c.repo.UsernameTaken(ctx, username)
		if err != nil {
			c.log.WithError(err).Warn("Username uniqueness check failed", nil)
		} else if taken {
			result.addError("account_username", "username is already taken")
		}
	}

	if email := strings.TrimSpace(fields["account_email"]); email != "" {
		taken, err := c.repo.EmailTaken(ctx, email)
		if err != nil {
			c.log.WithError(err).Warn("Email uniqueness check failed", nil)
		} else if taken {
			result.addError("account_email", "email is already registered")
		}
	}
}

// Retreat moves the session one step back. Data entered on later steps is
// retained, so moving forward again does not re-prompt for it.
func (c *Controller) Retreat(ctx context.Context, sessionKey string, opts Options) (*StepOutcome, error) {
	state, err := c.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	if state.CurrentStep > 0 {
		state.CurrentStep--
	}
	if err := c.save(ctx, sessionKey, state); err != nil {
		return nil, err
	}

	return c.outcome(state, Steps(opts)), nil
}

// SaveDraft stores partially entered fields for a step without validating
// them. Saved fields live beside the validated data and are only promoted
// into it by a later successful Advance.
func (c *Controller) SaveDraft(ctx context.Context, sessionKey, stepID string, fields map[string]string) error {
	state, err := c.loadOrCreate(ctx, sessionKey)
	if err != nil {
		return err
	}

	if state.PendingData == nil {
		state.PendingData = make(map[string]map[string]string)
	}
	state.PendingData[stepID] = fields

	return c.save(ctx, sessionKey, state)
}

// Abandon discards the session's draft. Abandoning a session with no draft
// is a no-op.
func (c *Controller) Abandon(ctx context.Context, sessionKey string) error {
	if err := c.store.Clear(ctx, sessionKey); err != nil {
		return commonerrors.NewDraftStoreFailedError(err)
	}
	return nil
}

// State returns the stored session state, or ErrNoDraft.
func (c *Controller) State(ctx context.Context, sessionKey string) (*models.WizardSessionState, error) {
	return c.load(ctx, sessionKey)
}

// Finalize turns a completed draft into a submitted application. The
// submission token stored in the draft makes this idempotent: a duplicate
// finalize for the same session returns the already created application
// instead of creating a second one. An incomplete draft fails without being
// destroyed, so the user can fill in what is missing.
func (c *Controller) Finalize(ctx context.Context, sessionKey, ownerID string, opts Options) (*models.RestaurantApplication, error) {
	state, err := c.load(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, ErrNoDraft) {
			// The draft may have been cleared by a finalize that already
			// succeeded; the token lookup below cannot help without the
			// token, so this is terminal.
			return nil, ErrNoDraft
		}
		return nil, err
	}

	if existing, err := c.repo.FindBySubmissionToken(ctx, state.SubmissionToken); err == nil {
		// A previous finalize won; clean up and hand back its result.
		c.clearDraft(ctx, sessionKey)
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, commonerrors.NewRepositoryError("look up submission token", err)
	}

	steps := Steps(opts)
	combined := state.CombinedFields()
	if missing := MissingFields(steps, combined); len(missing) > 0 {
		return nil, commonerrors.NewIncompleteApplicationError(missing)
	}

	// Credentials never leave the draft store.
	delete(combined, "account_password")
	delete(combined, "account_password_confirm")

	app := &models.RestaurantApplication{
		OwnerID:         ownerID,
		SubmissionToken: state.SubmissionToken,
		Fields:          combined,
		RestaurantName:  combined["details_name"],
		CuisineType:     strings.ToLower(combined["details_cuisine"]),
		Phone:           combined["contact_phone"],
		Address:         combined["contact_address"],
	}

	if err := c.repo.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Concurrent finalize hit the unique token constraint first.
			existing, ferr := c.repo.FindBySubmissionToken(ctx, state.SubmissionToken)
			if ferr != nil {
				return nil, commonerrors.NewRepositoryError("look up submission token", ferr)
			}
			c.clearDraft(ctx, sessionKey)
			return existing, nil
		}
		return nil, commonerrors.NewRepositoryError("create application", err)
	}

	c.clearDraft(ctx, sessionKey)
	metrics.ApplicationsSubmitted.Inc()

	c.log.Info("Wizard finalized", map[string]interface{}{
		"application_id": app.ID,
		"owner_id":       ownerID,
	})

	recipient := combined["account_email"]
	if recipient == "" {
		// Authenticated sessions skip the account step; use the profile email.
		if profile, perr := c.repo.GetOwnerProfile(ctx, ownerID); perr == nil {
			recipient = profile.Email
		}
	}

	c.dispatch(ctx, notify.Message{
		Event:       notify.EventSubmittedConfirmation,
		Recipient:   recipient,
		Application: app,
	})
	c.dispatch(ctx, notify.Message{
		Event:       notify.EventReviewRequested,
		Application: app,
	})

	return app, nil
}

func (c *Controller) outcome(state *models.WizardSessionState, steps []string) *StepOutcome {
	completed := make([]string, 0, len(state.CompletedSteps))
	for _, idx := range state.CompletedSteps {
		if idx >= 0 && idx < len(steps) {
			completed = append(completed, steps[idx])
		}
	}
	return &StepOutcome{
		CurrentStep:    steps[state.CurrentStep],
		CompletedSteps: completed,
		Finished:       len(state.CompletedSteps) == len(steps),
	}
}

func (c *Controller) load(ctx context.Context, sessionKey string) (*models.WizardSessionState, error) {
	state, err := c.store.Get(ctx, sessionKey)
	if err != nil {
		return nil, commonerrors.NewDraftStoreFailedError(err)
	}
	if state == nil {
		return nil, ErrNoDraft
	}
	return state, nil
}

func (c *Controller) loadOrCreate(ctx context.Context, sessionKey string) (*models.WizardSessionState, error) {
	state, err := c.store.Get(ctx, sessionKey)
	if err != nil {
		return nil, commonerrors.NewDraftStoreFailedError(err)
	}
	if state == nil {
		state = &models.WizardSessionState{
			SubmissionToken: uuid.New().String(),
			CreatedAt:       time.Now().UTC(),
		}
	}
	return state, nil
}

func (c *Controller) save(ctx context.Context, sessionKey string, state *models.WizardSessionState) error {
	state.UpdatedAt = time.Now().UTC()
	if err := c.store.Set(ctx, sessionKey, state); err != nil {
		return commonerrors.NewDraftStoreFailedError(err)
	}
	return nil
}

func (c *Controller) clearDraft(ctx context.Context, sessionKey string) {
	if err := c.store.Clear(ctx, sessionKey); err != nil {
		c.log.WithError(err).Warn("Failed to clear finalized draft", map[string]interface{}{
			"session_key": sessionKey,
		})
	}
}

func (c *Controller) dispatch(ctx context.Context, msg notify.Message) {
	if err := c.notifier.Dispatch(ctx, msg); err != nil {
		c.log.WithError(err).Warn("Notification not delivered", map[string]interface{}{
			"event": string(msg.Event),
		})
	}
}

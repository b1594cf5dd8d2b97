// internal/wizard/controller_test.go
package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/models"
	"restaurant-onboarding/internal/notify"
	"restaurant-onboarding/internal/repository"
)

// ==========================
// In-memory fakes
// ==========================

type memoryStore struct {
	mu     sync.Mutex
	drafts map[string]*models.WizardSessionState
}

func newMemoryStore() *memoryStore {
	return &memoryStore{drafts: make(map[string]*models.WizardSessionState)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (*models.WizardSessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.drafts[key]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, state *models.WizardSessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.drafts[key] = &copied
	return nil
}

func (m *memoryStore) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

type fakeRepo struct {
	mu             sync.Mutex
	apps           map[string]*models.RestaurantApplication
	byToken        map[string]string
	takenUsernames map[string]bool
	takenEmails    map[string]bool
	profiles       map[string]*models.OwnerProfile
	createCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		apps:           make(map[string]*models.RestaurantApplication),
		byToken:        make(map[string]string),
		takenUsernames: make(map[string]bool),
		takenEmails:    make(map[string]bool),
		profiles:       make(map[string]*models.OwnerProfile),
	}
}

func (f *fakeRepo) Create(ctx context.Context, app *models.RestaurantApplication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, exists := f.byToken[app.SubmissionToken]; exists {
		return repository.ErrStatusConflict
	}
	if app.ID == "" {
		app.ID = "app-" + app.SubmissionToken
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.SubmittedAt = &now
	app.ApprovalStatus = models.StatusSubmitted
	f.apps[app.ID] = app
	f.byToken[app.SubmissionToken] = app.ID
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*models.RestaurantApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return app, nil
}

func (f *fakeRepo) FindBySubmissionToken(ctx context.Context, token string) (*models.RestaurantApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byToken[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.apps[id], nil
}

func (f *fakeRepo) MarkSubmitted(ctx context.Context, id, actor string) error { return nil }

func (f *fakeRepo) MarkApproved(ctx context.Context, id, actor string) error { return nil }

func (f *fakeRepo) MarkRejected(ctx context.Context, id, actor, reason string) error { return nil }

func (f *fakeRepo) MarkSuspended(ctx context.Context, id, actor, reason string) error { return nil }

func (f *fakeRepo) MarkReactivated(ctx context.Context, id, actor string) error { return nil }

func (f *fakeRepo) MarkExpired(ctx context.Context, id, actor string) error { return nil }

func (f *fakeRepo) FindPending(ctx context.Context) ([]*models.RestaurantApplication, error) {
	return nil, nil
}

func (f *fakeRepo) FindStalePending(ctx context.Context, submittedBefore time.Time) ([]*models.RestaurantApplication, error) {
	return nil, nil
}

func (f *fakeRepo) CountOwnerApproved(ctx context.Context, ownerID string) (int, error) {
	return 0, nil
}

func (f *fakeRepo) OwnerAverageRating(ctx context.Context, ownerID string) (float64, error) {
	return 0, nil
}

func (f *fakeRepo) GetOwnerProfile(ctx context.Context, ownerID string) (*models.OwnerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[ownerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return profile, nil
}

func (f *fakeRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takenUsernames[username], nil
}

func (f *fakeRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takenEmails[email], nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return nil
}

func (d *recordingDispatcher) events() []notify.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	events := make([]notify.Event, 0, len(d.messages))
	for _, msg := range d.messages {
		events = append(events, msg.Event)
	}
	return events
}

// ==========================
// Helpers
// ==========================

type controllerFixture struct {
	controller *Controller
	store      *memoryStore
	repo       *fakeRepo
	dispatcher *recordingDispatcher
}

func newControllerFixture(t *testing.T) *controllerFixture {
	store := newMemoryStore()
	repo := newFakeRepo()
	dispatcher := &recordingDispatcher{}
	controller := NewController(store, repo, dispatcher, logger.NewTestLogger(t))
	return &controllerFixture{
		controller: controller,
		store:      store,
		repo:       repo,
		dispatcher: dispatcher,
	}
}

var mariosSteps = map[string]map[string]string{
	StepAccount: {
		"account_username":         "chefmario",
		"account_email":            "mario@example.com",
		"account_password":         "Secret123",
		"account_password_confirm": "Secret123",
	},
	StepDetails: {
		"details_name":        "Mario's Kitchen",
		"details_description": "Wood-fired pizza since 1995",
		"details_cuisine":     "italian",
	},
	StepContact: {
		"contact_phone":   "+15551234567",
		"contact_address": "12 Elm Street, Springfield",
	},
	StepHours: {
		"hours_opening":      "09:00",
		"hours_closing":      "22:00",
		"hours_min_order":    "15.00",
		"hours_delivery_fee": "3.99",
	},
	StepReview: {
		"review_terms_accepted": "true",
	},
}

func completeAllSteps(t *testing.T, f *controllerFixture, sessionKey string, opts Options) *StepOutcome {
	t.Helper()
	ctx := context.Background()
	var outcome *StepOutcome
	for _, stepID := range Steps(opts) {
		var err error
		outcome, err = f.controller.Advance(ctx, sessionKey, opts, stepID, mariosSteps[stepID])
		require.NoError(t, err, "step %s should pass", stepID)
	}
	return outcome
}

// ==========================
// Tests
// ==========================

func TestWizardHappyPath(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	opts := Options{OwnerID: "owner-1"}

	outcome, err := f.controller.Advance(ctx, "session-1", opts, StepAccount, mariosSteps[StepAccount])
	require.NoError(t, err)
	assert.Equal(t, StepDetails, outcome.CurrentStep)
	assert.False(t, outcome.Finished)
	assert.Nil(t, outcome.Application)

	// Advancing the final step submits the application.
	outcome = completeAllSteps(t, f, "session-2", opts)
	require.True(t, outcome.Finished)
	app := outcome.Application
	require.NotNil(t, app)

	assert.Equal(t, "Mario's Kitchen", app.RestaurantName)
	assert.Equal(t, "italian", app.CuisineType)
	assert.Equal(t, models.StatusSubmitted, app.ApprovalStatus)
	assert.NotNil(t, app.SubmittedAt)
	assert.Equal(t, "15.00", app.Field("hours_min_order"))
	assert.Equal(t, "3.99", app.Field("hours_delivery_fee"))
	assert.Empty(t, app.Field("account_password"), "credentials never reach the application record")

	// Draft is destroyed on finalization.
	state, err := f.store.Get(ctx, "session-2")
	require.NoError(t, err)
	assert.Nil(t, state)

	assert.Equal(t, []notify.Event{
		notify.EventSubmittedConfirmation,
		notify.EventReviewRequested,
	}, f.dispatcher.events())
}

func TestAdvanceValidationFailurePreservesDraft(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	opts := Options{}

	_, err := f.controller.Advance(ctx, "session-1", opts, StepAccount, mariosSteps[StepAccount])
	require.NoError(t, err)

	bad := map[string]string{
		"details_name":        "M",
		"details_description": "short",
		"details_cuisine":     "italian",
	}
	_, err = f.controller.Advance(ctx, "session-1", opts, StepDetails, bad)
	require.Error(t, err)

	var validationErr *commonerrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, StepDetails, validationErr.StepID)
	assert.Contains(t, validationErr.Fields, "details_name")

	state, err := f.store.Get(ctx, "session-1")
	require.NoError(t, err)
	require.NotNil(t, state)

	// Rejected fields are cached for re-display, never merged.
	assert.Equal(t, bad, state.PendingData[StepDetails])
	assert.NotContains(t, state.StepData, StepDetails)
	assert.Equal(t, mariosSteps[StepAccount]["account_email"], state.StepData[StepAccount]["account_email"])
}

func TestAdvanceRejectsTakenUsername(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.takenUsernames["chefmario"] = true
	ctx := context.Background()

	_, err := f.controller.Advance(ctx, "session-1", Options{}, StepAccount, mariosSteps[StepAccount])
	require.Error(t, err)

	var validationErr *commonerrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Fields, "account_username")
}

func TestAdvanceRejectsUnreachableStep(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	_, err := f.controller.Advance(ctx, "session-1", Options{}, StepHours, mariosSteps[StepHours])
	assert.Error(t, err)
}

func TestRetreatKeepsLaterStepData(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	opts := Options{}

	_, err := f.controller.Advance(ctx, "session-1", opts, StepAccount, mariosSteps[StepAccount])
	require.NoError(t, err)
	_, err = f.controller.Advance(ctx, "session-1", opts, StepDetails, mariosSteps[StepDetails])
	require.NoError(t, err)

	outcome, err := f.controller.Retreat(ctx, "session-1", opts)
	require.NoError(t, err)
	assert.Equal(t, StepDetails, outcome.CurrentStep)

	// Resubmitting the earlier step with corrected data overwrites it and
	// the session moves forward again without losing later data.
	updated := map[string]string{
		"details_name":        "Mario's Trattoria",
		"details_description": "Wood-fired pizza since 1995",
		"details_cuisine":     "italian",
	}
	outcome, err = f.controller.Advance(ctx, "session-1", opts, StepDetails, updated)
	require.NoError(t, err)
	assert.Equal(t, StepContact, outcome.CurrentStep)

	state, err := f.store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Mario's Trattoria", state.StepData[StepDetails]["details_name"])
	assert.Equal(t, "chefmario", state.StepData[StepAccount]["account_username"])
}

func TestDuplicateFinalizeCreatesOneApplication(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	opts := Options{OwnerID: "owner-1"}

	steps := Steps(opts)
	for _, stepID := range steps[:len(steps)-1] {
		_, err := f.controller.Advance(ctx, "session-1", opts, stepID, mariosSteps[stepID])
		require.NoError(t, err)
	}

	state, err := f.store.Get(ctx, "session-1")
	require.NoError(t, err)

	outcome, err := f.controller.Advance(ctx, "session-1", opts, StepReview, mariosSteps[StepReview])
	require.NoError(t, err)
	require.NotNil(t, outcome.Application)
	first := outcome.Application

	// Simulate the duplicate click racing the draft cleanup: restore the
	// pre-submit draft and finalize again with the same token.
	require.NoError(t, f.store.Set(ctx, "session-1", state))

	second, err := f.controller.Finalize(ctx, "session-1", "owner-1", opts)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.repo.apps, 1)
}

func TestFinalizeIncompleteDraftFails(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	opts := Options{}

	_, err := f.controller.Advance(ctx, "session-1", opts, StepAccount, mariosSteps[StepAccount])
	require.NoError(t, err)
	_, err = f.controller.Advance(ctx, "session-1", opts, StepDetails, mariosSteps[StepDetails])
	require.NoError(t, err)

	_, err = f.controller.Finalize(ctx, "session-1", "owner-1", opts)
	require.Error(t, err)

	var incompleteErr *commonerrors.IncompleteApplicationError
	require.True(t, errors.As(err, &incompleteErr))
	assert.Contains(t, incompleteErr.Missing, "contact_phone")
	assert.Contains(t, incompleteErr.Missing, "review_terms_accepted")

	// The draft survives so the user can finish it.
	state, err := f.store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.NotNil(t, state)
	assert.Zero(t, f.repo.createCalls)
}

func TestFinalizeWithoutDraft(t *testing.T) {
	f := newControllerFixture(t)

	_, err := f.controller.Finalize(context.Background(), "ghost", "owner-1", Options{})
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestAuthenticatedSessionSkipsAccountStep(t *testing.T) {
	f := newControllerFixture(t)
	f.repo.profiles["owner-1"] = &models.OwnerProfile{
		UserID: "owner-1",
		Email:  "owner@example.com",
	}
	opts := Options{Authenticated: true, OwnerID: "owner-1"}

	outcome := completeAllSteps(t, f, "session-1", opts)
	require.NotNil(t, outcome.Application)
	assert.Equal(t, "owner-1", outcome.Application.OwnerID)

	// Owner confirmation falls back to the profile email.
	require.NotEmpty(t, f.dispatcher.messages)
	assert.Equal(t, "owner@example.com", f.dispatcher.messages[0].Recipient)
}

func TestAbandonDiscardsDraft(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()
	opts := Options{}

	_, err := f.controller.Advance(ctx, "session-1", opts, StepAccount, mariosSteps[StepAccount])
	require.NoError(t, err)

	require.NoError(t, f.controller.Abandon(ctx, "session-1"))

	state, err := f.store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, state)

	// Abandoning again is a no-op.
	assert.NoError(t, f.controller.Abandon(ctx, "session-1"))
}

func TestSaveDraftStoresUnvalidatedFields(t *testing.T) {
	f := newControllerFixture(t)
	ctx := context.Background()

	partial := map[string]string{"details_name": "M"}
	require.NoError(t, f.controller.SaveDraft(ctx, "session-1", StepDetails, partial))

	state, err := f.store.Get(ctx, "session-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, partial, state.PendingData[StepDetails])
	assert.Empty(t, state.StepData)
}

// internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "restaurant-onboarding/internal/common/errors"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/models"
	"restaurant-onboarding/internal/wizard"
)

// ==========================
// Test doubles
// ==========================

type stubWizard struct {
	advanceOutcome *wizard.StepOutcome
	advanceErr     error
	retreatOutcome *wizard.StepOutcome
	finalizeApp    *models.RestaurantApplication
	finalizeErr    error

	lastSession string
	lastStep    string
	lastFields  map[string]string
	lastOpts    wizard.Options
}

func (s *stubWizard) Advance(_ context.Context, sessionKey string, opts wizard.Options, stepID string, fields map[string]string) (*wizard.StepOutcome, error) {
	s.lastSession = sessionKey
	s.lastOpts = opts
	s.lastStep = stepID
	s.lastFields = fields
	return s.advanceOutcome, s.advanceErr
}

func (s *stubWizard) Retreat(_ context.Context, sessionKey string, opts wizard.Options) (*wizard.StepOutcome, error) {
	s.lastSession = sessionKey
	s.lastOpts = opts
	return s.retreatOutcome, nil
}

func (s *stubWizard) SaveDraft(_ context.Context, sessionKey, stepID string, fields map[string]string) error {
	s.lastSession = sessionKey
	s.lastStep = stepID
	s.lastFields = fields
	return nil
}

func (s *stubWizard) Abandon(_ context.Context, sessionKey string) error {
	s.lastSession = sessionKey
	return nil
}

func (s *stubWizard) Finalize(_ context.Context, sessionKey, ownerID string, opts wizard.Options) (*models.RestaurantApplication, error) {
	s.lastSession = sessionKey
	s.lastOpts = opts
	s.lastOpts.OwnerID = ownerID
	return s.finalizeApp, s.finalizeErr
}

type stubApprovals struct {
	approveErr error
	rejectErr  error

	approvedID string
	rejectedID string
	actor      string
	reason     string
}

func (s *stubApprovals) Approve(_ context.Context, id, actor string) error {
	s.approvedID = id
	s.actor = actor
	return s.approveErr
}

func (s *stubApprovals) Reject(_ context.Context, id, actor, reason string) error {
	s.rejectedID = id
	s.actor = actor
	s.reason = reason
	return s.rejectErr
}

type apiFixture struct {
	wizard    *stubWizard
	approvals *stubApprovals
	server    *httptest.Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		wizard:    &stubWizard{},
		approvals: &stubApprovals{},
	}
	mux := http.NewServeMux()
	NewHandler(f.wizard, f.approvals, logger.NewTestLogger(t)).Register(mux)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) postForm(t *testing.T, path string, form url.Values, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

// ==========================
// Wizard actions
// ==========================

func TestWizardNextRoutesStepFields(t *testing.T) {
	f := newAPIFixture(t)
	f.wizard.advanceOutcome = &wizard.StepOutcome{
		CurrentStep:    wizard.StepDetails,
		CompletedSteps: []string{wizard.StepAccount},
	}

	resp, body := f.postForm(t, "/wizard/sess-1", url.Values{
		"action":           {"next"},
		"step":             {wizard.StepAccount},
		"owner_id":         {"owner-1"},
		"account_username": {"chefmario"},
		"account_email":    {"mario@example.com"},
	}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wizard.StepDetails, body["current_step"])
	assert.Equal(t, false, body["finished"])

	assert.Equal(t, "sess-1", f.wizard.lastSession)
	assert.Equal(t, wizard.StepAccount, f.wizard.lastStep)
	assert.Equal(t, "owner-1", f.wizard.lastOpts.OwnerID)
	// Control keys never leak into the step data.
	assert.Equal(t, map[string]string{
		"account_username": "chefmario",
		"account_email":    "mario@example.com",
	}, f.wizard.lastFields)
}

func TestWizardValidationFailureReturns422(t *testing.T) {
	f := newAPIFixture(t)
	f.wizard.advanceErr = commonerrors.NewValidationError(wizard.StepAccount, map[string]string{
		"account_email": "email is not valid",
	})

	resp, body := f.postForm(t, "/wizard/sess-1", url.Values{
		"action": {"next"},
		"step":   {wizard.StepAccount},
	}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	fields, ok := body["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "email is not valid", fields["account_email"])
}

func TestWizardSubmitReturnsCreatedApplication(t *testing.T) {
	f := newAPIFixture(t)
	f.wizard.finalizeApp = &models.RestaurantApplication{
		ID:             "app-42",
		ApprovalStatus: models.StatusPending,
	}

	resp, body := f.postForm(t, "/wizard/sess-1", url.Values{
		"action":   {"submit"},
		"owner_id": {"owner-1"},
	}, nil)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "app-42", body["application_id"])
	assert.Equal(t, "pending", body["approval_status"])
	assert.Equal(t, "owner-1", f.wizard.lastOpts.OwnerID)
}

func TestWizardMissingDraftReturns404(t *testing.T) {
	f := newAPIFixture(t)
	f.wizard.finalizeErr = wizard.ErrNoDraft

	resp, _ := f.postForm(t, "/wizard/sess-gone", url.Values{
		"action": {"submit"},
	}, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWizardUnknownActionReturns400(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.postForm(t, "/wizard/sess-1", url.Values{
		"action": {"teleport"},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "teleport")
}

func TestWizardRetryableStoreFailureReturns503(t *testing.T) {
	f := newAPIFixture(t)
	f.wizard.advanceErr = commonerrors.NewDraftStoreFailedError(assert.AnError)

	resp, body := f.postForm(t, "/wizard/sess-1", url.Values{
		"action": {"next"},
		"step":   {wizard.StepAccount},
	}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "STORAGE", body["category"])
	assert.Equal(t, true, body["retryable"])
}

// ==========================
// Manager review actions
// ==========================

func TestApproveRequiresReviewerRole(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"no identity headers", nil},
		{"customer role", map[string]string{"X-Actor": "user-1", "X-Role": string(models.RoleCustomer)}},
		{"owner role", map[string]string{"X-Actor": "owner-1", "X-Role": string(models.RoleRestaurantOwner)}},
		{"role without actor", map[string]string{"X-Role": string(models.RoleManager)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := f.postForm(t, "/applications/app-1/approve", url.Values{}, tc.headers)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Empty(t, f.approvals.approvedID)
		})
	}
}

func TestManagerApprove(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.postForm(t, "/applications/app-1/approve", url.Values{}, map[string]string{
		"X-Actor": "manager-1",
		"X-Role":  string(models.RoleManager),
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", body["status"])
	assert.Equal(t, "app-1", f.approvals.approvedID)
	assert.Equal(t, "manager-1", f.approvals.actor)
}

func TestAdminRejectPassesReason(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.postForm(t, "/applications/app-1/reject", url.Values{
		"reason": {"incomplete kitchen inspection"},
	}, map[string]string{
		"X-Actor": "admin-1",
		"X-Role":  string(models.RoleAdmin),
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "app-1", f.approvals.rejectedID)
	assert.Equal(t, "incomplete kitchen inspection", f.approvals.reason)
}

func TestApproveConflictReturns409(t *testing.T) {
	f := newAPIFixture(t)
	f.approvals.approveErr = commonerrors.NewInvalidTransitionError("app-1", "rejected", "approve")

	resp, body := f.postForm(t, "/applications/app-1/approve", url.Values{}, map[string]string{
		"X-Actor": "manager-1",
		"X-Role":  string(models.RoleManager),
	})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "rejected", body["current_status"])
}

func TestApproveUnknownApplicationReturns404(t *testing.T) {
	f := newAPIFixture(t)
	f.approvals.approveErr = commonerrors.NewApplicationNotFoundError("app-missing")

	resp, _ := f.postForm(t, "/applications/app-missing/approve", url.Values{}, map[string]string{
		"X-Actor": "manager-1",
		"X-Role":  string(models.RoleManager),
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

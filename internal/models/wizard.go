// internal/models/wizard.go
package models

import "time"

// WizardSessionState is the per-user, per-attempt draft built up across
// requests. It lives in the draft store for the lifetime of the session and
// is destroyed on successful finalization or abandonment.
type WizardSessionState struct {
	CurrentStep    int                          `json:"currentStep"`
	CompletedSteps []int                        `json:"completedSteps"`
	StepData       map[string]map[string]string `json:"stepData"`

	// PendingData caches the last field map that failed validation, for
	// re-display only. It is never merged into StepData.
	PendingData map[string]map[string]string `json:"pendingData,omitempty"`

	// SubmissionToken is a one-time key that makes finalization idempotent
	// under duplicate submit clicks.
	SubmissionToken string `json:"submissionToken"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StepCompleted reports whether the given step index has been completed.
func (s *WizardSessionState) StepCompleted(step int) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

// MarkCompleted records a completed step index. Completed steps never shrink
// within one session lifetime.
func (s *WizardSessionState) MarkCompleted(step int) {
	if !s.StepCompleted(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
}

// MergeStep copies validated field values into the authoritative step data.
func (s *WizardSessionState) MergeStep(stepID string, fields map[string]string) {
	if s.StepData == nil {
		s.StepData = make(map[string]map[string]string)
	}
	dst, ok := s.StepData[stepID]
	if !ok {
		dst = make(map[string]string, len(fields))
		s.StepData[stepID] = dst
	}
	for k, v := range fields {
		dst[k] = v
	}
}

// CombinedFields returns the union of all step data. Field names are
// namespaced per step by convention, so no step can clobber another.
func (s *WizardSessionState) CombinedFields() map[string]string {
	combined := make(map[string]string)
	for _, fields := range s.StepData {
		for k, v := range fields {
			combined[k] = v
		}
	}
	return combined
}

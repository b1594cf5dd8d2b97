// internal/wizard/steps.go
package wizard

// Step identifiers. Field names submitted for a step are namespaced by
// convention (account_*, details_*, contact_*, hours_*), so merged step data
// never collides across steps.
const (
	StepAccount = "account"
	StepDetails = "details"
	StepContact = "contact"
	StepHours   = "hours"
	StepReview  = "review"
)

// Options selects the step sequence for a session.
type Options struct {
	// Authenticated skips the account step: the owner identity is already
	// known and the draft binds to it instead of collecting credentials.
	Authenticated bool

	// OwnerID is the submitting owner. Consumed when the final step's
	// Advance finalizes the draft into an application.
	OwnerID string
}

// Steps returns the ordered step IDs for the given options.
func Steps(opts Options) []string {
	if opts.Authenticated {
		return []string{StepDetails, StepContact, StepHours, StepReview}
	}
	return []string{StepAccount, StepDetails, StepContact, StepHours, StepReview}
}

// StepIndex returns the position of a step ID in the sequence, or -1.
func StepIndex(steps []string, stepID string) int {
	for i, s := range steps {
		if s == stepID {
			return i
		}
	}
	return -1
}

// requiredFields lists every field that must be present in the combined
// session data before finalization. The review step collects only the
// terms acceptance.
var requiredFields = map[string][]string{
	StepAccount: {"account_username", "account_email", "account_password"},
	StepDetails: {"details_name", "details_description", "details_cuisine"},
	StepContact: {"contact_phone", "contact_address"},
	StepHours:   {"hours_opening", "hours_closing"},
	StepReview:  {"review_terms_accepted"},
}

// MissingFields returns the required field names absent from the combined
// session data, in step order.
func MissingFields(steps []string, combined map[string]string) []string {
	var missing []string
	for _, stepID := range steps {
		for _, field := range requiredFields[stepID] {
			if combined[field] == "" {
				missing = append(missing, field)
			}
		}
	}
	return missing
}

// internal/trust/score.go
package trust

import "restaurant-onboarding/internal/models"

// profileFields are the application fields counted toward profile
// completeness.
var profileFields = []string{
	"details_name",
	"details_description",
	"contact_phone",
	"contact_address",
	"details_image",
}

// ScoreInputs are the facts the trust score is computed from. The score is
// derived on demand and never persisted.
type ScoreInputs struct {
	OwnerActive       bool
	ApprovedAppCount  int
	ProfileCompletion int // filled profile fields, 0..len(profileFields)
}

// ProfileCompletion counts the filled profile fields of an application.
func ProfileCompletion(app *models.RestaurantApplication) int {
	filled := 0
	for _, field := range profileFields {
		if app.Field(field) != "" {
			filled++
		}
	}
	return filled
}

// ComputeScore maps the inputs onto a 0-100 heuristic:
//
//	50 base
//	+10 if the owner account is active
//	+10 per previously approved application, capped at 3
//	+up to 10 proportional to profile completeness
//
// The result is clamped to [0, 100].
func ComputeScore(in ScoreInputs) int {
	score := 50

	if in.OwnerActive {
		score += 10
	}

	approved := in.ApprovedAppCount
	if approved > 3 {
		approved = 3
	}
	score += approved * 10

	completion := in.ProfileCompletion
	if completion > len(profileFields) {
		completion = len(profileFields)
	}
	if completion < 0 {
		completion = 0
	}
	score += completion * 10 / len(profileFields)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
